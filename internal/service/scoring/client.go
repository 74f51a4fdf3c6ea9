// Package scoring wraps the external text-classification collaborator. The
// backend is opaque and may be slow or failing; retry and fail-closed policy
// live in the pipeline, not here.
package scoring

import (
	"context"
	"fmt"
	"time"

	"NewsPulse/internal/domain/models"
	"NewsPulse/internal/service/ratelimit"
	httpclient "NewsPulse/pkg/http"
	"NewsPulse/pkg/logger"
)

const limiterKey = "scoring"

// Config holds the scoring backend settings.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	Capacity  float64 // token bucket size; 0 disables limiting
	PerSecond float64
}

// Client implements RelevanceFilter, EventScorer, and SignalPredictor.
type Client struct {
	cfg     Config
	http    *httpclient.Client
	limiter *ratelimit.Limiter
	logger  *logger.Logger
}

// New creates a scoring client.
func New(cfg Config, lgr *logger.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Client{
		cfg:     cfg,
		http:    httpclient.NewClient(httpclient.WithTimeout(cfg.Timeout)),
		limiter: ratelimit.New(),
		logger:  lgr,
	}
}

type filterResponse struct {
	Relevant bool   `json:"relevant"`
	Reason   string `json:"reason"`
}

type scoreResponse struct {
	Summary        string  `json:"summary"`
	Sentiment      string  `json:"sentiment"`
	MarketImpact   string  `json:"market_impact"`
	LongShortScore float64 `json:"long_short_score"`
}

type predictRequest struct {
	Horizon         string `json:"horizon"`
	Symbol          string `json:"symbol"`
	NewsData        string `json:"news_data"`
	MarketContext   string `json:"market_context"`
	FeedbackContext string `json:"feedback_context"`
}

type predictResponse struct {
	Trend          string  `json:"trend_24h"`
	Confidence     float64 `json:"confidence"`
	Reasoning      string  `json:"reasoning"`
	ChainOfThought string  `json:"chain_of_thought"`
}

// Filter asks the backend whether the event text is market relevant.
func (c *Client) Filter(ctx context.Context, content, source string) (*models.Verdict, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	var resp filterResponse
	err := c.http.SendAndParse(ctx, &httpclient.RequestOptions{
		Method: httpclient.MethodPost,
		URL:    c.cfg.BaseURL + "/v1/filter",
		Body:   map[string]string{"content": content, "source": source},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("scoring filter: %w", err)
	}

	return &models.Verdict{Relevant: resp.Relevant, Reason: resp.Reason}, nil
}

// Score turns a relevant event into a structured sentiment score.
func (c *Client) Score(ctx context.Context, content, source string) (*models.Score, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	var resp scoreResponse
	err := c.http.SendAndParse(ctx, &httpclient.RequestOptions{
		Method: httpclient.MethodPost,
		URL:    c.cfg.BaseURL + "/v1/score",
		Body:   map[string]string{"content": content, "source": source},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("scoring score: %w", err)
	}

	direction, err := parseDirection(resp.Sentiment)
	if err != nil {
		return nil, fmt.Errorf("scoring score: %w", err)
	}
	if resp.LongShortScore < -1 || resp.LongShortScore > 1 {
		return nil, fmt.Errorf("scoring score: magnitude %v out of range", resp.LongShortScore)
	}

	return &models.Score{
		Summary:   resp.Summary,
		Direction: direction,
		Impact:    parseImpact(resp.MarketImpact),
		Magnitude: resp.LongShortScore,
	}, nil
}

// Predict produces a directional signal from the assembled context.
func (c *Client) Predict(ctx context.Context, req *models.PredictionRequest) (*models.Signal, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	var resp predictResponse
	err := c.http.SendAndParse(ctx, &httpclient.RequestOptions{
		Method: httpclient.MethodPost,
		URL:    c.cfg.BaseURL + "/v1/predict",
		Body: predictRequest{
			Horizon:         string(req.Horizon),
			Symbol:          req.Symbol,
			NewsData:        req.EventContext,
			MarketContext:   req.MarketContext,
			FeedbackContext: req.Feedback,
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("scoring predict: %w", err)
	}

	direction, err := parseDirection(resp.Trend)
	if err != nil {
		return nil, fmt.Errorf("scoring predict: %w", err)
	}

	return &models.Signal{
		ProducedAt:    time.Now().UTC(),
		HorizonClass:  req.Horizon,
		Direction:     direction,
		Confidence:    resp.Confidence,
		Rationale:     resp.Reasoning,
		DeepRationale: resp.ChainOfThought,
	}, nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.cfg.Capacity <= 0 || c.cfg.PerSecond <= 0 {
		return nil
	}
	return c.limiter.Wait(ctx, limiterKey, c.cfg.Capacity, c.cfg.PerSecond)
}

func parseDirection(s string) (models.Direction, error) {
	switch d := models.Direction(s); d {
	case models.DirectionBullish, models.DirectionBearish, models.DirectionNeutral:
		return d, nil
	default:
		return "", fmt.Errorf("unknown direction %q", s)
	}
}

func parseImpact(s string) models.Impact {
	switch i := models.Impact(s); i {
	case models.ImpactHigh, models.ImpactMedium, models.ImpactLow:
		return i
	default:
		return models.ImpactLow
	}
}
