// Package eventsource talks to the external news record store. Records are
// mutable upstream: Update overwrites fields in place, so callers follow the
// re-read-before-write discipline from the ledger write-back protocol.
package eventsource

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"NewsPulse/internal/domain/models"
	httpclient "NewsPulse/pkg/http"
	"NewsPulse/pkg/logger"
	"NewsPulse/pkg/util"
)

const apiTimeFormat = "2006-01-02T15:04:05"

// Config holds the event source endpoints.
type Config struct {
	BaseURL    string
	FetchPath  string
	UpdatePath string
	Timeout    time.Duration
}

// Client implements repository.EventSource over the upstream HTTP API.
type Client struct {
	cfg    Config
	http   *httpclient.Client
	logger *logger.Logger
}

// New creates an event source client.
func New(cfg Config, lgr *logger.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		cfg:    cfg,
		http:   httpclient.NewClient(httpclient.WithTimeout(cfg.Timeout)),
		logger: lgr,
	}
}

type fetchRequest struct {
	Type      int    `json:"type"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// eventRecord mirrors the upstream record shape. newsTag arrives as a number,
// a numeric string, or not at all; summary and analysis may be null.
type eventRecord struct {
	ObjectID string      `json:"objectId"`
	Time     string      `json:"time"`
	Title    string      `json:"title"`
	Content  string      `json:"content"`
	Link     string      `json:"link"`
	NewsTag  json.Number `json:"newsTag"`
	Summary  *string     `json:"summary"`
	Analysis *string     `json:"analysis"`
	Type     string      `json:"type"`
}

// Fetch pulls the events of one partition inside [start, end].
func (c *Client) Fetch(ctx context.Context, class models.SymbolClass, start, end time.Time) ([]*models.RawEvent, error) {
	req := fetchRequest{
		Type:      int(class),
		StartTime: start.UTC().Format(apiTimeFormat),
		EndTime:   end.UTC().Format(apiTimeFormat),
	}

	var records []eventRecord
	err := c.http.SendAndParse(ctx, &httpclient.RequestOptions{
		Method: httpclient.MethodPost,
		URL:    c.cfg.BaseURL + c.cfg.FetchPath,
		Body:   req,
	}, &records)
	if err != nil {
		return nil, fmt.Errorf("event source fetch (%s): %w", class, err)
	}

	events := make([]*models.RawEvent, 0, len(records))
	for _, rec := range records {
		if rec.ObjectID == "" {
			continue
		}
		events = append(events, rec.toEvent(class))
	}
	return events, nil
}

func (r *eventRecord) toEvent(class models.SymbolClass) *models.RawEvent {
	ev := &models.RawEvent{
		ID:         r.ObjectID,
		Class:      class,
		Source:     r.Type,
		Title:      r.Title,
		Content:    r.Content,
		Link:       r.Link,
		OccurredAt: util.ParseTimeDefault(r.Time, time.Now().UTC()),
		Tag:        util.ParseIntDefault(r.NewsTag.String(), 0),
	}
	if r.Summary != nil {
		ev.Summary = *r.Summary
	}
	if r.Analysis != nil {
		ev.AnalysisRaw = *r.Analysis
	}
	return ev
}

// Update writes back tag, summary, ledger text, and content for one record.
// Empty fields stay untouched upstream.
func (c *Client) Update(ctx context.Context, id string, upd *models.EventUpdate) error {
	if id == "" {
		return fmt.Errorf("event source update: missing id")
	}

	body := map[string]interface{}{"objectId": id}
	if upd.Tag != nil {
		body["tag"] = *upd.Tag
	}
	if upd.Summary != "" {
		body["summary"] = upd.Summary
	}
	if upd.AnalysisRaw != "" {
		body["analysis"] = upd.AnalysisRaw
	}
	if upd.Content != "" {
		body["content"] = upd.Content
	}

	err := c.http.SendAndParse(ctx, &httpclient.RequestOptions{
		Method: httpclient.MethodPost,
		URL:    c.cfg.BaseURL + c.cfg.UpdatePath,
		Body:   body,
	}, nil)
	if err != nil {
		return fmt.Errorf("event source update %s: %w", id, err)
	}

	c.logger.Debug("event updated", logger.String("id", id))
	return nil
}
