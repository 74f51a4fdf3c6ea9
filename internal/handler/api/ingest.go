package api

import (
	"net/http"
	"time"

	"NewsPulse/internal/domain/models"
	"NewsPulse/internal/service/ratelimit"
	"NewsPulse/internal/usecase"
	xhttp "NewsPulse/pkg/http"
	xlogger "NewsPulse/pkg/logger"
	"NewsPulse/pkg/util"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// IngestHandler accepts pushed events over HTTP and WebSocket, alongside
// the polling collector. Pushed events go through the same pipeline, so
// duplicates between push and poll collapse in the dedup set.
type IngestHandler struct {
	logger   *xlogger.Logger
	pipeline *usecase.Pipeline
	rl       *ratelimit.Limiter
	upgrader websocket.Upgrader
}

func NewIngestHandler(logger *xlogger.Logger, pipeline *usecase.Pipeline) *IngestHandler {
	return &IngestHandler{
		logger:   logger,
		pipeline: pipeline,
		rl:       ratelimit.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *IngestHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	g := e.Group("/api/v1")
	g.POST("/ingest", h.Ingest)
	e.GET("/ws/ingest", h.IngestWS)
}

// IngestRequest is one pushed event.
type IngestRequest struct {
	ID         string `json:"id" validate:"required"`
	Class      int    `json:"class" validate:"required,oneof=1 2"`
	Source     string `json:"source"`
	Title      string `json:"title" validate:"required"`
	Content    string `json:"content"`
	Link       string `json:"link" validate:"omitempty,url"`
	OccurredAt string `json:"occurred_at"`
}

func (r *IngestRequest) toEvent() *models.RawEvent {
	return &models.RawEvent{
		ID:         r.ID,
		Class:      models.SymbolClass(r.Class),
		Source:     r.Source,
		Title:      r.Title,
		Content:    r.Content,
		Link:       r.Link,
		OccurredAt: util.ParseTimeDefault(r.OccurredAt, time.Now().UTC()),
	}
}

// IngestResponse reports the terminal outcome of a pushed event.
type IngestResponse struct {
	ID      string `json:"id"`
	Outcome string `json:"outcome"`
}

func (h *IngestHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

func (h *IngestHandler) Ingest(c echo.Context) error {
	req := &IngestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":ingest", 10, 5) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limited")
	}

	outcome := h.pipeline.Process(c.Request().Context(), req.toEvent())
	h.logger.Info("ingest handled",
		xlogger.String("id", req.ID),
		xlogger.String("outcome", string(outcome)))

	return xhttp.SuccessResponse(c, &IngestResponse{ID: req.ID, Outcome: string(outcome)})
}

// IngestWS streams events in and outcomes out over one connection. Each
// frame is an IngestRequest; malformed frames get an error ack, a broken
// connection ends the loop.
func (h *IngestHandler) IngestWS(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx := c.Request().Context()
	for {
		var req IngestRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("ingest ws read error", xlogger.Error(err))
			}
			return nil
		}

		if req.ID == "" || req.Title == "" {
			if err := conn.WriteJSON(&IngestResponse{ID: req.ID, Outcome: "rejected"}); err != nil {
				return nil
			}
			continue
		}

		outcome := h.pipeline.Process(ctx, req.toEvent())
		if err := conn.WriteJSON(&IngestResponse{ID: req.ID, Outcome: string(outcome)}); err != nil {
			return nil
		}
	}
}
