package eventsource

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsPulse/internal/domain/models"
	"NewsPulse/pkg/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{
		BaseURL:    srv.URL,
		FetchPath:  "/fetch",
		UpdatePath: "/update",
	}, logger.Nop())
}

func TestFetchParsesRecords(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req fetchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 1, req.Type)

		_, _ = w.Write([]byte(`[
			{"objectId":"a1","time":"2025-08-14T13:04:38.000Z","title":"ETF approved","content":"body","link":"https://x/1","newsTag":1,"summary":"s","analysis":"{}"},
			{"objectId":"a2","time":"2025-08-14T13:10:00","title":"no tag yet","newsTag":null,"summary":null,"analysis":null},
			{"time":"2025-08-14T13:11:00","title":"dropped, no id"}
		]`))
	})

	events, err := c.Fetch(context.Background(), models.ClassBTC,
		time.Date(2025, 8, 14, 12, 0, 0, 0, time.UTC),
		time.Date(2025, 8, 14, 14, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "a1", events[0].ID)
	assert.Equal(t, models.ClassBTC, events[0].Class)
	assert.Equal(t, 1, events[0].Tag)
	assert.Equal(t, "s", events[0].Summary)
	assert.Equal(t, "{}", events[0].AnalysisRaw)
	assert.Equal(t, time.Date(2025, 8, 14, 13, 4, 38, 0, time.UTC), events[0].OccurredAt)

	assert.Equal(t, 0, events[1].Tag)
	assert.Empty(t, events[1].Summary)
}

func TestFetchStringTag(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"objectId":"b1","time":"2025-08-14T13:04:38","newsTag":"3"}]`))
	})

	events, err := c.Fetch(context.Background(), models.ClassETH, time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.TagBearish, events[0].Tag)
}

func TestUpdateOmitsEmptyFields(t *testing.T) {
	var got map[string]interface{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(b, &got))
		_, _ = w.Write([]byte(`{"status":200}`))
	})

	err := c.Update(context.Background(), "a1", &models.EventUpdate{
		Tag:     models.TagPtr(models.TagNoise),
		Summary: "filtered",
	})
	require.NoError(t, err)

	assert.Equal(t, "a1", got["objectId"])
	assert.Equal(t, float64(4), got["tag"])
	assert.Equal(t, "filtered", got["summary"])
	assert.NotContains(t, got, "analysis")
	assert.NotContains(t, got, "content")
}

func TestUpdateRequiresID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("no request expected")
	})
	err := c.Update(context.Background(), "", &models.EventUpdate{Summary: "x"})
	assert.Error(t, err)
}

func TestFetchUpstreamError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := c.Fetch(context.Background(), models.ClassBTC, time.Now().Add(-time.Hour), time.Now())
	assert.Error(t, err)
}
