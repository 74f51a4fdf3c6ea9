package enrich

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsPulse/pkg/logger"
)

func TestEnrichStripsMarkup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><head><style>p{color:red}</style><script>var x=1;</script></head>
			<body><h1>ETF approved</h1><p>Spot inflows  surged.</p></body></html>`))
	}))
	defer srv.Close()

	c := New(Config{}, logger.Nop())
	text, err := c.Enrich(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ETF approved Spot inflows surged.", text)
}

func TestEnrichTruncates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<p>" + strings.Repeat("a", 500) + "</p>"))
	}))
	defer srv.Close()

	c := New(Config{MaxChars: 100}, logger.Nop())
	text, err := c.Enrich(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, text, 100)
}

func TestEnrichFailures(t *testing.T) {
	c := New(Config{}, logger.Nop())

	_, err := c.Enrich(context.Background(), "")
	assert.Error(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err = c.Enrich(context.Background(), srv.URL)
	assert.Error(t, err)
}
