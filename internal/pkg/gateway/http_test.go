package gateway

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-planner/internal/app/models"
)

var seoul = models.Location{Latitude: 37.5665, Longitude: 126.9780, Label: "Seoul"}

func newTestGateway(t *testing.T, handler http.HandlerFunc) *HTTPGateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPGateway(HTTPConfig{
		BaseURL:    srv.URL,
		ListPath:   "/api/getList",
		SearchPath: "/api/llm-recommend",
		Timeout:    2 * time.Second,
		Breaker:    BreakerConfig{FailureThreshold: 2, OpenFor: time.Minute},
		Client:     srv.Client(),
	}, zap.NewNop(), nil)
}

func TestHTTPGateway_ListCandidatesRequestShape(t *testing.T) {
	var got map[string]any
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/getList", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		_, _ = w.Write([]byte(`{"results":[{"name":"Seoul Tower","type":"관광지","region":"Yongsan","imageUrl":"null"}]}`))
	})

	date := time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)
	results, err := gw.ListCandidates(context.Background(), &date, seoul)
	require.NoError(t, err)

	assert.Equal(t, "2026-10-20", got["date"])
	loc := got["startingLocation"].(map[string]any)
	assert.Equal(t, 37.5665, loc["latitude"])
	require.Len(t, results, 1)
	assert.Equal(t, "Seoul Tower", results[0].Name)
	assert.Equal(t, models.PlaceholderImage, results[0].ImageSrc())
}

func TestHTTPGateway_ListCandidatesWithoutDateSendsNull(t *testing.T) {
	var raw string
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		raw = string(body)
		_, _ = w.Write([]byte(`{}`))
	})

	results, err := gw.ListCandidates(context.Background(), nil, seoul)
	require.NoError(t, err)
	assert.Contains(t, raw, `"date":null`)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestHTTPGateway_SearchCandidatesRequestShape(t *testing.T) {
	var got searchRequest
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/llm-recommend", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		_, _ = w.Write([]byte(`{"results":[{"name":"National Museum"}]}`))
	})

	pool := models.ResultSet{{Name: "National Museum", Type: "관광지"}, {Name: "Gwangjang Market", Type: "맛집"}}
	results, err := gw.SearchCandidates(context.Background(), "조용한 실내 박물관", pool)
	require.NoError(t, err)

	assert.Equal(t, "조용한 실내 박물관", got.UserInput)
	assert.Equal(t, []models.Place(pool), got.ExamplePlaces)
	assert.Equal(t, []string{"National Museum"}, results.Names())
}

func TestHTTPGateway_Errors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		isServer    bool
		isTransport bool
		message     string
	}{
		{name: "Error payload on 200", status: 200, body: `{"error":"위치 정보가 올바르지 않습니다"}`, isServer: true, message: "위치 정보가 올바르지 않습니다"},
		{name: "Error payload on 500", status: 500, body: `{"error":"LLM quota exceeded"}`, isServer: true, message: "LLM quota exceeded"},
		{name: "Non-2xx without body", status: 502, body: ``, isTransport: true},
		{name: "Non-2xx with html", status: 503, body: `<html>down</html>`, isTransport: true},
		{name: "Garbage on 200", status: 200, body: `not json`, isTransport: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})

			_, err := gw.ListCandidates(context.Background(), nil, seoul)
			require.Error(t, err)

			se, isServer := models.IsServerError(err)
			assert.Equal(t, tc.isServer, isServer)
			assert.Equal(t, tc.isTransport, models.IsTransportError(err))
			if tc.isServer {
				assert.Equal(t, tc.message, se.Message)
			}
		})
	}
}

func TestHTTPGateway_BreakerOpensAfterFailures(t *testing.T) {
	var calls atomic.Int32
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	for i := 0; i < 4; i++ {
		_, err := gw.ListCandidates(context.Background(), nil, seoul)
		assert.True(t, models.IsTransportError(err))
	}
	assert.Equal(t, int32(2), calls.Load(), "open circuit must stop calling the backend")
}

func TestHTTPGateway_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	gw := NewHTTPGateway(HTTPConfig{
		BaseURL:  srv.URL,
		ListPath: "/api/getList",
		Timeout:  50 * time.Millisecond,
		Client:   srv.Client(),
	}, zap.NewNop(), nil)

	_, err := gw.ListCandidates(context.Background(), nil, seoul)
	assert.True(t, models.IsTransportError(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNormalizePlaces(t *testing.T) {
	img := " https://x/y.png "
	raw := []wirePlace{
		{Name: "  Seoul Tower ", Type: "관광지", ImageURL: &img},
		{Name: ""},
		{Name: "   "},
		{Name: "Seoul Tower", Type: "duplicate"},
		{Name: "Gwangjang Market", Category: "맛집"},
	}

	out := normalizePlaces(raw, zap.NewNop())

	assert.Equal(t, []string{"Seoul Tower", "Gwangjang Market"}, out.Names())
	assert.Equal(t, "관광지", out[0].Type)
	assert.Equal(t, "https://x/y.png", out[0].ImageURL)
	assert.Equal(t, "", out[1].ImageURL)
}
