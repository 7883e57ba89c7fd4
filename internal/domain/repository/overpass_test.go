package repository

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/mikedld/osm-strassenraumkarte-generator/internal/domain/model"
)

func TestOverpassRepository_Fetch(t *testing.T) {
	var gotQuery, gotAgent, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotAgent = r.UserAgent()
		gotQuery = r.FormValue("data")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"elements":[]}`)
	}))
	defer srv.Close()

	repo := NewOverpassRepository(srv.URL, 5*time.Second, nil)
	body, err := repo.Fetch(context.Background(), `[out:json];(node["amenity"];);out body;`)
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, `{"elements":[]}`, string(data))
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, UserAgent, gotAgent)
	assert.Equal(t, `[out:json];(node["amenity"];);out body;`, gotQuery)
}

func TestOverpassRepository_FetchStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, "rate_limited")
	}))
	defer srv.Close()

	repo := NewOverpassRepository(srv.URL, 5*time.Second, nil)
	body, err := repo.Fetch(context.Background(), "[out:json];node;out;")

	assert.Nil(t, body)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrQueryStatus)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "rate_limited")
}

func TestOverpassRepository_FetchUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewOverpassRepository(url, time.Second, nil).Fetch(context.Background(), "q")
	require.Error(t, err)
	assert.NotErrorIs(t, err, model.ErrQueryStatus)
}

func TestOverpassRepository_LimiterHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "{}")
	}))
	defer srv.Close()

	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	repo := NewOverpassRepository(srv.URL, 5*time.Second, limiter)

	body, err := repo.Fetch(context.Background(), "q")
	require.NoError(t, err)
	body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = repo.Fetch(ctx, "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limiter")
}
