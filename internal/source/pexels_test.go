package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPexelsClient_MapsResponse(t *testing.T) {
	t.Parallel()

	var gotAuth, gotPerPage string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPerPage = r.URL.Query().Get("per_page")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"photos": [
				{"width": 800, "height": 600, "alt": "a brown box",
				 "src": {"original": "https://img.test/1.jpg", "medium": "https://img.test/1_m.jpg"}},
				{"width": 0, "height": 0, "alt": "", "src": {"original": "", "medium": ""}}
			]
		}`))
	}))
	defer srv.Close()

	c := NewPexelsClient("secret", "test-agent", time.Second, nil)
	c.searchURL = srv.URL

	got, err := c.Search(context.Background(), "cardboard box", 10)
	require.NoError(t, err)
	require.Equal(t, "secret", gotAuth)
	require.Equal(t, "10", gotPerPage)
	require.Equal(t, []Candidate{{
		URL:          "https://img.test/1.jpg",
		ThumbnailURL: "https://img.test/1_m.jpg",
		Title:        "a brown box",
		Source:       "pexels",
		Width:        800,
		Height:       600,
	}}, got)
}

func TestPexelsClient_ClampsLimit(t *testing.T) {
	t.Parallel()

	var gotPerPage string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPerPage = r.URL.Query().Get("per_page")
		_, _ = w.Write([]byte(`{"photos": []}`))
	}))
	defer srv.Close()

	c := NewPexelsClient("secret", "test-agent", time.Second, nil)
	c.searchURL = srv.URL

	_, err := c.Search(context.Background(), "box", 500)
	require.NoError(t, err)
	require.Equal(t, "80", gotPerPage)
}

func TestPexelsClient_MissingKeyReturnsEmpty(t *testing.T) {
	t.Parallel()

	c := NewPexelsClient("", "test-agent", time.Second, nil)
	got, err := c.Search(context.Background(), "box", 10)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestPexelsClient_Non200IsError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewPexelsClient("secret", "test-agent", time.Second, nil)
	c.searchURL = srv.URL

	_, err := c.Search(context.Background(), "box", 10)
	require.Error(t, err)
}

func TestUnsplashClient_MapsResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Client-ID secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"results": [
				{"width": 1024, "height": 768, "description": "",
				 "alt_description": "stacked boxes",
				 "urls": {"regular": "https://img.test/2.jpg", "thumb": "https://img.test/2_t.jpg"}}
			]
		}`))
	}))
	defer srv.Close()

	c := NewUnsplashClient("secret", "test-agent", time.Second, nil)
	c.searchURL = srv.URL

	got, err := c.Search(context.Background(), "box", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "stacked boxes", got[0].Title)
	require.Equal(t, "unsplash", got[0].Source)
}
