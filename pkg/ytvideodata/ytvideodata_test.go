package ytvideodata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseID(t *testing.T) {
	cases := map[string]string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ":          "dQw4w9WgXcQ",
		"https://youtube.com/watch?feature=share&v=dQw4w9WgXcQ": "dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ?t=42":                     "dQw4w9WgXcQ",
		"youtu.be/dQw4w9WgXcQ":                                  "dQw4w9WgXcQ",
		"https://m.youtube.com/shorts/dQw4w9WgXcQ":              "dQw4w9WgXcQ",
		"https://www.youtube.com/embed/dQw4w9WgXcQ":             "dQw4w9WgXcQ",
		"dQw4w9WgXcQ":                                           "dQw4w9WgXcQ",
		"https://youtu.be/abc123":                               "abc123",
	}
	for raw, want := range cases {
		id, ok := ParseID(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, id, raw)
	}

	for _, raw := range []string{"", "https://vimeo.com/123", "https://www.youtube.com/watch?v=bad%20id", "https://youtube.com/channel/abc"} {
		_, ok := ParseID(raw)
		assert.False(t, ok, raw)
	}
}

func TestGet(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oembed", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("url") {
		case "https://www.youtube.com/watch?v=embeddable1":
			w.Write([]byte(`{"title":"Embeddable","author_name":"someone"}`))
		case "https://www.youtube.com/watch?v=privatevid1":
			w.WriteHeader(http.StatusUnauthorized)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})
	mux.HandleFunc("/privatevid1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>Private - YouTube</title><link itemprop="name" content="owner"></head></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(time.Second)
	c.oembedURL = srv.URL + "/oembed"
	c.pageURL = srv.URL + "/"

	data, err := c.Get(context.Background(), "embeddable1")
	require.NoError(t, err)
	assert.Equal(t, "Embeddable", data.Title)

	data, err = c.Get(context.Background(), "privatevid1")
	require.NoError(t, err)
	assert.Equal(t, "Private", data.Title, "falls back to the watch page")
	assert.Equal(t, "owner", data.AuthorName)

	_, err = c.Get(context.Background(), "missingvid1")
	assert.ErrorIs(t, err, ErrVideoNotFound)
}
