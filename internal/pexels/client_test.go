package pexels

import (
	"context"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const curatedBody = `{
	"photos": [
		{
			"id": 101,
			"photographer": "Ana",
			"src": {
				"large2x": "https://example.com/101-large2x.jpg",
				"large": "https://example.com/101-large.jpg",
				"medium": "https://example.com/101-medium.jpg",
				"small": "https://example.com/101-small.jpg"
			}
		}
	]
}`

func newTestClient(baseURL string) *Client {
	c := NewClient("test-key", time.Second, nil, nil)
	c.baseURL = baseURL
	return c
}

func TestClient_RandomPicksCuratedPhoto(t *testing.T) {
	var gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/curated", r.URL.Path)
		assert.Equal(t, "80", r.URL.Query().Get("per_page"))
		w.Write([]byte(curatedBody))
	}))
	defer ts.Close()

	photo := newTestClient(ts.URL).Random(context.Background())

	assert.Equal(t, "test-key", gotAuth)
	assert.Equal(t, "101", photo.ID)
	assert.Equal(t, "Ana", photo.Photographer)
	// The best available rendition wins.
	assert.Equal(t, "https://example.com/101-large2x.jpg", photo.URL)
}

func TestClient_RandomPrefersNextRendition(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"photos":[{"id":5,"photographer":"Bo","src":{"medium":"https://example.com/5-medium.jpg"}}]}`))
	}))
	defer ts.Close()

	photo := newTestClient(ts.URL).Random(context.Background())
	assert.Equal(t, "https://example.com/5-medium.jpg", photo.URL)
}

func TestClient_RandomFallsBackOnServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	photo := newTestClient(ts.URL).Random(context.Background())
	assert.Equal(t, FallbackPhoto, photo)
}

func TestClient_RandomFallsBackOnEmptyPage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"photos":[]}`))
	}))
	defer ts.Close()

	photo := newTestClient(ts.URL).Random(context.Background())
	assert.Equal(t, FallbackPhoto, photo)
}

func TestClient_RandomFallsBackOnTimeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(curatedBody))
	}))
	defer ts.Close()

	c := NewClient("test-key", 20*time.Millisecond, nil, nil)
	c.baseURL = ts.URL

	photo := c.Random(context.Background())
	assert.Equal(t, FallbackPhoto, photo)
}

func TestClient_RandomDeterministicWithSeededSource(t *testing.T) {
	multiPhotoBody := `{"photos":[
		{"id":1,"photographer":"A","src":{"large":"https://example.com/1.jpg"}},
		{"id":2,"photographer":"B","src":{"large":"https://example.com/2.jpg"}},
		{"id":3,"photographer":"C","src":{"large":"https://example.com/3.jpg"}}
	]}`

	run := func(seed int64) (string, string) {
		var gotPage string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPage = r.URL.Query().Get("page")
			w.Write([]byte(multiPhotoBody))
		}))
		defer ts.Close()

		c := NewClient("test-key", time.Second, nil, rand.New(rand.NewSource(seed)))
		c.baseURL = ts.URL

		photo := c.Random(context.Background())
		return gotPage, photo.ID
	}

	// The same seed requests the same page and picks the same photo
	page1, id1 := run(42)
	page2, id2 := run(42)
	assert.Equal(t, page1, page2)
	assert.Equal(t, id1, id2)
}

func TestClient_Download(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.jpg" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("raw-image-bytes"))
	}))
	defer ts.Close()

	c := newTestClient(ts.URL)

	data, err := c.Download(context.Background(), ts.URL+"/photo.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("raw-image-bytes"), data)

	_, err = c.Download(context.Background(), ts.URL+"/missing.jpg")
	assert.Error(t, err)
}
