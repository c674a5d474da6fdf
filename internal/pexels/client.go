// Package pexels adapts the Pexels curated-photos API as the puzzle's image
// provider. The provider is best-effort: when it is down, slow or
// misbehaving, callers get a fixed fallback photo instead of an error.
package pexels

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL = "https://api.pexels.com/v1"
	DefaultTimeout = 10 * time.Second

	perPage = 80
	maxPage = 100

	// Pexels "large2x" renditions stay well under this.
	maxImageBytes = 32 << 20
)

// FallbackPhoto is returned whenever the curated API cannot be reached.
var FallbackPhoto = Photo{
	ID:           "3945683",
	URL:          "https://images.pexels.com/photos/3945683/pexels-photo-3945683.jpeg",
	Photographer: "Default",
}

// Photo is a provider-neutral photo reference.
type Photo struct {
	ID           string
	URL          string
	Photographer string
}

type Client struct {
	apiKey  string
	baseURL string
	httpc   *http.Client
	log     logrus.FieldLogger

	// rng is injected so page and photo selection are deterministic under
	// test. *rand.Rand is not safe for concurrent use, hence the lock.
	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewClient builds a client with a bounded request timeout. log and rng may
// be nil; a nil rng gets a time-seeded source.
func NewClient(apiKey string, timeout time.Duration, log logrus.FieldLogger, rng *rand.Rand) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		logger := logrus.New()
		logger.SetLevel(logrus.WarnLevel)
		log = logger
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		httpc:   &http.Client{Timeout: timeout},
		log:     log,
		rng:     rng,
	}
}

func (c *Client) randIntn(n int) int {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	return c.rng.Intn(n)
}

type photoSource struct {
	Large2x string `json:"large2x"`
	Large   string `json:"large"`
	Medium  string `json:"medium"`
	Small   string `json:"small"`
}

type apiPhoto struct {
	ID           int64       `json:"id"`
	Photographer string      `json:"photographer"`
	Src          photoSource `json:"src"`
}

type curatedResponse struct {
	Photos []apiPhoto `json:"photos"`
}

// Random picks one photo from a random page of the curated feed. Timeouts and
// API errors are recovered locally: the caller always gets a usable photo
// reference, never an error.
func (c *Client) Random(ctx context.Context) Photo {
	page := c.randIntn(maxPage) + 1

	photo, err := c.curated(ctx, page)
	if err != nil {
		c.log.WithError(err).Warn("pexels unavailable, using fallback photo")
		return FallbackPhoto
	}
	return photo
}

func (c *Client) curated(ctx context.Context, page int) (Photo, error) {
	url := fmt.Sprintf("%s/curated?per_page=%d&page=%d", c.baseURL, perPage, page)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Photo{}, fmt.Errorf("build curated request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return Photo{}, fmt.Errorf("curated request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Photo{}, fmt.Errorf("curated request: unexpected status %d", resp.StatusCode)
	}

	var body curatedResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Photo{}, fmt.Errorf("decode curated response: %w", err)
	}
	if len(body.Photos) == 0 {
		return Photo{}, fmt.Errorf("curated page %d is empty", page)
	}

	pick := body.Photos[c.randIntn(len(body.Photos))]
	url = firstNonEmpty(pick.Src.Large2x, pick.Src.Large, pick.Src.Medium, pick.Src.Small)
	if url == "" {
		return Photo{}, fmt.Errorf("photo %d has no usable source url", pick.ID)
	}

	return Photo{
		ID:           strconv.FormatInt(pick.ID, 10),
		URL:          url,
		Photographer: pick.Photographer,
	}, nil
}

// Download fetches the pixel bytes behind a photo URL. Unlike Random, a
// failure here is surfaced: without bytes there is nothing to crop.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download image: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("read image body: %w", err)
	}
	return data, nil
}

func firstNonEmpty(candidates ...string) string {
	for _, s := range candidates {
		if s != "" {
			return s
		}
	}
	return ""
}
