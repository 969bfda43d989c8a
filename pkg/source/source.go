package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/xhad/docchat/internal/models"
	"golang.org/x/time/rate"
)

const maxDocumentBytes = 64 << 20 // refuse to buffer uploads larger than 64 MiB

type SourceConfig struct {
	// URLTemplate resolves a document id to its download URL, e.g.
	// "https://files.example.com/%s". Ids that are already absolute
	// http(s) URLs are fetched directly.
	URLTemplate string
	Timeout     time.Duration
	RateLimit   float64 // requests per second against the object store
}

// HTTPSource fetches document content from the upload subsystem's
// object store over HTTP.
type HTTPSource struct {
	config  SourceConfig
	client  *http.Client
	limiter *rate.Limiter
}

func NewWithConfig(config SourceConfig) (*HTTPSource, error) {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 5
	}
	if config.URLTemplate != "" && !strings.Contains(config.URLTemplate, "%s") {
		return nil, fmt.Errorf("url template must contain a %%s placeholder")
	}

	return &HTTPSource{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}, nil
}

func (s *HTTPSource) Fetch(ctx context.Context, documentID string) ([]byte, string, error) {
	downloadURL, err := s.resolveURL(documentID)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", models.ErrDocumentFetch, err)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, "", fmt.Errorf("%w: %v", models.ErrDocumentFetch, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", models.ErrDocumentFetch, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", models.ErrDocumentFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("%w: unexpected status %d for %s",
			models.ErrDocumentFetch, resp.StatusCode, downloadURL)
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, "", fmt.Errorf("%w: reading body: %v", models.ErrDocumentFetch, err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}

	return content, mimeType, nil
}

func (s *HTTPSource) resolveURL(documentID string) (string, error) {
	raw := documentID
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		if s.config.URLTemplate == "" {
			return "", fmt.Errorf("no url template configured for document id %q", documentID)
		}
		raw = fmt.Sprintf(s.config.URLTemplate, url.PathEscape(documentID))
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("document url %q has no host", raw)
	}
	return parsed.String(), nil
}
