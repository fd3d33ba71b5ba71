// Package export renders a story's generated images into a storyboard PDF,
// one scene per page in scene order.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"

	"github.com/jackzampolin/reel/internal/types"
)

// ErrNoImages is returned when no scene has an image yet.
var ErrNoImages = errors.New("no scene has an image")

// maxImageBytes caps a single downloaded image.
const maxImageBytes = 32 << 20

// Fetcher downloads an image.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher fetches images over HTTP.
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher returns a fetcher with a request timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPFetcher{Client: &http.Client{Timeout: timeout}}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("fetch %s: image larger than %d bytes", url, maxImageBytes)
	}
	return data, nil
}

// Storyboard downloads each scene's image and returns a PDF with one page
// per image. Scenes without an image are skipped; scenes are expected in
// order.
func Storyboard(ctx context.Context, scenes []types.Scene, fetch Fetcher, logger *slog.Logger) ([]byte, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var images []io.Reader
	for _, sc := range scenes {
		if !sc.HasImage() {
			continue
		}
		data, err := fetch.Fetch(ctx, sc.ImageURL)
		if err != nil {
			return nil, fmt.Errorf("scene %d: %w", sc.Order, err)
		}
		images = append(images, bytes.NewReader(data))
	}
	if len(images) == 0 {
		return nil, ErrNoImages
	}

	imp := pdfcpu.DefaultImportConfig()
	var out bytes.Buffer
	if err := api.ImportImages(nil, &out, images, imp, nil); err != nil {
		return nil, fmt.Errorf("failed to build storyboard PDF: %w", err)
	}

	logger.Info("built storyboard", "pages", len(images), "bytes", out.Len())
	return out.Bytes(), nil
}
