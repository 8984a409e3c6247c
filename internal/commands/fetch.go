package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"
)

// maxReferenceBytes caps a downloaded reference image.
const maxReferenceBytes = 10 << 20

var errNotImage = errors.New("attachment is not an image")

// ImageFetcher downloads an attachment.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) (data []byte, mimeType string, err error)
}

// HTTPFetcher downloads attachments from Discord's CDN.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates an HTTPFetcher.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{client: &http.Client{Timeout: 30 * time.Second}}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download attachment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to download attachment: status %d", resp.StatusCode)
	}

	mimeType := imageMIME(resp.Header.Get("Content-Type"))
	if mimeType == "" {
		return nil, "", errNotImage
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReferenceBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read attachment: %w", err)
	}
	if len(data) > maxReferenceBytes {
		return nil, "", fmt.Errorf("attachment is larger than %d MB", maxReferenceBytes>>20)
	}
	return data, mimeType, nil
}

// imageMIME returns the media type if contentType is an image, else "".
func imageMIME(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mt, "image/") {
		return ""
	}
	return mt
}
