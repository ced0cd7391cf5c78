package tmdb

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"showcase/catalogservice/internal/metrics"
)

const (
	defaultImageBaseURL = "https://image.tmdb.org/t/p"
	maxImageBytes       = int64(20 * 1024 * 1024)
)

var ErrInvalidImage = errors.New("invalid image request")

// Poster, logo, backdrop, profile and still sizes served by the CDN.
var imageSizes = map[string]bool{
	"w45": true, "w92": true, "w154": true, "w185": true, "w300": true,
	"w342": true, "w500": true, "w780": true, "w1280": true, "h632": true,
	"original": true,
}

type ImageBlob struct {
	ContentType string
	Body        []byte
}

// ImageURL returns the CDN address of file at size. Unknown sizes map to w300.
func (c *Client) ImageURL(size, file string) string {
	if !imageSizes[size] {
		size = "w300"
	}
	return c.imageBaseURL + "/" + size + "/" + strings.TrimPrefix(file, "/")
}

// FetchImage downloads a poster or logo from the image CDN. The CDN is not
// rate limited, so the request bypasses the limiter; transient failures are
// retried with backoff.
func (c *Client) FetchImage(ctx context.Context, size, file string) (ImageBlob, error) {
	if !imageSizes[size] {
		return ImageBlob{}, ErrInvalidImage
	}
	if !validImagePath(file) {
		return ImageBlob{}, ErrInvalidImage
	}

	startedAt := time.Now()
	defer func() {
		metrics.ImageProxyDuration.Observe(time.Since(startedAt).Seconds())
	}()

	var blob ImageBlob
	err := retryWithBackoff(ctx, c.imageRetry, func() error {
		var err error
		blob, err = c.fetchImageOnce(ctx, c.ImageURL(size, file))
		return err
	})
	return blob, err
}

func (c *Client) fetchImageOnce(ctx context.Context, target string) (ImageBlob, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return ImageBlob{}, err
	}
	req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")

	resp, err := c.http.Do(req)
	if err != nil {
		return ImageBlob{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ImageBlob{}, &StatusError{StatusCode: resp.StatusCode}
	}
	if resp.ContentLength > maxImageBytes {
		return ImageBlob{}, ErrInvalidImage
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return ImageBlob{}, err
	}

	contentType := strings.TrimSpace(resp.Header.Get("Content-Type"))
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return ImageBlob{}, ErrInvalidImage
	}
	return ImageBlob{ContentType: contentType, Body: body}, nil
}

// validImagePath accepts CDN file paths such as "/kqjL17yufvn9OVLyXYpvtyrFfak.jpg".
func validImagePath(file string) bool {
	if !strings.HasPrefix(file, "/") || strings.Count(file, "/") != 1 {
		return false
	}
	name := path.Base(file)
	if name == "." || name == "/" || strings.Contains(name, "..") {
		return false
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".webp", ".svg":
		return true
	default:
		return false
	}
}
