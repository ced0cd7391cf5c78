package apihttp

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"showcase/catalogservice/internal/tmdb"
)

const defaultImageSize = "w300"

// handleImageProxy serves a poster or logo from the TMDB image CDN so the
// browser never talks to the CDN directly. CDN files are content-addressed,
// so responses are cacheable.
func (s *Server) handleImageProxy(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/catalog/image" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.upstream == nil {
		writeError(w, http.StatusServiceUnavailable, "service_unavailable", "tmdb client is not configured")
		return
	}

	file := strings.TrimSpace(r.URL.Query().Get("path"))
	if file == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing path")
		return
	}
	size := strings.TrimSpace(r.URL.Query().Get("size"))
	if size == "" {
		size = defaultImageSize
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	blob, err := s.upstream.FetchImage(ctx, size, file)
	if err != nil {
		var statusErr *tmdb.StatusError
		switch {
		case errors.Is(err, tmdb.ErrInvalidImage):
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid image path or size")
		case errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound:
			writeError(w, http.StatusNotFound, "not_found", "image not found")
		case errors.As(err, &statusErr):
			// Do not forward the CDN body. Keep it generic.
			writeError(w, http.StatusBadGateway, "upstream_error", fmt.Sprintf("upstream returned HTTP %d", statusErr.StatusCode))
		default:
			s.logger.Warn("image proxy failed",
				slog.String("path", truncate(file, 80)),
				slog.String("size", size),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusBadGateway, "upstream_error", "failed to fetch image")
		}
		return
	}

	w.Header().Set("Content-Type", blob.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(blob.Body)))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(blob.Body)
}
