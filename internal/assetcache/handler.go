package assetcache

import (
	"errors"
	"net/http"
	"strings"
)

// Handler serves GET requests from the cache, falling back to upstream and
// caching 200 responses in the dynamic partition. When upstream is down,
// page navigations fall back to the cached /index.html.
func (c *Cache) Handler(upstream string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		path := r.URL.Path
		if path == "" {
			path = "/"
		}
		if r.URL.RawQuery != "" {
			path += "?" + r.URL.RawQuery
		}

		if e, err := c.Get(path); err == nil {
			c.logger.Debug("Serving from cache", "path", path)
			serve(w, e, "HIT")
			return
		} else if !errors.Is(err, ErrNotCached) {
			c.logger.Error("Failed to read asset cache", "path", path, "error", err)
		}

		if upstream == "" {
			http.NotFound(w, r)
			return
		}

		e, status, err := c.fetch(r.Context(), upstream, path)
		if err != nil {
			c.logger.Error("Fetch failed", "path", path, "error", err)
			if isNavigation(r) {
				if fallback, ferr := c.Get("/index.html"); ferr == nil {
					serve(w, fallback, "FALLBACK")
					return
				}
			}
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
			return
		}

		if status == http.StatusOK {
			if err := c.Put(Dynamic, e); err != nil {
				c.logger.Warn("Failed to cache dynamic resource", "path", path, "error", err)
			} else {
				c.logger.Debug("Caching dynamic resource", "path", path)
			}
		}

		if e.ContentType != "" {
			w.Header().Set("Content-Type", e.ContentType)
		}
		w.Header().Set("X-Cache", "MISS")
		w.WriteHeader(status)
		if _, err := w.Write(e.Body); err != nil {
			c.logger.Debug("Failed to write asset", "error", err)
		}
	})
}

func serve(w http.ResponseWriter, e *Entry, status string) {
	if e.ContentType != "" {
		w.Header().Set("Content-Type", e.ContentType)
	}
	if e.ModelID != "" {
		w.Header().Set("X-Model-ID", e.ModelID)
		w.Header().Set("X-Model-Version", e.Version)
	}
	w.Header().Set("X-Cache", status)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(e.Body)
}

func isNavigation(r *http.Request) bool {
	if r.Header.Get("Sec-Fetch-Mode") == "navigate" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
