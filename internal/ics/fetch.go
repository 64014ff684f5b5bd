package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	appLog "plancal/internal/log"
)

// Feed is one subscribed iCalendar URL whose events are imported as calls.
type Feed struct {
	ID       string
	URL      string
	CallType string
}

type cachedFeed struct {
	etag         string
	lastModified string
	body         []byte
}

// Fetcher downloads feeds with conditional requests (ETag /
// Last-Modified) and keeps the last good body per URL in memory, so an
// unreachable feed keeps showing its previous calls.
type Fetcher struct {
	client *http.Client

	mu    sync.Mutex
	cache map[string]cachedFeed
}

// NewFetcher returns a Fetcher using client, or a client with a 15s
// timeout when client is nil.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Fetcher{client: client, cache: make(map[string]cachedFeed)}
}

// Fetch returns the feed body. fromCache is true when the body was served
// from memory because of a 304, a network error or a non-OK status.
func (f *Fetcher) Fetch(ctx context.Context, feed Feed) (body []byte, fromCache bool, err error) {
	if feed.URL == "" {
		return nil, false, errors.New("ics: feed URL is empty")
	}

	f.mu.Lock()
	cached, haveCached := f.cache[feed.URL]
	f.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return nil, false, err
	}
	// Conditional headers from the last good response.
	if cached.etag != "" {
		req.Header.Set("If-None-Match", cached.etag)
	}
	if cached.lastModified != "" {
		req.Header.Set("If-Modified-Since", cached.lastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		// Network error; fall back to the cached body if there is one.
		if haveCached {
			appLog.Error("ics fetch network error, using cached body", err, "id", feed.ID, "url", redactURL(feed.URL))
			return cached.body, true, nil
		}
		return nil, false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// Fresh content; remember it together with its validators.
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, false, err
		}
		f.mu.Lock()
		f.cache[feed.URL] = cachedFeed{
			etag:         resp.Header.Get("ETag"),
			lastModified: resp.Header.Get("Last-Modified"),
			body:         data,
		}
		f.mu.Unlock()
		appLog.Debug("ics fetch success", "id", feed.ID, "url", redactURL(feed.URL), "bytes", len(data))
		return data, false, nil

	case http.StatusNotModified:
		// 304 without a cached body means the server and we disagree.
		if !haveCached {
			return nil, false, errors.New("ics: 304 Not Modified without a cached body")
		}
		return cached.body, true, nil

	default:
		// Non-OK status: keep serving the last good copy.
		if haveCached {
			appLog.Warn("ics fetch non-OK, using cached body", "id", feed.ID, "url", redactURL(feed.URL), "status", resp.StatusCode)
			return cached.body, true, nil
		}
		return nil, false, fmt.Errorf("ics: fetch %s: %s", redactURL(feed.URL), resp.Status)
	}
}

// redactURL keeps only scheme and host; feed URLs usually embed a secret
// token in the path or query.
func redactURL(u string) string {
	const redacted = "/...(redacted)"
	i := strings.Index(u, "://")
	if i < 0 {
		return "ics://...(redacted)"
	}
	rest := u[i+3:]
	// Cut at the first slash after the host.
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		rest = rest[:j]
	}
	return u[:i+3] + rest + redacted
}
