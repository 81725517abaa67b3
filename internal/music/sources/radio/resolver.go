package radio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

var validContentTypes = []string{
	"audio/",
	"video/",
	"application/vnd.apple.mpegurl",
	"application/x-mpegurl",
	"application/ogg",
	"application/x-scpls",
	"application/xspf+xml",
	"application/octet-stream", // risky but often used for streams
}

// streamInfo is what a stream URL told us about itself.
type streamInfo struct {
	ContentType string
	FinalURL    string
	Name        string // icy-name, if the server sent one
	Genre       string
}

// Validator checks streaming links by headers and extension heuristics.
type Validator struct {
	Client *http.Client
}

func NewValidator() *Validator {
	return &Validator{
		Client: &http.Client{
			Timeout: 5 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
	}
}

// Check fetches rawURL and rejects anything that does not look like audio.
func (v *Validator) Check(ctx context.Context, rawURL string) (streamInfo, error) {
	p, err := v.fetch(ctx, rawURL)
	if err != nil {
		return streamInfo{}, fmt.Errorf("failed to fetch content type: %w", err)
	}
	if isAllowedType(p.ContentType) || isLikelyPlaylist(p.FinalURL) {
		return p, nil
	}
	return streamInfo{}, fmt.Errorf("invalid stream content-type: %q, url: %s", p.ContentType, p.FinalURL)
}

func (v *Validator) fetch(ctx context.Context, rawURL string) (streamInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return streamInfo{}, fmt.Errorf("request creation failed: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Icy-MetaData", "1")

	resp, err := v.Client.Do(req)
	if err != nil || resp.StatusCode >= 400 {
		if resp != nil {
			resp.Body.Close()
		}
		// Plenty of Icecast/Shoutcast servers refuse HEAD.
		req.Method = http.MethodGet
		resp, err = v.Client.Do(req)
		if err != nil {
			return streamInfo{}, fmt.Errorf("GET fallback failed: %w", err)
		}
		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return streamInfo{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
	}
	defer resp.Body.Close()
	// A live stream never ends; read a little so the connection can be reused
	// for short bodies and otherwise just close it.
	_, _ = io.CopyN(io.Discard, resp.Body, 512)

	return streamInfo{
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    resp.Request.URL.String(),
		Name:        strings.TrimSpace(resp.Header.Get("icy-name")),
		Genre:       strings.TrimSpace(resp.Header.Get("icy-genre")),
	}, nil
}

func isAllowedType(contentType string) bool {
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	contentType = strings.ToLower(contentType)
	for _, allowed := range validContentTypes {
		if strings.HasPrefix(contentType, allowed) {
			return true
		}
	}
	return false
}

func isLikelyPlaylist(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	switch strings.ToLower(path.Ext(u.Path)) {
	case ".m3u", ".m3u8", ".pls", ".xspf", ".asx":
		return true
	}
	return false
}
