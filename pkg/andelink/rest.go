package andelink

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"

	"github.com/andelink-audio/andelink/pkg/andelink/track"
)

var urlPattern = regexp.MustCompile(`^https?://`)

// LoadTracks resolves an identifier (URL or search query prefixed with a
// source tag) through the node's REST /loadtracks endpoint.
func (n *Node) LoadTracks(ctx context.Context, identifier string) (*track.LoadResult, error) {
	endpoint := fmt.Sprintf("%s/loadtracks?identifier=%s", n.restURL, url.QueryEscape(identifier))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("andelink: build loadtracks request: %w", err)
	}
	req.Header = n.authHeaders()

	resp, err := n.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("andelink: loadtracks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("andelink: loadtracks: unexpected status %s", resp.Status)
	}

	result := &track.LoadResult{}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return nil, fmt.Errorf("andelink: decode loadtracks response: %w", err)
	}
	return result, nil
}

// AutoSearch loads query directly when it is a URL and as a "ytsearch:" query
// otherwise.
func (n *Node) AutoSearch(ctx context.Context, query string) (*track.LoadResult, error) {
	if urlPattern.MatchString(query) {
		return n.LoadTracks(ctx, query)
	}
	return n.LoadTracks(ctx, "ytsearch:"+query)
}
