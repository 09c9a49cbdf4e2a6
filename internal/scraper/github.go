package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
)

// githubReleasesURL is the pinned GitHub Releases mirror consulted when a
// package publishes no wheel to PyPI's simple index.
const githubReleasesURL = "https://api.github.com/repos/thejcannon/keeping-it-wheel/releases?per_page=100&page=%d"

type githubRelease struct {
	TagName string `json:"tag_name"`
	Assets  []struct {
		BrowserDownloadURL string `json:"browser_download_url"`
	} `json:"assets"`
}

// githubReleaseIndex lazily builds, and caches for the process lifetime, a
// map from package name to its mirrored wheel's download URL.
type githubReleaseIndex struct {
	http *http.Client

	once sync.Once
	urls map[string]string
	err  error
}

func newGithubReleaseIndex(hc *http.Client) *githubReleaseIndex {
	return &githubReleaseIndex{http: hc}
}

func (g *githubReleaseIndex) urlFor(ctx context.Context, packageName string) (string, error) {
	g.once.Do(func() { g.urls, g.err = g.build(ctx) })
	if g.err != nil {
		return "", g.err
	}
	return g.urls[packageName], nil
}

func (g *githubReleaseIndex) build(ctx context.Context) (map[string]string, error) {
	result := make(map[string]string)
	token := os.Getenv("GH_TOKEN")

	for page := 1; ; page++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(githubReleasesURL, page), nil)
		if err != nil {
			return nil, fmt.Errorf("scraper: github release index: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Token "+token)
		}

		resp, err := g.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("scraper: github release index: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			resp.Body.Close()
			return nil, fmt.Errorf("scraper: github release index: unexpected status %s", resp.Status)
		}

		var releases []githubRelease
		err = json.NewDecoder(resp.Body).Decode(&releases)
		link := resp.Header.Get("Link")
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("scraper: github release index: decoding page %d: %w", page, err)
		}

		for _, release := range releases {
			if len(release.Assets) == 0 {
				continue
			}
			name := release.TagName
			if idx := strings.LastIndex(name, "-"); idx >= 0 {
				name = name[:idx]
			}
			result[name] = release.Assets[0].BrowserDownloadURL
		}

		if !strings.Contains(link, `rel="next"`) {
			return result, nil
		}
	}
}
