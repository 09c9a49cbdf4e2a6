// Package scraper discovers wheel download URLs for a Python package name
// and extracts the file listing from inside one, using the lazy remote ZIP
// stream so only the wheel's central directory -- not its full contents --
// is ever downloaded for that purpose.
package scraper

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/thejcannon/pypkgmapper/internal/lazyzip"
)

// normalizeRe collapses runs of hyphens, underscores, and dots, matching
// PyPI's own package-name normalization (PEP 503).
var normalizeRe = regexp.MustCompile(`[-_.]+`)

// Normalize canonicalizes a package name the way PyPI's simple index keys
// its package directories.
func Normalize(name string) string {
	return strings.ToLower(normalizeRe.ReplaceAllString(name, "-"))
}

// WheelInfo is the package-level metadata recovered from a wheel's
// filename and its download URL.
type WheelInfo struct {
	PackageName    string
	PackageVersion string
	URL            string
}

// defaultIndexURL is PyPI's own simple index, used unless IndexURL
// overrides it.
const defaultIndexURL = "https://pypi.org/simple/"

// Scraper discovers and reads wheels for package names.
type Scraper struct {
	HTTP *http.Client

	// IndexURL is the base URL of the PyPI-compatible simple index,
	// e.g. "https://pypi.org/simple/". Defaults to PyPI itself; tests
	// override it to point at an httptest.Server fixture.
	IndexURL string

	gh *githubReleaseIndex
}

// New returns a Scraper using hc for all requests, falling back to
// http.DefaultClient if hc is nil.
func New(hc *http.Client) *Scraper {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Scraper{HTTP: hc, IndexURL: defaultIndexURL, gh: newGithubReleaseIndex(hc)}
}

// WheelURLs fetches <IndexURL>/<name>/ and returns every anchor href
// ending in .whl, resolved against the index page's URL, in the order the
// index lists them.
func (s *Scraper) WheelURLs(ctx context.Context, packageName string) (urls []string, err error) {
	indexURL := s.IndexURL
	if indexURL == "" {
		indexURL = defaultIndexURL
	}
	indexURL = strings.TrimSuffix(indexURL, "/") + "/" + Normalize(packageName) + "/"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, indexURL, nil)
	if err != nil {
		err = fmt.Errorf("scraper: WheelURLs(%s): %w", packageName, err)
		return
	}

	resp, err := s.HTTP.Do(req)
	if err != nil {
		err = fmt.Errorf("scraper: WheelURLs(%s): %w", packageName, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err = fmt.Errorf("scraper: WheelURLs(%s): GET %s: unexpected status %s", packageName, indexURL, resp.Status)
		return
	}

	hrefs, err := extractHrefs(resp.Body)
	if err != nil {
		err = fmt.Errorf("scraper: WheelURLs(%s): %w", packageName, err)
		return
	}

	base := resp.Request.URL
	for _, href := range hrefs {
		href = strings.SplitN(href, "#", 2)[0]
		if !strings.HasSuffix(href, ".whl") {
			continue
		}

		ref, perr := url.Parse(href)
		if perr != nil {
			return nil, fmt.Errorf("scraper: WheelURLs(%s): href %q: %w", packageName, href, perr)
		}
		urls = append(urls, base.ResolveReference(ref).String())
	}

	return
}

// extractHrefs returns the href attribute of every anchor tag in an HTML
// document, in document order.
func extractHrefs(r io.Reader) (hrefs []string, err error) {
	tokenizer := html.NewTokenizer(r)
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			if err = tokenizer.Err(); err != nil {
				if err.Error() == "EOF" {
					err = nil
				}
				return
			}
			return
		case html.StartTagToken, html.SelfClosingTagToken:
			token := tokenizer.Token()
			if token.Data != "a" {
				continue
			}
			for _, attr := range token.Attr {
				if attr.Key == "href" {
					hrefs = append(hrefs, attr.Val)
					break
				}
			}
		}
	}
}

// ScrapeWheel opens wheelURL as a lazy remote ZIP stream, derives the
// package name and version from its filename, and returns its central
// directory's file listing without downloading the wheel's contents.
func (s *Scraper) ScrapeWheel(ctx context.Context, wheelURL string) (info WheelInfo, filepaths []string, err error) {
	name := wheelURL
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	name = strings.SplitN(name, "#", 2)[0]

	parts := strings.Split(strings.TrimSuffix(name, ".whl"), "-")
	if len(parts) < 2 {
		err = fmt.Errorf("scraper: ScrapeWheel(%s): can't parse wheel filename %q", wheelURL, name)
		return
	}

	info = WheelInfo{
		PackageName:    Normalize(parts[0]),
		PackageVersion: parts[1],
		URL:            wheelURL,
	}

	stream, err := lazyzip.Open(ctx, wheelURL, &lazyzip.Options{HTTPClient: s.HTTP})
	if err != nil {
		err = fmt.Errorf("scraper: ScrapeWheel(%s): %w", wheelURL, err)
		return
	}
	defer stream.Close()

	zr, err := zip.NewReader(stream, stream.Len())
	if err != nil {
		err = fmt.Errorf("scraper: ScrapeWheel(%s): %w", wheelURL, err)
		return
	}

	for _, f := range zr.File {
		filepaths = append(filepaths, f.Name)
	}

	return
}

// ScrapePackage resolves package name to a wheel (preferring PyPI, falling
// back to the pinned GitHub Releases mirror) and scrapes it. It returns a
// nil info and nil error if no suitable wheel could be found anywhere.
func (s *Scraper) ScrapePackage(ctx context.Context, packageName string) (info *WheelInfo, filepaths []string, err error) {
	urls, err := s.WheelURLs(ctx, packageName)
	if err != nil {
		return
	}

	if len(urls) == 0 {
		var url string
		url, err = s.gh.urlFor(ctx, packageName)
		if err != nil {
			return
		}
		if url == "" {
			return nil, nil, nil
		}
		urls = []string{url}
	}

	wheelInfo, fp, err := s.ScrapeWheel(ctx, urls[len(urls)-1])
	if err != nil {
		return
	}

	return &wheelInfo, fp, nil
}
