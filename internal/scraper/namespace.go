package scraper

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/thejcannon/pypkgmapper/internal/lazyzip"
)

// explicitNamespaceRe matches the two call sites pkgutil/pkg_resources
// namespace packages use to extend their __path__, the same signal the
// rest of the ecosystem's tooling keys off of to distinguish a namespace
// package's __init__.py from an ordinary one that merely collides by name.
var explicitNamespaceRe = regexp.MustCompile(`(?m)(^.*extend_path\(__path__,\s*__name__\))|(^.*declare_namespace\(__name__\))`)

// IsExplicitNamespacePackage reads each of filepaths out of the archive at
// url (a sdist .tar.gz or a wheel/.whl) and returns the subset whose
// content matches an explicit namespace-package declaration.
func (s *Scraper) IsExplicitNamespacePackage(ctx context.Context, url string, filepaths []string) (namespaced []string, err error) {
	if strings.HasSuffix(url, ".tar.gz") {
		return s.namespaceMatchesInTarball(ctx, url, filepaths)
	}
	return s.namespaceMatchesInZip(ctx, url, filepaths)
}

func (s *Scraper) namespaceMatchesInTarball(ctx context.Context, url string, filepaths []string) (namespaced []string, err error) {
	want := make(map[string]bool, len(filepaths))
	for _, fp := range filepaths {
		want[fp] = true
	}

	req, err := httpGet(ctx, s.HTTP, url)
	if err != nil {
		err = fmt.Errorf("scraper: IsExplicitNamespacePackage(%s): %w", url, err)
		return
	}
	defer req.Close()

	gz, err := gzip.NewReader(req)
	if err != nil {
		err = fmt.Errorf("scraper: IsExplicitNamespacePackage(%s): %w", url, err)
		return
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, terr := tr.Next()
		if terr == io.EOF {
			break
		}
		if terr != nil {
			err = fmt.Errorf("scraper: IsExplicitNamespacePackage(%s): %w", url, terr)
			return
		}

		if !want[hdr.Name] {
			continue
		}

		content, rerr := io.ReadAll(tr)
		if rerr != nil {
			err = fmt.Errorf("scraper: IsExplicitNamespacePackage(%s): reading %s: %w", url, hdr.Name, rerr)
			return
		}

		if matchesExplicitNamespace(content) {
			namespaced = append(namespaced, hdr.Name)
		}
	}

	return
}

func (s *Scraper) namespaceMatchesInZip(ctx context.Context, url string, filepaths []string) (namespaced []string, err error) {
	stream, err := lazyzip.Open(ctx, url, &lazyzip.Options{HTTPClient: s.HTTP})
	if err != nil {
		err = fmt.Errorf("scraper: IsExplicitNamespacePackage(%s): %w", url, err)
		return
	}
	defer stream.Close()

	zr, err := zip.NewReader(stream, stream.Len())
	if err != nil {
		err = fmt.Errorf("scraper: IsExplicitNamespacePackage(%s): %w", url, err)
		return
	}

	byName := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		byName[f.Name] = f
	}

	for _, fp := range filepaths {
		f, ok := byName[fp]
		if !ok {
			continue
		}

		rc, oerr := f.Open()
		if oerr != nil {
			err = fmt.Errorf("scraper: IsExplicitNamespacePackage(%s): opening %s: %w", url, fp, oerr)
			return
		}

		content, rerr := io.ReadAll(rc)
		rc.Close()
		if rerr != nil {
			err = fmt.Errorf("scraper: IsExplicitNamespacePackage(%s): reading %s: %w", url, fp, rerr)
			return
		}

		if matchesExplicitNamespace(content) {
			namespaced = append(namespaced, fp)
		}
	}

	return
}

func matchesExplicitNamespace(content []byte) bool {
	normalized := strings.ReplaceAll(string(content), "\r", "")
	return explicitNamespaceRe.MatchString(normalized)
}

func httpGet(ctx context.Context, hc *http.Client, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: unexpected status %s", url, resp.Status)
	}

	return resp.Body, nil
}
