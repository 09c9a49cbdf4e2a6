package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/thejcannon/pypkgmapper/internal/scraper"
	"github.com/thejcannon/pypkgmapper/internal/store"
)

func TestChunked(t *testing.T) {
	got := chunked([]int{1, 2, 3, 4, 5}, 2)
	want := [][]int{{1, 2}, {3, 4}, {5}}

	if len(got) != len(want) {
		t.Fatalf("chunked produced %d chunks, want %d", len(got), len(want))
	}
	for i := range want {
		for j := range want[i] {
			if got[i][j] != want[i][j] {
				t.Fatalf("chunk %d = %v, want %v", i, got[i], want[i])
			}
		}
	}
}

func TestChunkedEmpty(t *testing.T) {
	if got := chunked([]int{}, 5); got != nil {
		t.Fatalf("chunked(empty) = %v, want nil", got)
	}
}

func buildWheel(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		fw.Write(content)
	}
	w.Close()
	return buf.Bytes()
}

func TestRunScrapesAndComputesPrefixes(t *testing.T) {
	wheelBytes := buildWheel(t, map[string][]byte{
		"demo/__init__.py": []byte("x = 1"),
		"demo/sub/mod.py":  []byte("y = 2"),
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/simple/demo/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<a href="/packages/demo-1.0-py3-none-any.whl">demo-1.0-py3-none-any.whl</a>`))
	})
	mux.HandleFunc("/packages/demo-1.0-py3-none-any.whl", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", strconv.Itoa(len(wheelBytes)))
			return
		}
		start, end := 0, len(wheelBytes)-1
		if rh := r.Header.Get("Range"); rh != "" {
			fmt.Sscanf(rh, "bytes=%d-%d", &start, &end)
			if end >= len(wheelBytes) {
				end = len(wheelBytes) - 1
			}
		}
		w.WriteHeader(http.StatusPartialContent)
		w.Write(wheelBytes[start : end+1])
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	dir := t.TempDir()
	st, err := store.Open(context.Background(), filepath.Join(dir, "index.sqlite"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer st.Close()

	sc := scraper.New(srv.Client())
	sc.IndexURL = srv.URL + "/simple/"

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	p := New(st, sc, logger)
	p.Concurrency = 4

	if err := p.Run(context.Background(), []string{"demo"}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	prefixes, err := st.PackagePrefixes(context.Background(), "demo")
	if err != nil {
		t.Fatalf("PackagePrefixes: %v", err)
	}

	if len(prefixes) != 1 || prefixes[0] != "demo" {
		t.Fatalf("prefixes = %v, want [demo]", prefixes)
	}
}
