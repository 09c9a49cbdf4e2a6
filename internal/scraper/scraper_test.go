package scraper

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strconv"
	"testing"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Flask":           "flask",
		"zope.interface":  "zope-interface",
		"some__pkg--name": "some-pkg-name",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
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
		if _, err := fw.Write(content); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return buf.Bytes()
}

func TestWheelURLsAndScrapePackage(t *testing.T) {
	wheelBytes := buildWheel(t, map[string][]byte{
		"demo/__init__.py": []byte("print('hi')"),
		"demo/mod.py":      []byte("x = 1"),
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/simple/demo/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>
			<a href="../../packages/demo-1.0-py3-none-any.whl#sha256=abc">demo-1.0-py3-none-any.whl</a>
			<a href="../../packages/demo-1.0.tar.gz">demo-1.0.tar.gz</a>
		</body></html>`))
	})
	mux.HandleFunc("/packages/demo-1.0-py3-none-any.whl", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", strconv.Itoa(len(wheelBytes)))
			return
		}
		rangeHeader := r.Header.Get("Range")
		if rangeHeader == "" {
			w.Write(wheelBytes)
			return
		}
		var start, end int
		if _, err := fmt.Sscanf(rangeHeader, "bytes=%d-%d", &start, &end); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if end >= len(wheelBytes) {
			end = len(wheelBytes) - 1
		}
		w.WriteHeader(http.StatusPartialContent)
		w.Write(wheelBytes[start : end+1])
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := New(srv.Client())
	s.IndexURL = srv.URL + "/simple/"

	urls, err := s.WheelURLs(context.Background(), "demo")
	if err != nil {
		t.Fatalf("WheelURLs: %v", err)
	}

	want := []string{srv.URL + "/packages/demo-1.0-py3-none-any.whl"}
	if !reflect.DeepEqual(urls, want) {
		t.Fatalf("WheelURLs = %v, want %v", urls, want)
	}

	info, filepaths, err := s.ScrapeWheel(context.Background(), urls[0])
	if err != nil {
		t.Fatalf("ScrapeWheel: %v", err)
	}

	if info.PackageName != "demo" || info.PackageVersion != "1.0" {
		t.Fatalf("info = %+v, want package demo version 1.0", info)
	}

	wantFiles := []string{"demo/__init__.py", "demo/mod.py"}
	for _, f := range wantFiles {
		found := false
		for _, got := range filepaths {
			if got == f {
				found = true
			}
		}
		if !found {
			t.Fatalf("filepaths %v missing %s", filepaths, f)
		}
	}
}

func TestIsExplicitNamespacePackageZip(t *testing.T) {
	wheelBytes := buildWheel(t, map[string][]byte{
		"ns/__init__.py":     []byte("__import__('pkg_resources').declare_namespace(__name__)"),
		"ns/sub/__init__.py": []byte("# normal package\n"),
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/ns.whl", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", strconv.Itoa(len(wheelBytes)))
			return
		}
		rangeHeader := r.Header.Get("Range")
		if rangeHeader == "" {
			w.Write(wheelBytes)
			return
		}
		var start, end int
		fmt.Sscanf(rangeHeader, "bytes=%d-%d", &start, &end)
		if end >= len(wheelBytes) {
			end = len(wheelBytes) - 1
		}
		w.WriteHeader(http.StatusPartialContent)
		w.Write(wheelBytes[start : end+1])
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := New(srv.Client())
	namespaced, err := s.IsExplicitNamespacePackage(context.Background(), srv.URL+"/ns.whl",
		[]string{"ns/__init__.py", "ns/sub/__init__.py"})
	if err != nil {
		t.Fatalf("IsExplicitNamespacePackage: %v", err)
	}

	want := []string{"ns/__init__.py"}
	if !reflect.DeepEqual(namespaced, want) {
		t.Fatalf("namespaced = %v, want %v", namespaced, want)
	}
}
