// Package prefixes computes the minimal set of nested common prefixes a
// package's Python files provide, and filters out the paths that shouldn't
// count toward that set in the first place (tests, docs, examples, and
// similar noise that isn't part of a package's public import surface).
package prefixes

import (
	"sort"
	"strings"
)

// noisePrefixes are path prefixes excluded before nested-common-prefix
// computation runs, ported from the top-level exclusion filter in the
// original pipeline driver.
var noisePrefixes = []string{
	"test/", "tests/",
	"doc/", "docs/",
	"example/", "examples/",
	"benchmark/", "benchmarks/",
	"script/", "scripts/",
	"bin/",
	"samples/",
}

// FilterNoise removes any filepath that starts with one of the excluded
// directory prefixes.
func FilterNoise(filepaths []string) []string {
	out := make([]string, 0, len(filepaths))
	for _, fp := range filepaths {
		excluded := false
		for _, prefix := range noisePrefixes {
			if strings.HasPrefix(fp, prefix) {
				excluded = true
				break
			}
		}
		if !excluded {
			out = append(out, fp)
		}
	}
	return out
}

// FindNestedCommonPrefixes collapses paths into the minimal set of
// directories (or bare top-level module names) that together cover every
// path, with no candidate nested inside another. An __init__.py collapses
// to its containing directory; any other file collapses to itself with its
// final extension stripped.
func FindNestedCommonPrefixes(filepaths []string) []string {
	candidateSet := make(map[string]bool)
	for _, fp := range filepaths {
		candidateSet[collapse(fp)] = true
	}

	candidates := make([]string, 0, len(candidateSet))
	for c := range candidateSet {
		candidates = append(candidates, c)
	}

	// Shortest (fewest path components) first, so an ancestor is always
	// considered before the descendants it might end up absorbing.
	sort.Slice(candidates, func(i, j int) bool {
		return depth(candidates[i]) < depth(candidates[j])
	})

	for _, candidate := range candidates {
		if !candidateSet[candidate] {
			continue // already absorbed by an ancestor found earlier
		}
		for _, ancestor := range ancestorsOf(candidate) {
			if candidateSet[ancestor] {
				delete(candidateSet, candidate)
				break
			}
		}
	}

	result := make([]string, 0, len(candidateSet))
	for c := range candidateSet {
		result = append(result, c)
	}
	sort.Strings(result)

	return result
}

// collapse maps one filepath to its nested-common-prefix candidate: the
// containing directory for an __init__.py, otherwise the path with its
// final extension removed.
func collapse(filepath string) string {
	parts := strings.Split(filepath, "/")
	last := parts[len(parts)-1]

	if stem(last) == "__init__" {
		return strings.Join(parts[:len(parts)-1], "/")
	}

	parts[len(parts)-1] = stem(last)
	return strings.Join(parts, "/")
}

// stem returns the final path component with its last extension (the
// portion after the final '.') removed, matching pathlib's Path.stem for
// the plain filenames this package deals with.
func stem(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx <= 0 {
		return name
	}
	return name[:idx]
}

func depth(path string) int {
	if path == "" {
		return 0
	}
	return strings.Count(path, "/") + 1
}

// ancestorsOf returns every strict ancestor of path, from its immediate
// parent up to (and including) the empty-string root, matching pathlib's
// Path.parents.
func ancestorsOf(path string) []string {
	if path == "" {
		return nil
	}

	parts := strings.Split(path, "/")
	ancestors := make([]string, 0, len(parts))
	for i := len(parts) - 1; i > 0; i-- {
		ancestors = append(ancestors, strings.Join(parts[:i], "/"))
	}
	ancestors = append(ancestors, "")

	return ancestors
}
