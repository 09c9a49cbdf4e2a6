package prefixes

import (
	"reflect"
	"sort"
	"testing"
)

func TestFindNestedCommonPrefixesSimplePackage(t *testing.T) {
	got := FindNestedCommonPrefixes([]string{
		"pkg/__init__.py",
		"pkg/sub/__init__.py",
		"pkg/sub/mod.py",
	})

	want := []string{"pkg"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestFindNestedCommonPrefixesDisjointPackages(t *testing.T) {
	got := FindNestedCommonPrefixes([]string{
		"pkg_a/__init__.py",
		"pkg_b/__init__.py",
	})

	want := []string{"pkg_a", "pkg_b"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestFindNestedCommonPrefixesBareTopLevelModule(t *testing.T) {
	got := FindNestedCommonPrefixes([]string{"single_module.py"})

	want := []string{"single_module"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestFindNestedCommonPrefixesExtensionModule(t *testing.T) {
	got := FindNestedCommonPrefixes([]string{
		"pkg/__init__.py",
		"pkg/_native.cpython-311-x86_64-linux-gnu.so",
	})

	want := []string{"pkg"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestFindNestedCommonPrefixesNoNesting(t *testing.T) {
	got := FindNestedCommonPrefixes([]string{
		"a/b/c/__init__.py",
		"a/b/d/__init__.py",
	})

	sort.Strings(got)
	want := []string{"a/b/c", "a/b/d"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v (siblings aren't ancestors of each other)", got, want)
	}
}

func TestFilterNoise(t *testing.T) {
	got := FilterNoise([]string{
		"pkg/__init__.py",
		"tests/test_pkg.py",
		"docs/index.py",
		"pkg/scripts/run.py",
	})

	want := []string{"pkg/__init__.py", "pkg/scripts/run.py"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
