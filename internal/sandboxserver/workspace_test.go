package sandboxserver

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestWorkspace_ResolveConfinesToRoot(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	root := ws.Root()

	ok := []struct{ in, want string }{
		{".", root},
		{"a/b.txt", filepath.Join(root, "a", "b.txt")},
		{"a/../c", filepath.Join(root, "c")},
		{filepath.Join(root, "d"), filepath.Join(root, "d")},
	}
	for _, tc := range ok {
		got, err := ws.Resolve(tc.in)
		if err != nil || got != tc.want {
			t.Fatalf("Resolve(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
		}
	}

	for _, bad := range []string{"..", "../x", "a/../../x", "/etc"} {
		if _, err := ws.Resolve(bad); !errors.Is(err, ErrOutsideRoot) {
			t.Fatalf("Resolve(%q) should escape-fail, got %v", bad, err)
		}
	}
	if _, err := ws.Resolve("  "); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestWorkspace_RefusesToRemoveRoot(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := ws.Delete(".", true); err == nil {
		t.Fatal("expected delete of root to fail")
	}
	if err := ws.Move(".", "elsewhere"); err == nil {
		t.Fatal("expected move of root to fail")
	}
}
