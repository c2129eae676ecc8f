package organizer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestDisplayTitle_StripsSeasonSuffix(t *testing.T) {
	cases := map[string]string{
		"Show Title Season 3": "Show Title",
		"Show Title S3":       "Show Title",
		"Show Title 第3季":      "Show Title",
		"Show Title":          "Show Title",
	}
	for in, want := range cases {
		if got := DisplayTitle(in); got != want {
			t.Errorf("DisplayTitle(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSafeName(t *testing.T) {
	if got := SafeName("Show / Title  with   spaces"); got != "Show - Title with spaces" {
		t.Errorf("SafeName() = %q", got)
	}
}

func TestOrganize_MovesFileAndWritesNFO(t *testing.T) {
	libraryRoot := t.TempDir()
	srcDir := t.TempDir()
	srcPath := filepath.Join(srcDir, "episode.mkv")
	if err := os.WriteFile(srcPath, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	svc := NewService(libraryRoot, zerolog.Nop())
	dest, err := svc.Organize(srcPath, "Show Title Season 2", 2, 5)
	if err != nil {
		t.Fatalf("Organize() error = %v", err)
	}

	if _, err := os.Stat(dest); err != nil {
		t.Fatalf("expected destination file to exist: %v", err)
	}
	if _, err := os.Stat(srcPath); !os.IsNotExist(err) {
		t.Fatal("expected source file to be moved away")
	}

	nfoPath := dest[:len(dest)-len(filepath.Ext(dest))] + ".nfo"
	if _, err := os.Stat(nfoPath); err != nil {
		t.Fatalf("expected nfo sidecar to exist: %v", err)
	}

	wantDir := filepath.Join(libraryRoot, "Show Title", "Season 02")
	if filepath.Dir(dest) != wantDir {
		t.Errorf("dest dir = %q, want %q", filepath.Dir(dest), wantDir)
	}
}

func TestCleanEmptyFolders(t *testing.T) {
	root := t.TempDir()
	empty := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(empty, 0o750); err != nil {
		t.Fatal(err)
	}

	svc := NewService(root, zerolog.Nop())
	if err := svc.CleanEmptyFolders(root); err != nil {
		t.Fatalf("CleanEmptyFolders() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "a")); !os.IsNotExist(err) {
		t.Fatal("expected empty nested dirs to be removed")
	}
}
