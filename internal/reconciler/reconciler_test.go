package reconciler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/animarr/animarr/internal/manifest"
	"github.com/animarr/animarr/internal/probe"
	"github.com/animarr/animarr/internal/store"
)

type fakeStore struct {
	shows  []*store.Show
	marked []struct {
		showID int64
		epNo   int
	}
}

func (f *fakeStore) ListShows(ctx context.Context) ([]*store.Show, error) { return f.shows, nil }

func (f *fakeStore) MarkEpisodeDownloaded(ctx context.Context, showID int64, epNo int) error {
	f.marked = append(f.marked, struct {
		showID int64
		epNo   int
	}{showID, epNo})
	return nil
}

type fakeProber struct {
	info probe.Info
	err  error
}

func (f *fakeProber) Probe(ctx context.Context, path string) (probe.Info, error) {
	return f.info, f.err
}

type fakeOrganizer struct {
	seriesRoot string
	organized  []string
}

func (f *fakeOrganizer) SeriesDir(showTitle string) string {
	return filepath.Join(f.seriesRoot, showTitle)
}

func (f *fakeOrganizer) Organize(src, showTitle string, season, epNo int) (string, error) {
	f.organized = append(f.organized, src)
	dest := filepath.Join(f.SeriesDir(showTitle), "organized.mkv")
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return "", err
	}
	return dest, os.Rename(src, dest)
}

type fakeManifest struct {
	result manifest.ConsistencyResult
}

func (f *fakeManifest) CheckConsistency(showTitle string, season, epNo int, fileMD5 string) manifest.ConsistencyResult {
	return f.result
}

func (f *fakeManifest) RecordEpisodeHash(showTitle string, season, epNo int, filePath, fileMD5 string, size int64) error {
	return nil
}

type fakeTorrents struct {
	deletedHashes []string
}

func (f *fakeTorrents) FindTorrentForFile(ctx context.Context, filePath string) (float64, string, bool) {
	return 0, "", false
}

func (f *fakeTorrents) Delete(ctx context.Context, hashes []string, deleteFiles bool) error {
	f.deletedHashes = append(f.deletedHashes, hashes...)
	return nil
}

type fakeNotifier struct {
	messages []string
}

func (f *fakeNotifier) Notify(ctx context.Context, message string) error {
	f.messages = append(f.messages, message)
	return nil
}

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatal(err)
	}
	data := make([]byte, size)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRun_OrganizesConfidentEpisode(t *testing.T) {
	incomingRoot := t.TempDir()
	libraryRoot := t.TempDir()

	show := &store.Show{ID: 1, TitleCanonical: "My Show"}
	writeFile(t, filepath.Join(incomingRoot, "My Show", "My Show - 01.mkv"), 1024)

	st := &fakeStore{shows: []*store.Show{show}}
	prober := &fakeProber{info: probe.Info{Valid: true, Duration: 24 * time.Minute}}
	org := &fakeOrganizer{seriesRoot: libraryRoot}
	mf := &fakeManifest{result: manifest.ConsistencyResult{OK: true}}
	torrents := &fakeTorrents{}
	notifier := &fakeNotifier{}
	queue := NewReviewQueue(filepath.Join(t.TempDir(), "review.jsonl"))

	svc := NewService(st, prober, org, mf, torrents, torrents, queue, notifier, Config{
		IncomingRoot: incomingRoot,
	}, zerolog.Nop())

	result, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Organized != 1 {
		t.Fatalf("Organized = %d, want 1", result.Organized)
	}
	if len(st.marked) != 1 || st.marked[0].epNo != 1 {
		t.Fatalf("unexpected marked episodes: %+v", st.marked)
	}
	if len(notifier.messages) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifier.messages))
	}
}

func TestRun_RoutesExtraKnownToExtras(t *testing.T) {
	incomingRoot := t.TempDir()
	libraryRoot := t.TempDir()

	show := &store.Show{ID: 1, TitleCanonical: "My Show"}
	srcPath := filepath.Join(incomingRoot, "My Show", "My Show NCOP.mkv")
	writeFile(t, srcPath, 1024)

	st := &fakeStore{shows: []*store.Show{show}}
	prober := &fakeProber{info: probe.Info{Valid: true, Duration: 90 * time.Second}}
	org := &fakeOrganizer{seriesRoot: libraryRoot}
	mf := &fakeManifest{result: manifest.ConsistencyResult{OK: true}}
	torrents := &fakeTorrents{}
	queuePath := filepath.Join(t.TempDir(), "review.jsonl")
	queue := NewReviewQueue(queuePath)

	svc := NewService(st, prober, org, mf, torrents, torrents, queue, nil, Config{
		IncomingRoot: incomingRoot,
	}, zerolog.Nop())

	result, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.ExtraKnown != 1 {
		t.Fatalf("ExtraKnown = %d, want 1", result.ExtraKnown)
	}
	if _, err := os.Stat(srcPath); err == nil {
		t.Fatal("expected source file to be moved out of incoming")
	}
	dest := filepath.Join(org.SeriesDir("My Show"), "Extras", "Known", "My Show NCOP.mkv")
	if _, err := os.Stat(dest); err != nil {
		t.Fatalf("expected file at %s: %v", dest, err)
	}
	if data, err := os.ReadFile(queuePath); err != nil || len(data) == 0 {
		t.Fatalf("expected review queue entry, err=%v data=%q", err, data)
	}
}

func TestRun_InvalidMediaDeleted(t *testing.T) {
	incomingRoot := t.TempDir()

	show := &store.Show{ID: 1, TitleCanonical: "My Show"}
	srcPath := filepath.Join(incomingRoot, "My Show", "My Show - 01.mkv")
	writeFile(t, srcPath, 1024)

	st := &fakeStore{shows: []*store.Show{show}}
	prober := &fakeProber{info: probe.Info{Valid: false}}
	org := &fakeOrganizer{seriesRoot: t.TempDir()}
	mf := &fakeManifest{result: manifest.ConsistencyResult{OK: true}}
	torrents := &fakeTorrents{}
	queue := NewReviewQueue(filepath.Join(t.TempDir(), "review.jsonl"))

	svc := NewService(st, prober, org, mf, torrents, torrents, queue, nil, Config{
		IncomingRoot: incomingRoot,
	}, zerolog.Nop())

	result, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Invalid != 1 {
		t.Fatalf("Invalid = %d, want 1", result.Invalid)
	}
	if _, err := os.Stat(srcPath); err == nil {
		t.Fatal("expected invalid media file to be deleted")
	}
}
