package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	if err := s.RecordEpisodeHash("Some Show", 1, 1, "/library/Some Show/S01E01.mkv", "abc123", 100); err != nil {
		t.Fatalf("RecordEpisodeHash() error = %v", err)
	}

	m := s.Load("Some Show")
	ep, ok := m.Episodes["S01E01"]
	if !ok {
		t.Fatal("expected S01E01 entry")
	}
	if ep.MD5 != "abc123" {
		t.Errorf("got md5 %q, want abc123", ep.MD5)
	}
	if m.HashIndex["abc123"] != "S01E01" {
		t.Errorf("hash index not updated: %+v", m.HashIndex)
	}
}

func TestCheckConsistency_HashConflict(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	if err := s.RecordEpisodeHash("Show", 1, 1, "/path/a.mkv", "hash-a", 10); err != nil {
		t.Fatal(err)
	}

	result := s.CheckConsistency("Show", 1, 2, "hash-a")
	if result.OK {
		t.Fatal("expected conflict when same hash claims a different episode key")
	}
}

func TestCheckConsistency_EpisodeMismatch(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	if err := s.RecordEpisodeHash("Show", 1, 1, "/path/a.mkv", "hash-a", 10); err != nil {
		t.Fatal(err)
	}

	result := s.CheckConsistency("Show", 1, 1, "hash-b")
	if result.OK {
		t.Fatal("expected mismatch when the same episode key gets a different hash")
	}
}

func TestVerifyRange(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	filePath := filepath.Join(dir, "ep01.mkv")
	if err := os.WriteFile(filePath, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	actualMD5, err := ComputeMD5(filePath)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.RecordEpisodeHash("Show", 1, 1, filePath, actualMD5, 5); err != nil {
		t.Fatal(err)
	}

	mismatches, err := s.VerifyRange("Show", 1, 1, 2)
	if err != nil {
		t.Fatalf("VerifyRange() error = %v", err)
	}
	if len(mismatches) != 1 || mismatches[0].Status != "missing_manifest_entry" {
		t.Fatalf("expected exactly one missing entry for ep 2, got %+v", mismatches)
	}
}

func TestSafeName(t *testing.T) {
	if got := SafeName("Some: Show / Title?"); got == "" {
		t.Fatal("expected non-empty safe name")
	}
}
