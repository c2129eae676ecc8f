package parser

import "testing"

func TestExtractSeason(t *testing.T) {
	cases := map[string]int{
		"[SubsPlease] Show S02 - 01 [1080p]": 2,
		"Show 2nd Season - 05":               2,
		"Show 第3季 - 01":                      3,
		"Show Season 4 - 10":                 4,
		"Show - 01":                          0,
	}
	for in, want := range cases {
		got, ok := ExtractSeason(in)
		if want == 0 {
			if ok {
				t.Errorf("ExtractSeason(%q) = %d, want none", in, got)
			}
			continue
		}
		if !ok || got != want {
			t.Errorf("ExtractSeason(%q) = %d,%v want %d", in, got, ok, want)
		}
	}
}

func TestExtractEpisode(t *testing.T) {
	cases := map[string]int{
		"[SubsPlease] Show S01E07 [1080p]": 7,
		"[Group] Show - EP12 [720p]":       12,
		"Show 第05话":                        5,
		"[Group] Show [03] [1080p]":        3,
		"Show - 1080p only marker":         0,
		"Show 2024 release":                0,
	}
	for in, want := range cases {
		got, ok := ExtractEpisode(in)
		if want == 0 {
			if ok {
				t.Errorf("ExtractEpisode(%q) = %d, want none", in, got)
			}
			continue
		}
		if !ok || got != want {
			t.Errorf("ExtractEpisode(%q) = %d,%v want %d", in, got, ok, want)
		}
	}
}

func TestExtractEpisodeRange(t *testing.T) {
	s, e, ok := ExtractEpisodeRange("[Group] Show 01-13 [Batch]")
	if !ok || s != 1 || e != 13 {
		t.Fatalf("got %d-%d,%v want 1-13,true", s, e, ok)
	}
	s, e, ok = ExtractEpisodeRange("[Group] Show 01~13 [Batch]")
	if !ok || s != 1 || e != 13 {
		t.Fatalf("got %d-%d,%v want 1-13,true", s, e, ok)
	}
	if _, _, ok := ExtractEpisodeRange("[Group] Show - 05 [1080p]"); ok {
		t.Fatal("expected no range on a single-episode title")
	}
}

func TestIsBadRelease(t *testing.T) {
	bad := []string{
		"[Group] Show PV [1080p]",
		"[Group] Show Trailer",
		"[Group] Show NCOP",
		"[Group] Show Menu",
		"[Group] Show OVA",
	}
	for _, in := range bad {
		if !IsBadRelease(in) {
			t.Errorf("IsBadRelease(%q) = false, want true", in)
		}
	}
	if IsBadRelease("[Group] Show - 05 [1080p]") {
		t.Error("IsBadRelease on a plain numbered episode should be false")
	}
}

func TestAliasScore(t *testing.T) {
	aliases := []string{"Some Anime Title", "SAT"}
	if got := AliasScore("[Group] Some Anime Title - 05 [1080p]", aliases); got != 40 {
		t.Errorf("substring match: got %d want 40", got)
	}
	if got := AliasScore("[Group] Totally Unrelated Thing - 05", aliases); got != 0 {
		t.Errorf("no match: got %d want 0", got)
	}
}

func TestReleaseScore(t *testing.T) {
	aliases := []string{"Some Anime Title"}
	score := ReleaseScore("[SubsPlease] Some Anime Title - 05 [1080p]", aliases, 5, 5, "SubsPlease", []string{"SubsPlease"})
	want := 40 + 40 + 20 + 10
	if score != want {
		t.Errorf("got %d want %d", score, want)
	}
}
