package reconciler

import (
	"testing"
	"time"
)

func TestClassify_ExtraKeywordWithExplicitEpisodeNeedsReview(t *testing.T) {
	cls := Classify("My Show - NCOP S01E01.mkv", nil, 0, 0, 3, time.Minute)
	if cls.Decision != DecisionNeedsReview {
		t.Fatalf("Decision = %q, want %q", cls.Decision, DecisionNeedsReview)
	}
}

func TestClassify_ExtraKeywordOnlyIsKnown(t *testing.T) {
	cls := Classify("My Show NCOP.mkv", nil, 0, 0, 3, time.Minute)
	if cls.Decision != DecisionExtraKnown {
		t.Fatalf("Decision = %q, want %q", cls.Decision, DecisionExtraKnown)
	}
}

func TestClassify_EpisodeNotConfidentNeedsReview(t *testing.T) {
	cls := Classify("My Show random file.mkv", nil, 0, 0, 3, time.Minute)
	if cls.Decision != DecisionNeedsReview {
		t.Fatalf("Decision = %q, want %q", cls.Decision, DecisionNeedsReview)
	}
}

func TestClassify_OutOfRangeNeedsReview(t *testing.T) {
	totalEps := 12
	cls := Classify("My Show - E13.mkv", &totalEps, 0, 0, 3, 24*time.Minute)
	if cls.Decision != DecisionNeedsReview {
		t.Fatalf("Decision = %q, want %q", cls.Decision, DecisionNeedsReview)
	}
}

func TestClassify_RuntimeOutlierNeedsReview(t *testing.T) {
	cls := Classify("My Show - E05.mkv", nil, 24*time.Minute, 5, 3, 5*time.Minute)
	if cls.Decision != DecisionNeedsReview {
		t.Fatalf("Decision = %q, want %q", cls.Decision, DecisionNeedsReview)
	}
}

func TestClassify_RuntimeOutlierIgnoredBelowMinSamples(t *testing.T) {
	cls := Classify("My Show - E05.mkv", nil, 24*time.Minute, 2, 3, 5*time.Minute)
	if cls.Decision != DecisionConfident {
		t.Fatalf("Decision = %q, want %q", cls.Decision, DecisionConfident)
	}
}

func TestClassify_ConfidentEpisode(t *testing.T) {
	cls := Classify("My Show - E05.mkv", nil, 24*time.Minute, 5, 3, 23*time.Minute)
	if cls.Decision != DecisionConfident || cls.Episode != 5 {
		t.Fatalf("unexpected classification: %+v", cls)
	}
}

func TestHasExtraKeyword(t *testing.T) {
	cases := map[string]bool{
		"My Show - Trailer.mkv": true,
		"My Show 访谈.mkv":        true,
		"My Show - E01.mkv":     false,
	}
	for in, want := range cases {
		if got := HasExtraKeyword(in); got != want {
			t.Errorf("HasExtraKeyword(%q) = %v, want %v", in, got, want)
		}
	}
}
