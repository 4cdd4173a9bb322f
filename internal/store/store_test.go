package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRunDirCollision(t *testing.T) {
	s := New(t.TempDir())
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	first, err := s.NewRunDir(now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := s.NewRunDir(now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first == second {
		t.Errorf("expected distinct run dirs, got %s twice", first)
	}
	if filepath.Base(first) != "20260314-092653" {
		t.Errorf("unexpected run dir name %s", filepath.Base(first))
	}
}

func TestRunDirCreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "results")
	s := New(root)
	dir, err := s.NewRunDir(time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("run dir not created: %v", err)
	}
}

func TestPromptRoundTrip(t *testing.T) {
	s := New(t.TempDir())
	runDir, _ := s.NewRunDir(time.Now())
	stageDir, err := s.StageDir(runDir, 1, "concise")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := s.WritePrompt(stageDir, "concise", "You are concise."); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := s.ReadPrompt(stageDir, "concise")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "You are concise." {
		t.Errorf("unexpected prompt %q", got)
	}
}

func TestResultsAtomicWrite(t *testing.T) {
	s := New(t.TempDir())
	runDir, _ := s.NewRunDir(time.Now())
	stageDir, _ := s.StageDir(runDir, 2, "fw")

	type row struct {
		Question string `json:"question"`
		Score    int    `json:"score"`
	}

	if err := s.WriteResults(stageDir, []row{{Question: "q1", Score: 8}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// A second write fully replaces the file.
	if err := s.WriteResults(stageDir, []row{{Question: "q1", Score: 8}, {Question: "q2", Score: 3}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got []row
	if err := s.ReadResults(stageDir, &got); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[1].Score != 3 {
		t.Errorf("unexpected results %+v", got)
	}

	// No temp file left behind.
	if _, err := os.Stat(filepath.Join(stageDir, "results.json.tmp")); !os.IsNotExist(err) {
		t.Error("expected temp file to be renamed away")
	}
}

func TestRunsNewestFirst(t *testing.T) {
	s := New(t.TempDir())
	for _, ts := range []time.Time{
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	} {
		if _, err := s.NewRunDir(ts); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := s.Runs()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0] != "20260201-000000" {
		t.Errorf("expected newest first, got %v", runs)
	}
}

func TestRunsEmptyRoot(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "missing"))
	runs, err := s.Runs()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected no runs, got %v", runs)
	}
}
