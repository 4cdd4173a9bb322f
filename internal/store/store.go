// Package store persists evaluation run artifacts on the filesystem.
// Each run gets a timestamped directory with one subdirectory per
// loop and framework, holding the generated prompt and a results.json
// that is fully rewritten after every scored question.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"
)

const runDirFormat = "20060102-150405"

// Store writes run artifacts under a root directory.
type Store struct {
	Root string
}

func New(root string) *Store {
	return &Store{Root: root}
}

// NewRunDir creates a fresh timestamped run directory and returns its
// path. A suffix disambiguates runs started within the same second.
func (s *Store) NewRunDir(now time.Time) (string, error) {
	base := now.Format(runDirFormat)
	dir := filepath.Join(s.Root, base)
	for i := 1; ; i++ {
		err := os.Mkdir(dir, 0755)
		if err == nil {
			return dir, nil
		}
		if !os.IsExist(err) {
			if mkErr := os.MkdirAll(s.Root, 0755); mkErr != nil {
				return "", fmt.Errorf("creating results root %s: %w", s.Root, mkErr)
			}
			if err := os.Mkdir(dir, 0755); err == nil {
				return dir, nil
			} else if !os.IsExist(err) {
				return "", fmt.Errorf("creating run dir %s: %w", dir, err)
			}
		}
		dir = filepath.Join(s.Root, fmt.Sprintf("%s-%d", base, i))
	}
}

// StageDir creates and returns the directory for one loop+framework
// combination within a run.
func (s *Store) StageDir(runDir string, loop int, framework string) (string, error) {
	dir := filepath.Join(runDir, strconv.Itoa(loop), framework)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating stage dir %s: %w", dir, err)
	}
	return dir, nil
}

// WritePrompt saves the generated system prompt as <framework>.md in
// the stage directory.
func (s *Store) WritePrompt(stageDir, framework, prompt string) error {
	path := filepath.Join(stageDir, framework+".md")
	if err := os.WriteFile(path, []byte(prompt), 0644); err != nil {
		return fmt.Errorf("writing prompt %s: %w", path, err)
	}
	return nil
}

// ReadPrompt loads a previously saved prompt.
func (s *Store) ReadPrompt(stageDir, framework string) (string, error) {
	data, err := os.ReadFile(filepath.Join(stageDir, framework+".md"))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteResults atomically replaces results.json in the stage directory
// with the given value. Writing to a temp file first means a crash
// mid-write never leaves a truncated results file behind.
func (s *Store) WriteResults(stageDir string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling results: %w", err)
	}

	path := filepath.Join(stageDir, "results.json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// ReadResults loads results.json from a stage directory into v.
func (s *Store) ReadResults(stageDir string, v any) error {
	data, err := os.ReadFile(filepath.Join(stageDir, "results.json"))
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// Runs lists existing run directory names under the root, newest
// first.
func (s *Store) Runs() ([]string, error) {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading results root %s: %w", s.Root, err)
	}
	var runs []string
	for _, entry := range entries {
		if entry.IsDir() {
			runs = append(runs, entry.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(runs)))
	return runs, nil
}
