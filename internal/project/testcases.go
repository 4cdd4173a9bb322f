package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// LoadTestCases reads the question set from a JSON file. A missing
// file is an empty set, not an error.
func LoadTestCases(path string) ([]TestCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var cases []TestCase
	if err := json.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cases, nil
}

// SaveTestCases writes the question set back to disk, creating parent
// directories as needed. The write goes through a temp file so a crash
// mid-write never leaves a truncated question set.
func SaveTestCases(path string, cases []TestCase) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	data, err := json.MarshalIndent(cases, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling test cases: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// AddTestCase appends a new case, assigning an ID when absent.
func (p *Project) AddTestCase(tc TestCase) (TestCase, error) {
	if tc.Question == "" {
		return TestCase{}, fmt.Errorf("question is required")
	}
	if tc.MaxScore < 1 {
		return TestCase{}, fmt.Errorf("maxScore must be at least 1")
	}
	if tc.ID == "" {
		tc.ID = uuid.NewString()
	}
	for _, existing := range p.TestCases {
		if existing.ID == tc.ID {
			return TestCase{}, fmt.Errorf("test case %s already exists", tc.ID)
		}
	}
	p.TestCases = append(p.TestCases, tc)
	return tc, p.saveTestCases()
}

// UpdateTestCase replaces the case with the same ID.
func (p *Project) UpdateTestCase(tc TestCase) error {
	for i, existing := range p.TestCases {
		if existing.ID == tc.ID {
			p.TestCases[i] = tc
			return p.saveTestCases()
		}
	}
	return fmt.Errorf("test case %s not found", tc.ID)
}

// RemoveTestCase deletes a case by ID.
func (p *Project) RemoveTestCase(id string) error {
	for i, existing := range p.TestCases {
		if existing.ID == id {
			p.TestCases = append(p.TestCases[:i], p.TestCases[i+1:]...)
			return p.saveTestCases()
		}
	}
	return fmt.Errorf("test case %s not found", id)
}

func (p *Project) saveTestCases() error {
	return SaveTestCases(filepath.Join(p.Dir, testCasesFile), p.TestCases)
}
