package project

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	yamlv3 "gopkg.in/yaml.v3"
)

const (
	manifestFile   = "project.yml"
	frameworksDir  = "frameworks"
	testCasesFile  = "questions/test_cases.json"
	knowledgeGlob  = "knowledge/**/*.md"
)

// Load reads an evaluation workspace from dir. Frameworks come from
// frameworks/*.md, test cases from questions/test_cases.json, and
// knowledge documents from the manifest's glob patterns (defaulting to
// knowledge/**/*.md).
func Load(dir string) (*Project, error) {
	p := &Project{Dir: dir}

	manifestPath := filepath.Join(dir, manifestFile)
	if data, err := os.ReadFile(manifestPath); err == nil {
		if err := yamlv3.Unmarshal(data, &p.Manifest); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", manifestPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading %s: %w", manifestPath, err)
	}
	if p.Manifest.Name == "" {
		p.Manifest.Name = filepath.Base(dir)
	}

	frameworks, err := loadFrameworks(filepath.Join(dir, frameworksDir))
	if err != nil {
		return nil, err
	}
	p.Frameworks = frameworks

	cases, err := LoadTestCases(filepath.Join(dir, testCasesFile))
	if err != nil {
		return nil, err
	}
	p.TestCases = cases

	knowledge, err := loadKnowledge(dir, p.Manifest.Knowledge)
	if err != nil {
		return nil, err
	}
	p.Knowledge = knowledge

	return p, nil
}

// Validate checks that the workspace can drive a run.
func (p *Project) Validate() error {
	if len(p.Frameworks) == 0 {
		return fmt.Errorf("no frameworks found in %s", filepath.Join(p.Dir, frameworksDir))
	}
	if len(p.TestCases) == 0 {
		return fmt.Errorf("no test cases found in %s", filepath.Join(p.Dir, testCasesFile))
	}
	seen := make(map[string]bool)
	for _, tc := range p.TestCases {
		if tc.Question == "" {
			return fmt.Errorf("test case %s has an empty question", tc.ID)
		}
		if tc.MaxScore < 1 {
			return fmt.Errorf("test case %s: maxScore must be at least 1", tc.ID)
		}
		if tc.ID != "" && seen[tc.ID] {
			return fmt.Errorf("duplicate test case id %s", tc.ID)
		}
		seen[tc.ID] = true
	}
	return nil
}

// Framework returns the framework with the given name.
func (p *Project) Framework(name string) (Framework, bool) {
	for _, fw := range p.Frameworks {
		if fw.Name == name {
			return fw, true
		}
	}
	return Framework{}, false
}

// KnowledgeContext joins all knowledge documents into one context
// block for prompt construction. Returns "" when there are none.
func (p *Project) KnowledgeContext() string {
	if len(p.Knowledge) == 0 {
		return ""
	}
	var b strings.Builder
	for i, kf := range p.Knowledge {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "## %s\n\n%s", filepath.Base(kf.Path), strings.TrimSpace(kf.Content))
	}
	return b.String()
}

func loadFrameworks(dir string) ([]Framework, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	var frameworks []Framework
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading framework %s: %w", path, err)
		}
		name := strings.TrimSuffix(entry.Name(), ".md")
		frameworks = append(frameworks, parseFramework(name, path, data))
	}
	sort.Slice(frameworks, func(i, j int) bool { return frameworks[i].Name < frameworks[j].Name })
	return frameworks, nil
}

func loadKnowledge(dir string, patterns []string) ([]KnowledgeFile, error) {
	if len(patterns) == 0 {
		patterns = []string{knowledgeGlob}
	}

	fsys := os.DirFS(dir)
	seen := make(map[string]bool)
	var files []KnowledgeFile
	for _, pattern := range patterns {
		matches, err := doublestar.Glob(fsys, filepath.ToSlash(pattern))
		if err != nil {
			return nil, fmt.Errorf("bad knowledge pattern %q: %w", pattern, err)
		}
		for _, match := range matches {
			if seen[match] {
				continue
			}
			seen[match] = true
			data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(match)))
			if err != nil {
				return nil, fmt.Errorf("reading knowledge file %s: %w", match, err)
			}
			files = append(files, KnowledgeFile{Path: match, Content: string(data)})
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}
