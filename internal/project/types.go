package project

// Framework is one system-prompt framework under evaluation, loaded
// from a markdown file in frameworks/.
type Framework struct {
	// Name is the file stem, used in result paths and task labels.
	Name string `json:"name"`
	// Title is the first level-1 heading, falling back to Name.
	Title string `json:"title"`
	// Description is the first paragraph after the title.
	Description string `json:"description"`
	// Components lists the bullet items under the "Core Components"
	// heading, if present.
	Components []string `json:"components,omitempty"`
	// Body is the full markdown source, fed to the prompt generator.
	Body string `json:"-"`
	Path string `json:"path"`
}

// TestCase is one evaluation question with its scoring ceiling.
type TestCase struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	// Answer is the reference answer the scoring model grades against.
	Answer   string   `json:"answer"`
	MaxScore int      `json:"maxScore"`
	Tags     []string `json:"tags,omitempty"`
}

// KnowledgeFile is one supporting document included in prompt context.
type KnowledgeFile struct {
	Path    string
	Content string
}

// Manifest is the optional project.yml at the workspace root.
type Manifest struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	// Knowledge lists glob patterns for context documents, relative to
	// the project directory.
	Knowledge []string `yaml:"knowledge,omitempty"`
}

// Project is a loaded evaluation workspace.
type Project struct {
	Dir       string
	Manifest  Manifest
	Frameworks []Framework
	TestCases []TestCase
	Knowledge []KnowledgeFile
}
