package eval

import (
	"strings"
	"testing"

	"github.com/ziadkadry99/promptlab/internal/project"
)

func TestBuildScoringIncludesReferenceAnswer(t *testing.T) {
	tc := project.TestCase{
		ID:       "q1",
		Question: "What is the capital of France?",
		Answer:   "Paris",
		MaxScore: 10,
	}
	prompt := buildScoring(tc, "The capital is Paris.")

	if !strings.Contains(prompt, "Question: What is the capital of France?") {
		t.Errorf("question missing from scoring prompt:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Reference answer:\nParis") {
		t.Errorf("reference answer missing from scoring prompt:\n%s", prompt)
	}
	if !strings.Contains(prompt, "The capital is Paris.") {
		t.Errorf("model answer missing from scoring prompt:\n%s", prompt)
	}
	if !strings.Contains(prompt, "0 to 10") {
		t.Errorf("scale missing from scoring prompt:\n%s", prompt)
	}
}

func TestBuildScoringWithoutReferenceAnswer(t *testing.T) {
	tc := project.TestCase{Question: "Name a color.", MaxScore: 5}
	prompt := buildScoring(tc, "Blue.")
	if strings.Contains(prompt, "Reference answer:") {
		t.Errorf("empty reference answer should omit the section:\n%s", prompt)
	}
}
