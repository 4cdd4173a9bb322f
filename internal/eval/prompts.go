package eval

import (
	"fmt"
	"strings"

	"github.com/ziadkadry99/promptlab/internal/project"
)

// buildPromptGeneration asks the prompt model to turn a framework
// document into a concrete system prompt, with any knowledge documents
// as supporting context.
func buildPromptGeneration(fw project.Framework, knowledge string) string {
	var b strings.Builder
	b.WriteString("You are an expert prompt engineer. Using the framework below, write a complete system prompt for an AI assistant.\n\n")
	b.WriteString("Respond with the system prompt text only. Do not add commentary, preamble or markdown fences.\n\n")
	fmt.Fprintf(&b, "# Framework: %s\n\n%s", fw.Title, strings.TrimSpace(fw.Body))
	if knowledge != "" {
		b.WriteString("\n\n# Supporting context\n\n")
		b.WriteString(knowledge)
	}
	return b.String()
}

// buildScoring asks the scoring model to grade an answer against the
// question's reference answer. The instructions pin the reply to a bare
// integer so the score parser has a stable format to work with.
func buildScoring(tc project.TestCase, answer string) string {
	var b strings.Builder
	b.WriteString("You are grading an AI assistant's answer.\n\n")
	fmt.Fprintf(&b, "Question: %s\n\n", tc.Question)
	if tc.Answer != "" {
		fmt.Fprintf(&b, "Reference answer:\n%s\n\n", strings.TrimSpace(tc.Answer))
	}
	fmt.Fprintf(&b, "Answer:\n%s\n\n", strings.TrimSpace(answer))
	fmt.Fprintf(&b, "Rate the answer's quality on a scale from 0 to %d, where %d is a perfect answer.\n", tc.MaxScore, tc.MaxScore)
	b.WriteString("Reply with the integer score first, optionally followed by a one-sentence justification.")
	return b.String()
}
