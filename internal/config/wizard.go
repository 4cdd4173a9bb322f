package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/manifoldco/promptui"
)

// wizardModels lists the selectable default models per provider.
var wizardModels = map[ProviderType][]string{
	ProviderOpenAI:    {"gpt-4o", "gpt-4o-mini", "gpt-3.5-turbo"},
	ProviderGoogle:    {"gemini-2.0-flash", "gemini-1.5-pro"},
	ProviderAnthropic: {"claude-sonnet-4-5-20250929", "claude-haiku-4-5-20251001"},
}

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to .promptlab.yml.
func RunWizard() (*Config, error) {
	fmt.Println("Welcome to promptlab! Let's configure your workspace.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Provider selection.
	providerPrompt := promptui.Select{
		Label: "Select default LLM provider",
		Items: []string{"openai", "google", "anthropic"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	provider := ProviderType(providerStr)

	// 2. Default model.
	modelPrompt := promptui.Select{
		Label: "Select default model",
		Items: wizardModels[provider],
	}
	_, model, err := modelPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("model selection: %w", err)
	}
	cfg.DefaultModel = model

	// 3. Project directory.
	projectPrompt := promptui.Prompt{
		Label:   "Project directory (frameworks, questions, knowledge)",
		Default: ".",
	}
	projectDir, err := projectPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("project dir: %w", err)
	}
	cfg.ProjectDir = projectDir

	// 4. Results directory.
	outputPrompt := promptui.Prompt{
		Label:   "Output directory for run results",
		Default: cfg.OutputDir,
	}
	outputDir, err := outputPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("output dir: %w", err)
	}
	cfg.OutputDir = outputDir

	// 5. Default loop count.
	loopsPrompt := promptui.Prompt{
		Label:   "Evaluation loops per run",
		Default: strconv.Itoa(cfg.Eval.Loops),
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 {
				return fmt.Errorf("enter a positive integer")
			}
			return nil
		},
	}
	loopsStr, err := loopsPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("loop count: %w", err)
	}
	cfg.Eval.Loops, _ = strconv.Atoi(loopsStr)

	// Check for API key.
	envVar := APIKeyEnvVar(provider)
	if envVar != "" && os.Getenv(envVar) == "" {
		fmt.Printf("\nNote: Set %s in your environment before running promptlab run.\n", envVar)
	}

	if err := cfg.Save(DefaultPath); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", DefaultPath)
	return cfg, nil
}
