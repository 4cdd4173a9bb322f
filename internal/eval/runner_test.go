package eval

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ziadkadry99/promptlab/internal/llm"
	"github.com/ziadkadry99/promptlab/internal/project"
	"github.com/ziadkadry99/promptlab/internal/store"
)

// scriptAdapter replies according to a function of the request.
type scriptAdapter struct {
	model llm.ModelDescriptor
	mu    sync.Mutex
	calls int
	reply func(call int, req llm.ChatRequest) (*llm.ChatResponse, error)
}

func (s *scriptAdapter) Descriptor() llm.ModelDescriptor { return s.model }

func (s *scriptAdapter) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()
	return s.reply(call, req)
}

func (s *scriptAdapter) ChatStream(ctx context.Context, req llm.ChatRequest) (llm.ChunkStream, error) {
	return nil, &llm.CallError{Code: llm.CodeUnknown, Message: "streaming not scripted"}
}

func (s *scriptAdapter) ValidateParams(params llm.GenerationParams) llm.ValidationResult {
	return llm.ValidationResult{Valid: true}
}

func (s *scriptAdapter) FormatError(err error) *llm.CallError {
	if ce, ok := err.(*llm.CallError); ok {
		return ce
	}
	return &llm.CallError{Code: llm.CodeUnknown, Message: err.Error()}
}

type testConfigSource struct{}

func (testConfigSource) ProviderConfig(providerID string) (llm.ProviderConfig, error) {
	return llm.ProviderConfig{APIKey: "test"}, nil
}

func newScriptedService(adapters map[string]*scriptAdapter) *llm.Service {
	var models []llm.ModelDescriptor
	for id, a := range adapters {
		a.model = llm.ModelDescriptor{ID: id, Provider: "scripted", Pricing: &llm.Pricing{InputPerMillion: 1, OutputPerMillion: 2}}
		models = append(models, a.model)
	}
	registry := llm.NewRegistry()
	registry.RegisterProvider(llm.Provider{
		ID:     "scripted",
		Models: models,
		Factory: func(model llm.ModelDescriptor, cfg llm.ProviderConfig) (llm.Adapter, error) {
			return adapters[model.ID], nil
		},
	})
	svc := llm.NewService(registry, testConfigSource{})
	svc.SetRetryBase(time.Millisecond)
	return svc
}

func respond(content string) (*llm.ChatResponse, error) {
	return &llm.ChatResponse{
		Content:      content,
		Role:         llm.RoleAssistant,
		FinishReason: "stop",
		Usage:        &llm.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

func scaffoldRunProject(t *testing.T) *project.Project {
	t.Helper()
	dir := t.TempDir()
	mustWrite := func(path, content string) {
		t.Helper()
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	mustWrite(filepath.Join(dir, "frameworks", "concise.md"), "# Concise\n\nShort answers only.\n")
	mustWrite(filepath.Join(dir, "questions", "test_cases.json"), `[
  {"id": "q1", "question": "What is 2+2?", "answer": "4", "maxScore": 10},
  {"id": "q2", "question": "Name a color.", "answer": "Blue.", "maxScore": 5}
]`)
	p, err := project.Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

// standardAdapters returns a scripted three-role model set: prompt
// generation yields a fixed system prompt, answers depend on the
// question, scores depend on the answer.
func standardAdapters() map[string]*scriptAdapter {
	return map[string]*scriptAdapter{
		"prompt-model": {reply: func(call int, req llm.ChatRequest) (*llm.ChatResponse, error) {
			return respond("You answer briefly.")
		}},
		"answer-model": {reply: func(call int, req llm.ChatRequest) (*llm.ChatResponse, error) {
			if strings.Contains(req.Messages[0].Content, "2+2") {
				return respond("answer-A")
			}
			return respond("answer-B")
		}},
		"score-model": {reply: func(call int, req llm.ChatRequest) (*llm.ChatResponse, error) {
			if strings.Contains(req.Messages[0].Content, "answer-A") {
				return respond("8. Correct and concise.")
			}
			return respond("3")
		}},
	}
}

func testRunConfig(t *testing.T, p *project.Project) RunConfig {
	t.Helper()
	return RunConfig{
		Project:    p,
		Store:      store.New(t.TempDir()),
		Models:     ModelRoles{Prompt: "prompt-model", Answer: "answer-model", Scoring: "score-model"},
		Loops:      1,
		StageDelay: time.Millisecond,
	}
}

func drain(t *testing.T, run *Run) []Event {
	t.Helper()
	var events []Event
	timeout := time.After(30 * time.Second)
	for {
		select {
		case ev, ok := <-run.Events:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("run did not finish in time")
		}
	}
}

func lastEvent(t *testing.T, events []Event) Event {
	t.Helper()
	if len(events) == 0 {
		t.Fatal("no events emitted")
	}
	return events[len(events)-1]
}

func TestRunCompletes(t *testing.T) {
	p := scaffoldRunProject(t)
	runner := NewRunner(newScriptedService(standardAdapters()))
	cfg := testRunConfig(t, p)

	run, err := runner.Start(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	events := drain(t, run)
	summary := run.Wait()

	done := lastEvent(t, events)
	if done.Type != EventDone {
		t.Fatalf("expected final done event, got %s", done.Type)
	}
	if done.Status != StatusCompleted {
		t.Errorf("expected completed status, got %s", done.Status)
	}
	// 1 framework * (1 prompt + 2 questions * 2 stages).
	if done.Total != 5 || done.Completed != 5 {
		t.Errorf("expected 5/5 tasks, got %d/%d", done.Completed, done.Total)
	}
	if summary.Status != StatusCompleted {
		t.Errorf("summary status %s", summary.Status)
	}
	if summary.TotalCost <= 0 {
		t.Error("expected non-zero cost accounting")
	}

	// Prompt and results were persisted.
	stageDir := filepath.Join(run.Dir, "1", "concise")
	prompt, err := os.ReadFile(filepath.Join(stageDir, "concise.md"))
	if err != nil {
		t.Fatalf("prompt not written: %v", err)
	}
	if string(prompt) != "You answer briefly." {
		t.Errorf("unexpected prompt %q", prompt)
	}

	var rows []ResultRow
	if err := cfg.Store.ReadResults(stageDir, &rows); err != nil {
		t.Fatalf("results not written: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Score != 8 || rows[1].Score != 3 {
		t.Errorf("unexpected scores %d, %d", rows[0].Score, rows[1].Score)
	}
	if rows[0].Rationale != "Correct and concise." {
		t.Errorf("unexpected rationale %q", rows[0].Rationale)
	}
	if rows[0].Answer != "answer-A" || rows[1].Answer != "answer-B" {
		t.Errorf("unexpected answers %q, %q", rows[0].Answer, rows[1].Answer)
	}
	if rows[0].ReferenceAnswer != "4" || rows[1].ReferenceAnswer != "Blue." {
		t.Errorf("unexpected reference answers %q, %q", rows[0].ReferenceAnswer, rows[1].ReferenceAnswer)
	}
}

func TestRunEventOrdering(t *testing.T) {
	p := scaffoldRunProject(t)
	runner := NewRunner(newScriptedService(standardAdapters()))

	run, err := runner.Start(context.Background(), testRunConfig(t, p))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	events := drain(t, run)

	// Update counters never regress and end at the total.
	last := 0
	for _, ev := range events {
		if ev.Type != EventUpdate {
			continue
		}
		if ev.Completed < last {
			t.Errorf("counter went backwards: %d after %d", ev.Completed, last)
		}
		last = ev.Completed
	}
	if last != 5 {
		t.Errorf("expected final counter 5, got %d", last)
	}
	for _, ev := range events[:len(events)-1] {
		if ev.Type == EventDone {
			t.Error("done event emitted before the end")
		}
	}
}

func TestRunPromptFailureSkipsFramework(t *testing.T) {
	adapters := standardAdapters()
	adapters["prompt-model"].reply = func(call int, req llm.ChatRequest) (*llm.ChatResponse, error) {
		return nil, &llm.CallError{Code: llm.CodeBadResponse, Message: "upstream rejected prompt"}
	}
	p := scaffoldRunProject(t)
	runner := NewRunner(newScriptedService(adapters))
	cfg := testRunConfig(t, p)

	run, err := runner.Start(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	events := drain(t, run)

	done := lastEvent(t, events)
	if done.Status != StatusCompleted {
		t.Errorf("run should survive a skipped framework, got %s", done.Status)
	}
	// Counter still reaches the total: the skipped framework's answer
	// and scoring tasks are counted as done.
	if done.Completed != done.Total || done.Total != 5 {
		t.Errorf("expected full counter, got %d/%d", done.Completed, done.Total)
	}

	sawSkip := false
	for _, ev := range events {
		if ev.Type == EventSkip && strings.Contains(ev.Error, "prompt generation failed") {
			sawSkip = true
		}
		if ev.Type == EventError {
			t.Errorf("stage skip must not surface as a fatal error event: %+v", ev)
		}
	}
	if !sawSkip {
		t.Error("expected a skip event for the failed prompt stage")
	}
	if adapters["answer-model"].calls != 0 {
		t.Errorf("answer stage should not run after prompt failure, got %d calls", adapters["answer-model"].calls)
	}
}

func TestRunAnswerFailureYieldsPlaceholderRow(t *testing.T) {
	adapters := standardAdapters()
	adapters["answer-model"].reply = func(call int, req llm.ChatRequest) (*llm.ChatResponse, error) {
		if strings.Contains(req.Messages[0].Content, "2+2") {
			return nil, &llm.CallError{Code: llm.CodeBadResponse, Message: "answer blew up"}
		}
		return respond("answer-B")
	}
	p := scaffoldRunProject(t)
	runner := NewRunner(newScriptedService(adapters))
	cfg := testRunConfig(t, p)

	run, err := runner.Start(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	events := drain(t, run)

	done := lastEvent(t, events)
	if done.Status != StatusCompleted {
		t.Errorf("run should survive an answer failure, got %s", done.Status)
	}
	if done.Completed != 5 {
		t.Errorf("expected full counter, got %d", done.Completed)
	}

	var rows []ResultRow
	stageDir := filepath.Join(run.Dir, "1", "concise")
	if err := cfg.Store.ReadResults(stageDir, &rows); err != nil {
		t.Fatalf("results not written: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Score != 0 || rows[0].Error == "" {
		t.Errorf("expected placeholder row with error, got %+v", rows[0])
	}
	if rows[0].Answer != answerPlaceholder {
		t.Errorf("failed answer row should carry the placeholder, got %q", rows[0].Answer)
	}
	if rows[0].ReferenceAnswer != "4" {
		t.Errorf("failed answer row should keep the reference answer, got %q", rows[0].ReferenceAnswer)
	}
	if rows[1].Score != 3 {
		t.Errorf("second question should still be scored, got %+v", rows[1])
	}
}

func TestRunCancellation(t *testing.T) {
	adapters := standardAdapters()
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	adapters["answer-model"].reply = func(call int, req llm.ChatRequest) (*llm.ChatResponse, error) {
		once.Do(func() { close(started) })
		<-release
		return respond("answer")
	}
	p := scaffoldRunProject(t)
	runner := NewRunner(newScriptedService(adapters))

	run, err := runner.Start(context.Background(), testRunConfig(t, p))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	go func() {
		<-started
		run.Cancel()
		close(release)
	}()

	events := drain(t, run)
	done := lastEvent(t, events)
	if done.Type != EventDone || done.Status != StatusCancelled {
		t.Errorf("expected cancelled done event, got %+v", done)
	}
	summary := run.Wait()
	if summary.Status != StatusCancelled {
		t.Errorf("summary status %s", summary.Status)
	}
	// Scoring never ran for the cancelled question.
	if adapters["score-model"].calls != 0 {
		t.Errorf("expected no scoring calls, got %d", adapters["score-model"].calls)
	}
}

func TestRunThresholdStopsEarly(t *testing.T) {
	p := scaffoldRunProject(t)
	runner := NewRunner(newScriptedService(standardAdapters()))
	cfg := testRunConfig(t, p)
	cfg.Loops = 0
	// Scripted scores give 11/15 ≈ 73%.
	cfg.Threshold = 50
	cfg.MaxLoops = 4

	run, err := runner.Start(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	events := drain(t, run)

	done := lastEvent(t, events)
	if done.Status != StatusThresholdReached {
		t.Errorf("expected threshold stop, got %s", done.Status)
	}
	// Total assumes the loop cap; unreached loops are counted as done.
	if done.Total != 4*5 {
		t.Errorf("expected total 20, got %d", done.Total)
	}
	if done.Completed != done.Total {
		t.Errorf("expected counter to reach total, got %d/%d", done.Completed, done.Total)
	}
	summary := run.Wait()
	if summary.Status != StatusThresholdReached {
		t.Errorf("summary status %s", summary.Status)
	}
}

func TestRunThresholdExhaustsLoopCap(t *testing.T) {
	adapters := standardAdapters()
	adapters["score-model"].reply = func(call int, req llm.ChatRequest) (*llm.ChatResponse, error) {
		return respond("1")
	}
	p := scaffoldRunProject(t)
	runner := NewRunner(newScriptedService(adapters))
	cfg := testRunConfig(t, p)
	cfg.Loops = 0
	cfg.Threshold = 90
	cfg.MaxLoops = 2

	run, err := runner.Start(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	events := drain(t, run)
	done := lastEvent(t, events)
	if done.Status != StatusCompleted {
		t.Errorf("expected completed after loop cap, got %s", done.Status)
	}
	if done.Completed != 2*5 {
		t.Errorf("expected both loops to run, got %d", done.Completed)
	}
}

func TestStartValidation(t *testing.T) {
	runner := NewRunner(newScriptedService(standardAdapters()))
	p := scaffoldRunProject(t)

	if _, err := runner.Start(context.Background(), RunConfig{}); err == nil {
		t.Error("expected error for missing project")
	}

	cfg := testRunConfig(t, p)
	cfg.Models.Scoring = ""
	if _, err := runner.Start(context.Background(), cfg); err == nil {
		t.Error("expected error for missing model role")
	}

	cfg = testRunConfig(t, p)
	cfg.Loops = 0
	if _, err := runner.Start(context.Background(), cfg); err == nil {
		t.Error("expected error for zero loops without threshold")
	}
}

// memoryRecorder captures history calls for assertions.
type memoryRecorder struct {
	mu       sync.Mutex
	runs     int
	results  int
	finished RunStatus
}

func (m *memoryRecorder) RecordRun(id, runDir string, models ModelRoles, startedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs++
	return nil
}

func (m *memoryRecorder) RecordResult(runID string, loop int, framework string, row ResultRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results++
	return nil
}

func (m *memoryRecorder) FinishRun(id string, status RunStatus, completed, total int, cost float64, finishedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished = status
	return nil
}

func TestRunRecordsHistory(t *testing.T) {
	p := scaffoldRunProject(t)
	runner := NewRunner(newScriptedService(standardAdapters()))
	cfg := testRunConfig(t, p)
	rec := &memoryRecorder{}
	cfg.Recorder = rec

	run, err := runner.Start(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	drain(t, run)
	run.Wait()

	if rec.runs != 1 {
		t.Errorf("expected 1 recorded run, got %d", rec.runs)
	}
	if rec.results != 2 {
		t.Errorf("expected 2 recorded results, got %d", rec.results)
	}
	if rec.finished != StatusCompleted {
		t.Errorf("expected finished status recorded, got %s", rec.finished)
	}
}
