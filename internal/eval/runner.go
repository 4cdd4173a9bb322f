package eval

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/promptlab/internal/llm"
	"github.com/ziadkadry99/promptlab/internal/project"
)

const (
	defaultStageDelay = 1500 * time.Millisecond
	defaultMaxLoops   = 10
	// stage-level retry policy on top of the service's own retries
	safeAttempts = 2
	safeDelay    = 2 * time.Second
)

// answerPlaceholder stands in for the model answer on rows whose
// answer stage failed, so result files never carry an empty answer.
const answerPlaceholder = "(no answer)"

// Runner starts evaluation runs against a model service.
type Runner struct {
	service *llm.Service
}

func NewRunner(service *llm.Service) *Runner {
	return &Runner{service: service}
}

// Run is a handle to an in-flight evaluation. Events delivers progress
// in order and closes after the terminal done event. Cancel stops the
// run at the next stage boundary.
type Run struct {
	ID      string
	Dir     string
	Events  <-chan Event
	events  chan Event
	cancel  context.CancelFunc
	done    chan struct{}
	summary Summary
}

// Cancel requests the run stop. The run still emits its done event
// with StatusCancelled and closes the channel.
func (r *Run) Cancel() { r.cancel() }

// Wait blocks until the run goroutine has finished and returns the
// summary. Callers must drain Events concurrently or before waiting.
func (r *Run) Wait() Summary {
	<-r.done
	return r.summary
}

// Start validates the configuration, creates the run directory and
// launches the run goroutine. The returned handle's Events channel
// must be drained.
func (r *Runner) Start(ctx context.Context, cfg RunConfig) (*Run, error) {
	if cfg.Project == nil {
		return nil, fmt.Errorf("run config: project is required")
	}
	if err := cfg.Project.Validate(); err != nil {
		return nil, fmt.Errorf("run config: %w", err)
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("run config: store is required")
	}
	if cfg.Models.Prompt == "" || cfg.Models.Answer == "" || cfg.Models.Scoring == "" {
		return nil, fmt.Errorf("run config: all three model roles are required")
	}
	if cfg.StageDelay == 0 {
		cfg.StageDelay = defaultStageDelay
	}
	if cfg.MaxLoops < 1 {
		cfg.MaxLoops = defaultMaxLoops
	}
	loops := cfg.Loops
	if cfg.Threshold > 0 {
		// Threshold mode loops until the target is hit, bounded by
		// the loop cap.
		loops = cfg.MaxLoops
	}
	if loops < 1 {
		return nil, fmt.Errorf("run config: loops must be at least 1")
	}

	start := time.Now()
	runDir, err := cfg.Store.NewRunDir(start)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	run := &Run{
		ID:     uuid.NewString(),
		Dir:    runDir,
		events: make(chan Event, 256),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	run.Events = run.events

	if cfg.Recorder != nil {
		if err := cfg.Recorder.RecordRun(run.ID, runDir, cfg.Models, start); err != nil {
			log.Printf("eval: recording run %s: %v", run.ID, err)
		}
	}

	go r.execute(runCtx, cfg, run, loops, start)
	return run, nil
}

// execution state threaded through the stage helpers
type runState struct {
	cfg       cfgView
	run       *Run
	completed int
	total     int
	cost      float64
}

type cfgView struct {
	RunConfig
	loops int
}

func (s *runState) emit(ev Event) {
	ev.Time = time.Now()
	s.run.events <- ev
}

func (s *runState) logf(format string, args ...any) {
	s.emit(Event{Type: EventLog, Message: fmt.Sprintf(format, args...)})
}

// skipf reports a stage failure the run survives. Fatal failures end
// the run through the done event instead.
func (s *runState) skipf(loop int, framework, format string, args ...any) {
	s.emit(Event{Type: EventSkip, Loop: loop, Framework: framework, Error: fmt.Sprintf(format, args...)})
}

// advance moves the task counter by n and emits an update.
func (s *runState) advance(n int) {
	s.completed += n
	s.emit(Event{Type: EventUpdate, Completed: s.completed, Total: s.total})
}

// pause waits the configured stage delay, returning false if the run
// was cancelled while waiting.
func (s *runState) pause(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(s.cfg.StageDelay):
		return true
	}
}

func (r *Runner) execute(ctx context.Context, cfg RunConfig, run *Run, loops int, start time.Time) {
	defer close(run.done)
	defer close(run.events)

	frameworks := cfg.Project.Frameworks
	questions := cfg.Project.TestCases
	perFramework := 1 + 2*len(questions)

	state := &runState{
		cfg:   cfgView{RunConfig: cfg, loops: loops},
		run:   run,
		total: loops * len(frameworks) * perFramework,
	}

	state.emit(Event{Type: EventStateUpdate, Status: StatusRunning, Total: state.total})
	state.logf("Starting run: %d framework(s), %d question(s), %d loop(s)", len(frameworks), len(questions), loops)

	status := StatusCompleted
	knowledge := cfg.Project.KnowledgeContext()
	if cfg.ToolContext != "" {
		if knowledge != "" {
			knowledge += "\n\n"
		}
		knowledge += cfg.ToolContext
	}

loop:
	for loop := 1; loop <= loops; loop++ {
		var loopScore, loopMax int

		for _, fw := range frameworks {
			if ctx.Err() != nil {
				status = StatusCancelled
				break loop
			}

			score, max, ok := r.runFramework(ctx, state, loop, fw, questions, knowledge)
			loopScore += score
			loopMax += max
			if !ok {
				status = StatusCancelled
				break loop
			}
		}

		if loopMax > 0 {
			pct := 100 * float64(loopScore) / float64(loopMax)
			state.logf("Loop %d complete: %d/%d points (%.1f%%)", loop, loopScore, loopMax, pct)
			if cfg.Threshold > 0 && pct >= cfg.Threshold {
				state.logf("Score threshold %.1f%% reached after %d loop(s)", cfg.Threshold, loop)
				// Unreached loops count as complete for the task bar.
				state.advance((loops - loop) * len(frameworks) * perFramework)
				status = StatusThresholdReached
				break loop
			}
		}
	}

	if ctx.Err() != nil && status != StatusThresholdReached {
		status = StatusCancelled
	}

	run.summary = Summary{
		RunID:      run.ID,
		RunDir:     run.Dir,
		Status:     status,
		Completed:  state.completed,
		Total:      state.total,
		Loops:      loops,
		TotalCost:  state.cost,
		StartedAt:  start,
		FinishedAt: time.Now(),
	}

	if cfg.Recorder != nil {
		if err := cfg.Recorder.FinishRun(run.ID, status, state.completed, state.total, state.cost, run.summary.FinishedAt); err != nil {
			log.Printf("eval: finishing run %s: %v", run.ID, err)
		}
	}

	state.emit(Event{Type: EventDone, Status: status, Completed: state.completed, Total: state.total})
}

// runFramework executes the prompt, answer and scoring stages for one
// framework in one loop. It returns the points earned and available,
// and false when the run was cancelled mid-framework.
func (r *Runner) runFramework(ctx context.Context, state *runState, loop int, fw project.Framework, questions []project.TestCase, knowledge string) (score, max int, ok bool) {
	cfg := state.cfg
	perQuestionTasks := 2 * len(questions)

	stageDir, err := cfg.Store.StageDir(state.run.Dir, loop, fw.Name)
	if err != nil {
		state.skipf(loop, fw.Name, "preparing output directory: %v", err)
		state.advance(1 + perQuestionTasks)
		return 0, 0, true
	}

	state.emit(Event{Type: EventStateUpdate, Status: StatusRunning, Loop: loop, Framework: fw.Name, Stage: StagePrompt})
	state.logf("Loop %d: generating system prompt for %s", loop, fw.Name)

	promptResult := safeCall(ctx, safeAttempts, safeDelay, func(ctx context.Context) *llm.CallResult {
		return r.service.Call(ctx, llm.CallRequest{
			Model:    cfg.Models.Prompt,
			Messages: []llm.ChatMessage{llm.UserMessage(buildPromptGeneration(fw, knowledge))},
			Params:   cfg.Params,
		})
	})
	state.cost += promptResult.Cost

	if !promptResult.Success {
		if promptResult.Error.Code == llm.CodeAborted {
			return 0, 0, false
		}
		// A framework whose prompt cannot be generated is skipped
		// whole; its answer and scoring tasks count as done so the
		// progress bar still reaches the end.
		state.skipf(loop, fw.Name, "prompt generation failed: %s", promptResult.Error.Message)
		state.advance(1 + perQuestionTasks)
		return 0, 0, true
	}

	systemPrompt := promptResult.Response.Content
	if err := cfg.Store.WritePrompt(stageDir, fw.Name, systemPrompt); err != nil {
		state.skipf(loop, fw.Name, "saving prompt: %v", err)
	}
	state.advance(1)

	var rows []ResultRow
	for _, tc := range questions {
		if !state.pause(ctx) {
			return score, max, false
		}

		state.emit(Event{Type: EventStateUpdate, Status: StatusRunning, Loop: loop, Framework: fw.Name, Stage: StageAnswer, Question: tc.Question})

		answerParams := cfg.Params
		answerParams.SystemPrompt = systemPrompt
		answerResult := safeCall(ctx, safeAttempts, safeDelay, func(ctx context.Context) *llm.CallResult {
			return r.service.Call(ctx, llm.CallRequest{
				Model:    cfg.Models.Answer,
				Messages: []llm.ChatMessage{llm.UserMessage(tc.Question)},
				Params:   answerParams,
			})
		})
		state.cost += answerResult.Cost

		if !answerResult.Success {
			if answerResult.Error.Code == llm.CodeAborted {
				return score, max, false
			}
			state.skipf(loop, fw.Name, "answer failed for %q: %s", tc.Question, answerResult.Error.Message)
			row := ResultRow{
				QuestionID:      tc.ID,
				Question:        tc.Question,
				ReferenceAnswer: tc.Answer,
				Answer:          answerPlaceholder,
				Score:           0,
				MaxScore:        tc.MaxScore,
				Error:           answerResult.Error.Message,
			}
			rows = append(rows, row)
			max += tc.MaxScore
			state.advance(2)
			r.persistRows(state, loop, fw.Name, stageDir, rows, row)
			continue
		}
		answer := answerResult.Response.Content
		state.advance(1)

		if !state.pause(ctx) {
			return score, max, false
		}

		state.emit(Event{Type: EventStateUpdate, Status: StatusRunning, Loop: loop, Framework: fw.Name, Stage: StageScoring, Question: tc.Question})

		scoreResult := safeCall(ctx, safeAttempts, safeDelay, func(ctx context.Context) *llm.CallResult {
			return r.service.Call(ctx, llm.CallRequest{
				Model:    cfg.Models.Scoring,
				Messages: []llm.ChatMessage{llm.UserMessage(buildScoring(tc, answer))},
				Params:   llm.GenerationParams{Temperature: llm.Float64(0), MaxTokens: llm.Int(256)},
			})
		})
		state.cost += scoreResult.Cost

		row := ResultRow{
			QuestionID:      tc.ID,
			Question:        tc.Question,
			ReferenceAnswer: tc.Answer,
			Answer:          answer,
			MaxScore:        tc.MaxScore,
			Cost:            answerResult.Cost + scoreResult.Cost,
			DurationMS:      (answerResult.Duration + scoreResult.Duration).Milliseconds(),
		}
		if scoreResult.Success {
			n, clamped := parseScore(scoreResult.Response.Content, tc.MaxScore)
			if clamped {
				state.logf("Score for %q clamped into 0..%d", tc.Question, tc.MaxScore)
			}
			row.Score = n
			row.Rationale = rationale(scoreResult.Response.Content)
		} else {
			if scoreResult.Error.Code == llm.CodeAborted {
				return score, max, false
			}
			state.skipf(loop, fw.Name, "scoring failed for %q: %s", tc.Question, scoreResult.Error.Message)
			row.Error = scoreResult.Error.Message
		}

		rows = append(rows, row)
		score += row.Score
		max += tc.MaxScore
		state.advance(1)
		r.persistRows(state, loop, fw.Name, stageDir, rows, row)
	}

	state.logf("Loop %d: %s scored %d/%d", loop, fw.Name, score, max)
	return score, max, true
}

// persistRows rewrites the stage's results.json after every question
// and records the row in run history.
func (r *Runner) persistRows(state *runState, loop int, framework, stageDir string, rows []ResultRow, latest ResultRow) {
	if err := state.cfg.Store.WriteResults(stageDir, rows); err != nil {
		state.skipf(loop, framework, "saving results: %v", err)
	}
	if state.cfg.Recorder != nil {
		if err := state.cfg.Recorder.RecordResult(state.run.ID, loop, framework, latest); err != nil {
			log.Printf("eval: recording result for run %s: %v", state.run.ID, err)
		}
	}
}
