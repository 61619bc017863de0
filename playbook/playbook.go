// Package playbook runs a YAML list of operations against one page.
//
//	name: login
//	steps:
//	  - {op: fill, selector: "#user", value: alice}
//	  - {op: click, selector: "iframe#auth |> button.go", timeout: 2s}
//	  - {op: exists, selector: "#welcome", timeout: 1s, expect: true}
//
// A step may carry an expect value: a bool for exists and bounding_box, a
// string (or false for "absent") for storage_get.
package playbook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/ectrol"
	"github.com/hazyhaar/ectrol/idgen"
	"github.com/hazyhaar/ectrol/kit"
)

var (
	ErrExpectation = errors.New("playbook: expectation failed")
	ErrNoSteps     = errors.New("playbook: no steps")
)

// Playbook is a named sequence of steps.
type Playbook struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`
}

// Step is one request plus its optional expectation.
type Step struct {
	ectrol.Request  `yaml:",inline"`
	Expect          any  `yaml:"expect,omitempty"`
	ContinueOnError bool `yaml:"continue_on_error,omitempty"`
}

// Doer runs one request. *ectrol.Ectrol satisfies it.
type Doer interface {
	Do(ctx context.Context, req ectrol.Request) (*ectrol.Response, error)
}

// StepResult records the outcome of one step.
type StepResult struct {
	Index      int              `json:"index"`
	Op         string           `json:"op"`
	Selector   string           `json:"selector,omitempty"`
	Response   *ectrol.Response `json:"response,omitempty"`
	Error      string           `json:"error,omitempty"`
	DurationMs int64            `json:"duration_ms"`
}

// Report summarises a run.
type Report struct {
	RunID    string        `json:"run_id"`
	Name     string        `json:"name"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Steps    []StepResult  `json:"steps"`
	Failed   int           `json:"failed"`
}

// Load reads and parses a playbook file.
func Load(path string) (*Playbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("playbook: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a playbook and checks every step names a known op.
func Parse(data []byte) (*Playbook, error) {
	var pb Playbook
	if err := yaml.Unmarshal(data, &pb); err != nil {
		return nil, fmt.Errorf("playbook: parse: %w", err)
	}
	if len(pb.Steps) == 0 {
		return nil, ErrNoSteps
	}
	known := make(map[string]bool)
	for _, op := range ectrol.Ops() {
		known[op] = true
	}
	for i, s := range pb.Steps {
		if !known[s.Op] {
			return nil, fmt.Errorf("playbook: step %d: %w: %q", i, ectrol.ErrUnknownOp, s.Op)
		}
	}
	return &pb, nil
}

// Runner executes playbooks.
type Runner struct {
	doer   Doer
	logger *slog.Logger
	newID  idgen.Generator
}

// Option configures a Runner.
type Option func(*Runner)

func WithLogger(l *slog.Logger) Option { return func(r *Runner) { r.logger = l } }

// WithIDGenerator overrides the run ID generator (default "run_" + UUIDv7).
func WithIDGenerator(gen idgen.Generator) Option { return func(r *Runner) { r.newID = gen } }

// NewRunner returns a Runner dispatching through d.
func NewRunner(d Doer, opts ...Option) *Runner {
	r := &Runner{doer: d, logger: slog.Default(), newID: idgen.Run}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run is NewRunner(d).Run(ctx, pb).
func Run(ctx context.Context, d Doer, pb *Playbook) (*Report, error) {
	return NewRunner(d).Run(ctx, pb)
}

// Run executes the steps in order. The first failing step without
// continue_on_error stops the run and its error is returned alongside the
// partial report.
func (r *Runner) Run(ctx context.Context, pb *Playbook) (*Report, error) {
	rep := &Report{RunID: r.newID(), Name: pb.Name, Started: time.Now()}
	ctx = kit.WithRunID(kit.WithTransport(ctx, "playbook"), rep.RunID)
	r.logger.Info("playbook: start", "name", pb.Name, "run_id", rep.RunID, "steps", len(pb.Steps))

	var firstErr error
	for i, step := range pb.Steps {
		if err := ctx.Err(); err != nil {
			firstErr = fmt.Errorf("playbook: step %d: %w", i, err)
			break
		}
		res, err := r.step(ctx, i, step)
		rep.Steps = append(rep.Steps, res)
		if err == nil {
			continue
		}
		rep.Failed++
		if step.ContinueOnError {
			r.logger.Warn("playbook: step failed, continuing", "run_id", rep.RunID, "step", i, "op", step.Op, "error", err)
			continue
		}
		firstErr = err
		break
	}

	rep.Duration = time.Since(rep.Started)
	r.logger.Info("playbook: done", "name", pb.Name, "run_id", rep.RunID, "failed", rep.Failed, "duration", rep.Duration)
	return rep, firstErr
}

func (r *Runner) step(ctx context.Context, i int, s Step) (StepResult, error) {
	start := time.Now()
	res := StepResult{Index: i, Op: s.Op, Selector: s.Selector}
	resp, err := r.doer.Do(kit.WithRequestID(ctx, idgen.Request()), s.Request)
	if err == nil {
		res.Response = resp
		err = check(s, resp)
	}
	res.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		err = fmt.Errorf("playbook: step %d (%s): %w", i, s.Op, err)
		res.Error = err.Error()
	}
	return res, err
}

func check(s Step, resp *ectrol.Response) error {
	if s.Expect == nil {
		return nil
	}
	switch want := s.Expect.(type) {
	case bool:
		got, ok := boolResult(resp)
		if !ok {
			return fmt.Errorf("%w: %s has no boolean result", ErrExpectation, s.Op)
		}
		if got != want {
			return fmt.Errorf("%w: want %v, got %v", ErrExpectation, want, got)
		}
	case string:
		if resp.Value == nil {
			return fmt.Errorf("%w: want %q, got absent", ErrExpectation, want)
		}
		if *resp.Value != want {
			return fmt.Errorf("%w: want %q, got %q", ErrExpectation, want, *resp.Value)
		}
	default:
		return fmt.Errorf("%w: unsupported expect %T", ErrExpectation, s.Expect)
	}
	return nil
}

func boolResult(resp *ectrol.Response) (bool, bool) {
	switch {
	case resp.Exists != nil:
		return *resp.Exists, true
	case resp.Found != nil:
		return *resp.Found, true
	}
	return false, false
}
