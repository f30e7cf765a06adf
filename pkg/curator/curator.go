// Package curator runs the dual-loop reconciliation: a primary task
// session that escalates into nested skill sessions, whose distilled
// deltas are merged into the durable playbook before the primary
// resumes.
package curator

import (
	"context"
	"fmt"

	"github.com/XiaoConstantine/ace-go/pkg/core"
	"github.com/XiaoConstantine/ace-go/pkg/errors"
	"github.com/XiaoConstantine/ace-go/pkg/extract"
	"github.com/XiaoConstantine/ace-go/pkg/hooks"
	"github.com/XiaoConstantine/ace-go/pkg/logging"
	"github.com/XiaoConstantine/ace-go/pkg/playbook"
)

// State names the curator's position in the task lifecycle.
type State string

const (
	StateIdle           State = "idle"
	StateRunningPrimary State = "running_primary"
	StateRunningSkill   State = "running_skill"
	StateMerging        State = "merging"
	StateCompleted      State = "completed"
	StateFailed         State = "failed"
)

// DefaultSkillPrompt opens a nested skill session. The session's job is
// distillation, not task progress.
const DefaultSkillPrompt = "Review the work so far and distill any reusable procedure " +
	"into a written runbook. Record constraints you discovered and references you relied on."

const recentWindowSize = 16

// TaskResult is the outcome of one RunTask call. The trajectory is
// always present, even after a failure, so callers can export the
// partial transcript.
type TaskResult struct {
	Trajectory      *core.Trajectory
	PlaybookVersion int
	DeltaCount      int
	Success         bool
	ErrorMessage    string
}

// Option configures a Curator at construction.
type Option func(*Curator)

// WithPolicy overrides the escalation policy.
func WithPolicy(p *EscalationPolicy) Option {
	return func(c *Curator) { c.policy = p }
}

// WithPrimaryHooks sets the dispatcher evaluated over primary-loop
// events.
func WithPrimaryHooks(d *hooks.Dispatcher) Option {
	return func(c *Curator) { c.primaryHooks = d }
}

// WithSkillHooks sets the dispatcher evaluated over skill-loop events.
func WithSkillHooks(d *hooks.Dispatcher) Option {
	return func(c *Curator) { c.skillHooks = d }
}

// WithExtractor overrides the delta extractor.
func WithExtractor(x *extract.Extractor) Option {
	return func(c *Curator) { c.extractor = x }
}

// WithProgress attaches a progress sink. The curator reports session
// starts, escalations, merge summaries and errors to it.
func WithProgress(sink *ProgressSink) Option {
	return func(c *Curator) { c.progress = sink }
}

// WithSkillPrompt overrides the opening prompt for skill sessions.
func WithSkillPrompt(prompt string) Option {
	return func(c *Curator) { c.skillPrompt = prompt }
}

// Curator owns the dual-loop state machine:
// Idle -> RunningPrimary -> RunningSkill -> Merging -> RunningPrimary
// -> ... -> Completed | Failed. Nesting is strictly depth-1: a skill
// session never escalates again.
type Curator struct {
	factory      core.DriverFactory
	store        playbook.Store
	pb           *playbook.Playbook
	policy       *EscalationPolicy
	primaryHooks *hooks.Dispatcher
	skillHooks   *hooks.Dispatcher
	extractor    *extract.Extractor
	progress     *ProgressSink
	skillPrompt  string
	state        State
}

// NewCurator loads the playbook from the store and prepares the state
// machine. A store that cannot load is a configuration failure.
func NewCurator(factory core.DriverFactory, store playbook.Store, opts ...Option) (*Curator, error) {
	pb, err := store.Load()
	if err != nil {
		return nil, errors.Wrap(err, errors.ConfigurationFailed, "failed to load playbook")
	}

	c := &Curator{
		factory:      factory,
		store:        store,
		pb:           pb,
		policy:       NewEscalationPolicy(),
		primaryHooks: hooks.NewDispatcher(),
		skillHooks:   hooks.DefaultSkillDispatcher("Write", "Bash"),
		extractor:    extract.NewExtractor(),
		skillPrompt:  DefaultSkillPrompt,
		state:        StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// State returns the curator's current lifecycle state.
func (c *Curator) State() State {
	return c.state
}

// Playbook returns the in-memory ledger. After a merge failure it still
// reflects the merged state; only persistence failed.
func (c *Curator) Playbook() *playbook.Playbook {
	return c.pb
}

// RunTask executes one primary session over the given context root,
// escalating into skill sessions per the policy and merging their
// deltas. The returned result always carries the trajectory gathered so
// far; the error is non-nil exactly when the result reports failure
// from a fatal cause rather than the engine declaring the task
// unsuccessful.
func (c *Curator) RunTask(ctx context.Context, sc *core.SessionContext, prompt string) (*TaskResult, error) {
	logger := logging.GetLogger()
	trajectory := core.NewTrajectory()
	result := &TaskResult{Trajectory: trajectory, PlaybookVersion: c.pb.Version}

	fail := func(err error) (*TaskResult, error) {
		c.state = StateFailed
		result.Success = false
		result.ErrorMessage = err.Error()
		result.PlaybookVersion = c.pb.Version
		c.report("task failed: %v", err)
		return result, err
	}

	if err := errors.CheckContext(ctx, "run task"); err != nil {
		return fail(err)
	}

	sc.Knowledge = c.pb.ToContext()
	driver, err := c.factory(sc, core.LoopPrimary)
	if err != nil {
		return fail(errors.Wrap(err, errors.ConfigurationFailed, "primary driver construction failed"))
	}

	c.state = StateRunningPrimary
	ctx = logging.WithSession(ctx, driver.SessionID(), string(core.LoopPrimary))
	logger.Info(ctx, "primary session started")
	c.report("primary session %s started", driver.SessionID())

	stream, err := driver.Start(ctx, sc.EnrichPrompt(prompt))
	if err != nil {
		return fail(errors.Wrap(err, errors.TransportFailed, "primary session start failed"))
	}
	defer stream.Cancel()

	vetoed := make(map[string]bool)
	var recent []core.Event
	var streamFailure string
	taskSuccess := false

	for e := range stream.Events {
		if !c.processEvent(&e, c.primaryHooks, vetoed, trajectory) {
			continue
		}

		recent = append(recent, e)
		if len(recent) > recentWindowSize {
			recent = recent[1:]
		}

		switch p := e.Payload.(type) {
		case core.SessionEndPayload:
			taskSuccess = p.Success
		case core.ErrorPayload:
			streamFailure = p.Message
		}

		if streamFailure != "" {
			continue
		}

		if c.state == StateRunningPrimary && c.policy.ShouldEscalate(recent, c.pb) {
			accepted, err := c.runSkillSession(ctx, sc, driver, trajectory)
			if err != nil {
				return fail(err)
			}
			result.DeltaCount += accepted
			// A fresh window keeps the same events from re-triggering.
			recent = nil
		}
	}

	if streamFailure != "" {
		return fail(errors.New(errors.TransportFailed, streamFailure))
	}

	c.state = StateCompleted
	result.Success = taskSuccess
	result.PlaybookVersion = c.pb.Version
	logger.Info(ctx, "task completed: success=%t playbook_version=%d deltas=%d",
		taskSuccess, c.pb.Version, result.DeltaCount)
	c.report("task completed (playbook v%d, %d deltas)", c.pb.Version, result.DeltaCount)
	return result, nil
}

// runSkillSession drains one nested skill session to completion into
// the shared trajectory, then merges its extracted deltas. A cancelled
// skill session still goes through extraction; its summary simply
// reports an unsuccessful run.
func (c *Curator) runSkillSession(ctx context.Context, sc *core.SessionContext, primary core.SessionDriver, trajectory *core.Trajectory) (int, error) {
	logger := logging.GetLogger()
	c.state = StateRunningSkill
	c.report("escalating to skill session (playbook v%d)", c.pb.Version)

	sc.Knowledge = c.pb.ToContext()
	skill, err := c.factory(sc, core.LoopSkill)
	if err != nil {
		return 0, errors.Wrap(err, errors.ConfigurationFailed, "skill driver construction failed")
	}

	skillCtx := logging.WithSession(ctx, skill.SessionID(), string(core.LoopSkill))
	logger.Info(skillCtx, "skill session started")

	stream, err := skill.Start(skillCtx, sc.EnrichPrompt(c.skillPrompt))
	if err != nil {
		return 0, errors.Wrap(err, errors.TransportFailed, "skill session start failed")
	}
	defer stream.Cancel()

	vetoed := make(map[string]bool)
	segmentStart := trajectory.Len()
	for e := range stream.Events {
		c.processEvent(&e, c.skillHooks, vetoed, trajectory)
	}

	segment := trajectory.Events()[segmentStart:]

	c.state = StateMerging
	summary := c.extractor.Summarize(segment)
	deltas := c.extractor.ToDeltas(summary, c.pb.Version)
	accepted := c.pb.ValidateAndMerge(deltas)

	if err := c.store.Save(c.pb); err != nil {
		return len(accepted), errors.Wrap(err, errors.MergeFailed, "playbook save failed")
	}

	note := fmt.Sprintf("merged %d deltas into playbook v%d (%s)",
		len(accepted), c.pb.Version, summary.Brief())
	logger.Info(skillCtx, "%s", note)
	c.report("%s", note)

	if injector, ok := primary.(core.Injector); ok {
		if err := injector.Inject(ctx, note); err != nil {
			logger.Warn(ctx, "merge summary injection failed: %v", err)
		}
	}

	c.state = StateRunningPrimary
	return len(accepted), nil
}

// processEvent runs hook dispatch and appends the event. It returns
// false when the event is the paired result of a vetoed invocation,
// which must never appear in the trajectory because the tool never ran.
func (c *Curator) processEvent(e *core.Event, d *hooks.Dispatcher, vetoed map[string]bool, trajectory *core.Trajectory) bool {
	if res, ok := e.Payload.(core.ToolResultPayload); ok && vetoed[res.InvocationID] {
		return false
	}

	if phase, ok := hooks.PhaseFor(e.Kind); ok && d != nil {
		decision := d.Dispatch(phase, e)
		if decision.Action == hooks.ActionDeny {
			if inv, ok := e.Payload.(core.ToolInvocationPayload); ok {
				vetoed[inv.InvocationID] = true
			}
		}
	}

	trajectory.Append(*e)
	return true
}

func (c *Curator) report(format string, args ...any) {
	if c.progress != nil {
		c.progress.Report(format, args...)
	}
}
