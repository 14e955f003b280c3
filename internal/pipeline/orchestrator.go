// Package pipeline turns one incoming turn into a reply or a validated set of
// record operations, and closes sessions into durable notes.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ChamsBouzaiene/assist/internal/assembler"
	"github.com/ChamsBouzaiene/assist/internal/confirm"
	"github.com/ChamsBouzaiene/assist/internal/embedding"
	"github.com/ChamsBouzaiene/assist/internal/engine"
	"github.com/ChamsBouzaiene/assist/internal/intent"
	"github.com/ChamsBouzaiene/assist/internal/memory"
	"github.com/ChamsBouzaiene/assist/internal/model"
	"github.com/ChamsBouzaiene/assist/internal/planner"
	"github.com/ChamsBouzaiene/assist/internal/session"
	"github.com/ChamsBouzaiene/assist/internal/store"
	"github.com/ChamsBouzaiene/assist/internal/tools"
)

var (
	ErrEmptyProject = errors.New("project id is required")
	// ErrWrongProject is returned when a session id belongs to another project.
	ErrWrongProject = errors.New("session belongs to another project")
)

// RephraseResponse is the reply of last resort.
const RephraseResponse = "Sorry, something went wrong on my side while handling that. Could you please rephrase?"

// Config aggregates the settings of every pipeline component.
type Config struct {
	Assembler      assembler.Config        `yaml:"context"`
	Intent         intent.Config           `yaml:"intent"`
	Validator      planner.ValidatorConfig `yaml:"validator"`
	Memory         memory.Config           `yaml:"consolidation"`
	EmbedTimeout   time.Duration           `yaml:"embed_timeout"`
	RespondTimeout time.Duration           `yaml:"respond_timeout"`
}

func DefaultConfig() Config {
	return Config{
		Assembler:      assembler.DefaultConfig(),
		Intent:         intent.DefaultConfig(),
		Validator:      planner.DefaultValidatorConfig(),
		Memory:         memory.DefaultConfig(),
		EmbedTimeout:   10 * time.Second,
		RespondTimeout: 30 * time.Second,
	}
}

// Deps are the external collaborators. LLM may be nil, in which case every
// model-backed step uses its deterministic fallback. A nil Embedder falls
// back to the offline hashing embedder.
type Deps struct {
	Sessions store.SessionStore
	Records  store.RecordStore
	Embedder embedding.Embedder
	LLM      engine.LLMClient
	Model    string
}

// TurnResult is the outcome of one ProcessTurn call.
type TurnResult struct {
	SessionID    string
	TurnID       string
	ResponseText string
	ToolResults  []engine.ToolResult
	Analysis     *intent.Analysis
	Plan         engine.ExecutionPlan
	// Pending is set when the plan was stored as a suggestion awaiting a yes/no.
	Pending bool
}

// EndSessionResult reports a closed session and its replacement.
type EndSessionResult struct {
	EndedSessionID string
	NewSessionID   string
	Title          string
	Summary        *memory.Summary
}

// Orchestrator is safe for concurrent use. Turns of one project are
// processed one at a time, in submission order.
type Orchestrator struct {
	sessions store.SessionStore
	records  store.RecordStore
	gateway  *embedding.Gateway

	assembler    *assembler.Assembler
	classifier   *intent.Classifier
	generator    *planner.Generator
	validator    *planner.Validator
	pending      *confirm.Store
	responder    *Responder
	summarizer   *session.Summarizer
	consolidator *memory.Consolidator

	cfg    Config
	hooks  engine.Hooks
	logger *zap.Logger
	locks  *ProjectLocks
}

type Option func(*Orchestrator)

func WithConfig(cfg Config) Option {
	return func(o *Orchestrator) { o.cfg = cfg }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithHooks adds hooks that observe every turn.
func WithHooks(hooks ...engine.Hook) Option {
	return func(o *Orchestrator) { o.hooks = append(o.hooks, hooks...) }
}

// WithPendingStore shares a suggestion store between orchestrators.
func WithPendingStore(s *confirm.Store) Option {
	return func(o *Orchestrator) { o.pending = s }
}

// WithProjectLocks shares turn serialization between orchestrators, so a
// rebuilt orchestrator never overlaps a turn still running on the old one.
func WithProjectLocks(l *ProjectLocks) Option {
	return func(o *Orchestrator) { o.locks = l }
}

func New(deps Deps, opts ...Option) (*Orchestrator, error) {
	if deps.Sessions == nil || deps.Records == nil {
		return nil, errors.New("pipeline: session and record stores are required")
	}
	o := &Orchestrator{
		sessions: deps.Sessions,
		records:  deps.Records,
		cfg:      DefaultConfig(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.pending == nil {
		o.pending = confirm.NewStore()
	}
	if o.locks == nil {
		o.locks = NewProjectLocks()
	}
	hooks := engine.Hooks{engine.LoggerHook{L: o.logger}}.With(o.hooks...)
	o.hooks = hooks

	emb := deps.Embedder
	if emb == nil {
		emb = embedding.NewHashEmbedder(0)
	}
	o.gateway = embedding.NewGateway(emb,
		embedding.WithTimeout(o.cfg.EmbedTimeout),
		embedding.WithHooks(hooks),
		embedding.WithLogger(o.logger.Named("embedding")))

	o.assembler = assembler.New(o.records, o.gateway,
		assembler.WithConfig(o.cfg.Assembler),
		assembler.WithLogger(o.logger.Named("assembler")))
	o.classifier = intent.New(deps.LLM, deps.Model,
		intent.WithConfig(o.cfg.Intent),
		intent.WithHooks(hooks),
		intent.WithLogger(o.logger.Named("intent")))
	o.generator = planner.NewGenerator(planner.WithLogger(o.logger.Named("planner")))
	o.validator = planner.NewValidator(o.cfg.Validator)
	o.responder = NewResponder(deps.LLM, deps.Model, o.cfg.RespondTimeout, hooks, o.logger.Named("responder"))
	o.summarizer = session.NewSummarizer(deps.LLM, deps.Model, o.cfg.Memory.Timeout, hooks)
	o.consolidator = memory.New(o.records, o.gateway, deps.LLM, deps.Model,
		memory.WithConfig(o.cfg.Memory),
		memory.WithHooks(hooks),
		memory.WithLogger(o.logger.Named("memory")))
	return o, nil
}

// Tools returns the tool registry bound to projectID.
func (o *Orchestrator) Tools(projectID string) engine.ToolRegistry {
	return tools.NewToolRegistry(projectID, o.records, o.gateway, engine.FullToolSet())
}

// PendingSuggestion returns the project's unconfirmed suggestion, if any.
func (o *Orchestrator) PendingSuggestion(projectID string) (*confirm.Suggestion, bool) {
	return o.pending.Peek(projectID)
}

// OpenSession returns the project's open session, creating one if needed.
func (o *Orchestrator) OpenSession(ctx context.Context, projectID string) (*model.Session, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, ErrEmptyProject
	}
	return o.sessions.OpenSession(ctx, projectID)
}

// TurnOption customizes a single ProcessTurn call.
type TurnOption func(*turnOptions)

type turnOptions struct {
	progress func(engine.Phase, string)
}

// WithProgress registers a sink that receives every phase exactly once, in
// order, with a short status.
func WithProgress(sink func(phase engine.Phase, status string)) TurnOption {
	return func(t *turnOptions) { t.progress = sink }
}

// ProcessTurn records userText in the session and produces the reply. Only
// caller errors are returned: an empty project id, or a session that is
// unknown, closed or owned by another project. Every other fault is absorbed.
func (o *Orchestrator) ProcessTurn(ctx context.Context, projectID, userText, sessionID string, opts ...TurnOption) (*TurnResult, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, ErrEmptyProject
	}
	var to turnOptions
	for _, opt := range opts {
		opt(&to)
	}

	unlock := o.locks.Lock(projectID)
	defer unlock()

	sess, err := o.checkSession(ctx, projectID, sessionID)
	if err != nil {
		return nil, err
	}
	prior := sess.Turns
	turn, err := o.sessions.AppendTurn(ctx, sessionID, userText)
	if err != nil {
		return nil, fmt.Errorf("append turn: %w", err)
	}

	hooks := o.hooks
	if to.progress != nil {
		hooks = o.hooks.With(engine.ProgressHook{Sink: to.progress})
	}
	tr := newTracker(ctx, hooks)
	log := o.logger.With(zap.String("project", projectID), zap.String("session", sessionID), zap.String("turn", turn.ID))

	res := o.safeHandle(ctx, log, &turnInput{projectID: projectID, sessionID: sessionID, text: userText, prior: prior}, tr)
	res.SessionID = sessionID
	res.TurnID = turn.ID

	tr.advance(engine.PhaseMemory, "recording turn")
	if err := o.sessions.SetAgentText(ctx, turn.ID, res.ResponseText); err != nil {
		log.Warn("failed to record agent text", zap.Error(err))
	}
	tr.finish()
	return res, nil
}

func (o *Orchestrator) checkSession(ctx context.Context, projectID, sessionID string) (*model.Session, error) {
	sess, err := o.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}
	if sess.ProjectID != projectID {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrWrongProject)
	}
	if sess.Closed() {
		return nil, fmt.Errorf("session %s: %w", sessionID, model.ErrSessionClosed)
	}
	return sess, nil
}

type turnInput struct {
	projectID string
	sessionID string
	text      string
	prior     []model.Turn
}

func (o *Orchestrator) safeHandle(ctx context.Context, log *zap.Logger, in *turnInput, tr *tracker) (res *TurnResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("turn processing panicked", zap.Any("panic", r), zap.Stack("stack"))
			res = &TurnResult{ResponseText: RephraseResponse}
		}
	}()
	return o.handle(ctx, log, in, tr)
}

func (o *Orchestrator) handle(ctx context.Context, log *zap.Logger, in *turnInput, tr *tracker) *TurnResult {
	switch confirm.Classify(in.text) {
	case confirm.Affirmative:
		if sug, ok := o.pending.Take(in.projectID); ok {
			log.Info("suggestion confirmed", zap.String("plan", sug.Plan.FormatForLog()))
			tr.advance(engine.PhaseExecution, "running confirmed suggestion")
			results := engine.ExecuteSequential(ctx, sug.Plan.ToolCalls(), o.Tools(in.projectID), tr.hooks)
			return &TurnResult{ResponseText: FormatResults(results, len(sug.Plan.ToolCalls())), ToolResults: results, Plan: sug.Plan}
		}
	case confirm.Negative:
		if sug, ok := o.pending.Take(in.projectID); ok {
			log.Info("suggestion declined", zap.String("plan", sug.Plan.FormatForLog()))
			tr.advance(engine.PhaseExecution, "suggestion discarded")
			return &TurnResult{ResponseText: DeclinedResponse(sug.Titles())}
		}
	}

	tr.advance(engine.PhaseContext, "gathering context")
	bundle := o.assembler.Assemble(ctx, in.projectID, in.text, in.prior)

	tr.advance(engine.PhaseIntent, "classifying request")
	analysis := o.classifier.Classify(ctx, bundle)
	log.Debug("intent", zap.String("category", string(analysis.Category)),
		zap.Float64("confidence", analysis.Confidence),
		zap.Bool("fallback", analysis.Fallback),
		zap.Bool("clarify", analysis.NeedsClarification))

	tr.advance(engine.PhasePlanning, "planning")
	plan := o.generator.Generate(analysis, bundle)

	tr.advance(engine.PhaseValidation, "validating plan")
	reg := o.Tools(in.projectID)
	plan, err := o.validator.Validate(plan, reg)
	if err != nil {
		log.Info("plan rejected", zap.Error(err))
	}

	res := &TurnResult{Analysis: &analysis, Plan: plan}
	switch {
	case plan.HasToolCalls() && plan.RequiresConfirmation:
		tr.advance(engine.PhaseExecution, "awaiting confirmation")
		sug := o.pending.Set(in.projectID, in.sessionID, plan)
		res.Pending = true
		res.ResponseText = ConfirmationPrompt(sug.Titles())

	case plan.HasToolCalls():
		tr.advance(engine.PhaseExecution, "running operations")
		calls := plan.ToolCalls()
		res.ToolResults = engine.ExecuteSequential(ctx, calls, reg, tr.hooks)
		res.ResponseText = FormatResults(res.ToolResults, len(calls))

	default:
		tr.advance(engine.PhaseExecution, "composing reply")
		if msg := firstMessage(plan); msg != "" {
			res.ResponseText = msg
		} else {
			res.ResponseText = o.responder.Respond(ctx, bundle, analysis.Category)
		}
		if sug, ok := o.pending.Peek(in.projectID); ok && !plan.IsClarification() {
			res.ResponseText += "\n\n" + PendingReminder(sug.Titles())
		}
	}
	return res
}

func firstMessage(plan engine.ExecutionPlan) string {
	for _, s := range plan.Steps {
		if s.Kind == engine.StepRespond && strings.TrimSpace(s.Message) != "" {
			return s.Message
		}
	}
	return ""
}

// EndSession closes the session, distils it into notes and opens a fresh
// session for the project. Title and consolidation failures are absorbed.
func (o *Orchestrator) EndSession(ctx context.Context, projectID, sessionID string) (*EndSessionResult, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, ErrEmptyProject
	}
	unlock := o.locks.Lock(projectID)
	defer unlock()

	sess, err := o.checkSession(ctx, projectID, sessionID)
	if err != nil {
		return nil, err
	}
	log := o.logger.With(zap.String("project", projectID), zap.String("session", sessionID))

	o.pending.Clear(projectID)

	title := o.summarizer.GenerateTitle(ctx, sess.Turns)
	if err := o.sessions.EndSession(ctx, sessionID, title); err != nil {
		return nil, fmt.Errorf("end session %s: %w", sessionID, err)
	}

	summary, err := o.consolidator.Consolidate(ctx, projectID, sess.Turns)
	if err != nil {
		log.Warn("consolidation failed", zap.Error(err))
		summary = &memory.Summary{Skipped: true, Reason: "note store unavailable"}
	}

	next, err := o.sessions.OpenSession(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("open next session: %w", err)
	}
	log.Info("session ended", zap.String("title", title), zap.String("next", next.ID), zap.String("summary", summary.String()))
	return &EndSessionResult{
		EndedSessionID: sessionID,
		NewSessionID:   next.ID,
		Title:          title,
		Summary:        summary,
	}, nil
}

// ProjectLocks hands out one mutex per project id.
type ProjectLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func NewProjectLocks() *ProjectLocks {
	return &ProjectLocks{m: make(map[string]*sync.Mutex)}
}

// Lock blocks until projectID is free and returns the matching unlock.
func (l *ProjectLocks) Lock(projectID string) func() {
	l.mu.Lock()
	mu, ok := l.m[projectID]
	if !ok {
		mu = &sync.Mutex{}
		l.m[projectID] = mu
	}
	l.mu.Unlock()
	mu.Lock()
	return mu.Unlock
}
