package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"kcevents/internal/archive"
	"kcevents/internal/config"
	appLog "kcevents/internal/log"
	"kcevents/internal/meetup"
	"kcevents/internal/metrics"
	"kcevents/internal/model"
	"kcevents/internal/output"
)

// State is a step of a run.
type State string

const (
	StateStart          State = "START"
	StateAuthenticating State = "AUTHENTICATING"
	StateFetching       State = "FETCHING"
	StateNormalizing    State = "NORMALIZING"
	StateWriting        State = "WRITING"
	StateFallback       State = "FALLBACK"
	StateDone           State = "DONE"
)

// Failure classes carried in fallback notes. Upstream bodies never reach the
// note.
const (
	NoteConfig = "configuration incomplete"
	NoteAuth   = "authentication failed"
	NoteFetch  = "event fetch failed"
	NoteWrite  = "write failed"
)

const notePrefix = "No events available - "

type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

type EventSource interface {
	FetchEvents(ctx context.Context, accessToken, group string) (meetup.RawEventSet, error)
}

type EventNormalizer interface {
	Normalize(raw meetup.RawEventSet, now time.Time) []model.Event
}

type DocumentWriter interface {
	Write(doc model.EventsDocument) error
	WriteFallback(reason string) (model.EventsDocument, error)
}

// Pipeline sequences token exchange, fetch, normalize and write, and owns the
// single failure policy: any upstream failure ends in a fallback document.
//
// Metrics and Archive are optional side channels. Their failures are logged
// and never change the outcome of a run.
type Pipeline struct {
	Tokens     TokenSource
	Events     EventSource
	Normalizer EventNormalizer
	Writer     DocumentWriter
	Group      string

	Metrics *metrics.Recorder
	Archive archive.Store

	// Now defaults to time.Now.
	Now func() time.Time
	// NewRunID defaults to a random UUID.
	NewRunID func() string
}

// Result describes how a run ended.
type Result struct {
	RunID    string
	State    State
	Fallback bool
	// Note is the fallback note, empty on success.
	Note   string
	Events int
	// Cause is the error that triggered the fallback, if any.
	Cause error
}

// run tracks one invocation for logging and stage timing.
type run struct {
	id      string
	state   State
	entered time.Time
	p       *Pipeline
}

func (p *Pipeline) begin() *run {
	id := ""
	if p.NewRunID != nil {
		id = p.NewRunID()
	}
	if id == "" {
		id = uuid.NewString()
	}
	r := &run{id: id, state: StateStart, entered: time.Now(), p: p}
	appLog.Info("pipeline run start", "run_id", id, "state", StateStart, "group", p.Group)
	return r
}

func (r *run) transition(next State) {
	elapsed := time.Since(r.entered)
	if r.state != StateStart {
		r.p.Metrics.ObserveStage(stageLabel(r.state), elapsed)
	}
	appLog.Debug("pipeline transition", "run_id", r.id, "from", r.state, "to", next, "elapsed", elapsed.Round(time.Millisecond))
	r.state = next
	r.entered = time.Now()
}

func stageLabel(s State) string {
	switch s {
	case StateAuthenticating:
		return "authenticating"
	case StateFetching:
		return "fetching"
	case StateNormalizing:
		return "normalizing"
	case StateWriting:
		return "writing"
	case StateFallback:
		return "fallback"
	default:
		return "other"
	}
}

// Run performs one pass. The returned error is non-nil only when even the
// fallback document could not be written; it is then an *output.WriteError.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	r := p.begin()

	r.transition(StateAuthenticating)
	token, err := p.Tokens.AccessToken(ctx)
	if err == nil && token == "" {
		err = &meetup.AuthError{Err: errors.New("empty access token")}
	}
	if err != nil {
		return p.fallback(ctx, r, NoteAuth, err)
	}

	r.transition(StateFetching)
	raw, err := p.Events.FetchEvents(ctx, token, p.Group)
	if err != nil {
		return p.fallback(ctx, r, NoteFetch, err)
	}

	r.transition(StateNormalizing)
	now := p.now()
	events := p.Normalizer.Normalize(raw, now)

	r.transition(StateWriting)
	doc := model.EventsDocument{Events: events, LastUpdated: now.UTC()}
	if err := p.Writer.Write(doc); err != nil {
		return p.fallback(ctx, r, NoteWrite, err)
	}

	r.transition(StateDone)
	p.finish(ctx, r.id, metrics.OutcomeSuccess, doc)
	appLog.Info("pipeline run done", "run_id", r.id, "events", len(events))

	return Result{RunID: r.id, State: StateDone, Events: len(events)}, nil
}

// Fallback writes the fallback document for a failure detected before Run,
// such as a *config.ConfigError.
func (p *Pipeline) Fallback(ctx context.Context, cause error) (Result, error) {
	r := p.begin()
	return p.fallback(ctx, r, NoteFor(cause), cause)
}

// NoteFor maps an error onto its failure class.
func NoteFor(err error) string {
	var (
		ce *config.ConfigError
		ae *meetup.AuthError
		fe *meetup.FetchError
		we *output.WriteError
	)
	switch {
	case errors.As(err, &ce):
		return NoteConfig
	case errors.As(err, &ae):
		return NoteAuth
	case errors.As(err, &fe):
		return NoteFetch
	case errors.As(err, &we):
		return NoteWrite
	default:
		return NoteFetch
	}
}

func (p *Pipeline) fallback(ctx context.Context, r *run, note string, cause error) (Result, error) {
	appLog.Warn("pipeline falling back", "run_id", r.id, "from", r.state, "reason", note, "cause", errString(cause))
	r.transition(StateFallback)

	doc, err := p.Writer.WriteFallback(notePrefix + note)
	res := Result{RunID: r.id, State: StateFallback, Fallback: true, Note: doc.Note, Cause: cause}
	if err != nil {
		appLog.Error("fallback write failed", err, "run_id", r.id)
		p.Metrics.RecordRun(metrics.OutcomeFailed, 0, p.now())
		var we *output.WriteError
		if !errors.As(err, &we) {
			err = &output.WriteError{Err: err}
		}
		return res, err
	}

	r.transition(StateDone)
	res.State = StateDone
	p.finish(ctx, r.id, metrics.OutcomeFallback, doc)
	appLog.Info("pipeline run done with fallback", "run_id", r.id, "note", doc.Note)
	return res, nil
}

// finish feeds the side channels after a successful terminal write.
func (p *Pipeline) finish(ctx context.Context, runID, outcome string, doc model.EventsDocument) {
	p.Metrics.RecordRun(outcome, len(doc.Events), p.now())
	if p.Archive == nil {
		return
	}
	if err := p.Archive.Record(ctx, archive.NewSnapshot(runID, doc)); err != nil {
		appLog.Error("archive snapshot failed", err, "run_id", runID)
	}
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
