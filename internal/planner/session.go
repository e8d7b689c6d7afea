package planner

import (
	"context"
	"errors"
	"fmt"

	"sewing-planner/internal/notify"
	"sewing-planner/internal/project"
	"sewing-planner/internal/reconcile"
)

// FailedError is returned by Session.Do when an effect's commit failed and
// was rolled back.
type FailedError struct {
	Op      notify.Op
	Message string
	Err     error
}

func (e *FailedError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s (%v)", e.Message, e.Err)
}

func (e *FailedError) Unwrap() error { return e.Err }

// Session is one open project: its in-memory aggregate, the engine that
// commits its effects and the notification center failures land on. It is
// owned by a single goroutine.
type Session struct {
	Aggregate *project.Aggregate
	Engine    *reconcile.Engine
	Center    *notify.Center

	planner *Planner
	failed  map[uint64]error
}

// SessionOption customizes a session's pieces; tests use it to inject a
// persister or a clock.
type SessionOption func(*sessionConfig)

type sessionConfig struct {
	persister project.Persister
	notify    []notify.Option
	project   []project.Option
}

func WithPersister(p project.Persister) SessionOption {
	return func(c *sessionConfig) { c.persister = p }
}

func WithNotifyOptions(opts ...notify.Option) SessionOption {
	return func(c *sessionConfig) { c.notify = append(c.notify, opts...) }
}

func WithProjectOptions(opts ...project.Option) SessionOption {
	return func(c *sessionConfig) { c.project = append(c.project, opts...) }
}

// OpenSession loads project id and starts its engine. Sections whose stored
// orders are not strictly increasing are renumbered through the engine
// before the session is returned. The project becomes the last opened one.
func (p *Planner) OpenSession(ctx context.Context, id int64, opts ...SessionOption) (*Session, error) {
	sc := sessionConfig{persister: p.Persister()}
	for _, o := range opts {
		o(&sc)
	}
	agg, err := p.GetProjectSnapshot(ctx, id, sc.project...)
	if err != nil {
		return nil, err
	}
	delay := p.settings.NotificationDelay(p.cfg.NotificationDelay)
	center := notify.NewCenter(append([]notify.Option{notify.WithDelay(delay)}, sc.notify...)...)
	eng := reconcile.New(agg, sc.persister, center,
		reconcile.WithLogger(p.log.With().Str("component", "engine").Int64("project", id).Logger()))

	s := &Session{Aggregate: agg, Engine: eng, Center: center, planner: p, failed: map[uint64]error{}}
	eng.Subscribe(s.onEvent)

	if err := p.settings.SetLastProjectID(id); err != nil {
		p.log.Warn().Err(err).Msg("saving last project failed")
	}

	for _, sec := range agg.Snapshot().Sections {
		eff, err := agg.NormalizeOrders(sec.Section.ID)
		if err != nil {
			eng.Close()
			return nil, err
		}
		if _, err := s.Apply(eff); err != nil {
			eng.Close()
			return nil, err
		}
	}
	if err := s.Settle(ctx); err != nil {
		eng.Close()
		return nil, err
	}
	return s, nil
}

func (s *Session) onEvent(ev reconcile.Event) {
	if ev.Err != nil && ev.Seq != 0 {
		s.failed[ev.Seq] = ev.Err
		// A failed renumber is not retried from here, or a broken database
		// would loop.
		if ev.Op != notify.OpReorderItems {
			s.renumberSections()
		}
	}
	if ev.Committed && ev.Op == notify.OpRenameProject {
		s.planner.refreshSharedListBestEffort(context.Background())
	}
}

// renumberSections queues a dense renumber for every section whose visible
// orders collide, as after an item is put back among orders a later
// reorder already saved.
func (s *Session) renumberSections() {
	for _, sec := range s.Aggregate.Snapshot().Sections {
		eff, err := s.Aggregate.NormalizeOrders(sec.Section.ID)
		if err == nil && eff != nil {
			_, err = s.Apply(eff)
		}
		if err != nil && !errors.Is(err, reconcile.ErrClosed) {
			s.planner.log.Warn().Err(err).Int64("section", sec.Section.ID).Msg("renumbering section failed")
		}
	}
}

// Apply applies eff and queues its commit without waiting. A nil effect is
// a no-op.
func (s *Session) Apply(eff project.Effect) (uint64, error) { return s.Engine.Request(eff) }

// Settle waits for every queued commit and resolves it.
func (s *Session) Settle(ctx context.Context) error { return s.Engine.Settle(ctx) }

// Do applies eff and waits for its commit. A rolled-back commit is returned
// as a *FailedError carrying the user-facing message.
func (s *Session) Do(ctx context.Context, eff project.Effect) error {
	seq, err := s.Apply(eff)
	if err != nil || seq == 0 {
		return err
	}
	if err := s.Settle(ctx); err != nil {
		return err
	}
	if cause, ok := s.failed[seq]; ok {
		delete(s.failed, seq)
		return &FailedError{Op: eff.Op(), Message: notify.Message(eff.Op()), Err: cause}
	}
	return nil
}

// LoadImages reads the session's images. A failure is reported on the
// notification center and nil is returned.
func (s *Session) LoadImages(ctx context.Context) map[int64][]byte {
	out, err := s.planner.LoadImages(ctx, s.Aggregate.Snapshot().Images)
	if err != nil {
		s.Engine.Report(notify.OpLoadImages, err)
		return nil
	}
	return out
}

// Close drains outstanding commits and stops the engine.
func (s *Session) Close() { s.Engine.Close() }
