package triplog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-vigil/internal/log"
	"github.com/teslashibe/go-vigil/pkg/alert"
)

// Recorder keeps one open session per source and files alerts under it.
type Recorder struct {
	store  *Store
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]string // source -> session id
}

// NewRecorder creates a recorder backed by store.
func NewRecorder(store *Store, logger *slog.Logger) *Recorder {
	return &Recorder{
		store:    store,
		logger:   log.Or(logger).With("component", "triplog"),
		sessions: make(map[string]string),
	}
}

// Begin opens a session for source, ending any previous one.
func (r *Recorder) Begin(ctx context.Context, source string) (Session, error) {
	r.End(ctx, source)

	sess, err := r.store.StartSession(ctx, source)
	if err != nil {
		return Session{}, err
	}
	r.mu.Lock()
	r.sessions[source] = sess.ID
	r.mu.Unlock()
	return sess, nil
}

// End closes the open session for source, if any.
func (r *Recorder) End(ctx context.Context, source string) {
	r.mu.Lock()
	id, ok := r.sessions[source]
	delete(r.sessions, source)
	r.mu.Unlock()
	if !ok {
		return
	}
	if err := r.store.EndSession(ctx, id); err != nil {
		r.logger.Warn("end session failed", "source", source, "error", err)
	}
}

// EndAll closes every open session.
func (r *Recorder) EndAll(ctx context.Context) {
	r.mu.Lock()
	sources := make([]string, 0, len(r.sessions))
	for s := range r.sessions {
		sources = append(sources, s)
	}
	r.mu.Unlock()

	for _, s := range sources {
		r.End(ctx, s)
	}
}

// SessionID returns the open session for source.
func (r *Recorder) SessionID(source string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.sessions[source]
	return id, ok
}

// Record stores a, opening a session for its source when none is open.
func (r *Recorder) Record(ctx context.Context, a alert.Alert) error {
	id, ok := r.SessionID(a.Source)
	if !ok {
		sess, err := r.Begin(ctx, a.Source)
		if err != nil {
			return err
		}
		id = sess.ID
	}
	return r.store.RecordAlert(ctx, id, a)
}

// Sink returns an alert sink that records with a short timeout and logs
// failures.
func (r *Recorder) Sink() alert.Sink {
	return func(a alert.Alert) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := r.Record(ctx, a); err != nil {
			r.logger.Error("record alert failed", "alert", a.ID, "error", err)
		}
	}
}
