package triplog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-vigil/pkg/alert"
	"github.com/teslashibe/go-vigil/pkg/hazard"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sub", "trips.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// clock returns a store clock that advances one second per call.
func clock(start time.Time) func() time.Time {
	now := start
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sess, err := s.StartSession(ctx, "cabin")
	require.NoError(t, err)
	assert.Len(t, sess.ID, 36)
	assert.Equal(t, "cabin", sess.Source)

	loaded, err := s.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, loaded.StartedAt.Equal(sess.StartedAt))
	assert.Nil(t, loaded.EndedAt)

	require.NoError(t, s.EndSession(ctx, sess.ID))
	loaded, err = s.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.EndedAt)

	assert.ErrorIs(t, s.EndSession(ctx, sess.ID), ErrSessionNotFound)
	assert.ErrorIs(t, s.EndSession(ctx, "missing"), ErrSessionNotFound)

	_, err = s.GetSession(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRecordAndListAlerts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	s.now = clock(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))

	sess, err := s.StartSession(ctx, "cabin")
	require.NoError(t, err)

	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, s.RecordAlert(ctx, sess.ID, alert.Alert{
		Kind: alert.KindDrowsy, Source: "cabin", Detail: "eyes closed 1500ms", ClosedMs: 1500,
		At: base.Add(time.Second),
	}))
	require.NoError(t, s.RecordAlert(ctx, sess.ID, alert.Alert{
		Kind: alert.KindHazard, Source: "cabin", Detail: "pedestrian ahead", Hazard: hazard.KindPedestrian,
		At: base.Add(1500 * time.Millisecond),
	}))

	records, err := s.RecentAlerts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, alert.KindHazard, records[0].Kind)
	assert.Equal(t, hazard.KindPedestrian, records[0].Hazard)
	assert.Equal(t, sess.ID, records[0].SessionID)
	assert.NotEmpty(t, records[0].ID)

	assert.Equal(t, alert.KindDrowsy, records[1].Kind)
	assert.Equal(t, int64(1500), records[1].ClosedMs)
	assert.Equal(t, hazard.KindNone, records[1].Hazard)
	assert.True(t, records[1].At.Equal(base.Add(time.Second)))

	limited, err := s.RecentAlerts(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestRecordAlertNeedsOpenSession(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	err := s.RecordAlert(ctx, "missing", alert.Alert{Kind: alert.KindWarning, Source: "cabin"})
	assert.ErrorIs(t, err, ErrSessionNotFound)

	sess, err := s.StartSession(ctx, "cabin")
	require.NoError(t, err)
	require.NoError(t, s.EndSession(ctx, sess.ID))

	err = s.RecordAlert(ctx, sess.ID, alert.Alert{Kind: alert.KindWarning, Source: "cabin"})
	assert.ErrorIs(t, err, ErrSessionNotFound)

	records, err := s.RecentAlerts(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "trips.db")

	s, err := Open(path)
	require.NoError(t, err)
	sess, err := s.StartSession(ctx, "cabin")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.GetSession(ctx, sess.ID)
	assert.NoError(t, err)
}

func TestRecorder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	r := NewRecorder(s, nil)

	// An alert for an unknown source opens a session.
	sink := r.Sink()
	sink(alert.Alert{Kind: alert.KindDrowsy, Source: "phone-1", Detail: "eyes closed"})

	id, ok := r.SessionID("phone-1")
	require.True(t, ok)

	records, err := s.RecentAlerts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, id, records[0].SessionID)

	// Begin replaces the open session.
	next, err := r.Begin(ctx, "phone-1")
	require.NoError(t, err)
	assert.NotEqual(t, id, next.ID)

	old, err := s.GetSession(ctx, id)
	require.NoError(t, err)
	assert.NotNil(t, old.EndedAt)

	r.EndAll(ctx)
	_, ok = r.SessionID("phone-1")
	assert.False(t, ok)

	cur, err := s.GetSession(ctx, next.ID)
	require.NoError(t, err)
	assert.NotNil(t, cur.EndedAt)
}
