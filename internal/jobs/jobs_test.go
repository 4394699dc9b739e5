package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePurger struct {
	remaining time.Duration
	err       error
	calls     []string
}

func (f *fakePurger) Expire(_ context.Context, id string) (time.Duration, error) {
	f.calls = append(f.calls, id)
	return f.remaining, f.err
}

type fakeExpirer struct {
	before time.Time
	n      int64
}

func (f *fakeExpirer) ExpireBefore(_ context.Context, t time.Time) (int64, error) {
	f.before = t
	return f.n, nil
}

type recordingBus struct {
	events []map[string]interface{}
}

func (b *recordingBus) PublishSession(_ string, event map[string]interface{}) error {
	b.events = append(b.events, event)
	return nil
}

type requeued struct {
	id    string
	after time.Duration
}

func newTestServer(p SessionPurger, d DraftExpirer) (*JobServer, *[]requeued) {
	var got []requeued
	js := &JobServer{
		sessions: p,
		drafts:   d,
		log:      zap.NewNop(),
		now:      func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
	}
	js.requeue = func(id string, after time.Duration) error {
		got = append(got, requeued{id, after})
		return nil
	}
	return js, &got
}

func TestSessionPurge_Expired(t *testing.T) {
	p := &fakePurger{}
	js, requeues := newTestServer(p, nil)
	bus := &recordingBus{}
	js.SetPublisher(bus)

	err := js.handleSessionPurge(context.Background(), asynq.NewTask(TypeSessionPurge, []byte("s-1")))
	require.NoError(t, err)

	assert.Equal(t, []string{"s-1"}, p.calls)
	assert.Empty(t, *requeues)
	require.Len(t, bus.events, 1)
	assert.Equal(t, "session.expired", bus.events[0]["type"])
}

func TestSessionPurge_StillActiveReschedules(t *testing.T) {
	p := &fakePurger{remaining: 12 * time.Minute}
	js, requeues := newTestServer(p, nil)
	bus := &recordingBus{}
	js.SetPublisher(bus)

	require.NoError(t, js.handleSessionPurge(context.Background(), asynq.NewTask(TypeSessionPurge, []byte("s-2"))))
	assert.Equal(t, []requeued{{"s-2", 12 * time.Minute}}, *requeues)
	assert.Empty(t, bus.events)
}

func TestSessionPurge_Errors(t *testing.T) {
	js, _ := newTestServer(&fakePurger{err: errors.New("disk gone")}, nil)
	err := js.handleSessionPurge(context.Background(), asynq.NewTask(TypeSessionPurge, []byte("s-3")))
	assert.ErrorContains(t, err, "disk gone")

	err = js.handleSessionPurge(context.Background(), asynq.NewTask(TypeSessionPurge, nil))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestDraftExpire(t *testing.T) {
	d := &fakeExpirer{n: 3}
	js, _ := newTestServer(&fakePurger{}, d)

	require.NoError(t, js.handleDraftExpire(context.Background(), asynq.NewTask(TypeDraftExpire, nil)))
	assert.Equal(t, js.now(), d.before)

	noDrafts, _ := newTestServer(&fakePurger{}, nil)
	assert.NoError(t, noDrafts.handleDraftExpire(context.Background(), asynq.NewTask(TypeDraftExpire, nil)))
}
