package tracker_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mochatech1725/scholarship-scraper2/internal/logger"
	"github.com/mochatech1725/scholarship-scraper2/internal/model"
	"github.com/mochatech1725/scholarship-scraper2/internal/testutil"
	"github.com/mochatech1725/scholarship-scraper2/internal/tracker"
)

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) PublishStatus(ctx context.Context, ev tracker.Event) error {
	return m.Called(ctx, ev).Error(0)
}

func TestTracker_LifecycleWritesCountersAndEndTime(t *testing.T) {
	store := testutil.NewMemJobStore()
	tr := tracker.New(store, nil, "test", logger.NewNop())
	ctx := context.Background()

	rec, err := tr.Create(ctx, "job-1", model.SourceAll)
	require.NoError(t, err)
	assert.Equal(t, model.JobPending, rec.Status)
	assert.Nil(t, rec.EndTime)
	assert.Equal(t, "test", rec.Environment)

	rec, err = tr.Transition(ctx, "job-1", model.JobRunning, tracker.Metadata{})
	require.NoError(t, err)
	assert.Nil(t, rec.EndTime)

	rec, err = tr.Transition(ctx, "job-1", model.JobCompleted, tracker.Metadata{
		Found: 8, Processed: 8, Inserted: 7, Updated: 1, Errors: []string{"[a] item skipped"},
	})
	require.NoError(t, err)
	require.NotNil(t, rec.EndTime)
	assert.False(t, rec.EndTime.Before(rec.StartTime))

	stored := store.Job("job-1")
	require.NotNil(t, stored)
	assert.Equal(t, model.JobCompleted, stored.Status)
	assert.Equal(t, 7, stored.Inserted)
	assert.Equal(t, []string{"[a] item skipped"}, stored.Errors)
}

func TestTracker_RejectsMovesOutOfTerminal(t *testing.T) {
	tr := tracker.New(testutil.NewMemJobStore(), nil, "test", logger.NewNop())
	ctx := context.Background()
	_, err := tr.Create(ctx, "job-1", model.SourceAll)
	require.NoError(t, err)
	_, err = tr.Transition(ctx, "job-1", model.JobFailed, tracker.Metadata{Errors: []string{"boom"}})
	require.NoError(t, err)

	_, err = tr.Transition(ctx, "job-1", model.JobRunning, tracker.Metadata{})
	var te *tracker.TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, model.JobFailed, te.From)
	assert.Equal(t, model.JobRunning, te.To)
}

func TestTracker_RepeatedTerminalWriteIsIdempotent(t *testing.T) {
	store := testutil.NewMemJobStore()
	tr := tracker.New(store, nil, "test", logger.NewNop())
	ctx := context.Background()
	_, err := tr.Create(ctx, "job-1", model.SourceAll)
	require.NoError(t, err)

	md := tracker.Metadata{Found: 2, Processed: 2, Inserted: 2}
	first, err := tr.Transition(ctx, "job-1", model.JobCompleted, md)
	require.NoError(t, err)
	second, err := tr.Transition(ctx, "job-1", model.JobCompleted, md)
	require.NoError(t, err)

	assert.Equal(t, first.EndTime, second.EndTime, "end time is set once")
	assert.Equal(t, 2, store.Job("job-1").Inserted)
}

func TestTracker_UnknownJob(t *testing.T) {
	tr := tracker.New(testutil.NewMemJobStore(), nil, "test", logger.NewNop())
	_, err := tr.Transition(context.Background(), "nope", model.JobRunning, tracker.Metadata{})
	assert.ErrorIs(t, err, tracker.ErrNotFound)
}

func TestTracker_StoreFailure(t *testing.T) {
	store := testutil.NewMemJobStore()
	store.UpsertErr = errors.New("connection refused")
	tr := tracker.New(store, nil, "test", logger.NewNop())
	_, err := tr.Create(context.Background(), "job-1", model.SourceAll)
	assert.ErrorContains(t, err, "connection refused")
}

func TestTracker_PublishesOnStatusChangeOnly(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("PublishStatus", mock.Anything, mock.MatchedBy(func(ev tracker.Event) bool {
		return ev.To == model.JobPending
	})).Return(nil).Once()
	pub.On("PublishStatus", mock.Anything, mock.MatchedBy(func(ev tracker.Event) bool {
		return ev.From == model.JobPending && ev.To == model.JobRunning
	})).Return(errors.New("redis down")).Once()

	tr := tracker.New(testutil.NewMemJobStore(), pub, "test", logger.NewNop())
	ctx := context.Background()
	_, err := tr.Create(ctx, "job-1", "fastweb")
	require.NoError(t, err)
	_, err = tr.Transition(ctx, "job-1", model.JobRunning, tracker.Metadata{})
	require.NoError(t, err, "publish failures are not fatal")
	_, err = tr.Transition(ctx, "job-1", model.JobRunning, tracker.Metadata{Found: 1})
	require.NoError(t, err)

	pub.AssertExpectations(t)
}

func TestTracker_ListDefaultsLimit(t *testing.T) {
	tr := tracker.New(testutil.NewMemJobStore(), nil, "test", logger.NewNop())
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		_, err := tr.Create(ctx, id, model.SourceAll)
		require.NoError(t, err)
	}
	jobs, err := tr.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, jobs, 3)
}

func TestRedisPublisher_PublishesJSON(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	ctx := context.Background()

	sub := rdb.Subscribe(ctx, tracker.EventJobStatus)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	pub := tracker.NewRedisPublisher(rdb)
	require.NoError(t, pub.PublishStatus(ctx, tracker.Event{
		Type: tracker.EventJobStatus, JobID: "job-1", To: model.JobRunning,
	}))

	select {
	case msg := <-sub.Channel():
		var ev tracker.Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
		assert.Equal(t, "job-1", ev.JobID)
		assert.Equal(t, model.JobRunning, ev.To)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}
