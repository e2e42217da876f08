package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BookNudge-AI/booknudge-go/conversation"
)

type fakeQueue struct {
	due       []conversation.FollowUpTask
	claimErr  error
	requeued  []conversation.FollowUpTask
	requeueAt []time.Time
	completed []conversation.FollowUpTask
}

func (f *fakeQueue) claimDue(_ context.Context, _ time.Time) ([]conversation.FollowUpTask, error) {
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	tasks := f.due
	f.due = nil
	return tasks, nil
}

func (f *fakeQueue) requeue(_ context.Context, task conversation.FollowUpTask, at time.Time) error {
	f.requeued = append(f.requeued, task)
	f.requeueAt = append(f.requeueAt, at)
	return nil
}

func (f *fakeQueue) complete(_ context.Context, task conversation.FollowUpTask) {
	f.completed = append(f.completed, task)
}

func task(conversationID string) conversation.FollowUpTask {
	return conversation.FollowUpTask{
		PhoneNumber:    "+12345678900",
		ConversationID: conversationID,
	}
}

func TestDrain_DispatchesAndCompletes(t *testing.T) {
	queue := &fakeQueue{due: []conversation.FollowUpTask{task("c1"), task("c2")}}

	var handled []string
	r := &Runner{
		queue: queue,
		handler: func(_ context.Context, task conversation.FollowUpTask) error {
			handled = append(handled, task.ConversationID)
			return nil
		},
	}

	r.drain(context.Background())
	require.Equal(t, []string{"c1", "c2"}, handled)
	require.Len(t, queue.completed, 2)
	require.Empty(t, queue.requeued)
}

func TestDrain_RequeuesFailedTask(t *testing.T) {
	queue := &fakeQueue{due: []conversation.FollowUpTask{task("c1"), task("c2")}}

	before := time.Now()
	r := &Runner{
		queue: queue,
		handler: func(_ context.Context, task conversation.FollowUpTask) error {
			if task.ConversationID == "c1" {
				return errors.New("send failed")
			}
			return nil
		},
	}

	r.drain(context.Background())

	require.Len(t, queue.requeued, 1)
	require.Equal(t, "c1", queue.requeued[0].ConversationID)
	require.False(t, queue.requeueAt[0].Before(before.Add(retryDelay)), "retry scheduled at least retryDelay out")

	// The failed task was not completed; the successful one was.
	require.Len(t, queue.completed, 1)
	require.Equal(t, "c2", queue.completed[0].ConversationID)
}

func TestDrain_ClaimErrorIsRetriedNextTick(t *testing.T) {
	queue := &fakeQueue{claimErr: errors.New("redis down")}

	called := false
	r := &Runner{
		queue:   queue,
		handler: func(context.Context, conversation.FollowUpTask) error { called = true; return nil },
	}

	r.drain(context.Background())
	require.False(t, called)
	require.Empty(t, queue.requeued)
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	queue := &fakeQueue{}
	r := &Runner{
		queue:    queue,
		handler:  func(context.Context, conversation.FollowUpTask) error { return nil },
		interval: time.Millisecond,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop after context cancellation")
	}
}

func TestTaskID(t *testing.T) {
	require.Equal(t, "+12345678900|c1", taskID(task("c1")))
}
