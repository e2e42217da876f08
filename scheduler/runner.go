package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/BookNudge-AI/booknudge-go/conversation"
)

// retryDelay is how long a task waits after its handler fails before it is
// delivered again.
const retryDelay = time.Minute

// HandlerFunc receives a due follow-up task. A returned error requeues the
// task for retry.
type HandlerFunc func(ctx context.Context, task conversation.FollowUpTask) error

// taskQueue is the slice of the queue client the runner needs.
type taskQueue interface {
	claimDue(ctx context.Context, now time.Time) ([]conversation.FollowUpTask, error)
	requeue(ctx context.Context, task conversation.FollowUpTask, at time.Time) error
	complete(ctx context.Context, task conversation.FollowUpTask)
}

// Runner polls the delay queue and dispatches due tasks to the handler.
type Runner struct {
	queue    taskQueue
	handler  HandlerFunc
	interval time.Duration
}

func NewRunner(client *Client, handler HandlerFunc, interval time.Duration) *Runner {
	return &Runner{
		queue:    client,
		handler:  handler,
		interval: interval,
	}
}

// Start polls until the context is cancelled. Call it in its own goroutine.
func (r *Runner) Start(ctx context.Context) {
	log.Info().Dur("interval", r.interval).Msg("Follow-up runner started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Follow-up runner stopped")
			return
		case <-ticker.C:
			r.drain(ctx)
		}
	}
}

func (r *Runner) drain(ctx context.Context) {
	tasks, err := r.queue.claimDue(ctx, time.Now())
	if err != nil {
		log.Error().Err(err).Msg("Failed to claim due follow-up tasks")
		return
	}

	for _, task := range tasks {
		if err := r.handler(ctx, task); err != nil {
			log.Error().
				Err(err).
				Str("phone", task.PhoneNumber).
				Str("conversation_id", task.ConversationID).
				Msg("Follow-up handler failed, requeueing")
			if reqErr := r.queue.requeue(ctx, task, time.Now().Add(retryDelay)); reqErr != nil {
				log.Error().
					Err(reqErr).
					Str("conversation_id", task.ConversationID).
					Msg("Failed to requeue follow-up task")
			}
			continue
		}
		r.queue.complete(ctx, task)
	}
}
