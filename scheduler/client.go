// Package scheduler is a Redis-backed delay queue for follow-up tasks.
// Tasks survive process restarts and are delivered at least once; the
// conversation engine's own state checks make late or repeated deliveries
// harmless.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/BookNudge-AI/booknudge-go/conversation"
)

const (
	// queueKey is a sorted set of task ids scored by fire time.
	queueKey = "followups:queue"
	// payloadKey is a hash of task id to serialized task.
	payloadKey = "followups:payload"
)

type Client struct {
	rdb *redis.Client
}

func NewClient(addr, password string, db int) *Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	client := &Client{rdb: rdb}

	if err := client.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).
			Str("addr", addr).
			Int("db", db).
			Msg("Redis connection failed")
	}
	log.Info().
		Str("addr", addr).
		Int("db", db).
		Msg("Redis connected successfully")

	return client
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// taskID keys a task by its conversation, so re-scheduling the same
// conversation replaces the pending entry instead of adding a second one.
func taskID(task conversation.FollowUpTask) string {
	return task.PhoneNumber + "|" + task.ConversationID
}

// ScheduleFollowUp enqueues the task to fire at task.ScheduledTime.
func (c *Client) ScheduleFollowUp(ctx context.Context, task conversation.FollowUpTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("scheduler: marshal task: %w", err)
	}

	id := taskID(task)
	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, payloadKey, id, payload)
	pipe.ZAdd(ctx, queueKey, redis.Z{
		Score:  float64(task.ScheduledTime.Unix()),
		Member: id,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("scheduler: enqueue: %w", err)
	}
	return nil
}

// claimDue pops every task due at or before now. A task is owned by whoever
// wins the ZRem, so concurrent pollers never deliver the same entry twice.
func (c *Client) claimDue(ctx context.Context, now time.Time) ([]conversation.FollowUpTask, error) {
	ids, err := c.rdb.ZRangeByScore(ctx, queueKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("scheduler: range due: %w", err)
	}

	var tasks []conversation.FollowUpTask
	for _, id := range ids {
		removed, err := c.rdb.ZRem(ctx, queueKey, id).Result()
		if err != nil {
			return tasks, fmt.Errorf("scheduler: claim %s: %w", id, err)
		}
		if removed == 0 {
			continue
		}

		payload, err := c.rdb.HGet(ctx, payloadKey, id).Result()
		if err != nil {
			log.Error().Err(err).Str("task_id", id).Msg("Claimed task has no payload, dropping")
			continue
		}

		var task conversation.FollowUpTask
		if err := json.Unmarshal([]byte(payload), &task); err != nil {
			log.Error().Err(err).Str("task_id", id).Msg("Claimed task payload is malformed, dropping")
			c.rdb.HDel(ctx, payloadKey, id)
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// requeue puts a failed task back with a new fire time. The payload is
// still in the hash, so only the score entry is restored.
func (c *Client) requeue(ctx context.Context, task conversation.FollowUpTask, at time.Time) error {
	return c.rdb.ZAdd(ctx, queueKey, redis.Z{
		Score:  float64(at.Unix()),
		Member: taskID(task),
	}).Err()
}

// complete discards the payload of a finished task.
func (c *Client) complete(ctx context.Context, task conversation.FollowUpTask) {
	if err := c.rdb.HDel(ctx, payloadKey, taskID(task)).Err(); err != nil {
		log.Warn().Err(err).Str("task_id", taskID(task)).Msg("Failed to clean up task payload")
	}
}
