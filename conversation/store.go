package conversation

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicateConversation means a record with the same
// (phoneNumber, conversationId) already exists. Webhook redelivery of the
// same booking surfaces here and is treated as an idempotent success.
var ErrDuplicateConversation = errors.New("conversation: record already exists")

// ErrConditionFailed means a conditional update lost its race: the record
// was already responded to, already followed up, or moved past the state
// the caller observed. Callers treat it as a no-op, not a failure.
var ErrConditionFailed = errors.New("conversation: conditional update failed")

// ListOptions filters and paginates List. Cursor is the opaque token
// returned by the previous page; empty means start from the beginning.
type ListOptions struct {
	Status Status
	Limit  int32
	Cursor string
}

// ListResult is one page of records plus the cursor for the next page.
// An empty NextCursor means the scan is exhausted.
type ListResult struct {
	Records    []Record
	NextCursor string
}

// Store is the durable record of conversations. All mutating operations
// refresh updatedAt; the conditional operations return ErrConditionFailed
// instead of mutating when their precondition does not hold.
type Store interface {
	// Create writes a new record, failing with ErrDuplicateConversation if
	// the key already exists.
	Create(ctx context.Context, record *Record) error

	// Get returns the record for a key, or nil if it does not exist.
	Get(ctx context.Context, phoneNumber, conversationID string) (*Record, error)

	// Latest returns the most recent conversation for a phone number, or
	// nil if the number has none. Conversation ids are time-ordered, so
	// this is a descending sort-key query with limit 1.
	Latest(ctx context.Context, phoneNumber string) (*Record, error)

	// MarkInitialSent records that the confirmation SMS went out.
	MarkInitialSent(ctx context.Context, phoneNumber, conversationID string, at time.Time) error

	// ClaimFollowUp atomically flips followUpMessageSent and moves the
	// record to FOLLOW_UP_SENT, but only while the client has not responded,
	// no follow-up was sent, and the status is still one where a follow-up
	// makes sense. This conditional write is what closes the race between
	// the follow-up timer and an inbound reply.
	ClaimFollowUp(ctx context.Context, phoneNumber, conversationID string, at time.Time) error

	// ReleaseFollowUp undoes a claim whose SMS send failed, so the
	// scheduler's retry can claim again. No-op if a response arrived in
	// the meantime.
	ReleaseFollowUp(ctx context.Context, phoneNumber, conversationID string) error

	// MarkResponded records the client's reply and moves the record to
	// CLIENT_RESPONDED, but only if it had not already responded and is
	// not COMPLETED.
	MarkResponded(ctx context.Context, phoneNumber, conversationID string, at time.Time, responseText string) error

	// AppendAdminReply appends a manual operator message. It never reads
	// or writes status, so it cannot interfere with the automated race.
	AppendAdminReply(ctx context.Context, phoneNumber, conversationID string, reply AdminReply) error

	// List scans conversations with optional status filtering and
	// cursor-based pagination.
	List(ctx context.Context, opts ListOptions) (*ListResult, error)
}
