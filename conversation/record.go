// Package conversation holds the SMS conversation state machine: one record
// per booking, created by the Calendly webhook, advanced by the follow-up
// scheduler and the inbound SMS webhook.
package conversation

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/BookNudge-AI/booknudge-go/calendly"
)

// Status is the conversation lifecycle state. CLIENT_RESPONDED is reachable
// from any non-terminal state; COMPLETED is terminal and only set by
// external closure, never by this engine.
type Status string

const (
	StatusInitialSent       Status = "INITIAL_SENT"
	StatusAwaitingResponse  Status = "AWAITING_RESPONSE"
	StatusFollowUpScheduled Status = "FOLLOW_UP_SCHEDULED"
	StatusFollowUpSent      Status = "FOLLOW_UP_SENT"
	StatusClientResponded   Status = "CLIENT_RESPONDED"
	StatusCompleted         Status = "COMPLETED"
)

// recordTTL is how long a conversation stays in the store before DynamoDB
// expires it. Fixed at creation.
const recordTTL = 90 * 24 * time.Hour

// AdminReply is a manual message a human operator sent into the thread.
// Admin replies never affect automated state transitions.
type AdminReply struct {
	Message string `dynamodbav:"message" json:"message"`
	SentAt  string `dynamodbav:"sentAt" json:"sent_at"`
	SentBy  string `dynamodbav:"sentBy" json:"sent_by"`
}

// Record is one conversation, keyed by (phoneNumber, conversationId).
// Both key attributes are immutable once written.
type Record struct {
	PhoneNumber    string `dynamodbav:"phoneNumber" json:"phone_number"`
	ConversationID string `dynamodbav:"conversationId" json:"conversation_id"`

	ClientName     string `dynamodbav:"clientName" json:"client_name"`
	EventID        string `dynamodbav:"eventId" json:"event_id"`
	EventTitle     string `dynamodbav:"eventTitle" json:"event_title"`
	EventStartTime string `dynamodbav:"eventStartTime" json:"event_start_time"`
	EventEndTime   string `dynamodbav:"eventEndTime" json:"event_end_time"`

	InitialMessageSent    bool   `dynamodbav:"initialMessageSent" json:"initial_message_sent"`
	InitialMessageSentAt  string `dynamodbav:"initialMessageSentAt,omitempty" json:"initial_message_sent_at,omitempty"`
	FollowUpMessageSent   bool   `dynamodbav:"followUpMessageSent" json:"follow_up_message_sent"`
	FollowUpMessageSentAt string `dynamodbav:"followUpMessageSentAt,omitempty" json:"follow_up_message_sent_at,omitempty"`

	ClientResponded    bool   `dynamodbav:"clientResponded" json:"client_responded"`
	ClientResponseAt   string `dynamodbav:"clientResponseAt,omitempty" json:"client_response_at,omitempty"`
	ClientResponseText string `dynamodbav:"clientResponseText,omitempty" json:"client_response_text,omitempty"`

	Status       Status       `dynamodbav:"status" json:"status"`
	AdminReplies []AdminReply `dynamodbav:"adminReplies,omitempty" json:"admin_replies,omitempty"`

	CreatedAt string `dynamodbav:"createdAt" json:"created_at"`
	UpdatedAt string `dynamodbav:"updatedAt" json:"updated_at"`
	TTL       int64  `dynamodbav:"ttl" json:"-"`
}

// NewRecord builds the initial conversation record for a booking contact.
func NewRecord(contact calendly.Contact, now time.Time) *Record {
	ts := now.UTC().Format(time.RFC3339)
	return &Record{
		PhoneNumber:    contact.Phone,
		ConversationID: NewConversationID(contact, now),
		ClientName:     contact.ClientName,
		EventID:        contact.EventID,
		EventTitle:     contact.EventTitle,
		EventStartTime: contact.StartTime,
		EventEndTime:   contact.EndTime,
		Status:         StatusAwaitingResponse,
		CreatedAt:      ts,
		UpdatedAt:      ts,
		TTL:            now.Add(recordTTL).Unix(),
	}
}

// NewConversationID derives a time-ordered sort key for the conversation.
// When the provider supplies an event id the result is deterministic, so
// webhook redelivery maps to the same key and the conditional create
// deduplicates it. Without an event id redelivery cannot be deduplicated
// and each delivery gets a fresh id.
func NewConversationID(contact calendly.Contact, now time.Time) string {
	ts := contact.BookedAt
	if ts == "" {
		ts = now.UTC().Format(time.RFC3339)
	}
	suffix := contact.EventID
	if suffix == "" {
		suffix = uuid.NewString()
	}
	return fmt.Sprintf("%s#%s", ts, suffix)
}

// FollowUpTask is the payload carried by a scheduled follow-up. Its
// identity for the scheduler is (PhoneNumber, ConversationID), so
// re-scheduling the same conversation replaces rather than duplicates.
type FollowUpTask struct {
	PhoneNumber    string    `json:"phone_number"`
	ConversationID string    `json:"conversation_id"`
	ClientName     string    `json:"client_name"`
	ScheduledTime  time.Time `json:"scheduled_time"`
}

// InboundSMS is one SMS provider notification. A single webhook delivery
// may batch several of these; each is processed independently.
type InboundSMS struct {
	Channel     string `json:"channel"`
	MessageUUID string `json:"message_uuid"`
	From        string `json:"from"`
	To          string `json:"to"`
	Text        string `json:"text"`
	Timestamp   string `json:"timestamp"`
}
