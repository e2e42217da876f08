package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/BookNudge-AI/booknudge-go/calendly"
	"github.com/BookNudge-AI/booknudge-go/phone"
	"github.com/BookNudge-AI/booknudge-go/vonage"
)

// ErrMessageTooLong is returned for manual replies over the SMS cap.
var ErrMessageTooLong = fmt.Errorf("conversation: message exceeds %d characters", MaxSMSLength)

// ErrEmptyMessage is returned for manual replies with no content.
var ErrEmptyMessage = errors.New("conversation: message must not be empty")

// ErrConversationNotFound is returned when a manual reply targets a
// conversation that does not exist.
var ErrConversationNotFound = errors.New("conversation: not found")

// SMSSender is the outbound SMS surface the engine needs from the Vonage
// client.
type SMSSender interface {
	SendSMSTextMessage(ctx context.Context, to, text string) (*vonage.MessageResponse, error)
}

// FollowUpScheduler fires a follow-up task at a future time, at least once.
type FollowUpScheduler interface {
	ScheduleFollowUp(ctx context.Context, task FollowUpTask) error
}

// Engine is the conversation state machine. Each handler is a stateless
// invocation; the store is the single source of truth, and every handler
// is idempotent under at-least-once delivery of its trigger.
type Engine struct {
	store         Store
	sms           SMSSender
	scheduler     FollowUpScheduler
	followUpDelay time.Duration
	now           func() time.Time
}

// NewEngine wires the engine's collaborators.
func NewEngine(store Store, sms SMSSender, scheduler FollowUpScheduler, followUpDelay time.Duration) *Engine {
	return &Engine{
		store:         store,
		sms:           sms,
		scheduler:     scheduler,
		followUpDelay: followUpDelay,
		now:           time.Now,
	}
}

// HandleBooking processes a verified invitee.created payload: create the
// record, send the confirmation SMS, schedule the follow-up.
//
// A send or store failure after creation leaves the record in place with
// initialMessageSent=false. That partial state is intentional; it is the
// operator's signal to recover manually, not something to roll back.
func (e *Engine) HandleBooking(ctx context.Context, payload calendly.Payload) (*Record, error) {
	contact, err := calendly.ExtractContact(payload)
	if err != nil {
		return nil, err
	}

	now := e.now()
	record := NewRecord(contact, now)

	if err := e.store.Create(ctx, record); err != nil {
		if errors.Is(err, ErrDuplicateConversation) {
			// Webhook redelivery of a booking we already processed. The
			// conditional create is the dedupe; do not send a second SMS.
			log.Info().
				Str("phone", record.PhoneNumber).
				Str("conversation_id", record.ConversationID).
				Msg("Booking already processed, skipping")
			existing, getErr := e.store.Get(ctx, record.PhoneNumber, record.ConversationID)
			if getErr != nil {
				return nil, getErr
			}
			return existing, nil
		}
		return nil, err
	}

	log.Info().
		Str("phone", record.PhoneNumber).
		Str("conversation_id", record.ConversationID).
		Str("client_name", record.ClientName).
		Msg("Conversation created")

	if _, err := e.sms.SendSMSTextMessage(ctx, record.PhoneNumber, initialMessage(record)); err != nil {
		log.Error().
			Err(err).
			Str("phone", record.PhoneNumber).
			Str("conversation_id", record.ConversationID).
			Msg("Initial SMS send failed, record kept for manual recovery")
		return record, fmt.Errorf("conversation: initial send: %w", err)
	}

	if err := e.store.MarkInitialSent(ctx, record.PhoneNumber, record.ConversationID, e.now()); err != nil {
		log.Error().
			Err(err).
			Str("phone", record.PhoneNumber).
			Str("conversation_id", record.ConversationID).
			Msg("Failed to mark initial message sent")
		return record, err
	}
	record.InitialMessageSent = true

	e.scheduleFollowUp(ctx, record)

	return record, nil
}

// scheduleFollowUp is best-effort: a lost follow-up degrades the product
// but does not affect the primary flow's correctness.
func (e *Engine) scheduleFollowUp(ctx context.Context, record *Record) {
	task := FollowUpTask{
		PhoneNumber:    record.PhoneNumber,
		ConversationID: record.ConversationID,
		ClientName:     record.ClientName,
		ScheduledTime:  e.now().Add(e.followUpDelay),
	}
	if err := e.scheduler.ScheduleFollowUp(ctx, task); err != nil {
		log.Error().
			Err(err).
			Str("phone", record.PhoneNumber).
			Str("conversation_id", record.ConversationID).
			Msg("Failed to schedule follow-up")
		return
	}
	log.Info().
		Str("phone", record.PhoneNumber).
		Str("conversation_id", record.ConversationID).
		Time("scheduled_time", task.ScheduledTime).
		Msg("Follow-up scheduled")
}

// HandleFollowUp runs when the scheduled follow-up fires. Every skip is a
// silent success; only a send failure propagates, so the scheduler's retry
// policy re-attempts it.
func (e *Engine) HandleFollowUp(ctx context.Context, task FollowUpTask) error {
	record, err := e.store.Get(ctx, task.PhoneNumber, task.ConversationID)
	if err != nil {
		return err
	}
	if record == nil {
		log.Info().
			Str("phone", task.PhoneNumber).
			Str("conversation_id", task.ConversationID).
			Msg("Follow-up fired for unknown conversation, skipping")
		return nil
	}
	if record.ClientResponded {
		log.Info().
			Str("phone", task.PhoneNumber).
			Str("conversation_id", task.ConversationID).
			Msg("Client already responded, skipping follow-up")
		return nil
	}
	if record.FollowUpMessageSent {
		log.Info().
			Str("phone", task.PhoneNumber).
			Str("conversation_id", task.ConversationID).
			Msg("Follow-up already sent, skipping")
		return nil
	}
	if !followUpAllowed(record.Status) {
		log.Info().
			Str("phone", task.PhoneNumber).
			Str("conversation_id", task.ConversationID).
			Str("status", string(record.Status)).
			Msg("Conversation moved past follow-up, skipping")
		return nil
	}

	// The checks above are advisory; the conditional claim is what actually
	// decides. A reply landing between our read and this write makes the
	// claim fail, and the follow-up is never sent.
	if err := e.store.ClaimFollowUp(ctx, task.PhoneNumber, task.ConversationID, e.now()); err != nil {
		if errors.Is(err, ErrConditionFailed) {
			log.Info().
				Str("phone", task.PhoneNumber).
				Str("conversation_id", task.ConversationID).
				Msg("Lost follow-up claim, skipping")
			return nil
		}
		return err
	}

	if _, err := e.sms.SendSMSTextMessage(ctx, task.PhoneNumber, followUpMessage(record.ClientName)); err != nil {
		// Give the claim back so the scheduler's retry can take it again.
		if relErr := e.store.ReleaseFollowUp(ctx, task.PhoneNumber, task.ConversationID); relErr != nil && !errors.Is(relErr, ErrConditionFailed) {
			log.Error().
				Err(relErr).
				Str("phone", task.PhoneNumber).
				Str("conversation_id", task.ConversationID).
				Msg("Failed to release follow-up claim")
		}
		return fmt.Errorf("conversation: follow-up send: %w", err)
	}

	log.Info().
		Str("phone", task.PhoneNumber).
		Str("conversation_id", task.ConversationID).
		Msg("Follow-up sent")
	return nil
}

func followUpAllowed(status Status) bool {
	switch status {
	case StatusAwaitingResponse, StatusInitialSent, StatusFollowUpScheduled:
		return true
	}
	return false
}

// HandleInboundSMS matches an inbound reply to the sender's most recent
// conversation. Store failures propagate so the provider's redelivery can
// retry; everything else is a silent success.
func (e *Engine) HandleInboundSMS(ctx context.Context, msg InboundSMS) error {
	from := phone.Normalize(msg.From)
	if !phone.IsValid(from) {
		log.Warn().Str("from", msg.From).Msg("Inbound SMS from unparseable number, ignoring")
		return nil
	}

	record, err := e.store.Latest(ctx, from)
	if err != nil {
		return err
	}
	if record == nil {
		log.Info().Str("phone", from).Msg("Inbound SMS with no conversation, ignoring")
		return nil
	}

	switch record.Status {
	case StatusAwaitingResponse, StatusInitialSent, StatusFollowUpScheduled, StatusFollowUpSent:
		// fall through to record the response
	default:
		// Already responded or completed: the message is only visible via
		// the admin side channel, it does not reopen the conversation.
		log.Info().
			Str("phone", from).
			Str("conversation_id", record.ConversationID).
			Str("status", string(record.Status)).
			Msg("Conversation already closed to automated replies, dropping")
		return nil
	}

	text := truncate(msg.Text, maxResponseTextLength)
	if err := e.store.MarkResponded(ctx, from, record.ConversationID, e.now(), text); err != nil {
		if errors.Is(err, ErrConditionFailed) {
			log.Info().
				Str("phone", from).
				Str("conversation_id", record.ConversationID).
				Msg("Response already recorded, skipping")
			return nil
		}
		return err
	}

	log.Info().
		Str("phone", from).
		Str("conversation_id", record.ConversationID).
		Msg("Client response recorded")
	return nil
}

// SendManualReply sends an operator message into the thread and records it
// in adminReplies. It never reads or writes status, so it cannot interfere
// with the automated transitions.
func (e *Engine) SendManualReply(ctx context.Context, phoneNumber, conversationID, message, sentBy string) error {
	if message == "" {
		return ErrEmptyMessage
	}
	if len(message) > MaxSMSLength {
		return ErrMessageTooLong
	}

	if _, err := e.sms.SendSMSTextMessage(ctx, phoneNumber, message); err != nil {
		return fmt.Errorf("conversation: manual reply send: %w", err)
	}

	reply := AdminReply{
		Message: message,
		SentAt:  e.now().UTC().Format(time.RFC3339),
		SentBy:  sentBy,
	}
	if err := e.store.AppendAdminReply(ctx, phoneNumber, conversationID, reply); err != nil {
		if errors.Is(err, ErrConditionFailed) {
			return ErrConversationNotFound
		}
		return err
	}

	log.Info().
		Str("phone", phoneNumber).
		Str("conversation_id", conversationID).
		Str("sent_by", sentBy).
		Msg("Manual reply sent")
	return nil
}
