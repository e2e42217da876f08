package server

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/BookNudge-AI/booknudge-go/calendly"
	"github.com/BookNudge-AI/booknudge-go/conversation"
)

const signatureHeader = "Calendly-Webhook-Signature"

// calendlyWebhookHandler ingests booking events. Invalid signature is 401,
// no extractable phone is 400, a downstream send failure is 500, and
// everything else (including event types we do not care about) is 200.
func (s *Server) calendlyWebhookHandler(c fiber.Ctx) error {
	rawBody := c.Body()

	if !calendly.VerifySignature(c.Get(signatureHeader), rawBody, s.signingKey) {
		log.Warn().Msg("Calendly webhook signature verification failed")
		return c.Status(fiber.StatusUnauthorized).JSON(errorJSON("INVALID_SIGNATURE", "Webhook signature verification failed"))
	}

	var event calendly.WebhookEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		log.Error().Err(err).Msg("Error parsing Calendly webhook JSON")
		return c.Status(fiber.StatusBadRequest).JSON(errorJSON("MALFORMED_PAYLOAD", "Request body is not valid JSON"))
	}

	if event.Event != calendly.EventInviteeCreated {
		log.Info().Str("event", event.Event).Msg("Ignoring Calendly event")
		return c.JSON(fiber.Map{"status": "ignored"})
	}

	record, err := s.engine.HandleBooking(c.Context(), event.Payload)
	if err != nil {
		if errors.Is(err, calendly.ErrMissingPhone) {
			return c.Status(fiber.StatusBadRequest).JSON(errorJSON("MISSING_PHONE", "No valid phone number in booking payload"))
		}
		log.Error().Err(err).Msg("Error processing booking")
		return c.Status(fiber.StatusInternalServerError).JSON(errorJSON("PROCESSING_FAILED", "Failed to process booking"))
	}

	return c.JSON(fiber.Map{
		"status":          "ok",
		"conversation_id": record.ConversationID,
	})
}

// inboundSMSHandler ingests SMS provider notifications. One delivery may
// carry a single notification or a batch; each is processed independently.
// A store failure returns 500 so the provider redelivers; the handler is
// idempotent under that redelivery.
func (s *Server) inboundSMSHandler(c fiber.Ctx) error {
	rawBody := c.Body()

	messages, err := decodeInboundSMS(rawBody)
	if err != nil {
		log.Error().Err(err).Msg("Error parsing inbound SMS JSON")
		return c.Status(fiber.StatusBadRequest).JSON(errorJSON("MALFORMED_PAYLOAD", "Request body is not valid JSON"))
	}

	var failed bool
	for _, msg := range messages {
		log.Info().
			Str("message_uuid", msg.MessageUUID).
			Str("from", msg.From).
			Msg("Processing inbound SMS")

		if err := s.engine.HandleInboundSMS(c.Context(), msg); err != nil {
			log.Error().Err(err).Str("message_uuid", msg.MessageUUID).Msg("Error processing inbound SMS")
			failed = true
		}
	}
	if failed {
		return c.Status(fiber.StatusInternalServerError).JSON(errorJSON("PROCESSING_FAILED", "One or more messages failed to process"))
	}

	return c.JSON(fiber.Map{"status": "ok"})
}

func decodeInboundSMS(rawBody []byte) ([]conversation.InboundSMS, error) {
	var batch []conversation.InboundSMS
	if err := json.Unmarshal(rawBody, &batch); err == nil {
		return batch, nil
	}

	var single conversation.InboundSMS
	if err := json.Unmarshal(rawBody, &single); err != nil {
		return nil, err
	}
	return []conversation.InboundSMS{single}, nil
}

// followUpHandler lets an external scheduler deliver a due follow-up over
// HTTP. A failure returns 500 so the scheduler's retry policy re-invokes.
func (s *Server) followUpHandler(c fiber.Ctx) error {
	var task conversation.FollowUpTask
	if err := c.Bind().JSON(&task); err != nil {
		log.Error().Err(err).Msg("Error parsing follow-up task JSON")
		return c.Status(fiber.StatusBadRequest).JSON(errorJSON("MALFORMED_PAYLOAD", "Request body is not valid JSON"))
	}
	if task.PhoneNumber == "" || task.ConversationID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(errorJSON("INVALID_TASK", "phone_number and conversation_id are required"))
	}

	if err := s.engine.HandleFollowUp(c.Context(), task); err != nil {
		log.Error().
			Err(err).
			Str("conversation_id", task.ConversationID).
			Msg("Error processing follow-up")
		return c.Status(fiber.StatusInternalServerError).JSON(errorJSON("PROCESSING_FAILED", "Failed to process follow-up"))
	}

	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) healthCheckHandler(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
