package server

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/BookNudge-AI/booknudge-go/conversation"
)

// crmConversationsHandler handles GET /crm/conversations with optional
// status filter and cursor pagination.
func (s *Server) crmConversationsHandler(c fiber.Ctx) error {
	opts := conversation.ListOptions{
		Status: conversation.Status(c.Query("status")),
		Cursor: c.Query("cursor"),
		Limit:  50,
	}
	if limitParam := c.Query("limit"); limitParam != "" {
		if limit, err := strconv.Atoi(limitParam); err == nil && limit > 0 && limit <= 200 {
			opts.Limit = int32(limit)
		}
	}

	result, err := s.store.List(c.Context(), opts)
	if err != nil {
		log.Error().Err(err).Msg("Error listing conversations")
		return c.Status(fiber.StatusInternalServerError).JSON(errorJSON("INTERNAL_ERROR", "Failed to list conversations"))
	}

	return c.JSON(fiber.Map{
		"conversations": result.Records,
		"next_cursor":   result.NextCursor,
	})
}

// crmConversationDetailHandler handles GET /crm/conversations/:phone/:conversationId.
func (s *Server) crmConversationDetailHandler(c fiber.Ctx) error {
	phoneNumber := c.Params("phone")
	conversationID := c.Params("conversationId")

	record, err := s.store.Get(c.Context(), phoneNumber, conversationID)
	if err != nil {
		log.Error().Err(err).Str("phone", phoneNumber).Msg("Error loading conversation")
		return c.Status(fiber.StatusInternalServerError).JSON(errorJSON("INTERNAL_ERROR", "Failed to load conversation"))
	}
	if record == nil {
		return c.Status(fiber.StatusNotFound).JSON(errorJSON("NOT_FOUND", "Conversation not found"))
	}

	return c.JSON(record)
}

// crmManualReplyHandler handles POST /crm/conversations/:phone/:conversationId/reply.
// Manual replies ride the same SMS thread but never touch automated state.
func (s *Server) crmManualReplyHandler(c fiber.Ctx) error {
	phoneNumber := c.Params("phone")
	conversationID := c.Params("conversationId")

	var req ManualReplyRequest
	if err := c.Bind().JSON(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorJSON("MALFORMED_PAYLOAD", "Request body is not valid JSON"))
	}
	if req.SentBy == "" {
		req.SentBy = "admin"
	}

	err := s.engine.SendManualReply(c.Context(), phoneNumber, conversationID, req.Message, req.SentBy)
	switch {
	case errors.Is(err, conversation.ErrEmptyMessage), errors.Is(err, conversation.ErrMessageTooLong):
		return c.Status(fiber.StatusBadRequest).JSON(errorJSON("INVALID_MESSAGE", err.Error()))
	case errors.Is(err, conversation.ErrConversationNotFound):
		return c.Status(fiber.StatusNotFound).JSON(errorJSON("NOT_FOUND", "Conversation not found"))
	case err != nil:
		log.Error().Err(err).Str("phone", phoneNumber).Msg("Error sending manual reply")
		return c.Status(fiber.StatusInternalServerError).JSON(errorJSON("SEND_FAILED", "Failed to send manual reply"))
	}

	return c.JSON(fiber.Map{"status": "sent"})
}
