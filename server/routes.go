package server

func (s *Server) setupRoutes() {
	s.app.Post("/webhooks/calendly", s.calendlyWebhookHandler)
	s.app.Post("/webhooks/inbound-sms", s.inboundSMSHandler)
	s.app.Post("/webhooks/follow-up", s.followUpHandler)

	// CRM API endpoints
	s.app.Get("/crm/conversations", s.crmConversationsHandler)
	s.app.Get("/crm/conversations/:phone/:conversationId", s.crmConversationDetailHandler)
	s.app.Post("/crm/conversations/:phone/:conversationId/reply", s.crmManualReplyHandler)

	s.app.Get("/health", s.healthCheckHandler)
}
