package server

import (
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/BookNudge-AI/booknudge-go/conversation"
)

type Server struct {
	app        *fiber.App
	engine     *conversation.Engine
	store      conversation.Store
	signingKey string
}

func New(engine *conversation.Engine, store conversation.Store, signingKey string) *Server {
	server := &Server{
		app:        fiber.New(),
		engine:     engine,
		store:      store,
		signingKey: signingKey,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) Start(port string) {
	log.Info().Str("port", port).Msg("Starting booknudge server")

	err := s.app.Listen(":"+port, fiber.ListenConfig{
		DisableStartupMessage: true,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}
}
