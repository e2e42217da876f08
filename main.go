package main

import (
	"context"
	"net/http"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/rs/zerolog/log"

	"github.com/BookNudge-AI/booknudge-go/config"
	"github.com/BookNudge-AI/booknudge-go/conversation"
	"github.com/BookNudge-AI/booknudge-go/scheduler"
	"github.com/BookNudge-AI/booknudge-go/server"
	"github.com/BookNudge-AI/booknudge-go/vonage"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}

	store, err := conversation.NewDynamoStore(awsdynamodb.NewFromConfig(awsCfg), cfg.DynamoDBTable)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create conversation store")
	}
	log.Info().Str("table", cfg.DynamoDBTable).Msg("DynamoDB store ready")

	vonageClient := vonage.NewClient(
		cfg.VonageJWT,
		cfg.GeospecificMessagesAPIURL,
		cfg.MessagesAPIURL,
		cfg.SMSSenderNumber,
		http.Client{},
	)

	schedulerClient := scheduler.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

	engine := conversation.NewEngine(store, &vonageClient, schedulerClient, cfg.FollowUpDelay)

	runner := scheduler.NewRunner(schedulerClient, engine.HandleFollowUp, cfg.SchedulerPollInterval)
	go runner.Start(ctx)

	srv := server.New(engine, store, cfg.CalendlySigningKey)
	srv.Start(cfg.Port)
}
