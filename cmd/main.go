package main

import (
	"log"
	"os"

	"github.com/nuhmanudheent/hosp-connect-ticket-service/internal/config"
)

func main() {
	config.LoadEnv()
	port := os.Getenv("TICKET_PORT")
	if port == "" {
		port = "8080"
	}
	config.EnsureTopicExists(os.Getenv("KAFKA_BROKER"), config.TicketTopic)
	router := config.ServerSetup()
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start ticket service: %v", err)
	}
}
