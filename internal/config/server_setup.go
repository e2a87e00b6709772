package config

import (
	"os"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nuhmanudheent/hosp-connect-ticket-service/internal/handler"
	"github.com/nuhmanudheent/hosp-connect-ticket-service/internal/repository"
	"github.com/nuhmanudheent/hosp-connect-ticket-service/internal/service"
	"github.com/nuhmanudheent/hosp-connect-ticket-service/internal/utils"
	"github.com/nuhmanudheent/hosp-connect-ticket-service/logs"
)

// ServerSetup wires the full service and returns the router ready to run.
func ServerSetup() *gin.Engine {
	logger := logs.NewLogger()

	db := InitDatabase()
	ticketRepo := repository.NewTicketRepository(db)

	producer := NewKafkaProducer(os.Getenv("KAFKA_BROKER"))
	ticketService := service.NewTicketService(ticketRepo, producer, logger)
	ticketHandler := handler.NewTicketHandler(ticketService)

	go utils.StartCronScheduler(ticketService, logger)

	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	router.Use(RequestID())

	api := router.Group("/api/v1")
	{
		api.POST("/tickets", ticketHandler.CreateTicket)
		api.GET("/tickets", ticketHandler.ListTickets)
		api.GET("/doctors/:doctor_id/schedules", ticketHandler.WeekSchedules)
	}

	return router
}

// RequestID propagates an incoming X-Request-ID or assigns a fresh one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestId := c.GetHeader("X-Request-ID")
		if requestId == "" {
			requestId = uuid.New().String()
		}
		c.Set("request_id", requestId)
		c.Writer.Header().Set("X-Request-ID", requestId)
		c.Next()
	}
}
