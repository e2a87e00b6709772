package utils

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/nuhmanudheent/hosp-connect-ticket-service/internal/service"
)

// StartCronScheduler runs the two daily maintenance jobs: day schedule
// generation at midnight and ticket expiry shortly after. Both pass the
// current wall clock in explicitly; the service never reads it on its own.
func StartCronScheduler(serviceInterface service.TicketService, logger *logrus.Logger) {
	cronScheduler := cron.New()

	_, err := cronScheduler.AddFunc("0 0 * * *", func() {
		if err := serviceInterface.GenerateDaySchedules(time.Now()); err != nil {
			logger.WithError(err).Error("Scheduled day schedule generation failed")
		}
	})
	if err != nil {
		logger.Fatalf("Failed to schedule day schedule generation job: %v", err)
	}

	_, err = cronScheduler.AddFunc("30 0 * * *", func() {
		if _, err := serviceInterface.ExpireOldTickets(time.Now()); err != nil {
			logger.WithError(err).Error("Scheduled ticket expiry failed")
		}
	})
	if err != nil {
		logger.Fatalf("Failed to schedule ticket expiry job: %v", err)
	}

	cronScheduler.Start()

	select {}
}
