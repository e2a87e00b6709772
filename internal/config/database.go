package config

import (
	"log"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/nuhmanudheent/hosp-connect-ticket-service/internal/domain"
)

func InitDatabase() *gorm.DB {
	dsn := os.Getenv("DATABASE_URL")
	// TranslateError maps the postgres unique-violation onto
	// gorm.ErrDuplicatedKey, which the ticket code retry loop depends on.
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	err = db.AutoMigrate(
		&domain.Doctor{},
		&domain.DefaultSchedule{},
		&domain.DaySchedule{},
		&domain.Ticket{},
	)
	if err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	return db
}
