package database

import (
	"fmt"
	"log"
	"os"

	"govdata-backend/models"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func Connect() {
	err := godotenv.Load()
	if err != nil {
		log.Fatal("Error loading .env file")
	}

	host := os.Getenv("DB_HOST")
	if host == "" {
		host = "db"
	}

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=5432 sslmode=disable TimeZone=Asia/Riyadh",
		host, os.Getenv("DB_USER"), os.Getenv("DB_PASSWORD"), os.Getenv("DB_NAME"))
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})

	if err != nil {
		fmt.Println(err)
		panic("Could not connect to database")
	}
}

func AutoMigrate() {
	DB.AutoMigrate(
		&models.Service{},
		&models.ServiceCredential{},
		&models.CachedExternalResponse{},
		&models.CallLogEntry{},
		&models.RequestCounterEntry{},
		&models.RequestSummary{},
		&models.OfflineSnapshot{},
		&models.IdempotencyKey{},
	)
}
