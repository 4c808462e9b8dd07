package main

import (
	"context"
	"flag"
	"time"

	"sigef-backend/internal/config"
	"sigef-backend/internal/repository"
	"sigef-backend/internal/service"
	"sigef-backend/pkg/database"
	"sigef-backend/pkg/jwt"
	"sigef-backend/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, "text")

	email := flag.String("email", cfg.OwnerEmail, "account to reset")
	password := flag.String("password", "", "new password (required, at least 6 characters)")
	flag.Parse()

	if len(*password) < 6 {
		log.Fatal("❌ -password is required and must be at least 6 characters")
	}

	// Setup Database
	db, err := database.ConnectDB(database.Options{Driver: cfg.DBDriver, DSN: cfg.DatabaseURL, MaxOpenConns: 2, MaxIdleConns: 1})
	if err != nil {
		log.WithError(err).Fatal("❌ Failed to connect to database")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	auth := service.NewAuthService(repository.NewUserRepo(db), jwt.NewSigner(cfg.JWTSecret, 0), service.Deps{Log: log})
	if err := auth.ResetPassword(ctx, *email, *password); err != nil {
		log.WithError(err).Fatalf("❌ Failed to reset password for %s", *email)
	}

	log.Infof("✅ Success! Password for %s has been reset; open sessions were ended", *email)
}
