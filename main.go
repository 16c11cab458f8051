package main

import (
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"sharedish/chat"
	"sharedish/controllers"
	"sharedish/middleware"
	"sharedish/models"
	"sharedish/pkg/config"
	"sharedish/pkg/verify"
	"sharedish/routes"
)

func openDatabase() (*gorm.DB, error) {
	if config.DatabaseDSN != "" {
		return gorm.Open(mysql.Open(config.DatabaseDSN), &gorm.Config{})
	}
	// local development default
	return gorm.Open(sqlite.Open("app.db"), &gorm.Config{})
}

func buildVerifier() *verify.Service {
	var sender verify.Sender
	if config.TwilioAccountSID != "" && config.TwilioAuthToken != "" {
		sender = verify.NewTwilioSender(config.TwilioAccountSID, config.TwilioAuthToken, config.TwilioWhatsAppFrom)
	} else {
		log.Println("[verify] Twilio credentials missing, codes are logged instead of sent")
		sender = verify.MockSender{}
	}
	ttl := time.Duration(config.VerifyCodeTTLSeconds) * time.Second
	return verify.NewService(sender, ttl, config.VerifyMaxAttempts)
}

func main() {
	db, err := openDatabase()
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Post{},
		&models.Chat{},
		&models.ChatParticipant{},
		&models.Message{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	middleware.SetRateLimitConfig(
		time.Duration(config.RateLimitWindowSeconds)*time.Second,
		config.RateLimitCapacity,
	)
	middleware.SetDuplicateTTL(time.Duration(config.VerifyResendSeconds) * time.Second)

	store := chat.NewGormStore(db)
	rooms := chat.NewRegistry()
	gateway := controllers.NewGateway(store, rooms)
	verifier := buildVerifier()

	if config.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{config.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, db, store, gateway, verifier)

	log.Printf("[server] listening on :%s", config.Port)
	if err := r.Run(":" + config.Port); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
