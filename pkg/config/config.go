package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

var (
	AppEnv       string
	IsProduction bool

	JWTSecret   string
	Port        string
	DatabaseDSN string
	FrontendURL string

	// Twilio WhatsApp credentials; phone verification falls back to mock
	// mode when these are empty.
	TwilioAccountSID   string
	TwilioAuthToken    string
	TwilioWhatsAppFrom string

	// runtime tunables
	RateLimitWindowSeconds int
	RateLimitCapacity      int
	VerifyCodeTTLSeconds   int
	VerifyMaxAttempts      int
	VerifyResendSeconds    int
	WSSendBufferSize       int
)

// loadAppEnv loads .env for non-production environments only; production
// reads everything from the host environment.
func loadAppEnv() {
	AppEnv = os.Getenv("APP_ENV")
	if AppEnv == "production" {
		return
	}
	// .env is optional outside production (tests, CI)
	_ = godotenv.Load()
}

func init() {
	loadAppEnv()

	AppEnv = os.Getenv("APP_ENV")
	if AppEnv == "" {
		AppEnv = "development"
	}
	IsProduction = AppEnv == "production"

	JWTSecret = os.Getenv("JWT_SECRET_KEY")
	Port = os.Getenv("PORT")
	if Port == "" {
		Port = "5000"
	}
	DatabaseDSN = os.Getenv("DATABASE_DSN")
	FrontendURL = os.Getenv("FRONTEND_URL")
	if FrontendURL == "" {
		FrontendURL = "http://localhost:3000"
	}

	TwilioAccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	TwilioAuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	TwilioWhatsAppFrom = os.Getenv("TWILIO_WHATSAPP_FROM")

	RateLimitWindowSeconds = atoiOr(os.Getenv("RATE_LIMIT_WINDOW_SECONDS"), 10)
	RateLimitCapacity = atoiOr(os.Getenv("RATE_LIMIT_CAPACITY"), 5)
	VerifyCodeTTLSeconds = atoiOr(os.Getenv("VERIFY_CODE_TTL_SECONDS"), 300)
	VerifyMaxAttempts = atoiOr(os.Getenv("VERIFY_MAX_ATTEMPTS"), 3)
	VerifyResendSeconds = atoiOr(os.Getenv("VERIFY_RESEND_SECONDS"), 45)
	WSSendBufferSize = atoiOr(os.Getenv("WS_SEND_BUFFER_SIZE"), 256)

	if IsProduction && JWTSecret == "" {
		log.Fatal("JWT_SECRET_KEY must be set in production")
	}

	log.Printf("[config] AppEnv=%s IsProduction=%v", AppEnv, IsProduction)
	log.Printf("[config] TwilioConfigured=%v", TwilioAccountSID != "" && TwilioAuthToken != "")
	log.Printf("[config] RateLimit window=%ds capacity=%d verifyTTL=%ds verifyAttempts=%d",
		RateLimitWindowSeconds, RateLimitCapacity, VerifyCodeTTLSeconds, VerifyMaxAttempts)
}

func atoiOr(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}
