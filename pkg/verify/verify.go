package verify

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"sync"
	"time"

	"sharedish/pkg/cache"
	utils "sharedish/pkg/utills"
)

var (
	ErrInvalidPhone = errors.New("invalid phone number")
	ErrSendFailed   = errors.New("failed to send verification code")
)

// Sender delivers a verification code to a phone number.
type Sender interface {
	SendCode(phone, code string) error
}

// MockSender logs the code instead of sending it. Used when Twilio
// credentials are not configured, so local development works end to end.
type MockSender struct{}

func (MockSender) SendCode(phone, code string) error {
	log.Printf("[verify] mock mode: code %s for %s", code, phone)
	return nil
}

// Service implements the one-time verification code flow: a 6-digit code
// per phone number with a TTL, a bounded number of failed attempts, and
// single-use semantics.
type Service struct {
	codes       *cache.Cache
	sender      Sender
	ttl         time.Duration
	maxAttempts int
}

type verification struct {
	mu       sync.Mutex
	code     string
	attempts int
	expires  time.Time
}

func NewService(sender Sender, ttl time.Duration, maxAttempts int) *Service {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Service{
		codes:       cache.New(0),
		sender:      sender,
		ttl:         ttl,
		maxAttempts: maxAttempts,
	}
}

// Send generates a fresh code for phone, stores it and hands it to the
// sender. A resend replaces any pending code.
func (s *Service) Send(phone string) error {
	phone = utils.NormalizePhone(phone)
	if phone == "" {
		return ErrInvalidPhone
	}
	code, err := generateCode()
	if err != nil {
		return err
	}
	s.codes.Set(s.key(phone), &verification{
		code:    code,
		expires: time.Now().Add(s.ttl),
	}, s.ttl)
	if err := s.sender.SendCode(phone, code); err != nil {
		log.Printf("[verify] send failed for %s: %v", phone, err)
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return nil
}

// Check verifies code for phone. The code is single-use: a successful
// check consumes it. A wrong guess counts against the attempt budget and
// the pending verification is dropped once the budget is spent.
func (s *Service) Check(phone, code string) bool {
	phone = utils.NormalizePhone(phone)
	if phone == "" || code == "" {
		return false
	}
	v, ok := s.codes.Get(s.key(phone))
	if !ok {
		return false
	}
	ver, ok := v.(*verification)
	if !ok {
		return false
	}

	ver.mu.Lock()
	defer ver.mu.Unlock()
	if time.Now().After(ver.expires) {
		s.codes.Delete(s.key(phone))
		return false
	}
	if ver.code != code {
		ver.attempts++
		if ver.attempts >= s.maxAttempts {
			s.codes.Delete(s.key(phone))
		}
		return false
	}
	s.codes.Delete(s.key(phone))
	return true
}

func (s *Service) key(phone string) string {
	return cache.KeyFromStrings("verify", phone)
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
