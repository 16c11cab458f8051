package chat

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"sharedish/models"
)

// Store is the durable, append-only conversation log keyed by post.
type Store interface {
	// GetOrCreate returns the conversation for postKey, creating it if
	// needed with participant as its first member. Existing conversations
	// gain participant if they do not have it yet. Safe under concurrent
	// calls for the same key: exactly one conversation is ever created.
	GetOrCreate(postKey, participant string) (*models.Chat, error)

	// Append validates text, assigns the creation timestamp and durably
	// records the message. Returns ErrNotFound when no conversation exists
	// for postKey.
	Append(postKey, sender, text string) (*models.Message, error)

	Participants(postKey string) ([]string, error)
	Messages(postKey string) ([]models.Message, error)
}

// GormStore persists conversations with gorm. A per-key mutex closes the
// get-then-create race and linearizes appends on the same conversation;
// different post keys proceed independently.
type GormStore struct {
	db    *gorm.DB
	locks *keyedMutex

	mu     sync.Mutex
	lastTS map[string]time.Time
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db:     db,
		locks:  newKeyedMutex(),
		lastTS: make(map[string]time.Time),
	}
}

func (s *GormStore) GetOrCreate(postKey, participant string) (*models.Chat, error) {
	postKey = strings.TrimSpace(postKey)
	if postKey == "" {
		return nil, ErrInvalidPostKey
	}
	participant = strings.TrimSpace(participant)

	unlock := s.locks.Lock(postKey)
	defer unlock()

	var chat models.Chat
	err := s.db.Preload("Participants").Where("post_key = ?", postKey).First(&chat).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		chat = models.Chat{PostKey: postKey}
		if participant != "" {
			chat.Participants = []models.ChatParticipant{{UserID: participant}}
		}
		if err := s.db.Create(&chat).Error; err != nil {
			return nil, fmt.Errorf("create conversation %q: %w", postKey, err)
		}
		return &chat, nil
	case err != nil:
		return nil, fmt.Errorf("load conversation %q: %w", postKey, err)
	}

	if participant != "" && !hasParticipant(&chat, participant) {
		p := models.ChatParticipant{ChatID: chat.ID, UserID: participant}
		if err := s.db.Create(&p).Error; err != nil {
			return nil, fmt.Errorf("add participant to %q: %w", postKey, err)
		}
		chat.Participants = append(chat.Participants, p)
	}
	return &chat, nil
}

func (s *GormStore) Append(postKey, sender, text string) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	postKey = strings.TrimSpace(postKey)
	if postKey == "" {
		return nil, ErrInvalidPostKey
	}
	sender = strings.TrimSpace(sender)
	if sender == "" {
		return nil, ErrInvalidSender
	}

	unlock := s.locks.Lock(postKey)
	defer unlock()

	var chat models.Chat
	err := s.db.Where("post_key = ?", postKey).First(&chat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation %q: %w", postKey, err)
	}

	msg := models.Message{
		ChatID:    chat.ID,
		Sender:    sender,
		Text:      text,
		CreatedAt: s.stamp(postKey),
	}
	// Single INSERT: the append is atomic, and Create only returns once
	// the row is durably written.
	if err := s.db.Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("append message to %q: %w", postKey, err)
	}
	return &msg, nil
}

func (s *GormStore) Participants(postKey string) ([]string, error) {
	chat, err := s.find(postKey)
	if err != nil {
		return nil, err
	}
	var parts []models.ChatParticipant
	if err := s.db.Where("chat_id = ?", chat.ID).Find(&parts).Error; err != nil {
		return nil, fmt.Errorf("load participants of %q: %w", postKey, err)
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, p.UserID)
	}
	return out, nil
}

func (s *GormStore) Messages(postKey string) ([]models.Message, error) {
	chat, err := s.find(postKey)
	if err != nil {
		return nil, err
	}
	var msgs []models.Message
	if err := s.db.Where("chat_id = ?", chat.ID).Order("created_at asc, id asc").Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("load messages of %q: %w", postKey, err)
	}
	return msgs, nil
}

func (s *GormStore) find(postKey string) (*models.Chat, error) {
	postKey = strings.TrimSpace(postKey)
	if postKey == "" {
		return nil, ErrInvalidPostKey
	}
	var chat models.Chat
	err := s.db.Where("post_key = ?", postKey).First(&chat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation %q: %w", postKey, err)
	}
	return &chat, nil
}

// stamp returns the creation timestamp for the next message of postKey,
// clamped so timestamps never decrease within a conversation.
func (s *GormStore) stamp(postKey string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if last, ok := s.lastTS[postKey]; ok && now.Before(last) {
		now = last
	}
	s.lastTS[postKey] = now
	return now
}

func hasParticipant(chat *models.Chat, userID string) bool {
	for _, p := range chat.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}
