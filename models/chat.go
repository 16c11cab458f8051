package models

import "gorm.io/gorm"

// Chat is the durable conversation for one post. At most one chat exists
// per post key; it is created lazily on the first message or an explicit
// create request and is only ever mutated by appending messages or adding
// a participant.
type Chat struct {
	gorm.Model
	PostKey      string            `gorm:"uniqueIndex;size:64;not null"`
	Participants []ChatParticipant `gorm:"constraint:OnDelete:CASCADE"`
	Messages     []Message         `gorm:"constraint:OnDelete:CASCADE"`
}

// ChatParticipant records a user who has taken part in a chat. The set
// only grows; participants are never removed.
type ChatParticipant struct {
	gorm.Model
	ChatID uint   `gorm:"index:idx_chat_user,unique;not null"`
	UserID string `gorm:"index:idx_chat_user,unique;size:80;not null"`
}
