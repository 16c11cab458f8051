package models

import "time"

// Message is immutable once persisted. CreatedAt is assigned by the
// conversation store at persistence time and is monotonically
// non-decreasing within a chat.
type Message struct {
	ID        uint      `gorm:"primarykey"`
	ChatID    uint      `gorm:"index;not null"`
	Sender    string    `gorm:"size:80;not null"`
	Text      string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"index"`
}
