package models

import "gorm.io/gorm"

// Post is a marketplace listing. Chat threads hang off a post via its
// string key (see Chat.PostKey).
type Post struct {
	gorm.Model
	UserID      uint   `gorm:"not null;index"`
	Title       string `gorm:"size:200;not null"`
	Description string `gorm:"type:text"`
	ImageURL    string `gorm:"size:500"`
	City        string `gorm:"size:120;index"`
	Available   bool   `gorm:"default:true"`
}
