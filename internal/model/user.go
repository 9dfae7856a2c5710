package model

import (
	"time"
)

// User 사용자 (username + bcrypt 해시)
type User struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"type:varchar(255);not null" json:"-"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relations
	Rooms []Room `gorm:"foreignKey:CreatorID" json:"rooms,omitempty"`
}

func (User) TableName() string {
	return "users"
}
