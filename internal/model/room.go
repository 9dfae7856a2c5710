package model

import (
	"time"
)

// Room 그림 방. 실시간 참가자가 없어도 유지된다.
type Room struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	RoomID    string    `gorm:"column:room_id;type:varchar(100);uniqueIndex;not null" json:"roomId"`
	CreatorID int64     `gorm:"not null;index" json:"creatorId"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`

	// Relations
	Creator *User `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
}

func (Room) TableName() string {
	return "rooms"
}

// All 마이그레이션 대상 모델 목록
func All() []any {
	return []any{&User{}, &Room{}}
}
