package db

import (
	"time"

	"gorm.io/datatypes"
)

// The audit schema records room history only. Live rooms are in-memory and
// never restored from these tables.

type Room struct {
	ID        uint      `gorm:"primaryKey"`
	Code      string    `gorm:"size:12;uniqueIndex;not null"`
	HostName  string    `gorm:"size:64;not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
	ClosedAt  *time.Time
	Rounds    []Round
	Events    []Event
}

type Round struct {
	ID         uint      `gorm:"primaryKey"`
	RoomID     uint      `gorm:"index;not null;uniqueIndex:idx_rounds_room_generation"`
	Generation int       `gorm:"not null;uniqueIndex:idx_rounds_room_generation"`
	PromptID   string    `gorm:"size:64;not null"`
	Prompt     string    `gorm:"size:280;not null"`
	Category   string    `gorm:"size:64"`
	WinnerName string    `gorm:"size:64"`
	IsFallback bool      `gorm:"not null;default:false"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

type Event struct {
	ID        uint           `gorm:"primaryKey"`
	RoomID    uint           `gorm:"index;not null"`
	RoundID   *uint          `gorm:"index"`
	Type      string         `gorm:"size:64;not null"`
	Payload   datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"not null"`
}
