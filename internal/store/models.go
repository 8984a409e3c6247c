package store

import "time"

// UserSettings holds one user's image preferences. A user without a row
// gets the configured defaults.
type UserSettings struct {
	UserID      uint64 `gorm:"primaryKey;autoIncrement:false"`
	Model       string
	Quality     string
	AspectRatio string
	Style       string
	UpdatedAt   time.Time
}

// User counts lifetime generations.
type User struct {
	UserID           uint64 `gorm:"primaryKey;autoIncrement:false"`
	TotalGenerations int
	CreatedAt        time.Time
}

// DailyUsage counts generations per user per UTC day.
type DailyUsage struct {
	ID     uint   `gorm:"primaryKey"`
	UserID uint64 `gorm:"uniqueIndex:idx_usage_user_date"`
	Date   string `gorm:"uniqueIndex:idx_usage_user_date;size:10"` // 2006-01-02
	Count  int
}

// ReferenceImage is an uploaded image sent ahead of the prompt.
type ReferenceImage struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint64 `gorm:"uniqueIndex:idx_ref_user_slot"`
	Slot      int    `gorm:"uniqueIndex:idx_ref_user_slot"`
	Data      []byte
	MIMEType  string
	Filename  string
	CreatedAt time.Time
}

// UserChannel maps a user's studio channel per guild.
type UserChannel struct {
	UserID    uint64 `gorm:"primaryKey;autoIncrement:false"`
	GuildID   uint64 `gorm:"primaryKey;autoIncrement:false"`
	ChannelID uint64
	CreatedAt time.Time
}
