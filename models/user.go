package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents an account. Passwords are stored as bcrypt hashes only and
// never serialized; follower/following counters are denormalized and kept in
// sync transactionally with the follows table.
type User struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Name           string    `gorm:"size:64;uniqueIndex;not null" json:"name"`
	PasswordHash   string    `gorm:"size:255" json:"-"`
	Provider       string    `gorm:"size:32" json:"provider,omitempty"`
	ProviderID     string    `gorm:"size:255" json:"-"`
	FollowerCount  int       `gorm:"default:0" json:"follower_count"`
	FollowingCount int       `gorm:"default:0" json:"following_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// BeforeCreate hook ensures timestamps are set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return nil
}

// BeforeUpdate ensures the UpdatedAt timestamp is refreshed.
func (u *User) BeforeUpdate(tx *gorm.DB) error {
	u.UpdatedAt = time.Now()
	return nil
}
