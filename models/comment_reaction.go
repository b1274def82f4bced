package models

import "time"

// CommentReaction is a typed per-user marker on a comment. A user may hold
// several distinct types on one comment but never the same type twice.
type CommentReaction struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;uniqueIndex:idx_reactions_triple" json:"user_id"`
	CommentID    uint      `gorm:"not null;uniqueIndex:idx_reactions_triple" json:"comment_id"`
	ReactionType string    `gorm:"size:32;not null;uniqueIndex:idx_reactions_triple" json:"reaction_type"`
	CreatedAt    time.Time `json:"created_at"`
	User         User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"user"`
}
