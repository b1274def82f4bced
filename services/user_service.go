package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/cppla/murmur/models"
)

// UserService maintains the follow graph and the denormalized follower and
// following counters on the users table. Edge mutation and both counter
// deltas always run inside one transaction so the counters can never drift
// from the edge count.
type UserService struct {
	db *gorm.DB
}

// NewUserService creates a UserService.
func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// Follow inserts the follower->following edge and bumps both counters.
func (s *UserService) Follow(followerID, followingID uint) error {
	if followerID == followingID {
		return fmt.Errorf("cannot follow yourself: %w", ErrBadRequest)
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var followee models.User
		if err := tx.First(&followee, followingID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("user %d: %w", followingID, ErrNotFound)
			}
			return err
		}

		var existing models.Follow
		err := tx.Where("follower_id = ? AND following_id = ?", followerID, followingID).First(&existing).Error
		if err == nil {
			return fmt.Errorf("already following user %d: %w", followingID, ErrConflict)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		edge := models.Follow{FollowerID: followerID, FollowingID: followingID}
		if err := tx.Create(&edge).Error; err != nil {
			// concurrent duplicate insert hits the composite unique index
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("already following user %d: %w", followingID, ErrConflict)
			}
			return err
		}

		if err := tx.Model(&models.User{}).Where("id = ?", followingID).
			UpdateColumn("follower_count", gorm.Expr("follower_count + 1")).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", followerID).
			UpdateColumn("following_count", gorm.Expr("following_count + 1")).Error
	})
}

// Unfollow removes the edge and decrements both counters symmetrically.
func (s *UserService) Unfollow(followerID, followingID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var followee models.User
		if err := tx.First(&followee, followingID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("user %d: %w", followingID, ErrNotFound)
			}
			return err
		}

		res := tx.Where("follower_id = ? AND following_id = ?", followerID, followingID).
			Delete(&models.Follow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("not following user %d: %w", followingID, ErrNotFound)
		}

		if err := tx.Model(&models.User{}).Where("id = ?", followingID).
			UpdateColumn("follower_count", gorm.Expr("follower_count - 1")).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", followerID).
			UpdateColumn("following_count", gorm.Expr("following_count - 1")).Error
	})
}

// IsFollowing reports whether the edge exists. A self-pair is always false
// without touching the database.
func (s *UserService) IsFollowing(followerID, followingID uint) (bool, error) {
	if followerID == followingID {
		return false, nil
	}
	var n int64
	err := s.db.Model(&models.Follow{}).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Count(&n).Error
	return n > 0, err
}
