package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/cppla/murmur/models"
)

// PostService is plain CRUD over posts plus the like membership pairs.
type PostService struct {
	db *gorm.DB
}

// NewPostService creates a PostService.
func NewPostService(db *gorm.DB) *PostService {
	return &PostService{db: db}
}

// Create stores a new post for the author and returns it with the author
// association populated.
func (s *PostService) Create(authorID uint, text string) (*models.Post, error) {
	post := models.Post{UserID: authorID, Text: text}
	if err := s.db.Create(&post).Error; err != nil {
		return nil, err
	}
	if err := s.db.Preload("User").First(&post, post.ID).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

// GetByID returns a post with its author.
func (s *PostService) GetByID(id uint) (*models.Post, error) {
	var post models.Post
	if err := s.db.Preload("User").First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("post %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &post, nil
}

// Delete removes a post. Only the author may delete it.
func (s *PostService) Delete(id, requesterID uint) error {
	var post models.Post
	if err := s.db.First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("post %d: %w", id, ErrNotFound)
		}
		return err
	}
	if post.UserID != requesterID {
		return fmt.Errorf("post %d is not yours: %w", id, ErrForbidden)
	}
	return s.db.Delete(&post).Error
}

// Like records that the user liked the post. Liking twice is a conflict.
func (s *PostService) Like(userID, postID uint) error {
	var post models.Post
	if err := s.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("post %d: %w", postID, ErrNotFound)
		}
		return err
	}

	var existing models.Like
	err := s.db.Where("user_id = ? AND post_id = ?", userID, postID).First(&existing).Error
	if err == nil {
		return fmt.Errorf("post %d already liked: %w", postID, ErrConflict)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if err := s.db.Create(&models.Like{UserID: userID, PostID: postID}).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("post %d already liked: %w", postID, ErrConflict)
		}
		return err
	}
	return nil
}

// Unlike removes the like pair; removing a non-existent pair is NotFound.
func (s *PostService) Unlike(userID, postID uint) error {
	res := s.db.Where("user_id = ? AND post_id = ?", userID, postID).Delete(&models.Like{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("like on post %d: %w", postID, ErrNotFound)
	}
	return nil
}

// LikeCount returns the number of likes on a post.
func (s *PostService) LikeCount(postID uint) (int64, error) {
	var n int64
	err := s.db.Model(&models.Like{}).Where("post_id = ?", postID).Count(&n).Error
	return n, err
}
