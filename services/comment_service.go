package services

import (
	"errors"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"github.com/cppla/murmur/models"
)

// maxReplyDepth caps tree assembly; the schema permits arbitrarily deep
// reply chains and anything past this is truncated rather than recursed into.
const maxReplyDepth = 32

// CommentNode is a comment with its reactions and nested replies, the shape
// returned for display.
type CommentNode struct {
	models.Comment
	Reactions []models.CommentReaction `json:"reactions"`
	Replies   []*CommentNode           `json:"replies"`
}

// CommentService creates threaded comments and typed reactions, and
// reconstructs the reply tree for a post.
type CommentService struct {
	db *gorm.DB
}

// NewCommentService creates a CommentService.
func NewCommentService(db *gorm.DB) *CommentService {
	return &CommentService{db: db}
}

// Create stores a comment on a post. A parent, when given, must be an
// existing comment on the same post.
func (s *CommentService) Create(authorID, postID uint, text string, parentID *uint) (*models.Comment, error) {
	var post models.Post
	if err := s.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("post %d: %w", postID, ErrNotFound)
		}
		return nil, err
	}

	if parentID != nil {
		var parent models.Comment
		if err := s.db.First(&parent, *parentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("parent comment %d: %w", *parentID, ErrNotFound)
			}
			return nil, err
		}
		if parent.PostID != postID {
			return nil, fmt.Errorf("parent comment %d belongs to another post: %w", *parentID, ErrBadRequest)
		}
	}

	comment := models.Comment{UserID: authorID, PostID: postID, Text: text, ParentID: parentID}
	if err := s.db.Create(&comment).Error; err != nil {
		return nil, err
	}
	if err := s.db.Preload("User").First(&comment, comment.ID).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

// ListByPost returns the post's top-level comments with replies nested under
// their true parent and reactions attached to every node, oldest first at
// every level. The whole thread is loaded in two batched queries and
// assembled in memory.
func (s *CommentService) ListByPost(postID uint) ([]*CommentNode, error) {
	var comments []models.Comment
	if err := s.db.Preload("User").
		Where("post_id = ?", postID).
		Order("created_at ASC, id ASC").
		Find(&comments).Error; err != nil {
		return nil, err
	}
	if len(comments) == 0 {
		return []*CommentNode{}, nil
	}

	ids := make([]uint, len(comments))
	for i, c := range comments {
		ids[i] = c.ID
	}
	var reactions []models.CommentReaction
	if err := s.db.Preload("User").
		Where("comment_id IN ?", ids).
		Order("created_at ASC, id ASC").
		Find(&reactions).Error; err != nil {
		return nil, err
	}
	reactionsByComment := make(map[uint][]models.CommentReaction)
	for _, r := range reactions {
		r.User.PasswordHash = ""
		reactionsByComment[r.CommentID] = append(reactionsByComment[r.CommentID], r)
	}

	nodes := make(map[uint]*CommentNode, len(comments))
	var roots []*CommentNode
	for _, c := range comments {
		c.User.PasswordHash = ""
		node := &CommentNode{
			Comment:   c,
			Reactions: reactionsByComment[c.ID],
			Replies:   []*CommentNode{},
		}
		if node.Reactions == nil {
			node.Reactions = []models.CommentReaction{}
		}
		nodes[c.ID] = node
	}
	for _, c := range comments {
		node := nodes[c.ID]
		if c.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		if parent, ok := nodes[*c.ParentID]; ok {
			parent.Replies = append(parent.Replies, node)
		}
	}
	if roots == nil {
		roots = []*CommentNode{}
	}

	sortNodes(roots)
	for _, root := range roots {
		truncateDepth(root, 1)
	}
	return roots, nil
}

// AddReaction records a typed reaction; the (user, comment, type) triple is
// unique.
func (s *CommentService) AddReaction(userID, commentID uint, reactionType string) error {
	var comment models.Comment
	if err := s.db.First(&comment, commentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("comment %d: %w", commentID, ErrNotFound)
		}
		return err
	}

	var existing models.CommentReaction
	err := s.db.Where("user_id = ? AND comment_id = ? AND reaction_type = ?",
		userID, commentID, reactionType).First(&existing).Error
	if err == nil {
		return fmt.Errorf("reaction %q already set on comment %d: %w", reactionType, commentID, ErrConflict)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	reaction := models.CommentReaction{UserID: userID, CommentID: commentID, ReactionType: reactionType}
	if err := s.db.Create(&reaction).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("reaction %q already set on comment %d: %w", reactionType, commentID, ErrConflict)
		}
		return err
	}
	return nil
}

// RemoveReaction deletes the triple; a missing triple is NotFound.
func (s *CommentService) RemoveReaction(userID, commentID uint, reactionType string) error {
	res := s.db.Where("user_id = ? AND comment_id = ? AND reaction_type = ?",
		userID, commentID, reactionType).Delete(&models.CommentReaction{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("reaction %q on comment %d: %w", reactionType, commentID, ErrNotFound)
	}
	return nil
}

func sortNodes(nodes []*CommentNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].CreatedAt.Equal(nodes[j].CreatedAt) {
			return nodes[i].ID < nodes[j].ID
		}
		return nodes[i].CreatedAt.Before(nodes[j].CreatedAt)
	})
}

func truncateDepth(node *CommentNode, depth int) {
	if depth >= maxReplyDepth {
		node.Replies = []*CommentNode{}
		return
	}
	sortNodes(node.Replies)
	for _, reply := range node.Replies {
		truncateDepth(reply, depth+1)
	}
}
