package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/murmur/services"
	"github.com/cppla/murmur/utils"
)

// CommentController manages threaded comments and their reactions.
type CommentController struct {
	comments *services.CommentService
}

// NewCommentController creates a CommentController.
func NewCommentController(db *gorm.DB) *CommentController {
	return &CommentController{comments: services.NewCommentService(db)}
}

// CreateComment adds a comment to a post, optionally as a reply.
func (c *CommentController) CreateComment(ctx *gin.Context) {
	var req struct {
		Text     string `json:"text" binding:"required"`
		PostID   uint   `json:"post_id" binding:"required"`
		ParentID *uint  `json:"parent_id"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid request payload")
		return
	}

	text := utils.Sanitize(strings.TrimSpace(req.Text))
	if text == "" {
		utils.Error(ctx, http.StatusBadRequest, 40031, "text cannot be empty")
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40130, "unauthorized")
		return
	}

	comment, err := c.comments.Create(userID, req.PostID, text, req.ParentID)
	if err != nil {
		respondServiceError(ctx, err, 50030)
		return
	}
	utils.Success(ctx, gin.H{"comment": comment})
}

// ListByPost returns the nested comment tree for a post.
func (c *CommentController) ListByPost(ctx *gin.Context) {
	postID, ok := parseIDParam(ctx, "postId")
	if !ok {
		return
	}
	tree, err := c.comments.ListByPost(postID)
	if err != nil {
		respondServiceError(ctx, err, 50031)
		return
	}
	utils.Success(ctx, gin.H{"comments": tree})
}

// AddReaction records a typed reaction on a comment.
func (c *CommentController) AddReaction(ctx *gin.Context) {
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	var req struct {
		ReactionType string `json:"reaction_type" binding:"required,max=32"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40032, "invalid request payload")
		return
	}
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40131, "unauthorized")
		return
	}

	if err := c.comments.AddReaction(userID, id, strings.TrimSpace(req.ReactionType)); err != nil {
		respondServiceError(ctx, err, 50032)
		return
	}
	utils.Success(ctx, gin.H{"message": "reaction added"})
}

// RemoveReaction removes a typed reaction from a comment.
func (c *CommentController) RemoveReaction(ctx *gin.Context) {
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	var req struct {
		ReactionType string `json:"reaction_type" binding:"required,max=32"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40033, "invalid request payload")
		return
	}
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40132, "unauthorized")
		return
	}

	if err := c.comments.RemoveReaction(userID, id, strings.TrimSpace(req.ReactionType)); err != nil {
		respondServiceError(ctx, err, 50033)
		return
	}
	ctx.Status(http.StatusNoContent)
}
