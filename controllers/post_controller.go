package controllers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/murmur/services"
	"github.com/cppla/murmur/utils"
)

// PostController manages post CRUD, likes, and the composed feed reads.
type PostController struct {
	posts *services.PostService
	feed  *services.FeedService
}

// NewPostController creates a PostController.
func NewPostController(db *gorm.DB) *PostController {
	return &PostController{
		posts: services.NewPostService(db),
		feed:  services.NewFeedService(db),
	}
}

// CreatePost allows authenticated users to create a new post.
func (p *PostController) CreatePost(ctx *gin.Context) {
	var req struct {
		Text string `json:"text" binding:"required,max=280"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}

	text := utils.Sanitize(strings.TrimSpace(req.Text))
	if text == "" {
		utils.Error(ctx, http.StatusBadRequest, 40021, "text cannot be empty")
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40120, "unauthorized")
		return
	}

	post, err := p.posts.Create(userID, text)
	if err != nil {
		respondServiceError(ctx, err, 50020)
		return
	}

	utils.InvalidateByPrefix("cache:posts:list:")
	utils.InvalidateByPrefix(fmt.Sprintf("cache:user:%d:posts:", userID))

	utils.Success(ctx, gin.H{"post": post})
}

// ListPosts returns the paginated global feed with like annotations. The
// anonymous page is cached; personalized pages are always composed live.
func (p *PostController) ListPosts(ctx *gin.Context) {
	page, limit := parsePagination(ctx.Query("page"), ctx.Query("limit"))
	viewer := viewerID(ctx)

	cacheKey := fmt.Sprintf("cache:posts:list:page=%d:limit=%d", page, limit)
	if viewer == nil {
		if b, ok := utils.CacheGetBytes(cacheKey); ok {
			ctx.Data(http.StatusOK, "application/json", b)
			return
		}
	}

	items, total, err := p.feed.GlobalFeed(viewer, page, limit)
	if err != nil {
		respondServiceError(ctx, err, 50021)
		return
	}

	payload := paginated(items, page, limit, total)
	if viewer == nil {
		utils.CacheSetJSON(cacheKey, utils.JSONResponse{Code: 0, Message: "success", Data: payload}, time.Hour)
	}
	utils.Success(ctx, payload)
}

// GetPost returns a single post with like annotations.
func (p *PostController) GetPost(ctx *gin.Context) {
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	viewer := viewerID(ctx)

	cacheKey := fmt.Sprintf("cache:posts:detail:%d", id)
	if viewer == nil {
		if b, ok := utils.CacheGetBytes(cacheKey); ok {
			ctx.Data(http.StatusOK, "application/json", b)
			return
		}
	}

	item, err := p.feed.One(id, viewer)
	if err != nil {
		respondServiceError(ctx, err, 50022)
		return
	}

	payload := gin.H{"post": item}
	if viewer == nil {
		utils.CacheSetJSON(cacheKey, utils.JSONResponse{Code: 0, Message: "success", Data: payload}, time.Hour)
	}
	utils.Success(ctx, payload)
}

// DeletePost allows the author to delete their post.
func (p *PostController) DeletePost(ctx *gin.Context) {
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40121, "unauthorized")
		return
	}

	if err := p.posts.Delete(id, userID); err != nil {
		respondServiceError(ctx, err, 50023)
		return
	}

	utils.InvalidateByPrefix("cache:posts:")
	utils.InvalidateByPrefix(fmt.Sprintf("cache:user:%d:posts:", userID))

	ctx.Status(http.StatusNoContent)
}

// LikePost records the caller's like on a post.
func (p *PostController) LikePost(ctx *gin.Context) {
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40122, "unauthorized")
		return
	}

	if err := p.posts.Like(userID, id); err != nil {
		respondServiceError(ctx, err, 50024)
		return
	}

	// cached anonymous pages carry like counts
	utils.InvalidateByPrefix("cache:posts:")
	utils.InvalidateByPrefix("cache:user:")

	utils.Success(ctx, gin.H{"message": "liked"})
}

// UnlikePost removes the caller's like from a post.
func (p *PostController) UnlikePost(ctx *gin.Context) {
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40123, "unauthorized")
		return
	}

	if err := p.posts.Unlike(userID, id); err != nil {
		respondServiceError(ctx, err, 50025)
		return
	}

	utils.InvalidateByPrefix("cache:posts:")
	utils.InvalidateByPrefix("cache:user:")

	ctx.Status(http.StatusNoContent)
}

// Timeline returns the caller's composed timeline: own posts plus posts from
// followed users, newest first.
func (p *PostController) Timeline(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40124, "unauthorized")
		return
	}
	page, limit := parsePagination(ctx.Query("page"), ctx.Query("limit"))

	items, total, err := p.feed.Timeline(userID, page, limit)
	if err != nil {
		respondServiceError(ctx, err, 50026)
		return
	}
	utils.Success(ctx, paginated(items, page, limit, total))
}
