package controllers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/murmur/services"
	"github.com/cppla/murmur/utils"
)

// UserController serves public profiles, per-user feeds and the follow graph
// endpoints.
type UserController struct {
	auth  *services.AuthService
	users *services.UserService
	feed  *services.FeedService
}

// NewUserController creates a UserController.
func NewUserController(db *gorm.DB) *UserController {
	return &UserController{
		auth:  services.NewAuthService(db),
		users: services.NewUserService(db),
		feed:  services.NewFeedService(db),
	}
}

// GetUser returns the public profile, credential hash excluded.
func (u *UserController) GetUser(ctx *gin.Context) {
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}

	cacheKey := fmt.Sprintf("cache:user:public:%d", id)
	if b, ok := utils.CacheGetBytes(cacheKey); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	user, err := u.auth.GetByID(id)
	if err != nil {
		respondServiceError(ctx, err, 50040)
		return
	}

	payload := gin.H{"user": user}
	utils.CacheSetJSON(cacheKey, utils.JSONResponse{Code: 0, Message: "success", Data: payload}, time.Hour)
	utils.Success(ctx, payload)
}

// ListUserPosts returns the target user's posts with like annotations.
func (u *UserController) ListUserPosts(ctx *gin.Context) {
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	page, limit := parsePagination(ctx.Query("page"), ctx.Query("limit"))
	viewer := viewerID(ctx)

	cacheKey := fmt.Sprintf("cache:user:%d:posts:page=%d:limit=%d", id, page, limit)
	if viewer == nil {
		if b, ok := utils.CacheGetBytes(cacheKey); ok {
			ctx.Data(http.StatusOK, "application/json", b)
			return
		}
	}

	items, total, err := u.feed.UserFeed(id, viewer, page, limit)
	if err != nil {
		respondServiceError(ctx, err, 50041)
		return
	}

	payload := paginated(items, page, limit, total)
	if viewer == nil {
		utils.CacheSetJSON(cacheKey, utils.JSONResponse{Code: 0, Message: "success", Data: payload}, time.Hour)
	}
	utils.Success(ctx, payload)
}

// FollowUser creates the caller->target follow edge.
func (u *UserController) FollowUser(ctx *gin.Context) {
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40140, "unauthorized")
		return
	}

	if err := u.users.Follow(userID, id); err != nil {
		respondServiceError(ctx, err, 50042)
		return
	}

	// profile counters changed on both sides
	utils.InvalidateByPrefix(fmt.Sprintf("cache:user:public:%d", id))
	utils.InvalidateByPrefix(fmt.Sprintf("cache:user:public:%d", userID))

	utils.Success(ctx, gin.H{"message": "followed"})
}

// UnfollowUser removes the caller->target follow edge.
func (u *UserController) UnfollowUser(ctx *gin.Context) {
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40141, "unauthorized")
		return
	}

	if err := u.users.Unfollow(userID, id); err != nil {
		respondServiceError(ctx, err, 50043)
		return
	}

	utils.InvalidateByPrefix(fmt.Sprintf("cache:user:public:%d", id))
	utils.InvalidateByPrefix(fmt.Sprintf("cache:user:public:%d", userID))

	ctx.Status(http.StatusNoContent)
}

// IsFollowing reports whether the caller follows the target.
func (u *UserController) IsFollowing(ctx *gin.Context) {
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40142, "unauthorized")
		return
	}

	following, err := u.users.IsFollowing(userID, id)
	if err != nil {
		respondServiceError(ctx, err, 50044)
		return
	}
	utils.Success(ctx, gin.H{"is_following": following})
}
