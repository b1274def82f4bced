package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cppla/murmur/middleware"
	"github.com/cppla/murmur/services"
	"github.com/cppla/murmur/utils"
)

// respondServiceError maps a service error onto the matching HTTP status.
// Anything outside the taxonomy is a 500 with the given code; the real error
// goes to the log, not the client.
func respondServiceError(ctx *gin.Context, err error, fallbackCode int) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, 40400, err.Error())
	case errors.Is(err, services.ErrConflict):
		utils.Error(ctx, http.StatusConflict, 40900, err.Error())
	case errors.Is(err, services.ErrForbidden):
		utils.Error(ctx, http.StatusForbidden, 40300, err.Error())
	case errors.Is(err, services.ErrBadRequest):
		utils.Error(ctx, http.StatusBadRequest, 40000, err.Error())
	default:
		if utils.Sugar != nil {
			utils.Sugar.Errorf("internal error on %s %s: %v", ctx.Request.Method, ctx.FullPath(), err)
		}
		utils.Error(ctx, http.StatusInternalServerError, fallbackCode, "internal error")
	}
}

// parsePagination reads page/limit query values: page is 1-based, limit
// defaults to 10 and is capped at 100.
func parsePagination(pageStr, limitStr string) (int, int) {
	page := 1
	limit := 10
	if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
		limit = l
	}
	return page, limit
}

// paginated is the uniform list payload.
func paginated(items interface{}, page, limit int, total int64) gin.H {
	return gin.H{
		"items": items,
		"pagination": gin.H{
			"page":        page,
			"limit":       limit,
			"total":       total,
			"total_pages": int((total + int64(limit) - 1) / int64(limit)),
		},
	}
}

func getUserID(ctx *gin.Context) (uint, bool) {
	value, exists := ctx.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := value.(uint)
	return id, ok
}

// viewerID returns the optional viewer identity set by AuthOptional; nil
// means anonymous.
func viewerID(ctx *gin.Context) *uint {
	if id, ok := getUserID(ctx); ok {
		return &id
	}
	return nil
}

func parseIDParam(ctx *gin.Context, name string) (uint, bool) {
	raw := ctx.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid id")
		return 0, false
	}
	return uint(id), true
}
