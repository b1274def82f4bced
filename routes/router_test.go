package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/murmur/config"
	"github.com/cppla/murmur/models"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func setupTestServer(t *testing.T) *gin.Engine {
	t.Helper()

	config.SetForTesting(config.AppConfig{
		JWTSecret:          "e2e-test-secret-" + uuid.NewString(),
		TokenTTLHours:      1,
		RateLimitPerMinute: 100000,
		AllowedOrigins:     []string{"*"},
		GinMode:            "test",
		GinPath:            filepath.Join(t.TempDir(), "gin.log"),
		LogLevel:           "info",
		LogMaxSizeMB:       1,
	})

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Post{},
		&models.Like{},
		&models.Follow{},
		&models.Comment{},
		&models.CommentReaction{},
	))

	return SetupRouter(db)
}

// doJSON performs a request against the router and decodes the uniform
// response envelope when a body is present.
func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "body: %s", w.Body.String())
	}
	return w.Code, env
}

func registerAndLogin(t *testing.T, r *gin.Engine, username string) (uint, string) {
	t.Helper()

	status, env := doJSON(t, r, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"username": username, "password": "s3cret-pass",
	})
	require.Equal(t, http.StatusOK, status, env.Message)
	var reg struct {
		User models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &reg))

	status, env = doJSON(t, r, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"username": username, "password": "s3cret-pass",
	})
	require.Equal(t, http.StatusOK, status, env.Message)
	var login struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &login))
	require.NotEmpty(t, login.AccessToken)

	return reg.User.ID, login.AccessToken
}

type feedItemJSON struct {
	ID        uint        `json:"id"`
	Text      string      `json:"text"`
	Author    models.User `json:"author"`
	LikeCount int64       `json:"like_count"`
	IsLiked   bool        `json:"is_liked"`
}

type listJSON struct {
	Items      []feedItemJSON `json:"items"`
	Pagination struct {
		Page       int   `json:"page"`
		Limit      int   `json:"limit"`
		Total      int64 `json:"total"`
		TotalPages int   `json:"total_pages"`
	} `json:"pagination"`
}

func TestHealth(t *testing.T) {
	r := setupTestServer(t)
	status, env := doJSON(t, r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, env.Code)
}

func TestAuthFlow(t *testing.T) {
	r := setupTestServer(t)

	aliceID, aliceToken := registerAndLogin(t, r, "alice")
	require.NotZero(t, aliceID)

	// duplicate username is a conflict
	status, _ := doJSON(t, r, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"username": "alice", "password": "another-pass",
	})
	assert.Equal(t, http.StatusConflict, status)

	// wrong password
	status, _ = doJSON(t, r, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"username": "alice", "password": "wrong-pass",
	})
	assert.Equal(t, http.StatusUnauthorized, status)

	// short password fails binding
	status, _ = doJSON(t, r, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"username": "bob", "password": "abc",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	// whoami round trip
	status, env := doJSON(t, r, http.MethodGet, "/api/v1/auth/me", aliceToken, nil)
	require.Equal(t, http.StatusOK, status)
	var me struct {
		User models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, aliceID, me.User.ID)
	assert.Equal(t, "alice", me.User.Name)

	// writes require a token
	status, _ = doJSON(t, r, http.MethodPost, "/api/v1/me/posts", "", gin.H{"text": "nope"})
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = doJSON(t, r, http.MethodPost, "/api/v1/me/posts", "garbage-token", gin.H{"text": "nope"})
	assert.Equal(t, http.StatusUnauthorized, status)

	// logout revokes the token for subsequent calls
	status, _ = doJSON(t, r, http.MethodPost, "/api/v1/auth/logout", aliceToken, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = doJSON(t, r, http.MethodGet, "/api/v1/auth/me", aliceToken, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestSocialFlow(t *testing.T) {
	r := setupTestServer(t)

	aliceID, aliceToken := registerAndLogin(t, r, "alice")
	bobID, bobToken := registerAndLogin(t, r, "bob")

	// alice follows bob
	status, _ := doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/users/%d/follow", bobID), aliceToken, nil)
	require.Equal(t, http.StatusOK, status)

	status, env := doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/users/%d/is-following", bobID), aliceToken, nil)
	require.Equal(t, http.StatusOK, status)
	var isf struct {
		IsFollowing bool `json:"is_following"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &isf))
	assert.True(t, isf.IsFollowing)

	// the edge is directed
	status, env = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/users/%d/is-following", aliceID), bobToken, nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &isf))
	assert.False(t, isf.IsFollowing)

	// bob's profile reflects the follower
	status, env = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/users/%d", bobID), "", nil)
	require.Equal(t, http.StatusOK, status)
	var profile struct {
		User models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &profile))
	assert.Equal(t, 1, profile.User.FollowerCount)

	// bob posts
	status, env = doJSON(t, r, http.MethodPost, "/api/v1/me/posts", bobToken, gin.H{"text": "hello"})
	require.Equal(t, http.StatusOK, status)
	var created struct {
		Post models.Post `json:"post"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	postID := created.Post.ID
	require.NotZero(t, postID)

	// anonymous feed: count present, liked flag down
	status, env = doJSON(t, r, http.MethodGet, "/api/v1/posts", "", nil)
	require.Equal(t, http.StatusOK, status)
	var list listJSON
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, "hello", list.Items[0].Text)
	assert.Equal(t, "bob", list.Items[0].Author.Name)
	assert.EqualValues(t, 0, list.Items[0].LikeCount)
	assert.False(t, list.Items[0].IsLiked)

	// alice likes; a second like is a conflict
	status, _ = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/posts/%d/like", postID), aliceToken, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/posts/%d/like", postID), aliceToken, nil)
	assert.Equal(t, http.StatusConflict, status)

	// alice sees her like on the feed
	status, env = doJSON(t, r, http.MethodGet, "/api/v1/posts", aliceToken, nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Items, 1)
	assert.EqualValues(t, 1, list.Items[0].LikeCount)
	assert.True(t, list.Items[0].IsLiked)

	// anonymous viewers see the count but never a liked flag
	status, env = doJSON(t, r, http.MethodGet, "/api/v1/posts", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.EqualValues(t, 1, list.Items[0].LikeCount)
	assert.False(t, list.Items[0].IsLiked)

	// alice's timeline carries bob's post via the follow edge
	status, env = doJSON(t, r, http.MethodGet, "/api/v1/me/timeline", aliceToken, nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, postID, list.Items[0].ID)

	// only the author may delete
	status, _ = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/api/v1/me/posts/%d", postID), aliceToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	req := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/v1/me/posts/%d", postID), nil)
	req.Header.Set("Authorization", "Bearer "+bobToken)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	status, _ = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/posts/%d", postID), "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCommentFlow(t *testing.T) {
	r := setupTestServer(t)

	_, aliceToken := registerAndLogin(t, r, "alice")
	_, bobToken := registerAndLogin(t, r, "bob")

	status, env := doJSON(t, r, http.MethodPost, "/api/v1/me/posts", bobToken, gin.H{"text": "discuss"})
	require.Equal(t, http.StatusOK, status)
	var created struct {
		Post models.Post `json:"post"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	postID := created.Post.ID

	// alice opens a thread, bob replies
	status, env = doJSON(t, r, http.MethodPost, "/api/v1/comments", aliceToken, gin.H{
		"post_id": postID, "text": "first!",
	})
	require.Equal(t, http.StatusOK, status)
	var madeComment struct {
		Comment models.Comment `json:"comment"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &madeComment))
	rootID := madeComment.Comment.ID
	require.NotZero(t, rootID)

	status, _ = doJSON(t, r, http.MethodPost, "/api/v1/comments", bobToken, gin.H{
		"post_id": postID, "text": "welcome", "parent_id": rootID,
	})
	require.Equal(t, http.StatusOK, status)

	// a reply to a comment on another post is rejected
	status, env = doJSON(t, r, http.MethodPost, "/api/v1/me/posts", bobToken, gin.H{"text": "elsewhere"})
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &created))
	status, _ = doJSON(t, r, http.MethodPost, "/api/v1/comments", aliceToken, gin.H{
		"post_id": created.Post.ID, "text": "stray reply", "parent_id": rootID,
	})
	assert.Equal(t, http.StatusBadRequest, status)

	// reactions: duplicate triple conflicts, removal is 204
	status, _ = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/comments/%d/reactions", rootID), bobToken, gin.H{
		"reaction_type": "like",
	})
	require.Equal(t, http.StatusOK, status)
	status, _ = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/comments/%d/reactions", rootID), bobToken, gin.H{
		"reaction_type": "like",
	})
	assert.Equal(t, http.StatusConflict, status)

	// the assembled tree is public
	status, env = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/comments/post/%d", postID), "", nil)
	require.Equal(t, http.StatusOK, status)
	var tree struct {
		Comments []struct {
			ID        uint        `json:"id"`
			Text      string      `json:"text"`
			Author    models.User `json:"author"`
			Reactions []struct {
				ReactionType string `json:"reaction_type"`
			} `json:"reactions"`
			Replies []struct {
				ID     uint        `json:"id"`
				Text   string      `json:"text"`
				Author models.User `json:"author"`
			} `json:"replies"`
		} `json:"comments"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &tree))
	require.Len(t, tree.Comments, 1)
	root := tree.Comments[0]
	assert.Equal(t, rootID, root.ID)
	assert.Equal(t, "alice", root.Author.Name)
	require.Len(t, root.Reactions, 1)
	assert.Equal(t, "like", root.Reactions[0].ReactionType)
	require.Len(t, root.Replies, 1)
	assert.Equal(t, "welcome", root.Replies[0].Text)
	assert.Equal(t, "bob", root.Replies[0].Author.Name)

	req := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/v1/comments/%d/reactions", rootID), bytes.NewReader([]byte(`{"reaction_type":"like"}`)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+bobToken)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestInvalidIDsAndMissingRoutes(t *testing.T) {
	r := setupTestServer(t)

	status, _ := doJSON(t, r, http.MethodGet, "/api/v1/posts/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = doJSON(t, r, http.MethodGet, "/api/v1/posts/999999", "", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = doJSON(t, r, http.MethodGet, "/api/v1/users/999999", "", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = doJSON(t, r, http.MethodGet, "/api/v1/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}
