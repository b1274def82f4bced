package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"gorm.io/gorm"

	"github.com/cppla/murmur/config"
	"github.com/cppla/murmur/middleware"
	"github.com/cppla/murmur/services"
	"github.com/cppla/murmur/utils"
)

// AuthController handles registration, login/logout, the caller's own
// profile and the GitHub provider login.
type AuthController struct {
	auth *services.AuthService
}

// NewAuthController creates an AuthController.
func NewAuthController(db *gorm.DB) *AuthController {
	return &AuthController{auth: services.NewAuthService(db)}
}

// Register handles local account registration with bcrypt hashing.
func (a *AuthController) Register(ctx *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required,min=2,max=64"`
		Password string `json:"password" binding:"required,min=6,max=72"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40010, "invalid request payload")
		return
	}

	name := strings.TrimSpace(req.Username)
	if name == "" {
		utils.Error(ctx, http.StatusBadRequest, 40011, "username cannot be empty")
		return
	}

	user, err := a.auth.Register(name, req.Password)
	if err != nil {
		respondServiceError(ctx, err, 50010)
		return
	}
	utils.Success(ctx, gin.H{"user": user})
}

// Login validates credentials and issues a bearer token.
func (a *AuthController) Login(ctx *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40012, "invalid request payload")
		return
	}

	user, err := a.auth.Validate(strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		respondServiceError(ctx, err, 50011)
		return
	}
	if user == nil {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "invalid username or password")
		return
	}

	token, err := a.auth.Login(user)
	if err != nil {
		respondServiceError(ctx, err, 50012)
		return
	}
	utils.Success(ctx, gin.H{"access_token": token, "user": user})
}

// Me returns the caller's own record.
func (a *AuthController) Me(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40111, "unauthorized")
		return
	}
	user, err := a.auth.GetByID(userID)
	if err != nil {
		respondServiceError(ctx, err, 50013)
		return
	}
	utils.Success(ctx, gin.H{"user": user})
}

// Logout revokes the presented token until its natural expiry.
func (a *AuthController) Logout(ctx *gin.Context) {
	raw, exists := ctx.Get(middleware.ContextTokenKey)
	token, _ := raw.(string)
	if !exists || token == "" {
		utils.Error(ctx, http.StatusUnauthorized, 40112, "unauthorized")
		return
	}
	expiresAt := time.Now().Add(time.Duration(config.Get().TokenTTLHours) * time.Hour)
	if claims, err := utils.ParseToken(token); err == nil && claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	utils.BlacklistToken(token, expiresAt)
	utils.Success(ctx, gin.H{"message": "logged out"})
}

func githubOAuthConfig() *oauth2.Config {
	cfg := config.Get()
	return &oauth2.Config{
		ClientID:     cfg.GitHubClientID,
		ClientSecret: cfg.GitHubClientSecret,
		Scopes:       []string{"read:user"},
		Endpoint:     github.Endpoint,
		RedirectURL:  strings.TrimRight(cfg.OAuthRedirectBase, "/") + "/api/v1/auth/oauth/github/callback",
	}
}

// OAuthRedirect sends the browser to GitHub with a single-use CSRF state.
func (a *AuthController) OAuthRedirect(ctx *gin.Context) {
	conf := githubOAuthConfig()
	if conf.ClientID == "" {
		utils.Error(ctx, http.StatusNotFound, 40420, "github login not configured")
		return
	}
	state := uuid.NewString()
	utils.SaveState(state, 10*time.Minute)
	ctx.Redirect(http.StatusFound, conf.AuthCodeURL(state))
}

// OAuthCallback exchanges the code, resolves the GitHub identity and issues
// a local token for the bound (or newly created) account.
func (a *AuthController) OAuthCallback(ctx *gin.Context) {
	conf := githubOAuthConfig()
	if conf.ClientID == "" {
		utils.Error(ctx, http.StatusNotFound, 40420, "github login not configured")
		return
	}
	if !utils.ConsumeState(ctx.Query("state")) {
		utils.Error(ctx, http.StatusBadRequest, 40021, "invalid oauth state")
		return
	}
	code := ctx.Query("code")
	if code == "" {
		utils.Error(ctx, http.StatusBadRequest, 40022, "missing oauth code")
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx.Request.Context(), 10*time.Second)
	defer cancel()
	token, err := conf.Exchange(reqCtx, code)
	if err != nil {
		utils.Error(ctx, http.StatusBadGateway, 50220, "oauth code exchange failed")
		return
	}

	login, id, err := fetchGitHubIdentity(reqCtx, conf, token)
	if err != nil {
		utils.Error(ctx, http.StatusBadGateway, 50221, "failed to fetch github profile")
		return
	}

	user, err := a.auth.LoginWithProvider("github", id, login)
	if err != nil {
		respondServiceError(ctx, err, 50222)
		return
	}
	accessToken, err := a.auth.Login(user)
	if err != nil {
		respondServiceError(ctx, err, 50223)
		return
	}
	utils.Success(ctx, gin.H{"access_token": accessToken, "user": user})
}

func fetchGitHubIdentity(ctx context.Context, conf *oauth2.Config, token *oauth2.Token) (string, string, error) {
	client := conf.Client(ctx, token)
	resp, err := client.Get("https://api.github.com/user")
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("github api status %d", resp.StatusCode)
	}
	var payload struct {
		Login string `json:"login"`
		ID    int64  `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", "", err
	}
	if payload.Login == "" || payload.ID == 0 {
		return "", "", fmt.Errorf("github profile incomplete")
	}
	return payload.Login, fmt.Sprintf("%d", payload.ID), nil
}
