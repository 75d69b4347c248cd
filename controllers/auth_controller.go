package controllers

import (
	"errors"
	"net/http"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"

	"github.com/spotmap/spotmap/middleware"
	"github.com/spotmap/spotmap/models"
	"github.com/spotmap/spotmap/repository"
	"github.com/spotmap/spotmap/utils"
)

// AuthController handles account creation and sessions.
type AuthController struct {
	users      *repository.UserRepository
	defaultPic string
}

// NewAuthController creates an AuthController.
func NewAuthController(users *repository.UserRepository, defaultProfilePic string) *AuthController {
	return &AuthController{users: users, defaultPic: defaultProfilePic}
}

type credentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Signup creates a local account and returns a session token.
func (a *AuthController) Signup(ctx *gin.Context) {
	var req credentials
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "username and password are required")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if l := len([]rune(req.Username)); l < 2 || l > 64 || !validUsername(req.Username) {
		utils.Error(ctx, http.StatusBadRequest, 40002, "username must be 2-64 letters, digits, '-', '_' or '.'")
		return
	}
	if len(req.Password) < 6 || len(req.Password) > 72 {
		utils.Error(ctx, http.StatusBadRequest, 40002, "password must be 6-72 characters")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.ServerError(ctx, http.StatusInternalServerError, 50001, "failed to hash password", err)
		return
	}

	user := models.User{
		Username:     req.Username,
		PasswordHash: hash,
		PreferLang:   "EN",
		ProfilePic:   a.defaultPic,
	}
	if err := a.users.Create(ctx.Request.Context(), &user); err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			utils.Error(ctx, http.StatusConflict, 40901, "username already exists")
			return
		}
		utils.ServerError(ctx, http.StatusInternalServerError, 50002, "failed to create user", err)
		return
	}

	token, err := utils.GenerateToken(user.ID, user.Username, 0)
	if err != nil {
		utils.ServerError(ctx, http.StatusInternalServerError, 50003, "failed to generate token", err)
		return
	}

	utils.Created(ctx, gin.H{"token": token, "user": sanitizeUserResponse(user)})
}

// Login verifies user credentials and issues a JWT.
func (a *AuthController) Login(ctx *gin.Context) {
	var req credentials
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}

	user, err := a.users.FindByUsername(ctx.Request.Context(), strings.TrimSpace(req.Username))
	if err != nil || !utils.CheckPassword(user.PasswordHash, req.Password) {
		utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid username or password")
		return
	}

	token, err := utils.GenerateToken(user.ID, user.Username, 0)
	if err != nil {
		utils.ServerError(ctx, http.StatusInternalServerError, 50004, "failed to generate token", err)
		return
	}

	utils.Success(ctx, gin.H{"token": token, "user": sanitizeUserResponse(*user)})
}

// Logout invalidates the token by blacklisting it until expiration.
func (a *AuthController) Logout(ctx *gin.Context) {
	token, expiresAt, ok := middleware.Token(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40107, "invalid authorization header")
		return
	}
	utils.BlacklistToken(ctx.Request.Context(), token, expiresAt)
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// Me returns the authenticated user's record.
func (a *AuthController) Me(ctx *gin.Context) {
	username, ok := currentUsername(ctx)
	if !ok {
		return
	}
	user, err := a.users.FindByUsername(ctx.Request.Context(), username)
	if err != nil {
		utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
		return
	}
	utils.Success(ctx, gin.H{"user": sanitizeUserResponse(*user)})
}

func validUsername(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.' {
			continue
		}
		return false
	}
	return true
}

func sanitizeUserResponse(user models.User) gin.H {
	return gin.H{
		"id":              user.ID,
		"username":        user.Username,
		"preferlng":       user.PreferLang,
		"profilepic":      user.ProfilePic,
		"latitude":        user.Latitude,
		"longitude":       user.Longitude,
		"area_name":       user.AreaName,
		"streaks_count":   user.StreaksCount,
		"latest_update":   user.LatestUpdate,
		"rewards":         user.Rewards,
		"postcount":       user.PostCount,
		"status":          user.OnJourney,
		"followers_count": user.FollowersCount,
		"following_count": user.FollowingCount,
		"created_at":      user.CreatedAt,
	}
}
