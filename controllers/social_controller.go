package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/spotmap/spotmap/repository"
	"github.com/spotmap/spotmap/utils"
)

// SocialController manages follow edges.
type SocialController struct {
	social *repository.SocialRepository
}

// NewSocialController creates a SocialController.
func NewSocialController(social *repository.SocialRepository) *SocialController {
	return &SocialController{social: social}
}

type followRequest struct {
	Following string `json:"following" binding:"required"`
}

func (s *SocialController) bindFollow(ctx *gin.Context) (string, string, bool) {
	username, ok := currentUsername(ctx)
	if !ok {
		return "", "", false
	}
	var req followRequest
	if err := ctx.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Following) == "" {
		utils.Error(ctx, http.StatusBadRequest, 40060, "following is required")
		return "", "", false
	}
	return username, strings.TrimSpace(req.Following), true
}

func (s *SocialController) followError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrSelfFollow):
		utils.Error(ctx, http.StatusBadRequest, 40061, "you cannot follow yourself")
	case errors.Is(err, repository.ErrUserNotFound):
		utils.Error(ctx, http.StatusNotFound, 40460, "user not found")
	default:
		utils.ServerError(ctx, http.StatusInternalServerError, 50060, "database error", err)
	}
}

// Follow makes the caller follow another user.
func (s *SocialController) Follow(ctx *gin.Context) {
	follower, following, ok := s.bindFollow(ctx)
	if !ok {
		return
	}
	created, err := s.social.Follow(ctx.Request.Context(), follower, following)
	if err != nil {
		s.followError(ctx, err)
		return
	}
	msg := "followed"
	if !created {
		msg = "already following"
	}
	utils.Respond(ctx, http.StatusOK, 0, msg, gin.H{"follower": follower, "following": following})
}

// Unfollow removes the caller's follow edge.
func (s *SocialController) Unfollow(ctx *gin.Context) {
	follower, following, ok := s.bindFollow(ctx)
	if !ok {
		return
	}
	removed, err := s.social.Unfollow(ctx.Request.Context(), follower, following)
	if err != nil {
		s.followError(ctx, err)
		return
	}
	msg := "unfollowed"
	if !removed {
		msg = "not following"
	}
	utils.Respond(ctx, http.StatusOK, 0, msg, gin.H{"follower": follower, "following": following})
}

// Follows returns the follower and following lists of a user.
func (s *SocialController) Follows(ctx *gin.Context) {
	info, err := s.social.Follows(ctx.Request.Context(), strings.TrimSpace(ctx.Param("username")))
	if err != nil {
		s.followError(ctx, err)
		return
	}
	utils.Success(ctx, info)
}
