package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/spotmap/spotmap/repository"
	"github.com/spotmap/spotmap/streak"
	"github.com/spotmap/spotmap/utils"
)

const leaderboardCacheTTL = 60 * time.Second

// ProfileController serves profiles, home areas, streaks and leaderboards.
type ProfileController struct {
	users    *repository.UserRepository
	spots    *repository.SpotRepository
	geocoder Geocoder
}

// NewProfileController creates a ProfileController.
func NewProfileController(users *repository.UserRepository, spots *repository.SpotRepository, geocoder Geocoder) *ProfileController {
	return &ProfileController{users: users, spots: spots, geocoder: geocoder}
}

type uploadedSpot struct {
	ID         uint   `json:"id"`
	SpotImage  string `json:"spotimage"`
	Title      string `json:"title"`
	ViewsCount int    `json:"viewscount"`
	LikesCount int    `json:"likescount"`
}

// Profile returns the public profile of a user, matched case-insensitively.
func (p *ProfileController) Profile(ctx *gin.Context) {
	rctx := ctx.Request.Context()
	user, err := p.users.FindByUsernameFold(rctx, strings.TrimSpace(ctx.Param("username")))
	if errors.Is(err, repository.ErrUserNotFound) {
		utils.Error(ctx, http.StatusNotFound, 40470, "user not found")
		return
	}
	if err != nil {
		utils.ServerError(ctx, http.StatusInternalServerError, 50070, "database error", err)
		return
	}
	score, err := p.users.BadgeScore(rctx, user.Username)
	if err != nil {
		utils.ServerError(ctx, http.StatusInternalServerError, 50070, "database error", err)
		return
	}
	spots, err := p.spots.ListByUser(rctx, user.Username)
	if err != nil {
		utils.ServerError(ctx, http.StatusInternalServerError, 50070, "database error", err)
		return
	}
	uploaded := make([]uploadedSpot, 0, len(spots))
	for _, s := range spots {
		uploaded = append(uploaded, uploadedSpot{
			ID:         s.ID,
			SpotImage:  s.ImageURL,
			Title:      s.SpotName,
			ViewsCount: s.ViewCount,
			LikesCount: s.LikesCount,
		})
	}
	utils.Success(ctx, gin.H{
		"username":        user.Username,
		"profile_image":   user.ProfilePic,
		"postcount":       user.PostCount,
		"score":           score,
		"streaks_count":   user.StreaksCount,
		"rewards":         user.Rewards,
		"followers_count": user.FollowersCount,
		"following_count": user.FollowingCount,
		"uploaded_spots":  uploaded,
	})
}

type positionRequest struct {
	Lat *float64 `json:"lat" binding:"required"`
	Lon *float64 `json:"lon" binding:"required"`
}

func bindPosition(ctx *gin.Context) (float64, float64, bool) {
	var req positionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40070, "lat and lon are required")
		return 0, 0, false
	}
	lat, lon := *req.Lat, *req.Lon
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		utils.Error(ctx, http.StatusBadRequest, 40071, "lat or lon out of range")
		return 0, 0, false
	}
	return lat, lon, true
}

// SetHome records the caller's home position once.
func (p *ProfileController) SetHome(ctx *gin.Context) {
	username, ok := currentUsername(ctx)
	if !ok {
		return
	}
	lat, lon, ok := bindPosition(ctx)
	if !ok {
		return
	}
	rctx := ctx.Request.Context()
	user, err := p.users.FindByUsername(rctx, username)
	if errors.Is(err, repository.ErrUserNotFound) {
		utils.Error(ctx, http.StatusNotFound, 40470, "user not found")
		return
	}
	if err != nil {
		utils.ServerError(ctx, http.StatusInternalServerError, 50071, "database error", err)
		return
	}
	if user.HasHome() {
		utils.Respond(ctx, http.StatusOK, 0, "location already set", gin.H{"area_name": user.AreaName})
		return
	}

	area, err := p.geocoder.AreaName(rctx, lat, lon)
	if err != nil {
		status, code := upstreamStatus(err)
		utils.ServerError(ctx, status, code, "area lookup failed", err)
		return
	}
	err = p.users.SetHome(rctx, username, lat, lon, area)
	switch {
	case errors.Is(err, repository.ErrHomeAlreadySet):
		utils.Respond(ctx, http.StatusOK, 0, "location already set", nil)
	case err != nil:
		utils.ServerError(ctx, http.StatusInternalServerError, 50071, "failed to save home", err)
	default:
		utils.Respond(ctx, http.StatusOK, 0, "location set", gin.H{
			"latitude":  lat,
			"longitude": lon,
			"area_name": area,
		})
	}
}

// Streak returns the caller's posting streak.
func (p *ProfileController) Streak(ctx *gin.Context) {
	username, ok := currentUsername(ctx)
	if !ok {
		return
	}
	state, err := p.users.LoadStreak(ctx.Request.Context(), username)
	if err != nil {
		if errors.Is(err, streak.ErrNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40470, "user not found")
			return
		}
		utils.ServerError(ctx, http.StatusInternalServerError, 50072, "database error", err)
		return
	}
	utils.Success(ctx, gin.H{
		"streaks_count": state.StreaksCount,
		"latest_update": state.LatestUpdate,
		"rewards":       state.Rewards,
	})
}

// AreaLeaderboard ranks the users living in the area around a position.
func (p *ProfileController) AreaLeaderboard(ctx *gin.Context) {
	lat, lon, ok := bindPosition(ctx)
	if !ok {
		return
	}
	rctx := ctx.Request.Context()
	area, err := p.geocoder.AreaName(rctx, lat, lon)
	if err != nil {
		status, code := upstreamStatus(err)
		utils.ServerError(ctx, status, code, "area lookup failed", err)
		return
	}

	cacheKey := "cache:leaderboard:" + strings.ToLower(area)
	var entries []repository.LeaderboardEntry
	if !utils.CacheGetJSON(rctx, cacheKey, &entries) {
		entries, err = p.users.AreaLeaderboard(rctx, area)
		if err != nil {
			utils.ServerError(ctx, http.StatusInternalServerError, 50073, "failed to load leaderboard", err)
			return
		}
		utils.CacheSetJSON(rctx, cacheKey, entries, leaderboardCacheTTL)
	}
	utils.Success(ctx, gin.H{"area": area, "leaderboard": entries})
}
