package controllers

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/spotmap/spotmap/models"
	"github.com/spotmap/spotmap/repository"
	"github.com/spotmap/spotmap/services"
	"github.com/spotmap/spotmap/utils"
)

const defaultPinTitle = "Untitled Spot"

// JourneyController manages trips and their waypoint pins.
type JourneyController struct {
	users  *repository.UserRepository
	social *repository.SocialRepository
	store  BlobStore
}

// NewJourneyController creates a JourneyController.
func NewJourneyController(users *repository.UserRepository, social *repository.SocialRepository, store BlobStore) *JourneyController {
	return &JourneyController{users: users, social: social, store: store}
}

// Status reports whether the caller is on a journey.
func (j *JourneyController) Status(ctx *gin.Context) {
	username, ok := currentUsername(ctx)
	if !ok {
		return
	}
	user, err := j.users.FindByUsername(ctx.Request.Context(), username)
	if errors.Is(err, repository.ErrUserNotFound) {
		utils.Error(ctx, http.StatusNotFound, 40480, "user not found")
		return
	}
	if err != nil {
		utils.ServerError(ctx, http.StatusInternalServerError, 50080, "database error", err)
		return
	}
	utils.Success(ctx, gin.H{"journeyStatus": user.OnJourney})
}

type startJourneyRequest struct {
	JourneyName string `json:"journeyname"`
	Source      string `json:"source"`
}

// Start opens a journey for the caller.
func (j *JourneyController) Start(ctx *gin.Context) {
	username, ok := currentUsername(ctx)
	if !ok {
		return
	}
	var req startJourneyRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40080, "invalid journey payload")
		return
	}
	journey, err := j.social.StartJourney(ctx.Request.Context(), username,
		utils.SanitizeText(req.JourneyName), utils.SanitizeText(req.Source))
	switch {
	case errors.Is(err, repository.ErrJourneyActive):
		utils.Error(ctx, http.StatusConflict, 40980, "a journey is already in progress")
	case err != nil:
		utils.ServerError(ctx, http.StatusInternalServerError, 50081, "failed to start journey", err)
	default:
		utils.Respond(ctx, http.StatusCreated, 0, "Journey started successfully", journey)
	}
}

// Upload stores the media of a waypoint and appends it to the active journey.
func (j *JourneyController) Upload(ctx *gin.Context) {
	username, ok := currentUsername(ctx)
	if !ok {
		return
	}
	lat, lon, ok := parseLatLon(ctx.PostForm("latitude"), ctx.PostForm("longitude"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40081, "latitude and longitude must be numbers")
		return
	}
	audioFH, errA := ctx.FormFile("audio")
	imageFH, errI := ctx.FormFile("image")
	if errA != nil || errI != nil {
		utils.Error(ctx, http.StatusBadRequest, 40082, "audio and image are required")
		return
	}

	rctx := ctx.Request.Context()
	if _, err := j.social.ActiveJourney(rctx, username); err != nil {
		j.journeyError(ctx, err)
		return
	}

	var stored []services.StoredFile
	cleanup := func() {
		if err := j.store.Delete(context.WithoutCancel(rctx), stored...); err != nil {
			utils.Logger.Warn("failed to remove journey media", zap.Error(err))
		}
	}
	for _, fh := range []*multipart.FileHeader{audioFH, imageFH} {
		f, err := j.saveFile(rctx, fh)
		if err != nil {
			cleanup()
			if errors.Is(err, services.ErrFileTooLarge) {
				utils.Error(ctx, http.StatusRequestEntityTooLarge, 41380, "file too large")
				return
			}
			utils.ServerError(ctx, http.StatusInternalServerError, 50082, "failed to store media", err)
			return
		}
		stored = append(stored, f)
	}

	title := utils.SanitizeText(ctx.PostForm("title"))
	if title == "" {
		title = defaultPinTitle
	}
	pin := models.SpotPin{
		Title:       title,
		Latitude:    lat,
		Longitude:   lon,
		AudioURL:    stored[0].URL,
		ImageURL:    stored[1].URL,
		Description: utils.SanitizeText(ctx.PostForm("description")),
		UploadedAt:  time.Now().UTC(),
	}
	if _, err := j.social.AppendPin(rctx, username, pin); err != nil {
		cleanup()
		j.journeyError(ctx, err)
		return
	}
	if err := j.store.Attach(rctx, stored...); err != nil {
		utils.Logger.Error("failed to attach journey media", zap.String("username", username), zap.Error(err))
	}
	utils.Respond(ctx, http.StatusOK, 0, "Spot pin added to journey", gin.H{"spotpin": pin})
}

func (j *JourneyController) saveFile(ctx context.Context, fh *multipart.FileHeader) (services.StoredFile, error) {
	f, err := fh.Open()
	if err != nil {
		return services.StoredFile{}, err
	}
	defer f.Close()
	return j.store.Save(ctx, services.BucketJourney, fh.Filename, f)
}

// Pins returns the waypoints of the active journey.
func (j *JourneyController) Pins(ctx *gin.Context) {
	username, ok := currentUsername(ctx)
	if !ok {
		return
	}
	journey, err := j.social.ActiveJourney(ctx.Request.Context(), username)
	if err != nil {
		j.journeyError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{
		"journeyname": journey.JourneyName,
		"spotpins":    journey.SpotPins,
		"source":      journey.Source,
		"destination": journey.Destination,
	})
}

// End closes the active journey, its last pin becoming the destination.
func (j *JourneyController) End(ctx *gin.Context) {
	username, ok := currentUsername(ctx)
	if !ok {
		return
	}
	journey, err := j.social.EndJourney(ctx.Request.Context(), username)
	if err != nil {
		j.journeyError(ctx, err)
		return
	}
	utils.Respond(ctx, http.StatusOK, 0, "Journey ended and destination saved", gin.H{
		"id":          journey.ID,
		"destination": journey.Destination,
	})
}

func (j *JourneyController) journeyError(ctx *gin.Context, err error) {
	if errors.Is(err, repository.ErrNoActiveJourney) {
		utils.Error(ctx, http.StatusNotFound, 40481, "active journey not found")
		return
	}
	utils.ServerError(ctx, http.StatusInternalServerError, 50083, "database error", err)
}
