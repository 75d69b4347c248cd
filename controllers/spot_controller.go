package controllers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/spotmap/spotmap/models"
	"github.com/spotmap/spotmap/repository"
	"github.com/spotmap/spotmap/services"
	"github.com/spotmap/spotmap/streak"
	"github.com/spotmap/spotmap/utils"
)

const (
	defaultSpotName    = "Unnamed Spot"
	defaultCategory    = "Food"
	defaultDescription = "More"
	badgePointsPerPost = 5
	summaryWords       = 6

	// captionTolerance and summaryTolerance are the position match windows in degrees.
	captionTolerance = 1e-5
	summaryTolerance = 1e-6
)

// SpotPipeline bundles the collaborators of the spot upload pipeline.
type SpotPipeline struct {
	Store       BlobStore
	Converter   AudioConverter
	Transcriber Transcriber
	Translator  services.Translator
	Languages   *services.Languages
	Titles      TitleGenerator
	Streaks     StreakRecorder
}

// SpotController manages spot creation and retrieval.
type SpotController struct {
	users *repository.UserRepository
	spots *repository.SpotRepository
	p     SpotPipeline
}

// NewSpotController creates a SpotController.
func NewSpotController(users *repository.UserRepository, spots *repository.SpotRepository, p SpotPipeline) *SpotController {
	return &SpotController{users: users, spots: spots, p: p}
}

// CreateSpot stores the media, transcribes and translates the audio, saves
// the spot and credits the author's streak and badge.
func (s *SpotController) CreateSpot(ctx *gin.Context) {
	username, ok := currentUsername(ctx)
	if !ok {
		return
	}

	// Coordinates are checked before anything is uploaded.
	lat, lon, ok := parseLatLon(ctx.PostForm("latitude"), ctx.PostForm("longitude"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40030, "latitude and longitude must be numbers")
		return
	}
	audioFH, errA := ctx.FormFile("audio")
	imageFH, errI := ctx.FormFile("image")
	if errA != nil || errI != nil {
		utils.Error(ctx, http.StatusBadRequest, 40031, "audio and image are required")
		return
	}

	spotName := utils.SanitizeText(ctx.PostForm("spotname"))
	if spotName == "" {
		spotName = defaultSpotName
	}
	category := utils.SanitizeText(ctx.PostForm("category"))
	if category == "" {
		category = defaultCategory
	}
	description := utils.SanitizeText(ctx.PostForm("description"))
	if description == "" {
		description = defaultDescription
	}

	audio, err := readUpload(audioFH, maxAudioBytes)
	if err != nil {
		utils.Error(ctx, http.StatusRequestEntityTooLarge, 41301, "audio file too large or unreadable")
		return
	}

	rctx := ctx.Request.Context()
	var stored []services.StoredFile
	cleanup := func() {
		if err := s.p.Store.Delete(context.WithoutCancel(rctx), stored...); err != nil {
			utils.Logger.Warn("failed to remove uploaded media", zap.Error(err))
		}
	}

	audioFile, err := s.p.Store.Save(rctx, services.BucketAudio, audioFH.Filename, bytes.NewReader(audio))
	if err != nil {
		utils.ServerError(ctx, http.StatusInternalServerError, 50030, "failed to store audio", err)
		return
	}
	stored = append(stored, audioFile)

	img, err := imageFH.Open()
	if err != nil {
		cleanup()
		utils.Error(ctx, http.StatusBadRequest, 40032, "image unreadable")
		return
	}
	imageFile, err := s.p.Store.Save(rctx, services.BucketSpotImages, imageFH.Filename, img)
	img.Close()
	if err != nil {
		cleanup()
		if errors.Is(err, services.ErrFileTooLarge) {
			utils.Error(ctx, http.StatusRequestEntityTooLarge, 41302, "image too large")
			return
		}
		utils.ServerError(ctx, http.StatusInternalServerError, 50031, "failed to store image", err)
		return
	}
	stored = append(stored, imageFile)

	mp3, err := s.p.Converter.ToMP3(rctx, audio, fileExt(audioFH))
	if err != nil {
		cleanup()
		utils.ServerError(ctx, http.StatusUnprocessableEntity, 42201, "audio conversion failed", err)
		return
	}
	transcription, err := s.p.Transcriber.Transcribe(rctx, mp3)
	if err != nil {
		cleanup()
		status, code := upstreamStatus(err)
		utils.ServerError(ctx, status, code, "transcription failed", err)
		return
	}
	captions, err := services.TranslateAll(rctx, s.p.Translator, s.p.Languages, transcription)
	if err != nil {
		cleanup()
		status, code := upstreamStatus(err)
		utils.ServerError(ctx, status, code+1, "translation failed", err)
		return
	}

	spot := models.Spot{
		Username:           username,
		SpotName:           spotName,
		Latitude:           lat,
		Longitude:          lon,
		Category:           category,
		Description:        description,
		OriginalLanguage:   s.p.Languages.SourceKey(),
		Caption:            transcription,
		Transcription:      transcription,
		TranslatedCaptions: captions,
		Summary:            quickSummary(transcription),
		AudioURL:           audioFile.URL,
		ImageURL:           imageFile.URL,
	}
	if err := s.spots.Create(rctx, &spot); err != nil {
		cleanup()
		utils.ServerError(ctx, http.StatusInternalServerError, 50032, "failed to save spot", err)
		return
	}
	if err := s.p.Store.Attach(rctx, stored...); err != nil {
		// the sweeper would delete media the spot points at
		utils.Logger.Error("failed to attach spot media", zap.Uint("spot_id", spot.ID), zap.Error(err))
	}

	streakResult, streakErr := s.p.Streaks.Record(rctx, username)
	badges, err := s.users.AddBadgeScore(rctx, username, badgePointsPerPost)
	if err != nil {
		utils.Logger.Error("badge update failed", zap.String("username", username), zap.Error(err))
	}
	postCount, err := s.users.RecountPosts(rctx, username)
	if err != nil {
		utils.Logger.Error("post count update failed", zap.String("username", username), zap.Error(err))
	}

	data := gin.H{
		"spot":       spot,
		"badges":     badges,
		"post_count": postCount,
	}
	switch {
	case streakErr == nil:
		data["streak"] = streakResult
		utils.Created(ctx, data)
	case errors.Is(streakErr, streak.ErrConflict):
		utils.Respond(ctx, http.StatusConflict, 40910, "spot saved; streak was updated concurrently", data)
	default:
		utils.Logger.Error("streak update failed", zap.String("username", username), zap.Error(streakErr))
		utils.Respond(ctx, http.StatusInternalServerError, 50033, "spot saved; streak update failed", data)
	}
}

// AudioTitle generates a title and short description for an uploaded recording.
func (s *SpotController) AudioTitle(ctx *gin.Context) {
	fh, err := ctx.FormFile("audio")
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40033, "audio file is required")
		return
	}
	audio, err := readUpload(fh, maxAudioBytes)
	if err != nil {
		utils.Error(ctx, http.StatusRequestEntityTooLarge, 41301, "audio file too large or unreadable")
		return
	}
	title, err := s.p.Titles.Title(ctx.Request.Context(), audio)
	if err != nil {
		status, code := upstreamStatus(err)
		if errors.Is(err, services.ErrTranscriptionFailed) {
			status, code = http.StatusBadGateway, 50210
		}
		utils.ServerError(ctx, status, code, "title generation failed", err)
		return
	}
	utils.Success(ctx, title)
}

type spotLookup struct {
	Username  string
	Latitude  float64
	Longitude float64
}

func bindSpotLookup(ctx *gin.Context) (spotLookup, bool) {
	username := strings.TrimSpace(ctx.Query("username"))
	if username == "" || ctx.Query("lat") == "" || ctx.Query("lon") == "" {
		utils.Error(ctx, http.StatusBadRequest, 40040, "username, lat and lon query parameters are required")
		return spotLookup{}, false
	}
	lat, lon, ok := parseLatLon(ctx.Query("lat"), ctx.Query("lon"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40041, "lat and lon must be valid numbers")
		return spotLookup{}, false
	}
	return spotLookup{Username: username, Latitude: lat, Longitude: lon}, true
}

func (s *SpotController) findSpot(ctx *gin.Context, q spotLookup, tol float64) (*models.Spot, bool) {
	spot, err := s.spots.FindAt(ctx.Request.Context(), q.Username, q.Latitude, q.Longitude, tol)
	if errors.Is(err, repository.ErrSpotNotFound) {
		utils.Error(ctx, http.StatusNotFound, 40440, "spot not found")
		return nil, false
	}
	if err != nil {
		utils.ServerError(ctx, http.StatusInternalServerError, 50040, "database error", err)
		return nil, false
	}
	return spot, true
}

// Translation returns the caption of a spot in the requested language.
func (s *SpotController) Translation(ctx *gin.Context) {
	q, ok := bindSpotLookup(ctx)
	if !ok {
		return
	}
	lang := strings.TrimSpace(ctx.Query("lang"))
	if lang == "" {
		utils.Error(ctx, http.StatusBadRequest, 40040, "lang query parameter is required")
		return
	}
	key, ok := s.p.Languages.Resolve(lang)
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40042, "unsupported language: "+lang)
		return
	}
	spot, ok := s.findSpot(ctx, q, captionTolerance)
	if !ok {
		return
	}

	translation := spot.TranslatedCaptions[key]
	if key == spot.OriginalLanguage {
		translation = spot.Caption
	}
	if translation == "" {
		utils.Error(ctx, http.StatusNotFound, 40441, "translation for language '"+key+"' not found")
		return
	}
	utils.Success(ctx, gin.H{
		"username":    spot.Username,
		"latitude":    spot.Latitude,
		"longitude":   spot.Longitude,
		"language":    key,
		"translation": translation,
	})
}

// ReturnSummary returns the name, description and quick summary of a spot.
func (s *SpotController) ReturnSummary(ctx *gin.Context) {
	q, ok := bindSpotLookup(ctx)
	if !ok {
		return
	}
	spot, ok := s.findSpot(ctx, q, summaryTolerance)
	if !ok {
		return
	}
	utils.Success(ctx, gin.H{
		"username":    q.Username,
		"latitude":    q.Latitude,
		"longitude":   q.Longitude,
		"spotname":    spot.SpotName,
		"description": spot.Description,
		"summary":     spot.Summary,
	})
}

// SpotIntro returns the card shown before a spot is opened.
func (s *SpotController) SpotIntro(ctx *gin.Context) {
	q, ok := bindSpotLookup(ctx)
	if !ok {
		return
	}
	spot, ok := s.findSpot(ctx, q, summaryTolerance)
	if !ok {
		return
	}
	utils.Success(ctx, gin.H{
		"username":    q.Username,
		"latitude":    q.Latitude,
		"longitude":   q.Longitude,
		"spotname":    spot.SpotName,
		"category":    spot.Category,
		"description": spot.Description,
		"viewcount":   spot.ViewCount,
	})
}

// FullSpot returns the media of a spot and counts the view.
func (s *SpotController) FullSpot(ctx *gin.Context) {
	q, ok := bindSpotLookup(ctx)
	if !ok {
		return
	}
	spot, ok := s.findSpot(ctx, q, captionTolerance)
	if !ok {
		return
	}
	views, err := s.spots.IncrementViewCount(ctx.Request.Context(), spot.ID)
	if err != nil {
		utils.Logger.Warn("view count update failed", zap.Uint("spot_id", spot.ID), zap.Error(err))
		views = spot.ViewCount
	}
	utils.Success(ctx, gin.H{
		"id":            spot.ID,
		"spotname":      spot.SpotName,
		"image":         spot.ImageURL,
		"audio_url":     spot.AudioURL,
		"transcription": spot.Transcription,
		"viewcount":     views,
	})
}

// ListUserSpots returns every spot posted by a user.
func (s *SpotController) ListUserSpots(ctx *gin.Context) {
	username := strings.TrimSpace(ctx.Param("username"))
	spots, err := s.spots.ListByUser(ctx.Request.Context(), username)
	if err != nil {
		utils.ServerError(ctx, http.StatusInternalServerError, 50041, "failed to fetch spots", err)
		return
	}
	utils.Success(ctx, gin.H{"posts": spots})
}

// DeleteSpot removes one of the caller's spots together with its media.
func (s *SpotController) DeleteSpot(ctx *gin.Context) {
	username, ok := currentUsername(ctx)
	if !ok {
		return
	}
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil || id == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40043, "invalid spot id")
		return
	}
	rctx := ctx.Request.Context()
	spot, err := s.spots.FindByID(rctx, uint(id))
	if errors.Is(err, repository.ErrSpotNotFound) {
		utils.Error(ctx, http.StatusNotFound, 40440, "spot not found")
		return
	}
	if err != nil {
		utils.ServerError(ctx, http.StatusInternalServerError, 50040, "database error", err)
		return
	}
	if spot.Username != username {
		utils.Error(ctx, http.StatusForbidden, 40310, "only the author can delete a spot")
		return
	}
	if err := s.spots.Delete(rctx, spot.ID); err != nil {
		utils.ServerError(ctx, http.StatusInternalServerError, 50042, "failed to delete spot", err)
		return
	}
	if err := s.p.Store.DeleteByURL(rctx, spot.AudioURL, spot.ImageURL); err != nil {
		utils.Logger.Warn("spot media cleanup failed", zap.Uint("spot_id", spot.ID), zap.Error(err))
	}
	postCount, err := s.users.RecountPosts(rctx, username)
	if err != nil {
		utils.Logger.Error("post count update failed", zap.String("username", username), zap.Error(err))
	}
	utils.Success(ctx, gin.H{"message": "Spot deleted successfully", "id": spot.ID, "post_count": postCount})
}

// quickSummary is "Quick summary: " followed by the first six words and an ellipsis.
func quickSummary(transcription string) string {
	words := strings.Fields(transcription)
	if len(words) > summaryWords {
		words = words[:summaryWords]
	}
	return "Quick summary: " + strings.Join(words, " ") + "..."
}
