package controllers

import (
	"context"
	"errors"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/spotmap/spotmap/middleware"
	"github.com/spotmap/spotmap/services"
	"github.com/spotmap/spotmap/streak"
	"github.com/spotmap/spotmap/utils"
)

// Geocoder resolves places and areas.
type Geocoder interface {
	Forward(ctx context.Context, place string) (services.Location, error)
	AreaName(ctx context.Context, lat, lon float64) (string, error)
}

// BlobStore persists uploaded media.
type BlobStore interface {
	Save(ctx context.Context, bucket, name string, r io.Reader) (services.StoredFile, error)
	Attach(ctx context.Context, files ...services.StoredFile) error
	Delete(ctx context.Context, files ...services.StoredFile) error
	DeleteByURL(ctx context.Context, urls ...string) error
}

// AudioConverter turns uploaded audio into MP3.
type AudioConverter interface {
	ToMP3(ctx context.Context, audio []byte, ext string) ([]byte, error)
}

// Transcriber turns MP3 audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, mp3 []byte) (string, error)
}

// TitleGenerator produces a headline and description for audio.
type TitleGenerator interface {
	Title(ctx context.Context, audio []byte) (services.AudioTitle, error)
}

// StreakRecorder advances a user's posting streak.
type StreakRecorder interface {
	Record(ctx context.Context, username string) (streak.Result, error)
}

// maxAudioBytes bounds how much audio is read into memory for conversion.
const maxAudioBytes = 50 << 20

// parseCoordinate parses a decimal degree value and rejects NaN and infinities.
func parseCoordinate(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// parseLatLon parses a latitude and longitude pair and checks their ranges.
func parseLatLon(latRaw, lonRaw string) (float64, float64, bool) {
	lat, ok1 := parseCoordinate(latRaw)
	lon, ok2 := parseCoordinate(lonRaw)
	if !ok1 || !ok2 || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, false
	}
	return lat, lon, true
}

func currentUsername(ctx *gin.Context) (string, bool) {
	name, ok := middleware.Username(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
	}
	return name, ok
}

func readUpload(fh *multipart.FileHeader, limit int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	b, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, services.ErrFileTooLarge
	}
	return b, nil
}

func fileExt(fh *multipart.FileHeader) string {
	return strings.ToLower(filepath.Ext(fh.Filename))
}

// upstreamStatus maps outbound service failures to an HTTP status and business code.
func upstreamStatus(err error) (int, int) {
	switch {
	case errors.Is(err, services.ErrLocationNotFound):
		return http.StatusNotFound, 40420
	case errors.Is(err, services.ErrNotConfigured):
		return http.StatusServiceUnavailable, 50301
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, 50401
	default:
		return http.StatusBadGateway, 50201
	}
}
