package routes

import (
	"fmt"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/spotmap/spotmap/config"
	"github.com/spotmap/spotmap/repository"
	"github.com/spotmap/spotmap/services"
	"github.com/spotmap/spotmap/streak"
	"github.com/spotmap/spotmap/utils"
)

// Services holds the repositories and outbound clients shared by the handlers
// and background jobs.
type Services struct {
	Users  *repository.UserRepository
	Spots  *repository.SpotRepository
	Social *repository.SocialRepository

	Uploads     *services.LocalStore
	Streaks     *streak.Engine
	Geocoder    *services.OpenCage
	Converter   *services.FFmpeg
	Transcriber *services.Whisper
	Translator  *services.HTTPTranslator
	Titles      *services.AssemblyAI
	Languages   *services.Languages
}

// BuildServices constructs Services from configuration. Outbound clients are
// created even when unconfigured; they answer services.ErrNotConfigured.
func BuildServices(db *gorm.DB, cfg config.AppConfig) (*Services, error) {
	langs, err := services.NewLanguages(cfg.TranslationTargets)
	if err != nil {
		return nil, fmt.Errorf("translation targets: %w", err)
	}

	client := &http.Client{Timeout: time.Duration(cfg.ServiceTimeoutSec) * time.Second}
	users := repository.NewUserRepository(db)

	rules := streak.DefaultRules
	rules.RewardItem = cfg.StreakRewardItem

	return &Services{
		Users:  users,
		Spots:  repository.NewSpotRepository(db),
		Social: repository.NewSocialRepository(db),
		Uploads: services.NewLocalStore(db, cfg.UploadDir, cfg.UploadPublicPrefix,
			int64(cfg.UploadMaxSizeMB)<<20, time.Duration(cfg.UploadOrphanTTLMinutes)*time.Minute),
		Streaks:     streak.NewEngine(users, streak.WithRules(rules), streak.WithLogger(utils.Logger.Named("streak"))),
		Geocoder:    services.NewOpenCage(cfg.OpenCageURL, cfg.OpenCageAPIKey, client, utils.RedisCache{}),
		Converter:   services.NewFFmpeg(cfg.FFmpegPath),
		Transcriber: services.NewWhisper(cfg.TranscriberURL, client),
		Translator: services.NewHTTPTranslator(services.TranslatorConfig{
			BaseURL:      cfg.TranslatorURL,
			ClientID:     cfg.TranslatorClientID,
			ClientSecret: cfg.TranslatorClientSecret,
			TokenURL:     cfg.TranslatorTokenURL,
		}, client),
		Titles:    services.NewAssemblyAI(cfg.AssemblyAIURL, cfg.AssemblyAIKey, client, 0),
		Languages: langs,
	}, nil
}
