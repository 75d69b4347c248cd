package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/spotmap/spotmap/config"
	"github.com/spotmap/spotmap/middleware"
	"github.com/spotmap/spotmap/models"
	"github.com/spotmap/spotmap/repository"
	"github.com/spotmap/spotmap/services"
	"github.com/spotmap/spotmap/streak"
	"github.com/spotmap/spotmap/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
	config.Set(config.AppConfig{JWTSecret: "test-secret", RateLimitPerMinute: 10000})
}

type fakeConverter struct{ err error }

func (f fakeConverter) ToMP3(_ context.Context, audio []byte, _ string) ([]byte, error) {
	return audio, f.err
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f fakeTranscriber) Transcribe(context.Context, []byte) (string, error) { return f.text, f.err }

type fakeTranslator struct{}

func (fakeTranslator) Translate(_ context.Context, text string, _, target language.Tag) (string, error) {
	return "[" + services.CaptionKey(target) + "] " + text, nil
}

type fakeTitles struct {
	title services.AudioTitle
	err   error
}

func (f fakeTitles) Title(context.Context, []byte) (services.AudioTitle, error) { return f.title, f.err }

type fakeGeocoder struct {
	loc  services.Location
	area string
	err  error
}

func (f fakeGeocoder) Forward(context.Context, string) (services.Location, error) { return f.loc, f.err }
func (f fakeGeocoder) AreaName(context.Context, float64, float64) (string, error) {
	return f.area, f.err
}

type testEnv struct {
	db     *gorm.DB
	users  *repository.UserRepository
	spots  *repository.SpotRepository
	social *repository.SocialRepository
	store  *services.LocalStore
	langs  *services.Languages
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(models.All()...))

	langs, err := services.NewLanguages([]string{"fr-FR", "de-DE", "hi-IN"})
	require.NoError(t, err)
	return &testEnv{
		db:     db,
		users:  repository.NewUserRepository(db),
		spots:  repository.NewSpotRepository(db),
		social: repository.NewSocialRepository(db),
		store:  services.NewLocalStore(db, t.TempDir(), "/static/uploads", 1<<20, time.Hour),
		langs:  langs,
	}
}

func (e *testEnv) pipeline(transcriber Transcriber) SpotPipeline {
	return SpotPipeline{
		Store:       e.store,
		Converter:   fakeConverter{},
		Transcriber: transcriber,
		Translator:  fakeTranslator{},
		Languages:   e.langs,
		Titles:      fakeTitles{title: services.AudioTitle{Title: "Night market", Description: "Street food."}},
		Streaks:     streak.NewEngine(e.users),
	}
}

func (e *testEnv) router(p SpotPipeline, geocoder Geocoder) *gin.Engine {
	r := gin.New()
	authC := NewAuthController(e.users, "/static/default.png")
	spotC := NewSpotController(e.users, e.spots, p)
	geoC := NewGeoController(e.spots, geocoder, 7000, 2)
	socialC := NewSocialController(e.social)
	profileC := NewProfileController(e.users, e.spots, geocoder)
	journeyC := NewJourneyController(e.users, e.social, e.store)

	api := r.Group("/api/v1")
	api.POST("/auth/signup", authC.Signup)
	api.POST("/auth/login", authC.Login)
	api.GET("/translation", spotC.Translation)
	api.GET("/returnsummary", spotC.ReturnSummary)
	api.GET("/spotintro", spotC.SpotIntro)
	api.GET("/fullspot", spotC.FullSpot)
	api.GET("/nearby", geoC.Nearby)
	api.POST("/search-spots", geoC.SearchSpots)
	api.POST("/area-leaderboard", profileC.AreaLeaderboard)
	api.GET("/users/:username/spots", spotC.ListUserSpots)
	api.GET("/users/:username/follows", socialC.Follows)
	api.GET("/users/:username/profile", profileC.Profile)

	protected := api.Group("", middleware.AuthRequired())
	protected.GET("/auth/me", authC.Me)
	protected.POST("/spots", spotC.CreateSpot)
	protected.DELETE("/spots/:id", spotC.DeleteSpot)
	protected.POST("/audiotitle", spotC.AudioTitle)
	protected.POST("/follow", socialC.Follow)
	protected.POST("/unfollow", socialC.Unfollow)
	protected.POST("/set-home", profileC.SetHome)
	protected.GET("/streak", profileC.Streak)
	protected.GET("/journey/status", journeyC.Status)
	protected.POST("/journey/start", journeyC.Start)
	protected.POST("/journey/upload", journeyC.Upload)
	protected.GET("/journey/pins", journeyC.Pins)
	protected.POST("/journey/end", journeyC.End)
	return r
}

func (e *testEnv) seedUser(t *testing.T, username string) string {
	t.Helper()
	u := &models.User{Username: username, PasswordHash: "x"}
	require.NoError(t, e.db.Create(u).Error)
	tok, err := utils.GenerateToken(u.ID, username, 0)
	require.NoError(t, err)
	return tok
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func do(t *testing.T, r http.Handler, req *http.Request, token string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func jsonRequest(method, path string, body interface{}) *http.Request {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func multipartRequest(t *testing.T, path string, fields map[string]string, files map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for field, name := range files {
		fw, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = fw.Write([]byte("payload of " + name))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func spotForm(lat, lon string) map[string]string {
	return map[string]string{"spotname": "Night market", "latitude": lat, "longitude": lon}
}

var spotFiles = map[string]string{"audio": "clip.aac", "image": "photo.jpg"}

func query(path string, kv ...string) string {
	v := url.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		v.Set(kv[i], kv[i+1])
	}
	return path + "?" + v.Encode()
}

func countUploads(t *testing.T, db *gorm.DB, attached bool) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.UploadedFile{}).Where("attached = ?", attached).Count(&n).Error)
	return n
}

func TestAuth_SignupLoginMe(t *testing.T) {
	env := newTestEnv(t)
	r := env.router(env.pipeline(fakeTranscriber{}), fakeGeocoder{})

	w, res := do(t, r, jsonRequest(http.MethodPost, "/api/v1/auth/signup", credentials{Username: "alice", Password: "secret1"}), "")
	require.Equal(t, http.StatusCreated, w.Code)
	var signup struct {
		Token string                 `json:"token"`
		User  map[string]interface{} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &signup))
	assert.NotEmpty(t, signup.Token)
	assert.Equal(t, "EN", signup.User["preferlng"])
	assert.Equal(t, "/static/default.png", signup.User["profilepic"])

	w, res = do(t, r, jsonRequest(http.MethodPost, "/api/v1/auth/signup", credentials{Username: "alice", Password: "secret1"}), "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, 40901, res.Code)

	w, _ = do(t, r, jsonRequest(http.MethodPost, "/api/v1/auth/login", credentials{Username: "alice", Password: "wrong!!"}), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, res = do(t, r, jsonRequest(http.MethodPost, "/api/v1/auth/login", credentials{Username: "alice", Password: "secret1"}), "")
	require.Equal(t, http.StatusOK, w.Code)
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &login))

	w, _ = do(t, r, httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil), login.Token)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuth_SignupValidation(t *testing.T) {
	env := newTestEnv(t)
	r := env.router(env.pipeline(fakeTranscriber{}), fakeGeocoder{})

	w, _ := do(t, r, jsonRequest(http.MethodPost, "/api/v1/auth/signup", credentials{Username: "a", Password: "secret1"}), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = do(t, r, jsonRequest(http.MethodPost, "/api/v1/auth/signup", credentials{Username: "bob", Password: "123"}), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateSpot_FullPipeline(t *testing.T) {
	env := newTestEnv(t)
	r := env.router(env.pipeline(fakeTranscriber{text: "one two three four five six seven eight"}), fakeGeocoder{})
	tok := env.seedUser(t, "alice")

	w, res := do(t, r, multipartRequest(t, "/api/v1/spots", spotForm("12.9716", "77.5946"), spotFiles), tok)
	require.Equal(t, http.StatusCreated, w.Code, string(res.Data))

	var out struct {
		Spot      models.Spot   `json:"spot"`
		Badges    int           `json:"badges"`
		PostCount int           `json:"post_count"`
		Streak    streak.Result `json:"streak"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &out))
	assert.Equal(t, "Night market", out.Spot.SpotName)
	assert.Equal(t, "Food", out.Spot.Category)
	assert.Equal(t, "More", out.Spot.Description)
	assert.Equal(t, "en", out.Spot.OriginalLanguage)
	assert.Equal(t, "Quick summary: one two three four five six...", out.Spot.Summary)
	assert.Equal(t, "[fr] one two three four five six seven eight", out.Spot.TranslatedCaptions["fr"])
	assert.Len(t, out.Spot.TranslatedCaptions, 3)
	assert.True(t, strings.HasPrefix(out.Spot.AudioURL, "/static/uploads/audiofiles/"))
	assert.True(t, strings.HasPrefix(out.Spot.ImageURL, "/static/uploads/spotimages/"))
	assert.Equal(t, 5, out.Badges)
	assert.Equal(t, 1, out.PostCount)
	assert.Equal(t, streak.StatusUpdated, out.Streak.Status)
	assert.Equal(t, 1, out.Streak.State.StreaksCount)
	assert.Equal(t, int64(2), countUploads(t, env.db, true))

	// A second post on the same day leaves the streak alone but still scores.
	w, res = do(t, r, multipartRequest(t, "/api/v1/spots", spotForm("12.9800", "77.6000"), spotFiles), tok)
	require.Equal(t, http.StatusCreated, w.Code)
	require.NoError(t, json.Unmarshal(res.Data, &out))
	assert.Equal(t, streak.StatusAlreadyDoneToday, out.Streak.Status)
	assert.Equal(t, 10, out.Badges)
	assert.Equal(t, 2, out.PostCount)
}

func TestCreateSpot_RejectsBadCoordinatesBeforeUpload(t *testing.T) {
	env := newTestEnv(t)
	r := env.router(env.pipeline(fakeTranscriber{text: "hello"}), fakeGeocoder{})
	tok := env.seedUser(t, "alice")

	w, _ := do(t, r, multipartRequest(t, "/api/v1/spots", spotForm("north", "77.5"), spotFiles), tok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = do(t, r, multipartRequest(t, "/api/v1/spots", spotForm("91", "77.5"), spotFiles), tok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, int64(0), countUploads(t, env.db, false))
}

func TestCreateSpot_TranscriptionFailureRemovesMedia(t *testing.T) {
	env := newTestEnv(t)
	r := env.router(env.pipeline(fakeTranscriber{err: errors.New("whisper down")}), fakeGeocoder{})
	tok := env.seedUser(t, "alice")

	w, res := do(t, r, multipartRequest(t, "/api/v1/spots", spotForm("12.97", "77.59"), spotFiles), tok)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, 50201, res.Code)
	assert.Equal(t, int64(0), countUploads(t, env.db, false))

	var spots int64
	require.NoError(t, env.db.Model(&models.Spot{}).Count(&spots).Error)
	assert.Zero(t, spots)
}

func TestCreateSpot_RequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	r := env.router(env.pipeline(fakeTranscriber{}), fakeGeocoder{})
	w, _ := do(t, r, multipartRequest(t, "/api/v1/spots", spotForm("1", "1"), spotFiles), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func seedSpot(t *testing.T, env *testEnv, s models.Spot) models.Spot {
	t.Helper()
	require.NoError(t, env.spots.Create(context.Background(), &s))
	return s
}

func TestSpotLookups(t *testing.T) {
	env := newTestEnv(t)
	r := env.router(env.pipeline(fakeTranscriber{}), fakeGeocoder{})
	env.seedUser(t, "alice")
	spot := seedSpot(t, env, models.Spot{
		Username: "alice", SpotName: "Lake", Latitude: 12.5, Longitude: 77.5, Category: "Nature",
		Description: "Calm", OriginalLanguage: "en", Caption: "quiet lake", Transcription: "quiet lake",
		TranslatedCaptions: models.Captions{"fr": "lac calme"}, Summary: "Quick summary: quiet lake...",
	})

	t.Run("translation by language name", func(t *testing.T) {
		w, res := do(t, r, httptest.NewRequest(http.MethodGet, query("/api/v1/translation",
			"username", "alice", "lat", "12.500001", "lon", "77.5", "lang", "French"), nil), "")
		require.Equal(t, http.StatusOK, w.Code)
		var out map[string]interface{}
		require.NoError(t, json.Unmarshal(res.Data, &out))
		assert.Equal(t, "fr", out["language"])
		assert.Equal(t, "lac calme", out["translation"])
	})

	t.Run("source language returns caption", func(t *testing.T) {
		w, res := do(t, r, httptest.NewRequest(http.MethodGet, query("/api/v1/translation",
			"username", "alice", "lat", "12.5", "lon", "77.5", "lang", "en-US"), nil), "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, string(res.Data), "quiet lake")
	})

	t.Run("missing caption language", func(t *testing.T) {
		w, _ := do(t, r, httptest.NewRequest(http.MethodGet, query("/api/v1/translation",
			"username", "alice", "lat", "12.5", "lon", "77.5", "lang", "de"), nil), "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("unsupported language", func(t *testing.T) {
		w, _ := do(t, r, httptest.NewRequest(http.MethodGet, query("/api/v1/translation",
			"username", "alice", "lat", "12.5", "lon", "77.5", "lang", "japanese"), nil), "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("outside tolerance", func(t *testing.T) {
		w, _ := do(t, r, httptest.NewRequest(http.MethodGet, query("/api/v1/translation",
			"username", "alice", "lat", "12.5001", "lon", "77.5", "lang", "fr"), nil), "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("bad coordinates", func(t *testing.T) {
		w, _ := do(t, r, httptest.NewRequest(http.MethodGet, query("/api/v1/returnsummary",
			"username", "alice", "lat", "abc", "lon", "77.5"), nil), "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("summary and intro", func(t *testing.T) {
		w, res := do(t, r, httptest.NewRequest(http.MethodGet, query("/api/v1/returnsummary",
			"username", "alice", "lat", "12.5", "lon", "77.5"), nil), "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, string(res.Data), "Quick summary: quiet lake...")

		w, res = do(t, r, httptest.NewRequest(http.MethodGet, query("/api/v1/spotintro",
			"username", "alice", "lat", "12.5", "lon", "77.5"), nil), "")
		require.Equal(t, http.StatusOK, w.Code)
		var out map[string]interface{}
		require.NoError(t, json.Unmarshal(res.Data, &out))
		assert.Equal(t, "Nature", out["category"])
		assert.Equal(t, "Lake", out["spotname"])
	})

	t.Run("full spot counts views", func(t *testing.T) {
		for want := 1; want <= 2; want++ {
			w, res := do(t, r, httptest.NewRequest(http.MethodGet, query("/api/v1/fullspot",
				"username", "alice", "lat", "12.5", "lon", "77.5"), nil), "")
			require.Equal(t, http.StatusOK, w.Code)
			var out struct {
				ID        uint `json:"id"`
				ViewCount int  `json:"viewcount"`
			}
			require.NoError(t, json.Unmarshal(res.Data, &out))
			assert.Equal(t, spot.ID, out.ID)
			assert.Equal(t, want, out.ViewCount)
		}
	})
}

func TestDeleteSpot_OwnerOnly(t *testing.T) {
	env := newTestEnv(t)
	r := env.router(env.pipeline(fakeTranscriber{text: "hello there"}), fakeGeocoder{})
	alice := env.seedUser(t, "alice")
	bob := env.seedUser(t, "bob")

	w, res := do(t, r, multipartRequest(t, "/api/v1/spots", spotForm("10", "10"), spotFiles), alice)
	require.Equal(t, http.StatusCreated, w.Code)
	var out struct {
		Spot models.Spot `json:"spot"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &out))
	path := "/api/v1/spots/" + jsonNumber(out.Spot.ID)

	w, _ = do(t, r, httptest.NewRequest(http.MethodDelete, path, nil), bob)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, res = do(t, r, httptest.NewRequest(http.MethodDelete, path, nil), alice)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(res.Data), "Spot deleted successfully")
	assert.Equal(t, int64(0), countUploads(t, env.db, true))

	user, err := env.users.FindByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Zero(t, user.PostCount)

	w, _ = do(t, r, httptest.NewRequest(http.MethodDelete, path, nil), alice)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func jsonNumber(id uint) string {
	b, _ := json.Marshal(id)
	return string(b)
}

func TestAudioTitle(t *testing.T) {
	env := newTestEnv(t)
	p := env.pipeline(fakeTranscriber{})
	tok := env.seedUser(t, "alice")

	w, res := do(t, env.router(p, fakeGeocoder{}),
		multipartRequest(t, "/api/v1/audiotitle", nil, map[string]string{"audio": "a.m4a"}), tok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(res.Data), "Night market")

	p.Titles = fakeTitles{err: services.ErrNotConfigured}
	w, _ = do(t, env.router(p, fakeGeocoder{}),
		multipartRequest(t, "/api/v1/audiotitle", nil, map[string]string{"audio": "a.m4a"}), tok)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestNearby(t *testing.T) {
	env := newTestEnv(t)
	r := env.router(env.pipeline(fakeTranscriber{}), fakeGeocoder{})
	seedSpot(t, env, models.Spot{Username: "a", SpotName: "far", Latitude: 12.05, Longitude: 77, Category: "Food"})
	seedSpot(t, env, models.Spot{Username: "a", SpotName: "near", Latitude: 12.01, Longitude: 77, Category: "Food"})
	seedSpot(t, env, models.Spot{Username: "a", SpotName: "other", Latitude: 12.0, Longitude: 77, Category: "Art"})
	seedSpot(t, env, models.Spot{Username: "a", SpotName: "away", Latitude: 13, Longitude: 77, Category: "Food"})

	w, res := do(t, r, httptest.NewRequest(http.MethodGet, query("/api/v1/nearby", "lat", "12", "lng", "77", "category", "Food"), nil), "")
	require.Equal(t, http.StatusOK, w.Code)
	var out struct {
		Spots []nearbySpot `json:"spots"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &out))
	require.Len(t, out.Spots, 2)
	assert.Equal(t, "near", out.Spots[0].SpotName)
	assert.Equal(t, "far", out.Spots[1].SpotName)
	assert.Less(t, out.Spots[0].DistanceMeters, out.Spots[1].DistanceMeters)

	w, _ = do(t, r, httptest.NewRequest(http.MethodGet, query("/api/v1/nearby", "lat", "12", "lng", "77"), nil), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = do(t, r, httptest.NewRequest(http.MethodGet, query("/api/v1/nearby", "lat", "x", "lng", "77", "category", "Food"), nil), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchSpots(t *testing.T) {
	env := newTestEnv(t)
	seedSpot(t, env, models.Spot{Username: "a", SpotName: "inside", Latitude: 48.857, Longitude: 2.352, Category: "Food"})
	seedSpot(t, env, models.Spot{Username: "a", SpotName: "outside", Latitude: 49.5, Longitude: 2.352, Category: "Food"})

	r := env.router(env.pipeline(fakeTranscriber{}), fakeGeocoder{loc: services.Location{Name: "Paris", Latitude: 48.8566, Longitude: 2.3522}})
	w, res := do(t, r, jsonRequest(http.MethodPost, "/api/v1/search-spots", gin.H{"search_query": "Paris"}), "")
	require.Equal(t, http.StatusOK, w.Code)
	var out struct {
		Location   services.Location `json:"location"`
		TotalSpots int               `json:"total_spots"`
		Spots      []models.Spot     `json:"spots"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &out))
	assert.Equal(t, "Paris", out.Location.Name)
	assert.Equal(t, 1, out.TotalSpots)
	assert.Equal(t, "inside", out.Spots[0].SpotName)

	r = env.router(env.pipeline(fakeTranscriber{}), fakeGeocoder{err: services.ErrLocationNotFound})
	w, res = do(t, r, jsonRequest(http.MethodPost, "/api/v1/search-spots", gin.H{"search_query": "Atlantis"}), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 40420, res.Code)

	w, _ = do(t, r, jsonRequest(http.MethodPost, "/api/v1/search-spots", gin.H{}), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFollowFlow(t *testing.T) {
	env := newTestEnv(t)
	r := env.router(env.pipeline(fakeTranscriber{}), fakeGeocoder{})
	alice := env.seedUser(t, "alice")
	env.seedUser(t, "bob")

	w, res := do(t, r, jsonRequest(http.MethodPost, "/api/v1/follow", followRequest{Following: "bob"}), alice)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "followed", res.Message)
	_, res = do(t, r, jsonRequest(http.MethodPost, "/api/v1/follow", followRequest{Following: "bob"}), alice)
	assert.Equal(t, "already following", res.Message)

	w, _ = do(t, r, jsonRequest(http.MethodPost, "/api/v1/follow", followRequest{Following: "alice"}), alice)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = do(t, r, jsonRequest(http.MethodPost, "/api/v1/follow", followRequest{Following: "carol"}), alice)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, res = do(t, r, httptest.NewRequest(http.MethodGet, "/api/v1/users/bob/follows", nil), "")
	require.Equal(t, http.StatusOK, w.Code)
	var info repository.FollowInfo
	require.NoError(t, json.Unmarshal(res.Data, &info))
	assert.Equal(t, 1, info.FollowersCount)
	assert.Equal(t, []string{"alice"}, info.Followers)

	_, res = do(t, r, jsonRequest(http.MethodPost, "/api/v1/unfollow", followRequest{Following: "bob"}), alice)
	assert.Equal(t, "unfollowed", res.Message)
	_, res = do(t, r, jsonRequest(http.MethodPost, "/api/v1/unfollow", followRequest{Following: "bob"}), alice)
	assert.Equal(t, "not following", res.Message)
}

func TestProfileHomeAndLeaderboard(t *testing.T) {
	env := newTestEnv(t)
	r := env.router(env.pipeline(fakeTranscriber{}), fakeGeocoder{area: "Indiranagar"})
	alice := env.seedUser(t, "Alice")
	bob := env.seedUser(t, "bob")
	seedSpot(t, env, models.Spot{Username: "Alice", SpotName: "Cafe", ImageURL: "/img.jpg", Category: "Food"})
	ctx := context.Background()
	_, err := env.users.AddBadgeScore(ctx, "Alice", 15)
	require.NoError(t, err)
	_, err = env.users.AddBadgeScore(ctx, "bob", 20)
	require.NoError(t, err)

	w, res := do(t, r, httptest.NewRequest(http.MethodGet, "/api/v1/users/alice/profile", nil), "")
	require.Equal(t, http.StatusOK, w.Code)
	var profile struct {
		Username      string         `json:"username"`
		Score         int            `json:"score"`
		UploadedSpots []uploadedSpot `json:"uploaded_spots"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &profile))
	assert.Equal(t, "Alice", profile.Username)
	assert.Equal(t, 15, profile.Score)
	require.Len(t, profile.UploadedSpots, 1)
	assert.Equal(t, "Cafe", profile.UploadedSpots[0].Title)
	assert.Equal(t, "/img.jpg", profile.UploadedSpots[0].SpotImage)

	w, _ = do(t, r, httptest.NewRequest(http.MethodGet, "/api/v1/users/nobody/profile", nil), "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, res = do(t, r, jsonRequest(http.MethodPost, "/api/v1/set-home", gin.H{"lat": 12.97, "lon": 77.64}), alice)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "location set", res.Message)
	_, res = do(t, r, jsonRequest(http.MethodPost, "/api/v1/set-home", gin.H{"lat": 1, "lon": 1}), alice)
	assert.Equal(t, "location already set", res.Message)
	w, _ = do(t, r, jsonRequest(http.MethodPost, "/api/v1/set-home", gin.H{"lat": 12.97}), bob)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	_, _ = do(t, r, jsonRequest(http.MethodPost, "/api/v1/set-home", gin.H{"lat": 12.98, "lon": 77.64}), bob)

	w, res = do(t, r, jsonRequest(http.MethodPost, "/api/v1/area-leaderboard", gin.H{"lat": 12.97, "lon": 77.64}), "")
	require.Equal(t, http.StatusOK, w.Code)
	var board struct {
		Area        string                        `json:"area"`
		Leaderboard []repository.LeaderboardEntry `json:"leaderboard"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &board))
	assert.Equal(t, "Indiranagar", board.Area)
	require.Len(t, board.Leaderboard, 2)
	assert.Equal(t, "bob", board.Leaderboard[0].Username)
	assert.Equal(t, 20, board.Leaderboard[0].Scores)
}

func TestStreakEndpoint(t *testing.T) {
	env := newTestEnv(t)
	r := env.router(env.pipeline(fakeTranscriber{text: "hi"}), fakeGeocoder{})
	tok := env.seedUser(t, "alice")

	w, res := do(t, r, httptest.NewRequest(http.MethodGet, "/api/v1/streak", nil), tok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(res.Data), `"streaks_count":0`)

	w, _ = do(t, r, multipartRequest(t, "/api/v1/spots", spotForm("1", "1"), spotFiles), tok)
	require.Equal(t, http.StatusCreated, w.Code)

	_, res = do(t, r, httptest.NewRequest(http.MethodGet, "/api/v1/streak", nil), tok)
	assert.Contains(t, string(res.Data), `"streaks_count":1`)
}

func TestJourneyLifecycle(t *testing.T) {
	env := newTestEnv(t)
	r := env.router(env.pipeline(fakeTranscriber{}), fakeGeocoder{})
	tok := env.seedUser(t, "alice")

	_, res := do(t, r, httptest.NewRequest(http.MethodGet, "/api/v1/journey/status", nil), tok)
	assert.JSONEq(t, `{"journeyStatus":false}`, string(res.Data))

	w, _ := do(t, r, multipartRequest(t, "/api/v1/journey/upload",
		map[string]string{"latitude": "1", "longitude": "2"}, spotFiles), tok)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = do(t, r, jsonRequest(http.MethodPost, "/api/v1/journey/start", startJourneyRequest{JourneyName: "Coast", Source: "Goa"}), tok)
	require.Equal(t, http.StatusCreated, w.Code)
	w, _ = do(t, r, jsonRequest(http.MethodPost, "/api/v1/journey/start", startJourneyRequest{JourneyName: "Again"}), tok)
	assert.Equal(t, http.StatusConflict, w.Code)

	_, res = do(t, r, httptest.NewRequest(http.MethodGet, "/api/v1/journey/status", nil), tok)
	assert.JSONEq(t, `{"journeyStatus":true}`, string(res.Data))

	w, res = do(t, r, multipartRequest(t, "/api/v1/journey/upload",
		map[string]string{"latitude": "15.5", "longitude": "73.8"}, spotFiles), tok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(res.Data), defaultPinTitle)
	assert.Contains(t, string(res.Data), "/static/uploads/journeymap/")

	w, res = do(t, r, multipartRequest(t, "/api/v1/journey/upload",
		map[string]string{"title": "Beach", "latitude": "15.6", "longitude": "73.7"}, spotFiles), tok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(4), countUploads(t, env.db, true))

	w, res = do(t, r, httptest.NewRequest(http.MethodGet, "/api/v1/journey/pins", nil), tok)
	require.Equal(t, http.StatusOK, w.Code)
	var pins struct {
		SpotPins []models.SpotPin `json:"spotpins"`
		Source   string           `json:"source"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &pins))
	assert.Len(t, pins.SpotPins, 2)
	assert.Equal(t, "Goa", pins.Source)

	w, res = do(t, r, jsonRequest(http.MethodPost, "/api/v1/journey/end", nil), tok)
	require.Equal(t, http.StatusOK, w.Code)
	var ended struct {
		Destination *models.SpotPin `json:"destination"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &ended))
	require.NotNil(t, ended.Destination)
	assert.Equal(t, "Beach", ended.Destination.Title)

	w, _ = do(t, r, jsonRequest(http.MethodPost, "/api/v1/journey/end", nil), tok)
	assert.Equal(t, http.StatusNotFound, w.Code)
	_, res = do(t, r, httptest.NewRequest(http.MethodGet, "/api/v1/journey/status", nil), tok)
	assert.JSONEq(t, `{"journeyStatus":false}`, string(res.Data))
}

func TestParseLatLon(t *testing.T) {
	lat, lon, ok := parseLatLon(" 12.5 ", "-77.25")
	assert.True(t, ok)
	assert.Equal(t, 12.5, lat)
	assert.Equal(t, -77.25, lon)

	for _, c := range [][2]string{{"", "1"}, {"NaN", "1"}, {"1", "Inf"}, {"-90.1", "0"}, {"0", "180.5"}} {
		_, _, ok := parseLatLon(c[0], c[1])
		assert.False(t, ok, c)
	}
}

func TestQuickSummary(t *testing.T) {
	assert.Equal(t, "Quick summary: a b...", quickSummary("  a  b "))
	assert.Equal(t, "Quick summary: 1 2 3 4 5 6...", quickSummary("1 2 3 4 5 6 7 8"))
}
