package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// AppConfig holds environment driven configuration values.
// Secrets have no defaults in code and must come from the config file or the environment.
type AppConfig struct {
	AppPort            string
	JWTSecret          string
	JWTTTLMinutes      int
	RateLimitPerMinute int
	AllowedOrigins     []string
	// Database
	DBDriver    string
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	// Redis for caching and token revocation
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	// Gin framework configuration
	GinMode string
	GinPath string
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
	// Geo queries
	NearbyRadiusMeters float64
	SearchRadiusKm     float64
	// Streaks
	StreakRewardItem           string
	StreakResetIntervalMinutes int
	// Outbound services
	OpenCageURL            string
	OpenCageAPIKey         string
	TranscriberURL         string
	AssemblyAIURL          string
	AssemblyAIKey          string
	TranslatorURL          string
	TranslatorClientID     string
	TranslatorClientSecret string
	TranslatorTokenURL     string
	TranslationTargets     []string
	FFmpegPath             string
	ServiceTimeoutSec      int
	// Uploads
	UploadDir              string
	UploadPublicPrefix     string
	UploadMaxSizeMB        int
	UploadOrphanTTLMinutes int
	DefaultProfilePic      string
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration. It should be called once during boot.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	// Precedence: config file -> defaults -> environment variable overrides
	path := getEnv("CONFIG_FILE", "")
	if path == "" {
		path = findConfigFile(filepath.Join("config", "config.json"), filepath.Join("config", "config.yaml"), filepath.Join("config", "config.yml"))
	}
	if path != "" {
		if err := loadConfigFile(path, &cfg); err != nil {
			log.Fatalf("invalid config file %s: %v", path, err)
		}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set in config or environment variables")
	}

	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

// Set replaces the cached configuration. Intended for tests and tools that
// build their configuration in code.
func Set(c AppConfig) {
	applyDefaults(&c)
	cfg = c
	loaded = true
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func findConfigFile(candidates ...string) string {
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// loadConfigFile reads a JSON or YAML file into out. Missing files are ignored.
func loadConfigFile(path string, out *AppConfig) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	raw := map[string]any{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &raw); err != nil {
			return err
		}
	default:
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
	}
	applyRaw(raw, out)
	return nil
}

func getString(m map[string]any, key string) string {
	if v, ok := m[key]; ok {
		switch t := v.(type) {
		case string:
			return t
		case int, float64:
			return fmt.Sprint(t)
		}
	}
	return ""
}

func getInt(m map[string]any, key string) int {
	if v, ok := m[key]; ok {
		switch t := v.(type) {
		case float64:
			return int(t)
		case int:
			return t
		case json.Number:
			i, _ := t.Int64()
			return int(i)
		}
	}
	return 0
}

func getFloat(m map[string]any, key string) float64 {
	if v, ok := m[key]; ok {
		switch t := v.(type) {
		case float64:
			return t
		case int:
			return float64(t)
		}
	}
	return 0
}

func getBool(m map[string]any, key string) bool {
	if v, ok := m[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

func getStringSlice(m map[string]any, key string) []string {
	if v, ok := m[key]; ok {
		if arr, ok := v.([]any); ok {
			res := make([]string, 0, len(arr))
			for _, it := range arr {
				if s, ok := it.(string); ok {
					res = append(res, s)
				}
			}
			return res
		}
	}
	return nil
}

// section returns a grouped section, or the root map so flat keys keep working.
func section(raw map[string]any, name string) map[string]any {
	if s, ok := raw[name].(map[string]any); ok {
		return s
	}
	return raw
}

func applyRaw(raw map[string]any, out *AppConfig) {
	app := section(raw, "app")
	out.AppPort = getString(app, "AppPort")
	out.JWTSecret = getString(app, "JWTSecret")
	out.JWTTTLMinutes = getInt(app, "JWTTTLMinutes")
	out.RateLimitPerMinute = getInt(app, "RateLimitPerMinute")
	if list := getStringSlice(app, "AllowedOrigins"); len(list) > 0 {
		out.AllowedOrigins = list
	}

	dbs := section(raw, "database")
	out.DBDriver = getString(dbs, "DBDriver")
	out.DatabaseURI = getString(dbs, "DatabaseURI")
	out.DBHost = getString(dbs, "DBHost")
	out.DBPort = getString(dbs, "DBPort")
	out.DBUser = getString(dbs, "DBUser")
	out.DBPassword = getString(dbs, "DBPassword")
	out.DBName = getString(dbs, "DBName")

	rds := section(raw, "redis")
	out.RedisHost = getString(rds, "RedisHost")
	out.RedisPort = getInt(rds, "RedisPort")
	out.RedisDB = getInt(rds, "RedisDB")
	out.RedisPassword = getString(rds, "RedisPassword")

	if g, ok := raw["gin"].(map[string]any); ok {
		out.GinMode = getString(g, "Mode")
		out.GinPath = getString(g, "LogPath")
	} else {
		out.GinMode = getString(raw, "GinMode")
		out.GinPath = getString(raw, "GinPath")
	}

	if lg, ok := raw["log"].(map[string]any); ok {
		out.LogLevel = getString(lg, "Level")
		out.LogPath = getString(lg, "Path")
		out.LogMaxSizeMB = getInt(lg, "MaxSizeMB")
		out.LogMaxBackups = getInt(lg, "MaxBackups")
		out.LogMaxAgeDays = getInt(lg, "MaxAgeDays")
		out.LogCompress = getBool(lg, "Compress")
	} else {
		out.LogLevel = getString(raw, "LogLevel")
		out.LogPath = getString(raw, "LogPath")
		out.LogMaxSizeMB = getInt(raw, "LogMaxSizeMB")
		out.LogMaxBackups = getInt(raw, "LogMaxBackups")
		out.LogMaxAgeDays = getInt(raw, "LogMaxAgeDays")
		out.LogCompress = getBool(raw, "LogCompress")
	}

	g := section(raw, "geo")
	out.NearbyRadiusMeters = getFloat(g, "NearbyRadiusMeters")
	out.SearchRadiusKm = getFloat(g, "SearchRadiusKm")

	st := section(raw, "streak")
	out.StreakRewardItem = getString(st, "RewardItem")
	if out.StreakRewardItem == "" {
		out.StreakRewardItem = getString(st, "StreakRewardItem")
	}
	out.StreakResetIntervalMinutes = getInt(st, "ResetIntervalMinutes")
	if out.StreakResetIntervalMinutes == 0 {
		out.StreakResetIntervalMinutes = getInt(st, "StreakResetIntervalMinutes")
	}

	svc := section(raw, "services")
	out.OpenCageURL = getString(svc, "OpenCageURL")
	out.OpenCageAPIKey = getString(svc, "OpenCageAPIKey")
	out.TranscriberURL = getString(svc, "TranscriberURL")
	out.AssemblyAIURL = getString(svc, "AssemblyAIURL")
	out.AssemblyAIKey = getString(svc, "AssemblyAIKey")
	out.TranslatorURL = getString(svc, "TranslatorURL")
	out.TranslatorClientID = getString(svc, "TranslatorClientID")
	out.TranslatorClientSecret = getString(svc, "TranslatorClientSecret")
	out.TranslatorTokenURL = getString(svc, "TranslatorTokenURL")
	if list := getStringSlice(svc, "TranslationTargets"); len(list) > 0 {
		out.TranslationTargets = list
	}
	out.FFmpegPath = getString(svc, "FFmpegPath")
	out.ServiceTimeoutSec = getInt(svc, "ServiceTimeoutSec")

	up := section(raw, "uploads")
	out.UploadDir = getString(up, "UploadDir")
	out.UploadPublicPrefix = getString(up, "UploadPublicPrefix")
	out.UploadMaxSizeMB = getInt(up, "UploadMaxSizeMB")
	out.UploadOrphanTTLMinutes = getInt(up, "UploadOrphanTTLMinutes")
	out.DefaultProfilePic = getString(up, "DefaultProfilePic")
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.JWTTTLMinutes == 0 {
		c.JWTTTLMinutes = 60
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.DBDriver == "" {
		c.DBDriver = "mysql"
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		c.DBPort = "3306"
	}
	if c.DBUser == "" {
		c.DBUser = "root"
	}
	if c.DBName == "" {
		c.DBName = "spotmap"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/go_gin.log"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
	if c.NearbyRadiusMeters == 0 {
		c.NearbyRadiusMeters = 7000
	}
	if c.SearchRadiusKm == 0 {
		c.SearchRadiusKm = 2
	}
	if c.StreakRewardItem == "" {
		c.StreakRewardItem = "Free drink at partner cafe"
	}
	if c.StreakResetIntervalMinutes == 0 {
		c.StreakResetIntervalMinutes = 60
	}
	if c.OpenCageURL == "" {
		c.OpenCageURL = "https://api.opencagedata.com/geocode/v1/json"
	}
	if c.TranscriberURL == "" {
		c.TranscriberURL = "http://127.0.0.1:5002"
	}
	if c.AssemblyAIURL == "" {
		c.AssemblyAIURL = "https://api.assemblyai.com/v2"
	}
	if len(c.TranslationTargets) == 0 {
		c.TranslationTargets = []string{"fr-FR", "de-DE", "hi-IN"}
	}
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	if c.ServiceTimeoutSec == 0 {
		c.ServiceTimeoutSec = 30
	}
	if c.UploadDir == "" {
		c.UploadDir = filepath.Join("static", "uploads")
	}
	if c.UploadPublicPrefix == "" {
		c.UploadPublicPrefix = "/static/uploads"
	}
	if c.UploadMaxSizeMB == 0 {
		c.UploadMaxSizeMB = 50
	}
	if c.UploadOrphanTTLMinutes == 0 {
		c.UploadOrphanTTLMinutes = 60
	}
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) {
	strs := map[string]*string{
		"APP_PORT":                 &c.AppPort,
		"JWT_SECRET":               &c.JWTSecret,
		"DB_DRIVER":                &c.DBDriver,
		"DATABASE_URI":             &c.DatabaseURI,
		"DB_HOST":                  &c.DBHost,
		"DB_PORT":                  &c.DBPort,
		"DB_USER":                  &c.DBUser,
		"DB_PASSWORD":              &c.DBPassword,
		"DB_NAME":                  &c.DBName,
		"REDIS_HOST":               &c.RedisHost,
		"REDIS_PASSWORD":           &c.RedisPassword,
		"GIN_MODE":                 &c.GinMode,
		"GIN_PATH":                 &c.GinPath,
		"LOG_LEVEL":                &c.LogLevel,
		"LOG_PATH":                 &c.LogPath,
		"STREAK_REWARD_ITEM":       &c.StreakRewardItem,
		"OPENCAGE_URL":             &c.OpenCageURL,
		"OPENCAGE_API_KEY":         &c.OpenCageAPIKey,
		"TRANSCRIBER_URL":          &c.TranscriberURL,
		"ASSEMBLYAI_URL":           &c.AssemblyAIURL,
		"ASSEMBLYAI_API_KEY":       &c.AssemblyAIKey,
		"TRANSLATOR_URL":           &c.TranslatorURL,
		"TRANSLATOR_CLIENT_ID":     &c.TranslatorClientID,
		"TRANSLATOR_CLIENT_SECRET": &c.TranslatorClientSecret,
		"TRANSLATOR_TOKEN_URL":     &c.TranslatorTokenURL,
		"FFMPEG_PATH":              &c.FFmpegPath,
		"UPLOAD_DIR":               &c.UploadDir,
		"UPLOAD_PUBLIC_PREFIX":     &c.UploadPublicPrefix,
		"DEFAULT_PROFILE_PIC":      &c.DefaultProfilePic,
	}
	for key, dst := range strs {
		if v := getEnv(key, ""); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"JWT_TTL_MINUTES":               &c.JWTTTLMinutes,
		"RATE_LIMIT_PER_MINUTE":         &c.RateLimitPerMinute,
		"REDIS_PORT":                    &c.RedisPort,
		"REDIS_DB":                      &c.RedisDB,
		"LOG_MAX_SIZE_MB":               &c.LogMaxSizeMB,
		"LOG_MAX_BACKUPS":               &c.LogMaxBackups,
		"LOG_MAX_AGE_DAYS":              &c.LogMaxAgeDays,
		"STREAK_RESET_INTERVAL_MINUTES": &c.StreakResetIntervalMinutes,
		"SERVICE_TIMEOUT_SEC":           &c.ServiceTimeoutSec,
		"UPLOAD_MAX_SIZE_MB":            &c.UploadMaxSizeMB,
		"UPLOAD_ORPHAN_TTL_MINUTES":     &c.UploadOrphanTTLMinutes,
	}
	for key, dst := range ints {
		if v := getEnv(key, ""); v != "" {
			*dst = mustParseInt(v)
		}
	}

	if v := getEnv("LOG_COMPRESS", ""); v != "" {
		c.LogCompress = v == "true"
	}
	if v := getEnv("NEARBY_RADIUS_METERS", ""); v != "" {
		c.NearbyRadiusMeters = mustParseFloat(v)
	}
	if v := getEnv("SEARCH_RADIUS_KM", ""); v != "" {
		c.SearchRadiusKm = mustParseFloat(v)
	}
	if v := getEnv("CORS_ALLOWED_ORIGINS", ""); v != "" {
		c.AllowedOrigins = splitAndTrim(v)
	}
	if v := getEnv("TRANSLATION_TARGETS", ""); v != "" {
		c.TranslationTargets = splitAndTrim(v)
	}
}

func mustParseInt(val string) int {
	i, err := strconv.Atoi(val)
	if err != nil {
		log.Fatalf("invalid integer value %s: %v", val, err)
	}
	return i
}

func mustParseFloat(val string) float64 {
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		log.Fatalf("invalid number value %s: %v", val, err)
	}
	return f
}

func splitAndTrim(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
