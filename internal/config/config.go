// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Forecast ForecastConfig
	Source   SourceConfig
	Storage  StorageConfig
	Cache    CacheConfig
	Drive    DriveConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port           string `validate:"required"`
	Mode           string `validate:"oneof=debug release test"`
	ReadTimeout    int    `validate:"gte=0"`
	WriteTimeout   int    `validate:"gte=0"`
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Driver               string `validate:"oneof=pgx postgres mysql"`
	URL                  string
	Host                 string
	Port                 string
	User                 string
	Password             string
	DBName               string
	SSLMode              string
	Schema               string
	MaxConcurrentQueries int `validate:"min=1"`
}

// ForecastConfig drives the pipeline itself.
type ForecastConfig struct {
	HorizonDays     int     `validate:"min=1,max=366"`
	LowThreshold    float64
	MedThreshold    float64 `validate:"gtefield=LowThreshold"`
	HighThreshold   float64 `validate:"gtefield=MedThreshold"`
	ArtifactPath    string  `validate:"required"`
	ArtifactBackend string  `validate:"oneof=file s3"`
	RetrainPolicy   string  `validate:"oneof=reuse force"`
	HoldoutFraction float64 `validate:"gt=0,lt=1"`
	HoldoutSeed     int64
	Timezone        string `validate:"required"`
}

type SourceConfig struct {
	Kind string `validate:"oneof=sql file"`
	Dir  string
}

type StorageConfig struct {
	Provider  string `validate:"oneof=minio sevalla"`
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

type CacheConfig struct {
	Enabled          bool
	RedisURL         string
	RedisHost        string
	RedisPort        string
	RedisPassword    string
	RedisDB          int
	AlertsTTLSeconds int `validate:"min=1"`
}

type DriveConfig struct {
	FolderID        string
	CredentialsJSON string
}

type LogConfig struct {
	Level  string
	Format string `validate:"oneof=console json"`
}

var (
	once     sync.Once
	instance *Config
	loadErr  error
	validate = validator.New()
)

// Get loads the configuration once per process.
func Get() (*Config, error) {
	once.Do(func() {
		instance, loadErr = Load()
	})
	return instance, loadErr
}

// Load reads .env (when present) and the environment into a validated Config.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	// Read from environment variables
	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Mode:           v.GetString("SERVER_MODE"),
			ReadTimeout:    v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: stringList(v, "SERVER_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Driver:               strings.ToLower(v.GetString("DB_DRIVER")),
			URL:                  v.GetString("DATABASE_URL"),
			Host:                 v.GetString("DB_HOST"),
			Port:                 v.GetString("DB_PORT"),
			User:                 v.GetString("DB_USER"),
			Password:             v.GetString("DB_PASSWORD"),
			DBName:               v.GetString("DB_NAME"),
			SSLMode:              v.GetString("DB_SSLMODE"),
			Schema:               v.GetString("DB_SCHEMA"),
			MaxConcurrentQueries: v.GetInt("DB_MAX_CONCURRENT_QUERIES"),
		},
		Forecast: ForecastConfig{
			HorizonDays:     v.GetInt("HORIZON_DAYS"),
			LowThreshold:    v.GetFloat64("LOW_THRESHOLD"),
			MedThreshold:    v.GetFloat64("MED_THRESHOLD"),
			HighThreshold:   v.GetFloat64("HIGH_THRESHOLD"),
			ArtifactPath:    v.GetString("MODEL_ARTIFACT_PATH"),
			ArtifactBackend: strings.ToLower(v.GetString("ARTIFACT_BACKEND")),
			RetrainPolicy:   strings.ToLower(v.GetString("RETRAIN_POLICY")),
			HoldoutFraction: v.GetFloat64("HOLDOUT_FRACTION"),
			HoldoutSeed:     v.GetInt64("HOLDOUT_SEED"),
			Timezone:        v.GetString("FORECAST_TIMEZONE"),
		},
		Source: SourceConfig{
			Kind: strings.ToLower(v.GetString("SOURCE_KIND")),
			Dir:  v.GetString("SOURCE_DIR"),
		},
		Storage: StorageConfig{
			Provider:  strings.ToLower(v.GetString("STORAGE_PROVIDER")),
			Endpoint:  v.GetString("STORAGE_ENDPOINT"),
			AccessKey: v.GetString("STORAGE_ACCESS_KEY"),
			SecretKey: v.GetString("STORAGE_SECRET_KEY"),
			Bucket:    v.GetString("STORAGE_BUCKET"),
			Region:    v.GetString("STORAGE_REGION"),
			UseSSL:    v.GetBool("STORAGE_USE_SSL"),
		},
		Cache: CacheConfig{
			Enabled:          v.GetBool("CACHE_ENABLED"),
			RedisURL:         v.GetString("REDIS_URL"),
			RedisHost:        v.GetString("REDIS_HOST"),
			RedisPort:        v.GetString("REDIS_PORT"),
			RedisPassword:    v.GetString("REDIS_PASSWORD"),
			RedisDB:          v.GetInt("REDIS_DB"),
			AlertsTTLSeconds: v.GetInt("CACHE_ALERTS_TTL_SECONDS"),
		},
		Drive: DriveConfig{
			FolderID:        v.GetString("DRIVE_FOLDER_ID"),
			CredentialsJSON: v.GetString("GOOGLE_DRIVE_CREDENTIALS_JSON"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: strings.ToLower(v.GetString("LOG_FORMAT")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_MODE", "debug")
	v.SetDefault("SERVER_READ_TIMEOUT", 30)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 120)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", "*")

	v.SetDefault("DB_DRIVER", "pgx")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "retail")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_SCHEMA", "")
	v.SetDefault("DB_MAX_CONCURRENT_QUERIES", 4)

	v.SetDefault("HORIZON_DAYS", 7)
	v.SetDefault("LOW_THRESHOLD", 0)
	v.SetDefault("MED_THRESHOLD", 5)
	v.SetDefault("HIGH_THRESHOLD", 10)
	v.SetDefault("MODEL_ARTIFACT_PATH", "sales_predictor.json")
	v.SetDefault("ARTIFACT_BACKEND", "file")
	v.SetDefault("RETRAIN_POLICY", "reuse")
	v.SetDefault("HOLDOUT_FRACTION", 0.25)
	v.SetDefault("HOLDOUT_SEED", 42)
	v.SetDefault("FORECAST_TIMEZONE", "Local")

	v.SetDefault("SOURCE_KIND", "sql")
	v.SetDefault("SOURCE_DIR", "./data/sources")

	v.SetDefault("STORAGE_PROVIDER", "minio")
	v.SetDefault("STORAGE_REGION", "us-east-1")
	v.SetDefault("STORAGE_USE_SSL", true)

	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_ALERTS_TTL_SECONDS", 300)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
}

// Validate checks struct tags and the cross-section rules tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Forecast.ArtifactBackend == "s3" && c.Storage.Bucket == "" {
		return fmt.Errorf("invalid configuration: STORAGE_BUCKET is required when ARTIFACT_BACKEND=s3")
	}
	if _, err := time.LoadLocation(c.Forecast.Timezone); err != nil {
		return fmt.Errorf("invalid configuration: FORECAST_TIMEZONE: %w", err)
	}
	if c.Source.Kind == "file" && c.Source.Dir == "" {
		return fmt.Errorf("invalid configuration: SOURCE_DIR is required when SOURCE_KIND=file")
	}
	return nil
}

// Location resolves the calendar used to pick the first horizon day.
func (f ForecastConfig) Location() *time.Location {
	loc, err := time.LoadLocation(f.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// PostgresDSN builds a lib/pq style connection string unless DATABASE_URL is set.
func (d DatabaseConfig) PostgresDSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// stringList accepts a comma separated env value or a native slice.
func stringList(v *viper.Viper, key string) []string {
	raw := v.GetStringSlice(key)
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
