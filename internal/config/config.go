package config

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"

	"github.com/icumetrics/sofa/internal/sofa"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`

	AuthSecret string `mapstructure:"AUTH_SECRET"`

	MigrationsDir string `mapstructure:"MIGRATIONS_DIR"`

	ScoreWorkers            int `mapstructure:"SCORE_WORKERS"`
	WindowDurationHours     int `mapstructure:"WINDOW_DURATION_HOURS"`
	MaxWindowsPerStay       int `mapstructure:"MAX_WINDOWS_PER_STAY"`
	LOCFMaxLookbackHours    int `mapstructure:"LOCF_MAX_LOOKBACK_HOURS"`
	PopulationMinSampleSize int `mapstructure:"POPULATION_MIN_SAMPLE_SIZE"`
	MaxMissingOrgans        int `mapstructure:"MAX_MISSING_ORGANS"`

	MinStayHours float64 `mapstructure:"MIN_STAY_HOURS"`
	MaxStayHours float64 `mapstructure:"MAX_STAY_HOURS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MIGRATIONS_DIR", "migrations")
	v.SetDefault("SCORE_WORKERS", 4)
	v.SetDefault("WINDOW_DURATION_HOURS", 24)
	v.SetDefault("MAX_WINDOWS_PER_STAY", 30)
	v.SetDefault("LOCF_MAX_LOOKBACK_HOURS", 48)
	v.SetDefault("POPULATION_MIN_SAMPLE_SIZE", 10)
	v.SetDefault("MAX_MISSING_ORGANS", 5)
	v.SetDefault("MIN_STAY_HOURS", 6)
	v.SetDefault("MAX_STAY_HOURS", 2400)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("LOG_LEVEL")
	v.BindEnv("AUTH_SECRET")
	v.BindEnv("MIGRATIONS_DIR")
	v.BindEnv("SCORE_WORKERS")
	v.BindEnv("WINDOW_DURATION_HOURS")
	v.BindEnv("MAX_WINDOWS_PER_STAY")
	v.BindEnv("LOCF_MAX_LOOKBACK_HOURS")
	v.BindEnv("POPULATION_MIN_SAMPLE_SIZE")
	v.BindEnv("MAX_MISSING_ORGANS")
	v.BindEnv("MIN_STAY_HOURS")
	v.BindEnv("MAX_STAY_HOURS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: Authentication is bypassed. Do NOT use in production.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Production
// requires a signing secret for the read API, and the scoring knobs
// must stay in ranges where the pipeline semantics hold.
func (c *Config) Validate() error {
	if c.IsProduction() && c.AuthSecret == "" {
		return fmt.Errorf("AUTH_SECRET is required in production")
	}
	if c.WindowDurationHours <= 0 {
		return fmt.Errorf("WINDOW_DURATION_HOURS must be positive, got %d", c.WindowDurationHours)
	}
	if c.MaxWindowsPerStay <= 0 {
		return fmt.Errorf("MAX_WINDOWS_PER_STAY must be positive, got %d", c.MaxWindowsPerStay)
	}
	if c.LOCFMaxLookbackHours < 0 {
		return fmt.Errorf("LOCF_MAX_LOOKBACK_HOURS must not be negative, got %d", c.LOCFMaxLookbackHours)
	}
	if c.PopulationMinSampleSize < 1 {
		return fmt.Errorf("POPULATION_MIN_SAMPLE_SIZE must be at least 1, got %d", c.PopulationMinSampleSize)
	}
	if c.MaxMissingOrgans < 0 || c.MaxMissingOrgans > 5 {
		return fmt.Errorf("MAX_MISSING_ORGANS must be between 0 and 5, got %d", c.MaxMissingOrgans)
	}
	if c.MinStayHours < 0 || c.MaxStayHours < c.MinStayHours {
		return fmt.Errorf("stay duration bounds invalid: min %g, max %g", c.MinStayHours, c.MaxStayHours)
	}
	return nil
}

// Profile applies the configured knobs on top of the named scoring
// profile. Unknown identifiers fall back to the primary worst-value
// profile.
func (c *Config) Profile(configID string) sofa.Profile {
	p := sofa.DefaultProfile()
	if configID == sofa.MedianProfile().ConfigID {
		p = sofa.MedianProfile()
	}
	p.WindowDuration = time.Duration(c.WindowDurationHours) * time.Hour
	p.MaxWindows = c.MaxWindowsPerStay
	p.LOCFMaxLook = time.Duration(c.LOCFMaxLookbackHours) * time.Hour
	p.PopMinSample = c.PopulationMinSampleSize
	p.MaxMissingOrgans = c.MaxMissingOrgans
	return p
}
