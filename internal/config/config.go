package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Detector DetectorConfig `mapstructure:"detector"`
	Tracker  TrackerConfig  `mapstructure:"tracker"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver      string `mapstructure:"driver"`
	Path        string `mapstructure:"path"`
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	Name        string `mapstructure:"name"`
	SSLMode     string `mapstructure:"ssl_mode"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`

	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN builds the driver-specific connection string.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
	}
	return c.Path
}

type StorageConfig struct {
	// Archive enables uploading completed-job artifacts to object storage.
	Archive   bool   `mapstructure:"archive"`
	Type      string `mapstructure:"type"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
}

type DetectorConfig struct {
	// Provider selects the detector implementation: "dnn" or "remote".
	Provider string `mapstructure:"provider"`

	// DNN provider settings.
	ModelPath  string  `mapstructure:"model_path"`
	ConfigPath string  `mapstructure:"config_path"`
	InputSize  int     `mapstructure:"input_size"`
	Confidence float64 `mapstructure:"confidence"`

	// Remote provider settings.
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type TrackerConfig struct {
	ConfirmHits          int     `mapstructure:"confirm_hits"`
	MissesToLost         int     `mapstructure:"misses_to_lost"`
	MissesToTerminate    int     `mapstructure:"misses_to_terminate"`
	TentativeMisses      int     `mapstructure:"tentative_misses"`
	MaxCost              float64 `mapstructure:"max_cost"`
	ClassMismatchPenalty float64 `mapstructure:"class_mismatch_penalty"`
}

type PipelineConfig struct {
	Workers      int    `mapstructure:"workers"`
	UploadDir    string `mapstructure:"upload_dir"`
	ResultsDir   string `mapstructure:"results_dir"`
	FrameTimeout int    `mapstructure:"frame_timeout_seconds"`
	AnnotateOut  bool   `mapstructure:"annotate_output"`
}

// FrameTimeoutDuration returns the per-frame stall timeout, 0 when disabled.
func (c *PipelineConfig) FrameTimeoutDuration() time.Duration {
	return time.Duration(c.FrameTimeout) * time.Second
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/jobs.db")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("storage.archive", false)
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.bucket", "animal-counter")
	v.SetDefault("detector.provider", "dnn")
	v.SetDefault("detector.model_path", "./models/frozen_inference_graph.pb")
	v.SetDefault("detector.config_path", "./models/ssd_mobilenet_v2_coco.pbtxt")
	v.SetDefault("detector.input_size", 300)
	v.SetDefault("detector.confidence", 0.5)
	v.SetDefault("detector.timeout_seconds", 30)
	v.SetDefault("tracker.confirm_hits", 2)
	v.SetDefault("tracker.misses_to_lost", 3)
	v.SetDefault("tracker.misses_to_terminate", 30)
	v.SetDefault("tracker.tentative_misses", 1)
	v.SetDefault("tracker.max_cost", 0.7)
	v.SetDefault("tracker.class_mismatch_penalty", 0.2)
	v.SetDefault("pipeline.workers", 2)
	v.SetDefault("pipeline.upload_dir", "./data/uploads")
	v.SetDefault("pipeline.results_dir", "./data/results")
	v.SetDefault("pipeline.frame_timeout_seconds", 60)
	v.SetDefault("pipeline.annotate_output", true)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.name", "DB_NAME")
	v.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	v.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "STORAGE_SECRET_KEY")
	v.BindEnv("detector.base_url", "DETECTOR_BASE_URL")
	v.BindEnv("detector.api_key", "DETECTOR_API_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
