// Package config loads and validates the NOMAD core's static configuration
// (spec §6.3), following the teacher's layered-precedence pattern: CLI
// flags > environment variables (NOMAD_*) > config file > defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config is the NOMAD core's static configuration.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging,omitempty" validate:"required"`

	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry,omitempty"`

	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout,omitempty" validate:"required,gt=0"`

	FileStore FileStoreConfig `mapstructure:"filestore" yaml:"filestore,omitempty" validate:"required"`

	Matcher MatcherConfig `mapstructure:"matcher" yaml:"matcher,omitempty"`

	Reprocess ReprocessConfig `mapstructure:"reprocess" yaml:"reprocess,omitempty"`

	BundleImport BundleImportConfig `mapstructure:"bundle_import" yaml:"bundle_import,omitempty"`

	Database DatabaseConfig `mapstructure:"database" yaml:"database,omitempty" validate:"required"`

	Search SearchConfig `mapstructure:"search" yaml:"search,omitempty"`

	HTTP HTTPConfig `mapstructure:"http" yaml:"http,omitempty"`

	UploadLimit int `mapstructure:"upload_limit" yaml:"upload_limit,omitempty" validate:"gte=0"`

	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics,omitempty"`

	Scheduler SchedulerConfig `mapstructure:"scheduler" yaml:"scheduler,omitempty"`
}

// SchedulerConfig configures the worker pool and durable job queue (C5).
type SchedulerConfig struct {
	WorkerCount   int           `mapstructure:"worker_count" yaml:"worker_count,omitempty" validate:"gte=0"`
	QueuePath     string        `mapstructure:"queue_path" yaml:"queue_path,omitempty"`
	PollInterval  time.Duration `mapstructure:"poll_interval" yaml:"poll_interval,omitempty"`
	ResurrectAge  time.Duration `mapstructure:"resurrect_age" yaml:"resurrect_age,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level,omitempty" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	Format string `mapstructure:"format" yaml:"format,omitempty" validate:"required,oneof=text json"`
	Output string `mapstructure:"output" yaml:"output,omitempty" validate:"required"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	Enabled    bool    `mapstructure:"enabled" yaml:"enabled,omitempty"`
	Endpoint   string  `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	Insecure   bool    `mapstructure:"insecure" yaml:"insecure,omitempty"`
	SampleRate float64 `mapstructure:"sample_rate" yaml:"sample_rate,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// FileStoreConfig configures the on-disk/object-store layout (§6.3, §4.1).
type FileStoreConfig struct {
	// StagingRoot/PublicRoot/TmpRoot are local filesystem roots. PublicURI
	// is loaded but not read by wire.Build: the public area is always
	// PublicRoot on local disk.
	StagingRoot string `mapstructure:"staging_root" yaml:"staging_root,omitempty" validate:"required"`
	PublicRoot  string `mapstructure:"public_root" yaml:"public_root,omitempty" validate:"required"`
	TmpRoot     string `mapstructure:"tmp_root" yaml:"tmp_root,omitempty" validate:"required"`
	PublicURI   string `mapstructure:"public_uri" yaml:"public_uri,omitempty"`

	PrefixSize           int    `mapstructure:"prefix_size" yaml:"prefix_size,omitempty" validate:"gte=0,lte=8"`
	ArchiveVersionSuffix string `mapstructure:"archive_version_suffix" yaml:"archive_version_suffix,omitempty"`
	AuxfileCutoff        int    `mapstructure:"auxfile_cutoff" yaml:"auxfile_cutoff,omitempty" validate:"gte=1"`

	S3 S3Config `mapstructure:"s3" yaml:"s3,omitempty"`
}

// S3Config configures the optional S3-backed public-area blob store.
type S3Config struct {
	Bucket         string `mapstructure:"bucket" yaml:"bucket,omitempty"`
	Region         string `mapstructure:"region" yaml:"region,omitempty"`
	Endpoint       string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	KeyPrefix      string `mapstructure:"key_prefix" yaml:"key_prefix,omitempty"`
	ForcePathStyle bool   `mapstructure:"force_path_style" yaml:"force_path_style,omitempty"`

	// AccessKeyID/SecretAccessKey set static credentials for S3-compatible
	// endpoints (e.g. MinIO) that don't participate in the ambient AWS
	// credential chain. Leave both empty to use that chain instead.
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`
}

// MatcherConfig configures file-type matching (§4.4, §6.3).
type MatcherConfig struct {
	ParserMatchingSize   int  `mapstructure:"parser_matching_size" yaml:"parser_matching_size,omitempty" validate:"gte=1"`
	ForceRawFileDecoding bool `mapstructure:"force_raw_file_decoding" yaml:"force_raw_file_decoding,omitempty"`
}

// ReprocessConfig controls reprocess policy (§6.3).
type ReprocessConfig struct {
	ReparseIfParserUnchanged       bool `mapstructure:"reparse_if_parser_unchanged" yaml:"reparse_if_parser_unchanged,omitempty"`
	ReparseIfParserChanged         bool `mapstructure:"reparse_if_parser_changed" yaml:"reparse_if_parser_changed,omitempty"`
	DeleteUnmatchedPublishedEntries bool `mapstructure:"delete_unmatched_published_entries" yaml:"delete_unmatched_published_entries,omitempty"`
	AddNewfoundEntriesToPublished  bool `mapstructure:"add_newfound_entries_to_published" yaml:"add_newfound_entries_to_published,omitempty"`
}

// BundleImportConfig gates bundle import (§6.3, §4.2).
type BundleImportConfig struct {
	RequiredNomadVersion           string `mapstructure:"required_nomad_version" yaml:"required_nomad_version,omitempty"`
	AllowBundlesFromOasis          bool   `mapstructure:"allow_bundles_from_oasis" yaml:"allow_bundles_from_oasis,omitempty"`
	AllowUnpublishedBundlesFromOasis bool `mapstructure:"allow_unpublished_bundles_from_oasis" yaml:"allow_unpublished_bundles_from_oasis,omitempty"`
	DeleteUploadOnFail             bool   `mapstructure:"delete_upload_on_fail" yaml:"delete_upload_on_fail,omitempty"`
	KeepOriginalTimestamps         bool   `mapstructure:"keep_original_timestamps" yaml:"keep_original_timestamps,omitempty"`
}

// DatabaseType selects the state-store backend.
type DatabaseType string

const (
	DatabaseTypeSQLite   DatabaseType = "sqlite"
	DatabaseTypePostgres DatabaseType = "postgres"
)

// DatabaseConfig configures the StateStore backend (C3).
type DatabaseConfig struct {
	Type     DatabaseType   `mapstructure:"type" yaml:"type,omitempty" validate:"required,oneof=sqlite postgres"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite" yaml:"sqlite,omitempty"`
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres,omitempty"`
}

// SQLiteConfig is used for local/dev/test deployments.
type SQLiteConfig struct {
	Path string `mapstructure:"path" yaml:"path,omitempty"`
}

// PostgresConfig is used for production deployments.
type PostgresConfig struct {
	Host         string `mapstructure:"host" yaml:"host,omitempty"`
	Port         int    `mapstructure:"port" yaml:"port,omitempty"`
	Database     string `mapstructure:"database" yaml:"database,omitempty"`
	User         string `mapstructure:"user" yaml:"user,omitempty"`
	Password     string `mapstructure:"password" yaml:"password,omitempty"`
	SSLMode      string `mapstructure:"ssl_mode" yaml:"ssl_mode,omitempty"`
	MaxOpenConns int    `mapstructure:"max_open_conns" yaml:"max_open_conns,omitempty"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" yaml:"max_idle_conns,omitempty"`
}

// DSN returns the PostgreSQL connection string.
func (c *PostgresConfig) DSN() string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
		c.Host, c.Port, c.User, c.Password, c.Database)
	if c.SSLMode != "" {
		dsn += fmt.Sprintf(" sslmode=%s", c.SSLMode)
	}
	return dsn
}

// SearchConfig configures the SearchGateway adapter (C8).
type SearchConfig struct {
	IndexPath string `mapstructure:"index_path" yaml:"index_path,omitempty"`
}

// HTTPConfig configures the thin HTTP adapter (pkg/httpapi).
type HTTPConfig struct {
	Addr      string `mapstructure:"addr" yaml:"addr,omitempty"`
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret,omitempty"`
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled,omitempty"`
	Addr    string `mapstructure:"addr" yaml:"addr,omitempty"`
}

// ApplyDefaults fills in zero-valued fields with NOMAD's defaults, mirroring
// the teacher's ApplyDefaults pattern in pkg/controlplane/store.
func (c *Config) ApplyDefaults() {
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
	if c.FileStore.ArchiveVersionSuffix == "" {
		c.FileStore.ArchiveVersionSuffix = "v1"
	}
	if c.FileStore.AuxfileCutoff == 0 {
		c.FileStore.AuxfileCutoff = 100
	}
	if c.Matcher.ParserMatchingSize == 0 {
		c.Matcher.ParserMatchingSize = 16 * 1024
	}
	if c.Database.Type == "" {
		c.Database.Type = DatabaseTypeSQLite
	}
	if c.Database.Type == DatabaseTypePostgres {
		if c.Database.Postgres.Port == 0 {
			c.Database.Postgres.Port = 5432
		}
		if c.Database.Postgres.SSLMode == "" {
			c.Database.Postgres.SSLMode = "disable"
		}
		if c.Database.Postgres.MaxOpenConns == 0 {
			c.Database.Postgres.MaxOpenConns = 25
		}
		if c.Database.Postgres.MaxIdleConns == 0 {
			c.Database.Postgres.MaxIdleConns = 5
		}
	}
	if c.UploadLimit == 0 {
		c.UploadLimit = 10
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "INFO"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.Scheduler.WorkerCount == 0 {
		c.Scheduler.WorkerCount = 4
	}
	if c.Scheduler.QueuePath == "" {
		c.Scheduler.QueuePath = "./data/queue"
	}
	if c.Scheduler.PollInterval == 0 {
		c.Scheduler.PollInterval = time.Second
	}
	if c.Scheduler.ResurrectAge == 0 {
		c.Scheduler.ResurrectAge = 5 * time.Minute
	}
}

// Load reads configuration from the given file path (if non-empty), layered
// with NOMAD_-prefixed environment variables, applies defaults, and
// validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NOMAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %q: %w", path, err)
		}
	}

	var cfg Config
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook)); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}
