// Package config assembles the service configuration from (in increasing
// priority) built-in defaults, a JSON config file, environment variables,
// and command-line flags.
package config

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all runtime settings of the photoapp service.
type Config struct {
	RunAddr             string        `env:"SERVER_ADDRESS" json:"server_address" validate:"hostname_port"`
	LogLevel            string        `env:"LOG_LEVEL" json:"log_level" validate:"loglevel"`
	DBFileName          string        `env:"FILE_STORAGE_PATH" json:"file_storage_path" validate:"filepath"`
	DatabaseDSN         string        `env:"DATABASE_DSN" json:"database_dsn"`
	DBConnectionTimeout time.Duration `env:"DB_CONNECTION_TIMEOUT" json:"db_connection_timeout"`
	MigrationsDir       string        `env:"MIGRATIONS_DIR" json:"migrations_dir"`

	AuthCookieName            string        `env:"AUTH_COOKIE_NAME" json:"auth_cookie_name"`
	AuthTokenSigningSecretKey string        `env:"AUTH_TOKEN_SIGNING_SECRET_KEY" json:"auth_token_signing_secret_key"`
	AuthTokenTTL              time.Duration `env:"AUTH_TOKEN_TTL" json:"auth_token_ttl"`

	S3Endpoint  string `env:"S3_ENDPOINT" json:"s3_endpoint"`
	S3AccessKey string `env:"S3_ACCESS_KEY" json:"s3_access_key"`
	S3SecretKey string `env:"S3_SECRET_KEY" json:"s3_secret_key"`
	S3Bucket    string `env:"S3_BUCKET" json:"s3_bucket"`
	S3UseSSL    bool   `env:"S3_USE_SSL" json:"s3_use_ssl"`

	BlobStorePath string `env:"BLOB_STORE_PATH" json:"blob_store_path" validate:"filepath"`

	RedisAddr     string        `env:"REDIS_ADDR" json:"redis_addr"`
	RedisPassword string        `env:"REDIS_PASSWORD" json:"redis_password"`
	RedisDB       int           `env:"REDIS_DB" json:"redis_db"`
	AssetCacheTTL time.Duration `env:"ASSET_CACHE_TTL" json:"asset_cache_ttl"`

	TrustedSubnet string `env:"TRUSTED_SUBNET" json:"trusted_subnet" validate:"omitempty,cidr"`

	ChannelCapacity          int           `env:"CHANNEL_CAPACITY" json:"channel_capacity"`
	DelayBetweenQueueFetches time.Duration `env:"DELAY_BETWEEN_QUEUE_FETCHES" json:"delay_between_queue_fetches"`
}

var defaultConfig = Config{
	RunAddr:                   ":8080",
	LogLevel:                  "info",
	DBFileName:                "",
	DatabaseDSN:               "",
	DBConnectionTimeout:       10 * time.Second,
	MigrationsDir:             "migrations",
	AuthCookieName:            "photoapp_auth",
	AuthTokenSigningSecretKey: "cGhvdG9hcHAtZGV2LW9ubHktc2lnbmluZy1rZXk=",
	AuthTokenTTL:              12 * time.Hour,
	S3Bucket:                  "photoapp",
	BlobStorePath:             "blobs",
	AssetCacheTTL:             5 * time.Minute,
	ChannelCapacity:           64,
	DelayBetweenQueueFetches:  5 * time.Second,
}

// InitOption defines a functional option for configuring New.
type InitOption func(*initOptions)

type initOptions struct {
	disableFlagsParsing bool
}

// WithDisableFlagsParsing disables command-line flag parsing;
// used by tests that manage os.Args themselves.
func WithDisableFlagsParsing(disableFlagsParsing bool) InitOption {
	return func(options *initOptions) {
		options.disableFlagsParsing = disableFlagsParsing
	}
}

// New builds the configuration with CLI > ENV > JSON file > defaults priority.
func New(optionsProto ...InitOption) (*Config, error) {
	options := &initOptions{
		disableFlagsParsing: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	if err := godotenv.Load(); err != nil {
		log.Printf("Unable to load .env file: %v", err)
	}

	values := Config{}
	applyDefaults(&values, defaultConfig)

	if err := applyJSONConfigFile(&values); err != nil {
		return nil, err
	}

	// caarlos0/env leaves fields whose variable is unset untouched,
	// which gives the overlay semantics for free.
	if err := env.Parse(&values); err != nil {
		return nil, err
	}

	if !options.disableFlagsParsing {
		if err := parseFlags(&values); err != nil {
			return nil, err
		}
	}

	if err := validate(&values); err != nil {
		return nil, err
	}

	return &values, nil
}

func applyDefaults(values *Config, defaults Config) {
	*values = defaults
}

func applyJSONConfigFile(values *Config) error {
	configFileName := os.Getenv("CONFIG")
	if configFileName == "" {
		configFileName = scanArgsForConfigFile(os.Args[1:])
	}
	if configFileName == "" {
		return nil
	}

	data, err := os.ReadFile(configFileName)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, values)
}

// scanArgsForConfigFile looks for the -c/-config flag before the regular
// flag parsing, because the config file has to be read first.
func scanArgsForConfigFile(args []string) string {
	for i, arg := range args {
		switch arg {
		case "-c", "-config", "--config":
			if i+1 < len(args) {
				return args[i+1]
			}
		}
	}

	return ""
}

func parseFlags(values *Config) error {
	flags := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)

	flags.StringVar(&values.RunAddr, "a", values.RunAddr, "address and port to run server")
	flags.StringVar(&values.LogLevel, "l", values.LogLevel, "logger level")
	flags.StringVar(&values.DBFileName, "f", values.DBFileName, "JSON file name with the metadata database")
	flags.StringVar(&values.DatabaseDSN, "d", values.DatabaseDSN, "a string with the database connection details")
	flags.StringVar(&values.BlobStorePath, "b", values.BlobStorePath, "directory of the local blob store")
	flags.StringVar(&values.S3Endpoint, "e", values.S3Endpoint, "S3-compatible object store endpoint")
	flags.StringVar(&values.S3Bucket, "u", values.S3Bucket, "object store bucket name")
	flags.StringVar(&values.RedisAddr, "r", values.RedisAddr, "redis address for the asset cache")
	flags.StringVar(&values.TrustedSubnet, "t", values.TrustedSubnet, "trusted subnet for the internal stats endpoint in CIDR notation")
	flags.String("c", "", "name of the JSON config file")

	return flags.Parse(os.Args[1:])
}

func validateFilePath(fieldLevel validator.FieldLevel) bool {
	path := fieldLevel.Field().String()
	if path == "" {
		return true
	}
	_, err := os.Stat(path)

	return err == nil || os.IsNotExist(err)
}

func validateLogLevel(fieldLevel validator.FieldLevel) bool {
	value := fieldLevel.Field().String()

	allowedLogLevels := map[string]bool{
		"debug":   true,
		"info":    true,
		"warning": true,
		"error":   true,
		"fatal":   true,
	}

	return allowedLogLevels[value]
}

func validate(values *Config) error {
	validate := validator.New()

	if err := validate.RegisterValidation("loglevel", validateLogLevel); err != nil {
		return err
	}

	if err := validate.RegisterValidation("filepath", validateFilePath); err != nil {
		return err
	}

	return validate.Struct(values)
}
