package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// AppConfig holds the full service configuration, merged from defaults, an
// optional YAML file, and ZONEPUB_-prefixed environment variables.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	// LogLevel controls log verbosity: "debug", "info", "warn", or "error".
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`

	Database DatabaseConfig `koanf:"database"`
	Queue    QueueConfig    `koanf:"queue"`
	Publish  PublishConfig  `koanf:"publish"`
	TTL      TTLConfig      `koanf:"ttl"`

	// Writers maps writer names (referenced by zone configuration) to their
	// backend settings.
	Writers map[string]WriterConfig `koanf:"writers" validate:"omitempty,dive"`
}

// DatabaseConfig selects the registry database backend.
type DatabaseConfig struct {
	Dialect string `koanf:"dialect" validate:"required,oneof=sqlite mysql"`
	DSN     string `koanf:"dsn" validate:"required"`

	// Seed optionally names a YAML fixture loaded into the registry at
	// startup, for dev and test bootstrap.
	Seed string `koanf:"seed"`
}

// QueueConfig controls the durable refresh queue and its dispatch loop.
type QueueConfig struct {
	// Path is the bbolt database file backing the queue.
	Path string `koanf:"path" validate:"required"`

	// PollInterval is how long the dispatcher sleeps when the queue is empty.
	PollInterval time.Duration `koanf:"poll_interval" validate:"required"`

	// LeaseDuration is how long a leased request stays invisible before it
	// is handed out again.
	LeaseDuration time.Duration `koanf:"lease_duration" validate:"required"`

	// LeaseBatch caps how many requests one poll leases from the queue.
	LeaseBatch int `koanf:"lease_batch" validate:"required,gte=1"`

	// PublishBatch caps how many names go into a single publish batch.
	PublishBatch int `koanf:"publish_batch" validate:"required,gte=1"`
}

// PublishConfig bounds one publish attempt.
type PublishConfig struct {
	// LockTimeout is the longest a publish waits for its zone lock.
	LockTimeout time.Duration `koanf:"lock_timeout" validate:"required"`

	// RetryAttempts is the total number of reconcile attempts per commit,
	// including the first.
	RetryAttempts int `koanf:"retry_attempts" validate:"required,gte=1"`
}

// TTLConfig sets per-record-type default TTLs in seconds. Zones may override
// them individually in the registry.
type TTLConfig struct {
	NS   uint32 `koanf:"ns" validate:"required,gte=1"`
	DS   uint32 `koanf:"ds" validate:"required,gte=1"`
	Glue uint32 `koanf:"glue" validate:"required,gte=1"`
}

// WriterConfig configures one named DNS backend.
type WriterConfig struct {
	// Kind selects the backend implementation.
	Kind string `koanf:"kind" validate:"required,oneof=route53 cloudflare dnsupdate void"`

	// QPS rate-limits provider API calls for this writer. Zero means no
	// limit.
	QPS float64 `koanf:"qps" validate:"gte=0"`

	// Workers sizes the concurrent lookup pool. Zero falls back to 1.
	Workers int `koanf:"workers" validate:"gte=0"`

	// Token authenticates cloudflare writers.
	Token string `koanf:"token"`

	// Region overrides the AWS region for route53 writers.
	Region string `koanf:"region"`

	// Server is the primary nameserver in ip:port form for dnsupdate
	// writers.
	Server string `koanf:"server" validate:"omitempty,ip_port"`

	TSIG TSIGConfig `koanf:"tsig"`
}

// TSIGConfig holds the transaction signature key for dnsupdate writers. An
// empty key name disables signing.
type TSIGConfig struct {
	KeyName   string `koanf:"key_name"`
	Secret    string `koanf:"secret"`
	Algorithm string `koanf:"algorithm"`
}

// DEFAULT_APP_CONFIG defines the default service configuration. TTLs follow
// common TLD registry practice: two-day delegation NS and glue, one-day DS.
var DEFAULT_APP_CONFIG = AppConfig{
	Env:      "prod",
	LogLevel: "info",
	Database: DatabaseConfig{
		Dialect: "sqlite",
		DSN:     "/var/lib/zonepub/registry.db",
	},
	Queue: QueueConfig{
		Path:          "/var/lib/zonepub/queue.db",
		PollInterval:  1 * time.Second,
		LeaseDuration: 5 * time.Minute,
		LeaseBatch:    100,
		PublishBatch:  100,
	},
	Publish: PublishConfig{
		LockTimeout:   2 * time.Minute,
		RetryAttempts: 3,
	},
	TTL: TTLConfig{
		NS:   172800,
		DS:   86400,
		Glue: 172800,
	},
}

// validIPPort validates whether the provided field value is a valid IP address and port combination.
// It expects the value to be in the format "IP:Port". The function returns true if the IP address
// is valid and both the IP and port are non-empty; otherwise, it returns false.
func validIPPort(fl validator.FieldLevel) bool {
	addr := fl.Field().String()
	ip, port, err := net.SplitHostPort(addr)
	if err != nil || ip == "" || port == "" {
		return false
	}
	if net.ParseIP(ip) == nil {
		return false
	}
	portNum, err := strconv.ParseUint(port, 10, 16)
	return err == nil && portNum > 0 && portNum < 65536
}

// envLoader loads environment variables with the prefix "ZONEPUB_". Keys are
// lowercased, the prefix is stripped, and a double underscore nests one
// level, so ZONEPUB_DATABASE__DSN sets database.dsn. It can be swapped in
// tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: "ZONEPUB_",
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, "ZONEPUB_"))
			key = strings.ReplaceAll(key, "__", ".")
			value = strings.TrimSpace(value)

			if value == "" {
				return key, value
			}

			if strings.Contains(value, " ") || strings.Contains(value, ",") {
				parts := strings.FieldsFunc(value, func(r rune) bool {
					return r == ' ' || r == ','
				})
				return key, parts
			}

			return key, value
		},
	}), nil)
}

// fileLoader loads the YAML configuration file at path into the provided
// Koanf instance. It can be swapped in tests.
var fileLoader = func(k *koanf.Koanf, path string) error {
	return k.Load(file.Provider(path), yaml.Parser())
}

// defaultLoader loads default configuration values into the provided Koanf
// instance using the structs provider and DEFAULT_APP_CONFIG.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// registerValidation registers the custom "ip_port" validation used for
// dnsupdate server addresses.
var registerValidation = func(v *validator.Validate) error {
	return v.RegisterValidation("ip_port", validIPPort)
}

// Load builds an AppConfig from defaults, the optional YAML file at path
// (skipped when path is empty), and ZONEPUB_-prefixed environment variables,
// then validates the result.
func Load(path string) (*AppConfig, error) {
	k := koanf.New(".")

	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	if path != "" {
		if err := fileLoader(k, path); err != nil {
			return nil, fmt.Errorf("error loading config file %s: %w", path, err)
		}
	}

	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := registerValidation(validate); err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	for name, w := range cfg.Writers {
		if err := validateWriter(name, w); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

// validateWriter enforces the per-kind required fields that struct tags
// cannot express.
func validateWriter(name string, w WriterConfig) error {
	switch w.Kind {
	case "cloudflare":
		if w.Token == "" {
			return fmt.Errorf("writer %s: cloudflare writers require a token", name)
		}
	case "dnsupdate":
		if w.Server == "" {
			return fmt.Errorf("writer %s: dnsupdate writers require a server address", name)
		}
		if w.TSIG.KeyName != "" && w.TSIG.Secret == "" {
			return fmt.Errorf("writer %s: tsig key %s has no secret", name, w.TSIG.KeyName)
		}
	}
	return nil
}
