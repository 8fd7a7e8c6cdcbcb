package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Bounds struct {
	Top    float64 `yaml:"top"`
	Bottom float64 `yaml:"bottom"`
	Left   float64 `yaml:"left"`
	Right  float64 `yaml:"right"`
}

type CommonHTTP struct {
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
	Referer   string        `yaml:"referer"`
}

type FeedConfig struct {
	Type   string     `yaml:"type"` // only "georss"
	URL    string     `yaml:"url"`
	Env    string     `yaml:"env"`   // region/environment tag, e.g. row
	Types  string     `yaml:"types"` // alerts,traffic
	Bounds Bounds     `yaml:"bounds"`
	HTTP   CommonHTTP `yaml:"http"`
}

type HarvestConfig struct {
	Target    int           `yaml:"target"`     // corpus size that ends the run
	Interval  time.Duration `yaml:"interval"`   // wait between polls
	StatePath string        `yaml:"state_path"` // persisted snapshot
}

type UploadConfig struct {
	Attempts     int           `yaml:"attempts"`
	Delay        time.Duration `yaml:"delay"`         // fixed wait between attempts
	InitialDelay time.Duration `yaml:"initial_delay"` // grace period before the first attempt
}

type StorageConfig struct {
	URL       string        `yaml:"url"` // http://storage:5000/events
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

type KafkaConfig struct {
	Brokers   []string      `yaml:"brokers"` // empty disables the sink
	Topic     string        `yaml:"topic"`
	BatchSize int           `yaml:"batch_size"`
	Timeout   time.Duration `yaml:"timeout"`
}

type PostgresConfig struct {
	DSN       string `yaml:"dsn"` // empty disables the sink
	BatchSize int    `yaml:"batch_size"`
}

type LokiConfig struct {
	URL       string        `yaml:"url"`       // http://loki:3100, empty disables the sink
	TenantID  string        `yaml:"tenant_id"` // optional multi-tenancy
	Job       string        `yaml:"job"`
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

type ServerConfig struct {
	Enable        bool          `yaml:"enable"`
	ListenAddress string        `yaml:"listen_address"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // json|console
}

type Config struct {
	Feed     FeedConfig     `yaml:"feed"`
	Harvest  HarvestConfig  `yaml:"harvest"`
	Upload   UploadConfig   `yaml:"upload"`
	Storage  StorageConfig  `yaml:"storage"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Postgres PostgresConfig `yaml:"postgres"`
	Loki     LokiConfig     `yaml:"loki"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

const (
	DefaultFeedURL   = "https://www.waze.com/live-map/api/georss"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36"
	DefaultReferer   = "https://www.waze.com/live-map"
)

// Default returns the configuration used when no file overrides a key:
// the Santiago metropolitan bounding box, a 10000 event target polled every
// 30s, and 10 upload attempts 2s apart.
func Default() Config {
	return Config{
		Feed: FeedConfig{
			Type:  "georss",
			URL:   DefaultFeedURL,
			Env:   "row",
			Types: "alerts,traffic",
			Bounds: Bounds{
				Top:    -33.3,
				Bottom: -33.6,
				Left:   -70.85,
				Right:  -70.5,
			},
			HTTP: CommonHTTP{
				Timeout:   15 * time.Second,
				UserAgent: DefaultUserAgent,
				Referer:   DefaultReferer,
			},
		},
		Harvest: HarvestConfig{
			Target:    10000,
			Interval:  30 * time.Second,
			StatePath: "data/eventos.json",
		},
		Upload: UploadConfig{
			Attempts:     10,
			Delay:        2 * time.Second,
			InitialDelay: 10 * time.Second,
		},
		Storage: StorageConfig{
			URL:     "http://storage:5000/events",
			Timeout: 30 * time.Second,
		},
		Kafka: KafkaConfig{
			Topic:     "traffic-events",
			BatchSize: 500,
			Timeout:   10 * time.Second,
		},
		Postgres: PostgresConfig{
			BatchSize: 500,
		},
		Loki: LokiConfig{
			Job:     "traffic-harvester",
			Timeout: 10 * time.Second,
		},
		Server: ServerConfig{
			Enable:        true,
			ListenAddress: ":9110",
			ReadTimeout:   5 * time.Second,
			WriteTimeout:  5 * time.Second,
			IdleTimeout:   60 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads the YAML file at path over Default(), then applies environment
// overrides (a .env file in the working directory is honored). An empty path
// skips the file.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	}
	_ = godotenv.Load()
	if err := applyEnv(&c, os.Getenv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// applyEnv overrides the keys most often changed per deployment.
func applyEnv(c *Config, getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	str("HARVESTER_FEED_URL", &c.Feed.URL)
	str("HARVESTER_STATE_PATH", &c.Harvest.StatePath)
	str("HARVESTER_STORAGE_URL", &c.Storage.URL)
	str("HARVESTER_KAFKA_TOPIC", &c.Kafka.Topic)
	str("HARVESTER_PG_DSN", &c.Postgres.DSN)
	str("HARVESTER_LOKI_URL", &c.Loki.URL)
	str("HARVESTER_LOG_LEVEL", &c.Log.Level)
	if v := strings.TrimSpace(getenv("HARVESTER_KAFKA_BROKERS")); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := strings.TrimSpace(getenv("HARVESTER_TARGET")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HARVESTER_TARGET: %w", err)
		}
		c.Harvest.Target = n
	}
	if v := strings.TrimSpace(getenv("HARVESTER_INTERVAL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("HARVESTER_INTERVAL: %w", err)
		}
		c.Harvest.Interval = d
	}
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Feed.URL) == "" {
		errs = append(errs, errors.New("feed.url is required"))
	}
	if c.Feed.Bounds.Top <= c.Feed.Bounds.Bottom {
		errs = append(errs, fmt.Errorf("feed.bounds: top (%g) must be greater than bottom (%g)", c.Feed.Bounds.Top, c.Feed.Bounds.Bottom))
	}
	if c.Feed.Bounds.Right <= c.Feed.Bounds.Left {
		errs = append(errs, fmt.Errorf("feed.bounds: right (%g) must be greater than left (%g)", c.Feed.Bounds.Right, c.Feed.Bounds.Left))
	}
	if c.Harvest.Target <= 0 {
		errs = append(errs, errors.New("harvest.target must be positive"))
	}
	if c.Harvest.Interval <= 0 {
		errs = append(errs, errors.New("harvest.interval must be positive"))
	}
	if strings.TrimSpace(c.Harvest.StatePath) == "" {
		errs = append(errs, errors.New("harvest.state_path is required"))
	}
	if c.Upload.Attempts <= 0 {
		errs = append(errs, errors.New("upload.attempts must be positive"))
	}
	if c.Upload.Delay < 0 || c.Upload.InitialDelay < 0 {
		errs = append(errs, errors.New("upload delays cannot be negative"))
	}
	if strings.TrimSpace(c.Storage.URL) == "" {
		errs = append(errs, errors.New("storage.url is required"))
	}
	if len(c.Kafka.Brokers) > 0 && strings.TrimSpace(c.Kafka.Topic) == "" {
		errs = append(errs, errors.New("kafka.topic is required when brokers are set"))
	}
	return errors.Join(errs...)
}
