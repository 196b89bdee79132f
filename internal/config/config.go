package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"ForumWatcher/internal/domain"
)

const (
	defaultTimezone = "UTC"
	configPathEnv   = "FORUMWATCHER_CONFIG"

	mongoHostEnv       = "MONGO_HOST"
	mongoURIEnv        = "MONGO_URI"
	sqlitePathEnv      = "SQLITE_PATH"
	redisAddrEnv       = "REDIS_ADDR"
	cfTokenEnv         = "CF_TOKEN"
	cfAccountIDEnv     = "CF_ACCOUNT_ID"
	classifierModelEnv = "CLASSIFIER_MODEL"
	openAIKeyEnv       = "OPENAI_API_KEY"
	googleAPIKeyEnv    = "GOOGLE_API_KEY"
	telegramTokenEnv   = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv  = "TELEGRAM_CHAT_ID"
	amqpURLEnv         = "AMQP_URL"
	logLevelEnv        = "LOG_LEVEL"
	proxyHostEnv       = "PROXY_HOST"
)

// Storage drivers.
const (
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Classifier backends.
const (
	BackendWorkersAI = "workersai"
	BackendOpenAI    = "openai"
	BackendGemini    = "gemini"
	BackendNone      = "none"
)

// Notifier kinds.
const (
	NotifierTelegram = "telegram"
	NotifierAMQP     = "amqp"
	NotifierLog      = "log"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Timezone   string           `yaml:"timezone"`
	Monitor    MonitorConfig    `yaml:"monitor"`
	Storage    StorageConfig    `yaml:"storage"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Notifier   NotifierConfig   `yaml:"notifier"`
	Admin      AdminConfig      `yaml:"admin"`
	Sources    []SourceConfig   `yaml:"sources"`

	location *time.Location
}

// LoggingConfig selects verbosity and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MonitorConfig controls polling and alerting.
type MonitorConfig struct {
	FrequencySeconds       int    `yaml:"frequencySeconds"`
	FreshnessWindowSeconds int    `yaml:"freshnessWindowSeconds"`
	FetchTimeoutSeconds    int    `yaml:"fetchTimeoutSeconds"`
	UserAgent              string `yaml:"userAgent"`
	Proxy                  string `yaml:"proxy"`
	MaxConcurrentSources   int    `yaml:"maxConcurrentSources"`
	TruncateRunes          int    `yaml:"truncateRunes"`
}

// StorageConfig selects and configures the record store.
type StorageConfig struct {
	Driver string       `yaml:"driver"`
	Mongo  MongoConfig  `yaml:"mongo"`
	SQLite SQLiteConfig `yaml:"sqlite"`
	Redis  RedisConfig  `yaml:"redis"`
}

// MongoConfig describes the document store.
type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// SQLiteConfig describes the embedded store.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig describes the key-value store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// ClassifierConfig defines how to contact the hosted model.
type ClassifierConfig struct {
	Backend        string `yaml:"backend"`
	AccountID      string `yaml:"accountId"`
	Token          string `yaml:"token"`
	Model          string `yaml:"model"`
	Endpoint       string `yaml:"endpoint"`
	ThreadPrompt   string `yaml:"threadPrompt"`
	FilterPrompt   string `yaml:"filterPrompt"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
}

// NotifierConfig encapsulates outbound channels.
type NotifierConfig struct {
	Kind           string         `yaml:"kind"`
	TimeoutSeconds int            `yaml:"timeoutSeconds"`
	Telegram       TelegramConfig `yaml:"telegram"`
	AMQP           AMQPConfig     `yaml:"amqp"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
	APIBase  string `yaml:"apiBase"`
}

// AMQPConfig describes the alert exchange.
type AMQPConfig struct {
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routingKey"`
}

// AdminConfig controls the admin HTTP server.
type AdminConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// On reports whether the admin server should run. Enabled by default.
func (a AdminConfig) On() bool {
	return a.Enabled == nil || *a.Enabled
}

// SourceConfig describes a single polled endpoint.
type SourceConfig struct {
	Name      string            `yaml:"name"`
	Kind      string            `yaml:"kind"`
	URL       string            `yaml:"url"`
	Category  string            `yaml:"category"`
	Namespace string            `yaml:"namespace"`
	Disabled  bool              `yaml:"disabled"`
	Options   map[string]string `yaml:"options"`
}

// Location resolves the configured timezone to a time.Location.
func (c Config) Location() *time.Location {
	if c.location != nil {
		return c.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// PollInterval is the pause between cycles.
func (c Config) PollInterval() time.Duration {
	return seconds(c.Monitor.FrequencySeconds)
}

// FreshnessWindow is the alerting age limit.
func (c Config) FreshnessWindow() time.Duration {
	return seconds(c.Monitor.FreshnessWindowSeconds)
}

// FetchTimeout bounds one source download.
func (c Config) FetchTimeout() time.Duration {
	return seconds(c.Monitor.FetchTimeoutSeconds)
}

// ClassifierTimeout bounds one classifier call.
func (c Config) ClassifierTimeout() time.Duration {
	return seconds(c.Classifier.TimeoutSeconds)
}

// NotifyTimeout bounds one notification.
func (c Config) NotifyTimeout() time.Duration {
	return seconds(c.Notifier.TimeoutSeconds)
}

// EnabledSources converts enabled source entries into domain descriptors.
func (c Config) EnabledSources() []domain.Source {
	sources := make([]domain.Source, 0, len(c.Sources))
	for _, s := range c.Sources {
		if s.Disabled {
			continue
		}
		sources = append(sources, domain.Source{
			Name:      s.Name,
			Kind:      s.Kind,
			URL:       s.URL,
			Category:  s.Category,
			Namespace: s.Namespace,
			Options:   s.Options,
		})
	}
	return sources
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// PathFromEnv returns the config path named by the environment, if any.
func PathFromEnv() string {
	return os.Getenv(configPathEnv)
}

// Load reads .env files, the YAML file at path (if non-empty), applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: cannot load .env: %v", err)
	}

	cfg := defaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		var fileCfg Config
		if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		cfg = mergeConfig(cfg, fileCfg)
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(mongoHostEnv); v != "" {
		c.Storage.Mongo.URI = v
	}
	if v := os.Getenv(mongoURIEnv); v != "" {
		c.Storage.Mongo.URI = v
	}
	if v := os.Getenv(sqlitePathEnv); v != "" {
		c.Storage.SQLite.Path = v
	}
	if v := os.Getenv(redisAddrEnv); v != "" {
		c.Storage.Redis.Addr = v
	}

	if v := os.Getenv(classifierModelEnv); v != "" {
		c.Classifier.Model = v
	}
	if v := os.Getenv(cfAccountIDEnv); v != "" {
		c.Classifier.AccountID = v
	}
	switch c.Classifier.Backend {
	case BackendWorkersAI:
		if v := os.Getenv(cfTokenEnv); v != "" {
			c.Classifier.Token = v
		}
	case BackendOpenAI:
		if v := os.Getenv(openAIKeyEnv); v != "" {
			c.Classifier.Token = v
		}
	case BackendGemini:
		if v := os.Getenv(googleAPIKeyEnv); v != "" {
			c.Classifier.Token = v
		}
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifier.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifier.Telegram.ChatID = v
	}
	if v := os.Getenv(amqpURLEnv); v != "" {
		c.Notifier.AMQP.URL = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(proxyHostEnv); v != "" {
		c.Monitor.Proxy = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.location = loc
}

// Validate rejects settings the application cannot run with.
func (c Config) Validate() error {
	var errs []error

	switch c.Storage.Driver {
	case DriverMongo, DriverSQLite, DriverRedis, DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q is not supported", c.Storage.Driver))
	}

	switch c.Classifier.Backend {
	case BackendWorkersAI, BackendOpenAI, BackendGemini:
		if strings.TrimSpace(c.Classifier.ThreadPrompt) == "" {
			errs = append(errs, errors.New("classifier.threadPrompt is required"))
		}
		if strings.TrimSpace(c.Classifier.FilterPrompt) == "" {
			errs = append(errs, errors.New("classifier.filterPrompt is required"))
		}
	case BackendNone:
	default:
		errs = append(errs, fmt.Errorf("classifier.backend %q is not supported", c.Classifier.Backend))
	}

	switch c.Notifier.Kind {
	case NotifierTelegram, NotifierAMQP, NotifierLog:
	default:
		errs = append(errs, fmt.Errorf("notifier.kind %q is not supported", c.Notifier.Kind))
	}

	if c.Monitor.FrequencySeconds <= 0 {
		errs = append(errs, errors.New("monitor.frequencySeconds must be positive"))
	}
	if c.Monitor.FreshnessWindowSeconds <= 0 {
		errs = append(errs, errors.New("monitor.freshnessWindowSeconds must be positive"))
	}

	seen := map[string]bool{}
	for i, s := range c.Sources {
		label := s.Name
		if label == "" {
			label = "#" + strconv.Itoa(i)
		}
		if s.Name == "" || s.URL == "" || s.Kind == "" {
			errs = append(errs, fmt.Errorf("source %s: name, kind and url are required", label))
		}
		switch s.Kind {
		case domain.KindRSSThreads, domain.KindProfileComments, "":
		default:
			errs = append(errs, fmt.Errorf("source %s: kind %q is not supported", label, s.Kind))
		}
		if seen[s.Name] {
			errs = append(errs, fmt.Errorf("source %s: duplicate name", label))
		}
		seen[s.Name] = true
	}

	return errors.Join(errs...)
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}
	if override.Timezone != "" {
		base.Timezone = override.Timezone
	}

	m := override.Monitor
	if m.FrequencySeconds != 0 {
		base.Monitor.FrequencySeconds = m.FrequencySeconds
	}
	if m.FreshnessWindowSeconds != 0 {
		base.Monitor.FreshnessWindowSeconds = m.FreshnessWindowSeconds
	}
	if m.FetchTimeoutSeconds != 0 {
		base.Monitor.FetchTimeoutSeconds = m.FetchTimeoutSeconds
	}
	if m.UserAgent != "" {
		base.Monitor.UserAgent = m.UserAgent
	}
	if m.Proxy != "" {
		base.Monitor.Proxy = m.Proxy
	}
	if m.MaxConcurrentSources != 0 {
		base.Monitor.MaxConcurrentSources = m.MaxConcurrentSources
	}
	if m.TruncateRunes != 0 {
		base.Monitor.TruncateRunes = m.TruncateRunes
	}

	s := override.Storage
	if s.Driver != "" {
		base.Storage.Driver = s.Driver
	}
	if s.Mongo.URI != "" {
		base.Storage.Mongo.URI = s.Mongo.URI
	}
	if s.Mongo.Database != "" {
		base.Storage.Mongo.Database = s.Mongo.Database
	}
	if s.SQLite.Path != "" {
		base.Storage.SQLite.Path = s.SQLite.Path
	}
	if s.Redis.Addr != "" {
		base.Storage.Redis.Addr = s.Redis.Addr
	}
	if s.Redis.Password != "" {
		base.Storage.Redis.Password = s.Redis.Password
	}
	if s.Redis.DB != 0 {
		base.Storage.Redis.DB = s.Redis.DB
	}
	if s.Redis.Prefix != "" {
		base.Storage.Redis.Prefix = s.Redis.Prefix
	}

	c := override.Classifier
	if c.Backend != "" {
		base.Classifier.Backend = c.Backend
	}
	if c.AccountID != "" {
		base.Classifier.AccountID = c.AccountID
	}
	if c.Token != "" {
		base.Classifier.Token = c.Token
	}
	if c.Model != "" {
		base.Classifier.Model = c.Model
	}
	if c.Endpoint != "" {
		base.Classifier.Endpoint = c.Endpoint
	}
	if c.ThreadPrompt != "" {
		base.Classifier.ThreadPrompt = c.ThreadPrompt
	}
	if c.FilterPrompt != "" {
		base.Classifier.FilterPrompt = c.FilterPrompt
	}
	if c.TimeoutSeconds != 0 {
		base.Classifier.TimeoutSeconds = c.TimeoutSeconds
	}

	n := override.Notifier
	if n.Kind != "" {
		base.Notifier.Kind = n.Kind
	}
	if n.TimeoutSeconds != 0 {
		base.Notifier.TimeoutSeconds = n.TimeoutSeconds
	}
	if n.Telegram.BotToken != "" {
		base.Notifier.Telegram.BotToken = n.Telegram.BotToken
	}
	if n.Telegram.ChatID != "" {
		base.Notifier.Telegram.ChatID = n.Telegram.ChatID
	}
	if n.Telegram.APIBase != "" {
		base.Notifier.Telegram.APIBase = n.Telegram.APIBase
	}
	if n.AMQP.URL != "" {
		base.Notifier.AMQP.URL = n.AMQP.URL
	}
	if n.AMQP.Exchange != "" {
		base.Notifier.AMQP.Exchange = n.AMQP.Exchange
	}
	if n.AMQP.RoutingKey != "" {
		base.Notifier.AMQP.RoutingKey = n.AMQP.RoutingKey
	}

	if override.Admin.Enabled != nil {
		base.Admin.Enabled = override.Admin.Enabled
	}
	if override.Admin.Listen != "" {
		base.Admin.Listen = override.Admin.Listen
	}

	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Timezone: defaultTimezone,
		Monitor: MonitorConfig{
			FrequencySeconds:       600,
			FreshnessWindowSeconds: 86400,
			FetchTimeoutSeconds:    30,
			UserAgent:              "ForumWatcher/1.0",
			MaxConcurrentSources:   4,
			TruncateRunes:          200,
		},
		Storage: StorageConfig{
			Driver: DriverMongo,
			Mongo:  MongoConfig{URI: "mongodb://localhost:27017/", Database: "forumwatcher"},
			SQLite: SQLiteConfig{Path: "data/forumwatcher.db"},
			Redis:  RedisConfig{Addr: "localhost:6379", Prefix: "forumwatcher"},
		},
		Classifier: ClassifierConfig{
			Backend:        BackendWorkersAI,
			Model:          "@cf/qwen/qwen1.5-14b-chat-awq",
			ThreadPrompt:   "Summarize the offer in two sentences: price, resources, locations. Finish with END.",
			FilterPrompt:   "Decide whether this provider comment announces a deal or restock. Reply FALSE if it does not, otherwise give a one-line reason. Finish with END.",
			TimeoutSeconds: 30,
		},
		Notifier: NotifierConfig{
			Kind:           NotifierLog,
			TimeoutSeconds: 10,
			Telegram:       TelegramConfig{APIBase: "https://api.telegram.org"},
			AMQP:           AMQPConfig{Exchange: "forumwatcher", RoutingKey: "alert"},
		},
		Admin: AdminConfig{Listen: ":8080"},
		Sources: []SourceConfig{
			{
				Name:     "lowendtalk-offers",
				Kind:     domain.KindRSSThreads,
				URL:      "https://lowendtalk.com/categories/offers/feed.rss",
				Category: "offers",
			},
			{
				Name:      "ndtn-comments",
				Kind:      domain.KindProfileComments,
				URL:       "https://lowendtalk.com/profile/comments/NDTN",
				Category:  "ndtn",
				Namespace: "ndtn",
				Options:   map[string]string{"requiredClass": "Role_PatronProvider"},
			},
		},
		location: tz,
	}
}
