package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"swfdiff/internal/campaign"
	"swfdiff/internal/common/cache"
	"swfdiff/internal/common/db"
	"swfdiff/internal/common/mq"
	"swfdiff/internal/common/storage"
	"swfdiff/internal/compare"
	"swfdiff/internal/generator"
	"swfdiff/internal/native"
	"swfdiff/internal/oracle"
	"swfdiff/internal/sandbox/display"
	"swfdiff/internal/statusapi"
	"swfdiff/internal/store"
	"swfdiff/internal/swf"
	"swfdiff/pkg/utils/logger"

	"gopkg.in/yaml.v3"
)

const (
	defaultShutdownTimeout = 10 * time.Second
	defaultStoreRoot       = "failures"
	defaultRedisPrefix     = "swfdiff:"
	defaultObjectPrefix    = "failures"

	backendFS    = "fs"
	backendRedis = "redis"
	backendMySQL = "mysql"
	backendMinIO = "minio"
)

// AppConfig holds the whole swfdiff configuration.
type AppConfig struct {
	Logger    logger.Config    `yaml:"logger"`
	Campaign  CampaignConfig   `yaml:"campaign"`
	Generator GeneratorConfig  `yaml:"generator"`
	Oracle    oracle.Config    `yaml:"oracle"`
	Native    native.Config    `yaml:"native"`
	Display   display.Config   `yaml:"display"`
	Compare   compare.Config   `yaml:"compare"`
	Store     StoreConfig      `yaml:"store"`
	Status    statusapi.Config `yaml:"status"`

	Redis cache.RedisConfig   `yaml:"redis"`
	MySQL db.MySQLConfig      `yaml:"mysql"`
	MinIO storage.MinIOConfig `yaml:"minio"`
	Kafka mq.KafkaConfig      `yaml:"kafka"`
}

// CampaignConfig holds lane and budget settings.
type CampaignConfig struct {
	ID               string        `yaml:"id"`
	Lanes            int           `yaml:"lanes"`
	Budget           int64         `yaml:"budget"`
	RunTimeout       time.Duration `yaml:"runTimeout"`
	BaseSeed         uint64        `yaml:"baseSeed"`
	WorkRoot         string        `yaml:"workRoot"`
	StatsInterval    time.Duration `yaml:"statsInterval"`
	MaxRunsPerSecond float64       `yaml:"maxRunsPerSecond"`
	SeenCacheSize    int           `yaml:"seenCacheSize"`
}

// GeneratorConfig is the YAML shape of generator.Config. Tags are named as
// in swf.TagCode.String.
type GeneratorConfig struct {
	IncludeTags []string `yaml:"includeTags"`
	ExcludeTags []string `yaml:"excludeTags"`

	MaxTags          int `yaml:"maxTags"`
	MaxDocumentBytes int `yaml:"maxDocumentBytes"`

	VersionMin     uint8   `yaml:"versionMin"`
	VersionMax     uint8   `yaml:"versionMax"`
	FrameRateMin   float64 `yaml:"frameRateMin"`
	FrameRateMax   float64 `yaml:"frameRateMax"`
	FrameWidthMin  int     `yaml:"frameWidthMin"`
	FrameWidthMax  int     `yaml:"frameWidthMax"`
	FrameHeightMin int     `yaml:"frameHeightMin"`
	FrameHeightMax int     `yaml:"frameHeightMax"`

	Modes        *ModeWeightsConfig `yaml:"modes"`
	TestsPerCase int                `yaml:"testsPerCase"`

	EdgeCases     bool `yaml:"edgeCases"`
	Compress      bool `yaml:"compress"`
	RandomStrings bool `yaml:"randomStrings"`
	RandomInts    bool `yaml:"randomInts"`
	IntStrings    bool `yaml:"intStrings"`
	NaNDoubles    bool `yaml:"nanDoubles"`

	MaxRetries         *int   `yaml:"maxRetries"`
	CompletionSentinel string `yaml:"completionSentinel"`
	StackSentinel      string `yaml:"stackSentinel"`
}

// ModeWeightsConfig sets how often each script case kind is generated.
type ModeWeightsConfig struct {
	Opcode      int `yaml:"opcode"`
	StaticCall  int `yaml:"staticCall"`
	DynamicCall int `yaml:"dynamicCall"`
}

// StoreConfig selects the failure store backends.
type StoreConfig struct {
	// Index is fs, redis or mysql.
	Index string `yaml:"index"`
	// Artifacts is fs or minio.
	Artifacts     string        `yaml:"artifacts"`
	Root          string        `yaml:"root"`
	Fingerprint   string        `yaml:"fingerprint"`
	RedisPrefix   string        `yaml:"redisPrefix"`
	ObjectPrefix  string        `yaml:"objectPrefix"`
	NotifyTimeout time.Duration `yaml:"notifyTimeout"`
	// Topic enables the Kafka failure notifier when set.
	Topic string `yaml:"topic"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := validateAppConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if cfg.Logger.Format == "" {
		cfg.Logger.Format = "console"
	}
	if cfg.Logger.OutputPath == "" {
		cfg.Logger.OutputPath = "stdout"
	}
	if cfg.Logger.ErrorPath == "" {
		cfg.Logger.ErrorPath = "stderr"
	}

	// Both players trace the same sentinel unless told otherwise.
	sentinel := cfg.Generator.CompletionSentinel
	if sentinel == "" {
		sentinel = generator.DefaultCompletionSentinel
	}
	if cfg.Oracle.Sentinel == "" {
		cfg.Oracle.Sentinel = sentinel
	}
	if cfg.Native.Sentinel == "" {
		cfg.Native.Sentinel = sentinel
	}
	if cfg.Compare.Sentinel == "" {
		cfg.Compare.Sentinel = sentinel
	}
	if cfg.Campaign.RunTimeout > 0 {
		if cfg.Oracle.Timeout == 0 {
			cfg.Oracle.Timeout = cfg.Campaign.RunTimeout
		}
		if cfg.Native.Timeout == 0 {
			cfg.Native.Timeout = cfg.Campaign.RunTimeout
		}
	}

	if cfg.Store.Index == "" {
		cfg.Store.Index = backendFS
	}
	if cfg.Store.Artifacts == "" {
		cfg.Store.Artifacts = backendFS
	}
	if cfg.Store.Root == "" {
		cfg.Store.Root = defaultStoreRoot
	}
	if cfg.Store.RedisPrefix == "" {
		cfg.Store.RedisPrefix = defaultRedisPrefix
	}
	if cfg.Store.ObjectPrefix == "" {
		cfg.Store.ObjectPrefix = defaultObjectPrefix
	}
	if cfg.Store.Index == backendRedis {
		applyRedisDefaults(&cfg.Redis)
	}
	if cfg.Store.Index == backendMySQL {
		applyMySQLDefaults(&cfg.MySQL)
	}
}

func applyRedisDefaults(cfg *cache.RedisConfig) {
	defaults := cache.DefaultRedisConfig()
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaults.DialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaults.ReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = defaults.PoolSize
	}
	if cfg.MinIdleConns == 0 {
		cfg.MinIdleConns = defaults.MinIdleConns
	}
}

func applyMySQLDefaults(cfg *db.MySQLConfig) {
	defaults := db.DefaultMySQLConfig()
	if cfg.MaxOpenConnections == 0 {
		cfg.MaxOpenConnections = defaults.MaxOpenConnections
	}
	if cfg.MaxIdleConnections == 0 {
		cfg.MaxIdleConnections = defaults.MaxIdleConnections
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = defaults.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime == 0 {
		cfg.ConnMaxIdleTime = defaults.ConnMaxIdleTime
	}
}

func validateAppConfig(cfg *AppConfig) error {
	switch cfg.Store.Index {
	case backendFS:
	case backendRedis:
		if cfg.Redis.Addr == "" {
			return fmt.Errorf("redis addr is required for the redis index")
		}
	case backendMySQL:
		if cfg.MySQL.DSN == "" {
			return fmt.Errorf("mysql dsn is required for the mysql index")
		}
		if !strings.Contains(cfg.MySQL.DSN, "parseTime=true") {
			return fmt.Errorf("mysql dsn must set parseTime=true")
		}
	default:
		return fmt.Errorf("unknown store index %q", cfg.Store.Index)
	}
	switch cfg.Store.Artifacts {
	case backendFS:
	case backendMinIO:
		if cfg.MinIO.Endpoint == "" || cfg.MinIO.Bucket == "" {
			return fmt.Errorf("minio endpoint and bucket are required for minio artifacts")
		}
	default:
		return fmt.Errorf("unknown store artifacts backend %q", cfg.Store.Artifacts)
	}
	if cfg.Store.Topic != "" && len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka brokers are required when store.topic is set")
	}
	if _, err := store.ParsePolicy(cfg.Store.Fingerprint); err != nil {
		return err
	}
	gen, err := cfg.toGeneratorConfig()
	if err != nil {
		return err
	}
	return cfg.toCampaignConfig(gen).Validate()
}

func (c *AppConfig) toGeneratorConfig() (generator.Config, error) {
	g := c.Generator
	out := generator.DefaultConfig()

	var err error
	if out.IncludeTags, err = parseTags(g.IncludeTags); err != nil {
		return out, err
	}
	if out.ExcludeTags, err = parseTags(g.ExcludeTags); err != nil {
		return out, err
	}
	if g.MaxTags != 0 {
		out.MaxTags = g.MaxTags
	}
	if g.MaxDocumentBytes != 0 {
		out.MaxDocumentBytes = g.MaxDocumentBytes
	}
	if g.VersionMin != 0 {
		out.VersionMin = g.VersionMin
	}
	if g.VersionMax != 0 {
		out.VersionMax = g.VersionMax
	}
	if g.FrameRateMin != 0 {
		out.FrameRateMin = g.FrameRateMin
	}
	if g.FrameRateMax != 0 {
		out.FrameRateMax = g.FrameRateMax
	}
	if g.FrameWidthMin != 0 {
		out.FrameWidthMin = g.FrameWidthMin
	}
	if g.FrameWidthMax != 0 {
		out.FrameWidthMax = g.FrameWidthMax
	}
	if g.FrameHeightMin != 0 {
		out.FrameHeightMin = g.FrameHeightMin
	}
	if g.FrameHeightMax != 0 {
		out.FrameHeightMax = g.FrameHeightMax
	}
	if g.Modes != nil {
		out.Modes = generator.ModeWeights{
			Opcode:      g.Modes.Opcode,
			StaticCall:  g.Modes.StaticCall,
			DynamicCall: g.Modes.DynamicCall,
		}
	}
	if g.TestsPerCase != 0 {
		out.TestsPerCase = g.TestsPerCase
	}
	out.EdgeCases = g.EdgeCases
	out.Compress = g.Compress
	out.RandomStrings = g.RandomStrings
	out.RandomInts = g.RandomInts
	out.IntStrings = g.IntStrings
	out.NaNDoubles = g.NaNDoubles
	if g.MaxRetries != nil {
		out.MaxRetries = *g.MaxRetries
	}
	if g.CompletionSentinel != "" {
		out.CompletionSentinel = g.CompletionSentinel
	}
	if g.StackSentinel != "" {
		out.StackSentinel = g.StackSentinel
	}
	return out, out.Validate()
}

func parseTags(names []string) ([]swf.TagCode, error) {
	if len(names) == 0 {
		return nil, nil
	}
	codes := make([]swf.TagCode, 0, len(names))
	for _, name := range names {
		code, ok := swf.TagCodeByName(name)
		if !ok {
			return nil, fmt.Errorf("unknown tag %q", name)
		}
		codes = append(codes, code)
	}
	return codes, nil
}

func (c *AppConfig) toCampaignConfig(gen generator.Config) campaign.Config {
	cc := c.Campaign
	return campaign.Config{
		ID:               cc.ID,
		Lanes:            cc.Lanes,
		Budget:           cc.Budget,
		RunTimeout:       cc.RunTimeout,
		BaseSeed:         cc.BaseSeed,
		WorkRoot:         cc.WorkRoot,
		StatsInterval:    cc.StatsInterval,
		MaxRunsPerSecond: cc.MaxRunsPerSecond,
		SeenCacheSize:    cc.SeenCacheSize,
		Generator:        gen,
	}.WithDefaults()
}

func (c *AppConfig) toStoreConfig() store.Config {
	policy, _ := store.ParsePolicy(c.Store.Fingerprint)
	return store.Config{
		Fingerprint:   policy,
		NotifyTimeout: c.Store.NotifyTimeout,
	}
}
