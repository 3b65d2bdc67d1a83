package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Game     GameConfig     `mapstructure:"game"`
	Security SecurityConfig `mapstructure:"security"`
	AI       AIConfig       `mapstructure:"ai"`
}

type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	Debug    bool   `mapstructure:"debug"`
	AdminKey string `mapstructure:"admin_key"`
	// AdminIPs restricts /api/admin to these IPs or CIDR ranges; empty allows any.
	AdminIPs []string `mapstructure:"admin_ips"`
}

type DatabaseConfig struct {
	Mode         string        `mapstructure:"mode"` // memory | sqlite | mysql
	MemoryName   string        `mapstructure:"memory_name"`
	SQLitePath   string        `mapstructure:"sqlite_path"`
	MySQLDSN     string        `mapstructure:"mysql_dsn"`
	MySQLMaxOpen int           `mapstructure:"mysql_max_open"`
	MySQLMaxIdle int           `mapstructure:"mysql_max_idle"`
	MySQLMaxLife time.Duration `mapstructure:"mysql_max_life"`
	// SlowQuery is the threshold above which statements are logged.
	SlowQuery time.Duration `mapstructure:"slow_query"`
}

type CacheConfig struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	RedisMaster     string        `mapstructure:"redis_master"`
	KeyPrefix       string        `mapstructure:"key_prefix"`
	LocalGCInterval time.Duration `mapstructure:"local_gc_interval"`
	LocalPubSubBuf  int           `mapstructure:"local_pubsub_buf"`
}

type GameConfig struct {
	CatalogPath string `mapstructure:"catalog_path"`
	StartEnergy int    `mapstructure:"start_energy"`

	// Opponents are rolled uniformly from these ranges and then balanced.
	OpponentStatMin   float64 `mapstructure:"opponent_stat_min"`
	OpponentStatMax   float64 `mapstructure:"opponent_stat_max"`
	OpponentHealthMin float64 `mapstructure:"opponent_health_min"`
	OpponentHealthMax float64 `mapstructure:"opponent_health_max"`

	TurnLockTTL        time.Duration `mapstructure:"turn_lock_ttl"`
	LeaderboardRefresh time.Duration `mapstructure:"leaderboard_refresh"`
	LeaderboardSize    int           `mapstructure:"leaderboard_size"`
}

type SecurityConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	JWTTTLH        time.Duration `mapstructure:"jwt_ttl_h"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	// MoveRateRPS and MoveRateBurst limit turn submissions per account.
	MoveRateRPS   float64 `mapstructure:"move_rate_rps"`
	MoveRateBurst int     `mapstructure:"move_rate_burst"`
	// AllowedOrigins lists the SSE origins that are permitted.
	// An empty slice allows all origins (useful for local development only).
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type AIConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
	ImageMaxEdge   int           `mapstructure:"image_max_edge"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/arena.db")
	v.SetDefault("database.mysql_max_open", 50)
	v.SetDefault("database.mysql_max_idle", 10)
	v.SetDefault("database.mysql_max_life", "1h")
	v.SetDefault("database.slow_query", "200ms")
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("cache.local_pubsub_buf", 256)
	v.SetDefault("game.catalog_path", "./data/catalog.yaml")
	v.SetDefault("game.start_energy", 100)
	v.SetDefault("game.opponent_stat_min", 1)
	v.SetDefault("game.opponent_stat_max", 10)
	v.SetDefault("game.opponent_health_min", 10)
	v.SetDefault("game.opponent_health_max", 100)
	v.SetDefault("game.turn_lock_ttl", "5s")
	v.SetDefault("game.leaderboard_refresh", "5m")
	v.SetDefault("game.leaderboard_size", 50)
	v.SetDefault("security.jwt_ttl_h", "72h")
	v.SetDefault("security.rate_limit_rps", 100)
	v.SetDefault("security.rate_limit_burst", 200)
	v.SetDefault("security.move_rate_rps", 4)
	v.SetDefault("security.move_rate_burst", 8)
	v.SetDefault("ai.model", "gemini-2.5-flash")
	v.SetDefault("ai.timeout", "30s")
	v.SetDefault("ai.max_upload_bytes", 5<<20)
	v.SetDefault("ai.image_max_edge", 1024)
}

// Load reads config from the given YAML file path. Any key can be
// overridden from the environment as ARENA_<SECTION>_<KEY>.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("arena")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the arena cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Mode {
	case "memory", "sqlite":
	case "mysql":
		if c.Database.MySQLDSN == "" {
			return fmt.Errorf("config: database.mysql_dsn is required in mysql mode")
		}
	default:
		return fmt.Errorf("config: unknown database.mode %q", c.Database.Mode)
	}
	g := c.Game
	if g.OpponentStatMin > g.OpponentStatMax {
		return fmt.Errorf("config: opponent_stat_min %.1f exceeds opponent_stat_max %.1f", g.OpponentStatMin, g.OpponentStatMax)
	}
	if g.OpponentHealthMin > g.OpponentHealthMax {
		return fmt.Errorf("config: opponent_health_min %.1f exceeds opponent_health_max %.1f", g.OpponentHealthMin, g.OpponentHealthMax)
	}
	if g.StartEnergy <= 0 {
		return fmt.Errorf("config: game.start_energy must be positive")
	}
	if g.TurnLockTTL <= 0 {
		return fmt.Errorf("config: game.turn_lock_ttl must be positive")
	}
	return nil
}
