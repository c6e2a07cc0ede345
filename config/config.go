package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"db"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Google   GoogleConfig   `mapstructure:"google"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Broker   BrokerConfig   `mapstructure:"broker"`
	Routine  RoutineConfig  `mapstructure:"routine"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
	Log      LogConfig      `mapstructure:"log"`
	Feature  FeatureConfig  `mapstructure:"feature"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int        `mapstructure:"port"`
	BaseURL      string     `mapstructure:"base_url"`
	MaxBodyBytes int64      `mapstructure:"max_body_bytes"`
	CORS         CORSConfig `mapstructure:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 连接最大生命周期（分钟）
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 空闲连接最大存活时间（分钟）
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 配置（Token 黑名单、限流、登录锁定）
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig JWT 认证配置
type AuthConfig struct {
	JWTSecret       string        `mapstructure:"jwt_secret"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
	// 登录失败锁定策略
	MaxLoginAttempts int           `mapstructure:"max_login_attempts"`
	LockoutDuration  time.Duration `mapstructure:"lockout_duration"`
}

// GoogleConfig Google 登录配置
type GoogleConfig struct {
	ClientID string `mapstructure:"client_id"`
	JWKSURL  string `mapstructure:"jwks_url"`
}

// StorageConfig 头像存储配置
// driver: local | s3（兼容 DigitalOcean Spaces / MinIO）
type StorageConfig struct {
	Driver    string `mapstructure:"driver"`
	LocalDir  string `mapstructure:"local_dir"`
	PublicURL string `mapstructure:"public_url"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	MaxBytes  int64  `mapstructure:"max_bytes"`
}

// BrokerConfig 实时事件总线配置
// backend: gochannel（单进程）| kafka（多实例）
type BrokerConfig struct {
	Backend      string   `mapstructure:"backend"`
	Topic        string   `mapstructure:"topic"`
	KafkaBrokers []string `mapstructure:"kafka_brokers"`
	BufferSize   int      `mapstructure:"buffer_size"`
}

// RoutineConfig 日程与空闲时间计算配置
type RoutineConfig struct {
	WindowStart       string `mapstructure:"window_start"`
	WindowEnd         string `mapstructure:"window_end"`
	MinFreeMinutes    int    `mapstructure:"min_free_minutes"`
	ImportMaxFileSize int64  `mapstructure:"import_max_file_size"`
	// Timezone ICS 导入导出时使用的本地时区
	Timezone string `mapstructure:"timezone"`
}

// JobsConfig 后台任务配置
type JobsConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	SweepSpec    string        `mapstructure:"sweep_spec"`
	StaleRoomTTL time.Duration `mapstructure:"stale_room_ttl"`
	SweepTimeout time.Duration `mapstructure:"sweep_timeout"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// FeatureConfig 功能开关配置
type FeatureConfig struct {
	// FriendsOnlyRoutines 为 true 时仅好友（或本人）可查看他人日程
	FriendsOnlyRoutines bool `mapstructure:"friends_only_routines"`
}

// Load 从 .env、配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	// .env 仅用于本地开发，不存在时忽略
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("读取 .env 失败: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("CAMPUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.max_body_bytes", 8<<20)
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173"})

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "campus_connect")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)
	v.SetDefault("db.conn_max_idle_time", 30)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.access_token_ttl", "15m")
	v.SetDefault("auth.refresh_token_ttl", "168h")
	v.SetDefault("auth.max_login_attempts", 5)
	v.SetDefault("auth.lockout_duration", "15m")

	v.SetDefault("google.client_id", "")
	v.SetDefault("google.jwks_url", "https://www.googleapis.com/oauth2/v3/certs")

	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.local_dir", "./uploads")
	v.SetDefault("storage.public_url", "/uploads")
	v.SetDefault("storage.max_bytes", 2<<20)

	v.SetDefault("broker.backend", "gochannel")
	v.SetDefault("broker.topic", "campus.events")
	v.SetDefault("broker.kafka_brokers", []string{"localhost:9092"})
	v.SetDefault("broker.buffer_size", 64)

	v.SetDefault("routine.window_start", "08:00")
	v.SetDefault("routine.window_end", "22:00")
	v.SetDefault("routine.min_free_minutes", 30)
	v.SetDefault("routine.import_max_file_size", 1<<20)
	v.SetDefault("routine.timezone", "UTC")

	v.SetDefault("jobs.enabled", true)
	v.SetDefault("jobs.sweep_spec", "0 */10 * * * *")
	v.SetDefault("jobs.stale_room_ttl", "24h")
	v.SetDefault("jobs.sweep_timeout", "30s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("feature.friends_only_routines", true)
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 不能为空")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 长度不能少于 16 字符")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	start, err := time.Parse("15:04", c.Routine.WindowStart)
	if err != nil {
		return fmt.Errorf("配置校验失败: routine.window_start 格式应为 HH:MM")
	}
	end, err := time.Parse("15:04", c.Routine.WindowEnd)
	if err != nil {
		return fmt.Errorf("配置校验失败: routine.window_end 格式应为 HH:MM")
	}
	if !start.Before(end) {
		return fmt.Errorf("配置校验失败: routine.window_start 必须早于 routine.window_end")
	}
	if _, err := time.LoadLocation(c.Routine.Timezone); err != nil {
		return fmt.Errorf("配置校验失败: 未知的 routine.timezone %q", c.Routine.Timezone)
	}
	switch c.Broker.Backend {
	case "gochannel":
	case "kafka":
		if len(c.Broker.KafkaBrokers) == 0 {
			return fmt.Errorf("配置校验失败: broker.kafka_brokers 不能为空")
		}
	default:
		return fmt.Errorf("配置校验失败: 未知的 broker.backend %q", c.Broker.Backend)
	}
	switch c.Storage.Driver {
	case "local", "s3":
	default:
		return fmt.Errorf("配置校验失败: 未知的 storage.driver %q", c.Storage.Driver)
	}
	return nil
}
