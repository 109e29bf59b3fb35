package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config 全局配置
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Store    StoreConfig    `mapstructure:"store"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Tracker  TrackerConfig  `mapstructure:"tracker"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Status   StatusConfig   `mapstructure:"status"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
}

// StoreConfig 资产库目录配置（目录均为 Asset Store 中的 folder id）
type StoreConfig struct {
	Provider           string   `mapstructure:"provider"`            // local（挂载目录）/ memory（仅测试）
	Root               string   `mapstructure:"root"`                // local provider 的根目录
	IncomingFolder     string   `mapstructure:"incoming_folder"`     // 订单导出文件投递目录
	ProcessedFolder    string   `mapstructure:"processed_folder"`    // 处理完成后归档目录
	DeliverablesFolder string   `mapstructure:"deliverables_folder"` // 交付压缩包上传目录
	ConfigFolder       string   `mapstructure:"config_folder"`       // 追踪记录存储目录
	ThankYouFolder     string   `mapstructure:"thank_you_folder"`    // 感谢卡资产目录
	Collections        []string `mapstructure:"collections"`         // 产品集合目录，按优先级排列
}

// SMTPConfig 邮件发送配置
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	AlertTo  string `mapstructure:"alert_to"` // 运维告警收件人
}

// RedisConfig Redis 配置（交付事件通知，可选）
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

// MySQLConfig MySQL 配置（tracker backend 为 mysql 时使用）
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// TrackerConfig 追踪存储配置
type TrackerConfig struct {
	Backend string `mapstructure:"backend"` // file / assetstore / mysql
	Dir     string `mapstructure:"dir"`     // file backend 的本地目录
}

// PipelineConfig 订单处理管道配置
type PipelineConfig struct {
	ScanMode               string        `mapstructure:"scan_mode"`                // all_unprocessed / latest_only
	FormatVariants         []string      `mapstructure:"format_variants"`          // 尺寸目录名，按优先级排列
	PasswordSuffixLen      int           `mapstructure:"password_suffix_len"`      // 密码取买家邮箱后缀长度
	MaxConsecutiveFailures int           `mapstructure:"max_consecutive_failures"` // 连续失败阈值，0 表示不限
	ScratchDir             string        `mapstructure:"scratch_dir"`              // 临时工作目录根
	Workers                int           `mapstructure:"workers"`                  // 单次 pass 内并发处理订单数
	StoreTimeout           time.Duration `mapstructure:"store_timeout"`            // 单次 Asset Store 调用超时
	NotifyRetries          int           `mapstructure:"notify_retries"`           // 邮件发送重试次数
	NotifyRetryDelay       time.Duration `mapstructure:"notify_retry_delay"`       // 邮件重试间隔
}

// ScheduleConfig 调度配置
type ScheduleConfig struct {
	ScanInterval    time.Duration `mapstructure:"scan_interval"`    // 订单扫描间隔
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"` // 过期交付物清理间隔
	CleanupMaxAge   time.Duration `mapstructure:"cleanup_max_age"`  // 交付物保留时长
	SummaryHour     int           `mapstructure:"summary_hour"`     // 每日汇总触发小时（本地时区）
}

// StatusConfig 状态端点配置
type StatusConfig struct {
	Addr string `mapstructure:"addr"` // 为空则不启动
}

// Load 加载配置文件
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config failed: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config failed: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults 填充缺省值
func (c *Config) applyDefaults() {
	if c.Store.Provider == "" {
		c.Store.Provider = "local"
	}
	if c.Tracker.Backend == "" {
		c.Tracker.Backend = "file"
	}
	if c.Pipeline.ScanMode == "" {
		c.Pipeline.ScanMode = "all_unprocessed"
	}
	if c.Pipeline.PasswordSuffixLen <= 0 {
		c.Pipeline.PasswordSuffixLen = 4
	}
	if c.Pipeline.Workers <= 0 {
		c.Pipeline.Workers = 1
	}
	if c.Pipeline.StoreTimeout <= 0 {
		c.Pipeline.StoreTimeout = 30 * time.Second
	}
	if c.Pipeline.NotifyRetries <= 0 {
		c.Pipeline.NotifyRetries = 3
	}
	if c.Pipeline.NotifyRetryDelay <= 0 {
		c.Pipeline.NotifyRetryDelay = 5 * time.Second
	}
	if c.Schedule.ScanInterval <= 0 {
		c.Schedule.ScanInterval = 5 * time.Minute
	}
	if c.Schedule.CleanupInterval <= 0 {
		c.Schedule.CleanupInterval = time.Hour
	}
	if c.Schedule.CleanupMaxAge <= 0 {
		c.Schedule.CleanupMaxAge = 24 * time.Hour
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}
	switch c.Store.Provider {
	case "local":
		if c.Store.Root == "" {
			return fmt.Errorf("store.root is required for local provider")
		}
	case "memory":
	default:
		return fmt.Errorf("store.provider must be local or memory, got %q", c.Store.Provider)
	}
	if c.Store.IncomingFolder == "" {
		return fmt.Errorf("store.incoming_folder is required")
	}
	if c.Store.DeliverablesFolder == "" {
		return fmt.Errorf("store.deliverables_folder is required")
	}
	if len(c.Store.Collections) == 0 {
		return fmt.Errorf("at least one store.collections entry is required")
	}
	if len(c.Pipeline.FormatVariants) == 0 {
		return fmt.Errorf("at least one pipeline.format_variants entry is required")
	}
	switch c.Tracker.Backend {
	case "file", "assetstore", "mysql":
	default:
		return fmt.Errorf("tracker.backend must be file, assetstore or mysql, got %q", c.Tracker.Backend)
	}
	if c.Tracker.Backend == "mysql" && c.MySQL.DSN == "" {
		return fmt.Errorf("mysql.dsn is required when tracker.backend is mysql")
	}
	switch c.Pipeline.ScanMode {
	case "all_unprocessed", "latest_only":
	default:
		return fmt.Errorf("pipeline.scan_mode must be all_unprocessed or latest_only, got %q", c.Pipeline.ScanMode)
	}
	if c.Schedule.SummaryHour < 0 || c.Schedule.SummaryHour > 23 {
		return fmt.Errorf("schedule.summary_hour must be within [0, 23]")
	}
	return nil
}
