package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/blues/pledge/internal/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Escrow   EscrowConfig   `mapstructure:"escrow"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Task     TaskConfig     `mapstructure:"task"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port             string        `mapstructure:"port"`
	Mode             string        `mapstructure:"mode"`
	RateLimitRPS     int           `mapstructure:"rate_limit_rps"`    // 每个IP每秒请求数，0 表示不限流
	RequireSignature bool          `mapstructure:"require_signature"` // 写操作是否要求钱包签名
	SignatureWindow  time.Duration `mapstructure:"signature_window"`  // 签名时间戳允许的偏差
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // postgres, sqlite
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	Path     string `mapstructure:"path"` // sqlite 文件路径或 DSN
}

// EscrowConfig 托管参数
type EscrowConfig struct {
	Operator          string     `mapstructure:"operator"`            // 平台运营者地址，收取手续费
	DefaultFeePercent int        `mapstructure:"default_fee_percent"` // 首次初始化时的手续费
	Tiers             TierConfig `mapstructure:"tiers"`
}

// TierConfig 奖励等级阈值，单位金额（1 = 10^18 最小单位）
type TierConfig struct {
	Bronze string `mapstructure:"bronze"`
	Silver string `mapstructure:"silver"`
	Gold   string `mapstructure:"gold"`
}

// ChainConfig 链上放款配置
type ChainConfig struct {
	Enabled    bool   `mapstructure:"enabled"`     // 关闭时只记账不上链
	RpcUrl     string `mapstructure:"rpc_url"`     // RPC节点URL
	PrivateKey string `mapstructure:"private_key"` // 托管账户私钥
	GasLimit   uint64 `mapstructure:"gas_limit"`   // 单笔转账 gas 上限
}

type TaskConfig struct {
	Interval          int `mapstructure:"interval"`            // 过期扫描间隔（秒）
	EventInterval     int `mapstructure:"event_interval"`      // 事件推送间隔（秒）
	EventBatchSize    int `mapstructure:"event_batch_size"`    // 每次推送的最大事件数
	DisburseInterval  int `mapstructure:"disburse_interval"`   // 转账发送间隔（秒）
	DisburseBatchSize int `mapstructure:"disburse_batch_size"` // 每轮最多发送的转账数
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug, info, warn, error, fatal
	Output string `mapstructure:"output"` // 输出目标: stdout, stderr, file
	File   string `mapstructure:"file"`   // 日志文件路径（当output为file时使用）
}

// GetLevel 实现 logger.LogConfig 接口
func (l LogConfig) GetLevel() string {
	return l.Level
}

// GetOutput 实现 logger.LogConfig 接口
func (l LogConfig) GetOutput() string {
	return l.Output
}

// GetFile 实现 logger.LogConfig 接口
func (l LogConfig) GetFile() string {
	return l.File
}

// Thresholds 将配置转换为最小单位的等级阈值，未配置的等级使用默认值
func (t TierConfig) Thresholds() (model.TierThresholds, error) {
	thresholds := model.DefaultTierThresholds()
	for _, item := range []struct {
		name  string
		value string
		dst   *decimal.Decimal
	}{
		{"bronze", t.Bronze, &thresholds.Bronze},
		{"silver", t.Silver, &thresholds.Silver},
		{"gold", t.Gold, &thresholds.Gold},
	} {
		if item.value == "" {
			continue
		}
		wei, err := model.ParseUnits(item.value)
		if err != nil {
			return thresholds, fmt.Errorf("escrow.tiers.%s: %w", item.name, err)
		}
		*item.dst = wei
	}
	return thresholds, thresholds.Validate()
}

// Load 读取配置文件与环境变量，path 为空时按默认路径查找
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/pledge")
	}

	// 设置默认值
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.rate_limit_rps", 50)
	v.SetDefault("server.require_signature", false)
	v.SetDefault("server.signature_window", 5*time.Minute)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "pledge")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "pledge.db")
	v.SetDefault("escrow.operator", "")
	v.SetDefault("escrow.default_fee_percent", 2)
	v.SetDefault("escrow.tiers.bronze", "")
	v.SetDefault("escrow.tiers.silver", "")
	v.SetDefault("escrow.tiers.gold", "")
	v.SetDefault("chain.enabled", false)
	v.SetDefault("chain.rpc_url", "")
	v.SetDefault("chain.private_key", "")
	v.SetDefault("chain.gas_limit", 21000)
	v.SetDefault("task.interval", 60)
	v.SetDefault("task.event_interval", 1)
	v.SetDefault("task.event_batch_size", 500)
	v.SetDefault("task.disburse_interval", 5)
	v.SetDefault("task.disburse_batch_size", 100)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file", "logs/app.log")

	// 自动读取环境变量，例如 PLEDGE_DATABASE_DRIVER
	v.SetEnvPrefix("pledge")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	if !common.IsHexAddress(c.Escrow.Operator) {
		return fmt.Errorf("escrow.operator must be a hex address, got %q", c.Escrow.Operator)
	}
	if c.Escrow.DefaultFeePercent < 0 || c.Escrow.DefaultFeePercent > 5 {
		return fmt.Errorf("escrow.default_fee_percent must be within 0-5, got %d", c.Escrow.DefaultFeePercent)
	}
	if _, err := c.Escrow.Tiers.Thresholds(); err != nil {
		return err
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Chain.Enabled && (c.Chain.RpcUrl == "" || c.Chain.PrivateKey == "") {
		return fmt.Errorf("chain.rpc_url and chain.private_key are required when chain.enabled is true")
	}
	if c.Task.Interval <= 0 || c.Task.EventInterval <= 0 || c.Task.DisburseInterval <= 0 {
		return fmt.Errorf("task intervals must be positive")
	}
	return nil
}
