package conf

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// 配置加载（API密钥、交易参数等）

type Kraken struct {
	ApiKey       string  `yaml:"apiKey"`
	SecretKey    string  `yaml:"secretKey"`
	BaseURL      string  `yaml:"base-url"`
	ContractSize float64 `yaml:"contract-size"` // 每张合约代表多少币，PF_ 合约为 1
}

type Okx struct {
	ApiKey    string  `yaml:"apiKey"`
	SecretKey string  `yaml:"secretKey"`
	Password  string  `yaml:"password"`
	Simulated bool    `yaml:"simulated"`
	MgnMode   string  `yaml:"mgn-mode"` // cross / isolated
	LotSize   float64 `yaml:"lot-size"` // 下单张数的最小变动单位
}

// Simulated 模拟交易所的初始状态
type Simulated struct {
	Margin    float64 `yaml:"margin"`
	MarkPrice float64 `yaml:"mark-price"`
	FillRatio float64 `yaml:"fill-ratio"`
}

type ExchangeConfig struct {
	Name      string    `yaml:"name"` // kraken / okx / simulated
	Timeout   Duration  `yaml:"timeout"`
	RateLimit float64   `yaml:"rate-limit"` // 每秒请求数
	Kraken    Kraken    `yaml:"kraken"`
	Okx       Okx       `yaml:"okx"`
	Simulated Simulated `yaml:"simulated"`
}

// TradingConfig 交易标的与仓位参数，数量单位统一为币本身（base asset）
type TradingConfig struct {
	Symbol        string  `yaml:"symbol"`
	Leverage      float64 `yaml:"leverage"`
	SizeIncrement float64 `yaml:"size-increment"`
	MinSize       float64 `yaml:"min-size"`
	MarginCoin    string  `yaml:"margin-coin"` // okx 保证金币种
}

// WorkflowConfig 信号处理流程的等待时间和重试次数
type WorkflowConfig struct {
	ReleaseDelay     Duration `yaml:"release-delay"`     // 平仓后等待保证金释放
	MinReleaseDelta  float64  `yaml:"min-release-delta"` // 保证金增加超过该值才认为已释放
	ConfirmDelay     Duration `yaml:"confirm-delay"`     // 下单后等待成交
	ConfirmAttempts  int      `yaml:"confirm-attempts"`
	ConfirmThreshold float64  `yaml:"confirm-threshold"` // 成交比例阈值
	LockWait         Duration `yaml:"lock-wait"`         // 同一币种排队等待上限
	ResponseWait     Duration `yaml:"response-wait"`     // http 请求最多等待流程结果的时间
	DrainTimeout     Duration `yaml:"drain-timeout"`     // 关闭时等待进行中的流程
	DedupWindow      Duration `yaml:"dedup-window"`      // 重复信号的过滤窗口
}

type LogConfig struct {
	Level      string `yaml:"level"`
	FileName   string `yaml:"file-name"`
	TimeFormat string `yaml:"time-format"`
	MaxSize    int    `yaml:"max-size"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAge     int    `yaml:"max-age"`
	Compress   bool   `yaml:"compress"`
	LocalTime  bool   `yaml:"local-time"`
	Console    bool   `yaml:"console"`
}

// RedisConfig 配置后使用 redis 分布式锁，多实例部署时同一币种串行
type RedisConfig struct {
	Addr         string   `yaml:"address"`
	Password     string   `yaml:"password"`
	Db           int      `yaml:"db"`
	PoolSize     int      `yaml:"pool-size"`
	MinIdleConns int      `yaml:"min-idle-conns"`
	LockTTL      Duration `yaml:"lock-ttl"`
}

type KafkaConfig struct {
	Broker string `yaml:"broker"`
	Topic  string `yaml:"topic"`
}

type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat-id"`
}

// WebhookConfig secret 为空时不校验签名
type WebhookConfig struct {
	Secret string `yaml:"secret"`
}

type JournalConfig struct {
	Path string `yaml:"path"`
}

type Config struct {
	AppName      string `yaml:"app_name"`
	Listen       string `yaml:"listen"`
	Mode         string `yaml:"mode"`
	MaxPingCount int    `yaml:"max-ping-count"`
	Environment  string `yaml:"environment"`

	Exchange ExchangeConfig `yaml:"exchange"`
	Trading  TradingConfig  `yaml:"trading"`
	Workflow WorkflowConfig `yaml:"workflow"`
	Log      LogConfig      `yaml:"log"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Telegram TelegramConfig `yaml:"telegram"`
	Journal  JournalConfig  `yaml:"journal"`
	Webhook  WebhookConfig  `yaml:"webhook"`
}

var AppConfig Config

// Duration 支持 yaml 中 "2s"、"500ms" 的写法
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	v, err := cast.ToDurationE(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func LoadConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("Read config file error %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("Unmarshal config yaml error: %w", err)
	}
	// .env 不存在时忽略
	_ = godotenv.Load()
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return err
	}
	AppConfig = cfg
	return nil
}

// Default 默认配置，yaml 中未出现的字段保持默认值
func Default() Config {
	return Config{
		AppName:      "novaflow",
		Listen:       ":8000",
		Mode:         "release",
		MaxPingCount: 10,
		Environment:  "Local/Development",
		Exchange: ExchangeConfig{
			Name:      "simulated",
			Timeout:   Duration(10 * time.Second),
			RateLimit: 5,
			Kraken:    Kraken{BaseURL: "https://futures.kraken.com", ContractSize: 1},
			Okx:       Okx{MgnMode: "cross", LotSize: 0.01},
			Simulated: Simulated{Margin: 200, MarkPrice: 50000, FillRatio: 1},
		},
		Trading: TradingConfig{
			Symbol:        "PF_XBTUSD",
			Leverage:      5,
			SizeIncrement: 0.001,
			MinSize:       0.001,
			MarginCoin:    "USDT",
		},
		Workflow: WorkflowConfig{
			ReleaseDelay:     Duration(3 * time.Second),
			MinReleaseDelta:  0.01,
			ConfirmDelay:     Duration(2 * time.Second),
			ConfirmAttempts:  3,
			ConfirmThreshold: 0.9,
			LockWait:         Duration(2 * time.Minute),
			ResponseWait:     Duration(25 * time.Second),
			DrainTimeout:     Duration(2 * time.Minute),
			DedupWindow:      Duration(3 * time.Second),
		},
		Log: LogConfig{
			Level:      "info",
			MaxSize:    100,
			MaxBackups: 10,
			MaxAge:     30,
			Console:    true,
		},
		Redis: RedisConfig{LockTTL: Duration(5 * time.Minute)},
		Kafka: KafkaConfig{Topic: "novaflow_outcome"},
	}
}

// ApplyEnv 环境变量优先于配置文件，便于在 Railway 等平台部署
func (c *Config) ApplyEnv() {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString(&c.Exchange.Name, "EXCHANGE_NAME")
	setString(&c.Exchange.Kraken.ApiKey, "KRAKEN_API_KEY")
	setString(&c.Exchange.Kraken.SecretKey, "KRAKEN_SECRET")
	setString(&c.Exchange.Okx.ApiKey, "OKX_API_KEY")
	setString(&c.Exchange.Okx.SecretKey, "OKX_SECRET_KEY")
	setString(&c.Exchange.Okx.Password, "OKX_PASSPHRASE")
	setString(&c.Trading.Symbol, "TRADING_SYMBOL")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.Kafka.Broker, "KAFKA_BROKER")
	setString(&c.Telegram.Token, "TELEGRAM_BOT_TOKEN")
	setString(&c.Webhook.Secret, "WEBHOOK_SECRET")

	if v := os.Getenv("PORT"); v != "" {
		c.Listen = ":" + v
	}
	if v := os.Getenv("LEVERAGE"); v != "" {
		if lev, err := cast.ToFloat64E(v); err == nil {
			c.Trading.Leverage = lev
		}
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if id, err := cast.ToInt64E(v); err == nil {
			c.Telegram.ChatID = id
		}
	}
	if os.Getenv("RAILWAY_ENVIRONMENT") != "" {
		c.Environment = "Production"
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.Trading.Symbol == "" {
		errs = append(errs, errors.New("trading.symbol is required"))
	}
	if c.Trading.Leverage <= 0 {
		errs = append(errs, errors.New("trading.leverage must be > 0"))
	}
	if c.Trading.SizeIncrement <= 0 || c.Trading.MinSize <= 0 {
		errs = append(errs, errors.New("trading.size-increment and trading.min-size must be > 0"))
	}
	if c.Workflow.ConfirmAttempts < 1 {
		errs = append(errs, errors.New("workflow.confirm-attempts must be >= 1"))
	}
	if c.Workflow.ConfirmThreshold <= 0 || c.Workflow.ConfirmThreshold > 1 {
		errs = append(errs, errors.New("workflow.confirm-threshold must be in (0, 1]"))
	}
	if c.Workflow.MinReleaseDelta < 0 {
		errs = append(errs, errors.New("workflow.min-release-delta must be >= 0"))
	}
	switch c.Mode {
	case "debug", "release", "test":
	default:
		errs = append(errs, fmt.Errorf("unsupported mode: %s", c.Mode))
	}
	switch c.Exchange.Name {
	case "kraken", "okx", "simulated":
	default:
		errs = append(errs, fmt.Errorf("unsupported exchange: %s", c.Exchange.Name))
	}
	return multierr.Combine(errs...)
}

// Dec 把配置里的浮点数转成 decimal，避免在业务代码里反复转换
func Dec(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

// CredentialsSet 当前交易所的密钥是否已配置
func (c *Config) CredentialsSet() (key bool, secret bool) {
	switch c.Exchange.Name {
	case "kraken":
		return c.Exchange.Kraken.ApiKey != "", c.Exchange.Kraken.SecretKey != ""
	case "okx":
		return c.Exchange.Okx.ApiKey != "", c.Exchange.Okx.SecretKey != ""
	}
	return false, false
}
