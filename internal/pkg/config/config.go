// internal/pkg/config/config.go
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config 聚合了所有服务共享的基础设施配置。
// 加载顺序：内置默认值 -> 可选的 YAML 文件 (CONFIG_FILE) -> 环境变量覆盖。
type Config struct {
	Kafka   Kafka   `yaml:"kafka"`
	MySQL   MySQL   `yaml:"mysql"`
	Redis   Redis   `yaml:"redis"`
	Zk      Zk      `yaml:"zookeeper"`
	Nacos   Nacos   `yaml:"nacos"`
	Jaeger  Jaeger  `yaml:"jaeger"`
	Breaker Breaker `yaml:"breaker"`
	Gateway Gateway `yaml:"gateway"`
	Slack   Slack   `yaml:"slack"`
}

type Kafka struct {
	Brokers     []string `yaml:"brokers"`
	EventsTopic string   `yaml:"events_topic"`
}

type MySQL struct {
	DSN string `yaml:"dsn"`
}

type Redis struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type Zk struct {
	Servers []string `yaml:"servers"`
	Enabled bool     `yaml:"enabled"`
}

type Nacos struct {
	ServerAddrs string `yaml:"server_addrs"`
	Namespace   string `yaml:"namespace"`
	Group       string `yaml:"group"`
	Enabled     bool   `yaml:"enabled"`
}

type Jaeger struct {
	Endpoint string `yaml:"endpoint"`
}

type Breaker struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	ResetTimeout     time.Duration `yaml:"reset_timeout"`
}

type Gateway struct {
	// 外部支付授权服务的地址，只能经由熔断器访问
	ChargeURL string        `yaml:"charge_url"`
	Timeout   time.Duration `yaml:"timeout"`
}

type Slack struct {
	// WebhookURL 为空时不启用 Slack 渠道
	WebhookURL string `yaml:"webhook_url"`
	Channel    string `yaml:"channel"`
	// Filter 是一条 CEL 表达式，决定哪些事件进入 Slack
	Filter string `yaml:"filter"`
}

// Load 构建一份完整的配置。YAML 文件缺失不是错误，格式损坏才是。
func Load() (Config, error) {
	cfg := Config{
		Kafka: Kafka{
			Brokers:     []string{"localhost:9092"},
			EventsTopic: "saga.events",
		},
		MySQL: MySQL{
			DSN: "root:root@tcp(localhost:3306)/orderflow?charset=utf8mb4&parseTime=True&loc=Local",
		},
		Redis: Redis{
			Addr: "localhost:6379",
			TTL:  5 * time.Minute,
		},
		Zk: Zk{
			Servers: []string{"localhost:2181"},
		},
		Nacos: Nacos{
			ServerAddrs: "localhost:8848",
			Group:       "DEFAULT_GROUP",
		},
		Jaeger: Jaeger{
			Endpoint: "http://localhost:14268/api/traces",
		},
		Breaker: Breaker{
			FailureThreshold: 3,
			ResetTimeout:     10 * time.Second,
		},
		Gateway: Gateway{
			ChargeURL: "http://localhost:8090/charge",
			Timeout:   5 * time.Second,
		},
		Slack: Slack{
			Channel: "#ops-alerts",
			Filter:  `event_type == "OrderRejected"`,
		},
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrapf(err, "read config file %s", path)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "parse config file %s", path)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_EVENTS_TOPIC"); v != "" {
		cfg.Kafka.EventsTopic = v
	}
	if v := os.Getenv("MYSQL_DSN"); v != "" {
		cfg.MySQL.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("ZK_SERVERS"); v != "" {
		cfg.Zk.Servers = strings.Split(v, ",")
		cfg.Zk.Enabled = true
	}
	if v := os.Getenv("NACOS_SERVER_ADDRS"); v != "" {
		cfg.Nacos.ServerAddrs = v
		cfg.Nacos.Enabled = true
	}
	if v := os.Getenv("NACOS_NAMESPACE"); v != "" {
		cfg.Nacos.Namespace = v
	}
	if v := os.Getenv("NACOS_GROUP"); v != "" {
		cfg.Nacos.Group = v
	}
	if v := os.Getenv("JAEGER_ENDPOINT"); v != "" {
		cfg.Jaeger.Endpoint = v
	}
	if v := os.Getenv("BREAKER_FAILURE_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Breaker.FailureThreshold = n
		}
	}
	if v := os.Getenv("BREAKER_RESET_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Breaker.ResetTimeout = d
		}
	}
	if v := os.Getenv("PAYMENT_GATEWAY_URL"); v != "" {
		cfg.Gateway.ChargeURL = v
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Slack.WebhookURL = v
	}
	if v := os.Getenv("SLACK_FILTER"); v != "" {
		cfg.Slack.Filter = v
	}
}
