// internal/pkg/config/config.go
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"
)

const (
	InventoryBackendMySQL = "mysql"
	InventoryBackendRedis = "redis"
)

// Config 是 order-service 的全部配置
type Config struct {
	Service    ServiceConfig    `yaml:"service"`
	Log        LogConfig        `yaml:"log"`
	MySQL      MySQLConfig      `yaml:"mysql"`
	Redis      RedisConfig      `yaml:"redis"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Jaeger     JaegerConfig     `yaml:"jaeger"`
	Zookeeper  ZookeeperConfig  `yaml:"zookeeper"`
	Nacos      NacosConfig      `yaml:"nacos"`
	Inventory  InventoryConfig  `yaml:"inventory"`
	Processing ProcessingConfig `yaml:"processing"`
}

type ServiceConfig struct {
	Name            string        `yaml:"name"`
	HTTPPort        int           `yaml:"httpPort"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// MySQLConfig 可以直接给 DSN，也可以给分散的字段，由 FormatDSN 拼接
type MySQLConfig struct {
	DSN          string `yaml:"dsn"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	Database     string `yaml:"database"`
	AutoMigrate  bool   `yaml:"autoMigrate"`
	MaxOpenConns int    `yaml:"maxOpenConns"`
	MaxIdleConns int    `yaml:"maxIdleConns"`
}

type RedisConfig struct {
	Addrs    []string `yaml:"addrs"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
}

type KafkaConfig struct {
	Brokers         []string `yaml:"brokers"`
	AuditTopic      string   `yaml:"auditTopic"`
	ProcessingTopic string   `yaml:"processingTopic"`
	DeadLetterTopic string   `yaml:"deadLetterTopic"` // 处理失败的请求转存到这里
	ConsumerGroup   string   `yaml:"consumerGroup"`
}

type JaegerConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type ZookeeperConfig struct {
	Servers        []string      `yaml:"servers"`
	SessionTimeout time.Duration `yaml:"sessionTimeout"`
}

type NacosConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServerAddrs string `yaml:"serverAddrs"`
	Namespace   string `yaml:"namespace"`
	Group       string `yaml:"group"`
}

type InventoryConfig struct {
	Backend string `yaml:"backend"`
}

type ProcessingConfig struct {
	Workers     int           `yaml:"workers"`
	AtomicStock bool          `yaml:"atomicStock"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Default 返回一份可以在本地直接跑起来的默认配置
func Default() *Config {
	return &Config{
		Service: ServiceConfig{Name: "order-service", HTTPPort: 8081, ShutdownTimeout: 10 * time.Second},
		Log:     LogConfig{Level: "info"},
		MySQL: MySQLConfig{
			Host: "localhost", Port: 3306, User: "root", Database: "fulfillment",
			MaxOpenConns: 20, MaxIdleConns: 10,
		},
		Redis: RedisConfig{Addrs: []string{"localhost:6379"}},
		Kafka: KafkaConfig{
			Brokers:         []string{"localhost:9092"},
			AuditTopic:      "order-audit",
			ProcessingTopic: "customer-order-processing",
			DeadLetterTopic: "customer-order-processing-dlt",
			ConsumerGroup:   "order-processing-consumer-group",
		},
		Jaeger:     JaegerConfig{Endpoint: "http://localhost:14268/api/traces"},
		Zookeeper:  ZookeeperConfig{SessionTimeout: 5 * time.Second},
		Nacos:      NacosConfig{ServerAddrs: "localhost:8848", Group: "DEFAULT_GROUP"},
		Inventory:  InventoryConfig{Backend: InventoryBackendMySQL},
		Processing: ProcessingConfig{Workers: 4, AtomicStock: true, Timeout: 30 * time.Second},
	}
}

// Load 读取 YAML 配置文件（文件不存在时使用默认值），再用环境变量覆盖
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// 没有配置文件时只用默认值和环境变量
		default:
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv("MYSQL_DSN"); ok {
		c.MySQL.DSN = v
	}
	if v, ok := os.LookupEnv("REDIS_ADDRS"); ok {
		c.Redis.Addrs = splitList(v)
	}
	if v, ok := os.LookupEnv("KAFKA_BROKERS"); ok {
		c.Kafka.Brokers = splitList(v)
	}
	if v, ok := os.LookupEnv("JAEGER_ENDPOINT"); ok {
		c.Jaeger.Endpoint = v
	}
	if v, ok := os.LookupEnv("ZK_SERVERS"); ok {
		c.Zookeeper.Servers = splitList(v)
	}
	if v, ok := os.LookupEnv("NACOS_SERVER_ADDRS"); ok {
		c.Nacos.ServerAddrs = v
		c.Nacos.Enabled = v != ""
	}
	if v, ok := os.LookupEnv("NACOS_NAMESPACE"); ok {
		c.Nacos.Namespace = v
	}
	if v, ok := os.LookupEnv("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := os.LookupEnv("INVENTORY_BACKEND"); ok {
		c.Inventory.Backend = v
	}
	if v, ok := os.LookupEnv("HTTP_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid HTTP_PORT %q: %w", v, err)
		}
		c.Service.HTTPPort = port
	}
	if v, ok := os.LookupEnv("PROCESSING_WORKERS"); ok {
		workers, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PROCESSING_WORKERS %q: %w", v, err)
		}
		c.Processing.Workers = workers
	}
	return nil
}

// Validate 拒绝不可能的配置值
func (c *Config) Validate() error {
	if c.Service.Name == "" {
		return fmt.Errorf("service.name must not be empty")
	}
	if c.Service.HTTPPort <= 0 || c.Service.HTTPPort > 65535 {
		return fmt.Errorf("service.httpPort %d is out of range", c.Service.HTTPPort)
	}
	if c.Processing.Workers <= 0 {
		return fmt.Errorf("processing.workers must be positive, got %d", c.Processing.Workers)
	}
	switch c.Inventory.Backend {
	case InventoryBackendMySQL:
	case InventoryBackendRedis:
		if len(c.Redis.Addrs) == 0 {
			return fmt.Errorf("inventory.backend=redis requires redis.addrs")
		}
	default:
		return fmt.Errorf("unknown inventory.backend %q", c.Inventory.Backend)
	}
	if c.MySQL.DSN == "" && c.MySQL.Host == "" {
		return fmt.Errorf("mysql.dsn or mysql.host must be set")
	}
	if _, err := c.MySQL.FormatDSN(); err != nil {
		return err
	}
	return nil
}

// FormatDSN 返回 GORM 使用的 MySQL DSN。
// 直接给出的 DSN 也会被解析，并强制打开 parseTime 和 clientFoundRows。
func (c MySQLConfig) FormatDSN() (string, error) {
	var mc *mysql.Config
	if c.DSN != "" {
		parsed, err := mysql.ParseDSN(c.DSN)
		if err != nil {
			return "", fmt.Errorf("invalid mysql.dsn: %w", err)
		}
		mc = parsed
	} else {
		mc = mysql.NewConfig()
		mc.User = c.User
		mc.Passwd = c.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
		mc.DBName = c.Database
		mc.Loc = time.UTC
		mc.Params = map[string]string{"charset": "utf8mb4"}
	}
	mc.ParseTime = true
	// RowsAffected 按匹配行数计算，值没有变化的 UPDATE 不会被当成“没有这一行”
	mc.ClientFoundRows = true
	return mc.FormatDSN(), nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
