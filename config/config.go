package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 应用配置结构体
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	JWT      JWTConfig      `yaml:"jwt"`
	Log      LogConfig      `yaml:"log"`
	Redis    RedisConfig    `yaml:"redis"`
	Refine   RefineConfig   `yaml:"refine"`
	Worker   WorkerConfig   `yaml:"worker"`
	Relay    RelayConfig    `yaml:"relay"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port         string        `yaml:"port"`         // 服务器监听端口
	ReadTimeout  time.Duration `yaml:"readTimeout"`  // 读取超时时间
	WriteTimeout time.Duration `yaml:"writeTimeout"` // 写入超时时间
	IdleTimeout  time.Duration `yaml:"idleTimeout"`  // 空闲超时时间
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`   // 数据库驱动类型
	Host     string `yaml:"host"`     // 数据库主机地址
	Port     int    `yaml:"port"`     // 数据库端口
	Username string `yaml:"username"` // 数据库用户名
	Password string `yaml:"password"` // 数据库密码
	Database string `yaml:"database"` // 数据库名称
	Charset  string `yaml:"charset"`  // 字符集
	MaxIdle  int    `yaml:"maxIdle"`  // 最大空闲连接数
	MaxOpen  int    `yaml:"maxOpen"`  // 最大打开连接数
}

// JWTConfig JWT配置
type JWTConfig struct {
	Secret     string        `yaml:"secret"`     // JWT密钥
	ExpireTime time.Duration `yaml:"expireTime"` // JWT过期时间
	Issuer     string        `yaml:"issuer"`     // JWT签发者
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level"`      // 日志级别
	Filename   string `yaml:"filename"`   // 日志文件名
	MaxSize    int    `yaml:"maxSize"`    // 单个日志文件最大大小(MB)
	MaxBackups int    `yaml:"maxBackups"` // 最大备份文件数
	MaxAge     int    `yaml:"maxAge"`     // 最大保存天数
	Compress   bool   `yaml:"compress"`   // 是否压缩
}

// RedisConfig Redis配置
type RedisConfig struct {
	Host     string `yaml:"host"`     // Redis主机地址
	Port     int    `yaml:"port"`     // Redis端口
	Password string `yaml:"password"` // Redis密码
	DB       int    `yaml:"db"`       // Redis数据库编号
}

// RefineConfig 文本润色服务配置
type RefineConfig struct {
	BaseURL string        `yaml:"baseURL"` // 润色服务地址
	Timeout time.Duration `yaml:"timeout"` // 单次调用超时，超时按失败处理（回退原文）
}

// WorkerConfig 后台处理配置
type WorkerConfig struct {
	Workers       int           `yaml:"workers"`       // 润色工作协程数
	QueueSize     int           `yaml:"queueSize"`     // 任务队列长度
	SweepInterval time.Duration `yaml:"sweepInterval"` // 补偿扫描间隔
	PendingSLA    time.Duration `yaml:"pendingSLA"`    // 超过该时长仍为pending的消息会被重新入队
}

// RelayConfig 传话消息配置（两个变体）
type RelayConfig struct {
	PassAlong VariantConfig `yaml:"passAlong"` // 代为传话
	Feedback  VariantConfig `yaml:"feedback"`  // 每周心里话
}

// VariantConfig 单个变体的准入规则配置
// RateLimitWindow 为 0 表示不启用滑动窗口限频
// SubmissionWeekday 为 -1 表示不启用提交时间窗
type VariantConfig struct {
	MinLength         int           `yaml:"minLength"`         // 最小字数，0表示不限制
	MaxLength         int           `yaml:"maxLength"`         // 最大字数
	RateLimitWindow   time.Duration `yaml:"rateLimitWindow"`   // 限频滑动窗口
	RateLimitMax      int64         `yaml:"rateLimitMax"`      // 窗口内最大发送条数
	SubmissionWeekday int           `yaml:"submissionWeekday"` // 可提交的星期（0=周日...6=周六）
	StartHour         int           `yaml:"startHour"`         // 窗口开始小时
	StartMinute       int           `yaml:"startMinute"`       // 窗口开始分钟
	EndHour           int           `yaml:"endHour"`           // 窗口结束小时
	EndMinute         int           `yaml:"endMinute"`         // 窗口结束分钟
	PeriodUnique      bool          `yaml:"periodUnique"`      // 每个周期每个发送者最多一条
}

// LoadConfig 加载配置（混合方式：YAML文件 + 环境变量）
func LoadConfig() *Config {
	// 1. 首先从YAML文件加载默认配置
	config := loadFromYAML("config/config.yaml")

	// 2. 用环境变量覆盖配置（环境变量优先级更高）
	overrideWithEnvVars(config)

	return config
}

// loadFromYAML 从YAML文件加载配置
func loadFromYAML(filePath string) *Config {
	data, err := os.ReadFile(filePath)
	if err != nil {
		// 如果文件不存在，返回默认配置
		return getDefaultConfig()
	}

	config := getDefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		// 如果解析失败，返回默认配置
		return getDefaultConfig()
	}

	return config
}

// overrideWithEnvVars 用环境变量覆盖配置
func overrideWithEnvVars(config *Config) {
	// 服务器配置
	if port := getEnv("SERVER_PORT", ""); port != "" {
		config.Server.Port = port
	}
	if timeout := getEnvDuration("SERVER_READ_TIMEOUT", 0); timeout > 0 {
		config.Server.ReadTimeout = timeout
	}
	if timeout := getEnvDuration("SERVER_WRITE_TIMEOUT", 0); timeout > 0 {
		config.Server.WriteTimeout = timeout
	}
	if timeout := getEnvDuration("SERVER_IDLE_TIMEOUT", 0); timeout > 0 {
		config.Server.IdleTimeout = timeout
	}

	// 数据库配置
	if host := getEnv("DB_HOST", ""); host != "" {
		config.Database.Host = host
	}
	if port := getEnvInt("DB_PORT", 0); port > 0 {
		config.Database.Port = port
	}
	if username := getEnv("DB_USERNAME", ""); username != "" {
		config.Database.Username = username
	}
	if password := getEnv("DB_PASSWORD", ""); password != "" {
		config.Database.Password = password
	}
	if database := getEnv("DB_DATABASE", ""); database != "" {
		config.Database.Database = database
	}

	// JWT配置
	if secret := getEnv("JWT_SECRET", ""); secret != "" {
		config.JWT.Secret = secret
	}
	if expireTime := getEnvDuration("JWT_EXPIRE_TIME", 0); expireTime > 0 {
		config.JWT.ExpireTime = expireTime
	}

	// 日志配置
	if level := getEnv("LOG_LEVEL", ""); level != "" {
		config.Log.Level = level
	}
	if filename := getEnv("LOG_FILENAME", ""); filename != "" {
		config.Log.Filename = filename
	}

	// Redis配置
	if host := getEnv("REDIS_HOST", ""); host != "" {
		config.Redis.Host = host
	}
	if port := getEnvInt("REDIS_PORT", 0); port > 0 {
		config.Redis.Port = port
	}
	if password := getEnv("REDIS_PASSWORD", ""); password != "" {
		config.Redis.Password = password
	}

	// 润色服务配置
	if baseURL := getEnv("REFINE_BASE_URL", ""); baseURL != "" {
		config.Refine.BaseURL = baseURL
	}
	if timeout := getEnvDuration("REFINE_TIMEOUT", 0); timeout > 0 {
		config.Refine.Timeout = timeout
	}

	// 后台处理配置
	if workers := getEnvInt("WORKER_COUNT", 0); workers > 0 {
		config.Worker.Workers = workers
	}
	if size := getEnvInt("WORKER_QUEUE_SIZE", 0); size > 0 {
		config.Worker.QueueSize = size
	}
	if d := getEnvDuration("WORKER_SWEEP_INTERVAL", 0); d > 0 {
		config.Worker.SweepInterval = d
	}
	if d := getEnvDuration("WORKER_PENDING_SLA", 0); d > 0 {
		config.Worker.PendingSLA = d
	}

	// 传话限频窗口（可调成真正的7天窗口）
	if d := getEnvDuration("RELAY_RATE_LIMIT_WINDOW", 0); d > 0 {
		config.Relay.PassAlong.RateLimitWindow = d
	}
	if max := getEnvInt("RELAY_RATE_LIMIT_MAX", 0); max > 0 {
		config.Relay.PassAlong.RateLimitMax = int64(max)
	}
}

// getDefaultConfig 获取默认配置
func getDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:   "mysql",
			Host:     "localhost",
			Port:     3306,
			Username: "relay_user",
			Password: "relay_pass",
			Database: "relay_system",
			Charset:  "utf8mb4",
			MaxIdle:  10,
			MaxOpen:  100,
		},
		JWT: JWTConfig{
			Secret:     "your-secret-key",
			ExpireTime: 24 * time.Hour,
			Issuer:     "relay-system",
		},
		Log: LogConfig{
			Level:      "info",
			Filename:   "logs/app.log",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
		},
		Redis: RedisConfig{
			Host:     "localhost",
			Port:     6379,
			Password: "",
			DB:       0,
		},
		Refine: RefineConfig{
			BaseURL: "http://localhost:9090",
			Timeout: 15 * time.Second,
		},
		Worker: WorkerConfig{
			Workers:       4,
			QueueSize:     256,
			SweepInterval: time.Minute,
			PendingSLA:    2 * time.Minute,
		},
		Relay: RelayConfig{
			PassAlong: VariantConfig{
				MinLength:         0,
				MaxLength:         1000,
				RateLimitWindow:   24 * time.Hour,
				RateLimitMax:      1,
				SubmissionWeekday: -1,
				PeriodUnique:      false,
			},
			Feedback: VariantConfig{
				MinLength:         10,
				MaxLength:         1000,
				RateLimitWindow:   0,
				RateLimitMax:      0,
				SubmissionWeekday: 6, // 周六
				StartHour:         7,
				StartMinute:       0,
				EndHour:           23,
				EndMinute:         59,
				PeriodUnique:      true,
			},
		},
	}
}

// 辅助函数：获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// 辅助函数：获取整数环境变量
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// 辅助函数：获取时间环境变量
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
