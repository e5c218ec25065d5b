// =============================================================================
// 📦 StreamFlow 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("STREAMFLOW").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 StreamFlow 的完整配置结构
type Config struct {
	// Engine 流处理引擎配置
	Engine EngineConfig `yaml:"engine" env:"ENGINE"`

	// Server 服务器配置
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Redis 结果缓存配置
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// EngineConfig 流处理引擎配置
type EngineConfig struct {
	// 工作协程数量
	WorkerCount int `yaml:"worker_count" env:"WORKER_COUNT"`
	// 单个缓冲区大小（字节）
	BufferSizeBytes int `yaml:"buffer_size_bytes" env:"BUFFER_SIZE_BYTES"`
	// 缓冲池固定容量（缓冲区个数）
	BufferPoolCapacity int `yaml:"buffer_pool_capacity" env:"BUFFER_POOL_CAPACITY"`
	// 背压阈值：单流待处理块数上限
	BackpressureThreshold int `yaml:"backpressure_threshold" env:"BACKPRESSURE_THRESHOLD"`
	// 最大并发流数量
	MaxConcurrentStreams int `yaml:"max_concurrent_streams" env:"MAX_CONCURRENT_STREAMS"`
	// 单块处理超时
	ChunkTimeout time.Duration `yaml:"chunk_timeout" env:"CHUNK_TIMEOUT"`
	// 流空闲超时（超过后由监督器强制 TIMED_OUT）
	StreamTimeout time.Duration `yaml:"stream_timeout" env:"STREAM_TIMEOUT"`
	// 终态流结果保留时长
	ResultRetention time.Duration `yaml:"result_retention" env:"RESULT_RETENTION"`
	// 监督器巡检间隔
	SupervisorInterval time.Duration `yaml:"supervisor_interval" env:"SUPERVISOR_INTERVAL"`
	// 是否压缩累积片段
	EnableCompression bool `yaml:"enable_compression" env:"ENABLE_COMPRESSION"`
	// 是否上报引擎指标
	EnableMetrics bool `yaml:"enable_metrics" env:"ENABLE_METRICS"`
	// 健康判定：最低成功率
	SuccessRateFloor float64 `yaml:"success_rate_floor" env:"SUCCESS_RATE_FLOOR"`
	// 健康判定：最高背压比率
	BackpressureCeiling float64 `yaml:"backpressure_ceiling" env:"BACKPRESSURE_CEILING"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// HTTP 端口
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// Metrics 端口
	MetricsPort int `yaml:"metrics_port" env:"METRICS_PORT"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// 限流：每秒请求数
	RateLimitRPS int `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// 限流：突发容量
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// 允许的跨域来源（为空则拒绝跨域请求）
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
	// API Key（为空则不启用 Key 认证）
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// JWT 密钥（为空则不启用 JWT 认证）
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
	// 诊断 WebSocket 最大连接数
	WSMaxConns int `yaml:"ws_max_conns" env:"WS_MAX_CONNS"`
	// 诊断 WebSocket 推送间隔
	WSPushInterval time.Duration `yaml:"ws_push_interval" env:"WS_PUSH_INTERVAL"`
	// TLS 证书路径（与 key_file 同时设置时启用 HTTPS）
	CertFile string `yaml:"cert_file" env:"CERT_FILE"`
	// TLS 私钥路径
	KeyFile string `yaml:"key_file" env:"KEY_FILE"`
}

// RedisConfig Redis 结果缓存配置
type RedisConfig struct {
	// 是否启用结果缓存
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 连接池大小
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
	// 最小空闲连接
	MinIdleConns int `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	// 是否启用 TLS 加密连接
	TLSEnabled bool `yaml:"tls_enabled" env:"TLS_ENABLED"`
	// 终态结果缓存 TTL
	ResultTTL time.Duration `yaml:"result_ttl" env:"RESULT_TTL"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "STREAMFLOW",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	// 1. 从默认值开始
	cfg := DefaultConfig()

	// 2. 如果指定了配置文件，从文件加载
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// 3. 从环境变量覆盖
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// 4. 运行验证器
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		// 获取 env tag
		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		// 如果是结构体，递归处理
		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		// 获取环境变量值
		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		// 设置字段值
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 支持逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv 仅从环境变量加载配置
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	if err := c.Engine.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		errs = append(errs, "invalid metrics port")
	}
	if (c.Server.CertFile == "") != (c.Server.KeyFile == "") {
		errs = append(errs, "cert_file and key_file must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Validate 验证引擎配置
func (e *EngineConfig) Validate() error {
	var errs []string

	if e.WorkerCount <= 0 {
		errs = append(errs, "worker_count must be positive")
	}
	if e.BufferSizeBytes <= 0 {
		errs = append(errs, "buffer_size_bytes must be positive")
	}
	if e.BufferPoolCapacity <= 0 {
		errs = append(errs, "buffer_pool_capacity must be positive")
	}
	if e.BackpressureThreshold <= 0 {
		errs = append(errs, "backpressure_threshold must be positive")
	}
	if e.MaxConcurrentStreams <= 0 {
		errs = append(errs, "max_concurrent_streams must be positive")
	}
	if e.ChunkTimeout <= 0 {
		errs = append(errs, "chunk_timeout must be positive")
	}
	if e.StreamTimeout <= 0 {
		errs = append(errs, "stream_timeout must be positive")
	}
	if e.SuccessRateFloor < 0 || e.SuccessRateFloor > 1 {
		errs = append(errs, "success_rate_floor must be between 0 and 1")
	}
	if e.BackpressureCeiling < 0 || e.BackpressureCeiling > 1 {
		errs = append(errs, "backpressure_ceiling must be between 0 and 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("engine config: %s", strings.Join(errs, "; "))
	}
	return nil
}
