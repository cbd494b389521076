package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
}

// GraphConfig 定义远端目录/邮件服务的访问配置
type GraphConfig struct {
	BaseURL           string  // 目录服务根地址，必填
	Token             string  // 静态访问令牌（令牌的获取和刷新由外部协作方负责）
	RequestsPerSecond float64 // 对目录服务的请求速率上限，<=0 表示不限流
}

// ImpersonationConfig 定义身份解析配置
type ImpersonationConfig struct {
	HeaderName        string // 身份请求头名称，默认 "x-impersonate-user"
	DefaultUser       string // 进程级兜底身份（最低优先级来源），留空表示无
	ValidateExistence bool   // 是否向目录服务校验身份真实存在
}

// CacheConfig 定义发现结果缓存配置
type CacheConfig struct {
	TTL     time.Duration // 缓存条目生存时间，默认 1h，下限 60s
	Backend string        // 存储后端: "memory" 或 "redis"
}

// RedisConfig 定义 Redis 缓存后端配置
type RedisConfig struct {
	Address  string // Redis 服务地址，格式 "host:port"，默认 "localhost:6379"
	Password string // Redis 认证密码，留空表示无密码
	DB       int    // Redis 数据库编号，默认 0
}

// ProbeConfig 定义访问探测配置
type ProbeConfig struct {
	Timeout   time.Duration // 单次探测超时，默认 5s
	BatchSize int           // 每批并发探测的候选数量，默认 5
	PageSize  int           // 目录候选列表单页上限，默认 999
}

// DiagnosticsConfig 定义探测诊断存储配置
type DiagnosticsConfig struct {
	DBPath    string        // SQLite 数据库路径，留空禁用诊断落盘
	Retention time.Duration // 诊断记录保留期，默认 7 天
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
	LogFile     string // 日志文件路径，留空表示只输出到控制台
}

// AdminConfig 定义运维管理接口配置
type AdminConfig struct {
	APIKey string // 管理接口的静态 API Key，留空禁用管理接口
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server        ServerConfig        // HTTP 服务器配置
	Graph         GraphConfig         // 目录服务配置
	Impersonation ImpersonationConfig // 身份解析配置
	Cache         CacheConfig         // 缓存配置
	Redis         RedisConfig         // Redis 配置
	Probe         ProbeConfig         // 探测配置
	Diagnostics   DiagnosticsConfig   // 诊断存储配置
	CORS          CORSConfig          // 跨域配置
	Log           LogConfig           // 日志配置
	Admin         AdminConfig         // 管理接口配置
}

// 缓存 TTL 约束
const (
	DefaultCacheTTL = time.Hour
	MinCacheTTL     = 60 * time.Second
)

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量（最高优先级）
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: SHAREDMAIL_
// 例如: SHAREDMAIL_GRAPH_BASE_URL, SHAREDMAIL_CACHE_TTL
//
// 返回值:
//   - *Config: 加载成功的配置对象
//   - error: 配置验证失败时返回错误
func Load() (*Config, error) {
	// 尝试加载 .env 文件（静默失败，因为 .env 文件是可选的）
	loadEnvFile()

	viper.SetEnvPrefix("sharedmail")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("graph.base_url", "")
	viper.SetDefault("graph.token", "")
	viper.SetDefault("graph.requests_per_second", 20)
	viper.SetDefault("impersonation.header_name", "x-impersonate-user")
	viper.SetDefault("impersonation.default_user", "")
	viper.SetDefault("impersonation.validate_existence", true)
	viper.SetDefault("cache.ttl", "1h")
	viper.SetDefault("cache.backend", "memory")
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("probe.timeout", "5s")
	viper.SetDefault("probe.batch_size", 5)
	viper.SetDefault("probe.page_size", 999)
	viper.SetDefault("diagnostics.db_path", "sharedmail-diag.db")
	viper.SetDefault("diagnostics.retention", "168h")
	viper.SetDefault("cors.allowed_origins", "*")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("log.log_file", "")
	viper.SetDefault("admin.api_key", "")

	baseURL := strings.TrimSpace(viper.GetString("graph.base_url"))
	if baseURL == "" {
		return nil, fmt.Errorf("graph.base_url must not be empty")
	}

	cacheTTL, err := time.ParseDuration(viper.GetString("cache.ttl"))
	if err != nil {
		return nil, fmt.Errorf("invalid cache.ttl: %w", err)
	}
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	if cacheTTL < MinCacheTTL {
		cacheTTL = MinCacheTTL
	}

	cacheBackend := viper.GetString("cache.backend")
	if cacheBackend != "memory" && cacheBackend != "redis" {
		return nil, fmt.Errorf("invalid cache.backend %q: must be \"memory\" or \"redis\"", cacheBackend)
	}

	probeTimeout, err := time.ParseDuration(viper.GetString("probe.timeout"))
	if err != nil {
		return nil, fmt.Errorf("invalid probe.timeout: %w", err)
	}

	batchSize := viper.GetInt("probe.batch_size")
	if batchSize <= 0 {
		batchSize = 5
	}

	pageSize := viper.GetInt("probe.page_size")
	if pageSize <= 0 {
		pageSize = 999
	}

	retention, err := time.ParseDuration(viper.GetString("diagnostics.retention"))
	if err != nil {
		return nil, fmt.Errorf("invalid diagnostics.retention: %w", err)
	}

	headerName := strings.TrimSpace(viper.GetString("impersonation.header_name"))
	if headerName == "" {
		headerName = "x-impersonate-user"
	}

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetInt("server.port"),
		},
		Graph: GraphConfig{
			BaseURL:           baseURL,
			Token:             viper.GetString("graph.token"),
			RequestsPerSecond: viper.GetFloat64("graph.requests_per_second"),
		},
		Impersonation: ImpersonationConfig{
			HeaderName:        headerName,
			DefaultUser:       strings.TrimSpace(viper.GetString("impersonation.default_user")),
			ValidateExistence: viper.GetBool("impersonation.validate_existence"),
		},
		Cache: CacheConfig{
			TTL:     cacheTTL,
			Backend: cacheBackend,
		},
		Redis: RedisConfig{
			Address:  viper.GetString("redis.address"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Probe: ProbeConfig{
			Timeout:   probeTimeout,
			BatchSize: batchSize,
			PageSize:  pageSize,
		},
		Diagnostics: DiagnosticsConfig{
			DBPath:    viper.GetString("diagnostics.db_path"),
			Retention: retention,
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
			LogFile:     viper.GetString("log.log_file"),
		},
		Admin: AdminConfig{
			APIKey: viper.GetString("admin.api_key"),
		},
	}

	return cfg, nil
}

// parseList 将逗号分隔的字符串解析为字符串切片
//
// 参数:
//   - value: 逗号分隔的字符串，如 "item1,item2,item3"
//
// 返回值:
//   - []string: 解析后的字符串切片，已去除空白字符
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 加载顺序：
//  1. 当前目录的 .env
//  2. 父目录的 .env（用于从 backend/ 子目录运行的情况）
//
// 注意：
//   - 如果文件不存在，静默失败（.env 是可选的）
//   - 环境变量不会被覆盖（已存在的环境变量优先级更高）
func loadEnvFile() {
	// 尝试当前目录的 .env
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	// 尝试父目录的 .env（从 backend/ 目录运行时）
	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
