package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server      ServerConfig
	Log         LogConfig
	Marketplace MarketplaceConfig
	Geo         GeoConfig
	Redis       RedisConfig
	Chat        ChatConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	marketplace, err := loadMarketplaceConfig()
	if err != nil {
		return nil, err
	}

	geo, err := loadGeoConfig()
	if err != nil {
		return nil, err
	}

	redis, err := loadRedisConfig()
	if err != nil {
		return nil, err
	}

	chat, err := loadChatConfig()
	if err != nil {
		return nil, err
	}

	limit, err := loadRateLimitConfig()
	if err != nil {
		return nil, err
	}

	pretty, err := parseBoolEnv("LOG_PRETTY", false)
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:      server,
		Log:         LogConfig{Level: getEnvOrDefault("LOG_LEVEL", "info"), Pretty: pretty},
		Marketplace: marketplace,
		Geo:         geo,
		Redis:       redis,
		Chat:        chat,
		RateLimit:   limit,
		CORS:        CORSConfig{AllowedOrigins: parseListEnv("CORS_ALLOWED_ORIGINS", []string{"https://*", "http://*"})},
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8090"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8090" 或 "127.0.0.1:8090"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string
	Pretty bool
}

// MarketplaceConfig 描述上游电商 REST API。
type MarketplaceConfig struct {
	BaseURL  string
	AssetURL string
	// Timeout 为 0 表示不设置超时。
	Timeout time.Duration
}

func loadMarketplaceConfig() (MarketplaceConfig, error) {
	base := strings.TrimRight(getEnvOrDefault("MARKETPLACE_API_URL", "http://localhost:8080"), "/")
	if _, err := url.ParseRequestURI(base); err != nil {
		return MarketplaceConfig{}, fmt.Errorf("invalid MARKETPLACE_API_URL value %q: %w", base, err)
	}

	timeout, err := parseDurationEnv("MARKETPLACE_TIMEOUT", 0)
	if err != nil {
		return MarketplaceConfig{}, err
	}

	return MarketplaceConfig{
		BaseURL:  base,
		AssetURL: strings.TrimRight(getEnvOrDefault("MARKETPLACE_ASSET_URL", base), "/"),
		Timeout:  timeout,
	}, nil
}

// GeoConfig 描述菲律宾行政区划与地理编码服务。
type GeoConfig struct {
	PSGCBaseURL      string
	NominatimBaseURL string
	UserAgent        string
	CacheTTL         time.Duration
}

func loadGeoConfig() (GeoConfig, error) {
	ttl, err := parseDurationEnv("GEO_CACHE_TTL", 24*time.Hour)
	if err != nil {
		return GeoConfig{}, err
	}

	return GeoConfig{
		PSGCBaseURL:      strings.TrimRight(getEnvOrDefault("PSGC_API_URL", "https://psgc.gitlab.io/api"), "/"),
		NominatimBaseURL: strings.TrimRight(getEnvOrDefault("NOMINATIM_URL", "https://nominatim.openstreetmap.org"), "/"),
		UserAgent:        getEnvOrDefault("NOMINATIM_USER_AGENT", "ecomxpert-storefront/1.0"),
		CacheTTL:         ttl,
	}, nil
}

// RedisConfig 为空地址时使用进程内缓存。
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled 表示是否配置了 Redis。
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

func loadRedisConfig() (RedisConfig, error) {
	db, err := parseIntEnv("REDIS_DB", 0)
	if err != nil {
		return RedisConfig{}, err
	}
	return RedisConfig{
		Addr:     strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
	}, nil
}

// ChatConfig 聊天会话与轮询参数。
type ChatConfig struct {
	PollInterval       time.Duration
	InboxInterval      time.Duration
	PollConcurrency    int
	MaxOpenSessions    int
	MaxAttachments     int
	MaxAttachmentBytes int64
	// IdleTTL 之后关闭无请求、无订阅的浏览者会话；DraftTTL 同理清理加购编辑草稿。
	IdleTTL  time.Duration
	DraftTTL time.Duration
}

func loadChatConfig() (ChatConfig, error) {
	poll, err := parseDurationEnv("CHAT_POLL_INTERVAL", 3*time.Second)
	if err != nil {
		return ChatConfig{}, err
	}
	inbox, err := parseDurationEnv("CHAT_INBOX_INTERVAL", 5*time.Second)
	if err != nil {
		return ChatConfig{}, err
	}
	concurrency, err := parseIntEnv("CHAT_POLL_CONCURRENCY", 8)
	if err != nil {
		return ChatConfig{}, err
	}
	maxOpen, err := parseIntEnv("CHAT_MAX_OPEN", 3)
	if err != nil {
		return ChatConfig{}, err
	}
	maxFiles, err := parseIntEnv("CHAT_MAX_ATTACHMENTS", 5)
	if err != nil {
		return ChatConfig{}, err
	}
	maxBytes, err := parseIntEnv("CHAT_MAX_ATTACHMENT_BYTES", 20<<20)
	if err != nil {
		return ChatConfig{}, err
	}
	idle, err := parseDurationEnv("CHAT_IDLE_TTL", 10*time.Minute)
	if err != nil {
		return ChatConfig{}, err
	}
	draft, err := parseDurationEnv("CART_DRAFT_TTL", 15*time.Minute)
	if err != nil {
		return ChatConfig{}, err
	}

	if poll <= 0 || inbox <= 0 {
		return ChatConfig{}, fmt.Errorf("chat poll intervals must be positive")
	}
	if maxOpen < 1 {
		maxOpen = 1
	}
	if concurrency < 1 {
		concurrency = 1
	}

	return ChatConfig{
		PollInterval:       poll,
		InboxInterval:      inbox,
		PollConcurrency:    concurrency,
		MaxOpenSessions:    maxOpen,
		MaxAttachments:     maxFiles,
		MaxAttachmentBytes: int64(maxBytes),
		IdleTTL:            idle,
		DraftTTL:           draft,
	}, nil
}

// RateLimitConfig 按客户端 IP 限流。
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

func loadRateLimitConfig() (RateLimitConfig, error) {
	rps := 20.0
	if v, err := parseOptionalFloatEnv("RATE_LIMIT_RPS"); err != nil {
		return RateLimitConfig{}, err
	} else if v != nil {
		rps = *v
	}
	burst, err := parseIntEnv("RATE_LIMIT_BURST", 40)
	if err != nil {
		return RateLimitConfig{}, err
	}
	return RateLimitConfig{RPS: rps, Burst: burst}, nil
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins []string
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

// parseDurationEnv 支持 "3s" 这样的 Go 时长，也接受纯数字（按秒计）。
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseListEnv(key string, defaultValue []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
