package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// 未显式配置时使用的默认值。
const (
	DefaultAddr       = ":8000"
	DefaultLLMBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	DefaultLLMModel   = "qwen-plus"
	DefaultLLMTimeout = 120 // 秒
)

// Config 项目配置结构体
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	LLM         LLMConfig         `yaml:"llm"`
	Search      SearchConfig      `yaml:"search"`
	Log         LogConfig         `yaml:"log"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	DB          DBConfig          `yaml:"db"`
}

// ServerConfig HTTP 服务相关配置
type ServerConfig struct {
	Addr    string `yaml:"addr"`
	Timeout int    `yaml:"timeout"` // 请求超时（秒），0 表示使用框架默认值
}

// LLMConfig LLM 相关配置
type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	Timeout int    `yaml:"timeout"` // 单次调用超时（秒）
}

// SearchConfig 搜索相关配置
type SearchConfig struct {
	Provider      string        `yaml:"provider"`
	Tavily        TavilyConfig  `yaml:"tavily"`
	SearXNG       SearXNGConfig `yaml:"searxng"`
	FetchFullText bool          `yaml:"fetch_full_text"` // 摘要过短时是否抓取原文
}

// TavilyConfig Tavily 配置
type TavilyConfig struct {
	APIKey string `yaml:"api_key"`
}

// SearXNGConfig SearXNG 配置
type SearXNGConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout int    `yaml:"timeout"`
}

// LogConfig 日志相关配置
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// ConcurrencyConfig 并发控制配置
type ConcurrencyConfig struct {
	QPS int `yaml:"qps"`
	RPM int `yaml:"rpm"`
}

// DBConfig 数据库相关配置（可选，未配置时不持久化历史记录）
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// LoadConfig 从指定路径加载配置。配置文件不存在时仅使用环境变量与默认值，
// 以便只靠 DASHSCOPE_API_KEY / TAVILY_API_KEY 就能跑起来。
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	case os.IsNotExist(err):
		// 无配置文件，走环境变量
	default:
		return nil, err
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

// applyEnv 环境变量优先于配置文件，密钥通常只通过环境变量下发。
func (c *Config) applyEnv() {
	if v := os.Getenv("DASHSCOPE_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("TAVILY_API_KEY"); v != "" {
		c.Search.Tavily.APIKey = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Addr = ":" + v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = DefaultLLMBaseURL
	}
	if c.LLM.Model == "" {
		c.LLM.Model = DefaultLLMModel
	}
	if c.LLM.Timeout <= 0 {
		c.LLM.Timeout = DefaultLLMTimeout
	}
	if c.Concurrency.QPS <= 0 {
		c.Concurrency.QPS = 2
	}
	if c.Concurrency.RPM <= 0 {
		c.Concurrency.RPM = 60
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}
