package core

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/RecoveryAshes/JobScraper/internal/antidetect"
	"github.com/RecoveryAshes/JobScraper/internal/models"
	"github.com/RecoveryAshes/JobScraper/internal/scrapers"
	"github.com/RecoveryAshes/JobScraper/internal/utils"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const mb = 1024 * 1024

// Config 应用程序配置
type Config struct {
	Scraping   models.ScrapingConfig `mapstructure:"scraping"`
	AntiDetect AntiDetectConfig      `mapstructure:"antidetect"`
	Logging    LoggingConfig         `mapstructure:"logging"`
	Output     OutputConfig          `mapstructure:"output"`
	Resource   ResourceConfig        `mapstructure:"resource"`
}

// AntiDetectConfig 反检测配置
type AntiDetectConfig struct {
	UserAgents             []string `mapstructure:"user_agents" yaml:"user_agents,omitempty"`
	DelayScale             float64  `mapstructure:"delay_scale" yaml:"delay_scale"`             // 延迟缩放系数,0表示不等待
	SimulateBehavior       bool     `mapstructure:"simulate_behavior" yaml:"simulate_behavior"` // 提取前模拟滚动和鼠标移动
	RateLimit              float64  `mapstructure:"rate_limit" yaml:"rate_limit"`               // 每个主机每秒请求数,<=0不限速
	RateBurst              int      `mapstructure:"rate_burst" yaml:"rate_burst"`
	ChallengePatterns      []string `mapstructure:"challenge_patterns" yaml:"challenge_patterns,omitempty"`
	ChallengeTitlePatterns []string `mapstructure:"challenge_title_patterns" yaml:"challenge_title_patterns,omitempty"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level" yaml:"level"`
	LogDir   string         `mapstructure:"log_dir" yaml:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation" yaml:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups int  `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int  `mapstructure:"max_age" yaml:"max_age"`
	Compress   bool `mapstructure:"compress" yaml:"compress"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	ReportDir string `mapstructure:"report_dir" yaml:"report_dir"`
	Database  string `mapstructure:"database" yaml:"database"` // SQLite文件路径,为空时不保存职位
}

// ResourceConfig 浏览器资源限制,内存单位为MB
type ResourceConfig struct {
	SafetyReserveMemory int `mapstructure:"safety_reserve_memory" yaml:"safety_reserve_memory"`
	SafetyThreshold     int `mapstructure:"safety_threshold" yaml:"safety_threshold"`
	CPULoadThreshold    int `mapstructure:"cpu_load_threshold" yaml:"cpu_load_threshold"`
	MaxPagesLimit       int `mapstructure:"max_pages_limit" yaml:"max_pages_limit"`
	PageMemoryUsage     int `mapstructure:"page_memory_usage" yaml:"page_memory_usage"`
}

// LoadConfig 加载配置文件
// configPath 为空时依次搜索 ./configs、当前目录和 ~/.jobscraper 下的 config.yaml,
// 找不到文件时使用默认值
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".jobscraper"))
		}
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, &models.ConfigError{FilePath: configPath, Cause: fmt.Errorf("读取配置文件失败: %w", err)}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, &models.ConfigError{FilePath: v.ConfigFileUsed(), Cause: fmt.Errorf("解析配置文件失败: %w", err)}
	}
	if used := v.ConfigFileUsed(); used != "" {
		utils.Debugf("使用配置文件: %s", used)
	}

	return &config, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	d := models.DefaultScrapingConfig()

	v.SetDefault("scraping.max_retries", d.MaxRetries)
	v.SetDefault("scraping.retry_delay", d.RetryDelay.String())
	v.SetDefault("scraping.backoff", d.Backoff)
	v.SetDefault("scraping.timeout", d.Timeout.String())
	v.SetDefault("scraping.concurrent_limit", d.ConcurrentLimit)
	v.SetDefault("scraping.headless", d.Headless)
	v.SetDefault("scraping.proxy_pool", []string{})
	v.SetDefault("scraping.enable_monitoring", d.EnableMonitoring)
	v.SetDefault("scraping.data_validation", d.DataValidation)
	v.SetDefault("scraping.user_data_dir", "")
	v.SetDefault("scraping.verification_timeout", d.VerificationTimeout.String())
	v.SetDefault("scraping.verification_poll", d.VerificationPoll.String())
	v.SetDefault("scraping.probe_reachability", false)

	v.SetDefault("antidetect.user_agents", []string{})
	v.SetDefault("antidetect.delay_scale", 1.0)
	v.SetDefault("antidetect.simulate_behavior", true)
	v.SetDefault("antidetect.rate_limit", 0.5)
	v.SetDefault("antidetect.rate_burst", 1)
	v.SetDefault("antidetect.challenge_patterns", []string{})
	v.SetDefault("antidetect.challenge_title_patterns", []string{})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)

	v.SetDefault("output.report_dir", "reports")
	v.SetDefault("output.database", "data/jobs.db")

	v.SetDefault("resource.safety_reserve_memory", 1024)
	v.SetDefault("resource.safety_threshold", 500)
	v.SetDefault("resource.cpu_load_threshold", 90)
	v.SetDefault("resource.max_pages_limit", 8)
	v.SetDefault("resource.page_memory_usage", 150)
}

// Validate 验证配置
func (c *Config) Validate() error {
	if err := c.Scraping.Validate(); err != nil {
		return err
	}
	if c.AntiDetect.DelayScale < 0 {
		return fmt.Errorf("延迟缩放系数不能为负数")
	}
	if c.AntiDetect.RateLimit < 0 {
		return fmt.Errorf("限速不能为负数")
	}
	if c.Resource.MaxPagesLimit < 0 {
		return fmt.Errorf("最大页面数不能为负数")
	}
	return nil
}

// FlagOverrides 命令行覆盖项,nil表示未在命令行指定
type FlagOverrides struct {
	Headless        *bool
	MaxRetries      *int
	RetryDelay      *time.Duration
	Timeout         *time.Duration
	ConcurrentLimit *int
	UserDataDir     *string
	NoValidate      *bool
	Probe           *bool
	LogLevel        *string
	Database        *string
	ReportDir       *string
}

// ApplyFlags 合并命令行参数,命令行优先于配置文件
func (c *Config) ApplyFlags(f FlagOverrides) {
	if f.Headless != nil {
		c.Scraping.Headless = *f.Headless
	}
	if f.MaxRetries != nil {
		c.Scraping.MaxRetries = *f.MaxRetries
	}
	if f.RetryDelay != nil {
		c.Scraping.RetryDelay = *f.RetryDelay
	}
	if f.Timeout != nil {
		c.Scraping.Timeout = *f.Timeout
	}
	if f.ConcurrentLimit != nil {
		c.Scraping.ConcurrentLimit = *f.ConcurrentLimit
	}
	if f.UserDataDir != nil {
		c.Scraping.UserDataDir = *f.UserDataDir
	}
	if f.NoValidate != nil {
		c.Scraping.DataValidation = !*f.NoValidate
	}
	if f.Probe != nil {
		c.Scraping.ProbeReachability = *f.Probe
	}
	if f.LogLevel != nil && *f.LogLevel != "" {
		c.Logging.Level = *f.LogLevel
	}
	if f.Database != nil {
		c.Output.Database = *f.Database
	}
	if f.ReportDir != nil && *f.ReportDir != "" {
		c.Output.ReportDir = *f.ReportDir
	}
}

// LogConfig 转换为日志系统配置
func (c *Config) LogConfig() utils.LogConfig {
	return utils.LogConfig{
		Level:      c.Logging.Level,
		LogDir:     c.Logging.LogDir,
		MaxSize:    c.Logging.Rotation.MaxSize,
		MaxBackups: c.Logging.Rotation.MaxBackups,
		MaxAge:     c.Logging.Rotation.MaxAge,
		Compress:   c.Logging.Rotation.Compress,
	}
}

// ResourceMonitorConfig 转换为资源监控配置,未配置的项取默认值
func (c *Config) ResourceMonitorConfig() scrapers.ResourceMonitorConfig {
	rc := scrapers.DefaultResourceMonitorConfig()
	if c.Resource.SafetyReserveMemory > 0 {
		rc.SafetyReserveMemory = int64(c.Resource.SafetyReserveMemory) * mb
	}
	if c.Resource.SafetyThreshold > 0 {
		rc.SafetyThreshold = int64(c.Resource.SafetyThreshold) * mb
	}
	if c.Resource.CPULoadThreshold > 0 {
		rc.CPULoadThreshold = c.Resource.CPULoadThreshold
	}
	if c.Resource.MaxPagesLimit > 0 {
		rc.MaxPagesLimit = c.Resource.MaxPagesLimit
	}
	if c.Resource.PageMemoryUsage > 0 {
		rc.PageMemoryUsage = int64(c.Resource.PageMemoryUsage) * mb
	}
	return rc
}

// NewAntiDetectManager 按配置创建反检测管理器
func (c *Config) NewAntiDetectManager() *antidetect.Manager {
	var policy antidetect.DelayPolicy = antidetect.DefaultJitterPolicy()
	if c.AntiDetect.DelayScale != 1 {
		policy = antidetect.ScaledPolicy{Inner: policy, Factor: c.AntiDetect.DelayScale}
	}
	return antidetect.NewManager(antidetect.Options{
		UserAgents:       c.AntiDetect.UserAgents,
		Policy:           policy,
		SimulateBehavior: c.AntiDetect.SimulateBehavior,
	})
}

// NewChallengeDetector 按配置创建人机验证识别器
func (c *Config) NewChallengeDetector() *antidetect.ChallengeDetector {
	return antidetect.NewChallengeDetector(c.AntiDetect.ChallengePatterns, c.AntiDetect.ChallengeTitlePatterns)
}

// yamlScraping ScrapingConfig 的YAML形式,时长写成可读字符串
type yamlScraping struct {
	MaxRetries          int      `yaml:"max_retries"`
	RetryDelay          string   `yaml:"retry_delay"`
	Backoff             string   `yaml:"backoff"`
	Timeout             string   `yaml:"timeout"`
	ConcurrentLimit     int      `yaml:"concurrent_limit"`
	Headless            bool     `yaml:"headless"`
	ProxyPool           []string `yaml:"proxy_pool,omitempty"`
	EnableMonitoring    bool     `yaml:"enable_monitoring"`
	DataValidation      bool     `yaml:"data_validation"`
	UserDataDir         string   `yaml:"user_data_dir"`
	VerificationTimeout string   `yaml:"verification_timeout"`
	VerificationPoll    string   `yaml:"verification_poll"`
	ProbeReachability   bool     `yaml:"probe_reachability"`
}

type yamlConfig struct {
	Scraping   yamlScraping     `yaml:"scraping"`
	AntiDetect AntiDetectConfig `yaml:"antidetect"`
	Logging    LoggingConfig    `yaml:"logging"`
	Output     OutputConfig     `yaml:"output"`
	Resource   ResourceConfig   `yaml:"resource"`
}

// WriteYAML 以 LoadConfig 可读取的格式输出配置
func (c *Config) WriteYAML(w io.Writer) error {
	s := c.Scraping
	doc := yamlConfig{
		Scraping: yamlScraping{
			MaxRetries:          s.MaxRetries,
			RetryDelay:          s.RetryDelay.String(),
			Backoff:             s.Backoff,
			Timeout:             s.Timeout.String(),
			ConcurrentLimit:     s.ConcurrentLimit,
			Headless:            s.Headless,
			ProxyPool:           s.ProxyPool,
			EnableMonitoring:    s.EnableMonitoring,
			DataValidation:      s.DataValidation,
			UserDataDir:         s.UserDataDir,
			VerificationTimeout: s.VerificationTimeout.String(),
			VerificationPoll:    s.VerificationPoll.String(),
			ProbeReachability:   s.ProbeReachability,
		},
		AntiDetect: c.AntiDetect,
		Logging:    c.Logging,
		Output:     c.Output,
		Resource:   c.Resource,
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}
	return enc.Close()
}
