package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/RecoveryAshes/JobScraper/internal/core"
	"github.com/RecoveryAshes/JobScraper/internal/detector"
	"github.com/RecoveryAshes/JobScraper/internal/models"
	"github.com/RecoveryAshes/JobScraper/internal/store"
	"github.com/RecoveryAshes/JobScraper/internal/utils"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
var (
	// 全局参数
	configFile   string
	verbose      bool
	logLevel     string
	headerConfig string   // 附加头部配置文件
	headers      []string // 自定义HTTP请求头

	// 爬取参数
	targetURL       string
	urlFile         string
	headless        bool
	maxRetries      int
	retryDelay      time.Duration
	timeout         time.Duration
	concurrentLimit int
	userDataDir     string
	noValidate      bool
	dbPath          string
	noStore         bool
	reportDir       string

	// 健康检查参数
	probe      bool
	jsonOutput bool

	// 统计参数
	statsDir  string
	statsJSON bool

	// 配置相关参数
	printConfig bool
	initOutput  string
	initForce   bool
)

// appConfig 由 PersistentPreRunE 加载
var appConfig *core.Config

var rootCmd = &cobra.Command{
	Use:   "jobscraper",
	Short: "招聘网站职位爬取工具",
	Long: `JobScraper - 招聘网站职位详情爬取工具

支持的站点:
  • BOSS直聘 (zhipin.com)
  • 拉勾网 (lagou.com)

功能:
  • 自动识别站点并分派爬取器
  • 浏览器自动化与反检测
  • 失败重试与并发控制
  • 性能统计与健康检查
  • 职位保存到SQLite

示例:
  # 爬取单个职位
  jobscraper scrape -u https://www.zhipin.com/job_detail/abc123.html

  # 批量爬取
  jobscraper scrape -f urls.txt --concurrency 3

  # 自定义HTTP头部
  jobscraper scrape -u https://www.lagou.com/jobs/123.html -H "Referer: https://www.lagou.com/"

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 加载配置
		config, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}

		// 命令行参数覆盖配置文件
		if cmd.Flags().Changed("log-level") {
			config.ApplyFlags(core.FlagOverrides{LogLevel: &logLevel})
		}
		if verbose && !cmd.Flags().Changed("log-level") {
			level := "debug"
			config.ApplyFlags(core.FlagOverrides{LogLevel: &level})
		}

		// 初始化日志系统
		if err := utils.InitLogger(config.LogConfig()); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}
		if verbose {
			utils.Info("详细模式已启用")
		}

		appConfig = config
		return nil
	},
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "爬取职位详情",
	RunE: func(cmd *cobra.Command, args []string) error {
		if targetURL == "" && urlFile == "" {
			return cmd.Help()
		}
		if err := ValidateFlags(targetURL, urlFile, maxRetries, retryDelay, timeout, concurrentLimit); err != nil {
			return err
		}

		appConfig.ApplyFlags(scrapeOverrides(cmd))
		if err := appConfig.Validate(); err != nil {
			return fmt.Errorf("配置无效: %w", err)
		}

		// 收集URL
		var urls []string
		if urlFile != "" {
			fileURLs, err := utils.ReadURLsFromFile(urlFile)
			if err != nil {
				return fmt.Errorf("读取URL文件失败: %w", err)
			}
			urls = fileURLs
		} else {
			urls = []string{models.NormalizeURL(targetURL)}
		}

		// Ctrl+C 取消进行中的爬取
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		headerManager, err := core.NewHeaderManager(headerConfig, headers)
		if err != nil {
			return fmt.Errorf("创建HTTP头部管理器失败: %w", err)
		}
		if err := headerManager.LoadConfig(); err != nil {
			return fmt.Errorf("加载头部配置失败: %w", err)
		}

		opts := orchestratorOptions(appConfig, headerManager)
		var bar *progressbar.ProgressBar
		if len(urls) > 1 {
			bar = utils.NewProgressBar(len(urls), "爬取职位")
			opts = append(opts, core.WithResultHook(func(models.ScrapingResult) {
				_ = bar.Add(1)
			}))
		}

		orch, err := core.NewOrchestrator(appConfig.Scraping, opts...)
		if err != nil {
			return fmt.Errorf("创建编排器失败: %w", err)
		}
		defer func() {
			if err := orch.Cleanup(); err != nil {
				utils.Warnf("清理资源失败: %v", err)
			}
		}()

		start := time.Now()
		var results []models.ScrapingResult
		if len(urls) == 1 {
			results = []models.ScrapingResult{orch.ScrapeSingle(ctx, urls[0])}
		} else {
			results = orch.ScrapeBatch(ctx, urls)
			_ = bar.Finish()
			fmt.Println()
		}
		end := time.Now()

		if err := persistJobs(appConfig.Output.Database, results); err != nil {
			utils.Warnf("保存职位失败: %v", err)
		}

		perf := orch.PerformanceStats()
		report := models.NewBatchReport(results, start, end, perf, orch.Config())
		reporter := utils.NewReporter(appConfig.Output.ReportDir)
		if path, err := reporter.SaveBatchReport(report); err != nil {
			utils.Warnf("保存爬取报告失败: %v", err)
		} else {
			utils.Infof("📄 爬取报告: %s", path)
		}
		if appConfig.Scraping.EnableMonitoring {
			if _, err := reporter.SavePerformanceReport(perf); err != nil {
				utils.Warnf("保存性能报告失败: %v", err)
			}
		}

		printSummary(report)

		if errors.Is(ctx.Err(), context.Canceled) {
			utils.Warn("爬取已被中断")
		}
		if report.Succeeded == 0 {
			return fmt.Errorf("全部%d个URL爬取失败", report.Total)
		}
		utils.Info("✨ 爬取任务完成!")
		return nil
	},
}

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "列出支持的站点",
	Run: func(cmd *cobra.Command, args []string) {
		for _, site := range detector.SupportedSites() {
			info, _ := detector.Lookup(site)
			fmt.Printf("%-8s %-10s %s\n", info.ID, info.Name, info.HomeURL)
		}
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "检查爬取器和站点状态",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("probe") {
			appConfig.ApplyFlags(core.FlagOverrides{Probe: &probe})
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		headerManager, err := core.NewHeaderManager(headerConfig, headers)
		if err != nil {
			return fmt.Errorf("创建HTTP头部管理器失败: %w", err)
		}

		orch, err := core.NewOrchestrator(appConfig.Scraping, orchestratorOptions(appConfig, headerManager)...)
		if err != nil {
			return fmt.Errorf("创建编排器失败: %w", err)
		}
		defer func() { _ = orch.Cleanup() }()

		report := orch.HealthCheck(ctx)
		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}

		fmt.Printf("状态: %s (可用爬取器 %d/%d)\n", report.Status, report.ScrapersAvailable, len(report.SupportedSites))
		for _, s := range report.Sites {
			line := fmt.Sprintf("  %-8s 可用=%v", s.Site, s.Available)
			if s.Probed {
				line += fmt.Sprintf(" 可达=%v 状态码=%d 验证页=%v 耗时=%v", s.Reachable, s.StatusCode, s.Challenged, s.Latency.Round(time.Millisecond))
			}
			if s.Error != "" {
				line += " 错误=" + s.Error
			}
			fmt.Println(line)
		}
		if report.Status == models.HealthUnhealthy {
			return fmt.Errorf("健康检查未通过")
		}
		return nil
	},
}

var validateConfigCmd = &cobra.Command{
	Use:   "validate-config",
	Short: "验证配置文件和HTTP头部配置",
	RunE: func(cmd *cobra.Command, args []string) error {
		utils.Info("🔍 验证配置...")
		if err := appConfig.Validate(); err != nil {
			return fmt.Errorf("配置验证失败: %w", err)
		}

		headerManager, err := core.NewHeaderManager(headerConfig, headers)
		if err != nil {
			return fmt.Errorf("创建HTTP头部管理器失败: %w", err)
		}
		if err := headerManager.LoadConfig(); err != nil {
			return fmt.Errorf("加载头部配置失败: %w", err)
		}
		if err := headerManager.Validate(); err != nil {
			return fmt.Errorf("头部配置验证失败: %w", err)
		}

		// 显示合并后的头部(脱敏)
		safeHeaders := headerManager.GetSafeHeaders()
		utils.Info("✅ 配置验证通过!")
		utils.Infof("当前有效的HTTP头部 (%d个):", len(safeHeaders))
		for name, value := range safeHeaders {
			utils.Infof("  %s: %s", name, value)
		}

		if printConfig {
			return appConfig.WriteYAML(os.Stdout)
		}
		return nil
	},
}

var initConfigCmd = &cobra.Command{
	Use:   "init-config",
	Short: "生成默认配置文件",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !initForce {
			if _, err := os.Stat(initOutput); err == nil {
				return fmt.Errorf("配置文件已存在: %s (使用 --force 覆盖)", initOutput)
			}
		}
		if err := writeConfigFile(appConfig, initOutput); err != nil {
			return err
		}
		utils.Infof("📝 已生成配置文件: %s", initOutput)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "显示上次爬取保存的性能统计",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := appConfig.Output.ReportDir
		if statsDir != "" {
			dir = statsDir
		}
		report, err := utils.NewReporter(dir).LoadPerformanceReport()
		if err != nil {
			return err
		}
		if statsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}
		fmt.Println(report.Format())
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("JobScraper %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
	},
}

// scrapeOverrides 收集命令行显式指定的爬取参数
func scrapeOverrides(cmd *cobra.Command) core.FlagOverrides {
	var f core.FlagOverrides
	flags := cmd.Flags()
	if flags.Changed("headless") {
		f.Headless = &headless
	}
	if flags.Changed("retries") {
		f.MaxRetries = &maxRetries
	}
	if flags.Changed("retry-delay") {
		f.RetryDelay = &retryDelay
	}
	if flags.Changed("timeout") {
		f.Timeout = &timeout
	}
	if flags.Changed("concurrency") {
		f.ConcurrentLimit = &concurrentLimit
	}
	if flags.Changed("user-data-dir") {
		f.UserDataDir = &userDataDir
	}
	if flags.Changed("no-validate") {
		f.NoValidate = &noValidate
	}
	if flags.Changed("db") {
		f.Database = &dbPath
	}
	if noStore {
		empty := ""
		f.Database = &empty
	}
	if flags.Changed("report") {
		f.ReportDir = &reportDir
	}
	return f
}

// orchestratorOptions 按应用配置组装编排器选项
func orchestratorOptions(cfg *core.Config, hp models.HeaderProvider) []core.Option {
	return []core.Option{
		core.WithAntiDetection(cfg.NewAntiDetectManager()),
		core.WithRateLimit(cfg.AntiDetect.RateLimit, cfg.AntiDetect.RateBurst),
		core.WithChallengeDetector(cfg.NewChallengeDetector()),
		core.WithHeaderProvider(hp),
		core.WithResourceConfig(cfg.ResourceMonitorConfig()),
		core.WithChallengeHandler(func(site models.SiteID, url string) {
			utils.Warnf("🔐 %s 出现人机验证,请在浏览器窗口中完成验证: %s", site, url)
		}),
	}
}

// persistJobs 保存成功的职位,path 为空时跳过
func persistJobs(path string, results []models.ScrapingResult) error {
	if path == "" {
		return nil
	}
	db, err := store.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	// 中断后仍保存已完成的结果
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	saved, err := db.SaveResults(ctx, results)
	if saved > 0 {
		utils.Infof("💾 已保存%d个职位到 %s", saved, path)
	}
	return err
}

// writeConfigFile 写出配置文件
func writeConfigFile(cfg *core.Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建配置文件失败: %w", err)
	}
	if err := cfg.WriteYAML(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func printSummary(report models.BatchReport) {
	fmt.Println("\n==================================================")
	fmt.Println("📊 爬取统计")
	fmt.Println("==================================================")
	fmt.Printf("✅ 成功: %d\n", report.Succeeded)
	fmt.Printf("❌ 失败: %d\n", report.Failed)
	for kind, n := range report.FailuresByKind {
		fmt.Printf("   - %s: %d\n", kind, n)
	}
	fmt.Printf("⏱️  总耗时: %.2f秒\n", report.Duration)
	fmt.Println(report.Performance.Format())
	fmt.Println("==================================================")

	for _, r := range report.Results {
		if r.Success {
			fmt.Printf("✅ [%s] %s - %s (%s)\n", r.Site, r.Job.Title, r.Job.Company, r.URL)
		} else {
			fmt.Printf("❌ [%s] %s: %s\n", r.Site, r.URL, r.Error)
		}
	}
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "详细输出模式")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")

	// HTTP头部参数
	rootCmd.PersistentFlags().StringVar(&headerConfig, "header-config", "", "HTTP头部配置文件路径 (默认 configs/headers.yaml)")
	rootCmd.PersistentFlags().StringSliceVarP(&headers, "header", "H", []string{}, "自定义HTTP头部,格式: 'Name: Value',可多次指定")

	// 爬取参数
	d := models.DefaultScrapingConfig()
	scrapeCmd.Flags().StringVarP(&targetURL, "url", "u", "", "职位URL (必需,除非使用 --url-file)")
	scrapeCmd.Flags().StringVarP(&urlFile, "url-file", "f", "", "包含URL列表的文件路径")
	scrapeCmd.Flags().BoolVar(&headless, "headless", d.Headless, "无头浏览器模式 (人机验证时无法人工处理)")
	scrapeCmd.Flags().IntVar(&maxRetries, "retries", d.MaxRetries, "最大尝试次数 (1-10)")
	scrapeCmd.Flags().DurationVar(&retryDelay, "retry-delay", d.RetryDelay, "重试基础间隔")
	scrapeCmd.Flags().DurationVarP(&timeout, "timeout", "t", d.Timeout, "单次尝试超时")
	scrapeCmd.Flags().IntVar(&concurrentLimit, "concurrency", d.ConcurrentLimit, "并发会话上限 (1-20)")
	scrapeCmd.Flags().StringVar(&userDataDir, "user-data-dir", "", "浏览器用户数据目录,用于保留登录状态")
	scrapeCmd.Flags().BoolVar(&noValidate, "no-validate", false, "跳过职位数据校验")
	scrapeCmd.Flags().StringVar(&dbPath, "db", "", "SQLite数据库路径 (默认取配置文件)")
	scrapeCmd.Flags().BoolVar(&noStore, "no-store", false, "不保存职位到数据库")
	scrapeCmd.Flags().StringVarP(&reportDir, "report", "o", "", "报告输出目录 (默认取配置文件)")

	// 健康检查参数
	healthCmd.Flags().BoolVar(&probe, "probe", false, "访问站点首页检查可达性")
	healthCmd.Flags().BoolVar(&jsonOutput, "json", false, "以JSON格式输出")

	// 统计参数
	statsCmd.Flags().StringVarP(&statsDir, "report", "o", "", "报告目录 (默认取配置文件)")
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "以JSON格式输出")

	// 配置参数
	validateConfigCmd.Flags().BoolVar(&printConfig, "print-config", false, "输出合并后的有效配置")
	initConfigCmd.Flags().StringVarP(&initOutput, "output", "o", "configs/config.yaml", "输出路径")
	initConfigCmd.Flags().BoolVar(&initForce, "force", false, "覆盖已有文件")

	// 添加子命令
	rootCmd.AddCommand(scrapeCmd, sitesCmd, healthCmd, statsCmd, validateConfigCmd, initConfigCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
