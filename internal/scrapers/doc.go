// Package scrapers 提供BOSS直聘和拉勾网职位详情页的浏览器爬取
//
// # 概述
//
// 每个站点对应一个 Scraper 实现,共享同一套页面爬取流程,只在URL校验、
// 详情区域选择器和HTML解析上有差异。浏览器基于go-rod,首次爬取时启动,
// 同一站点的并发爬取各自独占一个页面。
//
// # 核心组件
//
// ## BossScraper / LagouScraper
//
//	scraper := NewBossScraper(Options{Config: cfg, AntiDetect: manager})
//	defer scraper.Close()
//
//	job, err := scraper.Scrape(ctx, "https://www.zhipin.com/job_detail/abc123.html")
//	if err != nil {
//	    kind := models.KindOf(err) // network / verification / extraction / ...
//	}
//
// 爬取流程:
//   - 校验URL路径是否为职位详情页
//   - 从页面池获取独占页面(所有路径上归还)
//   - 设置UA和额外请求头,按反检测策略等待
//   - 导航并等待加载
//   - 检测人机验证: 无头模式直接失败,有头模式轮询等待人工完成
//   - 模拟浏览行为,等待详情区域出现
//   - 读取HTML并解析
//
// ## ParseBossHTML / ParseLagouHTML
//
// 纯函数,输入页面HTML输出职位,不依赖浏览器,便于离线测试。
// 标题或公司缺失时返回错误,其余字段缺失时留空。
//
// ## Browser
//
// 单个站点共享的浏览器。用户数据目录通过文件锁独占,未配置目录时使用
// 临时目录并在关闭时删除。浏览器崩溃后下一次爬取会重新启动。
//
// ## PagePool (页面池)
//
// 管理页面生命周期,页面数受并发上限和 ResourceMonitor 共同限制。
// 归还页面时导航到空白页,重置失败依次执行: 重试、标记为脏、销毁。
//
// ## ResourceMonitor (资源监控器)
//
// 采样可用内存和CPU负载,计算允许同时打开的页面数:
//
//	config := ResourceMonitorConfig{
//	    SafetyReserveMemory: 1024 * 1024 * 1024, // 1GB
//	    SafetyThreshold:     500 * 1024 * 1024,  // 500MB
//	    CPULoadThreshold:    90,
//	    MaxPagesLimit:       8,
//	    PageMemoryUsage:     150 * 1024 * 1024,  // 150MB per page
//	}
//	monitor := NewResourceMonitor(config)
//	monitor.StartMonitoring(2 * time.Second)
//	defer monitor.StopMonitoring()
//
// # 配置参数 (configs/config.yaml)
//
//	resource:
//	  safety_reserve_memory: 1024  # 系统预留内存(MB)
//	  safety_threshold: 500        # 可用内存阈值(MB)
//	  cpu_load_threshold: 90       # CPU负载阈值(%)
//	  max_pages_limit: 8           # 绝对最大页面数
//
// # 并发安全
//
//   - PagePool: channel + sync.Mutex
//   - ResourceMonitor: sync.RWMutex
//   - Browser: sync.Mutex 保护启动和关闭
package scrapers
