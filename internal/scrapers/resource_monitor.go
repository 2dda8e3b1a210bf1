package scrapers

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// ResourceMonitor 系统资源监控器
// 职责: 监控内存和CPU,计算同时打开的页面上限
type ResourceMonitor struct {
	config ResourceMonitorConfig

	lastMemStats runtime.MemStats
	totalMemory  uint64

	// 缓存的CalculateMaxPages结果(每秒更新一次)
	cachedMaxPages int
	lastCacheTime  time.Time
	cacheMu        sync.RWMutex

	lastCPUUsage float64
	cpuUsageMu   sync.RWMutex

	// 保护lastMemStats
	mu sync.RWMutex

	cancelFunc context.CancelFunc
	isRunning  bool
}

// ResourceMonitorConfig 资源监控器配置
type ResourceMonitorConfig struct {
	SafetyReserveMemory int64  // 安全保留内存(字节)
	SafetyThreshold     int64  // 安全阈值(字节)
	CPULoadThreshold    int    // CPU负载阈值(%),>=200表示不检查
	MaxPagesLimit       int    // 绝对最大页面数
	PageMemoryUsage     int64  // 单个页面平均内存消耗(字节)
	TotalMemory         uint64 // 系统总内存,为0时通过gopsutil读取
}

// DefaultResourceMonitorConfig 默认资源配置
func DefaultResourceMonitorConfig() ResourceMonitorConfig {
	return ResourceMonitorConfig{
		SafetyReserveMemory: 1024 * 1024 * 1024,
		SafetyThreshold:     500 * 1024 * 1024,
		CPULoadThreshold:    90,
		MaxPagesLimit:       8,
		PageMemoryUsage:     150 * 1024 * 1024,
	}
}

// MemoryStatus 内存状态信息
type MemoryStatus struct {
	TotalMemory     uint64 // 系统总内存(字节)
	AllocatedMemory uint64 // 当前程序已分配内存(字节)
	AvailableMemory int64  // 可用内存(字节)
	MemoryPressure  string // 内存压力等级
}

// NewResourceMonitor 创建资源监控器实例
func NewResourceMonitor(config ResourceMonitorConfig) *ResourceMonitor {
	if config.PageMemoryUsage <= 0 {
		config.PageMemoryUsage = 150 * 1024 * 1024
	}
	if config.MaxPagesLimit <= 0 {
		config.MaxPagesLimit = 1
	}

	totalMem := config.TotalMemory
	if totalMem == 0 {
		vmStat, err := mem.VirtualMemory()
		if err != nil {
			log.Warn().Err(err).Msg("获取系统内存失败,使用默认值4GB")
			totalMem = 4 * 1024 * 1024 * 1024
		} else {
			totalMem = vmStat.Total
		}
	}
	log.Debug().Msgf("系统总内存: %.2f GB", float64(totalMem)/(1024*1024*1024))

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return &ResourceMonitor{
		config:       config,
		totalMemory:  totalMem,
		lastMemStats: memStats,
	}
}

// StartMonitoring 启动后台采样,重复调用无副作用
func (rm *ResourceMonitor) StartMonitoring(interval time.Duration) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.isRunning {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	rm.cancelFunc = cancel
	rm.isRunning = true

	go rm.monitoringLoop(ctx, interval)
}

func (rm *ResourceMonitor) monitoringLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var memStats runtime.MemStats
			runtime.ReadMemStats(&memStats)

			rm.mu.Lock()
			rm.lastMemStats = memStats
			rm.mu.Unlock()

			if rm.config.CPULoadThreshold < 200 {
				usage := sampleCPU()
				rm.cpuUsageMu.Lock()
				rm.lastCPUUsage = usage
				rm.cpuUsageMu.Unlock()
			}
		}
	}
}

// sampleCPU 所有核心的平均CPU使用率
func sampleCPU() float64 {
	percentages, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil || len(percentages) == 0 {
		log.Debug().Err(err).Msg("获取CPU使用率失败")
		return 0
	}
	return percentages[0]
}

// StopMonitoring 停止后台采样
func (rm *ResourceMonitor) StopMonitoring() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.isRunning && rm.cancelFunc != nil {
		rm.cancelFunc()
		rm.isRunning = false
		rm.cancelFunc = nil
	}
}

func (rm *ResourceMonitor) availableMemory() (allocated uint64, available int64) {
	rm.mu.RLock()
	allocated = rm.lastMemStats.Alloc
	rm.mu.RUnlock()
	return allocated, int64(rm.totalMemory) - int64(allocated) - rm.config.SafetyReserveMemory
}

// CalculateMaxPages 基于可用内存和CPU核数计算允许的最大页面数,至少为1
func (rm *ResourceMonitor) CalculateMaxPages() int {
	rm.cacheMu.RLock()
	if time.Since(rm.lastCacheTime) < time.Second && rm.cachedMaxPages > 0 {
		cached := rm.cachedMaxPages
		rm.cacheMu.RUnlock()
		return cached
	}
	rm.cacheMu.RUnlock()

	_, available := rm.availableMemory()

	byMemory := 1
	if available > rm.config.SafetyThreshold {
		byMemory = int((available - rm.config.SafetyThreshold) / rm.config.PageMemoryUsage)
	}

	result := min(byMemory, runtime.NumCPU(), rm.config.MaxPagesLimit)
	if result < 1 {
		result = 1
	}

	rm.cacheMu.Lock()
	rm.cachedMaxPages = result
	rm.lastCacheTime = time.Now()
	rm.cacheMu.Unlock()

	return result
}

// CheckResourceAvailability 检查当前资源是否允许打开新页面
func (rm *ResourceMonitor) CheckResourceAvailability() (canCreate bool, reason string) {
	_, available := rm.availableMemory()
	if available < rm.config.SafetyThreshold {
		return false, fmt.Sprintf("内存不足(当前%dMB)", available/(1024*1024))
	}

	if rm.config.CPULoadThreshold < 200 {
		rm.cpuUsageMu.RLock()
		usage := rm.lastCPUUsage
		rm.cpuUsageMu.RUnlock()
		if usage > float64(rm.config.CPULoadThreshold) {
			return false, fmt.Sprintf("CPU负载过高(当前%.1f%%)", usage)
		}
	}

	return true, ""
}

// GetMemoryStatus 获取当前内存状态
func (rm *ResourceMonitor) GetMemoryStatus() MemoryStatus {
	allocated, available := rm.availableMemory()

	var pressure string
	switch mb := available / (1024 * 1024); {
	case mb < 200:
		pressure = "emergency"
	case mb < 300:
		pressure = "critical"
	case mb < 500:
		pressure = "warning"
	default:
		pressure = "normal"
	}

	return MemoryStatus{
		TotalMemory:     rm.totalMemory,
		AllocatedMemory: allocated,
		AvailableMemory: available,
		MemoryPressure:  pressure,
	}
}
