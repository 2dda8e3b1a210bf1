package main

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/shirou/gopsutil/v3/mem"
)

// minGoMinor 最低Go次版本号
const minGoMinor = 24

func main() {
	fmt.Println("==============================================")
	fmt.Println("  JobScraper 环境验证")
	fmt.Println("==============================================")
	fmt.Println()

	allOK := true

	// 检查Go版本
	goVersion := runtime.Version()
	fmt.Printf("✅ Go版本: %s\n", goVersion)
	if !goVersionAtLeast(goVersion, minGoMinor) {
		fmt.Printf("⚠️  警告: 建议使用Go 1.%d+版本\n", minGoMinor)
	}

	// 检查操作系统
	fmt.Printf("✅ 操作系统: %s/%s\n", runtime.GOOS, runtime.GOARCH)

	// 检查浏览器
	if path, ok := launcher.LookPath(); ok {
		fmt.Printf("✅ 找到浏览器: %s\n", path)
	} else {
		fmt.Println("⚠️  未找到Chrome/Chromium - 首次运行时将自动下载")
	}

	// 检查内存
	if vm, err := mem.VirtualMemory(); err == nil {
		fmt.Printf("✅ 内存: 总计 %.1f GB, 可用 %.1f GB\n",
			float64(vm.Total)/(1<<30), float64(vm.Available)/(1<<30))
		if vm.Available < 1<<30 {
			fmt.Println("⚠️  可用内存不足1GB,建议降低 --concurrency")
		}
	} else {
		fmt.Printf("⚠️  无法读取内存信息: %v\n", err)
	}

	// 检查项目依赖
	fmt.Println()
	fmt.Println("检查Go模块依赖...")
	if _, err := os.Stat("go.mod"); err == nil {
		fmt.Println("✅ go.mod文件存在")

		fmt.Println("正在下载依赖...")
		cmd := exec.Command("go", "mod", "download")
		if err := cmd.Run(); err != nil {
			fmt.Printf("❌ go mod download失败: %v\n", err)
			allOK = false
		} else {
			fmt.Println("✅ 依赖下载完成")
		}
	} else {
		fmt.Println("❌ go.mod文件不存在")
		allOK = false
	}

	// 检查项目结构
	fmt.Println()
	fmt.Println("检查项目结构...")
	requiredDirs := []string{
		"cmd/jobscraper",
		"internal/core",
		"internal/scrapers",
		"internal/antidetect",
		"internal/store",
		"internal/utils",
		"internal/models",
	}

	for _, dir := range requiredDirs {
		if _, err := os.Stat(dir); err == nil {
			fmt.Printf("✅ %s/\n", dir)
		} else {
			fmt.Printf("❌ %s/ 不存在\n", dir)
			allOK = false
		}
	}

	fmt.Println()
	fmt.Println("==============================================")
	if allOK {
		fmt.Println("✅ 环境验证通过!")
		fmt.Println()
		fmt.Println("下一步:")
		fmt.Println("  1. 运行 'go build -o jobscraper ./cmd/jobscraper' 构建项目")
		fmt.Println("  2. 运行 './jobscraper init-config' 生成配置文件")
		fmt.Println("  3. 运行 './jobscraper health --probe' 检查站点状态")
		os.Exit(0)
	} else {
		fmt.Println("❌ 环境验证失败,请解决上述问题。")
		os.Exit(1)
	}
}

// goVersionAtLeast 比较 "go1.N" 形式的版本号
func goVersionAtLeast(version string, minor int) bool {
	rest, ok := strings.CutPrefix(version, "go1.")
	if !ok {
		return false
	}
	if i := strings.IndexAny(rest, ".-rc beta"); i >= 0 {
		rest = rest[:i]
	}
	n, err := strconv.Atoi(rest)
	return err == nil && n >= minor
}
