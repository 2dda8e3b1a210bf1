package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestHeaderConfigLoader_LoadConfig(t *testing.T) {
	t.Run("首次运行自动生成配置文件", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "nested", "headers.yaml")
		loader := NewHeaderConfigLoader(configPath)

		cfg, err := loader.LoadConfig()
		if err != nil {
			t.Fatalf("加载配置失败: %v", err)
		}
		data, err := os.ReadFile(configPath)
		if err != nil {
			t.Fatalf("配置文件应该被自动生成: %v", err)
		}
		if string(data) != Template() {
			t.Error("生成的文件应与内置模板一致")
		}
		if cfg.Headers == nil || len(cfg.Headers) != 0 {
			t.Errorf("模板应解析为空头部, got %v", cfg.Headers)
		}
	})

	tests := []struct {
		name    string
		content string
		want    map[string]string
		wantErr bool
	}{
		{
			name:    "加载已存在的配置文件",
			content: "headers:\n  Referer: \"https://www.zhipin.com/\"\n  X-Custom: \"test value\"\n",
			// viper会将键名转换为小写
			want: map[string]string{"referer": "https://www.zhipin.com/", "x-custom": "test value"},
		},
		{
			name:    "YAML格式错误返回错误",
			content: "headers:\n  Referer: \"broken\n  X-Custom: missing quote\n",
			wantErr: true,
		},
		{name: "空headers", content: "headers:", want: map[string]string{}},
		{name: "空文件", content: "", want: map[string]string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "headers.yaml")
			if err := os.WriteFile(configPath, []byte(tt.content), 0644); err != nil {
				t.Fatalf("写入测试配置失败: %v", err)
			}

			cfg, err := NewHeaderConfigLoader(configPath).LoadConfig()
			if tt.wantErr {
				if err == nil {
					t.Fatal("期望返回错误,但成功了")
				}
				return
			}
			if err != nil {
				t.Fatalf("加载配置失败: %v", err)
			}
			if len(cfg.Headers) != len(tt.want) {
				t.Fatalf("Headers = %v, want %v", cfg.Headers, tt.want)
			}
			for k, v := range tt.want {
				if cfg.Headers[k] != v {
					t.Errorf("%s = %q, want %q", k, cfg.Headers[k], v)
				}
			}
		})
	}

	t.Run("配置文件大小验证", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "headers.yaml")
		large := "headers:\n  X-Pad: \"" + strings.Repeat("a", MaxConfigFileSize) + "\"\n"
		if err := os.WriteFile(configPath, []byte(large), 0644); err != nil {
			t.Fatalf("写入大配置失败: %v", err)
		}
		if _, err := NewHeaderConfigLoader(configPath).LoadConfig(); err == nil {
			t.Fatal("期望超大配置文件被拒绝,但成功了")
		}
	})
}

func TestNewHeaderConfigLoader_DefaultPath(t *testing.T) {
	if got := NewHeaderConfigLoader("").Path(); got != DefaultConfigFile {
		t.Errorf("Path() = %q, want %q", got, DefaultConfigFile)
	}
}
