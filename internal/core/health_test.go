package core

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/RecoveryAshes/JobScraper/internal/antidetect"
	"github.com/RecoveryAshes/JobScraper/internal/models"
	"github.com/andybalholm/brotli"
)

const landingPage = `<html><head><title>首页</title></head><body>找工作上这里</body></html>`

func compress(t *testing.T, encoding string, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	switch encoding {
	case "gzip":
		w := gzip.NewWriter(&buf)
		w.Write(data)
		w.Close()
	case "deflate":
		w, _ := flate.NewWriter(&buf, flate.DefaultCompression)
		w.Write(data)
		w.Close()
	case "br":
		w := brotli.NewWriter(&buf)
		w.Write(data)
		w.Close()
	default:
		return data
	}
	return buf.Bytes()
}

func TestDecodeBody(t *testing.T) {
	raw := []byte(landingPage)
	for _, enc := range []string{"", "identity", "gzip", "deflate", "br", "x-unknown"} {
		t.Run("编码"+enc, func(t *testing.T) {
			got, err := decodeBody(enc, compress(t, enc, raw))
			if err != nil {
				t.Fatalf("decodeBody() error = %v", err)
			}
			if !bytes.Equal(got, raw) {
				t.Errorf("decodeBody() = %q", got)
			}
		})
	}

	t.Run("已解压的gzip原样返回", func(t *testing.T) {
		got, err := decodeBody("gzip", raw)
		if err != nil || !bytes.Equal(got, raw) {
			t.Errorf("decodeBody() = %q, %v", got, err)
		}
	})

	t.Run("损坏的brotli数据", func(t *testing.T) {
		if _, err := decodeBody("br", []byte("not brotli at all")); err == nil {
			t.Error("期望返回错误")
		}
	})
}

func TestHealthStatus(t *testing.T) {
	ok := models.SiteHealth{Available: true}
	probedOK := models.SiteHealth{Available: true, Probed: true, Reachable: true}
	unreachable := models.SiteHealth{Available: true, Probed: true}
	challenged := models.SiteHealth{Available: true, Probed: true, Reachable: true, Challenged: true}
	down := models.SiteHealth{}

	tests := []struct {
		name   string
		sites  []models.SiteHealth
		closed bool
		want   string
	}{
		{"全部可用未探测", []models.SiteHealth{ok, ok}, false, models.HealthHealthy},
		{"全部可达", []models.SiteHealth{probedOK, probedOK}, false, models.HealthHealthy},
		{"部分不可达", []models.SiteHealth{probedOK, unreachable}, false, models.HealthDegraded},
		{"首页返回验证", []models.SiteHealth{challenged, probedOK}, false, models.HealthDegraded},
		{"部分不可用", []models.SiteHealth{ok, down}, false, models.HealthDegraded},
		{"全部不可用", []models.SiteHealth{down, down}, false, models.HealthUnhealthy},
		{"已关闭", []models.SiteHealth{ok, ok}, true, models.HealthUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := healthStatus(tt.sites, tt.closed); got != tt.want {
				t.Errorf("healthStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCollyProber(t *testing.T) {
	tests := []struct {
		name           string
		status         int
		encoding       string
		body           string
		wantReachable  bool
		wantChallenged bool
	}{
		{"正常首页", http.StatusOK, "", landingPage, true, false},
		{"brotli压缩", http.StatusOK, "br", landingPage, true, false},
		{"deflate压缩", http.StatusOK, "deflate", landingPage, true, false},
		{"验证页", http.StatusOK, "", `<html><head><title>安全验证</title></head><body>请输入验证码</body></html>`, true, true},
		{"服务端错误", http.StatusServiceUnavailable, "", "busy", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mu sync.Mutex
			var gotUA, gotReferer string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				mu.Lock()
				gotUA = r.Header.Get("User-Agent")
				gotReferer = r.Header.Get("Referer")
				mu.Unlock()
				if tt.encoding != "" {
					w.Header().Set("Content-Encoding", tt.encoding)
				}
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				w.WriteHeader(tt.status)
				w.Write(compress(t, tt.encoding, []byte(tt.body)))
			}))
			defer srv.Close()

			anti := antidetect.NewManager(antidetect.Options{UserAgents: []string{"ProbeTest/1.0"}})
			prober := NewCollyProber(anti, staticHeaders{"Referer": {"https://example.com/"}}, nil, 5*time.Second)

			h := prober.Probe(context.Background(), models.SiteInfo{ID: models.SiteBoss, HomeURL: srv.URL})
			if !h.Probed || h.Reachable != tt.wantReachable || h.Challenged != tt.wantChallenged {
				t.Errorf("Probe() = %+v", h)
			}
			if h.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", h.StatusCode, tt.status)
			}
			if !tt.wantReachable && h.Error == "" {
				t.Error("不可达时应记录错误")
			}
			mu.Lock()
			defer mu.Unlock()
			if gotUA != "ProbeTest/1.0" || gotReferer != "https://example.com/" {
				t.Errorf("请求头未生效: UA=%q Referer=%q", gotUA, gotReferer)
			}
		})
	}
}

func TestCollyProber_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	h := NewCollyProber(nil, nil, nil, time.Second).Probe(context.Background(), models.SiteInfo{ID: models.SiteLagou, HomeURL: url})
	if h.Reachable || h.Error == "" || !h.Probed {
		t.Errorf("Probe() = %+v", h)
	}
}

func TestCollyProber_ContextCanceled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	h := NewCollyProber(nil, nil, nil, 10*time.Second).Probe(ctx, models.SiteInfo{ID: models.SiteBoss, HomeURL: srv.URL})
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("取消后探测耗时 %v, 应立即返回", elapsed)
	}
	if h.Reachable || h.Error == "" {
		t.Errorf("Probe() = %+v, 取消后应不可达且带错误", h)
	}
}

type staticHeaders http.Header

func (s staticHeaders) GetHeaders() (http.Header, error) { return http.Header(s).Clone(), nil }

// fakeProber 按站点返回预设结果
type fakeProber map[models.SiteID]models.SiteHealth

func (f fakeProber) Probe(ctx context.Context, site models.SiteInfo) models.SiteHealth {
	return f[site.ID]
}

func TestHealthCheck(t *testing.T) {
	reachable := models.SiteHealth{Probed: true, Reachable: true, StatusCode: 200}
	unreachable := models.SiteHealth{Probed: true, Error: "timeout"}

	tests := []struct {
		name       string
		probe      bool
		prober     fakeProber
		closeLagou bool
		wantStatus string
		wantAvail  int
		wantProbed bool
	}{
		{"未开启探测", false, nil, false, models.HealthHealthy, 2, false},
		{"全部可达", true, fakeProber{models.SiteBoss: reachable, models.SiteLagou: reachable}, false, models.HealthHealthy, 2, true},
		{"拉勾不可达", true, fakeProber{models.SiteBoss: reachable, models.SiteLagou: unreachable}, false, models.HealthDegraded, 2, true},
		{"拉勾爬取器已关闭", false, nil, true, models.HealthDegraded, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.ProbeReachability = tt.probe

			boss, lagou := newFake(models.SiteBoss), newFake(models.SiteLagou)
			var opts []Option
			if tt.prober != nil {
				opts = append(opts, WithProber(tt.prober))
			}
			o := newTestOrchestrator(t, cfg, boss, lagou, opts...)
			if tt.closeLagou {
				lagou.Close()
			}

			h := o.HealthCheck(context.Background())
			if h.Status != tt.wantStatus || h.ScrapersAvailable != tt.wantAvail {
				t.Errorf("Status = %s, ScrapersAvailable = %d, want %s, %d", h.Status, h.ScrapersAvailable, tt.wantStatus, tt.wantAvail)
			}
			if len(h.Sites) != 2 || h.Sites[0].Site != models.SiteBoss || h.Sites[1].Site != models.SiteLagou {
				t.Fatalf("Sites = %+v", h.Sites)
			}
			if h.Sites[0].Probed != tt.wantProbed {
				t.Errorf("Probed = %v, want %v", h.Sites[0].Probed, tt.wantProbed)
			}
			if len(h.SupportedSites) != 2 || h.Config.ConcurrentLimit != cfg.ConcurrentLimit || h.Timestamp.IsZero() {
				t.Errorf("报告元数据不完整: %+v", h)
			}
		})
	}
}
