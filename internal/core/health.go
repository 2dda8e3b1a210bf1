package core

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/RecoveryAshes/JobScraper/internal/antidetect"
	"github.com/RecoveryAshes/JobScraper/internal/models"
	"github.com/RecoveryAshes/JobScraper/internal/utils"
	"github.com/andybalholm/brotli"
	"github.com/gocolly/colly/v2"
)

const defaultProbeTimeout = 15 * time.Second

// Prober 站点可达性探测
type Prober interface {
	// Probe 探测站点首页,返回的结果中 Probed 恒为true
	Probe(ctx context.Context, site models.SiteInfo) models.SiteHealth
}

// CollyProber 基于Colly的首页探测
// 请求携带轮换的UA和附加头部,响应经解压后交给人机验证识别器检查
type CollyProber struct {
	anti      *antidetect.Manager
	headers   models.HeaderProvider
	challenge *antidetect.ChallengeDetector
	timeout   time.Duration
}

// NewCollyProber 创建探测器,timeout <= 0 时使用15秒
func NewCollyProber(anti *antidetect.Manager, headers models.HeaderProvider, challenge *antidetect.ChallengeDetector, timeout time.Duration) *CollyProber {
	if anti == nil {
		anti = antidetect.NewManager(antidetect.Options{})
	}
	if challenge == nil {
		challenge = antidetect.NewChallengeDetector(nil, nil)
	}
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	return &CollyProber{
		anti:      anti,
		headers:   headers,
		challenge: challenge,
		timeout:   timeout,
	}
}

// Probe 实现Prober
func (p *CollyProber) Probe(ctx context.Context, site models.SiteInfo) models.SiteHealth {
	h := models.SiteHealth{Site: site.ID, Probed: true}
	if err := ctx.Err(); err != nil {
		h.Error = err.Error()
		return h
	}

	timeout := p.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}

	c := colly.NewCollector(
		colly.UserAgent(p.anti.SelectUserAgent()),
		colly.ParseHTTPErrorResponse(),
		colly.AllowURLRevisit(),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(timeout)

	var extra map[string][]string
	if p.headers != nil {
		hdr, err := p.headers.GetHeaders()
		if err != nil {
			utils.Warnf("获取HTTP头部失败: %v", err)
		} else {
			extra = hdr
		}
	}

	c.OnRequest(func(r *colly.Request) {
		for name, values := range extra {
			if len(values) > 0 {
				r.Headers.Set(name, values[0])
			}
		}
		r.Headers.Set("Accept-Encoding", "gzip, deflate, br")
	})

	var body []byte
	c.OnResponse(func(r *colly.Response) {
		h.StatusCode = r.StatusCode
		decoded, err := decodeBody(r.Headers.Get("Content-Encoding"), r.Body)
		if err != nil {
			utils.Debugf("解压探测响应失败 [%s]: %v", site.HomeURL, err)
			decoded = r.Body
		}
		body = decoded
	})

	var visitErr error
	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			h.StatusCode = r.StatusCode
		}
		visitErr = err
	})

	start := time.Now()
	if err := c.Visit(site.HomeURL); err != nil && visitErr == nil {
		visitErr = err
	}
	h.Latency = time.Since(start)

	if visitErr != nil {
		h.Error = visitErr.Error()
		utils.Debugf("探测 %s 失败: %v", site.HomeURL, visitErr)
		return h
	}

	h.Reachable = h.StatusCode > 0 && h.StatusCode < 400
	h.Challenged = p.challenge.Detect(string(body))
	if !h.Reachable {
		h.Error = fmt.Sprintf("HTTP %d", h.StatusCode)
	}
	utils.Debugf("探测 %s: 状态码=%d 耗时=%v 验证页=%v", site.HomeURL, h.StatusCode, h.Latency, h.Challenged)
	return h
}

// decodeBody 按Content-Encoding解压响应体
// Colly会自行解压gzip,因此gzip仅在数据仍带有gzip魔数时处理
func decodeBody(contentEncoding string, body []byte) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "gzip":
		if len(body) < 2 || body[0] != 0x1f || body[1] != 0x8b {
			return body, nil
		}
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip解压失败: %w", err)
		}
		defer reader.Close()
		out, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("gzip读取失败: %w", err)
		}
		return out, nil

	case "deflate":
		reader := flate.NewReader(bytes.NewReader(body))
		defer reader.Close()
		out, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("deflate读取失败: %w", err)
		}
		return out, nil

	case "br":
		out, err := io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
		if err != nil {
			return nil, fmt.Errorf("brotli读取失败: %w", err)
		}
		return out, nil

	case "", "identity":
		return body, nil

	default:
		utils.Warnf("未知的Content-Encoding: %s", contentEncoding)
		return body, nil
	}
}

// healthStatus 根据各站点状态汇总整体状态
func healthStatus(sites []models.SiteHealth, closed bool) string {
	available := 0
	healthy := true
	for _, s := range sites {
		if !s.Available {
			healthy = false
			continue
		}
		available++
		if s.Probed && (!s.Reachable || s.Challenged) {
			healthy = false
		}
	}
	switch {
	case closed || available == 0:
		return models.HealthUnhealthy
	case healthy:
		return models.HealthHealthy
	default:
		return models.HealthDegraded
	}
}
