// Package store 将爬取到的职位保存到SQLite
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RecoveryAshes/JobScraper/internal/models"
	"github.com/RecoveryAshes/JobScraper/internal/utils"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// ErrNotFound 职位不存在
var ErrNotFound = errors.New("职位不存在")

// schemaVersion 当前表结构版本,记录在 PRAGMA user_version
const schemaVersion = 1

// Store 职位存储,URL为唯一键
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open 打开数据库,不存在时创建文件和表结构
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("数据库路径不能为空")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("创建数据库目录失败: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	// SQLite 只允许一个写连接
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("初始化表结构失败: %w", err)
	}

	s := &Store{db: db, log: utils.WithComponent("store")}
	s.log.Info().Str("path", path).Int("schema_version", schemaVersion).Msg("数据库已就绪")
	return s, nil
}

func migrate(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRow(`PRAGMA user_version;`).Scan(&v); err != nil {
		return err
	}
	if v >= schemaVersion {
		return tx.Commit()
	}

	stmts := []string{`
CREATE TABLE IF NOT EXISTS jobs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  job_id TEXT NOT NULL,
  source_id TEXT NOT NULL DEFAULT '',
  site TEXT NOT NULL,
  url TEXT UNIQUE NOT NULL,
  title TEXT NOT NULL,
  company TEXT NOT NULL,
  location TEXT NOT NULL DEFAULT '',
  salary TEXT NOT NULL DEFAULT '',
  experience TEXT NOT NULL DEFAULT '',
  education TEXT NOT NULL DEFAULT '',
  description TEXT NOT NULL DEFAULT '',
  requirements TEXT NOT NULL DEFAULT '',
  skills TEXT NOT NULL DEFAULT '[]',
  scraped_at TEXT NOT NULL,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_site ON jobs(site);`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_scraped_at ON jobs(scraped_at);`,
		fmt.Sprintf(`PRAGMA user_version = %d;`, schemaVersion),
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Close 关闭数据库
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveJob 按URL插入或更新职位,重复保存时保留首次入库时间
func (s *Store) SaveJob(ctx context.Context, job *models.Job) error {
	if job == nil || job.URL == "" {
		return fmt.Errorf("职位或URL为空")
	}

	skills := job.Skills
	if skills == nil {
		skills = []string{}
	}
	skillsJSON, err := json.Marshal(skills)
	if err != nil {
		return fmt.Errorf("序列化技能失败: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx, `
INSERT INTO jobs (job_id, source_id, site, url, title, company, location, salary, experience, education,
                  description, requirements, skills, scraped_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(url) DO UPDATE SET
  source_id = excluded.source_id,
  site = excluded.site,
  title = excluded.title,
  company = excluded.company,
  location = excluded.location,
  salary = excluded.salary,
  experience = excluded.experience,
  education = excluded.education,
  description = excluded.description,
  requirements = excluded.requirements,
  skills = excluded.skills,
  scraped_at = excluded.scraped_at,
  updated_at = excluded.updated_at;`,
		job.ID, job.SourceID, string(job.Site), job.URL, job.Title, job.Company,
		job.Location, job.Salary, job.Experience, job.Education,
		job.Description, job.Requirements, string(skillsJSON),
		job.ScrapedAt.UTC().Format(time.RFC3339Nano), now, now,
	)
	if err != nil {
		return fmt.Errorf("保存职位失败 [%s]: %w", job.URL, err)
	}
	return nil
}

const selectColumns = `job_id, source_id, site, url, title, company, location, salary, experience, education,
description, requirements, skills, scraped_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	var (
		job        models.Job
		site       string
		skillsJSON string
		scrapedAt  string
	)
	err := row.Scan(&job.ID, &job.SourceID, &site, &job.URL, &job.Title, &job.Company,
		&job.Location, &job.Salary, &job.Experience, &job.Education,
		&job.Description, &job.Requirements, &skillsJSON, &scrapedAt)
	if err != nil {
		return nil, err
	}

	job.Site = models.SiteID(site)
	if err := json.Unmarshal([]byte(skillsJSON), &job.Skills); err != nil {
		return nil, fmt.Errorf("解析技能失败 [%s]: %w", job.URL, err)
	}
	if job.Skills == nil {
		job.Skills = []string{}
	}
	if t, err := time.Parse(time.RFC3339Nano, scrapedAt); err == nil {
		job.ScrapedAt = t
	}
	return &job, nil
}

// GetJobByURL 按URL查询职位,不存在时返回 ErrNotFound
func (s *Store) GetJobByURL(ctx context.Context, url string) (*models.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM jobs WHERE url = ?;`, url)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询职位失败: %w", err)
	}
	return job, nil
}

// ListOptions 列表查询条件
type ListOptions struct {
	Site  models.SiteID // 为空表示全部站点
	Limit int           // <=0 表示不限制
}

// ListJobs 按爬取时间倒序列出职位
func (s *Store) ListJobs(ctx context.Context, opts ListOptions) ([]*models.Job, error) {
	var (
		where []string
		args  []any
	)
	if opts.Site != "" {
		where = append(where, "site = ?")
		args = append(args, string(opts.Site))
	}

	q := `SELECT ` + selectColumns + ` FROM jobs`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY scraped_at DESC, id DESC`
	if opts.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("查询职位列表失败: %w", err)
	}
	defer rows.Close()

	var out []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// Count 职位总数
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("统计职位失败: %w", err)
	}
	return n, nil
}

// SaveResults 保存批量结果中成功的职位,返回保存数量
func (s *Store) SaveResults(ctx context.Context, results []models.ScrapingResult) (int, error) {
	saved := 0
	var errs []error
	for _, r := range results {
		if !r.Success || r.Job == nil {
			continue
		}
		if err := s.SaveJob(ctx, r.Job); err != nil {
			s.log.Warn().Err(err).Str("url", r.URL).Msg("保存职位失败")
			errs = append(errs, err)
			continue
		}
		saved++
	}
	return saved, errors.Join(errs...)
}
