// Package storage 运行结果的 PostgreSQL 持久化
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	_ "github.com/lib/pq"

	"github.com/orxan-hv/press_radar/pkg/config"
	"github.com/orxan-hv/press_radar/pkg/logger"
	"github.com/orxan-hv/press_radar/pkg/model"
)

// Postgres 基于 PostgreSQL 的持久化实现
type Postgres struct {
	db *sql.DB
}

// New 建立数据库连接并确保表结构存在
func New(cfg config.DBConfig) (*Postgres, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("数据库连接失败: %w", err)
	}

	p := &Postgres{db: db}
	if err := p.ensureSchema(); err != nil {
		return nil, err
	}
	logger.Log.Infof("数据库连接成功: %s:%d/%s", cfg.Host, cfg.Port, cfg.Name)
	return p, nil
}

// Close 关闭连接
func (p *Postgres) Close() error {
	return p.db.Close()
}

func (p *Postgres) ensureSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS monitor_runs (
	id          SERIAL PRIMARY KEY,
	status      TEXT NOT NULL,
	subjects    TEXT NOT NULL,
	regions     TEXT NOT NULL,
	effort      INT NOT NULL,
	narrative   TEXT,
	rendered    TEXT,
	statistics  JSONB,
	started_at  TIMESTAMPTZ,
	finished_at TIMESTAMPTZ,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS monitor_articles (
	id             SERIAL PRIMARY KEY,
	run_id         INT NOT NULL REFERENCES monitor_runs(id) ON DELETE CASCADE,
	region         TEXT NOT NULL,
	source_name    TEXT,
	language       TEXT,
	title          TEXT NOT NULL,
	url            TEXT,
	sentiment      TEXT,
	score          DOUBLE PRECISION,
	evidence       TEXT,
	theme          TEXT,
	scoring_failed BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_monitor_articles_run ON monitor_articles(run_id);`

	if _, err := p.db.Exec(schema); err != nil {
		return fmt.Errorf("初始化表结构失败: %w", err)
	}
	return nil
}

// SaveRun 保存一次运行及其文章，整体在一个事务里
func (p *Postgres) SaveRun(ctx context.Context, run *model.Run, d *model.Digest) error {
	statsJSON, err := json.Marshal(d.Statistics)
	if err != nil {
		return fmt.Errorf("统计序列化失败: %w", err)
	}

	var subjects, regions []string
	for _, s := range run.Request.Subjects {
		subjects = append(subjects, s.Code)
	}
	for _, r := range run.Request.Regions {
		regions = append(regions, r.Code)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}
	defer tx.Rollback()

	var runID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO monitor_runs (status, subjects, regions, effort, narrative, rendered, statistics, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		string(run.Status),
		strings.Join(subjects, ","),
		strings.Join(regions, ","),
		run.Request.Effort,
		sanitize(d.Narrative),
		sanitize(d.Rendered),
		statsJSON,
		run.StartedAt,
		run.FinishedAt,
	).Scan(&runID)
	if err != nil {
		return fmt.Errorf("保存运行记录失败: %w", err)
	}

	for _, a := range run.Articles() {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO monitor_articles (run_id, region, source_name, language, title, url, sentiment, score, evidence, theme, scoring_failed)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			runID,
			a.OriginRegion,
			sanitize(a.SourceName),
			a.Language,
			sanitize(a.Title),
			a.URL,
			string(a.Sentiment),
			a.Score,
			sanitize(a.Evidence),
			sanitize(a.Theme),
			a.ScoringFailed,
		)
		if err != nil {
			return fmt.Errorf("保存文章失败: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}
	logger.Log.Infof("运行记录已保存: id=%d, articles=%d", runID, len(run.Articles()))
	return nil
}

// RunSummary 历史运行摘要行
type RunSummary struct {
	ID         int64     `json:"id"`
	Status     string    `json:"status"`
	Subjects   string    `json:"subjects"`
	Regions    string    `json:"regions"`
	Effort     int       `json:"effort"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// RecentRuns 按时间倒序列出最近的运行
func (p *Postgres) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, status, subjects, regions, effort, started_at, finished_at
		FROM monitor_runs ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("查询运行记录失败: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.Status, &r.Subjects, &r.Regions, &r.Effort, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("读取运行记录失败: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// sanitize 清理非法 UTF-8 与 NUL 字节，PostgreSQL 的 TEXT 不接受 \x00
func sanitize(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	return strings.ReplaceAll(s, "\x00", "")
}
