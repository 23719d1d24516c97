package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/iWorld-y/opinion_radar/internal/config"
	"github.com/iWorld-y/opinion_radar/internal/model"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS analysis_reports (
	id SERIAL PRIMARY KEY,
	topic TEXT NOT NULL,
	sentiment_score INT NOT NULL,
	sentiment_label TEXT NOT NULL,
	keywords TEXT NOT NULL DEFAULT '[]',
	report_markdown TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Storage 分析历史的 Postgres 存储。整个存储层是可选的：
// 未配置数据库时引擎拿到的是 nil，所有写入被跳过。
type Storage struct {
	db *sql.DB
}

// NewStorage 建立数据库连接并初始化表结构
func NewStorage(cfg config.DBConfig) (*Storage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

// SaveAnalysis 保存一次分析结果，返回记录 ID
func (s *Storage) SaveAnalysis(ctx context.Context, topic string, report *model.AnalysisReport) (int, error) {
	keywords, err := json.Marshal(report.Keywords)
	if err != nil {
		return 0, err
	}

	// PostgreSQL 文本字段不支持 NULL 字节
	markdown := removeNullBytes(report.ReportMarkdown)

	var id int
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO analysis_reports (topic, sentiment_score, sentiment_label, keywords, report_markdown)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		removeNullBytes(topic), report.SentimentScore, report.SentimentLabel, string(keywords), markdown,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert analysis report: %w", err)
	}
	return id, nil
}

// ListAnalyses 按时间倒序返回最近的分析记录
func (s *Storage) ListAnalyses(ctx context.Context, limit int) ([]model.AnalysisRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, topic, sentiment_score, sentiment_label, keywords, report_markdown, created_at
		 FROM analysis_reports ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query analysis reports: %w", err)
	}
	defer rows.Close()

	var records []model.AnalysisRecord
	for rows.Next() {
		var (
			rec      model.AnalysisRecord
			keywords string
			created  time.Time
		)
		if err := rows.Scan(&rec.ID, &rec.Topic, &rec.SentimentScore, &rec.SentimentLabel, &keywords, &rec.ReportMarkdown, &created); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(keywords), &rec.Keywords); err != nil {
			rec.Keywords = []string{}
		}
		rec.CreatedAt = created.Format(time.RFC3339)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func removeNullBytes(s string) string {
	return strings.ReplaceAll(s, "\x00", "")
}
