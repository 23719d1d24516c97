package server

import (
	"context"
	"embed"
	"encoding/json"
	nethttp "net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"

	"github.com/iWorld-y/opinion_radar/internal/config"
	"github.com/iWorld-y/opinion_radar/internal/logger"
	"github.com/iWorld-y/opinion_radar/internal/model"
)

//go:embed assets/*
var assets embed.FS

// Analyzer 分析流水线入口，由 engine.Engine 实现
type Analyzer interface {
	Analyze(ctx context.Context, topic string) (*model.AnalysisReport, error)
}

// History 历史记录查询，由 storage.Storage 实现；存储未启用时为 nil
type History interface {
	ListAnalyses(ctx context.Context, limit int) ([]model.AnalysisRecord, error)
}

// NewHTTPServer 创建 HTTP 服务：分析接口、健康检查、历史查询与内嵌的仪表盘页面
func NewHTTPServer(c *config.ServerConfig, eng Analyzer, hist History) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
		),
		http.Filter(corsFilter),
	}
	if c.Addr != "" {
		opts = append(opts, http.Address(c.Addr))
	}
	if c.Timeout > 0 {
		opts = append(opts, http.Timeout(time.Duration(c.Timeout)*time.Second))
	}

	srv := http.NewServer(opts...)

	srv.HandleFunc("/health", handleHealth)
	srv.HandleFunc("/api/analyze", handleAnalyze(eng))
	srv.HandleFunc("/api/history", handleHistory(hist))

	// Serve Static Assets (HTML)
	// We handle "/" manually to serve index.html
	srv.HandleFunc("/", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.URL.Path != "/" {
			nethttp.NotFound(w, r)
			return
		}
		content, _ := assets.ReadFile("assets/index.html")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(content)
	})

	return srv
}

// corsFilter 允许任意来源跨域。服务面向本地/内网仪表盘，不做鉴权与限流。
func corsFilter(next nethttp.Handler) nethttp.Handler {
	return nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "*")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == nethttp.MethodOptions {
			w.WriteHeader(nethttp.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func handleHealth(w nethttp.ResponseWriter, r *nethttp.Request) {
	writeJSON(w, nethttp.StatusOK, map[string]string{"status": "ok"})
}

// analyzeRequest POST /api/analyze 的请求体
type analyzeRequest struct {
	Topic string `json:"topic"`
}

func handleAnalyze(eng Analyzer) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			writeJSON(w, nethttp.StatusMethodNotAllowed, map[string]string{"detail": "method not allowed"})
			return
		}

		var req analyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, nethttp.StatusBadRequest, map[string]string{"detail": "invalid request body"})
			return
		}
		if strings.TrimSpace(req.Topic) == "" {
			writeJSON(w, nethttp.StatusBadRequest, map[string]string{"detail": "topic is required"})
			return
		}

		report, err := eng.Analyze(r.Context(), req.Topic)
		if err != nil {
			logger.Log.Errorf("分析失败 [%s]: %v", req.Topic, err)
			writeJSON(w, nethttp.StatusInternalServerError, map[string]string{"detail": "Model Error: " + err.Error()})
			return
		}

		writeJSON(w, nethttp.StatusOK, report)
	}
}

func handleHistory(hist History) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			writeJSON(w, nethttp.StatusMethodNotAllowed, map[string]string{"detail": "method not allowed"})
			return
		}

		// 存储未启用时返回空列表而不是错误，前端无需感知部署差异
		if hist == nil {
			writeJSON(w, nethttp.StatusOK, map[string]interface{}{"reports": []model.AnalysisRecord{}})
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		records, err := hist.ListAnalyses(r.Context(), limit)
		if err != nil {
			logger.Log.Errorf("查询历史记录失败: %v", err)
			writeJSON(w, nethttp.StatusInternalServerError, map[string]string{"detail": err.Error()})
			return
		}
		if records == nil {
			records = []model.AnalysisRecord{}
		}
		writeJSON(w, nethttp.StatusOK, map[string]interface{}{"reports": records})
	}
}

func writeJSON(w nethttp.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Errorf("写响应失败: %v", err)
	}
}
