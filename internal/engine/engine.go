package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/go-shiori/go-readability"
	"golang.org/x/time/rate"

	"github.com/iWorld-y/opinion_radar/internal/config"
	"github.com/iWorld-y/opinion_radar/internal/logger"
	dm "github.com/iWorld-y/opinion_radar/internal/model"
	"github.com/iWorld-y/opinion_radar/internal/search"
	"github.com/iWorld-y/opinion_radar/internal/search/factory"
	"github.com/iWorld-y/opinion_radar/internal/storage"
)

const (
	// fallbackContext 搜索不可用时注入 Prompt 的固定上下文
	fallbackContext = "搜索失败，仅基于模型知识库分析。"
	// queryTerms 拼在话题后面，引导搜索引擎返回评论与事件类结果
	queryTerms = "最新评论 争议 事件分析"

	maxSearchResults = 5
	minSnippetLen    = 500  // 摘要短于该长度时才尝试抓取原文
	maxContentLen    = 5000 // 单条结果注入 Prompt 的内容上限
)

// Engine 核心处理引擎：搜索上下文 -> 构建 Prompt -> 调用模型并解析报告
type Engine struct {
	cfg       *config.Config
	chatModel model.ChatModel
	searcher  search.Searcher // 为 nil 时搜索能力不可用，走降级上下文
	store     *storage.Storage
	limiter   *rate.Limiter
}

// NewEngine 创建引擎实例。搜索客户端缺失不报错（能力降级），
// 模型密钥不在此处校验，首次调用时才会暴露。
func NewEngine(cfg *config.Config, store *storage.Storage) (*Engine, error) {
	ctx := context.Background()

	// 初始化 LLM
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		Timeout: time.Duration(cfg.LLM.Timeout) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM 初始化失败: %w", err)
	}

	// 初始化限流器
	limit := rate.Limit(float64(cfg.Concurrency.RPM) / 60.0)
	burst := cfg.Concurrency.QPS
	limiter := rate.NewLimiter(limit, burst)

	// 初始化搜索客户端（可选能力）
	searcher, err := factory.NewSearcher(&cfg.Search)
	if err != nil {
		return nil, fmt.Errorf("搜索客户端初始化失败: %w", err)
	}
	if searcher == nil {
		logger.Log.Warn("未配置搜索服务，分析将仅基于模型知识库")
	}

	return &Engine{
		cfg:       cfg,
		chatModel: chatModel,
		searcher:  searcher,
		store:     store,
		limiter:   limiter,
	}, nil
}

func (e *Engine) hasSearch() bool {
	return e.searcher != nil
}

// Analyze 对单个话题执行一次完整的分析流水线。
// 搜索失败与模型输出格式错误都在内部消化；唯一向上传播的错误是模型调用本身失败。
func (e *Engine) Analyze(ctx context.Context, topic string) (*dm.AnalysisReport, error) {
	logger.Log.Infof("正在分析话题: %s", topic)

	contextBlock := e.retrieveContext(ctx, topic)
	prompt := buildPrompt(topic, contextBlock)

	report, err := e.synthesizeReport(ctx, prompt)
	if err != nil {
		return nil, err
	}

	// 历史记录是附加能力，写失败不影响本次请求
	if e.store != nil {
		if _, err := e.store.SaveAnalysis(ctx, topic, report); err != nil {
			logger.Log.Errorf("保存分析记录失败 [%s]: %v", topic, err)
		}
	}

	logger.Log.Infof("话题 [%s] 分析完成 (Score: %d, Label: %s)", topic, report.SentimentScore, report.SentimentLabel)
	return report, nil
}

// retrieveContext 搜索话题相关资讯并拼接为上下文。任何失败都被吸收，
// 返回固定的降级文案，保证流水线无条件继续。
func (e *Engine) retrieveContext(ctx context.Context, topic string) string {
	if !e.hasSearch() {
		return fallbackContext
	}

	req := &search.Request{
		Query:      fmt.Sprintf("%s %s", topic, queryTerms),
		Depth:      "advanced",
		MaxResults: maxSearchResults,
	}

	resp, err := e.searcher.Search(ctx, req)
	if err != nil {
		logger.Log.Errorf("搜索话题失败 [%s]: %v", topic, err)
		return fallbackContext
	}

	lines := make([]string, 0, len(resp.Results))
	for _, item := range resp.Results {
		content := item.Content

		// 摘要太短时尝试抓取原文，失败则继续用摘要
		if e.cfg.Search.FetchFullText && len(content) < minSnippetLen {
			if fetched, err := fetchAndCleanContent(item.URL); err == nil && len(fetched) > len(content) {
				content = fetched
			}
		}
		if len(content) > maxContentLen {
			content = content[:maxContentLen]
		}

		lines = append(lines, fmt.Sprintf("- [%s](%s): %s", item.Title, item.URL, content))
	}

	return strings.Join(lines, "\n")
}

// fetchAndCleanContent 抓取 URL 并提取核心文本
func fetchAndCleanContent(url string) (string, error) {
	article, err := readability.FromURL(url, 30*time.Second)
	if err != nil {
		return "", err
	}
	return article.TextContent, nil
}

// buildPrompt 构建分析 Prompt。纯函数，输出格式是与前端渲染绑定的契约，
// 改动 JSON 字段说明前先确认 model.AnalysisReport 与前端同步修改。
func buildPrompt(topic, contextBlock string) string {
	return fmt.Sprintf(`你是一个高级舆情分析专家。请根据以下互联网搜索结果，对话题“%s”进行深度分析。

搜索结果上下文：
%s

请必须以严格的 JSON 格式输出，不要包含 Markdown 代码块标记（如 `+"```json"+`），直接返回 JSON 字符串。
JSON 结构要求如下：
{
    "sentiment_score": 0-100的整数 (0为极度负面，50中立，100极度正面),
    "sentiment_label": "正面/负面/中立/争议",
    "keywords": ["关键词1", "关键词2", "关键词3", "关键词4", "关键词5"],
    "trend_data": [
        {"date": "最近5天的日期1", "score": 预估热度值0-100},
        {"date": "最近5天的日期2", "score": 预估热度值0-100},
        ...
    ],
    "report_markdown": "这里是一篇结构清晰、排版精美的深度分析报告（Markdown格式）。请包含：事件背景、各方观点、情感分析结论、未来走势预测。请使用emoji修饰标题。"
}`, topic, contextBlock)
}

// synthesizeReport 调用模型生成报告并做防御性解析。
// 模型调用失败向上传播；输出不是合法 JSON 时返回降级报告，不报错。
func (e *Engine) synthesizeReport(ctx context.Context, prompt string) (*dm.AnalysisReport, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	messages := []*schema.Message{
		{Role: schema.System, Content: "你是一个 JSON 生成器。请只输出 JSON 字符串。"},
		{Role: schema.User, Content: prompt},
	}

	resp, err := e.chatModel.Generate(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("模型调用失败: %w", err)
	}

	clean := sanitizeModelOutput(resp.Content)

	var report dm.AnalysisReport
	if err := json.Unmarshal([]byte(clean), &report); err != nil {
		logger.Log.Warnf("模型输出无法解析为 JSON，返回降级报告: %v", err)
		return dm.NewFallbackReport(clean), nil
	}

	// 模型偶尔漏掉数组字段，序列化成 null 会让前端图表挂掉
	if report.Keywords == nil {
		report.Keywords = []string{}
	}
	if report.TrendData == nil {
		report.TrendData = []dm.TrendPoint{}
	}
	return &report, nil
}

// sanitizeModelOutput 清洗模型输出。不做真正的 Markdown 解析，
// 只是把所有 ```json 和 ``` 标记原样移除——模型的围栏使用方式并不一致，
// 宽松处理比严格解析更稳。
func sanitizeModelOutput(raw string) string {
	clean := strings.ReplaceAll(raw, "```json", "")
	clean = strings.ReplaceAll(clean, "```", "")
	return strings.TrimSpace(clean)
}
