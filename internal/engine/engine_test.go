package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"

	"github.com/iWorld-y/opinion_radar/internal/config"
	"github.com/iWorld-y/opinion_radar/internal/search"
)

// mockChatModel 模拟模型客户端
type mockChatModel struct {
	content string
	err     error
}

func (m *mockChatModel) Generate(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &schema.Message{Role: schema.Assistant, Content: m.content}, nil
}

func (m *mockChatModel) Stream(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func (m *mockChatModel) BindTools(tools []*schema.ToolInfo) error { return nil }

// mockSearcher 模拟搜索客户端
type mockSearcher struct {
	results []search.Result
	err     error
}

func (m *mockSearcher) Search(ctx context.Context, req *search.Request) (*search.Response, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &search.Response{Results: m.results}, nil
}

func newTestEngine(cm model.ChatModel, s search.Searcher) *Engine {
	return &Engine{
		cfg:       &config.Config{},
		chatModel: cm,
		searcher:  s,
		limiter:   rate.NewLimiter(rate.Inf, 1),
	}
}

func TestRetrieveContext_Format(t *testing.T) {
	s := &mockSearcher{results: []search.Result{
		{Title: "标题一", URL: "https://a.example.com", Content: "内容一"},
		{Title: "标题二", URL: "https://b.example.com", Content: "内容二"},
	}}
	e := newTestEngine(&mockChatModel{}, s)

	got := e.retrieveContext(context.Background(), "某话题")
	want := "- [标题一](https://a.example.com): 内容一\n- [标题二](https://b.example.com): 内容二"
	if got != want {
		t.Errorf("retrieveContext() = %q, want %q", got, want)
	}
}

func TestRetrieveContext_SearchError(t *testing.T) {
	e := newTestEngine(&mockChatModel{}, &mockSearcher{err: errors.New("connection refused")})
	if got := e.retrieveContext(context.Background(), "某话题"); got != fallbackContext {
		t.Errorf("retrieveContext() = %q, want fallback", got)
	}
}

func TestRetrieveContext_NoSearcher(t *testing.T) {
	e := newTestEngine(&mockChatModel{}, nil)
	if got := e.retrieveContext(context.Background(), "某话题"); got != fallbackContext {
		t.Errorf("retrieveContext() = %q, want fallback", got)
	}
}

func TestBuildPrompt(t *testing.T) {
	p1 := buildPrompt("小米SU7", "- [t](u): c")
	p2 := buildPrompt("小米SU7", "- [t](u): c")
	if p1 != p2 {
		t.Error("buildPrompt() is not deterministic")
	}
	if !strings.Contains(p1, "小米SU7") {
		t.Error("prompt does not embed topic")
	}
	if !strings.Contains(p1, "- [t](u): c") {
		t.Error("prompt does not embed context")
	}
	if !strings.Contains(p1, "sentiment_score") || !strings.Contains(p1, "report_markdown") {
		t.Error("prompt does not spell out the JSON schema")
	}
	if !strings.Contains(p1, "不要包含 Markdown 代码块标记") {
		t.Error("prompt does not forbid markdown fences")
	}
}

func TestAnalyze_FencedOutput(t *testing.T) {
	body := `{"sentiment_score":72,"sentiment_label":"正面","keywords":["a","b"],"trend_data":[{"date":"2026-08-25","score":60}],"report_markdown":"# 报告"}`
	e := newTestEngine(&mockChatModel{content: "```json\n" + body + "\n```"}, nil)

	report, err := e.Analyze(context.Background(), "某话题")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if report.SentimentScore != 72 || report.SentimentLabel != "正面" {
		t.Errorf("report = %+v", report)
	}
	if len(report.Keywords) != 2 || len(report.TrendData) != 1 {
		t.Errorf("keywords/trend_data = %v / %v", report.Keywords, report.TrendData)
	}
	if report.ReportMarkdown != "# 报告" {
		t.Errorf("report_markdown = %q", report.ReportMarkdown)
	}
}

func TestAnalyze_InvalidJSON(t *testing.T) {
	raw := "今天天气不错，不是 JSON"
	e := newTestEngine(&mockChatModel{content: raw}, nil)

	report, err := e.Analyze(context.Background(), "某话题")
	if err != nil {
		t.Fatalf("Analyze() error = %v, want nil (degraded path)", err)
	}
	if report.SentimentScore != 50 {
		t.Errorf("sentiment_score = %d, want 50", report.SentimentScore)
	}
	if report.SentimentLabel != "解析错误" {
		t.Errorf("sentiment_label = %q", report.SentimentLabel)
	}
	if report.Keywords == nil || len(report.Keywords) != 0 {
		t.Errorf("keywords = %v, want empty slice", report.Keywords)
	}
	if report.TrendData == nil || len(report.TrendData) != 0 {
		t.Errorf("trend_data = %v, want empty slice", report.TrendData)
	}
	if !strings.Contains(report.ReportMarkdown, raw) {
		t.Errorf("report_markdown = %q, want to contain raw output", report.ReportMarkdown)
	}
}

func TestAnalyze_ModelError(t *testing.T) {
	e := newTestEngine(&mockChatModel{err: errors.New("quota exceeded")}, nil)

	_, err := e.Analyze(context.Background(), "某话题")
	if err == nil {
		t.Fatal("Analyze() error = nil, want model error")
	}
	if !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("error = %v, want to carry provider message", err)
	}
}

func TestAnalyze_MissingArrays(t *testing.T) {
	e := newTestEngine(&mockChatModel{content: `{"sentiment_score":66,"sentiment_label":"中立","report_markdown":"# r"}`}, nil)

	report, err := e.Analyze(context.Background(), "某话题")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if report.Keywords == nil {
		t.Error("keywords = nil, want empty slice")
	}
	if report.TrendData == nil {
		t.Error("trend_data = nil, want empty slice")
	}
}

func TestSanitizeModelOutput(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"  {\"a\":1}  ", `{"a":1}`},
		{"```{\"a\":1}```", `{"a":1}`},
		{"{\"a\":\"x```json y\"}", `{"a":"x y"}`}, // 字面替换，出现在哪里都会被移除
	}
	for _, c := range cases {
		if got := sanitizeModelOutput(c.in); got != c.want {
			t.Errorf("sanitizeModelOutput(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
