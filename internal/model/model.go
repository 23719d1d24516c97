package model

// AnalysisReport 返回给前端的舆情分析结果。字段是与前端图表绑定的契约，
// 改动字段名或类型等同于破坏整个系统的输出格式。
type AnalysisReport struct {
	SentimentScore int          `json:"sentiment_score"` // 0-100，0 极度负面，100 极度正面
	SentimentLabel string       `json:"sentiment_label"` // 正面/负面/中立/争议
	Keywords       []string     `json:"keywords"`
	TrendData      []TrendPoint `json:"trend_data"`
	ReportMarkdown string       `json:"report_markdown"`
}

// TrendPoint 热度趋势中的单个点
type TrendPoint struct {
	Date  string `json:"date"`
	Score int    `json:"score"`
}

// NewFallbackReport 模型输出无法解析为 JSON 时的降级报告。
// 原始输出放进 report_markdown 里便于人工排查。
func NewFallbackReport(raw string) *AnalysisReport {
	return &AnalysisReport{
		SentimentScore: 50,
		SentimentLabel: "解析错误",
		Keywords:       []string{},
		TrendData:      []TrendPoint{},
		ReportMarkdown: "解析模型输出失败，原始输出：\n" + raw,
	}
}

// AnalysisRecord 持久化后的历史分析记录
type AnalysisRecord struct {
	ID             int      `json:"id"`
	Topic          string   `json:"topic"`
	SentimentScore int      `json:"sentiment_score"`
	SentimentLabel string   `json:"sentiment_label"`
	Keywords       []string `json:"keywords"`
	ReportMarkdown string   `json:"report_markdown"`
	CreatedAt      string   `json:"created_at"`
}
