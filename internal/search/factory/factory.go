package factory

import (
	"fmt"

	"github.com/iWorld-y/opinion_radar/internal/config"
	"github.com/iWorld-y/opinion_radar/internal/search"
	"github.com/iWorld-y/opinion_radar/internal/search/searxng"
	"github.com/iWorld-y/opinion_radar/internal/search/tavily"
)

// NewSearcher 根据配置创建搜索实例。搜索是可选能力：未配置 provider 或缺少
// 密钥时返回 (nil, nil)，由调用方降级处理，而不是让整个服务起不来。
func NewSearcher(cfg *config.SearchConfig) (search.Searcher, error) {
	provider := cfg.Provider
	if provider == "" {
		// 默认回退逻辑：如果有 tavily key，则使用 tavily
		if cfg.Tavily.APIKey != "" {
			provider = "tavily"
		} else {
			return nil, nil
		}
	}

	switch provider {
	case "tavily":
		if cfg.Tavily.APIKey == "" {
			return nil, nil
		}
		return tavily.NewClient(cfg.Tavily.APIKey), nil

	case "searxng":
		if cfg.SearXNG.BaseURL == "" {
			return nil, nil
		}
		return searxng.NewClient(cfg.SearXNG.BaseURL, cfg.SearXNG.Timeout), nil

	default:
		return nil, fmt.Errorf("unknown search provider: %s", provider)
	}
}
