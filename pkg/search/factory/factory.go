package factory

import (
	"fmt"

	"github.com/orxan-hv/press_radar/pkg/config"
	"github.com/orxan-hv/press_radar/pkg/search"
	"github.com/orxan-hv/press_radar/pkg/search/searxng"
	"github.com/orxan-hv/press_radar/pkg/search/tavily"
)

// NewSearcher 根据配置创建搜索实例。Provider 为空返回 (nil, nil)，
// 表示不启用落地搜索，候选文章由生成服务模拟。
func NewSearcher(cfg *config.Config) (search.Searcher, error) {
	switch cfg.Search.Provider {
	case "":
		return nil, nil

	case "tavily":
		if cfg.Search.Tavily.APIKey == "" {
			return nil, fmt.Errorf("tavily api key is missing")
		}
		return tavily.NewClient(cfg.Search.Tavily.APIKey), nil

	case "searxng":
		if cfg.Search.SearXNG.BaseURL == "" {
			return nil, fmt.Errorf("searxng base url is missing")
		}
		return searxng.NewClient(cfg.Search.SearXNG.BaseURL, cfg.Search.SearXNG.Timeout), nil

	default:
		return nil, fmt.Errorf("unknown search provider: %s", cfg.Search.Provider)
	}
}
