package search

import "context"

// Searcher 定义通用的新闻搜索接口，作为文章发现的落地检索能力。
// 未配置 Searcher 时，流水线退化为由生成服务模拟候选。
type Searcher interface {
	Search(ctx context.Context, req *Request) (*Response, error)
}

// Request 通用搜索请求
type Request struct {
	Query      string
	Language   string // ISO 639-1，来源地区的绑定语言
	MaxResults int
	StartDate  string // Format: YYYY-MM-DD
	EndDate    string // Format: YYYY-MM-DD
}

// Response 通用搜索响应
type Response struct {
	Results []Result
}

// Result 单条搜索结果
type Result struct {
	Title         string
	URL           string
	SourceName    string
	Content       string
	Score         float64
	PublishedDate string
}
