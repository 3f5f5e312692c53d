package model

import "time"

// Subject 被监测的对象（通常是一个国家）
type Subject struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// SourceRegion 被采样媒体的来源地区，绑定该地区的主要语言
type SourceRegion struct {
	Code         string `json:"code"`
	Name         string `json:"name"`
	Language     string `json:"language"`      // ISO 639-1 语言码
	LanguageName string `json:"language_name"` // 语言显示名，用于提示词
}

// Request 一次监测运行的输入，创建后不可变
type Request struct {
	Subjects     []Subject      `json:"subjects"`
	Regions      []SourceRegion `json:"regions"`
	Effort       int            `json:"effort"` // 1..5
	UserLanguage string         `json:"user_language"`
}

// Sentiment 情感标签
type Sentiment string

const (
	SentimentCritical Sentiment = "critical"
	SentimentNeutral  Sentiment = "neutral"
	SentimentPositive Sentiment = "positive"
)

// 情感分值区间（与标签强一致，数值为准）:
// critical ⇔ [-1.0, -0.3)，neutral ⇔ [-0.3, 0.2]，positive ⇔ (0.2, 1.0]
const (
	criticalUpper = -0.3
	neutralUpper  = 0.2
)

// LabelForScore 根据分值推导情感标签，分值越界时先钳位
func LabelForScore(score float64) Sentiment {
	switch {
	case score < criticalUpper:
		return SentimentCritical
	case score > neutralUpper:
		return SentimentPositive
	default:
		return SentimentNeutral
	}
}

// ClampScore 将分值钳位到 [-1, 1]
func ClampScore(score float64) float64 {
	if score < -1.0 {
		return -1.0
	}
	if score > 1.0 {
		return 1.0
	}
	return score
}

// Article 单篇文章，评分阶段之后才允许附加情感字段
type Article struct {
	SourceName   string    `json:"source_name"`
	Language     string    `json:"language"`
	Title        string    `json:"title"`
	Subtitle     string    `json:"subtitle,omitempty"`
	Body         string    `json:"body,omitempty"`
	URL          string    `json:"url,omitempty"`
	OriginRegion string    `json:"origin_region"`
	Sentiment    Sentiment `json:"sentiment,omitempty"`
	Score        float64   `json:"score"`
	Evidence     string    `json:"evidence,omitempty"`
	Theme        string    `json:"theme,omitempty"`
	// ScoringFailed 标记该文章评分失败，按中性保留而非丢弃
	ScoringFailed bool `json:"scoring_failed,omitempty"`
}

// RegionCoverage 一个来源地区的累计产出，单元结束后冻结
type RegionCoverage struct {
	Region   SourceRegion  `json:"region"`
	Articles []Article     `json:"articles"`
	Failed   bool          `json:"failed"`
	FailedAt string        `json:"failed_at,omitempty"` // 失败时所处阶段
	Elapsed  time.Duration `json:"-"`
}

// RunStatus 运行状态
type RunStatus string

const (
	StatusPending  RunStatus = "pending"
	StatusRunning  RunStatus = "running"
	StatusPartial  RunStatus = "partial"
	StatusComplete RunStatus = "complete"
	StatusFailed   RunStatus = "failed"
)

// Run 聚合根：一次请求、各地区覆盖与整体状态，仅存活于单次请求期间
type Run struct {
	Request    Request
	Coverage   map[string]*RegionCoverage // 来源地区码 -> 覆盖
	Status     RunStatus
	StartedAt  time.Time
	FinishedAt time.Time
}

// Articles 汇总所有已冻结覆盖中的文章，遍历顺序按地区请求顺序
func (r *Run) Articles() []Article {
	var out []Article
	for _, region := range r.Request.Regions {
		if cov, ok := r.Coverage[region.Code]; ok {
			out = append(out, cov.Articles...)
		}
	}
	return out
}

// SentimentBreakdown 情感分布统计
type SentimentBreakdown struct {
	Positive    int     `json:"positive"`
	Negative    int     `json:"negative"`
	Neutral     int     `json:"neutral"`
	PositivePct float64 `json:"positive_pct"`
	NegativePct float64 `json:"negative_pct"`
	NeutralPct  float64 `json:"neutral_pct"`
}

// RegionStat 单地区小计
type RegionStat struct {
	Region    string   `json:"region"`
	Name      string   `json:"name"`
	Count     int      `json:"count"`
	TopThemes []string `json:"top_themes,omitempty"`
}

// ThemeCount 主题及出现次数
type ThemeCount struct {
	Theme string `json:"theme"`
	Count int    `json:"count"`
}

// Statistics 摘要统计，必须可由冻结后的覆盖集合纯函数推导
type Statistics struct {
	Total          int                `json:"total"`
	BySentiment    SentimentBreakdown `json:"by_sentiment"`
	ByRegion       []RegionStat       `json:"by_region"`
	TopThemes      []ThemeCount       `json:"top_themes_global,omitempty"`
	RegionsOK      int                `json:"regions_ok"`
	RegionsFailed  int                `json:"regions_failed"`
	UniqueSources  int                `json:"unique_sources"`
	UniqueLanguage int                `json:"unique_languages"`
}

// Digest 最终报告：叙述部分来自生成服务，统计与渲染块由代码确定性产出
type Digest struct {
	Narrative  string     `json:"narrative"`
	Statistics Statistics `json:"statistics"`
	Rendered   string     `json:"rendered"` // 确定性的统计文本块
}
