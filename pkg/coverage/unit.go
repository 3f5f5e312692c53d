// Package coverage 实现单个来源地区的采集单元：
// 查询生成 -> 文章发现 -> 相关性过滤 -> 情感评分，线性推进的状态机。
// 单元失败只冻结本地区，不影响其他地区。
package coverage

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/orxan-hv/press_radar/pkg/catalog"
	"github.com/orxan-hv/press_radar/pkg/genai"
	"github.com/orxan-hv/press_radar/pkg/logger"
	"github.com/orxan-hv/press_radar/pkg/model"
	"github.com/orxan-hv/press_radar/pkg/progress"
	"github.com/orxan-hv/press_radar/pkg/search"
)

// Stage 单元所处阶段
type Stage string

const (
	StageIdle              Stage = "idle"
	StageGeneratingQueries Stage = "generating_queries"
	StageSearching         Stage = "searching"
	StageFiltering         Stage = "filtering"
	StageScoringSentiment  Stage = "scoring_sentiment"
	StageDone              Stage = "done"
	StageFailed            Stage = "failed"
)

// Params 单元参数，由编排层按投入档位折算
type Params struct {
	Region           model.SourceRegion
	Subjects         []model.Subject
	Queries          int // 每地区生成的查询条数
	ArticlesPerQuery int
}

// Unit 单地区采集单元。一个 Unit 只运行一次，状态只向前推进。
type Unit struct {
	gen      genai.Generator
	searcher search.Searcher // 为 nil 时走生成服务模拟发现
	cat      *catalog.Catalog
	params   Params
	sink     progress.Sink

	// fetchBody 抓取页面全文，测试中可替换
	fetchBody func(url string) (readability.Article, error)

	stage Stage
}

// NewUnit 创建采集单元
func NewUnit(gen genai.Generator, searcher search.Searcher, cat *catalog.Catalog, params Params, sink progress.Sink) *Unit {
	if params.Queries <= 0 {
		params.Queries = 5
	}
	if params.ArticlesPerQuery <= 0 {
		params.ArticlesPerQuery = 3
	}
	if sink == nil {
		sink = progress.Discard
	}
	return &Unit{
		gen:      gen,
		searcher: searcher,
		cat:      cat,
		params:   params,
		sink:     sink,
		fetchBody: func(url string) (readability.Article, error) {
			return readability.FromURL(url, 10*time.Second)
		},
		stage: StageIdle,
	}
}

// Stage 返回当前阶段
func (u *Unit) Stage() Stage {
	return u.stage
}

// Run 执行完整流水线，总是返回冻结后的覆盖结果。
// 返回的 Failed/FailedAt 描述失败地区，成功地区允许零篇文章。
func (u *Unit) Run(ctx context.Context) *model.RegionCoverage {
	region := u.params.Region
	start := time.Now()
	cov := &model.RegionCoverage{Region: region}

	u.sink.Publish(progress.Event{Type: progress.EventRegionStart, Payload: progress.RegionPayload{
		Region:   region.Code,
		Name:     region.Name,
		Language: region.Language,
	}})

	u.stage = StageGeneratingQueries
	queries, err := u.generateQueries(ctx)
	if err != nil {
		return u.fail(cov, start, 0, err)
	}
	u.sink.Publish(progress.Event{Type: progress.EventQueriesGenerated, Payload: progress.QueriesPayload{
		Region:  region.Code,
		Queries: queries,
	}})

	u.stage = StageSearching
	candidates, err := u.discover(ctx, queries)
	if err != nil {
		return u.fail(cov, start, 0, err)
	}
	for _, a := range candidates {
		u.sink.Publish(progress.Event{Type: progress.EventArticleFound, Payload: progress.ArticlePayload{
			Region:     region.Code,
			SourceName: a.SourceName,
			Title:      a.Title,
		}})
	}

	// 零候选是合法的空结果，直接完成
	if len(candidates) > 0 {
		u.stage = StageFiltering
		found := len(candidates)
		candidates, err = u.filterRelevant(ctx, candidates)
		if err != nil {
			return u.fail(cov, start, found, err)
		}

		u.stage = StageScoringSentiment
		u.scoreAll(ctx, candidates)
	}

	u.stage = StageDone
	cov.Articles = candidates
	cov.Elapsed = time.Since(start)

	var pos, neg, neu int
	for _, a := range cov.Articles {
		switch a.Sentiment {
		case model.SentimentPositive:
			pos++
		case model.SentimentCritical:
			neg++
		default:
			neu++
		}
	}
	u.sink.Publish(progress.Event{Type: progress.EventRegionComplete, Payload: progress.RegionCompletePayload{
		Region:   region.Code,
		Articles: len(cov.Articles),
		Positive: pos,
		Negative: neg,
		Neutral:  neu,
	}})
	logger.Log.Infof("地区 %s 采集完成: %d 篇文章, 耗时 %.1fs", region.Code, len(cov.Articles), cov.Elapsed.Seconds())
	return cov
}

// fail 冻结失败覆盖并发出 region_error。
// accumulated 是失败前已发现的候选数，候选本身被丢弃。
func (u *Unit) fail(cov *model.RegionCoverage, start time.Time, accumulated int, err error) *model.RegionCoverage {
	failedAt := string(u.stage)
	u.stage = StageFailed
	cov.Failed = true
	cov.FailedAt = failedAt
	cov.Articles = nil // 失败即丢弃未过滤的候选
	cov.Elapsed = time.Since(start)

	u.sink.Publish(progress.Event{Type: progress.EventRegionError, Payload: progress.RegionErrorPayload{
		Region:   u.params.Region.Code,
		Stage:    failedAt,
		Reason:   err.Error(),
		Articles: accumulated,
	}})
	logger.Log.Warnf("地区 %s 在 %s 阶段失败: %v", u.params.Region.Code, failedAt, err)
	return cov
}

// subjectLine 主题的展示串，带本地语言关键词
func (u *Unit) subjectLine() string {
	var parts []string
	for _, s := range u.params.Subjects {
		terms := u.cat.SubjectTerms(s.Code, u.params.Region.Language)
		if len(terms) > 0 {
			parts = append(parts, fmt.Sprintf("%s (%s)", s.Name, strings.Join(terms, ", ")))
		} else {
			parts = append(parts, s.Name)
		}
	}
	return strings.Join(parts, "; ")
}

// generateQueries 用生成服务产出本地语言的搜索查询，一行一条
func (u *Unit) generateQueries(ctx context.Context) ([]string, error) {
	region := u.params.Region
	prompt := fmt.Sprintf(`Generate %d diverse news search queries in %s to find recent press coverage published in %s about: %s.

Cover distinct angles: diplomatic, economic, expert opinion, regional affairs, current events.
Write each query in %s. Output one query per line, no numbering, no quotes, nothing else.`,
		u.params.Queries, region.LanguageName, region.Name, u.subjectLine(), region.LanguageName)

	raw, err := u.gen.Generate(ctx, prompt,
		genai.WithTemperature(0.8),
		genai.WithMaxTokens(512),
	)
	if err != nil {
		return nil, fmt.Errorf("查询生成失败: %w", err)
	}

	queries := parseLines(raw, u.params.Queries)
	if len(queries) == 0 {
		return nil, fmt.Errorf("查询生成输出为空")
	}
	return queries, nil
}

// parseLines 按行切分并清理编号、项目符号与引号，最多取 max 条
func parseLines(raw string, max int) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*• ")
		// 去掉 "1." / "2)" 式编号
		if i := strings.IndexAny(line, ".)"); i > 0 && i <= 2 {
			if _, err := strconv.Atoi(line[:i]); err == nil {
				line = strings.TrimSpace(line[i+1:])
			}
		}
		line = strings.Trim(line, `"'`)
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) >= max {
			break
		}
	}
	return out
}

// discover 发现候选文章。配置了搜索服务时逐查询检索并去重，
// 否则退化为生成服务模拟的头条列表。
func (u *Unit) discover(ctx context.Context, queries []string) ([]model.Article, error) {
	if u.searcher == nil {
		return u.discoverGenerated(ctx, queries)
	}

	region := u.params.Region
	seen := make(map[string]bool)
	var articles []model.Article
	var failures int

	for _, q := range queries {
		resp, err := u.searcher.Search(ctx, &search.Request{
			Query:      q,
			Language:   region.Language,
			MaxResults: u.params.ArticlesPerQuery,
		})
		if err != nil {
			failures++
			logger.Log.Debugf("地区 %s 查询检索失败: %v", region.Code, err)
			continue
		}
		for _, r := range resp.Results {
			key := r.URL
			if key == "" {
				key = strings.ToLower(r.Title)
			}
			if r.Title == "" || seen[key] {
				continue
			}
			seen[key] = true
			articles = append(articles, model.Article{
				SourceName:   r.SourceName,
				Language:     region.Language,
				Title:        r.Title,
				Body:         r.Content,
				URL:          r.URL,
				OriginRegion: region.Code,
			})
		}
	}

	// 全部查询都失败才算单元失败，部分失败容忍
	if failures == len(queries) {
		return nil, fmt.Errorf("全部 %d 条查询检索失败", len(queries))
	}

	u.enrichBodies(articles)
	return articles, nil
}

// enrichBodies 对正文过短的结果抓取页面全文，失败静默跳过
func (u *Unit) enrichBodies(articles []model.Article) {
	const minBody = 200
	for i := range articles {
		a := &articles[i]
		if a.URL == "" || len(a.Body) >= minBody {
			continue
		}
		parsed, err := u.fetchBody(a.URL)
		if err != nil {
			continue
		}
		text := strings.TrimSpace(parsed.TextContent)
		if len(text) > len(a.Body) {
			if len(text) > 4000 {
				text = text[:4000]
			}
			a.Body = text
		}
		if a.Subtitle == "" && parsed.Excerpt != "" {
			a.Subtitle = strings.TrimSpace(parsed.Excerpt)
		}
	}
}

// headlineRe 匹配模拟发现的固定格式 "[媒体名] 标题"
var headlineRe = regexp.MustCompile(`^\[([^\]]+)\]\s*(.+)$`)

// discoverGenerated 无搜索服务时由生成服务模拟头条，格式不符的行丢弃
func (u *Unit) discoverGenerated(ctx context.Context, queries []string) ([]model.Article, error) {
	region := u.params.Region
	limit := u.params.Queries * u.params.ArticlesPerQuery

	prompt := fmt.Sprintf(`You simulate a press review of media published in %s, written in %s.

Monitoring focus: %s.
Research angles:
%s

List up to %d plausible recent headlines from real, well-known %s media outlets.
Format each line EXACTLY as: [Outlet Name] Headline in %s
Output only the lines, nothing else.`,
		region.Name, region.LanguageName, u.subjectLine(),
		"- "+strings.Join(queries, "\n- "),
		limit, region.Name, region.LanguageName)

	raw, err := u.gen.Generate(ctx, prompt,
		genai.WithTemperature(0.9),
		genai.WithMaxTokens(1024),
	)
	if err != nil {
		return nil, fmt.Errorf("头条生成失败: %w", err)
	}

	seen := make(map[string]bool)
	var articles []model.Article
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		m := headlineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		title := strings.TrimSpace(m[2])
		key := strings.ToLower(title)
		if title == "" || seen[key] {
			continue
		}
		seen[key] = true
		articles = append(articles, model.Article{
			SourceName:   strings.TrimSpace(m[1]),
			Language:     region.Language,
			Title:        title,
			OriginRegion: region.Code,
		})
		if len(articles) >= limit {
			break
		}
	}
	return articles, nil
}

// filterRelevant 相关性过滤。模型返回逗号分隔的 1 起始序号或 NONE；
// NONE 是合法的空结果。输出不可解析时重试一次，再失败则单元失败。
func (u *Unit) filterRelevant(ctx context.Context, candidates []model.Article) ([]model.Article, error) {
	var sb strings.Builder
	for i, a := range candidates {
		fmt.Fprintf(&sb, "%d. [%s] %s\n", i+1, a.SourceName, a.Title)
	}

	prompt := fmt.Sprintf(`Below is a numbered list of headlines from %s media.

%s
Which of them are genuinely ABOUT %s (not merely mentioning it in passing)?
Respond with ONLY the comma-separated numbers of relevant headlines (e.g. "1,3,4"),
or exactly "NONE" if none are relevant. No other text.`,
		u.params.Region.Name, sb.String(), u.subjectLine())

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		raw, err := u.gen.Generate(ctx, prompt,
			genai.WithTemperature(0.1),
			genai.WithMaxTokens(128),
		)
		if err != nil {
			lastErr = fmt.Errorf("相关性过滤调用失败: %w", err)
			continue
		}
		kept, err := applyIndices(candidates, raw)
		if err != nil {
			lastErr = fmt.Errorf("相关性过滤输出不可解析: %w", err)
			continue
		}
		return kept, nil
	}
	return nil, lastErr
}

// applyIndices 解析过滤回复并挑选文章。
// 合法回复要么是 NONE，要么是 1 起始的序号列表；越界序号忽略，
// 非数字 token 视为不可解析。
func applyIndices(candidates []model.Article, raw string) ([]model.Article, error) {
	reply := strings.TrimSpace(genai.StripFences(raw))
	if strings.EqualFold(reply, "NONE") {
		return nil, nil
	}

	picked := make(map[int]bool)
	var order []int
	for _, tok := range strings.Split(reply, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		n, err := strconv.Atoi(tok)
		if err != nil {
			return nil, fmt.Errorf("非法序号 %q", tok)
		}
		if n < 1 || n > len(candidates) {
			continue
		}
		if !picked[n] {
			picked[n] = true
			order = append(order, n)
		}
	}

	sort.Ints(order)
	out := make([]model.Article, 0, len(order))
	for _, n := range order {
		out = append(out, candidates[n-1])
	}
	return out, nil
}

// scoreAll 逐篇评分。单篇失败不致命：按中性保留并打 ScoringFailed 标记。
func (u *Unit) scoreAll(ctx context.Context, articles []model.Article) {
	for i := range articles {
		if err := u.scoreOne(ctx, &articles[i]); err != nil {
			a := &articles[i]
			a.Sentiment = model.SentimentNeutral
			a.Score = 0
			a.Evidence = ""
			a.Theme = ""
			a.ScoringFailed = true
			logger.Log.Debugf("文章评分失败，按中性保留 [%s] %s: %v", a.SourceName, a.Title, err)
		}
	}
}

// scoreOne 为单篇文章评分。数值分是权威来源，标签由分值重新推导。
func (u *Unit) scoreOne(ctx context.Context, a *model.Article) error {
	body := a.Body
	if len(body) > 1500 {
		body = body[:1500]
	}
	prompt := fmt.Sprintf(`Assess the sentiment of this article toward %s.

Source: %s
Title: %s
%s
Respond with EXACTLY these four lines:
SENTIMENT: positive|neutral|critical
SCORE: <number between -1.0 and 1.0>
EVIDENCE: <short phrase from the article supporting the assessment>
THEME: <2-4 word topic label in English>`,
		u.subjectLine(), a.SourceName, a.Title, body)

	raw, err := u.gen.Generate(ctx, prompt,
		genai.WithTemperature(0.2),
		genai.WithMaxTokens(256),
	)
	if err != nil {
		return err
	}

	var haveScore bool
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "SCORE:"):
			v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(line, "SCORE:")), 64)
			if err == nil {
				a.Score = model.ClampScore(v)
				haveScore = true
			}
		case strings.HasPrefix(line, "EVIDENCE:"):
			a.Evidence = strings.TrimSpace(strings.TrimPrefix(line, "EVIDENCE:"))
		case strings.HasPrefix(line, "THEME:"):
			a.Theme = strings.TrimSpace(strings.TrimPrefix(line, "THEME:"))
		}
	}
	if !haveScore {
		return fmt.Errorf("评分输出缺少 SCORE 行: %q", firstLine(raw))
	}
	// 标签不取模型原话，始终由分值推导，保证标签与区间一致
	a.Sentiment = model.LabelForScore(a.Score)
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
