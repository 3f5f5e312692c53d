package coverage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	readability "github.com/go-shiori/go-readability"

	"github.com/orxan-hv/press_radar/pkg/catalog"
	"github.com/orxan-hv/press_radar/pkg/genai"
	"github.com/orxan-hv/press_radar/pkg/model"
	"github.com/orxan-hv/press_radar/pkg/progress"
	"github.com/orxan-hv/press_radar/pkg/search"
)

// route 按提示词片段路由的固定回复
type route struct {
	match  string
	output string
	err    error
}

// routeGenerator 测试用生成器，按提示词内容返回脚本化回复
type routeGenerator struct {
	routes []route
}

func (g *routeGenerator) Generate(ctx context.Context, prompt string, opts ...genai.Option) (string, error) {
	for _, r := range g.routes {
		if strings.Contains(prompt, r.match) {
			return r.output, r.err
		}
	}
	return "", fmt.Errorf("no route for prompt: %s", prompt[:min(60, len(prompt))])
}

// fakeSearcher 固定结果的搜索实现
type fakeSearcher struct {
	results []search.Result
	err     error
}

func (s *fakeSearcher) Search(ctx context.Context, req *search.Request) (*search.Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &search.Response{Results: s.results}, nil
}

// captureSink 按序记录事件
type captureSink struct {
	events []progress.Event
}

func (c *captureSink) Publish(ev progress.Event) {
	c.events = append(c.events, ev)
}

func (c *captureSink) types() []progress.EventType {
	var out []progress.EventType
	for _, ev := range c.events {
		out = append(out, ev.Type)
	}
	return out
}

// newTestUnit 创建不访问网络的测试单元
func newTestUnit(gen *routeGenerator, searcher search.Searcher, params Params, sink progress.Sink) *Unit {
	u := NewUnit(gen, searcher, catalog.New(), params, sink)
	u.fetchBody = func(url string) (readability.Article, error) {
		return readability.Article{}, errors.New("fetch disabled in tests")
	}
	return u
}

func testParams() Params {
	cat := catalog.New()
	region, _ := cat.Region("TR")
	subject, _ := cat.Subject("AZ")
	return Params{
		Region:           region,
		Subjects:         []model.Subject{subject},
		Queries:          2,
		ArticlesPerQuery: 2,
	}
}

func TestUnitHappyPath(t *testing.T) {
	gen := &routeGenerator{routes: []route{
		{match: "search queries", output: "Azərbaycan xəbərləri\nenerji siyasəti"},
		{match: "comma-separated numbers", output: "1,2"},
		{match: "SENTIMENT:", output: "SENTIMENT: positive\nSCORE: 0.5\nEVIDENCE: strong ties\nTHEME: Energy Cooperation"},
	}}
	searcher := &fakeSearcher{results: []search.Result{
		{Title: "Pipeline deal signed", URL: "https://hurriyet.com.tr/a", SourceName: "Hurriyet", Content: strings.Repeat("x", 300)},
		{Title: "Trade volume grows", URL: "https://sabah.com.tr/b", SourceName: "Sabah", Content: strings.Repeat("y", 300)},
	}}
	sink := &captureSink{}

	u := newTestUnit(gen, searcher, testParams(), sink)
	cov := u.Run(context.Background())

	if cov.Failed {
		t.Fatalf("unexpected failure at %s", cov.FailedAt)
	}
	if u.Stage() != StageDone {
		t.Fatalf("stage = %s, want %s", u.Stage(), StageDone)
	}
	if len(cov.Articles) != 2 {
		t.Fatalf("articles = %d, want 2", len(cov.Articles))
	}
	for _, a := range cov.Articles {
		if a.Sentiment != model.SentimentPositive {
			t.Errorf("sentiment = %s, want positive (score 0.5)", a.Sentiment)
		}
		if a.Score != 0.5 {
			t.Errorf("score = %v, want 0.5", a.Score)
		}
		if a.OriginRegion != "TR" {
			t.Errorf("origin = %s, want TR", a.OriginRegion)
		}
	}

	got := sink.types()
	want := []progress.EventType{
		progress.EventRegionStart,
		progress.EventQueriesGenerated,
		progress.EventArticleFound,
		progress.EventArticleFound,
		progress.EventRegionComplete,
	}
	if len(got) != len(want) {
		t.Fatalf("event sequence %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestUnitNoneIsEmptySuccess(t *testing.T) {
	gen := &routeGenerator{routes: []route{
		{match: "search queries", output: "q1\nq2"},
		{match: "comma-separated numbers", output: "NONE"},
	}}
	searcher := &fakeSearcher{results: []search.Result{
		{Title: "Unrelated story", URL: "https://example.com/x", SourceName: "Example"},
	}}
	sink := &captureSink{}

	u := newTestUnit(gen, searcher, testParams(), sink)
	cov := u.Run(context.Background())

	if cov.Failed {
		t.Fatal("NONE reply is an empty success, not a failure")
	}
	if len(cov.Articles) != 0 {
		t.Fatalf("articles = %d, want 0", len(cov.Articles))
	}
	last := sink.events[len(sink.events)-1]
	if last.Type != progress.EventRegionComplete {
		t.Fatalf("last event = %s, want region_complete", last.Type)
	}
}

func TestUnitMalformedFilterFailsClosed(t *testing.T) {
	gen := &routeGenerator{routes: []route{
		{match: "search queries", output: "q1\nq2"},
		{match: "comma-separated numbers", output: "the relevant ones are probably 1 and 2"},
	}}
	searcher := &fakeSearcher{results: []search.Result{
		{Title: "Story", URL: "https://example.com/x", SourceName: "Example"},
	}}
	sink := &captureSink{}

	u := newTestUnit(gen, searcher, testParams(), sink)
	cov := u.Run(context.Background())

	if !cov.Failed {
		t.Fatal("unparseable filter reply must fail the unit")
	}
	if cov.FailedAt != string(StageFiltering) {
		t.Errorf("failed at %s, want %s", cov.FailedAt, StageFiltering)
	}
	if len(cov.Articles) != 0 {
		t.Error("unfiltered candidates must be discarded on failure")
	}
	last := sink.events[len(sink.events)-1]
	if last.Type != progress.EventRegionError {
		t.Fatalf("last event = %s, want region_error", last.Type)
	}
}

func TestUnitScoringFailureKeepsArticleNeutral(t *testing.T) {
	gen := &routeGenerator{routes: []route{
		{match: "search queries", output: "q1"},
		{match: "comma-separated numbers", output: "1"},
		{match: "SENTIMENT:", err: genai.ErrUpstream},
	}}
	searcher := &fakeSearcher{results: []search.Result{
		{Title: "Story", URL: "https://example.com/x", SourceName: "Example"},
	}}

	u := newTestUnit(gen, searcher, testParams(), &captureSink{})
	cov := u.Run(context.Background())

	if cov.Failed {
		t.Fatal("scoring failure must not fail the unit")
	}
	if len(cov.Articles) != 1 {
		t.Fatalf("articles = %d, want 1", len(cov.Articles))
	}
	a := cov.Articles[0]
	if !a.ScoringFailed {
		t.Error("expected ScoringFailed marker")
	}
	if a.Sentiment != model.SentimentNeutral || a.Score != 0 {
		t.Errorf("failed scoring must yield neutral/0, got %s/%v", a.Sentiment, a.Score)
	}
}

func TestUnitQueryStageFailure(t *testing.T) {
	gen := &routeGenerator{routes: []route{
		{match: "search queries", err: genai.ErrTimeout},
	}}
	sink := &captureSink{}

	u := newTestUnit(gen, &fakeSearcher{}, testParams(), sink)
	cov := u.Run(context.Background())

	if !cov.Failed {
		t.Fatal("expected failure")
	}
	if cov.FailedAt != string(StageGeneratingQueries) {
		t.Errorf("failed at %s, want %s", cov.FailedAt, StageGeneratingQueries)
	}
	if u.Stage() != StageFailed {
		t.Errorf("stage = %s, want %s", u.Stage(), StageFailed)
	}
}

func TestUnitGeneratedDiscoveryParsesHeadlines(t *testing.T) {
	gen := &routeGenerator{routes: []route{
		{match: "search queries", output: "q1\nq2"},
		{match: "plausible recent headlines", output: "[Hurriyet] First headline\nnot a headline line\n[Sabah] Second headline\n[Sabah] Second headline"},
		{match: "comma-separated numbers", output: "1,2"},
		{match: "SENTIMENT:", output: "SENTIMENT: neutral\nSCORE: 0.0\nEVIDENCE: factual\nTHEME: Diplomacy"},
	}}

	// searcher 为 nil 走模拟发现
	u := newTestUnit(gen, nil, testParams(), &captureSink{})
	cov := u.Run(context.Background())

	if cov.Failed {
		t.Fatalf("unexpected failure at %s", cov.FailedAt)
	}
	if len(cov.Articles) != 2 {
		t.Fatalf("articles = %d, want 2 (malformed and duplicate lines dropped)", len(cov.Articles))
	}
	if cov.Articles[0].SourceName != "Hurriyet" || cov.Articles[1].SourceName != "Sabah" {
		t.Errorf("unexpected sources: %+v", cov.Articles)
	}
}

func TestApplyIndices(t *testing.T) {
	candidates := []model.Article{{Title: "a"}, {Title: "b"}, {Title: "c"}}

	kept, err := applyIndices(candidates, "2, 1, 2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(kept) != 2 || kept[0].Title != "a" || kept[1].Title != "b" {
		t.Errorf("unexpected selection: %+v", kept)
	}

	// 越界序号被忽略而非报错
	kept, err = applyIndices(candidates, "0,2,4")
	if err != nil {
		t.Fatalf("out-of-range indices must be ignored, got error: %v", err)
	}
	if len(kept) != 1 || kept[0].Title != "b" {
		t.Errorf("unexpected selection: %+v", kept)
	}

	if _, err := applyIndices(candidates, "one,two"); err == nil {
		t.Error("non-numeric tokens expected to error")
	}

	kept, err = applyIndices(candidates, "none")
	if err != nil || kept != nil {
		t.Errorf("NONE (any case) must be empty success, got %v, %v", kept, err)
	}
}

func TestParseLines(t *testing.T) {
	raw := "1. first query\n- second query\n\n\"third query\"\n4) fourth query\nfifth query"
	got := parseLines(raw, 4)
	want := []string{"first query", "second query", "third query", "fourth query"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestScoreLabelDerivedFromScore(t *testing.T) {
	// 模型标签与分值冲突时以分值为准
	gen := &routeGenerator{routes: []route{
		{match: "SENTIMENT:", output: "SENTIMENT: positive\nSCORE: -0.8\nEVIDENCE: harsh criticism\nTHEME: Border Tensions"},
	}}
	u := newTestUnit(gen, nil, testParams(), nil)

	a := model.Article{SourceName: "S", Title: "T"}
	if err := u.scoreOne(context.Background(), &a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Sentiment != model.SentimentCritical {
		t.Errorf("sentiment = %s, want critical (score -0.8 wins over label)", a.Sentiment)
	}
}
