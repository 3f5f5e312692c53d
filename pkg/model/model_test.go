package model

import "testing"

func TestLabelForScoreBands(t *testing.T) {
	cases := []struct {
		score float64
		want  Sentiment
	}{
		{-1.0, SentimentCritical},
		{-0.31, SentimentCritical},
		{-0.3, SentimentNeutral}, // 区间左闭
		{0.0, SentimentNeutral},
		{0.2, SentimentNeutral}, // 区间右闭
		{0.21, SentimentPositive},
		{1.0, SentimentPositive},
	}
	for _, c := range cases {
		if got := LabelForScore(c.score); got != c.want {
			t.Errorf("LabelForScore(%v) = %s, want %s", c.score, got, c.want)
		}
	}
}

func TestClampScore(t *testing.T) {
	if ClampScore(1.5) != 1.0 {
		t.Error("scores above 1 must clamp to 1")
	}
	if ClampScore(-2) != -1.0 {
		t.Error("scores below -1 must clamp to -1")
	}
	if ClampScore(0.3) != 0.3 {
		t.Error("in-range scores must pass through")
	}
}

func TestRunArticlesFollowsRequestOrder(t *testing.T) {
	run := &Run{
		Request: Request{
			Regions: []SourceRegion{{Code: "TR"}, {Code: "RU"}},
		},
		Coverage: map[string]*RegionCoverage{
			"RU": {Articles: []Article{{Title: "ru1"}}},
			"TR": {Articles: []Article{{Title: "tr1"}, {Title: "tr2"}}},
		},
	}
	got := run.Articles()
	if len(got) != 3 {
		t.Fatalf("articles = %d, want 3", len(got))
	}
	if got[0].Title != "tr1" || got[1].Title != "tr2" || got[2].Title != "ru1" {
		t.Errorf("iteration must follow request region order, got %+v", got)
	}
}
