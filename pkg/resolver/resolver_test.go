package resolver

import (
	"context"
	"testing"

	"github.com/orxan-hv/press_radar/pkg/catalog"
	"github.com/orxan-hv/press_radar/pkg/genai"
)

// fakeGenerator 固定输出的生成器
type fakeGenerator struct {
	output string
	err    error
	calls  int
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string, opts ...genai.Option) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.output, nil
}

func TestResolveGroupExpansion(t *testing.T) {
	cat := catalog.New()
	gen := &fakeGenerator{output: `{"subjects": ["AZ"], "source_regions": ["ARAB_WORLD"]}`}
	r := New(gen, cat, "NEIGHBORS")

	res := r.Resolve(context.Background(), "arab world media coverage of Azerbaijan", "AZ")

	if res.Fallback {
		t.Fatal("expected model-derived resolution, got fallback")
	}
	if len(res.Subjects) != 1 || res.Subjects[0].Code != "AZ" {
		t.Fatalf("unexpected subjects: %+v", res.Subjects)
	}
	want := cat.Group("ARAB_WORLD")
	if len(res.Regions) != len(want) {
		t.Fatalf("expected %d regions from group expansion, got %d", len(want), len(res.Regions))
	}
	for i, reg := range res.Regions {
		if reg.Code != want[i].Code {
			t.Errorf("region %d: got %s, want %s", i, reg.Code, want[i].Code)
		}
	}
}

func TestResolveFencedOutput(t *testing.T) {
	cat := catalog.New()
	gen := &fakeGenerator{output: "```json\n{\"subjects\": [\"GE\"], \"source_regions\": [\"TR\", \"RU\"]}\n```"}
	r := New(gen, cat, "NEIGHBORS")

	res := r.Resolve(context.Background(), "how Turkish and Russian press covers Georgia", "AZ")

	if res.Fallback {
		t.Fatal("fenced JSON should still parse")
	}
	if res.Subjects[0].Code != "GE" {
		t.Errorf("subject = %s, want GE", res.Subjects[0].Code)
	}
	if len(res.Regions) != 2 || res.Regions[0].Code != "TR" || res.Regions[1].Code != "RU" {
		t.Errorf("unexpected regions: %+v", res.Regions)
	}
}

func TestResolveGeneratorFailureFallsBack(t *testing.T) {
	cat := catalog.New()
	gen := &fakeGenerator{err: genai.ErrTimeout}
	r := New(gen, cat, "NEIGHBORS")

	res := r.Resolve(context.Background(), "anything", "AZ")

	if !res.Fallback {
		t.Fatal("expected fallback resolution")
	}
	if len(res.Subjects) != 1 || res.Subjects[0].Code != "AZ" {
		t.Fatalf("fallback subject: %+v", res.Subjects)
	}
	want := cat.Group("NEIGHBORS")
	if len(res.Regions) != len(want) {
		t.Fatalf("fallback regions = %d, want %d", len(res.Regions), len(want))
	}
}

func TestResolveUnknownCodesDropped(t *testing.T) {
	cat := catalog.New()
	gen := &fakeGenerator{output: `{"subjects": ["AZ", "XX"], "source_regions": ["TR", "ZZ", "RU"]}`}
	r := New(gen, cat, "NEIGHBORS")

	res := r.Resolve(context.Background(), "q", "AZ")

	if res.Fallback {
		t.Fatal("valid codes remain, should not fall back")
	}
	if len(res.Subjects) != 1 {
		t.Errorf("unknown subject code should be dropped, got %+v", res.Subjects)
	}
	if len(res.Regions) != 2 {
		t.Errorf("unknown region codes should be dropped, got %+v", res.Regions)
	}
}

func TestResolveAllCodesInvalidFallsBack(t *testing.T) {
	cat := catalog.New()
	gen := &fakeGenerator{output: `{"subjects": ["XX"], "source_regions": ["ZZ"]}`}
	r := New(gen, cat, "NEIGHBORS")

	res := r.Resolve(context.Background(), "q", "AZ")
	if !res.Fallback {
		t.Fatal("no usable codes, expected fallback")
	}
	if len(res.Regions) == 0 {
		t.Fatal("fallback must never yield zero regions")
	}
}

func TestResolveGarbageOutputFallsBack(t *testing.T) {
	cat := catalog.New()
	gen := &fakeGenerator{output: "I cannot answer that."}
	r := New(gen, cat, "NEIGHBORS")

	res := r.Resolve(context.Background(), "q", "AZ")
	if !res.Fallback {
		t.Fatal("unparseable output should fall back")
	}
}
