package catalog

import (
	"reflect"
	"sort"
	"testing"
)

func TestRegionLanguageBinding(t *testing.T) {
	c := New()

	r, ok := c.Region("tr")
	if !ok {
		t.Fatal("TR must exist")
	}
	if r.Code != "TR" || r.Name != "Turkey" || r.Language != "tr" || r.LanguageName != "Turkish" {
		t.Errorf("unexpected region: %+v", r)
	}

	// 无语言绑定的国家回退到英语
	r, ok = c.Region("AU")
	if !ok {
		t.Fatal("AU must exist")
	}
	if r.Language != "en" || r.LanguageName != "English" {
		t.Errorf("expected English fallback, got %+v", r)
	}

	if _, ok := c.Region("XX"); ok {
		t.Error("unknown code must not resolve")
	}
}

func TestGroupExpansion(t *testing.T) {
	c := New()

	neighbors := c.Group("NEIGHBORS")
	want := []string{"TR", "RU", "IR", "GE", "AM"}
	if len(neighbors) != len(want) {
		t.Fatalf("NEIGHBORS = %d regions, want %d", len(neighbors), len(want))
	}
	for i, code := range want {
		if neighbors[i].Code != code {
			t.Errorf("NEIGHBORS[%d] = %s, want %s", i, neighbors[i].Code, code)
		}
	}

	if c.Group("NOT_A_GROUP") != nil {
		t.Error("unknown group must return nil")
	}
	// 组名大小写不敏感
	if len(c.Group("neighbors")) != len(want) {
		t.Error("group lookup must normalize case")
	}
}

func TestExpandMixedTokens(t *testing.T) {
	c := New()

	// 组与单码混合，去重，保持首次出现顺序，未知丢弃
	got := c.Expand([]string{"CAUCASUS", "TR", "AZ", "BOGUS"})
	var codes []string
	for _, r := range got {
		codes = append(codes, r.Code)
	}
	want := []string{"AZ", "GE", "AM", "TR"}
	if !reflect.DeepEqual(codes, want) {
		t.Errorf("got %v, want %v", codes, want)
	}
}

func TestGroupNamesSortedAndStable(t *testing.T) {
	c := New()
	names := c.GroupNames()
	if !sort.StringsAreSorted(names) {
		t.Error("group names must be sorted for stable prompt vocabulary")
	}
	found := false
	for _, n := range names {
		if n == "ARAB_WORLD" {
			found = true
		}
	}
	if !found {
		t.Error("ARAB_WORLD group missing")
	}
}

func TestSubjectTerms(t *testing.T) {
	c := New()

	ru := c.SubjectTerms("AZ", "ru")
	if len(ru) == 0 || ru[0] != "Азербайджан" {
		t.Errorf("unexpected russian terms: %v", ru)
	}

	// 无该语言翻译回退到英语
	th := c.SubjectTerms("AZ", "th")
	if len(th) == 0 || th[0] != "Azerbaijan" {
		t.Errorf("expected english fallback, got %v", th)
	}

	// 无任何翻译回退到显示名
	jp := c.SubjectTerms("JP", "ru")
	if len(jp) != 1 || jp[0] != "Japan" {
		t.Errorf("expected display-name fallback, got %v", jp)
	}
}

func TestArabWorldIsArabicSpeaking(t *testing.T) {
	c := New()
	for _, r := range c.Group("ARAB_WORLD") {
		if r.Language != "ar" {
			t.Errorf("%s in ARAB_WORLD has language %s, want ar", r.Code, r.Language)
		}
	}
}
