// Package resolver 将自由文本请求解析为监测对象与来源地区。
// 解析永不向调用方抛错：生成服务失败或返回不可用结果时，
// 软回退到默认对象与预设地区组。
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/orxan-hv/press_radar/pkg/catalog"
	"github.com/orxan-hv/press_radar/pkg/genai"
	"github.com/orxan-hv/press_radar/pkg/logger"
	"github.com/orxan-hv/press_radar/pkg/model"
)

// Resolution 解析结果，总是可用
type Resolution struct {
	Subjects []model.Subject
	Regions  []model.SourceRegion
	// Fallback 标记本次结果来自软回退而非模型输出
	Fallback bool
}

// Resolver 意图解析器
type Resolver struct {
	gen           genai.Generator
	cat           *catalog.Catalog
	defaultPreset string
}

// New 创建解析器，defaultPreset 为回退用的地区组名
func New(gen genai.Generator, cat *catalog.Catalog, defaultPreset string) *Resolver {
	if defaultPreset == "" {
		defaultPreset = "NEIGHBORS"
	}
	return &Resolver{gen: gen, cat: cat, defaultPreset: defaultPreset}
}

// intentResult 模型输出的固定结构
type intentResult struct {
	Subjects      []string `json:"subjects"`
	SourceRegions []string `json:"source_regions"`
}

const intentPromptTpl = `You resolve a media-monitoring request into country codes.

User request: %q

Return ONLY a JSON object, no markdown:
{"subjects": ["<ISO 3166-1 alpha-2 codes of the countries being monitored>"],
 "source_regions": ["<ISO codes of the countries whose media should be sampled>"]}

Rules:
- Expand named groups to concrete codes using this fixed vocabulary: %s.
- "subjects" is the entity the press writes ABOUT (1-3 codes).
- "source_regions" is where the press is published.
- If the request does not name any subject, use %q.
- Never invent codes outside ISO 3166-1 alpha-2.`

// Resolve 解析查询。defaultSubject 为调用方兜底的监测对象国家码。
func (r *Resolver) Resolve(ctx context.Context, query string, defaultSubject string) Resolution {
	prompt := fmt.Sprintf(intentPromptTpl, query, strings.Join(r.cat.GroupNames(), ", "), defaultSubject)

	raw, err := r.gen.Generate(ctx, prompt,
		genai.WithTemperature(0.1),
		genai.WithMaxTokens(256),
		genai.WithSystem("You are a JSON generator. Output a single JSON object only."),
	)
	if err != nil {
		logger.Log.Warnf("意图解析调用失败，回退到默认配置: %v", err)
		return r.fallback(defaultSubject)
	}

	var parsed intentResult
	if err := json.Unmarshal([]byte(genai.StripFences(raw)), &parsed); err != nil {
		logger.Log.Warnf("意图解析输出不可解析，回退到默认配置: %v", err)
		return r.fallback(defaultSubject)
	}

	// 模型返回的码一律过目录校验，不可信的静默丢弃
	var subjects []model.Subject
	for _, code := range parsed.Subjects {
		if s, ok := r.cat.Subject(code); ok {
			subjects = append(subjects, s)
		}
	}
	if len(subjects) > 3 {
		subjects = subjects[:3]
	}
	regions := r.cat.Expand(parsed.SourceRegions)

	if len(subjects) == 0 || len(regions) == 0 {
		logger.Log.Warnf("意图解析结果不完整 (subjects=%d, regions=%d)，回退到默认配置", len(subjects), len(regions))
		return r.fallback(defaultSubject)
	}

	return Resolution{Subjects: subjects, Regions: regions}
}

// fallback 构造默认解析结果
func (r *Resolver) fallback(defaultSubject string) Resolution {
	res := Resolution{Fallback: true}
	if s, ok := r.cat.Subject(defaultSubject); ok {
		res.Subjects = []model.Subject{s}
	}
	res.Regions = r.cat.Group(r.defaultPreset)
	return res
}
