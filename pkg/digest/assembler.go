// Package digest 汇总报告装配：统计与渲染块由代码确定性产出，
// 叙述段落由生成服务撰写，失败时退回固定兜底文案。
package digest

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/orxan-hv/press_radar/pkg/genai"
	"github.com/orxan-hv/press_radar/pkg/logger"
	"github.com/orxan-hv/press_radar/pkg/model"
)

// topThemesPerRegion 地区小计里保留的主题数
const topThemesPerRegion = 3

// topThemesGlobal 全局主题榜长度
const topThemesGlobal = 5

// ComputeStatistics 由冻结后的覆盖集合纯函数推导统计。
// 同一输入必然产出同一结果，百分比保留一位小数。
func ComputeStatistics(run *model.Run) model.Statistics {
	stats := model.Statistics{}

	sources := make(map[string]bool)
	langs := make(map[string]bool)
	globalThemes := make(map[string]int)
	globalOrder := make(map[string]int) // 主题首次出现序，计数相同按先见排序

	for _, region := range run.Request.Regions {
		cov, ok := run.Coverage[region.Code]
		if !ok {
			continue
		}
		if cov.Failed {
			stats.RegionsFailed++
			continue
		}
		stats.RegionsOK++

		regionThemes := make(map[string]int)
		regionOrder := make(map[string]int)
		for _, a := range cov.Articles {
			stats.Total++
			switch a.Sentiment {
			case model.SentimentPositive:
				stats.BySentiment.Positive++
			case model.SentimentCritical:
				stats.BySentiment.Negative++
			default:
				stats.BySentiment.Neutral++
			}
			if a.SourceName != "" {
				sources[a.SourceName] = true
			}
			if a.Language != "" {
				langs[a.Language] = true
			}
			if a.Theme != "" {
				if _, seen := regionThemes[a.Theme]; !seen {
					regionOrder[a.Theme] = len(regionOrder)
				}
				regionThemes[a.Theme]++
				if _, seen := globalThemes[a.Theme]; !seen {
					globalOrder[a.Theme] = len(globalOrder)
				}
				globalThemes[a.Theme]++
			}
		}

		stats.ByRegion = append(stats.ByRegion, model.RegionStat{
			Region:    region.Code,
			Name:      region.Name,
			Count:     len(cov.Articles),
			TopThemes: topThemes(regionThemes, regionOrder, topThemesPerRegion),
		})
	}

	if stats.Total > 0 {
		stats.BySentiment.PositivePct = pct(stats.BySentiment.Positive, stats.Total)
		stats.BySentiment.NegativePct = pct(stats.BySentiment.Negative, stats.Total)
		stats.BySentiment.NeutralPct = pct(stats.BySentiment.Neutral, stats.Total)
	}
	stats.UniqueSources = len(sources)
	stats.UniqueLanguage = len(langs)

	for _, tc := range topThemes(globalThemes, globalOrder, topThemesGlobal) {
		stats.TopThemes = append(stats.TopThemes, model.ThemeCount{Theme: tc, Count: globalThemes[tc]})
	}
	return stats
}

// pct 百分比保留一位小数
func pct(n, total int) float64 {
	return math.Round(float64(n)*1000/float64(total)) / 10
}

// topThemes 按计数降序取前 n 个主题，计数相同按首次出现序
func topThemes(counts map[string]int, order map[string]int, n int) []string {
	themes := make([]string, 0, len(counts))
	for t := range counts {
		themes = append(themes, t)
	}
	sort.Slice(themes, func(i, j int) bool {
		if counts[themes[i]] != counts[themes[j]] {
			return counts[themes[i]] > counts[themes[j]]
		}
		return order[themes[i]] < order[themes[j]]
	})
	if len(themes) > n {
		themes = themes[:n]
	}
	return themes
}

// Render 渲染确定性的统计文本块，含情感条形图与地区明细
func Render(stats model.Statistics, run *model.Run) string {
	var sb strings.Builder

	sb.WriteString("SENTIMENT BREAKDOWN\n")
	writeBar(&sb, "Positive", stats.BySentiment.Positive, stats.BySentiment.PositivePct)
	writeBar(&sb, "Neutral ", stats.BySentiment.Neutral, stats.BySentiment.NeutralPct)
	writeBar(&sb, "Critical", stats.BySentiment.Negative, stats.BySentiment.NegativePct)

	sb.WriteString("\nBY REGION\n")
	for _, rs := range stats.ByRegion {
		fmt.Fprintf(&sb, "  %s (%s): %d articles", rs.Name, rs.Region, rs.Count)
		if len(rs.TopThemes) > 0 {
			fmt.Fprintf(&sb, " — %s", strings.Join(rs.TopThemes, ", "))
		}
		sb.WriteByte('\n')
	}
	for _, region := range run.Request.Regions {
		if cov, ok := run.Coverage[region.Code]; ok && cov.Failed {
			fmt.Fprintf(&sb, "  %s (%s): failed at %s\n", region.Name, region.Code, cov.FailedAt)
		}
	}

	if len(stats.TopThemes) > 0 {
		sb.WriteString("\nTOP THEMES\n")
		for _, tc := range stats.TopThemes {
			fmt.Fprintf(&sb, "  %s (%d)\n", tc.Theme, tc.Count)
		}
	}

	fmt.Fprintf(&sb, "\n%d articles | %d sources | %d languages | %d/%d regions covered\n",
		stats.Total, stats.UniqueSources, stats.UniqueLanguage,
		stats.RegionsOK, stats.RegionsOK+stats.RegionsFailed)
	return sb.String()
}

// writeBar 单行条形图，每 5 个百分点一格，封顶 20 格
func writeBar(sb *strings.Builder, label string, count int, p float64) {
	bar := strings.Repeat("█", minInt(20, int(p/5)))
	fmt.Fprintf(sb, "  %s %-20s %5.1f%% (%d)\n", label, bar, p, count)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Assembler 报告装配器
type Assembler struct {
	gen genai.Generator
}

// NewAssembler 创建装配器
func NewAssembler(gen genai.Generator) *Assembler {
	return &Assembler{gen: gen}
}

// Assemble 装配最终报告。统计与渲染块总是产出；
// 叙述调用失败不致命，退回兜底文案。
func (a *Assembler) Assemble(ctx context.Context, run *model.Run) *model.Digest {
	stats := ComputeStatistics(run)
	d := &model.Digest{
		Statistics: stats,
		Rendered:   Render(stats, run),
	}
	d.Narrative = a.narrative(ctx, run, stats)
	return d
}

// narrative 生成叙述段落，语言跟随请求方
func (a *Assembler) narrative(ctx context.Context, run *model.Run, stats model.Statistics) string {
	var subjects []string
	for _, s := range run.Request.Subjects {
		subjects = append(subjects, s.Name)
	}

	var sb strings.Builder
	for _, region := range run.Request.Regions {
		cov, ok := run.Coverage[region.Code]
		if !ok || cov.Failed {
			continue
		}
		for _, art := range cov.Articles {
			fmt.Fprintf(&sb, "- [%s, %s] %s (sentiment %s", art.SourceName, region.Name, art.Title, art.Sentiment)
			if art.Theme != "" {
				fmt.Fprintf(&sb, ", theme: %s", art.Theme)
			}
			sb.WriteString(")\n")
		}
	}

	lang := run.Request.UserLanguage
	if lang == "" {
		lang = "en"
	}
	prompt := fmt.Sprintf(`Write a concise press-monitoring digest narrative about how foreign media covers %s.

Collected articles:
%s
Overall: %d articles, %.1f%% positive, %.1f%% critical, %.1f%% neutral.

Write 3-4 paragraphs in language %q following this outline: overview of the overall tone,
notable per-region differences, dominant themes, and closing strategic insights.
Plain prose, no headings, no bullet points. Do not restate exact numbers; they are reported separately.`,
		strings.Join(subjects, ", "), sb.String(), stats.Total,
		stats.BySentiment.PositivePct, stats.BySentiment.NegativePct, stats.BySentiment.NeutralPct, lang)

	text, err := a.gen.Generate(ctx, prompt,
		genai.WithTemperature(0.4),
		genai.WithMaxTokens(1024),
	)
	if err != nil {
		logger.Log.Warnf("叙述生成失败，使用兜底文案: %v", err)
		return fallbackNarrative(subjects, stats)
	}
	return text
}

// fallbackNarrative 叙述生成不可用时的确定性文案
func fallbackNarrative(subjects []string, stats model.Statistics) string {
	return fmt.Sprintf(
		"Monitoring of press coverage about %s collected %d articles from %d sources across %d regions "+
			"(%.1f%% positive, %.1f%% critical, %.1f%% neutral). A narrative summary could not be generated for this run; "+
			"see the statistics below.",
		strings.Join(subjects, ", "), stats.Total, stats.UniqueSources, stats.RegionsOK,
		stats.BySentiment.PositivePct, stats.BySentiment.NegativePct, stats.BySentiment.NeutralPct)
}
