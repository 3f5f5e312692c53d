// Package pipeline 编排整次监测运行：意图解析、按来源地区扇出采集单元、
// 汇聚覆盖结果、推导运行状态并装配最终报告。
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/orxan-hv/press_radar/pkg/catalog"
	"github.com/orxan-hv/press_radar/pkg/coverage"
	"github.com/orxan-hv/press_radar/pkg/digest"
	"github.com/orxan-hv/press_radar/pkg/genai"
	"github.com/orxan-hv/press_radar/pkg/logger"
	"github.com/orxan-hv/press_radar/pkg/model"
	"github.com/orxan-hv/press_radar/pkg/progress"
	"github.com/orxan-hv/press_radar/pkg/resolver"
	"github.com/orxan-hv/press_radar/pkg/search"
)

// deadlineReserve 截止前预留给过滤、评分与报告装配的时间，
// 剩余时间不足时不再启动新的地区单元
const deadlineReserve = 20 * time.Second

// EffortConfig 投入档位折算出的运行参数
type EffortConfig struct {
	MaxConcurrent    int
	QueriesPerRegion int
	MaxRegions       int
	ArticlesPerQuery int
	RunTimeout       time.Duration
}

// ConfigForEffort 档位 1..5 到运行参数的固定映射，越界按 3 处理
func ConfigForEffort(effort int) EffortConfig {
	switch effort {
	case 1:
		return EffortConfig{MaxConcurrent: 1, QueriesPerRegion: 2, MaxRegions: 2, ArticlesPerQuery: 2, RunTimeout: 2 * time.Minute}
	case 2:
		return EffortConfig{MaxConcurrent: 2, QueriesPerRegion: 3, MaxRegions: 3, ArticlesPerQuery: 2, RunTimeout: 3 * time.Minute}
	case 4:
		return EffortConfig{MaxConcurrent: 4, QueriesPerRegion: 6, MaxRegions: 8, ArticlesPerQuery: 3, RunTimeout: 8 * time.Minute}
	case 5:
		return EffortConfig{MaxConcurrent: 5, QueriesPerRegion: 8, MaxRegions: 12, ArticlesPerQuery: 4, RunTimeout: 10 * time.Minute}
	default:
		return EffortConfig{MaxConcurrent: 3, QueriesPerRegion: 5, MaxRegions: 5, ArticlesPerQuery: 3, RunTimeout: 5 * time.Minute}
	}
}

// Store 运行结果持久化接口，持久化失败不影响运行结果
type Store interface {
	SaveRun(ctx context.Context, run *model.Run, d *model.Digest) error
}

// Defaults 编排层兜底参数
type Defaults struct {
	Subject      string // 默认监测对象国家码
	Preset       string // 意图解析失败时的来源地区组
	Effort       int
	UserLanguage string
}

// Orchestrator 监测运行编排器
type Orchestrator struct {
	gen      genai.Generator
	searcher search.Searcher
	cat      *catalog.Catalog
	res      *resolver.Resolver
	asm      *digest.Assembler
	store    Store // 为 nil 时不持久化
	defaults Defaults
}

// New 创建编排器。searcher 与 store 允许为 nil。
func New(gen genai.Generator, searcher search.Searcher, cat *catalog.Catalog, store Store, defaults Defaults) *Orchestrator {
	if defaults.Subject == "" {
		defaults.Subject = "AZ"
	}
	if defaults.Effort < 1 || defaults.Effort > 5 {
		defaults.Effort = 3
	}
	if defaults.UserLanguage == "" {
		defaults.UserLanguage = "en"
	}
	return &Orchestrator{
		gen:      gen,
		searcher: searcher,
		cat:      cat,
		res:      resolver.New(gen, cat, defaults.Preset),
		asm:      digest.NewAssembler(gen),
		store:    store,
		defaults: defaults,
	}
}

// Input 一次监测运行的输入。Subjects/Regions 给出时跳过对应的意图解析，
// 未给出的部分由 Query 经生成服务解析补齐。
type Input struct {
	Query        string
	Subjects     []string // 显式的监测对象国家码
	Regions      []string // 显式的来源地区码或组名
	Effort       int      // 1..5，越界取默认档
	UserLanguage string
}

// Run 执行一次完整监测。事件推送到 sink，流以 complete 或 error
// 恰好一次收尾。运行整体失败时返回非 nil 错误，digest 为 nil。
func (o *Orchestrator) Run(ctx context.Context, in Input, sink progress.Sink) (*model.Run, *model.Digest, error) {
	if sink == nil {
		sink = progress.Discard
	}
	effort := in.Effort
	if effort < 1 || effort > 5 {
		effort = o.defaults.Effort
	}
	userLanguage := in.UserLanguage
	if userLanguage == "" {
		userLanguage = o.defaults.UserLanguage
	}
	ec := ConfigForEffort(effort)
	start := time.Now()

	sink.Publish(progress.Event{Type: progress.EventStart})
	logger.Log.Infof("监测运行开始: effort=%d, query=%q", effort, in.Query)

	subjects, regions := o.scope(ctx, in)
	if len(regions) == 0 {
		// 兜底之后仍无地区只可能是预设组配置错误，面向使用方报出
		err := fmt.Errorf("没有可用的来源地区，请检查默认地区组配置")
		sink.Publish(progress.Event{Type: progress.EventError, Payload: progress.ErrorPayload{Message: err.Error()}})
		return nil, nil, err
	}
	if len(regions) > ec.MaxRegions {
		regions = regions[:ec.MaxRegions]
	}

	run := &model.Run{
		Request: model.Request{
			Subjects:     subjects,
			Regions:      regions,
			Effort:       effort,
			UserLanguage: userLanguage,
		},
		Coverage:  make(map[string]*model.RegionCoverage, len(regions)),
		Status:    model.StatusRunning,
		StartedAt: start,
	}

	sink.Publish(progress.Event{Type: progress.EventScope, Payload: progress.ScopePayload{
		Subjects:       subjects,
		Regions:        regions,
		QueriesPerUnit: ec.QueriesPerRegion,
	}})

	runCtx, cancel := context.WithTimeout(ctx, ec.RunTimeout)
	defer cancel()
	deadline, _ := runCtx.Deadline()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		sem  = make(chan struct{}, ec.MaxConcurrent)
		done int
	)
	for _, region := range regions {
		wg.Add(1)
		go func(region model.SourceRegion) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			var cov *model.RegionCoverage
			if time.Until(deadline) < deadlineReserve {
				// 剩余时间留给收尾，跳过的地区按失败冻结
				cov = &model.RegionCoverage{Region: region, Failed: true, FailedAt: "deadline"}
				sink.Publish(progress.Event{Type: progress.EventRegionError, Payload: progress.RegionErrorPayload{
					Region: region.Code,
					Stage:  "deadline",
					Reason: "运行截止临近，地区被跳过",
				}})
			} else {
				unit := coverage.NewUnit(o.gen, o.searcher, o.cat, coverage.Params{
					Region:           region,
					Subjects:         subjects,
					Queries:          ec.QueriesPerRegion,
					ArticlesPerQuery: ec.ArticlesPerQuery,
				}, sink)
				cov = unit.Run(runCtx)
			}

			mu.Lock()
			run.Coverage[region.Code] = cov
			done++
			total := 0
			for _, c := range run.Coverage {
				total += len(c.Articles)
			}
			sink.Publish(progress.Event{Type: progress.EventStatistics, Payload: progress.StatisticsPayload{
				RegionsDone:  done,
				RegionsTotal: len(regions),
				Articles:     total,
			}})
			mu.Unlock()
		}(region)
	}
	wg.Wait()

	run.FinishedAt = time.Now()
	run.Status = deriveStatus(run)

	if run.Status == model.StatusFailed {
		err := fmt.Errorf("所有来源地区采集失败")
		sink.Publish(progress.Event{Type: progress.EventError, Payload: progress.ErrorPayload{
			Message:    err.Error(),
			Statistics: digest.ComputeStatistics(run),
		}})
		logger.Log.Errorf("监测运行失败: %v", err)
		return run, nil, err
	}

	sink.Publish(progress.Event{Type: progress.EventGeneratingDigest})
	d := o.asm.Assemble(runCtx, run)

	if o.store != nil {
		if err := o.store.SaveRun(ctx, run, d); err != nil {
			logger.Log.Warnf("运行结果持久化失败: %v", err)
		}
	}

	sink.Publish(progress.Event{Type: progress.EventComplete, Payload: progress.CompletePayload{
		Status:  run.Status,
		Digest:  d,
		Elapsed: time.Since(start).Round(time.Second).String(),
	}})
	logger.Log.Infof("监测运行结束: status=%s, articles=%d, 耗时 %.1fs",
		run.Status, d.Statistics.Total, time.Since(start).Seconds())
	return run, d, nil
}

// scope 确定本次运行的监测对象与来源地区。显式给出的码先经目录校验，
// 缺失的部分由意图解析（含软回退）补齐。
func (o *Orchestrator) scope(ctx context.Context, in Input) ([]model.Subject, []model.SourceRegion) {
	var subjects []model.Subject
	for _, code := range in.Subjects {
		if s, ok := o.cat.Subject(code); ok {
			subjects = append(subjects, s)
		}
	}
	if len(subjects) > 3 {
		subjects = subjects[:3]
	}
	regions := o.cat.Expand(in.Regions)

	if len(subjects) > 0 && len(regions) > 0 {
		return subjects, regions
	}
	res := o.res.Resolve(ctx, in.Query, o.defaults.Subject)
	if len(subjects) == 0 {
		subjects = res.Subjects
	}
	if len(regions) == 0 {
		regions = res.Regions
	}
	return subjects, regions
}

// deriveStatus 由冻结后的覆盖集合推导运行状态:
// 全部失败 -> failed；有失败但有覆盖 -> partial；无失败 -> complete
func deriveStatus(run *model.Run) model.RunStatus {
	var failed, ok int
	for _, cov := range run.Coverage {
		if cov.Failed {
			failed++
		} else {
			ok++
		}
	}
	switch {
	case ok == 0:
		return model.StatusFailed
	case failed > 0:
		return model.StatusPartial
	default:
		return model.StatusComplete
	}
}
