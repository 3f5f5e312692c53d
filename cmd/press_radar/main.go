package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/orxan-hv/press_radar/pkg/catalog"
	"github.com/orxan-hv/press_radar/pkg/config"
	"github.com/orxan-hv/press_radar/pkg/genai"
	"github.com/orxan-hv/press_radar/pkg/logger"
	"github.com/orxan-hv/press_radar/pkg/pipeline"
	"github.com/orxan-hv/press_radar/pkg/progress"
	"github.com/orxan-hv/press_radar/pkg/search/factory"
	"github.com/orxan-hv/press_radar/pkg/storage"
)

var (
	flagconf     string
	flagQuery    string
	flagEffort   int
	flagSubjects string
	flagRegions  string
)

func init() {
	flag.StringVar(&flagconf, "conf", "configs/config.yaml", "config path, eg: -conf config.yaml")
	flag.StringVar(&flagQuery, "query", "", "monitoring request, eg: -query \"how neighbors cover us\"")
	flag.IntVar(&flagEffort, "effort", 0, "effort tier 1..5, 0 uses config default")
	flag.StringVar(&flagSubjects, "subjects", "", "explicit subject codes, eg: -subjects AZ,GE")
	flag.StringVar(&flagRegions, "regions", "", "explicit region codes or groups, eg: -regions TR,ARAB_WORLD")
}

// splitCodes 拆分逗号分隔的码列表
func splitCodes(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, tok := range strings.Split(s, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// consoleSink 把进度事件打到日志里，一次性命令行运行用
type consoleSink struct{}

func (consoleSink) Publish(ev progress.Event) {
	switch ev.Type {
	case progress.EventRegionStart:
		if p, ok := ev.Payload.(progress.RegionPayload); ok {
			logger.Log.Infof("开始采集地区: %s (%s)", p.Name, p.Region)
		}
	case progress.EventArticleFound:
		if p, ok := ev.Payload.(progress.ArticlePayload); ok {
			logger.Log.Infof("  发现文章 [%s] %s", p.SourceName, p.Title)
		}
	case progress.EventRegionComplete:
		if p, ok := ev.Payload.(progress.RegionCompletePayload); ok {
			logger.Log.Infof("地区 %s 完成: %d 篇 (+%d/-%d/=%d)", p.Region, p.Articles, p.Positive, p.Negative, p.Neutral)
		}
	case progress.EventRegionError:
		if p, ok := ev.Payload.(progress.RegionErrorPayload); ok {
			logger.Log.Warnf("地区 %s 失败于 %s: %s", p.Region, p.Stage, p.Reason)
		}
	}
}

func main() {
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.LoadConfig(flagconf)
	if err != nil {
		log.Fatalf("无法加载配置文件: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	// 2. 初始化日志
	if err := logger.Init(cfg.Log.Level, cfg.Log.File); err != nil {
		log.Fatalf("无法初始化日志: %v", err)
	}
	logger.Log.Info("启动媒体监测...")

	ctx := context.Background()

	// 3. 初始化生成客户端与限流器
	limiter := genai.NewLimiter(cfg.Concurrency)
	gen, err := genai.New(ctx, cfg.LLM, limiter)
	if err != nil {
		logger.Log.Fatalf("%v", err)
	}

	// 4. 初始化搜索（可选）
	searcher, err := factory.NewSearcher(cfg)
	if err != nil {
		logger.Log.Fatalf("搜索初始化失败: %v", err)
	}
	if searcher == nil {
		logger.Log.Info("未配置搜索服务，候选文章将由生成服务模拟")
	}

	// 5. 初始化数据库（可选）
	var store pipeline.Store
	if cfg.DB.Host != "" {
		pg, err := storage.New(cfg.DB)
		if err != nil {
			logger.Log.Errorf("无法连接数据库: %v. 本次运行不持久化。", err)
		} else {
			defer pg.Close()
			store = pg
		}
	} else {
		logger.Log.Info("未配置数据库信息，跳过持久化")
	}

	// 6. 执行监测
	orc := pipeline.New(gen, searcher, catalog.New(), store, pipeline.Defaults{
		Subject:      cfg.Monitor.DefaultSubject,
		Preset:       cfg.Monitor.DefaultPreset,
		Effort:       cfg.Monitor.Effort,
		UserLanguage: cfg.Monitor.UserLanguage,
	})

	_, d, err := orc.Run(ctx, pipeline.Input{
		Query:    flagQuery,
		Subjects: splitCodes(flagSubjects),
		Regions:  splitCodes(flagRegions),
		Effort:   flagEffort,
	}, consoleSink{})
	if err != nil {
		logger.Log.Fatalf("监测运行失败: %v", err)
	}

	fmt.Fprintln(os.Stdout)
	fmt.Fprintln(os.Stdout, d.Narrative)
	fmt.Fprintln(os.Stdout)
	fmt.Fprintln(os.Stdout, d.Rendered)
}
