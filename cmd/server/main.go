package main

import (
	"context"
	"flag"
	"log"

	"github.com/go-kratos/kratos/v2"

	"github.com/orxan-hv/press_radar/pkg/catalog"
	"github.com/orxan-hv/press_radar/pkg/config"
	"github.com/orxan-hv/press_radar/pkg/genai"
	"github.com/orxan-hv/press_radar/pkg/logger"
	"github.com/orxan-hv/press_radar/pkg/pipeline"
	"github.com/orxan-hv/press_radar/pkg/search/factory"
	"github.com/orxan-hv/press_radar/pkg/server"
	"github.com/orxan-hv/press_radar/pkg/storage"
)

// go build -ldflags "-X main.Version=x.y.z"
var (
	// Name 是服务的名称
	Name string = "press_radar"
	// Version 是服务的版本号
	Version string
	// flagconf 是配置文件的路径命令行参数
	flagconf string
)

func init() {
	flag.StringVar(&flagconf, "conf", "configs/config.yaml", "config path, eg: -conf config.yaml")
}

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig(flagconf)
	if err != nil {
		log.Fatalf("无法加载配置文件: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.File); err != nil {
		log.Fatalf("无法初始化日志: %v", err)
	}

	ctx := context.Background()

	limiter := genai.NewLimiter(cfg.Concurrency)
	gen, err := genai.New(ctx, cfg.LLM, limiter)
	if err != nil {
		logger.Log.Fatalf("%v", err)
	}

	searcher, err := factory.NewSearcher(cfg)
	if err != nil {
		logger.Log.Fatalf("搜索初始化失败: %v", err)
	}

	var pg *storage.Postgres
	var store pipeline.Store
	if cfg.DB.Host != "" {
		pg, err = storage.New(cfg.DB)
		if err != nil {
			logger.Log.Errorf("无法连接数据库: %v. 服务以无持久化模式启动。", err)
			pg = nil
		} else {
			defer pg.Close()
			store = pg
		}
	}

	orc := pipeline.New(gen, searcher, catalog.New(), store, pipeline.Defaults{
		Subject:      cfg.Monitor.DefaultSubject,
		Preset:       cfg.Monitor.DefaultPreset,
		Effort:       cfg.Monitor.Effort,
		UserLanguage: cfg.Monitor.UserLanguage,
	})

	srv := server.NewServer(cfg.Server, orc, pg)
	app := kratos.New(
		kratos.Name(Name),
		kratos.Version(Version),
		kratos.Server(srv),
	)

	logger.Log.Infof("HTTP 服务监听于 %s", cfg.Server.Addr)
	if err := app.Run(); err != nil {
		logger.Log.Fatalf("服务退出: %v", err)
	}
}
