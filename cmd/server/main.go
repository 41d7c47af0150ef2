// PaiFang 巡访排程引擎服务
// 主程序入口

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/paifang/paifang/internal/config"
	"github.com/paifang/paifang/internal/database"
	"github.com/paifang/paifang/internal/handler"
	"github.com/paifang/paifang/internal/metrics"
	"github.com/paifang/paifang/internal/middleware"
	"github.com/paifang/paifang/internal/repository"
	"github.com/paifang/paifang/pkg/logger"
)

// 构建信息（通过 ldflags 注入）
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径（YAML）")
	noDB := flag.Bool("no-db", false, "不连接数据库，排程结果仅返回不落库")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Logger)
	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Msg("PaiFang 巡访排程引擎启动")

	params, err := cfg.Scheduling.Params()
	if err != nil {
		logger.Fatal().Err(err).Msg("排程配置无效")
	}
	clsCfg, err := cfg.Scheduling.ClassifierConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("分类配置无效")
	}

	var store handler.ScheduleStore
	var db *database.DB
	if !*noDB {
		db, err = database.New(cfg.Database)
		if err != nil {
			logger.Fatal().Err(err).Msg("数据库初始化失败")
		}
		defer db.Close()

		if err := db.Migrate(context.Background()); err != nil {
			logger.Fatal().Err(err).Msg("数据库迁移失败")
		}
		store = repository.NewScheduleRepository(db)
	}

	planHandler := handler.NewPlanHandler(params, clsCfg, store)

	mux := http.NewServeMux()

	// 系统端点
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if db != nil {
			if err := db.Health(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				fmt.Fprintf(w, `{"status":"degraded","database":%q}`, err.Error())
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","service":"paifang"}`))
	})
	mux.HandleFunc("/version", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"version":%q,"build_time":%q,"git_commit":%q}`, Version, BuildTime, GitCommit)
	})

	// API v1 端点
	mux.HandleFunc("/api/v1/plan/generate", planHandler.Generate)
	mux.HandleFunc("/api/v1/plan/validate", planHandler.Validate)
	mux.HandleFunc("/api/v1/plan/dispatch", planHandler.Dispatch)
	mux.HandleFunc("/api/v1/plan/latest", planHandler.Latest)
	mux.HandleFunc("/api/v1/plan/history", planHandler.History)
	mux.HandleFunc("/api/v1/plan/remove", planHandler.Remove)
	mux.HandleFunc("/api/v1/stats/workload", planHandler.Workload)

	// 监控端点
	mux.Handle("/metrics", metrics.Handler())

	// 中间件顺序：requestID → recovery → logging → handler
	root := middleware.RequestID(middleware.Recovery(middleware.Logging(mux)))

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      root,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info().
			Str("addr", cfg.Server.Addr()).
			Msg("HTTP服务监听中")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("服务器启动失败")
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("正在关闭服务器...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("服务器关闭失败")
		os.Exit(1)
	}
	logger.Info().Msg("服务器已关闭")
}
