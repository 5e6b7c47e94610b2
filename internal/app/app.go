package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/pinflow/internal/catalog"
	"github.com/hitoshi/pinflow/internal/config"
	"github.com/hitoshi/pinflow/internal/database"
	"github.com/hitoshi/pinflow/internal/handler"
	"github.com/hitoshi/pinflow/internal/imageprep"
	"github.com/hitoshi/pinflow/internal/logger"
	"github.com/hitoshi/pinflow/internal/metrics"
	"github.com/hitoshi/pinflow/internal/pipeline"
	"github.com/hitoshi/pinflow/internal/publisher"
	"github.com/hitoshi/pinflow/internal/repository"
	"github.com/hitoshi/pinflow/internal/research"
	schedpkg "github.com/hitoshi/pinflow/internal/scheduler"
	"github.com/hitoshi/pinflow/internal/security"
	"github.com/hitoshi/pinflow/internal/store"
	"github.com/hitoshi/pinflow/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("board_name", cfg.BoardName),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandOnce:
		return runOnce(cfg)
	case CommandServe:
		return runServe(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runWorker(cfg)
	}
}

// pipelineDeps はパイプライン一式のワイヤリング結果をまとめる。
type pipelineDeps struct {
	db           *sql.DB
	records      *store.RecordStore
	orchestrator *pipeline.Orchestrator
	scheduler    *schedpkg.Scheduler
	registry     *prometheus.Registry
}

// closeDB はDB接続が開かれていれば閉じる。
func (d *pipelineDeps) closeDB() {
	if d.db != nil {
		d.db.Close()
	}
}

// buildPipeline は投稿パイプラインの全依存関係をワイヤリングする。
// DBが利用できなくても起動は継続し、記録ストアは空の状態から始まる。
func buildPipeline(cfg *config.Config) (*pipelineDeps, error) {
	// 1. DB接続
	var recordRepo repository.RecordRepository
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		slog.Warn("データベースを開けないため記録はメモリ上に保持されます",
			slog.String("error", err.Error()))
		db = nil
		recordRepo = repository.NewMemoryRecordRepo()
	} else if pingErr := db.Ping(); pingErr != nil {
		// 接続は後から復旧し得るためハンドルは保持する。復旧までの
		// 書き込みはストア側のフォールバックバッファへ退避される。
		slog.Warn("データベースに接続できないため記録ストアを空の状態で開始します",
			slog.String("error", pingErr.Error()))
		recordRepo = repository.NewPostgresRecordRepo(db)
	} else {
		slog.Info("database connection established")
		recordRepo = repository.NewPostgresRecordRepo(db)
	}

	// 2. 記録ストアの初期化
	records := store.New(recordRepo, slog.Default(), cfg.DedupeCountFailed)

	// 3. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	safeClient := ssrfGuard.NewSafeClient(cfg.HTTPTimeout, cfg.HTTPMaxBodySize)
	sanitizer := security.NewCopySanitizer()

	// 4. トレンド調査サービスの初期化
	trendClient := research.NewClient(safeClient, slog.Default(), cfg.PinterestAPIBaseURL, cfg.PinterestAccessToken)

	var feedSource research.FeedReader
	if len(cfg.TrendFeedURLs) > 0 {
		feedSource = research.NewFeedSource(safeClient, slog.Default(), cfg.TrendFeedURLs, cfg.HTTPMaxBodySize)
	}

	limiter := rate.NewLimiter(rate.Every(cfg.ResearchAPIInterval), 1)
	researchSvc := research.NewService(trendClient, feedSource, cfg.ResearchKeywords, limiter, slog.Default())

	// 5. 商品解決と画像加工の初期化
	// ドライラン時は組み込みフィクスチャから解決し、Amazonへは出ない
	var resolver catalog.Resolver
	if cfg.DryRun {
		slog.Info("dry run: resolving products from built-in fixtures")
		resolver = catalog.NewMemoryResolver(cfg.AmazonBaseURL, cfg.AmazonAssociateTag)
	} else {
		resolver = catalog.NewAmazonClient(
			safeClient, slog.Default(), cfg.AmazonBaseURL, cfg.AmazonAssociateTag,
			sanitizer, cfg.HTTPMaxBodySize,
		)
	}
	imageClient := imageprep.NewClient(
		safeClient, slog.Default(), cfg.ImagePrepAPIURL, cfg.ImagePrepAPIToken,
		cfg.ImageTargetWidth, cfg.ImageTargetHeight,
	)

	builder := pipeline.NewPinBuilder(cfg.BoardName)
	fulfiller := pipeline.NewFulfiller(resolver, imageClient, builder, slog.Default())

	// 6. 公開クライアントの初期化
	pinterestClient := publisher.NewClient(safeClient, slog.Default(), cfg.PinterestAPIBaseURL, cfg.PinterestAccessToken)

	// 7. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 8. オーケストレータとスケジューラの初期化
	orchestrator := pipeline.NewOrchestrator(pipeline.OrchestratorParams{
		Research:          researchSvc,
		Fulfiller:         fulfiller,
		Records:           records,
		Publisher:         pinterestClient,
		Metrics:           collector,
		Logger:            slog.Default(),
		MaxPostsPerDay:    cfg.PostsPerDay,
		RecencyWindowDays: cfg.RecencyWindowDays,
		IncludeFallback:   cfg.IncludeFallback,
	})

	scheduler := schedpkg.New(
		cfg.PostTimes, cfg.RandomTimeRangeMinutes, cfg.PostToleranceMinutes,
		nil, slog.Default(), nil,
	)

	return &pipelineDeps{
		db:           db,
		records:      records,
		orchestrator: orchestrator,
		scheduler:    scheduler,
		registry:     registry,
	}, nil
}

// runWorker は投稿ワーカーモードで起動する。
// 投稿スケジューラ・クリーンアップジョブ・メトリクスエンドポイントを起動し、
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	deps, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	defer deps.closeDB()

	// クリーンアップジョブの初期化（DBが使える場合のみ）
	var cleanupJob *cleanup.CleanupJob
	if deps.db != nil {
		cleanupJob = cleanup.NewCleanupJob(deps.db, slog.Default())
		cleanupJob.RetentionDays = cfg.RecordRetentionDays
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Int("posts_per_day", cfg.PostsPerDay),
		slog.String("schedule", deps.scheduler.ScheduleSummary()),
	)

	stats := deps.records.Stats(ctx)
	slog.Info("record store stats",
		slog.Int("total", stats.Total),
		slog.Int("succeeded", stats.Succeeded),
		slog.Int("failed", stats.Failed),
		slog.Int("last_7_days", stats.Last7Days),
		slog.Int("last_30_days", stats.Last30Days),
	)

	// メトリクスエンドポイントをバックグラウンドで公開
	metricsServer := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: metrics.SetupMetricsRoute(deps.registry),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()

	// クリーンアップジョブを日次でバックグラウンド実行
	if cleanupJob != nil {
		go func() {
			// 起動直後に1回実行
			if err := cleanupJob.Run(ctx); err != nil {
				slog.Error("cleanup job failed", slog.String("error", err.Error()))
			}

			ticker := time.NewTicker(24 * time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := cleanupJob.Run(ctx); err != nil {
						slog.Error("cleanup job failed", slog.String("error", err.Error()))
					}
				}
			}
		}()
	}

	// 投稿スケジューラをメインgoroutineで実行（ブロッキング）
	deps.scheduler.Start(ctx, deps.orchestrator)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("metrics server shutdown failed", slog.String("error", err.Error()))
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// runOnce は投稿サイクルを1回だけ実行して終了する。
// サイクルの結果（成功・スキップ・失敗）にかかわらず正常終了する。
func runOnce(cfg *config.Config) error {
	deps, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	defer deps.closeDB()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	result := deps.orchestrator.RunCycle(ctx)

	slog.Info("single cycle finished",
		slog.String("outcome", string(result.Outcome)),
		slog.String("reason", result.Reason),
		slog.String("asin", result.ASIN),
		slog.String("title", result.Title),
	)
	return nil
}

// runServe は運用APIサーバーモードで起動する。
// DB接続を開き、統計・履歴・スケジュール参照のHTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	deps, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	defer deps.closeDB()

	routerDeps := &handler.RouterDeps{
		Stats:    deps.records,
		Records:  deps.records,
		Schedule: deps.scheduler,
		Logger:   slog.Default(),
		Gatherer: deps.registry,
	}
	if deps.db != nil {
		routerDeps.Health = deps.db
	}
	router := handler.NewRouter(routerDeps)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
