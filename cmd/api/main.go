package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-train-ticket-booking/internal/api"
	"github.com/sanosuguru/go-train-ticket-booking/internal/api/handler"
	apimiddleware "github.com/sanosuguru/go-train-ticket-booking/internal/api/middleware"
	"github.com/sanosuguru/go-train-ticket-booking/internal/application"
	"github.com/sanosuguru/go-train-ticket-booking/internal/config"
	"github.com/sanosuguru/go-train-ticket-booking/internal/infrastructure/postgres"
	"github.com/sanosuguru/go-train-ticket-booking/internal/infrastructure/queue"
	redisinfra "github.com/sanosuguru/go-train-ticket-booking/internal/infrastructure/redis"
	"github.com/sanosuguru/go-train-ticket-booking/internal/pkg/clock"
	"github.com/sanosuguru/go-train-ticket-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-train-ticket-booking/internal/pkg/metrics"
	"github.com/sanosuguru/go-train-ticket-booking/internal/worker"
)

func main() {
	// .envファイルがあれば読み込む（本番では環境変数を直接設定）
	_ = godotenv.Load()

	cfg := config.Load()

	logger.Set(logger.NewLogger(os.Getenv("APP_ENV")))
	defer func() { _ = logger.Sync() }()

	m := metrics.Init()

	// PostgreSQL接続
	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		logger.Fatal("データベース接続に失敗しました", zap.Error(err))
	}
	defer db.Close()

	migrationsPath := os.Getenv("MIGRATIONS_PATH")
	if migrationsPath == "" {
		migrationsPath = "migrations"
	}
	if err := postgres.RunMigrations(db.DB, migrationsPath); err != nil {
		logger.Fatal("マイグレーションに失敗しました", zap.Error(err))
	}

	clk := clock.System{}

	// Redis接続（空席キャッシュと分散ロック）
	// 接続できない場合はキャッシュ・ロックなしで起動する
	var (
		availabilityCache *redisinfra.AvailabilityCache
		lockManager       redisinfra.LockManagerInterface
	)
	rdb := redisinfra.NewClient(&cfg.Redis)
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
	if err := redisinfra.Ping(pingCtx, rdb); err != nil {
		logger.Warn("Redisに接続できません。キャッシュと分散ロックを無効化します", zap.Error(err))
	} else {
		availabilityCache = redisinfra.NewAvailabilityCache(rdb)
		lockManager = redisinfra.NewLockManager(rdb)
	}
	cancelPing()

	// メッセージブローカー接続
	// 接続できない場合はイベント発行をスキップする
	var publisher queue.Publisher
	amqpPublisher, err := queue.NewAMQPPublisher(cfg.Queue.URL)
	if err != nil {
		logger.Warn("メッセージブローカーに接続できません。イベント発行を無効化します", zap.Error(err))
		publisher = queue.NoopPublisher{}
	} else {
		publisher = amqpPublisher
	}
	defer publisher.Close()

	// リポジトリ
	txManager := postgres.NewTxManager(db)
	trainRepo := postgres.NewTrainRepository(db)
	bucketRepo := postgres.NewBucketRepository(db)
	bookingRepo := postgres.NewBookingRepository(db)
	userRepo := postgres.NewUserRepository(db)

	// アプリケーションサービス
	catalogService := application.NewCatalogService(trainRepo, bucketRepo, bucketRepo, availabilityCache, clk)
	bookingService := application.NewBookingService(txManager, bookingRepo, trainRepo, bucketRepo, lockManager, publisher, availabilityCache, clk)
	authService := application.NewAuthService(userRepo, cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, clk)

	// ハンドラー
	healthHandler := handler.NewHealthHandler()
	authHandler := handler.NewAuthHandler(authService)
	trainHandler := handler.NewTrainHandler(catalogService)
	bookingHandler := handler.NewBookingHandler(bookingService)
	paymentHandler := handler.NewPaymentHandler(bookingService, clk)

	// Echo設定
	e := echo.New()
	e.HideBanner = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	apimiddleware.SetupMiddleware(e)
	e.Use(apimiddleware.PrometheusMiddleware(m))

	// 公開エンドポイント
	e.GET("/health", healthHandler.Check)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), apimiddleware.MetricsBasicAuth())
	e.POST("/signup", authHandler.Signup)
	e.POST("/login", authHandler.Login)
	e.GET("/trains", trainHandler.Search)
	e.GET("/trains/:id", trainHandler.GetByID)
	e.GET("/trains/:id/availability", trainHandler.Availability)
	e.POST("/trains", trainHandler.Add)
	e.POST("/trains/:id/seat-classes", trainHandler.AddSeatClass)

	// 認証が必要なエンドポイント
	authed := e.Group("", apimiddleware.JWTAuth(authService))
	authed.POST("/bookings", bookingHandler.Create)
	authed.GET("/bookings", bookingHandler.List)
	authed.GET("/bookings/:id", bookingHandler.GetByID)
	authed.POST("/bookings/:id/cancel", bookingHandler.Cancel)
	authed.POST("/payments", paymentHandler.Create)

	// 帳簿整合性チェックワーカー
	reconciler := worker.NewLedgerReconciler(bucketRepo, cfg.Worker.ReconcileInterval)
	workerCtx, cancelWorker := context.WithCancel(context.Background())
	go reconciler.Start(workerCtx)

	// サーバー起動
	go func() {
		if err := e.Start(":" + cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("サーバー起動エラー", zap.Error(err))
		}
	}()

	// シグナル待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("サーバーをシャットダウンしています...")

	cancelWorker()
	reconciler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("サーバーシャットダウンエラー", zap.Error(err))
	}

	logger.Info("サーバーが正常にシャットダウンしました")
}
