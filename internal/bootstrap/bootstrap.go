package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	domainauth "wpguard/internal/domain/auth"
	"wpguard/internal/domain/changelog"
	"wpguard/internal/domain/eventbus"
	"wpguard/internal/domain/mail"
	"wpguard/internal/domain/schedule"
	"wpguard/internal/domain/upload"
	"wpguard/internal/domain/watchlist"
	platformconfig "wpguard/internal/platform/config"
	platformerrors "wpguard/internal/platform/errors"
	platformlogging "wpguard/internal/platform/logging"
	"wpguard/internal/platform/metrics"
	platformstorage "wpguard/internal/platform/storage"
	httptransport "wpguard/internal/transport/http"
	httpadmin "wpguard/internal/transport/http/admin"
	httpupload "wpguard/internal/transport/http/upload"
	"wpguard/internal/utils"
)

// Options select where configuration comes from.
type Options struct {
	// ConfigPath pins the yaml file; empty falls back to WPGUARD_CONFIG and
	// then .config.yaml.
	ConfigPath string
	UseDotEnv  bool
	// Config skips loading entirely when set.
	Config *platformconfig.Config
}

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

type appState struct {
	opts        Options
	config      *platformconfig.Config
	configPath  string
	logProvider *platformlogging.Logger
	logger      *utils.Logger
	db          *gorm.DB
	history     *platformstorage.HistoryRepository
	registry    *prometheus.Registry
	prom        *metrics.Prom
	metrics     metrics.Metrics
	httpMetrics metrics.HTTPMetrics
	bus         *eventbus.AsyncEventBus
	store       watchlist.Store
	notifier    mail.Notifier
	watcher     *changelog.Watcher
	scheduler   *schedule.Scheduler
	validator   *upload.Validator
	nonces      *domainauth.NonceIssuer
}

// App exposes the initialised components to the CLI.
type App struct {
	Config     *platformconfig.Config
	ConfigPath string
	Logger     *utils.Logger
	Watcher    *changelog.Watcher
	Scheduler  *schedule.Scheduler
	Validator  *upload.Validator
	History    *platformstorage.HistoryRepository

	state *appState
	steps []initStep
}

// Prepare runs the init graph without starting any server.
func Prepare(ctx context.Context, opts Options) (*App, error) {
	state := &appState{opts: opts}
	steps := InitGraph()
	if err := executeInitSteps(ctx, steps, state); err != nil {
		state.close()
		return nil, err
	}
	return &App{
		Config:     state.config,
		ConfigPath: state.configPath,
		Logger:     state.logger,
		Watcher:    state.watcher,
		Scheduler:  state.scheduler,
		Validator:  state.validator,
		History:    state.history,
		state:      state,
		steps:      steps,
	}, nil
}

// Close releases everything Prepare acquired, in reverse order.
func (a *App) Close() {
	if a == nil {
		return
	}
	a.state.close()
}

// Run 启动整个服务生命周期，负责加载配置、初始化依赖和优雅关停。
func Run(ctx context.Context, opts Options) error {
	app, err := Prepare(ctx, opts)
	if err != nil {
		return err
	}
	defer app.Close()

	logger := app.Logger
	logBootstrapGraph(app.steps, logger)

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(signalCtx)

	if err := startServices(groupCtx, app.state, group); err != nil {
		return err
	}

	return waitForShutdown(groupCtx, logger, group)
}

func logBootstrapGraph(steps []initStep, logger *utils.Logger) {
	if logger == nil {
		return
	}
	logger.InfoTag("引导", "初始化依赖关系概览")
	for _, step := range steps {
		if len(step.DependsOn) == 0 {
			logger.InfoTag("引导", "%s (%s)", step.ID, step.Title)
			continue
		}
		logger.InfoTag("引导", "%s (%s) <- %v", step.ID, step.Title, step.DependsOn)
	}
	logger.InfoTag("引导", "启动服务")
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	if state == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"execute init steps",
			"nil bootstrap state",
		)
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platformerrors.New(
					platformerrors.KindBootstrap,
					step.ID,
					fmt.Sprintf("dependency %s not satisfied", dep),
				)
			}
		}
		if step.Execute == nil {
			return platformerrors.New(
				platformerrors.KindBootstrap,
				step.ID,
				"missing execute function",
			)
		}
		if err := step.Execute(ctx, state); err != nil {
			kind := step.Kind
			if kind == "" {
				kind = platformerrors.KindBootstrap
			}
			return platformerrors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

// InitGraph lists the initialisation steps in execution order.
func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init-provider",
			Title:     "Initialise logging provider",
			DependsOn: []string{"config:load"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initLoggingStep,
		},
		{
			ID:        "storage:init-database",
			Title:     "Open database and run migrations",
			DependsOn: []string{"config:load"},
			Kind:      platformerrors.KindStorage,
			Execute:   initDatabaseStep,
		},
		{
			ID:        "metrics:init",
			Title:     "Register metrics collectors",
			DependsOn: []string{"config:load"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initMetricsStep,
		},
		{
			ID:        "eventbus:init-bus",
			Title:     "Start event bus and history recorder",
			DependsOn: []string{"logging:init-provider", "storage:init-database"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initEventBusStep,
		},
		{
			ID:        "watchlist:init-store",
			Title:     "Open watch list store",
			DependsOn: []string{"storage:init-database"},
			Kind:      platformerrors.KindWatchlist,
			Execute:   initWatchlistStep,
		},
		{
			ID:        "mail:init-notifier",
			Title:     "Initialise alert notifier",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindMail,
			Execute:   initNotifierStep,
		},
		{
			ID:        "changelog:init-watcher",
			Title:     "Initialise changelog watcher and scheduler",
			DependsOn: []string{"watchlist:init-store", "mail:init-notifier", "metrics:init", "eventbus:init-bus"},
			Kind:      platformerrors.KindChangelog,
			Execute:   initWatcherStep,
		},
		{
			ID:        "upload:init-validator",
			Title:     "Initialise upload validator",
			DependsOn: []string{"metrics:init", "eventbus:init-bus"},
			Kind:      platformerrors.KindUpload,
			Execute:   initValidatorStep,
		},
		{
			ID:        "nonce:init-issuer",
			Title:     "Initialise admin nonce issuer",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initNonceStep,
		},
	}
}

func loadConfigStep(_ context.Context, state *appState) error {
	if state.opts.Config != nil {
		state.config = state.opts.Config
		state.config.FillDerived()
		state.configPath = "provided"
		return nil
	}

	res, err := platformconfig.NewLoader().
		WithDotEnv(state.opts.UseDotEnv).
		WithPath(state.opts.ConfigPath).
		Load()
	if err != nil {
		return err
	}
	state.config = res.Config
	state.configPath = res.Path
	if state.configPath == "" {
		state.configPath = "defaults"
	}
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	logProvider, err := platformlogging.New(platformlogging.FromConfig(state.config.Log))
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "logging:init-provider", "failed to initialize logging provider", err)
	}

	state.logProvider = logProvider
	state.logger = logProvider.Legacy()
	utils.DefaultLogger = state.logger

	state.logger.InfoTag("引导", "日志模块就绪 [%s] %s", state.config.Log.Level, state.configPath)
	return nil
}

func initDatabaseStep(_ context.Context, state *appState) error {
	db, err := platformstorage.Open(state.config.Storage.DSN)
	if err != nil {
		return err
	}
	state.db = db
	state.history = platformstorage.NewHistoryRepository(db)
	return nil
}

func initMetricsStep(_ context.Context, state *appState) error {
	if !state.config.Metrics.Enabled {
		state.metrics = metrics.Noop{}
		state.httpMetrics = metrics.Noop{}
		return nil
	}
	state.registry = prometheus.NewRegistry()
	state.prom = metrics.NewProm(state.config.Metrics.Namespace, state.registry)
	state.metrics = state.prom
	state.httpMetrics = state.prom
	return nil
}

func initEventBusStep(_ context.Context, state *appState) error {
	bus := eventbus.NewAsyncEventBus(2, 256, state.logger)
	recorder := eventbus.NewHistoryRecorder(state.history, state.config.Changelog.HistoryLimit, state.logger)
	if err := recorder.Attach(bus); err != nil {
		return err
	}
	bus.Start()
	state.bus = bus
	return nil
}

func initWatchlistStep(_ context.Context, state *appState) error {
	store, err := watchlist.New(
		watchlist.ConfigFrom(state.config.Watchlist),
		watchlist.Dependencies{SQLiteDB: state.db},
	)
	if err != nil {
		return err
	}
	state.store = store
	return nil
}

func initNotifierStep(_ context.Context, state *appState) error {
	notifier, err := mail.FromConfig(state.config.Mail, state.logger)
	if err != nil {
		return err
	}
	state.notifier = notifier
	if state.config.Changelog.AlertAddress == "" {
		state.logger.WarnTag("引导", "未配置 changelog.alert_address 与 mail.from，不一致时不会发送告警")
	}
	return nil
}

func initWatcherStep(_ context.Context, state *appState) error {
	cfg := state.config.Changelog
	watcher, err := changelog.NewWatcher(changelog.SettingsFrom(cfg), changelog.Options{
		Store: state.store,
		Fetcher: changelog.NewHTTPFetcher(changelog.FetcherOptions{
			Timeout:            cfg.Timeout,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		}),
		Notifier: state.notifier,
		Logger:   state.logger,
		Metrics:  state.metrics,
		Events:   state.bus,
	})
	if err != nil {
		return err
	}

	scheduler, err := schedule.New(cfg.Schedule, watcher, state.logger)
	if err != nil {
		return err
	}
	state.watcher = watcher
	state.scheduler = scheduler
	return nil
}

func initValidatorStep(_ context.Context, state *appState) error {
	policy, err := upload.PolicyFromConfig(state.config.Upload)
	if err != nil {
		return err
	}
	state.validator = upload.NewValidator(policy, upload.Options{
		Prober:  upload.HeaderProber{},
		Logger:  state.logger,
		Metrics: state.metrics,
		Events:  state.bus,
	})
	return nil
}

func initNonceStep(_ context.Context, state *appState) error {
	auth := state.config.Server.Auth
	secret := auth.NonceSecret
	if secret == "" {
		// a per-process secret keeps nonces working; they just do not
		// survive a restart.
		secret = utils.RandomSecret(32)
		state.logger.WarnTag("引导", "未配置 server.auth.nonce_secret，使用随机密钥")
	}
	if auth.Token == "" {
		// the admin API never runs open; print the generated token once so
		// the operator can use it until one is configured.
		state.config.Server.Auth.Token = utils.RandomSecret(16)
		state.logger.WarnTag("引导", "未配置 server.auth.token，已生成临时管理令牌: %s", state.config.Server.Auth.Token)
	}
	nonces, err := domainauth.NewNonceIssuer(secret, auth.NonceTTL, auth.NonceCache)
	if err != nil {
		return err
	}
	state.nonces = nonces
	return nil
}

// close releases resources in reverse acquisition order. Safe on a partially
// initialised state.
func (s *appState) close() {
	if s.bus != nil {
		s.bus.Stop()
	}
	if s.store != nil {
		if err := s.store.Close(context.Background()); err != nil {
			s.logger.WarnTag("引导", "关闭关注列表失败: %v", err)
		}
	}
	if s.db != nil {
		if err := platformstorage.Close(s.db); err != nil {
			s.logger.WarnTag("引导", "关闭数据库失败: %v", err)
		}
	}
	if s.logProvider != nil {
		_ = s.logProvider.Close()
	}
}

// buildHTTPServer assembles the router and registers every HTTP service.
func buildHTTPServer(ctx context.Context, state *appState) (*http.Server, error) {
	config := state.config
	logger := state.logger

	router, err := httptransport.Build(httptransport.Options{
		Config:  config,
		Logger:  logger,
		Metrics: state.httpMetrics,
	})
	if err != nil {
		return nil, err
	}
	router.RegisterHealth(time.Now())
	if state.prom != nil {
		router.MetricsHandler(state.prom.Handler())
	}

	uploadService, err := httpupload.NewService(state.validator, config.Upload, logger)
	if err != nil {
		return nil, err
	}
	adminService, err := httpadmin.NewService(httpadmin.Dependencies{
		Watcher:      state.watcher,
		Runner:       state.scheduler,
		History:      state.history,
		Nonces:       state.nonces,
		AdminToken:   config.Server.Auth.Token,
		HistoryLimit: config.Changelog.HistoryLimit,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	if err := uploadService.Register(ctx, router.API); err != nil {
		return nil, err
	}
	if err := adminService.Register(ctx, router.API); err != nil {
		return nil, err
	}

	return &http.Server{
		Addr:              config.Server.IP + ":" + strconv.Itoa(config.Server.Port),
		Handler:           router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

func startHTTPServer(ctx context.Context, state *appState, g *errgroup.Group) error {
	httpServer, err := buildHTTPServer(ctx, state)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindTransport, "http:build", "failed to build http server", err)
	}
	logger := state.logger

	g.Go(func() error {
		logger.InfoTag("HTTP", "Gin 服务已启动，访问地址 http://%s", httpServer.Addr)

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.ErrorTag("HTTP", "HTTP 服务关闭失败: %v", err)
			} else {
				logger.InfoTag("HTTP", "HTTP 服务已优雅关闭")
			}
		}()

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorTag("HTTP", "HTTP 服务启动失败: %v", err)
			return err
		}
		return nil
	})
	return nil
}

func startScheduler(ctx context.Context, state *appState, g *errgroup.Group) {
	g.Go(func() error {
		return state.scheduler.Run(ctx)
	})
}

func startServices(ctx context.Context, state *appState, g *errgroup.Group) error {
	if err := startHTTPServer(ctx, state, g); err != nil {
		return fmt.Errorf("启动 Http 服务失败: %w", err)
	}
	startScheduler(ctx, state, g)
	return nil
}

func waitForShutdown(ctx context.Context, logger *utils.Logger, g *errgroup.Group) error {
	<-ctx.Done()
	logger.InfoTag("引导", "收到关闭信号 %v，正在进行资源清理", context.Cause(ctx))

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.ErrorTag("引导", "服务关闭过程中出现错误: %v", err)
			return err
		}
		logger.InfoTag("引导", "所有服务已成功关闭")
	case <-time.After(15 * time.Second):
		logger.ErrorTag("引导", "服务关闭超时，已强制退出")
		return errors.New("服务关闭超时")
	}
	return nil
}
