package opsgate

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cirello.io/oversight"
	"github.com/bndr/gojenkins"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/operify/opsgate/src/application"
	"github.com/operify/opsgate/src/application/component"
	"github.com/operify/opsgate/src/application/component/web"
	"github.com/operify/opsgate/src/application/service"
	"github.com/operify/opsgate/src/config"
	"github.com/operify/opsgate/src/infrastructure/persistence"
)

type StartCmd struct {
	Components []string `arg:"positional,env:OPSGATE_COMPONENTS" help:"any of: monitor, web"`

	WebListen string `arg:"--web-listen,env:OPSGATE_WEB_LISTEN" default:":8080"`

	MonitorCheckInterval int `arg:"--monitor-check-interval,env:OPSGATE_MONITOR_CHECK_INTERVAL" default:"30" help:"default seconds between monitor checks"`
}

type InstanceOpts interface {
	NewDB(*zerolog.Logger) (*sql.DB, error)
	NewJenkinsClient(context.Context) (*gojenkins.Jenkins, error)
	GetComponentOpts() InstanceComponentsOpts
}

type InstanceComponentsOpts struct {
	Monitor *InstanceMonitorComponentOpts
	Web     *InstanceWebComponentOpts
}

type InstanceWebComponentOpts struct {
	ListenAddr string
}

type InstanceMonitorComponentOpts struct {
	CheckInterval time.Duration
}

func (cmd StartCmd) NewDB(logger *zerolog.Logger) (*sql.DB, error) {
	return config.DBConnection(logger)
}

func (cmd StartCmd) NewJenkinsClient(ctx context.Context) (*gojenkins.Jenkins, error) {
	return config.NewJenkinsClient(ctx)
}

func (cmd StartCmd) GetComponentOpts() InstanceComponentsOpts {
	start := InstanceComponentsOpts{}

	webOpts := InstanceWebComponentOpts{
		ListenAddr: cmd.WebListen,
	}
	monitorOpts := InstanceMonitorComponentOpts{
		CheckInterval: time.Duration(cmd.MonitorCheckInterval) * time.Second,
	}

	// If none are given then start all,
	// otherwise start only those that are given.
	for _, component := range cmd.Components {
		switch component {
		case "monitor":
			start.Monitor = &monitorOpts
		case "web":
			start.Web = &webOpts
		default:
			panic("Unknown component: " + component)
		}
	}
	if start.Monitor == nil && start.Web == nil {
		start.Monitor = &monitorOpts
		start.Web = &webOpts
	}

	return start
}

func (cmd StartCmd) Run(logger *zerolog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	instance, err := NewInstance(ctx, cmd, logger)
	if err != nil {
		return err
	}
	defer instance.Close()

	return instance.Run(ctx)
}

func NewInstance(ctx context.Context, opts InstanceOpts, logger *zerolog.Logger) (Instance, error) {
	instance := Instance{logger: logger}

	if db, err := opts.NewDB(logger); err != nil {
		logger.Fatal().Err(err).Send()
		return instance, err
	} else {
		instance.db = db
	}

	if err := persistence.Migrate(instance.db, logger); err != nil {
		logger.Fatal().Err(err).Send()
		return instance, err
	}

	if client, err := opts.NewJenkinsClient(ctx); err != nil {
		logger.Fatal().Err(err).Send()
		return instance, err
	} else {
		instance.jenkinsClient = client
	}
	jenkinsClientWrapper := application.NewJenkinsClient(instance.jenkinsClient)

	catalogService := service.NewCatalogService(instance.db, logger)
	jenkinsService := service.NewJenkinsService(jenkinsClientWrapper, logger)
	userService := service.NewUserService(instance.db, logger)
	tokenService := service.NewTokenService(config.NewAuthConfig(), logger)

	hub := web.NewHub(instance.db, logger)
	scanService := service.NewScanService(instance.db, jenkinsService, hub, logger)
	hub.ScanService = scanService

	start := opts.GetComponentOpts()

	checkInterval := 30 * time.Second
	if start.Monitor != nil {
		checkInterval = start.Monitor.CheckInterval
	}
	monitorService, err := service.NewMonitorService(instance.db, checkInterval, logger)
	if err != nil {
		return instance, err
	}

	if start.Monitor != nil {
		instance.Monitor = &component.MonitorRunner{
			Logger:         logger.With().Str("component", "MonitorRunner").Logger(),
			MonitorService: monitorService,
		}
	}

	if start.Web != nil {
		cfg, err := config.NewWebConfig(start.Web.ListenAddr)
		if err != nil {
			return instance, err
		}
		instance.Web = &web.Web{
			Config:         cfg,
			Logger:         logger.With().Str("component", "Web").Logger(),
			CatalogService: catalogService,
			JenkinsService: jenkinsService,
			UserService:    userService,
			TokenService:   tokenService,
			ScanService:    scanService,
			MonitorService: monitorService,
			Hub:            hub,
		}
	}

	return instance, nil
}

type Instance struct {
	Monitor *component.MonitorRunner
	Web     *web.Web

	logger        *zerolog.Logger
	db            *sql.DB
	jenkinsClient *gojenkins.Jenkins
}

func (self Instance) Close() {
	if self.db != nil {
		self.db.Close()
	}
}

func (self Instance) Run(ctx context.Context) error {
	self.logger.Info().Msg("Starting components")

	supervisor := oversight.New(
		oversight.WithLogger(&config.SupervisorLogger{Logger: self.logger}),
		oversight.WithSpecification(
			10,                    // number of restarts
			1*time.Minute,         // within this time period
			oversight.OneForOne(), // restart every task on its own
		),
	)

	if self.Monitor != nil {
		if err := supervisor.Add(self.Monitor.Start); err != nil {
			return err
		}
	}

	if self.Web != nil {
		if err := supervisor.Add(self.Web.Start); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := supervisor.Start(ctx); err != nil {
		return errors.WithMessage(err, "While starting supervisor")
	}

	<-ctx.Done()
	return nil
}
