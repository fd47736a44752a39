package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"brutalist/api/routes"
	"brutalist/internal/config"
	"brutalist/internal/dao"
	"brutalist/internal/database"
	"brutalist/internal/notification"
	"brutalist/internal/services"
	"brutalist/pkg/logger"
	"brutalist/pkg/queue"
	"brutalist/pkg/runner"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type ServerOpts struct {
	Port       int
	Ip         string
	ConfigFile string
	NoWatch    bool
	Verbose    bool
}

// applyFlags lets explicitly set flags override the loaded configuration.
func applyFlags(cmd *cobra.Command, opts *ServerOpts, cfg *config.Config) error {
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = opts.Port
	}
	if cmd.Flags().Changed("ip") {
		cfg.Server.Host = opts.Ip
	}
	if opts.NoWatch {
		cfg.Archive.Watch = false
	}
	return cfg.Validate()
}

func NewServerCommand() *cobra.Command {
	serverConfig := &ServerOpts{}

	serverCmd := &cobra.Command{
		Use:   "server",
		Short: "Start the Brutalist server",
		Long:  `Start the Brutalist server to run reports and follow their output via a web interface`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			cfg, err := config.Load(config.Options{File: serverConfig.ConfigFile})
			if err != nil {
				return err
			}
			if err := applyFlags(cmd, serverConfig, cfg); err != nil {
				return err
			}

			level := logger.ParseLevel(cfg.LogLevel)
			if serverConfig.Verbose {
				level = logrus.DebugLevel
			}
			appLogger := logger.NewLogger(level)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, appLogger)
		},
	}

	serverCmd.Flags().IntVarP(&serverConfig.Port, "port", "p", 8080, "Port to run the server on")
	serverCmd.Flags().StringVarP(&serverConfig.Ip, "ip", "i", "localhost", "IP address to bind the server to")
	serverCmd.Flags().StringVar(&serverConfig.ConfigFile, "config", "", "Configuration file path")
	serverCmd.Flags().BoolVar(&serverConfig.NoWatch, "no-watch", false, "Do not import result files dropped into the archive directory")
	serverCmd.Flags().BoolVarP(&serverConfig.Verbose, "verbose", "v", false, "Enable verbose logging")

	return serverCmd
}

func run(ctx context.Context, cfg *config.Config, appLogger *logger.Logger) error {
	db, err := database.Open(cfg.Database)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	serviceOpts := []services.ServiceOpt{
		services.WithContext(gctx),
		services.WithQueue(queue.New(cfg.Queue.MaxConcurrent)),
		services.WithArchiveDir(cfg.Archive.Dir),
		services.WithLogDir(filepath.Join(cfg.Archive.Dir, "logs")),
		services.WithLogger(appLogger),
	}

	if os.Getenv("DISCORD_TOKEN") != "" {
		discordClient, err := notification.NewNotificationClient()
		if err != nil {
			appLogger.WithError(err).Warn("Failed to initialize Discord client")
		} else {
			defer discordClient.Close()
			serviceOpts = append(serviceOpts, services.WithNotifier(discordClient))
			appLogger.Info("Discord notifications enabled")
		}
	} else {
		appLogger.Info("DISCORD_TOKEN not set - Discord notifications disabled")
	}

	scriptRunner := runner.New(append(cfg.RunnerOptions(), runner.WithLogger(appLogger))...)
	reportService := services.NewReportService(dao.NewReportDAO(db), scriptRunner, serviceOpts...)
	topicService := services.NewTopicService(cfg.Topics)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: routes.InitRouter(reportService, topicService),
	}

	g.Go(func() error {
		appLogger.WithField("addr", srv.Addr).Info("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		appLogger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)

		reportService.Wait()
		return err
	})

	if cfg.Archive.Watch {
		watcher := services.NewArchiveWatcher(cfg.Archive.Dir, reportService, appLogger)
		g.Go(func() error {
			return watcher.Watch(gctx)
		})
	}

	return g.Wait()
}
