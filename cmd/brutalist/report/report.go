package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"brutalist/internal/config"
	"brutalist/pkg/archive"
	apperrors "brutalist/pkg/errors"
	"brutalist/pkg/logger"
	"brutalist/pkg/parsers"
	"brutalist/pkg/runner"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Options holds the report command's flags.
type Options struct {
	ConfigFile  string
	Topic       string
	HasTopic    bool
	LastWeek    bool
	Blocking    bool
	Interpreter string
	Script      string
	Dir         string
	Timeout     time.Duration
	Save        bool
	Format      string
	ArchiveDir  string
	Verbose     bool
}

// App runs one report from the command line.
type App struct {
	opts    *Options
	cfg     *config.Config
	logger  *logger.Logger
	runner  *runner.Runner
	printer *printer
}

// NewApp loads the configuration, applies flag overrides and builds the runner.
func NewApp(opts *Options, out io.Writer) (*App, error) {
	cfg, err := config.Load(config.Options{File: opts.ConfigFile})
	if err != nil {
		return nil, err
	}

	if opts.Interpreter != "" {
		cfg.Runner.Interpreter = opts.Interpreter
	}
	if opts.Script != "" {
		cfg.Runner.Script = opts.Script
	}
	if opts.Dir != "" {
		cfg.Runner.Dir = opts.Dir
	}
	if opts.Timeout > 0 {
		cfg.Runner.Timeout = opts.Timeout
	}
	if opts.Blocking {
		cfg.Runner.Mode = runner.ModeBlocking.String()
	}
	if opts.ArchiveDir != "" {
		cfg.Archive.Dir = opts.ArchiveDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logLevel := logger.ParseLevel(cfg.LogLevel)
	if opts.Verbose {
		logLevel = logrus.DebugLevel
	}
	appLogger := logger.NewLogger(logLevel)

	runnerOpts := append(cfg.RunnerOptions(), runner.WithLogger(appLogger))

	return &App{
		opts:    opts,
		cfg:     cfg,
		logger:  appLogger,
		runner:  runner.New(runnerOpts...),
		printer: newPrinter(out),
	}, nil
}

func (a *App) params() runner.Params {
	p := runner.Params{LastWeek: a.opts.LastWeek}
	if a.opts.HasTopic {
		p.Topic = runner.Topic(a.opts.Topic)
	}
	return p
}

// Run executes the script, prints its output and the parsed result, and
// saves the result when asked to.
func (a *App) Run(ctx context.Context) error {
	params := a.params()
	if err := a.cfg.ValidateTopic(params.Topic); err != nil {
		return err
	}

	var format archive.Format
	if a.opts.Save {
		var err error
		if format, err = archive.ParseFormat(a.opts.Format); err != nil {
			return err
		}
	}

	var summary parsers.Summary
	var runErr error

	switch a.runner.Mode() {
	case runner.ModeBlocking:
		var output string
		output, runErr = a.runner.Output(ctx, params)
		a.printer.Output(output)
		summary = parsers.Collect(output)
	default:
		runErr = a.runner.Stream(ctx, params, func(line string) error {
			ev := parsers.ParseLine(line)
			summary.Add(ev)
			a.printer.Line(line, ev)
			return nil
		})
	}

	if runErr != nil {
		a.printer.Failure(runErr)
		return runErr
	}

	if summary.ErrorMessage != "" {
		err := fmt.Errorf("%w: %s", apperrors.ErrReportReported, summary.ErrorMessage)
		a.printer.Failure(err)
		return err
	}

	if summary.Result == nil {
		a.logger.Warn("Script finished without a result")
		return nil
	}

	a.printer.Summary(summary.Result)

	if a.opts.Save {
		path, err := archive.Save(a.cfg.Archive.Dir, summary.Result, format)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.printer.w, "\nSaved results to %s\n", path)
	}

	return nil
}

// NewReportCommand creates the report command
func NewReportCommand() *cobra.Command {
	opts := &Options{}

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Run brutalist_report.py and print its output",
		Long:  `Run the analysis script for one topic (or all topics), streaming each output line as it arrives`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			opts.HasTopic = cmd.Flags().Changed("topic")

			app, err := NewApp(opts, cmd.OutOrStdout())
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigChan)
			go func() {
				select {
				case sig := <-sigChan:
					app.logger.WithFields(logger.Fields{
						"signal": sig.String(),
					}).Info("Received shutdown signal")
					cancel()
				case <-ctx.Done():
				}
			}()

			return app.Run(ctx)
		},
	}

	reportCmd.Flags().StringVarP(&opts.Topic, "topic", "t", "", "Topic to analyze (omit for all topics)")
	reportCmd.Flags().BoolVarP(&opts.LastWeek, "last-week", "w", false, "Analyze the last week instead of today")
	reportCmd.Flags().BoolVar(&opts.Blocking, "blocking", false, "Wait for the script to finish and print its whole output")
	reportCmd.Flags().StringVar(&opts.Interpreter, "interpreter", "", "Python interpreter to run the script with")
	reportCmd.Flags().StringVar(&opts.Script, "script", "", "Path to brutalist_report.py")
	reportCmd.Flags().StringVar(&opts.Dir, "dir", "", "Working directory for the script")
	reportCmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "Kill the script after this long (0 means no limit)")
	reportCmd.Flags().BoolVarP(&opts.Save, "save", "s", false, "Save the result to the archive directory")
	reportCmd.Flags().StringVar(&opts.Format, "format", "json", "Archive format: json or yaml")
	reportCmd.Flags().StringVar(&opts.ArchiveDir, "out", "", "Archive directory (overrides archive.dir)")
	reportCmd.Flags().StringVar(&opts.ConfigFile, "config", "", "Configuration file path")
	reportCmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Enable verbose logging")

	return reportCmd
}

// NewTopicsCommand creates the topics command
func NewTopicsCommand() *cobra.Command {
	var configFile string

	topicsCmd := &cobra.Command{
		Use:   "topics",
		Short: "List the topics the script accepts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			cfg, err := config.Load(config.Options{File: configFile})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Available Topics:")
			fmt.Fprintln(out, "=================")
			for _, topic := range cfg.Topics {
				fmt.Fprintf(out, "• %s\n", topic)
			}
			return nil
		},
	}

	topicsCmd.Flags().StringVar(&configFile, "config", "", "Configuration file path")
	return topicsCmd
}

// NewShowCommand creates the show command
func NewShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <file>",
		Short: "Print a saved report result",
		Long:  `Load a result saved as JSON or YAML and print its topic groups`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			result, err := archive.Load(args[0])
			if err != nil {
				return err
			}

			newPrinter(cmd.OutOrStdout()).Summary(result)
			return nil
		},
	}
}
