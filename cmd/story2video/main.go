package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ivlev/story2video/internal/config"
	"github.com/ivlev/story2video/internal/export"
	"github.com/ivlev/story2video/internal/logger"
	"github.com/ivlev/story2video/internal/story"
)

// version выставляется при сборке: -ldflags "-X main.version=..."
var version = "dev"

var verbose bool

func main() {
	root := &cobra.Command{
		Use:           "story2video",
		Short:         "Turn a story prompt into a narrated, illustrated slideshow video",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Mirror JSON logs to stderr")

	root.AddCommand(newGenerateCmd(), newServeCmd(), newOptionsCmd(), newVersionCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := root.ExecuteContext(ctx)
	logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "[-] %v\n", err)
		os.Exit(1)
	}
}

// setup читает конфигурацию и поднимает логгер; общий шаг для всех команд.
func setup() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.BuildVersion = version

	level := logger.LogLevel(cfg.LogLevel)
	if verbose {
		level = logger.DebugLevel
	}
	logger.InitLogger(logger.Config{
		Level:      level,
		OutputPath: cfg.LogFile,
		Console:    cfg.LogJSON || verbose,
		MaxSize:    20,
		MaxBackups: 5,
		MaxAge:     14,
		Compress:   true,
	})
	return cfg, nil
}

// newSink выбирает хранилище экспорта: MinIO, если настроен, иначе zip или папка.
func newSink(ctx context.Context, cfg *config.Config, format string) (export.Sink, error) {
	switch format {
	case "minio":
		if !cfg.MinioEnabled() {
			return nil, fmt.Errorf("minio export needs MINIO_ENDPOINT and MINIO_BUCKET")
		}
		return export.NewMinioSink(ctx, cfg)
	case "dir":
		return export.DirSink{Dir: cfg.ExportDir}, nil
	case "zip", "":
		if format == "" && cfg.MinioEnabled() {
			return export.NewMinioSink(ctx, cfg)
		}
		return export.ZipSink{Dir: cfg.ExportDir}, nil
	default:
		return nil, fmt.Errorf("unknown export format %q (zip, dir, minio)", format)
	}
}

func newOptionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "options",
		Short: "List the accepted values of every request option",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, opt := range story.Options() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-15s %s\n", opt.Field, opt.Values)
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "story2video", version)
		},
	}
}
