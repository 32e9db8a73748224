package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/miradorstack/mirador-forecast/internal/api"
	"github.com/miradorstack/mirador-forecast/internal/config"
	"github.com/miradorstack/mirador-forecast/internal/ingest"
	"github.com/miradorstack/mirador-forecast/internal/metrics"
	"github.com/miradorstack/mirador-forecast/internal/models"
	"github.com/miradorstack/mirador-forecast/internal/utils"
)

var (
	configPath string

	inputPath  string
	outputPath string
	format     string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "forecast-engine",
	Short:         "Rossmann sales forecast engine",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve predictions over gRPC and HTTP",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Score a CSV or JSON file of store/date records",
	Long: `Score a file of raw store/date records and print the scored records
as a JSON array.

Examples:
  forecast-engine predict --input test.csv
  forecast-engine predict --input batch.json --output scored.json
  cat batch.json | forecast-engine predict --format json`,
	Args: cobra.NoArgs,
	RunE: runPredict,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file")

	predictCmd.Flags().StringVarP(&inputPath, "input", "i", "-", "Input file, - for stdin")
	predictCmd.Flags().StringVarP(&outputPath, "output", "o", "-", "Output file, - for stdout")
	predictCmd.Flags().StringVar(&format, "format", "", "Input format: csv or json (default from file extension)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(predictCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		return err
	}

	logger := utils.NewLogger(os.Stdout, cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting mirador-forecast", slog.String("address", cfg.Server.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build forecast engine", slog.Any("error", err))
		return err
	}
	defer application.Close()

	server, err := api.NewServer(cfg.Server, application.service)
	if err != nil {
		logger.Error("failed to create gRPC server", slog.Any("error", err))
		return err
	}

	var httpServer *http.Server
	if cfg.Server.HTTPAddress != "" {
		httpServer = &http.Server{
			Addr:              cfg.Server.HTTPAddress,
			Handler:           api.NewHTTPHandler(application.service, prometheus.DefaultGatherer, logger),
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      time.Minute,
		}
		go func() {
			logger.Info("http server listening", slog.String("address", cfg.Server.HTTPAddress))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		logger.Info("gRPC server listening", slog.String("address", server.Address()))
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("gRPC server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), server.GracefulTimeout())
	defer cancel()
	server.Shutdown(shutdownCtx)

	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("http server shutdown", slog.Any("error", err))
		}
	}

	logger.Info("mirador-forecast stopped", slog.Duration("p95", application.service.LatencyP95()))
	return nil
}

func runPredict(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	// stdout carries the scored records.
	logger := utils.NewLogger(os.Stderr, cfg.Logging.Level, cfg.Logging.JSON)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	records, err := readRecords(inputPath, format)
	if err != nil {
		return err
	}
	logger.Info("scoring records", slog.String("input", inputPath), slog.Int("rows", len(records)))

	application, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	start := time.Now()
	payload, err := application.service.ForecastChunked(ctx, records, cfg.Pipeline.ChunkRows, cfg.Pipeline.Workers)
	if err != nil {
		logger.Error("scoring failed", slog.Any("error", err))
		return err
	}
	logger.Info("scoring complete", slog.Int("rows", len(records)), slog.Duration("elapsed", time.Since(start)))

	return writeOutput(outputPath, payload)
}

func readRecords(path, format string) ([]models.Record, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
	switch format {
	case "csv":
		return ingest.ReadCSV(r)
	case "json", "":
		return ingest.ReadJSON(r)
	default:
		return nil, fmt.Errorf("unsupported input format %q", format)
	}
}

func writeOutput(path string, payload []byte) error {
	if path == "-" {
		_, err := os.Stdout.Write(append(payload, '\n'))
		return err
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
