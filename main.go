package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"option-chain-analyzer/chain"
	"option-chain-analyzer/config"
	"option-chain-analyzer/controllers"
	"option-chain-analyzer/database"
	"option-chain-analyzer/interfaces"
	"option-chain-analyzer/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config")
	once := flag.Bool("once", false, "fetch one price, print the chain and exit")
	addr := flag.String("addr", "", "HTTP listen address (overrides http_addr)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	if *addr != "" {
		cfg.HTTPAddr = *addr
	}

	logger, logCloser, err := services.NewLogger(services.LogConfig{Dir: cfg.LogDir, Level: cfg.LogLevel})
	if err != nil {
		logrus.Fatalf("Failed to create logger: %v", err)
	}
	defer logCloser.Close()

	feed, err := services.NewPriceFeed(cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create price feed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *once {
		if err := printChain(ctx, os.Stdout, cfg, feed); err != nil {
			logger.WithError(err).Fatal("Failed to build chain")
		}
		return
	}

	if err := serve(ctx, cfg, feed, logger); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}
}

func serve(ctx context.Context, cfg *config.Config, feed interfaces.PriceFeed, logger *logrus.Logger) error {
	storage, err := database.NewLocalStorage(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer storage.Close()

	activity := services.NewActivityLogger(filepath.Join(cfg.LogDir, "activity"))

	streamer := services.NewDataStreamer(feed, cfg.UpdateInterval(), storage)
	streamer.SetLogger(logger)
	streamer.SetActivityLogger(activity)

	chains := services.NewChainService(cfg, streamer, storage)
	chains.SetLogger(logger)
	chains.SetActivityLogger(activity)

	chainController := controllers.NewChainController(chains, streamer, storage)
	chainController.SetLogger(logger)
	feedController := controllers.NewFeedController(ctx, streamer, feed, storage, cfg.SymbolsFor(feed.Name()))
	feedController.SetLogger(logger)
	activityController := controllers.NewActivityController(activity)

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), controllers.RequestLogger(logger))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"source":  feed.Name(),
			"running": streamer.Running(),
		})
	})

	api := router.Group("/api/v1")
	chainController.RegisterRoutes(api)
	feedController.RegisterRoutes(api)
	activityController.RegisterRoutes(api)

	symbols := []string{cfg.Symbol}
	if err := streamer.Start(ctx, symbols); err != nil {
		return err
	}
	defer streamer.Stop()

	go chains.Run(ctx)
	go cleanupLoop(ctx, storage, cfg.RetentionDays, logger)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"addr":   cfg.HTTPAddr,
			"symbol": cfg.Symbol,
			"source": feed.Name(),
		}).Info("Option chain analyzer listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// cleanupLoop deletes stored ticks and snapshots older than the retention window once a day
func cleanupLoop(ctx context.Context, storage interfaces.StorageService, retentionDays int, logger *logrus.Logger) {
	if retentionDays <= 0 {
		return
	}

	cleanup := func() {
		before := time.Now().AddDate(0, 0, -retentionDays)
		if err := storage.CleanupOldData(before); err != nil {
			logger.WithError(err).Warn("Failed to clean up old data")
			return
		}
		logger.WithField("before", before.Format("2006-01-02")).Debug("Old data cleaned up")
	}

	cleanup()
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cleanup()
		}
	}
}

// printChain fetches a single price and writes the chain as a table
func printChain(ctx context.Context, out io.Writer, cfg *config.Config, feed interfaces.PriceFeed) error {
	price, err := feed.GetCurrentPrice(ctx, cfg.Symbol)
	if err != nil {
		return fmt.Errorf("failed to fetch price for %s: %w", cfg.Symbol, err)
	}

	now := time.Now()
	req := cfg.ChainRequest(&price, now)
	rows, err := chain.Build(req)
	if err != nil {
		return err
	}
	summary := chain.Summarize(rows, &price)

	fmt.Fprintf(out, "%s  $%.2f  (%s)  expiry %s  T=%.4fy  r=%.2f%%  vol=%.2f%%\n\n",
		cfg.Symbol, price, feed.Name(), req.Expiry.Format("2006-01-02"),
		chain.TimeToExpiry(req.Expiry, now), req.RiskFreeRate*100, req.Volatility*100)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "CALL Δ\tCALL Θ\tCALL\tSTRIKE\tPUT\tPUT Θ\tPUT Δ\tGAMMA\tVEGA\t")
	fmt.Fprintln(w, strings.Repeat("-\t", 9))
	for _, r := range rows {
		marker := ""
		if r.IsATM {
			marker = "*"
		}
		fmt.Fprintf(w, "%.4f\t%.4f\t%.2f\t%s%.2f\t%.2f\t%.4f\t%.4f\t%.6f\t%.4f\t\n",
			r.CallGreeks.Delta, r.CallGreeks.Theta, r.CallPrice,
			marker, r.Strike,
			r.PutPrice, r.PutGreeks.Theta, r.PutGreeks.Delta,
			r.CallGreeks.Gamma, r.CallGreeks.Vega)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if summary.Ready {
		fmt.Fprintf(out, "\nATM %.2f  call %.2f  put %.2f  delta %.4f  (%d strikes)\n",
			summary.ATMStrike, summary.ATMCallPrice, summary.ATMPutPrice, summary.ATMCallDelta, summary.Strikes)
	}
	return nil
}
