package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/AkbarHusein/google-maps-place-crawler/internal/browser"
	"github.com/AkbarHusein/google-maps-place-crawler/internal/config"
	"github.com/AkbarHusein/google-maps-place-crawler/internal/crawler"
	"github.com/AkbarHusein/google-maps-place-crawler/internal/store"
)

func main() {
	configPath := flag.String("config", "", "Optional YAML config file")
	keyword := flag.String("keyword", "", "Search keyword (overrides KEYWORD)")
	outDir := flag.String("out", "", "Output directory for cafes.json (overrides OUTPUT_DIR)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	if strings.TrimSpace(*keyword) != "" {
		cfg.Keyword = strings.TrimSpace(*keyword)
	}
	if strings.TrimSpace(*outDir) != "" {
		cfg.OutputDir = strings.TrimSpace(*outDir)
	}

	log := newLogger(cfg)
	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("crawler failed")
	}
}

func run(cfg config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	outPath, err := store.PrepareOutput(cfg.OutputDir)
	if err != nil {
		return err
	}

	b, err := openBrowser(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			log.WithError(err).Warn("error closing browser")
		}
	}()

	sinks := []crawler.Sink{store.NewJSONFile(outPath)}
	if db := mysqlConfig(cfg); db.Enabled() {
		m, err := store.OpenMySQL(ctx, db, cfg.Keyword)
		if err != nil {
			log.WithError(err).Error("mysql unavailable, writing json only")
		} else {
			defer m.Close()
			sinks = append(sinks, m)
		}
	}

	rep := crawler.New(b, crawlerOptions(cfg), log, sinks...).Run(ctx, cfg.Keyword)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("interrupted after %d of %d places: %w", rep.Enrich.Resolved+len(rep.Enrich.Failures), rep.Enrich.Total, err)
	}
	log.WithField("output", outPath).Info("all data has been saved")
	return nil
}

func openBrowser(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (browser.Browser, error) {
	if cfg.ReplayDir != "" {
		log.WithField("dir", cfg.ReplayDir).Info("replaying captured pages")
		return browser.LoadStatic(cfg.ReplayDir)
	}
	return browser.NewChrome(ctx, browser.ChromeOptions{
		Headless:        cfg.Headless,
		ImplicitWait:    cfg.ImplicitWait,
		NavigateTimeout: cfg.NavigateTimeout,
		CaptureDir:      cfg.CaptureDir,
	}, log)
}

func crawlerOptions(cfg config.Config) crawler.Options {
	opts := crawler.DefaultOptions()
	opts.Search = crawler.MapView{Lat: cfg.MapLat, Lng: cfg.MapLng, Zoom: cfg.MapZoom}
	opts.Scroll = crawler.ScrollOptions{
		Timeout:  cfg.ScrollTimeout,
		Interval: cfg.ScrollInterval,
		MaxWait:  cfg.ScrollMaxWait,
	}
	opts.SettleDelay = cfg.SettleDelay
	opts.AddressTimeout = cfg.AddressTimeout
	return opts
}

func mysqlConfig(cfg config.Config) store.MySQLConfig {
	return store.MySQLConfig{
		Host:     cfg.DBHost,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Name:     cfg.DBName,
	}
}

func newLogger(cfg config.Config) *logrus.Logger {
	log := logrus.New()
	if strings.EqualFold(cfg.LogFormat, "json") {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}
