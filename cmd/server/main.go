package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gowvp/exporter/internal/app"
	"github.com/gowvp/exporter/internal/conf"
	"github.com/ixugo/goddd/pkg/system"
)

var buildVersion = "0.0.1" // 构建版本号

var configPath = flag.String("conf", "configs/config.toml", "config file path")

func main() {
	flag.Parse()

	path := *configPath
	if !filepath.IsAbs(path) {
		path = filepath.Join(system.Getwd(), path)
	}
	bc, err := conf.SetupConfig(path)
	if err != nil {
		slog.Error("load config", "path", path, "err", err)
		os.Exit(1)
	}
	bc.BuildVersion = buildVersion
	if !filepath.IsAbs(bc.Export.Dir) {
		bc.Export.Dir = filepath.Join(system.Getwd(), bc.Export.Dir)
	}

	slog.SetDefault(newLogger(bc.Debug))
	slog.Info("exporter starting", "version", buildVersion, "config", path)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := app.Run(ctx, &bc); err != nil {
		slog.Error("exporter exit", "err", err)
		os.Exit(1)
	}
}

// newLogger 调试模式输出文本日志，其余输出 json
func newLogger(debug bool) *slog.Logger {
	if debug {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug, AddSource: true}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
