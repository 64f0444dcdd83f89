package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gpengine/gameplay/internal/core/filesystem"
	"github.com/gpengine/gameplay/internal/core/game"
	"github.com/gpengine/gameplay/internal/core/graphics/driver"
	"github.com/gpengine/gameplay/internal/core/observability/log"
	"github.com/gpengine/gameplay/internal/core/observability/metrics"
	"github.com/gpengine/gameplay/internal/injector"
)

// headlessSurface stands in for a window handle.
const headlessSurface = driver.Surface(1)

func main() {
	assets := flag.String("assets", ".", "asset directory holding "+game.ConfigFile)
	overrides := flag.String("config", "", "YAML or TOML file overriding "+game.ConfigFile)
	fps := flag.Int("fps", 60, "frame rate cap")
	frames := flag.Int("frames", 0, "exit after this many frames, 0 runs until interrupted")
	flag.Parse()

	fsys, err := filesystem.NewOS()
	if err != nil {
		exit(err)
	}
	root, err := filepath.Abs(*assets)
	if err != nil {
		exit(err)
	}
	fsys.SetAssetPath(root)

	act := injector.ProvideActivator()
	cfg, err := game.LoadConfig(fsys, game.ConfigFile, act)
	if err != nil {
		exit(err)
	}
	if *overrides != "" {
		if err = cfg.LoadOverrides(fsys, *overrides); err != nil {
			exit(err)
		}
	}
	if cfg.AssetsPath != "" {
		fsys.SetAssetPath(fsys.ResolvePath(cfg.AssetsPath))
	}

	g, err := injector.InitializeGame(cfg, fsys, act, headlessSurface)
	if err != nil {
		exit(err)
	}
	logger := log.Provide()
	defer func() { _ = logger.Sync() }()
	metrics.Register(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = g.Initialize(ctx); err != nil {
		logger.Fatal("game initialization failed", log.Error(err))
	}
	logger.Info("running", log.String("assets", fsys.AssetPath()), log.Int("fps", *fps))

	run(ctx, g, logger, *fps, *frames)

	shutdown, cancel := context.WithTimeout(context.Background(), cfg.FenceTimeout)
	defer cancel()
	if err = g.Exit(shutdown); err != nil {
		logger.Error("exit", log.Error(err))
	}
}

func run(ctx context.Context, g *game.Game, logger log.Log, fps, frames int) {
	if fps <= 0 {
		fps = 60
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for n := 0; frames == 0 || n < frames; n++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := g.OnFrame(ctx); err != nil {
			logger.Error("frame failed", log.Error(err))
			return
		}
	}
}

func exit(err error) {
	fmt.Fprintln(os.Stderr, "gameplay:", err)
	os.Exit(1)
}
