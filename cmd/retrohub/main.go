// Command retrohub runs the serial hub: it opens the configured ports and
// serves the LogicNet menu to every attached terminal.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/TheDeepLogic/RetroSerialHub/config"
	"github.com/TheDeepLogic/RetroSerialHub/hub"
	"github.com/TheDeepLogic/RetroSerialHub/logger"
	"github.com/TheDeepLogic/RetroSerialHub/modules/aichat"
	"github.com/TheDeepLogic/RetroSerialHub/modules/bbs"
	"github.com/TheDeepLogic/RetroSerialHub/modules/combridge"
	"github.com/TheDeepLogic/RetroSerialHub/modules/files"
	"github.com/TheDeepLogic/RetroSerialHub/modules/notes"
	"github.com/TheDeepLogic/RetroSerialHub/modules/textlib"
	"github.com/TheDeepLogic/RetroSerialHub/modules/urlreader"
	"github.com/TheDeepLogic/RetroSerialHub/modules/wargames"
)

func main() {
	configPath := flag.String("config", "retrohub.yaml", "path to the hub configuration file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if *debug {
		logger.SetLevel(logger.DebugLevel)
	}
	log := logger.GetLogger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("invalid configuration", "path", *configPath, "error", err)
	}

	for _, dir := range []string{cfg.Dirs.Files, cfg.Dirs.Text, cfg.Dirs.Notes} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatal("creating content directory", "dir", dir, "error", err)
		}
	}

	registry := hub.NewModuleRegistry(log)
	register := func(name, title string, factory hub.Factory) {
		if err := registry.Register(name, title, factory); err != nil {
			log.Fatal("registering module", "module", name, "error", err)
		}
	}

	register("bbs", "Bulletin Boards", bbs.Factory())
	register("files", "File Transfers", files.Factory(cfg.Dirs.Files))
	register("textlib", "Text Library", textlib.Factory(cfg.Dirs.Text))
	register("urlreader", "URL Reader", urlreader.Factory())
	register("notes", "Notes", notes.Factory(cfg.Dirs.Notes))
	register("combridge", "COM Port Bridge", combridge.Factory())
	register("wargames", "Wargames", wargames.Factory())
	register("aichat", "AI Assistant", aichat.Factory())

	h := hub.NewHub(cfg, registry, nil, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := h.Start(ctx); err != nil {
		log.Fatal("hub start failed", "error", err)
	}

	<-ctx.Done()
	log.Info("shutting down")

	if err := h.Stop(hub.DefaultStopTimeout); err != nil {
		log.Warn("shutdown incomplete", "error", err)
	}
}
