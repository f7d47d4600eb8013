package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pegnet/pegfollow/internal/api"
	"github.com/pegnet/pegfollow/internal/asset"
	"github.com/pegnet/pegfollow/internal/chainadapter"
	"github.com/pegnet/pegfollow/internal/config"
	"github.com/pegnet/pegfollow/internal/driver"
	"github.com/pegnet/pegfollow/internal/grading"
	"github.com/pegnet/pegfollow/internal/lxrhash"
	"github.com/pegnet/pegfollow/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to an INI config file (optional; env vars and defaults always apply)")
	flag.Parse()

	nodeID := uuid.NewString()
	log := logrus.NewEntry(logrus.StandardLogger()).WithField("node", nodeID)
	log.Info("starting pegfollow-node")

	settings, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("configuration fault")
	}
	network := asset.ForNetwork(settings.Network)

	kv, err := openStore(settings, log)
	if err != nil {
		log.WithError(err).Fatal("storage fault")
	}
	defer kv.Close()

	adapter := chainadapter.NewFactomAdapter(settings.FactomdServer)

	grader := newGrader(settings.GraderPolicy)

	hub := api.NewHub(log)
	go hub.Run()

	drv := driver.New(adapter, kv, grader, network, settings.Genesis, log)
	drv.Notifier = hub

	dispatcher := api.NewDispatcher(kv, adapter, network)
	router := api.SetupRouter(api.Router{
		Dispatcher: dispatcher,
		Hub:        hub,
		Driver:     drv,
		AuthToken:  settings.APIAuthToken,
		Log:        log,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	driverDone := make(chan error, 1)
	go func() {
		driverDone <- drv.Run(ctx)
	}()

	serverErr := make(chan error, 1)
	go func() {
		log.WithField("addr", settings.ListenAddr).Info("serving JSON-RPC + admin API")
		serverErr <- router.Run(settings.ListenAddr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("shutting down")
		cancel()
		<-driverDone
	case err := <-driverDone:
		if err != nil {
			log.WithError(err).Error("driver exited with error")
		}
	case err := <-serverErr:
		log.WithError(err).Error("api server exited")
		cancel()
		<-driverDone
	}
}

func openStore(settings config.Settings, log *logrus.Entry) (store.KVStore, error) {
	if settings.PostgresDSN == "" {
		log.Warn("PostgresDSN not set, running with in-memory storage (state will not survive a restart)")
		return store.NewMemoryKV(), nil
	}

	ctx := context.Background()
	kv, err := store.ConnectPostgresKV(ctx, settings.PostgresDSN, log)
	if err != nil {
		return nil, err
	}
	if err := kv.InitSchema(ctx); err != nil {
		return nil, err
	}
	return kv, nil
}

func newGrader(policy string) grading.Grader {
	hasher := lxrhash.New()
	if policy == "straight_difficulty" {
		return grading.StraightDifficultyGrader{Hasher: hasher}
	}
	return grading.StockGrader{Hasher: hasher}
}
