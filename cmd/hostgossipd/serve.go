package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jabolina/go-hostgossip/internal/config"
	"github.com/jabolina/go-hostgossip/internal/httpapi"
	"github.com/jabolina/go-hostgossip/internal/transport"
	"github.com/jabolina/go-hostgossip/pkg/hostgossip"
	"github.com/jabolina/go-hostgossip/pkg/hostgossip/definition"
	"github.com/jabolina/go-hostgossip/pkg/hostgossip/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gossip daemon and its query API",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := definition.NewDefaultLogger()
	log.ToggleDebug(strings.EqualFold(cfg.LogLevel, "debug"))

	peers := transport.NewPeerBook()
	var nodes []types.ControllerNode
	local := types.ControllerNode{Id: types.NodeId(cfg.NodeId), Address: cfg.Listen}
	nodes = append(nodes, local)
	for _, raw := range cfg.Peers {
		parts := strings.SplitN(raw, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid --peers entry %q, expected node-id=host:port", raw)
		}
		id := types.NodeId(parts[0])
		peers.Set(id, parts[1])
		nodes = append(nodes, types.ControllerNode{Id: id, Address: parts[1]})
	}
	cluster := transport.NewStaticCluster(local, nodes)

	hub := httpapi.NewEventHub(log)
	tp := transport.NewHTTPTransport(local.Id, peers, log)

	manager := hostgossip.NewManager(types.Config{
		HostsExpected:           cfg.HostsExpected,
		AntiEntropyInitialDelay: cfg.AntiEntropyInitialDelay,
		AntiEntropyPeriod:       cfg.AntiEntropyPeriod,
		ExecutorShutdownGrace:   cfg.ExecutorShutdownGrace,
	}, hostgossip.Deps{
		Logger:     log,
		Clock:      definition.NewSequenceClock(),
		Cluster:    cluster,
		Transport:  tp,
		Codec:      definition.NewJSONCodec(),
		Delegate:   hub.Delegate(),
		Registerer: prometheus.DefaultRegisterer,
		Namespace:  "hostgossip",
	})

	api := httpapi.New(manager, hub, log, cfg.MetricsPath)
	tp.RegisterRoutes(api.Router())

	if err := config.WatchReload(cmd, func() {
		log.Info("configuration file changed, restart the daemon to apply non-hot-reloadable settings")
	}); err != nil {
		log.Warnf("config hot-reload not active: %v", err)
	}

	manager.Start()
	defer manager.Stop()

	server := &http.Server{Addr: cfg.Listen, Handler: api.Handler()}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		log.Info("received shutdown signal")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = server.Shutdown(shutdownCtx)
		cancel()
	}()

	log.Infof("hostgossipd listening on %s as node %s", cfg.Listen, cfg.NodeId)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	<-ctx.Done()
	log.Info("hostgossipd stopped")
	return nil
}
