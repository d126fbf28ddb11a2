package main

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/crisscross-dht/crisscrossdht/config"
	"github.com/crisscross-dht/crisscrossdht/dht"
	"github.com/crisscross-dht/crisscrossdht/ids"
	"github.com/crisscross-dht/crisscrossdht/server"
)

func main() {
	rootCmd := &cobra.Command{Use: "crisscrossdhtd"}
	rootCmd.AddCommand(runCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "run a CrissCrossDHT node",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "crisscrossdht.yaml", "path to node configuration")
	return cmd
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	conn, err := net.ListenUDP("udp", net.UDPAddrFromAddrPort(cfg.ListenAddr))
	if err != nil {
		return fmt.Errorf("opening socket: %w", err)
	}
	defer conn.Close()

	dispatcher := server.NewDispatcher(conn)

	var maintainers []*dht.Maintainer
	for _, cl := range cfg.Clusters {
		cluster := server.NewCluster(cl.ID, cl.Key, cfg.NodeID, conn, nil)
		cluster.WriteKey = cl.WriteKey
		dispatcher.Register(cluster)

		for _, contact := range cfg.Bootstrap {
			cluster.Table.Insert(dht.NewNode(contact.ID, contact.Addr, nil))
		}

		maintCfg := &dht.MaintenanceConfig{
			ReviewInterval:        cfg.Timers.ReviewInterval,
			NeighbourhoodInterval: cfg.Timers.NeighbourhoodInterval,
			BucketInterval:        cfg.Timers.BucketInterval,
			QuestionableAfter:     dht.DefaultMaintenanceConfig().QuestionableAfter,
			DeleteAfter:           dht.DefaultMaintenanceConfig().DeleteAfter,
			StaleBucketAfter:      dht.DefaultMaintenanceConfig().StaleBucketAfter,
			ThinBucketSize:        dht.DefaultMaintenanceConfig().ThinBucketSize,
		}
		engine := cluster.Engine
		lookup := func(ctx context.Context, target ids.NodeID) {
			_, _ = engine.FindNode(ctx, target)
		}
		maintainer := dht.NewMaintainer(cluster.Table, maintCfg, engine.Ping, lookup, nil)
		maintainer.Start()
		maintainers = append(maintainers, maintainer)

		logrus.WithField("cluster", fmt.Sprintf("%x", cl.ID[:4])).Info("joined cluster")
	}
	defer func() {
		for _, m := range maintainers {
			m.Stop()
		}
	}()

	logrus.WithField("addr", cfg.ListenAddr).Info("crisscrossdhtd listening")
	return dispatcher.Run()
}
