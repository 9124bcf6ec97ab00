package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cuemby/burrow/pkg/appenv"
	"github.com/cuemby/burrow/pkg/cfgmgr"
	"github.com/cuemby/burrow/pkg/cleaner"
	"github.com/cuemby/burrow/pkg/coordinator"
	"github.com/cuemby/burrow/pkg/eventdaemon"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/publisher"
	"github.com/cuemby/burrow/pkg/registrar"
	"github.com/cuemby/burrow/pkg/runtime"
	"github.com/cuemby/burrow/pkg/statemon"
	"github.com/cuemby/burrow/pkg/watchdog"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the node agent pipeline",
	Long: `Run the full placement-to-execution pipeline under the watchdog:
registrar, placement mirror, config manager, state monitor, event publisher,
and cleanup worker. Requires the workDirectory and zookeeper environment
variables.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		return runAgent(metricsAddr)
	},
}

func init() {
	agentCmd.Flags().String("metrics-addr", "", "Prometheus listen address (empty disables)")
}

func runAgent(metricsAddr string) error {
	env, err := appenv.Load()
	if err != nil {
		return err
	}
	if err := env.Ensure(); err != nil {
		return err
	}

	// Re-init logging now that the log directory is known.
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
		LogDir:     env.Log(),
	})

	logger := log.WithComponent("agent")
	logger.Info().
		Str("host", env.Hostname).
		Str("root", env.Root).
		Str("coordinator", env.ZooKeeper).
		Msg("Starting node agent")

	zk, err := coordinator.Connect(env.ZooKeeper)
	if err != nil {
		return fmt.Errorf("failed to connect to coordinator: %w", err)
	}
	defer zk.Close()

	rt, err := runtime.NewDockerRuntime(context.Background())
	if err != nil {
		return fmt.Errorf("failed to connect to container runtime: %w", err)
	}
	defer rt.Close()

	if metricsAddr != "" {
		go func() {
			http.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(metricsAddr, nil); err != nil {
				logger.Warn().Err(err).Msg("Metrics listener failed")
			}
		}()
	}

	collector := metrics.NewCollector(map[string]string{
		"cache":     env.Cache(),
		"running":   env.Running(),
		"appevents": env.AppEvents(),
		"cleanup":   env.Cleanup(),
	}, env.NodeAvailable)
	collector.Start()
	defer collector.Stop()

	wd := watchdog.New(env, zk,
		registrar.New(env, zk),
		eventdaemon.New(env, zk, rt),
		cfgmgr.New(env, rt),
		statemon.New(env, rt),
		publisher.New(env, zk),
		cleaner.New(env, zk, rt),
	)

	stopCh := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
		close(stopCh)
	}()

	wd.Run(stopCh)
	logger.Info().Msg("Node agent stopped")
	return nil
}
