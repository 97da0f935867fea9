package main

import (
	"fmt"

	"github.com/michaelquigley/pfxlog"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"hellopod/src/internal/domain"
	"hellopod/src/internal/service"
)

var Version = "1.0.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		pfxlog.Logger().Fatalf("hellopod: %v", err)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool
	cfg := domain.Config{Version: Version}

	rootCmd := &cobra.Command{
		Use:           "hellopod",
		Short:         "greet with the name of the pod serving the request",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := logrus.InfoLevel
			if verbose {
				level = logrus.DebugLevel
			}
			pfxlog.GlobalInit(level, pfxlog.DefaultOptions().SetTrimPrefix("hellopod/src/"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := service.CreateOrchestrator(&domain.Context{Config: cfg}).Run(); err != nil {
				return errors.Wrap(err, "error running orchestrator")
			}
			return nil
		},
	}

	flags := rootCmd.Flags()
	flags.StringVar(&cfg.Host, "host", domain.DefaultHost, "Host to bind to")
	flags.StringVar(&cfg.Port, "port", domain.DefaultPort, "Port to listen on")
	flags.StringVar(&cfg.MetricsAddr, "metrics-addr", "", "Address for the Prometheus /metrics listener (disabled when empty)")
	flags.StringVar(&cfg.StreamAddr, "stream-addr", "", "Address for the WebSocket greeting stream listener (disabled when empty)")
	flags.StringVar(&cfg.HostnameFile, "hostname-file", domain.DefaultHostnameFile, "File to watch for host name changes")
	flags.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", domain.DefaultShutdownTimeout, "Time allowed for in-flight requests on shutdown")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "print the build version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	})

	return rootCmd
}
