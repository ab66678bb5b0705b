// Package main provides the radiogate entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/net/netutil"

	apiserver "github.com/rennerdo30/radiogate/internal/api/server"
	"github.com/rennerdo30/radiogate/internal/config"
	"github.com/rennerdo30/radiogate/internal/gateway"
	"github.com/rennerdo30/radiogate/internal/logging"
	"github.com/rennerdo30/radiogate/internal/metrics"
	"github.com/rennerdo30/radiogate/internal/radio"
	"github.com/rennerdo30/radiogate/internal/version"
	"github.com/rennerdo30/radiogate/internal/xbee"
)

// options holds the command line flags shared by all commands.
type options struct {
	configFile          string
	meshAddr            string
	broadcastEverything bool
	iface               string
	serialPort          string
	logLevel            string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "radiogate",
		Short: "TUN to mesh radio gateway",
		Long: `radiogate bridges a local TUN interface and an XBee mesh radio, ` +
			`learning which radio node each remote IP address lives behind.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config", "c", "radiogate.yaml", "config file path")
	flags.StringVar(&opts.meshAddr, "mesh-addr", "", "local 64-bit mesh address (overrides mesh.address)")
	flags.BoolVar(&opts.broadcastEverything, "broadcast-everything", false, "send every packet to the broadcast address")
	flags.StringVarP(&opts.iface, "interface", "i", "", "TUN interface name (overrides interface.name)")
	flags.StringVarP(&opts.serialPort, "serial", "s", "", "radio serial port (overrides serial.port)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Full())
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(cmd, opts); err != nil {
				return fmt.Errorf("configuration invalid: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid")
			return nil
		},
	})

	rootCmd.AddCommand(newConfigCommand(opts))

	return rootCmd
}

func newConfigCommand(opts *options) *cobra.Command {
	var (
		output string
		force  bool
	)

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with default values",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				if _, err := os.Stat(output); err == nil {
					return fmt.Errorf("file %s already exists (use --force to overwrite)", output)
				}
			}

			cfg := config.DefaultConfig()
			if err := applyFlags(cmd, opts, &cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("configuration invalid: %w", err)
			}
			if err := config.Save(output, &cfg); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Generated configuration: %s\n", output)
			return nil
		},
	}
	initCmd.Flags().StringVarP(&output, "output", "o", "radiogate.yaml", "output file path")
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite existing file")

	configCmd.AddCommand(initCmd)
	return configCmd
}

// loadConfig reads the config file, applies flag overrides and validates
// the result. A missing file is fine when --config was not given.
func loadConfig(cmd *cobra.Command, opts *options) (config.Config, error) {
	cfg := config.DefaultConfig()

	if err := config.Load(opts.configFile, &cfg); err != nil {
		if !errors.Is(err, os.ErrNotExist) || cmd.Flags().Changed("config") {
			return cfg, fmt.Errorf("load config: %w", err)
		}
	}

	if err := applyFlags(cmd, opts, &cfg); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyFlags copies explicitly set flags over cfg.
func applyFlags(cmd *cobra.Command, opts *options, cfg *config.Config) error {
	flags := cmd.Flags()

	if flags.Changed("mesh-addr") {
		addr, err := radio.ParseAddr(opts.meshAddr)
		if err != nil {
			return fmt.Errorf("--mesh-addr: %w", err)
		}
		cfg.Mesh.Address = config.MeshAddr(addr)
	}
	if flags.Changed("broadcast-everything") {
		cfg.Mesh.BroadcastEverything = opts.broadcastEverything
	}
	if flags.Changed("interface") {
		cfg.Interface.Name = opts.iface
	}
	if flags.Changed("serial") {
		cfg.Serial.Port = opts.serialPort
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = opts.logLevel
	}
	return nil
}

func run(ctx context.Context, cfg config.Config) error {
	if err := logging.Setup(cfg.Logging); err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer logging.Close()

	logging.Info("starting radiogate", "version", version.Version)

	m := metrics.New()
	queue := radio.NewQueue(cfg.Queue.Size)

	port, err := xbee.OpenSerial(cfg.Serial.Port, cfg.Serial.Baud)
	if err != nil {
		return err
	}
	// Closing the port is what unblocks the reframer on shutdown.
	defer port.Close()

	gw, err := gateway.Open(cfg.GatewayConfig(), cfg.Interface, queue, gateway.WithMetrics(m))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	collector := metrics.NewCollector(m, gw.Cache(), queue)
	collector.Start()
	defer collector.Stop()

	if cfg.API.Enabled {
		srv, err := startAPI(cfg.API, apiserver.New(apiserver.Config{
			Status:  gw.Info,
			Cache:   gw.Cache(),
			Metrics: m.Handler(),
			Token:   cfg.API.Token,
		}).Router())
		if err != nil {
			gw.Close()
			return err
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	txErr := make(chan error, 1)
	go func() {
		txErr <- xbee.NewTransmitter(port, queue, cfg.Mesh.MaxFrameSize, m).Run(ctx)
	}()

	gwErr := make(chan error, 1)
	go func() {
		gwErr <- gw.Run(ctx, xbee.NewReframer(port, m))
	}()

	select {
	case err = <-gwErr:
	case err = <-txErr:
		cancel()
		if gerr := <-gwErr; err == nil {
			err = gerr
		}
	}

	if err != nil {
		logging.Error("radiogate stopped", "error", err)
		return err
	}
	logging.Info("radiogate stopped")
	return nil
}

// startAPI binds the API listener and serves handler in the background.
func startAPI(cfg config.APIConfig, handler http.Handler) (*http.Server, error) {
	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return nil, fmt.Errorf("listen API on %s: %w", cfg.Listen, err)
	}
	if cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, cfg.MaxConnections)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("API server failed", "error", err)
		}
	}()

	logging.Info("API listening", "listen", ln.Addr().String())
	return srv, nil
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
