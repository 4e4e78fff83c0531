package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/calee0219/upf/internal/admin"
	"github.com/calee0219/upf/internal/config"
	"github.com/calee0219/upf/internal/datapath"
	"github.com/calee0219/upf/internal/dispatcher"
	"github.com/calee0219/upf/internal/peerstore"
	"github.com/calee0219/upf/internal/response"
	"github.com/calee0219/upf/internal/server"
	"github.com/calee0219/upf/internal/sessionstore"
	"github.com/calee0219/upf/internal/transaction"
	"github.com/calee0219/upf/internal/translator"
)

var (
	version = "1.0.0"
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "upfn4",
		Short:   "UPF N4 core - PFCP session and forwarding-rule handler",
		Long:    `Terminates PFCP (N4) sessions from an SMF and drives a GTP-U datapath control interface.`,
		Version: version,
		RunE:    run,
	}

	rootCmd.Flags().StringVar(&cfgFile, "config", "", "Configuration file path (default: config.yaml)")
	rootCmd.Flags().String("listen-addr", "", "Address to listen for PFCP on")
	rootCmd.Flags().Int("listen-port", 0, "Port to listen for PFCP on")
	rootCmd.Flags().String("datapath-mode", "", "Datapath mode (simulated|gtp5g)")
	rootCmd.Flags().String("datapath-interface", "", "Datapath interface name")
	rootCmd.Flags().Uint64("seid-start", 0, "Starting local SEID value")
	rootCmd.Flags().String("seid-strategy", "", "SEID allocation strategy (sequential|random)")
	rootCmd.Flags().Int("metrics-port", 0, "Prometheus metrics port")
	rootCmd.Flags().Int("admin-port", 0, "Admin HTTP API port")
	rootCmd.Flags().String("log-level", "", "Log level (debug|info|warn|error)")

	v := viper.New()
	bindFlag(v, rootCmd, "listen-addr", "listen.address")
	bindFlag(v, rootCmd, "listen-port", "listen.port")
	bindFlag(v, rootCmd, "datapath-mode", "datapath.mode")
	bindFlag(v, rootCmd, "datapath-interface", "datapath.interface")
	bindFlag(v, rootCmd, "seid-start", "session.seid_start")
	bindFlag(v, rootCmd, "seid-strategy", "session.seid_strategy")
	bindFlag(v, rootCmd, "metrics-port", "metrics.port")
	bindFlag(v, rootCmd, "admin-port", "admin.port")
	bindFlag(v, rootCmd, "log-level", "logging.level")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func bindFlag(v *viper.Viper, cmd *cobra.Command, flagName, configKey string) {
	_ = v.BindPFlag(configKey, cmd.Flags().Lookup(flagName))
}

func run(cmd *cobra.Command, args []string) error {
	v := viper.New()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if cfgFile != "" {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		log.Debug("No config file found, using defaults and CLI flags")
	}

	bindViperFlags(v, cmd)

	cfg, err := config.LoadWithViper(v)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	setupLogging(cfg)

	fmt.Printf("UPF N4 core v%s\n", version)
	fmt.Println("==============================")
	fmt.Print(cfg.Summary())
	fmt.Println()

	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.WithField("signal", sig).Info("received shutdown signal")
		cancel()
	}()

	dp, err := selectDatapath(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize datapath: %w", err)
	}
	defer dp.Close()

	sessions := sessionstore.New()
	peers := peerstore.New()
	alloc := sessionstore.NewSEIDAllocator(cfg.Session.SEIDStrategy, cfg.Session.SEIDStart)
	tr := translator.New(dp, cfg.Datapath.Interface)

	localIP := net.ParseIP(cfg.Listen.Address)
	if localIP == nil || localIP.IsUnspecified() {
		localIP = net.ParseIP("127.0.0.1")
	}
	respBuilder := response.New(localIP, time.Now())

	d := dispatcher.New(sessions, peers, alloc, tr, respBuilder)
	dedup := transaction.NewTracker(time.Duration(cfg.Transaction.DedupTTLMs) * time.Millisecond)
	dedup.StartExpiryMonitor(ctx)

	listenAddr := fmt.Sprintf("%s:%d", cfg.Listen.Address, cfg.Listen.Port)
	srv := server.New(listenAddr, d, dedup)

	if cfg.Metrics.Enabled {
		go runMetricsServer(cfg.Metrics.Port)
	}
	if cfg.Admin.Enabled {
		go runAdminServer(cfg.Admin.Port, sessions, peers)
	}

	log.WithField("addr", listenAddr).Info("starting N4 core")
	if err := srv.Run(ctx); err != nil {
		if ctx.Err() != nil {
			log.Info("shutdown complete")
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func selectDatapath(cfg *config.Config) (datapath.Datapath, error) {
	switch cfg.Datapath.Mode {
	case "gtp5g":
		return datapath.NewGTP5G()
	case "simulated", "":
		return datapath.NewSimulated(), nil
	default:
		return nil, fmt.Errorf("unknown datapath mode %q", cfg.Datapath.Mode)
	}
}

func runMetricsServer(port int) {
	addr := fmt.Sprintf(":%d", port)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.WithField("addr", addr).Info("metrics server started")
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Error("metrics server failed")
	}
}

func runAdminServer(port int, sessions *sessionstore.Store, peers *peerstore.Store) {
	addr := fmt.Sprintf(":%d", port)
	srv := admin.New(sessions, peers)
	log.WithField("addr", addr).Info("admin server started")
	if err := srv.Run(addr); err != nil {
		log.WithError(err).Error("admin server failed")
	}
}

func setupLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			log.WithError(err).Warn("failed to open log file, using console only")
		} else {
			log.SetOutput(f)
		}
	}
}

func bindViperFlags(v *viper.Viper, cmd *cobra.Command) {
	if cmd.Flags().Changed("listen-addr") {
		val, _ := cmd.Flags().GetString("listen-addr")
		v.Set("listen.address", val)
	}
	if cmd.Flags().Changed("listen-port") {
		val, _ := cmd.Flags().GetInt("listen-port")
		v.Set("listen.port", val)
	}
	if cmd.Flags().Changed("datapath-mode") {
		val, _ := cmd.Flags().GetString("datapath-mode")
		v.Set("datapath.mode", val)
	}
	if cmd.Flags().Changed("datapath-interface") {
		val, _ := cmd.Flags().GetString("datapath-interface")
		v.Set("datapath.interface", val)
	}
	if cmd.Flags().Changed("seid-start") {
		val, _ := cmd.Flags().GetUint64("seid-start")
		v.Set("session.seid_start", val)
	}
	if cmd.Flags().Changed("seid-strategy") {
		val, _ := cmd.Flags().GetString("seid-strategy")
		v.Set("session.seid_strategy", val)
	}
	if cmd.Flags().Changed("metrics-port") {
		val, _ := cmd.Flags().GetInt("metrics-port")
		v.Set("metrics.port", val)
	}
	if cmd.Flags().Changed("admin-port") {
		val, _ := cmd.Flags().GetInt("admin-port")
		v.Set("admin.port", val)
	}
	if cmd.Flags().Changed("log-level") {
		val, _ := cmd.Flags().GetString("log-level")
		v.Set("logging.level", val)
	}
}
