package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ramohamadh/V2rayClient/internal/config"
	"github.com/ramohamadh/V2rayClient/internal/downloader"
	"github.com/ramohamadh/V2rayClient/internal/logger"
	"github.com/ramohamadh/V2rayClient/internal/runner"
	"github.com/ramohamadh/V2rayClient/internal/store"
	"github.com/ramohamadh/V2rayClient/internal/v2ray"
	"github.com/ramohamadh/V2rayClient/internal/v2ray/parser"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	flagProfileID    uint
	flagBest         bool
	flagAutoDownload bool
	flagSocksPort    int
	flagSkipTest     bool
)

var connectCmd = &cobra.Command{
	Use:   "connect [link]",
	Short: "Synthesize an engine config for a proxy link and run it",
	Long:  `Parse a vmess:// or vless:// link, write a fresh engine config routing all traffic through it, start the engine and keep it in the foreground until interrupted. Instead of a link, --profile or --best selects a stored profile.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			logger.Log.Fatalf("Error loading config: %v", err)
		}

		link, err := resolveLink(cfg, args)
		if err != nil {
			logger.Log.Fatalf("%v", err)
		}

		logger.Log.Info("🔍 Parsing proxy link...")
		profile, err := parser.Parse(link)
		if err != nil {
			logger.Log.Fatalf("Failed to parse link: %v", err)
		}

		d := profile.Descriptor
		logger.Log.Infof("✅ Parsed %s link for %s:%d", d.Protocol, d.Address, d.Port)

		if _, err := uuid.Parse(d.ID); err != nil {
			logger.Log.Warnf("⚠️  Profile id %q is not a UUID; most servers will reject it", d.ID)
		}

		// --- 1. Synthesize the engine config ---
		doc := v2ray.DefaultConfig()
		doc.SetOutbound(v2ray.Assemble(profile))
		doc.RebuildProxyRouting()
		doc.SetLogLevel(cfg.LogLevel)

		socksPort := cfg.Inbounds.SocksPort
		if flagSocksPort > 0 {
			socksPort = flagSocksPort
		}
		if err := doc.SetInboundPort(socksPort, "socks"); err != nil {
			logger.Log.Fatalf("Invalid socks port: %v", err)
		}
		if err := doc.SetInboundPort(cfg.Inbounds.HTTPPort, "http"); err != nil {
			logger.Log.Fatalf("Invalid http port: %v", err)
		}

		if err := doc.Validate(); err != nil {
			logger.Log.Fatalf("Generated config is invalid: %v", err)
		}
		if err := doc.Save(cfg.ConfigPath); err != nil {
			logger.Log.Fatalf("Failed to save config: %v", err)
		}
		logger.Log.Infof("💾 Engine config written to %s", cfg.ConfigPath)

		// --- 2. Make sure the engine binary exists ---
		run := runner.New(cfg.Engine, cfg.ConfigPath, socksPort)
		if _, err := run.Locate(); err != nil {
			if !flagAutoDownload {
				logger.Log.Fatalf("%v (re-run with --auto-download or run: v2rayclient install)", err)
			}
			logger.Log.Info("⬇️  Engine binary not found, downloading...")
			dl := downloader.New(cfg.Engine.Repo, cfg.Engine.InstallDir)
			if _, err := dl.Install(false); err != nil {
				logger.Log.Fatalf("Failed to install engine: %v", err)
			}
		}

		// --- 3. Run it ---
		if err := run.Start(); err != nil {
			logger.Log.Fatalf("Failed to start engine: %v", err)
		}

		printBanner(doc.Summarize(), socksPort, cfg.Inbounds.HTTPPort)

		if !flagSkipTest {
			logger.Log.Info("🧪 Testing proxy connection...")
			if latency, err := run.TestConnection(cfg.Probe.TestURL); err != nil {
				logger.Log.Warnf("⚠️  Connection test failed: %v", err)
			} else {
				logger.Log.Infof("✅ Proxy connection is working (%d ms)", latency.Milliseconds())
			}
		}

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigChan:
			logger.Log.Info("Received stop signal")
		case <-run.Done():
			logger.Log.Warn("Engine exited unexpectedly")
		}
		run.Stop()
	},
}

func resolveLink(cfg *config.Config, args []string) (string, error) {
	switch {
	case len(args) == 1:
		return args[0], nil

	case flagProfileID > 0:
		s, err := store.Open(cfg.Storage.Path)
		if err != nil {
			return "", fmt.Errorf("failed to open profile store: %w", err)
		}
		defer s.Close()

		p, err := s.Get(flagProfileID)
		if err != nil {
			return "", fmt.Errorf("profile %d not found", flagProfileID)
		}
		return p.Raw, nil

	case flagBest:
		s, err := store.Open(cfg.Storage.Path)
		if err != nil {
			return "", fmt.Errorf("failed to open profile store: %w", err)
		}
		defer s.Close()

		p, err := s.Best()
		if err != nil {
			return "", fmt.Errorf("no probed profiles yet, run: v2rayclient test --all --save")
		}
		logger.Log.Infof("🏆 Best stored profile: %s (%.0f ms)", p.Address, p.LatencyMS)
		return p.Raw, nil

	default:
		return "", fmt.Errorf("provide a proxy link, --profile or --best")
	}
}

func printBanner(s v2ray.Summary, socksPort, httpPort int) {
	line := strings.Repeat("=", 50)
	fmt.Println("\n" + line)
	fmt.Println("V2Ray Client Started Successfully!")
	fmt.Println(line)
	if s.Proxy != nil {
		fmt.Printf("Outbound:    %s %s:%d\n", s.Proxy.Protocol, s.Proxy.Address, s.Proxy.Port)
	}
	fmt.Printf("SOCKS Proxy: 127.0.0.1:%d\n", socksPort)
	fmt.Printf("HTTP Proxy:  127.0.0.1:%d\n", httpPort)
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println(line + "\n")
}

func init() {
	connectCmd.Flags().UintVar(&flagProfileID, "profile", 0, "Connect a stored profile by id")
	connectCmd.Flags().BoolVar(&flagBest, "best", false, "Connect the fastest stored profile")
	connectCmd.Flags().BoolVar(&flagAutoDownload, "auto-download", false, "Download the engine binary if it is missing")
	connectCmd.Flags().IntVar(&flagSocksPort, "socks-port", 0, "Override the SOCKS inbound port")
	connectCmd.Flags().BoolVar(&flagSkipTest, "skip-test", false, "Skip the connection test after startup")
	rootCmd.AddCommand(connectCmd)
}
