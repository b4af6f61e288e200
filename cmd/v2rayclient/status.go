package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/ramohamadh/V2rayClient/internal/config"
	"github.com/ramohamadh/V2rayClient/internal/downloader"
	"github.com/ramohamadh/V2rayClient/internal/logger"
	"github.com/ramohamadh/V2rayClient/internal/runner"
	"github.com/ramohamadh/V2rayClient/internal/store"
	"github.com/ramohamadh/V2rayClient/internal/v2ray"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show engine, config and profile store status",
	Long:  `Displays a dashboard of the current state: engine binary and version, the synthesized config on disk, and profile store statistics.`,
	Run: func(cmd *cobra.Command, args []string) {
		// 1. Load Config & Store
		cfg, err := config.Load(cfgFile)
		if err != nil {
			logger.Log.Fatalf("Error loading config: %v", err)
		}

		s, err := store.Open(cfg.Storage.Path)
		if err != nil {
			logger.Log.Fatalf("Error opening profile store: %v", err)
		}
		defer s.Close()

		// 2. Gather Stats
		dl := downloader.New(cfg.Engine.Repo, cfg.Engine.InstallDir)

		binary, err := runner.New(cfg.Engine, cfg.ConfigPath, cfg.Inbounds.SocksPort).Locate()
		if err != nil {
			binary = "(not installed)"
		}
		version, err := dl.InstalledVersion()
		if err != nil {
			version = "-"
		}

		total, _ := s.Count()
		countries, _ := s.Countries()
		if len(countries) > 5 {
			countries = countries[:5]
		}

		// 3. Print Dashboard
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

		fmt.Println("\n📊 \033[1mV2RAYCLIENT STATUS DASHBOARD\033[0m")
		fmt.Println("────────────────────────────────────────")

		// Engine Section
		fmt.Fprintln(w, "\033[1;36m[ ENGINE ]\033[0m\t")
		fmt.Fprintf(w, "  Binary:\t%s\n", binary)
		fmt.Fprintf(w, "  Version:\t%s\n", version)
		fmt.Fprintln(w, "\t")

		// Config Section
		fmt.Fprintln(w, "\033[1;36m[ CONFIG ]\033[0m\t")
		fmt.Fprintf(w, "  Path:\t%s\n", cfg.ConfigPath)
		if doc, err := v2ray.Load(cfg.ConfigPath); err == nil {
			summary := doc.Summarize()
			fmt.Fprintf(w, "  Size:\t%s\n", formatBytes(getFileSize(cfg.ConfigPath)))
			fmt.Fprintf(w, "  Log Level:\t%s\n", summary.LogLevel)
			fmt.Fprintf(w, "  Inbounds:\t%d\n", summary.Inbounds)
			fmt.Fprintf(w, "  Outbounds:\t%d\n", summary.Outbounds)
			if summary.Proxy != nil {
				fmt.Fprintf(w, "  Proxy:\t%s %s:%d\n", summary.Proxy.Protocol, summary.Proxy.Address, summary.Proxy.Port)
			}
		} else {
			fmt.Fprintln(w, "  (No config synthesized yet, run: v2rayclient connect)")
		}
		fmt.Fprintln(w, "\t")

		// Profile Section
		fmt.Fprintln(w, "\033[1;36m[ PROFILES ]\033[0m\t")
		fmt.Fprintf(w, "  Stored:\t%d\n", total)
		fmt.Fprintf(w, "  Database:\t%s\n", formatBytes(getFileSize(cfg.Storage.Path)))
		if best, err := s.Best(); err == nil {
			fmt.Fprintf(w, "  Best:\t%s %s:%d (%.0f ms)\n", getFlagEmoji(best.Country), best.Address, best.Port, best.LatencyMS)
		}
		fmt.Fprintln(w, "\t")

		// Geo Section
		fmt.Fprintln(w, "\033[1;36m[ TOP LOCATIONS ]\033[0m\t")
		if len(countries) == 0 {
			fmt.Fprintln(w, "  (No location data, configure geoip databases)")
		}
		for _, c := range countries {
			fmt.Fprintf(w, "  %s %s:\t%d\n", getFlagEmoji(c.Country), c.Country, c.Count)
		}

		w.Flush()
		fmt.Println("")
	},
}

// Helpers

func getFileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

func getFlagEmoji(countryCode string) string {
	if len(countryCode) != 2 {
		return "🌐"
	}
	countryCode = strings.ToUpper(countryCode)
	return string(rune(countryCode[0])+127397) + string(rune(countryCode[1])+127397)
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
