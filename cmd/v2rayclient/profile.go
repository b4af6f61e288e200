package main

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ramohamadh/V2rayClient/internal/config"
	"github.com/ramohamadh/V2rayClient/internal/geoip"
	"github.com/ramohamadh/V2rayClient/internal/logger"
	"github.com/ramohamadh/V2rayClient/internal/probe"
	"github.com/ramohamadh/V2rayClient/internal/store"
	"github.com/ramohamadh/V2rayClient/internal/v2ray/parser"
	"github.com/spf13/cobra"
)

var (
	flagExportBase64  bool
	flagExportOut     string
	flagBestLive      bool
	flagPruneFailures int
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage the stored proxy profiles",
}

var profileAddCmd = &cobra.Command{
	Use:   "add <link>...",
	Short: "Parse share links and store them",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, s := mustStore()
		defer s.Close()
		initGeo(cfg)
		defer geoip.Close()

		added := 0
		for _, link := range args {
			p, err := parser.Parse(link)
			if err != nil {
				logger.Log.Warnf("⚠️  Skipping link: %v", err)
				continue
			}
			rec := toRecord(p)
			created, err := s.Add(&rec)
			if err != nil {
				logger.Log.Errorf("Failed to store %s:%d: %v", rec.Address, rec.Port, err)
				continue
			}
			if !created {
				logger.Log.Infof("⏩ Already stored: %s:%d", rec.Address, rec.Port)
				continue
			}
			added++
			logger.Log.Infof("✅ Added %s profile %s:%d (id %d)", rec.Protocol, rec.Address, rec.Port, rec.ID)
		}
		logger.Log.Infof("Done. %d new of %d links.", added, len(args))
	},
}

var profileImportCmd = &cobra.Command{
	Use:   "import <file|url>",
	Short: "Bulk import links from a subscription file or URL",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, s := mustStore()
		defer s.Close()
		initGeo(cfg)
		defer geoip.Close()

		body, err := readSource(args[0])
		if err != nil {
			logger.Log.Fatalf("Error reading %s: %v", args[0], err)
		}

		links := parser.ExtractLinks(body)
		if len(links) == 0 {
			// Subscription bodies are usually base64 wrapped.
			if decoded, err := parser.DecodeBase64(strings.TrimSpace(body)); err == nil {
				links = parser.ExtractLinks(decoded)
			}
		}
		if len(links) == 0 {
			logger.Log.Error("❌ No vmess/vless links found in source.")
			return
		}
		logger.Log.Infof("🔗 Found %d links", len(links))

		var batch []store.Profile
		for _, link := range links {
			p, err := parser.Parse(link)
			if err != nil {
				logger.Log.Debugf("Skipping unparsable link: %v", err)
				continue
			}
			batch = append(batch, toRecord(p))
		}

		added, err := s.AddBatch(batch)
		if err != nil {
			logger.Log.Fatalf("Import failed: %v", err)
		}
		logger.Log.Infof("✅ Imported %d new profiles (%d parsed, %d unparsable).", added, len(batch), len(links)-len(batch))
	},
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored profiles",
	Run: func(cmd *cobra.Command, args []string) {
		_, s := mustStore()
		defer s.Close()

		profiles, err := s.List()
		if err != nil {
			logger.Log.Fatalf("Error listing profiles: %v", err)
		}
		if len(profiles) == 0 {
			logger.Log.Info("No profiles stored. Add some with: v2rayclient profile add <link>")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tWHERE\tPROTO\tENDPOINT\tLATENCY\tFAILS\tREMARK")
		for _, p := range profiles {
			latency := "-"
			if p.LatencyMS > 0 {
				latency = fmt.Sprintf("%.0f ms", p.LatencyMS)
			}
			fmt.Fprintf(w, "%d\t%s %s\t%s\t%s:%d\t%s\t%d\t%s\n",
				p.ID, getFlagEmoji(p.Country), p.Country, p.Protocol, p.Address, p.Port, latency, p.Failures, p.Remark)
		}
		w.Flush()
	},
}

var profileRemoveCmd = &cobra.Command{
	Use:   "remove <id>...",
	Short: "Remove profiles by id",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		_, s := mustStore()
		defer s.Close()

		for _, arg := range args {
			id, err := strconv.ParseUint(arg, 10, 32)
			if err != nil {
				logger.Log.Warnf("⚠️  Not a profile id: %s", arg)
				continue
			}
			if err := s.Remove(uint(id)); err != nil {
				logger.Log.Warnf("⚠️  Could not remove %d: %v", id, err)
				continue
			}
			logger.Log.Infof("✅ Removed profile %d", id)
		}
	},
}

var profileExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored profiles as share links",
	Run: func(cmd *cobra.Command, args []string) {
		_, s := mustStore()
		defer s.Close()

		profiles, err := s.List()
		if err != nil {
			logger.Log.Fatalf("Error listing profiles: %v", err)
		}

		var lines []string
		for _, rec := range profiles {
			p, err := parser.Parse(rec.Raw)
			if err != nil {
				logger.Log.Debugf("Dropping unparsable profile %d: %v", rec.ID, err)
				continue
			}
			p.Remark = exportRemark(rec)
			lines = append(lines, p.ToURI())
		}
		if len(lines) == 0 {
			logger.Log.Error("❌ Nothing to export.")
			return
		}

		payload := strings.Join(lines, "\n")
		if flagExportBase64 {
			payload = base64.StdEncoding.EncodeToString([]byte(payload))
		}
		if flagExportOut == "" {
			fmt.Println(payload)
			return
		}
		if err := os.WriteFile(flagExportOut, []byte(payload+"\n"), 0644); err != nil {
			logger.Log.Fatalf("Error writing %s: %v", flagExportOut, err)
		}
		logger.Log.Infof("✅ Exported %d profiles to %s", len(lines), flagExportOut)
	},
}

var profileBestCmd = &cobra.Command{
	Use:   "best",
	Short: "Show the fastest stored profile",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, s := mustStore()
		defer s.Close()

		if !flagBestLive {
			p, err := s.Best()
			if err != nil {
				logger.Log.Error("❌ No probed profiles yet. Run: v2rayclient test --all --save")
				return
			}
			logger.Log.Infof("🏆 Best stored profile: %s %s:%d (%.0f ms, id %d)",
				getFlagEmoji(p.Country), p.Address, p.Port, p.LatencyMS, p.ID)
			fmt.Println(p.Raw)
			return
		}

		profiles, err := s.List()
		if err != nil {
			logger.Log.Fatalf("Error listing profiles: %v", err)
		}
		if len(profiles) == 0 {
			logger.Log.Error("❌ No profiles stored.")
			return
		}
		// Limit the candidate pool so a huge store does not exhaust ports.
		if len(profiles) > 20 {
			profiles = profiles[:20]
		}

		links := make([]string, 0, len(profiles))
		for _, p := range profiles {
			links = append(links, p.Raw)
		}

		logger.Log.Infof("🔎 Racing %d profiles for the first response...", len(links))
		link, _, instance, err := probe.New(cfg.Probe).First(links)
		if err != nil {
			logger.Log.Fatalf("Live race failed: %v", err)
		}
		instance.Close()

		for _, p := range profiles {
			if p.Raw == link {
				logger.Log.Infof("🏆 First to answer: %s %s:%d (id %d)",
					getFlagEmoji(p.Country), p.Address, p.Port, p.ID)
				break
			}
		}
		fmt.Println(link)
	},
}

var profilePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove profiles that keep failing probes",
	Long:  `Deletes every profile whose consecutive probe failures reached the threshold. Run 'test --all --save' first so the failure counters are current.`,
	Run: func(cmd *cobra.Command, args []string) {
		_, s := mustStore()
		defer s.Close()

		removed, err := s.Prune(flagPruneFailures)
		if err != nil {
			logger.Log.Fatalf("Pruning failed: %v", err)
		}
		if removed == 0 {
			logger.Log.Infof("Nothing to prune (threshold: %d failures).", flagPruneFailures)
			return
		}
		logger.Log.Infof("✂️  Pruned %d dead profiles (threshold: %d failures).", removed, flagPruneFailures)
	},
}

func mustStore() (*config.Config, *store.Store) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		logger.Log.Fatalf("Error loading config: %v", err)
	}
	s, err := store.Open(cfg.Storage.Path)
	if err != nil {
		logger.Log.Fatalf("Error opening profile store: %v", err)
	}
	return cfg, s
}

func initGeo(cfg *config.Config) {
	if cfg.GeoIP.ASNPath == "" {
		return
	}
	if err := geoip.Init(cfg.GeoIP.ASNPath, cfg.GeoIP.CountryPath); err != nil {
		logger.Log.Warnf("GeoIP disabled: %v", err)
	}
}

func toRecord(p *parser.Profile) store.Profile {
	rec := store.Profile{
		Hash:     p.Hash(),
		Raw:      p.RawURI,
		Remark:   p.Remark,
		Protocol: string(p.Descriptor.Protocol),
		Address:  p.Descriptor.Address,
		Port:     p.Descriptor.Port,
	}
	if geoip.Ready() {
		if geo, err := geoip.LookupHost(p.Descriptor.Address); err == nil {
			rec.Country = geo.Country
			rec.ISP = geo.ISP
		}
	}
	return rec
}

func exportRemark(rec store.Profile) string {
	remark := rec.Remark
	if remark == "" {
		remark = rec.Address
	}
	country := rec.Country
	if country == "" {
		country = "XX"
	}
	return fmt.Sprintf("%s %s %s", getFlagEmoji(country), country, remark)
}

func readSource(src string) (string, error) {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		client := &http.Client{Timeout: 30 * time.Second}
		resp, err := client.Get(src)
		if err != nil {
			return "", fmt.Errorf("failed to fetch subscription: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("subscription fetch returned status %d", resp.StatusCode)
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func init() {
	profileExportCmd.Flags().BoolVar(&flagExportBase64, "base64", false, "base64 encode the exported list")
	profileExportCmd.Flags().StringVarP(&flagExportOut, "output", "o", "", "write to file instead of stdout")
	profileBestCmd.Flags().BoolVar(&flagBestLive, "live", false, "race stored profiles instead of using saved latencies")
	profilePruneCmd.Flags().IntVar(&flagPruneFailures, "failures", 3, "failure streak that marks a profile dead")

	profileCmd.AddCommand(profileAddCmd)
	profileCmd.AddCommand(profileImportCmd)
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileRemoveCmd)
	profileCmd.AddCommand(profileExportCmd)
	profileCmd.AddCommand(profileBestCmd)
	profileCmd.AddCommand(profilePruneCmd)
	rootCmd.AddCommand(profileCmd)
}
