package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/ramohamadh/V2rayClient/internal/config"
	"github.com/ramohamadh/V2rayClient/internal/logger"
	"github.com/ramohamadh/V2rayClient/internal/metrics"
	"github.com/ramohamadh/V2rayClient/internal/probe"
	"github.com/ramohamadh/V2rayClient/internal/store"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	flagTestAll    bool
	flagTestSave   bool
	flagTestTop    int
	flagTestReport bool
)

var testCmd = &cobra.Command{
	Use:   "test [profile_ids...]",
	Short: "Probe stored profiles and rank them by latency",
	Long:  `Tunnel a real request through each selected profile and measure the round trip. With no arguments every stored profile is probed. Use --save to fold the measurements into the stored latency averages.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			logger.Log.Fatalf("Error loading config: %v", err)
		}

		s, err := store.Open(cfg.Storage.Path)
		if err != nil {
			logger.Log.Fatalf("Error opening profile store: %v", err)
		}
		defer s.Close()

		profiles, err := selectProfiles(s, args)
		if err != nil {
			logger.Log.Fatalf("%v", err)
		}
		if len(profiles) == 0 {
			logger.Log.Error("❌ No profiles to test. Add some with: v2rayclient profile add")
			return
		}

		links := make([]string, len(profiles))
		for i, p := range profiles {
			links[i] = p.Raw
		}

		prober := probe.New(cfg.Probe)
		if baseline, err := prober.Baseline(); err == nil {
			logger.Log.Infof("🌍 Direct baseline: %d ms", baseline.Milliseconds())
		} else {
			logger.Log.Warnf("⚠️  Direct baseline check failed: %v", err)
		}

		logger.Log.Infof("🔎 Probing %d profiles...", len(profiles))

		bar := progressbar.NewOptions(len(profiles),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowBytes(false),
			progressbar.OptionSetWidth(15),
			progressbar.OptionSetDescription("[cyan]Probing...[reset]"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)

		alive := 0
		collector := metrics.New()
		results := prober.CheckAll(links, func(r probe.Result) {
			if r.Err == nil {
				alive++
				collector.RecordSuccess(r.Latency)
				bar.Describe(fmt.Sprintf("[cyan]Alive: %d[reset]", alive))
			} else {
				collector.RecordFailure(r.Err)
			}
			bar.Add(1)
		})
		bar.Finish()
		fmt.Print("\n")

		board := store.NewLeaderboard(flagTestTop)
		for i, r := range results {
			if r.Err == nil {
				board.Offer(profiles[i], float64(r.Latency.Milliseconds()))
			}
			if flagTestSave {
				if err := s.RecordResult(profiles[i].ID, r.Latency, r.Err == nil); err != nil {
					logger.Log.Warnf("Failed to record result for profile %d: %v", profiles[i].ID, err)
				}
			}
		}

		logger.Log.Infof("✅ Probe complete. Alive: %d/%d", alive, len(profiles))

		if ranking := board.Ranking(); len(ranking) > 0 {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "\nRANK\tID\tWHERE\tADDRESS\tLATENCY")
			for i, rp := range ranking {
				fmt.Fprintf(w, "%d\t%d\t%s %s\t%s:%d\t%.0f ms\n",
					i+1, rp.Profile.ID,
					getFlagEmoji(rp.Profile.Country), rp.Profile.Country,
					rp.Profile.Address, rp.Profile.Port, rp.Latency)
			}
			w.Flush()
		}

		if flagTestReport {
			collector.PrintReport(cfg.Probe.Timeout(), cfg.Probe.Concurrency)
		}
	},
}

func selectProfiles(s *store.Store, args []string) ([]store.Profile, error) {
	if flagTestAll || len(args) == 0 {
		return s.List()
	}

	var out []store.Profile
	for _, arg := range args {
		id, err := strconv.ParseUint(arg, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid profile id %q", arg)
		}
		p, err := s.Get(uint(id))
		if err != nil {
			return nil, fmt.Errorf("profile %d not found", id)
		}
		out = append(out, *p)
	}
	return out, nil
}

func init() {
	testCmd.Flags().BoolVar(&flagTestAll, "all", false, "Probe every stored profile")
	testCmd.Flags().BoolVar(&flagTestSave, "save", false, "Record results into the profile store")
	testCmd.Flags().IntVar(&flagTestTop, "top", 10, "Show the N fastest profiles")
	testCmd.Flags().BoolVar(&flagTestReport, "report", false, "Print a latency and error tuning report")
	rootCmd.AddCommand(testCmd)
}
