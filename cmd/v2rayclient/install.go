package main

import (
	"github.com/ramohamadh/V2rayClient/internal/config"
	"github.com/ramohamadh/V2rayClient/internal/downloader"
	"github.com/ramohamadh/V2rayClient/internal/logger"
	"github.com/spf13/cobra"
)

var (
	flagInstallForce bool
	flagInstallCheck bool
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Download and install the proxy engine binary",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			logger.Log.Fatalf("Error loading config: %v", err)
		}
		dl := downloader.New(cfg.Engine.Repo, cfg.Engine.InstallDir)

		if flagInstallCheck {
			checkUpdate(dl)
			return
		}

		path, err := dl.Install(flagInstallForce)
		if err != nil {
			logger.Log.Fatalf("Install failed: %v", err)
		}
		if version, err := dl.InstalledVersion(); err == nil {
			logger.Log.Infof("✅ Engine ready: %s (%s)", path, version)
		} else {
			logger.Log.Infof("✅ Engine ready: %s", path)
		}
	},
}

func checkUpdate(dl *downloader.Downloader) {
	logger.Log.Info("🔍 Checking for engine updates...")
	outdated, latest, err := dl.CheckUpdate()
	if err != nil {
		logger.Log.Fatalf("Update check failed: %v", err)
	}

	installed, err := dl.InstalledVersion()
	if err != nil {
		logger.Log.Infof("⬆️  No engine installed yet, latest release is %s. Run: v2rayclient install", latest)
		return
	}
	if outdated {
		logger.Log.Infof("⬆️  Update available: %s -> %s. Run: v2rayclient install --force", installed, latest)
		return
	}
	logger.Log.Infof("✅ Engine is up to date (%s)", installed)
}

func init() {
	installCmd.Flags().BoolVar(&flagInstallForce, "force", false, "reinstall even if the engine binary exists")
	installCmd.Flags().BoolVar(&flagInstallCheck, "check", false, "only check for updates, do not install")
	rootCmd.AddCommand(installCmd)
}
