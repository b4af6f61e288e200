package downloader

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/ramohamadh/V2rayClient/internal/logger"

	"github.com/cenkalti/backoff/v4"
	"github.com/schollz/progressbar/v3"
)

const (
	defaultAPIBase   = "https://api.github.com"
	maxDownloadBytes = 50 << 20
)

// Downloader installs the engine binary from a GitHub release.
type Downloader struct {
	repo       string
	installDir string
	apiBase    string
	client     *http.Client
}

type Release struct {
	TagName string  `json:"tag_name"`
	Assets  []Asset `json:"assets"`
}

type Asset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
	Size               int64  `json:"size"`
}

func New(repo, installDir string) *Downloader {
	return &Downloader{
		repo:       repo,
		installDir: installDir,
		apiBase:    defaultAPIBase,
		client:     &http.Client{Timeout: 5 * time.Minute},
	}
}

// Install fetches the latest release and unpacks it into the install
// directory. An existing binary short-circuits unless force is set.
func (d *Downloader) Install(force bool) (string, error) {
	binary := d.BinaryPath()
	if isFile(binary) && !force {
		logger.Log.Infof("Engine binary already present at %s", binary)
		return binary, nil
	}

	if err := os.MkdirAll(d.installDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create install dir: %w", err)
	}

	release, err := d.LatestRelease()
	if err != nil {
		return "", err
	}

	asset, err := d.pickAsset(release)
	if err != nil {
		return "", err
	}

	logger.Log.Infof("Downloading engine %s (%s)", release.TagName, asset.Name)

	data, err := d.download(asset)
	if err != nil {
		return "", err
	}

	logger.Log.Info("Extracting engine...")
	path, err := d.extract(data)
	if err != nil {
		return "", fmt.Errorf("failed to extract engine: %w", err)
	}

	logger.Log.Infof("Engine installed at %s", path)
	return path, nil
}

// LatestRelease queries the GitHub API with retries. Client errors such
// as rate limiting are reported immediately instead of being retried.
func (d *Downloader) LatestRelease() (*Release, error) {
	url := fmt.Sprintf("%s/repos/%s/releases/latest", d.apiBase, d.repo)

	var release Release
	op := func() error {
		release = Release{}

		resp, err := d.client.Get(url)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("release lookup returned status %d", resp.StatusCode)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return backoff.Permanent(err)
			}
			return err
		}
		return json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&release)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 10 * time.Second

	if err := backoff.Retry(op, backoff.WithMaxRetries(bo, 4)); err != nil {
		return nil, fmt.Errorf("failed to fetch release info: %w", err)
	}
	return &release, nil
}

// CheckUpdate reports whether the latest release differs from the
// installed binary. A missing binary is not an update.
func (d *Downloader) CheckUpdate() (bool, string, error) {
	release, err := d.LatestRelease()
	if err != nil {
		return false, "", err
	}

	current, err := d.InstalledVersion()
	if err != nil || current == "" {
		return false, release.TagName, nil
	}

	return !sameVersion(current, release.TagName), release.TagName, nil
}

// InstalledVersion runs the binary's version command and extracts the
// bare version number from its banner.
func (d *Downloader) InstalledVersion() (string, error) {
	binary := d.BinaryPath()
	if !isFile(binary) {
		return "", fmt.Errorf("engine binary not installed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, binary, "version").Output()
	if err != nil {
		return "", fmt.Errorf("failed to read engine version: %w", err)
	}
	return parseVersion(string(out)), nil
}

// BinaryPath is where the installed binary lives, present or not.
func (d *Downloader) BinaryPath() string {
	return filepath.Join(d.installDir, d.binaryName())
}

func (d *Downloader) pickAsset(release *Release) (*Asset, error) {
	key, err := assetKey(d.repo, runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return nil, err
	}

	for i := range release.Assets {
		if strings.Contains(release.Assets[i].Name, key) {
			return &release.Assets[i], nil
		}
	}
	return nil, fmt.Errorf("no release asset matches %s", key)
}

// assetKey names the zip published for a platform. Both upstream cores
// use the same naming scheme apart from the leading project name.
func assetKey(repo, goos, goarch string) (string, error) {
	prefix := "v2ray"
	if strings.Contains(strings.ToLower(repo), "xray") {
		prefix = "Xray"
	}

	var suffix string
	switch goos {
	case "linux":
		switch goarch {
		case "amd64":
			suffix = "linux-64"
		case "386":
			suffix = "linux-32"
		case "arm64":
			suffix = "linux-arm64-v8a"
		case "arm":
			suffix = "linux-arm32-v7a"
		}
	case "darwin":
		switch goarch {
		case "amd64":
			suffix = "macos-64"
		case "arm64":
			suffix = "macos-arm64-v8a"
		}
	case "windows":
		switch goarch {
		case "amd64":
			suffix = "windows-64"
		case "386":
			suffix = "windows-32"
		case "arm64":
			suffix = "windows-arm64-v8a"
		}
	}

	if suffix == "" {
		return "", fmt.Errorf("unsupported platform: %s %s", goos, goarch)
	}
	return fmt.Sprintf("%s-%s.zip", prefix, suffix), nil
}

func (d *Downloader) binaryName() string {
	name := "v2ray"
	if strings.Contains(strings.ToLower(d.repo), "xray") {
		name = "xray"
	}
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return name
}

func (d *Downloader) download(asset *Asset) ([]byte, error) {
	if asset.Size > maxDownloadBytes {
		return nil, fmt.Errorf("release asset too large: %d bytes", asset.Size)
	}

	resp, err := d.client.Get(asset.BrowserDownloadURL)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	bar := progressbar.DefaultBytes(asset.Size, "Downloading")

	var buf bytes.Buffer
	if _, err := io.Copy(io.MultiWriter(&buf, bar), io.LimitReader(resp.Body, maxDownloadBytes+1)); err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	if buf.Len() > maxDownloadBytes {
		return nil, fmt.Errorf("release asset exceeds %d bytes", maxDownloadBytes)
	}
	return buf.Bytes(), nil
}

// extract unpacks the whole archive, then moves the binary to the install
// root so the runner finds it next to the geo data files.
func (d *Downloader) extract(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open archive: %w", err)
	}

	root := filepath.Clean(d.installDir)
	for _, f := range zr.File {
		target := filepath.Join(root, f.Name)
		if !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return "", fmt.Errorf("archive entry escapes install dir: %s", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return "", err
			}
			continue
		}

		if err := writeEntry(f, target); err != nil {
			return "", err
		}
	}

	return d.promoteBinary()
}

func writeEntry(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}

func (d *Downloader) promoteBinary() (string, error) {
	name := d.binaryName()
	final := filepath.Join(d.installDir, name)

	var found string
	err := filepath.WalkDir(d.installDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() && entry.Name() == name {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", fmt.Errorf("engine binary not found in archive")
	}

	if found != final {
		if err := os.Rename(found, final); err != nil {
			return "", fmt.Errorf("failed to move binary: %w", err)
		}
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(final, 0o755); err != nil {
			return "", err
		}
	}
	return final, nil
}

func parseVersion(out string) string {
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(strings.TrimSpace(line))
		if len(fields) >= 2 {
			return fields[1]
		}
	}
	return ""
}

func sameVersion(a, b string) bool {
	return strings.TrimPrefix(a, "v") == strings.TrimPrefix(b, "v")
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
