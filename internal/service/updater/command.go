package updater

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/airmouse/internal/config"
	"github.com/oshokin/airmouse/internal/logger"
	"github.com/oshokin/airmouse/internal/service/common"
)

var (
	errSourceRequired = errors.New("update source url is not set")
	errBadHTTPStatus  = errors.New("unexpected http status")
	errDaemonRunning  = errors.New("airmouse-device is running, stop it before updating")
)

// Options are inputs accepted by the updater entry point.
type Options struct {
	// ConfigPath is the optional path to settings YAML file.
	ConfigPath string
	// SourceURL overrides update.source_url.
	SourceURL string
	// Directory overrides update.directory.
	Directory string
	// DryRun reports outdated files without replacing them.
	DryRun bool
	// Client performs the downloads; a client bound to the settings timeout when nil.
	Client *http.Client
}

// Result lists what an update run found and changed.
type Result struct {
	Version  string
	Outdated []string
	Applied  []string
}

// Run fetches the manifest and replaces every outdated file.
func Run(ctx context.Context, opts *Options) (*Result, error) {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "updater")

	settings, err := config.LoadOrDefault(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	source := firstNonEmpty(opts.SourceURL, settings.Update.SourceURL)
	if source == "" {
		return nil, errSourceRequired
	}

	dir, err := installDirectory(firstNonEmpty(opts.Directory, settings.Update.Directory))
	if err != nil {
		return nil, err
	}

	u := &runner{
		source: source,
		dir:    dir,
		client: opts.Client,
	}

	if u.client == nil {
		u.client = &http.Client{Timeout: settings.Timeout}
	}

	return u.run(ctx, opts.DryRun)
}

// runner holds the state of a single update execution.
type runner struct {
	// source is the base URL of the release folder.
	source string
	// dir is where the installed files live.
	dir    string
	client *http.Client
}

func (u *runner) run(ctx context.Context, dryRun bool) (*Result, error) {
	logger.InfoKV(ctx, "Downloading release manifest", "source", u.source)

	data, err := u.fetch(ctx, ManifestFilename)
	if err != nil {
		return nil, fmt.Errorf("download manifest: %w", err)
	}

	manifest, err := ParseManifest(data)
	if err != nil {
		return nil, err
	}

	result := &Result{Version: manifest.Version}

	for _, name := range manifest.Names() {
		outdated, checkErr := u.outdated(manifest, name)
		if checkErr != nil {
			return result, checkErr
		}

		if outdated {
			result.Outdated = append(result.Outdated, name)
		}
	}

	if len(result.Outdated) == 0 {
		logger.InfoKV(ctx, "Files are current", "version", manifest.Version)
		return result, nil
	}

	if dryRun {
		logger.InfoKV(ctx, "Update available", "version", manifest.Version, "files", result.Outdated)
		return result, nil
	}

	if err = u.ensureDaemonStopped(ctx); err != nil {
		return result, err
	}

	for _, name := range result.Outdated {
		if err = u.apply(ctx, manifest, name); err != nil {
			return result, fmt.Errorf("update %s: %w", name, err)
		}

		result.Applied = append(result.Applied, name)
	}

	logger.InfoKV(ctx, "Update applied", "version", manifest.Version, "files", result.Applied)

	return result, nil
}

// outdated reports whether the local copy of name is missing or differs.
func (u *runner) outdated(m *Manifest, name string) (bool, error) {
	remote, err := m.Checksum(name)
	if err != nil {
		return false, err
	}

	local, err := FileChecksum(filepath.Join(u.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return true, nil
	}

	if err != nil {
		return false, err
	}

	return !bytes.Equal(remote, local), nil
}

// apply downloads name and swaps it in, verifying the manifest checksum.
func (u *runner) apply(ctx context.Context, m *Manifest, name string) error {
	checksum, err := m.Checksum(name)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Downloading file", "file", name)

	data, err := u.fetch(ctx, name)
	if err != nil {
		return err
	}

	target := filepath.Join(u.dir, name)

	// go-update replaces an existing file only.
	if _, err = os.Stat(target); errors.Is(err, os.ErrNotExist) {
		var f *os.File
		if f, err = os.Create(filepath.Clean(target)); err != nil {
			return err
		}

		_ = f.Close()
	}

	err = goupdate.Apply(bytes.NewReader(data), goupdate.Options{
		TargetPath: target,
		TargetMode: DefaultFileMode,
		Checksum:   checksum,
		Hash:       ChecksumFunction,
	})
	if err != nil {
		return err
	}

	_ = os.Remove(target + ".old")

	return nil
}

// fetch downloads a file from the release folder.
func (u *runner) fetch(ctx context.Context, name string) ([]byte, error) {
	sourceURL, err := url.Parse(u.source)
	if err != nil {
		return nil, err
	}

	// Use path.Join to normalize duplicate slashes when composing the URL path.
	sourceURL.Path = path.Join(sourceURL.Path, name)
	finalURL := sourceURL.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, finalURL, http.NoBody)
	if err != nil {
		return nil, err
	}

	response, err := u.client.Do(req)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s, %s: %w", finalURL, response.Status, errBadHTTPStatus)
	}

	return io.ReadAll(response.Body)
}

// ensureDaemonStopped refuses to swap binaries under a running daemon.
func (u *runner) ensureDaemonStopped(ctx context.Context) error {
	pids, err := common.FindProcesses(Binaries()[0])
	if err != nil {
		logger.WarnKV(ctx, "Unable to list processes", "error", err)
		return nil
	}

	if len(pids) > 0 {
		return fmt.Errorf("%w: pid %d", errDaemonRunning, pids[0])
	}

	return nil
}

func installDirectory(dir string) (string, error) {
	if dir != "" {
		return filepath.Clean(dir), nil
	}

	executable, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}

	return filepath.Dir(executable), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
