package updater

import (
	"crypto"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/airmouse/internal/version"

	// Ensure SHA512 available for checksum calculation.
	_ "crypto/sha512"
)

const (
	// ManifestFilename is the release description published next to the binaries.
	ManifestFilename = "airmouse-manifest.yaml"

	// DefaultFileMode is applied to updated files.
	DefaultFileMode os.FileMode = 0o755

	// ChecksumFunction is used to calculate release file hashes.
	ChecksumFunction crypto.Hash = crypto.SHA512
)

var (
	errHashUnavailable = errors.New("hash function unavailable")
	errNoChecksum      = errors.New("checksum missing for file")
)

// Manifest describes a published release.
type Manifest struct {
	// Version is the semantic version of this release.
	Version string `yaml:"version"`
	// Files maps filenames to their base64-encoded checksums.
	Files map[string]string `yaml:"files"`
}

// Binaries returns the release executables for the current platform.
func Binaries() []string {
	ext := ""
	if runtime.GOOS == "windows" {
		ext = ".exe"
	}

	return []string{
		"airmouse-device" + ext,
		"airmousectl" + ext,
		"airmouse-host" + ext,
	}
}

// FileChecksum returns the checksum of the file at path.
func FileChecksum(path string) ([]byte, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	if !ChecksumFunction.Available() {
		return nil, fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	hasher := ChecksumFunction.New()
	if _, err = hasher.Write(contents); err != nil {
		return nil, fmt.Errorf("calculate checksum: %w", err)
	}

	return hasher.Sum(nil), nil
}

// BuildManifest hashes every listed file inside dir.
func BuildManifest(dir string, files []string) (*Manifest, error) {
	m := &Manifest{
		Version: version.Short(),
		Files:   make(map[string]string, len(files)),
	}

	for _, name := range files {
		checksum, err := FileChecksum(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("hash %s: %w", name, err)
		}

		m.Files[name] = base64.StdEncoding.EncodeToString(checksum)
	}

	return m, nil
}

// WriteManifest stores m as ManifestFilename inside dir and returns its path.
func WriteManifest(dir string, m *Manifest) (string, error) {
	contents, err := yaml.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}

	path := filepath.Join(dir, ManifestFilename)
	if err = os.WriteFile(path, contents, 0o644); err != nil { //nolint:gosec // Published for download.
		return "", fmt.Errorf("write manifest: %w", err)
	}

	return path, nil
}

// ParseManifest decodes a manifest document.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	return &m, nil
}

// Checksum returns the decoded checksum of name.
func (m *Manifest) Checksum(name string) ([]byte, error) {
	encoded, ok := m.Files[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, errNoChecksum)
	}

	return base64.StdEncoding.DecodeString(encoded)
}

// Names returns the file names in a stable order.
func (m *Manifest) Names() []string {
	names := make([]string, 0, len(m.Files))
	for name := range m.Files {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
