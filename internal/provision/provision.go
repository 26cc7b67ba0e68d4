// Package provision installs the kubo node binary from its release archive.
package provision

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/containerd/errdefs"
)

// DownloadError reports a failed archive fetch.
type DownloadError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *DownloadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("download %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// ArchiveError reports an archive that could not be unpacked.
type ArchiveError struct {
	Archive string
	Err     error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("unpack %s: %v", e.Archive, e.Err)
}

func (e *ArchiveError) Unwrap() error { return e.Err }

// Platform is a goos/goarch pair in the naming used by release archives.
type Platform struct {
	OS   string
	Arch string
}

// Host returns the platform pinpost is running on.
func Host() Platform {
	return Platform{OS: runtime.GOOS, Arch: runtime.GOARCH}
}

func (p Platform) String() string { return p.OS + "-" + p.Arch }

var supportedArch = map[string][]string{
	"linux":   {"amd64", "arm64", "386", "arm"},
	"darwin":  {"amd64", "arm64"},
	"freebsd": {"amd64", "arm64", "386"},
	"openbsd": {"amd64", "arm64", "386"},
	"windows": {"amd64", "arm64", "386"},
}

// Supported reports whether release archives exist for p.
func (p Platform) Supported() bool {
	return slices.Contains(supportedArch[p.OS], p.Arch)
}

func (p Platform) archiveExt() string {
	if p.OS == "windows" {
		return "zip"
	}
	return "tar.gz"
}

func (p Platform) binaryMember() string {
	if p.OS == "windows" {
		return "kubo/ipfs.exe"
	}
	return "kubo/ipfs"
}

// Installer downloads and unpacks one kubo release to a fixed path.
type Installer struct {
	binPath  string
	version  string
	distURL  string
	platform Platform
	client   *http.Client
}

// Option configures an Installer.
type Option func(*Installer)

// WithPlatform overrides the host platform.
func WithPlatform(p Platform) Option {
	return func(i *Installer) { i.platform = p }
}

// WithHTTPClient sets the client used for downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(i *Installer) { i.client = c }
}

// New returns an installer placing kubo `version` (e.g. "v0.29.0") from
// distURL at binPath.
func New(binPath, version, distURL string, opts ...Option) *Installer {
	i := &Installer{
		binPath:  binPath,
		version:  version,
		distURL:  strings.TrimRight(distURL, "/"),
		platform: Host(),
		client:   http.DefaultClient,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// BinaryPath returns where the binary is (or will be) installed.
func (i *Installer) BinaryPath() string {
	return i.binPath
}

// ArchiveURL returns the release archive location for the configured
// version and platform.
func (i *Installer) ArchiveURL() string {
	name := fmt.Sprintf("kubo_%s_%s.%s", i.version, i.platform, i.platform.archiveExt())
	return fmt.Sprintf("%s/kubo/%s/%s", i.distURL, i.version, name)
}

// IsPresent reports whether an executable file exists at the binary path.
func (i *Installer) IsPresent() bool {
	st, err := os.Stat(i.binPath)
	if err != nil || !st.Mode().IsRegular() {
		return false
	}
	if i.platform.OS == "windows" {
		return true
	}
	return st.Mode().Perm()&0o111 != 0
}

// Install downloads the release archive and extracts the binary. There is
// no retry: any failure is returned as *DownloadError or *ArchiveError.
func (i *Installer) Install(ctx context.Context) error {
	if !i.platform.Supported() {
		return fmt.Errorf("no kubo release for %s: %w", i.platform, errdefs.ErrNotImplemented)
	}
	log := slog.With("component", "provision", "platform", i.platform.String(), "version", i.version)
	url := i.ArchiveURL()

	archive, err := i.download(ctx, url)
	if err != nil {
		return err
	}
	defer func() {
		archive.Close()
		os.Remove(archive.Name())
	}()
	log.Debug("Archive downloaded.", "url", url)

	if err := os.MkdirAll(filepath.Dir(i.binPath), 0o755); err != nil {
		return fmt.Errorf("create binary dir: %w", err)
	}

	member := i.platform.binaryMember()
	if i.platform.archiveExt() == "zip" {
		err = extractZip(archive, member, i.binPath)
	} else {
		err = extractTarGz(archive, member, i.binPath)
	}
	if err != nil {
		return &ArchiveError{Archive: url, Err: err}
	}

	log.Info("Node binary installed.", "path", i.binPath)
	return nil
}

// download streams url into a temp file and returns it rewound.
func (i *Installer) download(ctx context.Context, url string) (*os.File, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &DownloadError{URL: url, Err: err}
	}
	resp, err := i.client.Do(req)
	if err != nil {
		return nil, &DownloadError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		dlErr := &DownloadError{URL: url, StatusCode: resp.StatusCode}
		if resp.StatusCode == http.StatusNotFound {
			dlErr.Err = errdefs.ErrNotFound
		} else {
			dlErr.Err = errdefs.ErrUnavailable
		}
		return nil, dlErr
	}

	f, err := os.CreateTemp("", "kubo-archive-*")
	if err != nil {
		return nil, fmt.Errorf("create archive temp file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, &DownloadError{URL: url, Err: err}
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("rewind archive: %w", err)
	}
	return f, nil
}
