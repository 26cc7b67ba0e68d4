package provision

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/containerd/errdefs"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
)

const fakeBinary = "#!/bin/sh\necho ipfs version 0.29.0\n"

func tarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, body := range files {
		hdr := &tar.Header{Name: name, Mode: 0o755, Size: int64(len(body)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func zipArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func serve(t *testing.T, wantPath string, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != wantPath {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestArchiveURL(t *testing.T) {
	testCases := []struct {
		platform Platform
		want     string
	}{
		{Platform{"linux", "amd64"}, "https://dist.ipfs.tech/kubo/v0.29.0/kubo_v0.29.0_linux-amd64.tar.gz"},
		{Platform{"darwin", "arm64"}, "https://dist.ipfs.tech/kubo/v0.29.0/kubo_v0.29.0_darwin-arm64.tar.gz"},
		{Platform{"windows", "amd64"}, "https://dist.ipfs.tech/kubo/v0.29.0/kubo_v0.29.0_windows-amd64.zip"},
	}
	for _, tc := range testCases {
		i := New("/bin/ipfs", "v0.29.0", "https://dist.ipfs.tech/", WithPlatform(tc.platform))
		if got := i.ArchiveURL(); got != tc.want {
			t.Errorf("ArchiveURL(%s) = %q, want %q", tc.platform, got, tc.want)
		}
	}
}

func TestInstallTarGz(t *testing.T) {
	platform := Platform{"linux", "amd64"}
	archive := tarGz(t, map[string]string{
		"kubo/README.md": "docs",
		"kubo/ipfs":      fakeBinary,
	})
	srv := serve(t, "/kubo/v0.29.0/kubo_v0.29.0_linux-amd64.tar.gz", archive)

	bin := filepath.Join(t.TempDir(), "bin", "ipfs")
	i := New(bin, "v0.29.0", srv.URL, WithPlatform(platform), WithHTTPClient(srv.Client()))
	if i.IsPresent() {
		t.Fatal("binary should be absent before install")
	}
	if err := i.Install(context.Background()); err != nil {
		t.Fatalf("Install() error: %v", err)
	}
	if !i.IsPresent() {
		t.Fatal("binary should be present after install")
	}
	data, err := os.ReadFile(bin)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != fakeBinary {
		t.Errorf("installed binary = %q", data)
	}
}

func TestInstallZip(t *testing.T) {
	platform := Platform{"windows", "amd64"}
	archive := zipArchive(t, map[string]string{"kubo/ipfs.exe": "MZ"})
	srv := serve(t, "/kubo/v0.29.0/kubo_v0.29.0_windows-amd64.zip", archive)

	bin := filepath.Join(t.TempDir(), "ipfs.exe")
	i := New(bin, "v0.29.0", srv.URL, WithPlatform(platform), WithHTTPClient(srv.Client()))
	if err := i.Install(context.Background()); err != nil {
		t.Fatalf("Install() error: %v", err)
	}
	data, err := os.ReadFile(bin)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "MZ" {
		t.Errorf("installed binary = %q", data)
	}
}

func TestInstallNotFound(t *testing.T) {
	srv := serve(t, "/nothing", nil)
	bin := filepath.Join(t.TempDir(), "ipfs")
	i := New(bin, "v9.9.9", srv.URL, WithPlatform(Platform{"linux", "amd64"}), WithHTTPClient(srv.Client()))

	err := i.Install(context.Background())
	var dlErr *DownloadError
	if !errors.As(err, &dlErr) {
		t.Fatalf("Install() error = %v, want *DownloadError", err)
	}
	if dlErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", dlErr.StatusCode)
	}
	if !errdefs.IsNotFound(err) {
		t.Errorf("error %v should be classified not found", err)
	}
	if i.IsPresent() {
		t.Error("failed install must not leave a binary")
	}
}

func TestInstallMissingMember(t *testing.T) {
	archive := tarGz(t, map[string]string{"kubo/README.md": "docs"})
	srv := serve(t, "/kubo/v0.29.0/kubo_v0.29.0_linux-arm64.tar.gz", archive)
	bin := filepath.Join(t.TempDir(), "ipfs")
	i := New(bin, "v0.29.0", srv.URL, WithPlatform(Platform{"linux", "arm64"}), WithHTTPClient(srv.Client()))

	err := i.Install(context.Background())
	var arErr *ArchiveError
	if !errors.As(err, &arErr) {
		t.Fatalf("Install() error = %v, want *ArchiveError", err)
	}
	if !errors.Is(err, errMemberMissing) {
		t.Errorf("error %v should wrap errMemberMissing", err)
	}
}

func TestInstallCorruptArchive(t *testing.T) {
	srv := serve(t, "/kubo/v0.29.0/kubo_v0.29.0_linux-amd64.tar.gz", []byte("not gzip"))
	i := New(filepath.Join(t.TempDir(), "ipfs"), "v0.29.0", srv.URL,
		WithPlatform(Platform{"linux", "amd64"}), WithHTTPClient(srv.Client()))

	var arErr *ArchiveError
	if err := i.Install(context.Background()); !errors.As(err, &arErr) {
		t.Fatalf("Install() error = %v, want *ArchiveError", err)
	}
}

func TestInstallUnsupportedPlatform(t *testing.T) {
	i := New(filepath.Join(t.TempDir(), "ipfs"), "v0.29.0", "http://127.0.0.1:1",
		WithPlatform(Platform{"plan9", "amd64"}))
	err := i.Install(context.Background())
	if !errdefs.IsNotImplemented(err) {
		t.Fatalf("Install() error = %v, want not implemented", err)
	}
}

func TestIsPresentRequiresExecutable(t *testing.T) {
	bin := filepath.Join(t.TempDir(), "ipfs")
	if err := os.WriteFile(bin, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	i := New(bin, "v0.29.0", "", WithPlatform(Platform{"linux", "amd64"}))
	if i.IsPresent() {
		t.Error("non-executable file should not count as present")
	}
	if err := os.Chmod(bin, 0o755); err != nil {
		t.Fatal(err)
	}
	if !i.IsPresent() {
		t.Error("executable file should count as present")
	}
}
