package provision

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/google/renameio"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
)

var errMemberMissing = errors.New("binary not found in archive")

func extractTarGz(archive io.Reader, member, dest string) error {
	gz, err := gzip.NewReader(archive)
	if err != nil {
		return fmt.Errorf("open gzip stream: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: %s", errMemberMissing, member)
		}
		if err != nil {
			return fmt.Errorf("read tar entry: %w", err)
		}
		if path.Clean(hdr.Name) != member || hdr.Typeflag != tar.TypeReg {
			continue
		}
		return writeBinary(tr, dest)
	}
}

func extractZip(archive *os.File, member, dest string) error {
	st, err := archive.Stat()
	if err != nil {
		return fmt.Errorf("stat archive: %w", err)
	}
	zr, err := zip.NewReader(archive, st.Size())
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	for _, f := range zr.File {
		if path.Clean(f.Name) != member || f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open zip entry: %w", err)
		}
		defer rc.Close()
		return writeBinary(rc, dest)
	}
	return fmt.Errorf("%w: %s", errMemberMissing, member)
}

// writeBinary atomically replaces dest with the contents of r.
func writeBinary(r io.Reader, dest string) error {
	t, err := renameio.TempFile("", dest)
	if err != nil {
		return fmt.Errorf("create binary temp file: %w", err)
	}
	defer t.Cleanup()

	if _, err := io.Copy(t, r); err != nil {
		return fmt.Errorf("write binary: %w", err)
	}
	if err := t.Chmod(0o755); err != nil {
		return fmt.Errorf("chmod binary: %w", err)
	}
	if err := t.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("install binary: %w", err)
	}
	return nil
}
