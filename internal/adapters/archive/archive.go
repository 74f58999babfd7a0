// Package archive packs operation outputs into tar.gz blobs and restores them.
package archive

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"io"
	iofs "io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/klauspost/compress/gzip"
	"go.trai.ch/monorun/internal/core/domain"
	"go.trai.ch/monorun/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.ArchiveCodec = (*Codec)(nil)

// Codec implements ports.ArchiveCodec. It shells out to tar when available and
// falls back to an in-process writer producing the same gzip-compressed tar format.
type Codec struct {
	tarPath string
}

// New creates a Codec using the tar executable found on PATH, if any.
func New() *Codec {
	path, err := exec.LookPath("tar")
	if err != nil {
		path = ""
	}
	return &Codec{tarPath: path}
}

// NewWithTar creates a Codec using the given tar executable.
// An empty path selects the in-process archiver only.
func NewWithTar(tarPath string) *Codec {
	return &Codec{tarPath: tarPath}
}

// External reports whether an external tar executable is configured.
func (c *Codec) External() bool {
	return c.tarPath != ""
}

// Collect lists the regular files under outputFolders, relative to root, in sorted order.
// Missing folders are skipped. Every symbolic link found is reported.
func (c *Codec) Collect(root string, outputFolders []string) ([]string, error) {
	var (
		files []string
		errs  []error
	)

	stack := make([]string, 0, len(outputFolders))
	for _, folder := range outputFolders {
		rel, err := relInside(root, folder)
		if err != nil {
			return nil, err
		}
		stack = append(stack, rel)
	}

	for len(stack) > 0 {
		rel := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		path := filepath.Join(root, rel)
		info, err := os.Lstat(path)
		if err != nil {
			if errors.Is(err, iofs.ErrNotExist) {
				continue
			}
			return nil, zerr.With(zerr.Wrap(err, domain.ErrPathStatFailed.Error()), "path", path)
		}

		switch {
		case info.Mode()&iofs.ModeSymlink != 0:
			errs = append(errs, zerr.With(domain.ErrSymlinkInOutput, "path", path))
		case info.IsDir():
			entries, err := os.ReadDir(path)
			if err != nil {
				return nil, zerr.With(zerr.Wrap(err, domain.ErrPathStatFailed.Error()), "path", path)
			}
			for _, entry := range entries {
				stack = append(stack, filepath.Join(rel, entry.Name()))
			}
		case info.Mode().IsRegular():
			files = append(files, rel)
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	slices.Sort(files)
	return files, nil
}

// Pack archives files (relative to root) into a gzip-compressed tar blob.
func (c *Codec) Pack(ctx context.Context, root string, files []string) ([]byte, error) {
	if c.tarPath != "" {
		if blob, err := c.packExternal(ctx, root, files); err == nil {
			return blob, nil
		}
	}

	blob, err := packInProcess(root, files)
	if err != nil {
		return nil, zerr.Wrap(err, domain.ErrArchivePackFailed.Error())
	}
	return blob, nil
}

// Unpack removes every output folder under root, then extracts blob into root.
func (c *Codec) Unpack(ctx context.Context, blob []byte, root string, outputFolders []string) error {
	if err := purge(root, outputFolders); err != nil {
		return err
	}

	if c.tarPath != "" {
		if err := c.unpackExternal(ctx, blob, root); err == nil {
			return nil
		}
		if err := purge(root, outputFolders); err != nil {
			return err
		}
	}

	if err := unpackInProcess(blob, root); err != nil {
		return zerr.Wrap(err, domain.ErrArchiveUnpackFailed.Error())
	}
	return nil
}

func purge(root string, outputFolders []string) error {
	for _, folder := range outputFolders {
		rel, err := relInside(root, folder)
		if err != nil {
			return err
		}
		if err := os.RemoveAll(filepath.Join(root, rel)); err != nil {
			return zerr.With(zerr.Wrap(err, domain.ErrArchiveUnpackFailed.Error()), "path", rel)
		}
	}
	return nil
}

// relInside cleans folder and ensures it stays below root.
func relInside(root, folder string) (string, error) {
	path := folder
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, folder)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", zerr.With(domain.ErrOutputPathOutsideRoot, "path", folder)
	}
	return rel, nil
}

func packInProcess(root string, files []string) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	for _, rel := range files {
		if err := addFile(tw, root, rel); err != nil {
			return nil, err
		}
	}

	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func addFile(tw *tar.Writer, root, rel string) error {
	path := filepath.Join(root, rel)
	info, err := os.Lstat(path)
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrPathStatFailed.Error()), "path", path)
	}
	if !info.Mode().IsRegular() {
		return zerr.With(domain.ErrSymlinkInOutput, "path", path)
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	header.Name = filepath.ToSlash(rel)
	header.Format = tar.FormatPAX

	if err := tw.WriteHeader(header); err != nil {
		return err
	}

	f, err := os.Open(path) //nolint:gosec // Path is collected from declared output folders
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrFileOpenFailed.Error()), "path", path)
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	_, err = io.Copy(tw, f)
	return err
}

func unpackInProcess(blob []byte, root string) error {
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return err
	}
	defer gz.Close() //nolint:errcheck // Reader close never fails meaningfully

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if header.Typeflag == tar.TypeXGlobalHeader {
			continue
		}

		target, err := safeTarget(root, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, domain.DirPerm); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := extractFile(tr, target, header); err != nil {
				return err
			}
		default:
			return zerr.With(domain.ErrArchiveUnsafePath, "entry", header.Name)
		}
	}
}

func extractFile(r io.Reader, target string, header *tar.Header) error {
	if err := os.MkdirAll(filepath.Dir(target), domain.DirPerm); err != nil {
		return err
	}

	//nolint:gosec // Target is verified to stay below the destination root
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, iofs.FileMode(header.Mode)&iofs.ModePerm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Chtimes(target, header.ModTime, header.ModTime)
}

func safeTarget(root, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", zerr.With(domain.ErrArchiveUnsafePath, "entry", name)
	}
	return filepath.Join(root, clean), nil
}
