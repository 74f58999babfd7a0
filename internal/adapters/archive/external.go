package archive

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"go.trai.ch/monorun/internal/core/domain"
	"go.trai.ch/zerr"
)

func (c *Codec) packExternal(ctx context.Context, root string, files []string) ([]byte, error) {
	dir, err := os.MkdirTemp("", "monorun-pack-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir) //nolint:errcheck // Best effort cleanup

	var list bytes.Buffer
	for _, f := range files {
		list.WriteString(filepath.ToSlash(f))
		list.WriteByte(0)
	}
	listPath := filepath.Join(dir, "files")
	if err := os.WriteFile(listPath, list.Bytes(), domain.PrivateFilePerm); err != nil {
		return nil, err
	}

	out := filepath.Join(dir, "out.tar.gz")
	if err := c.runTar(ctx, "--null", "-c", "-z", "-f", out, "-C", root, "-T", listPath); err != nil {
		return nil, err
	}

	//nolint:gosec // Path is inside our own temp directory
	return os.ReadFile(out)
}

func (c *Codec) unpackExternal(ctx context.Context, blob []byte, root string) error {
	f, err := os.CreateTemp("", "monorun-unpack-*.tar.gz")
	if err != nil {
		return err
	}
	name := f.Name()
	defer os.Remove(name) //nolint:errcheck // Best effort cleanup

	if _, err := f.Write(blob); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	if err := os.MkdirAll(root, domain.DirPerm); err != nil {
		return err
	}
	return c.runTar(ctx, "-x", "-z", "-f", name, "-C", root)
}

func (c *Codec) runTar(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, c.tarPath, args...) //nolint:gosec // tar path comes from LookPath
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return zerr.With(zerr.Wrap(err, "tar failed"), "stderr", stderr.String())
	}
	return nil
}
