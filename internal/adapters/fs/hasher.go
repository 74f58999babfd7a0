package fs

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/monorun/internal/core/domain"
	"go.trai.ch/monorun/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.OutputHasher = (*Hasher)(nil)

// Hasher provides hashing functionality for files and output folders.
type Hasher struct {
	walker *Walker
}

// NewHasher creates a new Hasher.
func NewHasher(walker *Walker) *Hasher {
	return &Hasher{walker: walker}
}

// ComputeFileHash computes the XXHash of a file's content.
func (h *Hasher) ComputeFileHash(path string) (uint64, error) {
	f, err := os.Open(path) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return 0, zerr.With(zerr.Wrap(err, domain.ErrFileOpenFailed.Error()), "path", path)
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	hasher := xxhash.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return 0, zerr.With(zerr.Wrap(err, domain.ErrFileHashFailed.Error()), "path", path)
	}

	return hasher.Sum64(), nil
}

// ComputeOutputHash computes a single hash over every file in the output folders.
// A missing output folder hashes as empty, so an operation that produced
// nothing still gets a stable hash.
func (h *Hasher) ComputeOutputHash(root string, outputs []string) (string, error) {
	sortedOutputs := slices.Clone(outputs)
	slices.Sort(sortedOutputs)

	hasher := xxhash.New()
	for _, output := range sortedOutputs {
		_, _ = hasher.WriteString(output)
		_, _ = hasher.Write([]byte{0})

		dir := filepath.Join(root, output)
		if _, err := os.Stat(dir); err != nil {
			if errors.Is(err, iofs.ErrNotExist) {
				_, _ = hasher.Write([]byte{0})
				continue
			}
			return "", zerr.With(zerr.Wrap(err, domain.ErrPathStatFailed.Error()), "path", dir)
		}

		if err := h.hashTree(dir, nil, hasher); err != nil {
			return "", err
		}
	}

	return fmt.Sprintf("%016x", hasher.Sum64()), nil
}

// hashTree feeds every file below dir into the digest as (relative path, content hash).
func (h *Hasher) hashTree(dir string, excludes []string, digest io.Writer) error {
	for rel, err := range h.walker.WalkFiles(dir, excludes) {
		if err != nil {
			return zerr.With(zerr.Wrap(err, domain.ErrPathStatFailed.Error()), "path", dir)
		}
		if err := h.hashFile(dir, rel, digest); err != nil {
			return err
		}
	}
	return nil
}

func (h *Hasher) hashFile(dir, rel string, digest io.Writer) error {
	_, _ = digest.Write([]byte(filepath.ToSlash(rel)))
	_, _ = digest.Write([]byte{0})

	hash, err := h.ComputeFileHash(filepath.Join(dir, rel))
	if err != nil {
		return err
	}

	if err := binary.Write(digest, binary.LittleEndian, hash); err != nil {
		return zerr.Wrap(err, "failed to write hash to digest")
	}
	return nil
}
