package ports

import "context"

// ArchiveCodec turns output folders into a single blob and back.
//
//go:generate go run go.uber.org/mock/mockgen -source=archive.go -destination=mocks/mock_archive.go -package=mocks
type ArchiveCodec interface {
	// Collect lists the regular files under outputFolders, relative to root.
	// It fails if any entry is a symbolic link.
	Collect(root string, outputFolders []string) ([]string, error)
	// Pack archives files (relative to root) into a gzip-compressed tar blob.
	Pack(ctx context.Context, root string, files []string) ([]byte, error)
	// Unpack purges outputFolders under root and extracts blob into root.
	Unpack(ctx context.Context, blob []byte, root string, outputFolders []string) error
}
