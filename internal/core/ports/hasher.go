package ports

// OutputHasher computes digests of operation outputs.
//
//go:generate go run go.uber.org/mock/mockgen -source=hasher.go -destination=mocks/mock_hasher.go -package=mocks
type OutputHasher interface {
	// ComputeOutputHash hashes every file under outputs (relative to root).
	// A missing output folder contributes an empty marker.
	ComputeOutputHash(root string, outputs []string) (string, error)
}
