//go:build !unix

package ipc

import (
	"net"
	"os"

	"go.trai.ch/monorun/internal/core/domain"
)

func socketPair() (net.Conn, *os.File, error) {
	return nil, nil, domain.ErrIPCUnsupported
}
