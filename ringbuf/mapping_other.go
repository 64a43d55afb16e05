//go:build !linux

package ringbuf

import (
	"fmt"
	"os"
	"runtime"
)

func pageSize() int {
	return os.Getpagesize()
}

func mapRegion(capacity int) ([]byte, error) {
	return nil, fmt.Errorf("%w: double mapping is not supported on %s", ErrAllocation, runtime.GOOS)
}

func unmapRegion(data []byte) error {
	return nil
}
