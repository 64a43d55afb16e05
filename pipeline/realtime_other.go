//go:build !linux

package pipeline

import (
	"errors"
	"runtime"
)

func setRealtime() error {
	return errors.New("realtime scheduling is not supported on " + runtime.GOOS)
}
