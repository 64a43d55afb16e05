//go:build linux

package pipeline

import (
	"fmt"

	"golang.org/x/sys/unix"
)

const realtimePriority = 50

// setRealtime switches the calling OS thread to SCHED_FIFO.
func setRealtime() error {
	attr := unix.SchedAttr{
		Size:     unix.SizeofSchedAttr,
		Policy:   unix.SCHED_FIFO,
		Priority: realtimePriority,
	}

	if err := unix.SchedSetAttr(0, &attr, 0); err != nil {
		return fmt.Errorf("sched_setattr: %w", err)
	}

	return nil
}
