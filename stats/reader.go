package stats

import (
	"sync"
	"time"

	"github.com/webbmaffian/go-sigroute/config"
	"github.com/webbmaffian/go-sigroute/handoff"
)

type ChannelStat struct {
	Name         string `json:"name"`
	Capacity     uint64 `json:"capacity"`
	Available    uint64 `json:"available"`
	BytesWritten uint64 `json:"bytesWritten"`
	BytesRead    uint64 `json:"bytesRead"`
	Closed       bool   `json:"closed"`
}

// Fill returns the buffered share of the channel, 0 to 1.
func (s ChannelStat) Fill() float64 {
	if s.Capacity == 0 {
		return 0
	}

	return float64(s.Available) / float64(s.Capacity)
}

type Snapshot struct {
	PID      int           `json:"pid"`
	Mode     string        `json:"mode"`
	Handoff  string        `json:"handoff"`
	Updated  time.Time     `json:"updated"`
	Channels []ChannelStat `json:"channels"`
}

// Reader maps a stats file read-only.
type Reader struct {
	mu   sync.Mutex
	file *file
}

func Open(path string) (r *Reader, err error) {
	f, err := open(path)

	if err != nil {
		return
	}

	return &Reader{file: f}, nil
}

func (r *Reader) Snapshot() (s Snapshot, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f := r.file

	if f.closed() {
		return s, ErrClosed
	}

	err = f.read(func() {
		s = Snapshot{
			PID:      int(f.head.pid),
			Mode:     config.OperatingMode(f.head.mode).String(),
			Handoff:  handoff.State(f.head.handoff).String(),
			Updated:  time.Unix(0, f.head.updated),
			Channels: make([]ChannelStat, f.count()),
		}

		for i := range s.Channels {
			rec := f.record(i)

			s.Channels[i] = ChannelStat{
				Name:         rec.nameString(),
				Capacity:     rec.capacity,
				Available:    rec.available,
				BytesWritten: rec.bytesWritten,
				BytesRead:    rec.bytesRead,
				Closed:       rec.closed != 0,
			}
		}
	})

	return
}

func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.file.close()
}
