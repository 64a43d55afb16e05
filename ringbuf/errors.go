package ringbuf

type ringError string

var _ error = ringError("")

func (err ringError) Error() string {
	return string(err)
}

const (
	ErrAllocation      = ringError("ring buffer allocation failed")
	ErrInvalidCapacity = ringError("capacity must be a power of two and a multiple of the page size")
)
