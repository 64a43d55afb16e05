package stats

type statsError string

var _ error = statsError("")

func (err statsError) Error() string {
	return string(err)
}

const (
	ErrInvalidFile = statsError("invalid stats file")
	ErrBusy        = statsError("stats file is being rewritten")
	ErrClosed      = statsError("stats file is closed")
)
