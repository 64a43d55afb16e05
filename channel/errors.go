package channel

type channelError string

var _ error = channelError("")

func (err channelError) Error() string {
	return string(err)
}

const (
	ErrClosed   = channelError("channel is closed")
	ErrTooLarge = channelError("transfer exceeds channel capacity")
)
