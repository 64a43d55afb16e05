package registry

type registryError string

var _ error = registryError("")

func (err registryError) Error() string {
	return string(err)
}

const (
	ErrNotInitialized     = registryError("channel registry is not initialized")
	ErrAlreadyInitialized = registryError("channel registry is already initialized")
	ErrUnknownChannel     = registryError("unknown channel")
)
