package config

type configError string

var _ error = configError("")

func (err configError) Error() string {
	return string(err)
}

const ErrInvalid = configError("invalid configuration")
