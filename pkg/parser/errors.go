package parser

import "fmt"

// ConfigParseError is returned when a job configuration document cannot be
// read or translated. No partially parsed document is ever returned with it.
type ConfigParseError struct {
	Path string
	Err  error
}

func NewConfigParseError(path string, err error) ConfigParseError {
	return ConfigParseError{Path: path, Err: err}
}

func (e ConfigParseError) Error() string {
	return fmt.Sprintf("failed to parse job configuration %s: %s", e.Path, e.Err)
}

func (e ConfigParseError) Unwrap() error {
	return e.Err
}
