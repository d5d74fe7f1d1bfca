package credstore

import "fmt"

type (
	ConfigNotFound struct {
		Path string
	}

	MalformedConfig struct {
		Path  string
		Cause error
	}
)

func (c ConfigNotFound) Error() string {
	return fmt.Sprintf("credential file %v not found", c.Path)
}

func (m MalformedConfig) Error() string {
	return fmt.Sprintf("credential file %v is not valid yaml: %v", m.Path, m.Cause)
}

func (m MalformedConfig) Unwrap() error { return m.Cause }
