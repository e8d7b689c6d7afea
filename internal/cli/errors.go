package cli

import "fmt"

type invalidIDError struct {
	kind string
	arg  string
}

func (e invalidIDError) Error() string {
	return fmt.Sprintf("invalid %s id: %q", e.kind, e.arg)
}

type configLoadError struct {
	err error
}

func (e *configLoadError) Error() string { return "load config: " + e.err.Error() }

func (e *configLoadError) Unwrap() error { return e.err }

// IsConfigError reports whether err came from loading configuration.
func IsConfigError(err error) bool {
	_, ok := err.(*configLoadError)
	return ok
}
