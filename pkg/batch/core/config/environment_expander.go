package config

import "os"

// EnvironmentExpander expands environment variable placeholders within a
// byte slice.
type EnvironmentExpander interface {
	// Expand replaces ${VAR} or $VAR placeholders in input and returns the
	// expanded bytes.
	Expand(input []byte) ([]byte, error)
}

// OsEnvironmentExpander expands placeholders using os.ExpandEnv; unset
// variables expand to the empty string.
type OsEnvironmentExpander struct{}

// NewOsEnvironmentExpander returns an OsEnvironmentExpander.
func NewOsEnvironmentExpander() *OsEnvironmentExpander {
	return &OsEnvironmentExpander{}
}

func (e *OsEnvironmentExpander) Expand(input []byte) ([]byte, error) {
	return []byte(os.ExpandEnv(string(input))), nil
}
