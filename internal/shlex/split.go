// Package shlex tokenizes compilation-database "command" strings the
// way a POSIX shell would: single quotes with no
// interpretation inside them, double quotes where backslash escapes a
// single character, and backslash escapes outside any quote.
package shlex

import (
	"fmt"

	googleshlex "github.com/google/shlex"
)

// Split tokenizes command, collapsing consecutive whitespace outside
// quotes and treating quoting/escaping as described above.
func Split(command string) ([]string, error) {
	tokens, err := googleshlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("splitting compile command: %w", err)
	}
	return tokens, nil
}
