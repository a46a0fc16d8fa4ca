package bot

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseTitleArg resolves a command argument against the numbered list
// names. The argument is either a title name, matched exactly and then
// case-insensitively, or a 1-based position in names.
func ParseTitleArg(args string, names []string) (string, error) {
	s := strings.TrimSpace(args)
	if s == "" {
		return "", fmt.Errorf("a title name or number is required")
	}

	for _, n := range names {
		if n == s {
			return n, nil
		}
	}

	if pos, err := strconv.Atoi(s); err == nil {
		if pos < 1 || pos > len(names) {
			return "", fmt.Errorf("number must be between 1 and %d", len(names))
		}
		return names[pos-1], nil
	}

	for _, n := range names {
		if strings.EqualFold(n, s) {
			return n, nil
		}
	}
	return "", fmt.Errorf("unknown title %q", s)
}
