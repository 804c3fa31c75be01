package gitx

import (
	"fmt"
	"strings"
)

// SHA is a full 40 character hexadecimal commit identifier.
type SHA string

// NullSHA is the all-zero SHA git uses to say a ref does not exist.
const NullSHA SHA = "0000000000000000000000000000000000000000"

// SHALength is the length of a hex encoded SHA-1.
const SHALength = 40

// ParseSHA validates s and returns it as a lowercase SHA.
func ParseSHA(s string) (SHA, error) {
	if len(s) != SHALength {
		return "", fmt.Errorf("%w: %q has length %d, want %d", ErrMalformedSHA, s, len(s), SHALength)
	}
	s = strings.ToLower(s)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", fmt.Errorf("%w: %q contains %q", ErrMalformedSHA, s, c)
		}
	}
	return SHA(s), nil
}

// Validate reports whether the SHA is well formed.
func (s SHA) Validate() error {
	_, err := ParseSHA(string(s))
	return err
}

// IsNull reports whether s is the NullSHA.
func (s SHA) IsNull() bool {
	return s == NullSHA
}

// Short returns the first 8 characters, for messages.
func (s SHA) Short() string {
	if len(s) < 8 {
		return string(s)
	}
	return string(s[:8])
}

func (s SHA) String() string {
	return string(s)
}

// ValidateRefName checks that ref is a fully qualified ref name that is safe
// to pass to git as a positional argument.
func ValidateRefName(ref string) error {
	if !strings.HasPrefix(ref, "refs/") {
		return fmt.Errorf("%w: %q must start with refs/", ErrInvalidRef, ref)
	}
	if strings.HasSuffix(ref, "/") || strings.HasSuffix(ref, ".lock") {
		return fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	if strings.Contains(ref, "..") || strings.Contains(ref, "//") || strings.Contains(ref, "@{") {
		return fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	for _, r := range ref {
		if r <= ' ' || r == 0x7f {
			return fmt.Errorf("%w: %q contains whitespace or control characters", ErrInvalidRef, ref)
		}
		switch r {
		case '~', '^', ':', '?', '*', '[', '\\':
			return fmt.Errorf("%w: %q contains %q", ErrInvalidRef, ref, r)
		}
	}
	return nil
}
