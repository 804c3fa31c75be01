package events

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ParseHookInput reads the "<old> <new> <ref>" lines git writes to the stdin
// of a post-receive hook. Blank lines are ignored. A malformed line fails the
// whole input.
func ParseHookInput(r io.Reader) ([]Event, error) {
	var events []Event
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, fmt.Errorf("%w: line %d: expected \"<old> <new> <ref>\", got %q", ErrMalformedInput, lineNo, line)
		}
		ev, err := New(fields[2], fields[0], fields[1])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrMalformedInput, lineNo, err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read hook input: %w", err)
	}
	return events, nil
}
