// Package events turns the inputs that announce ref updates into Events:
// the stdin of a post-receive hook and the JSON body of a push webhook.
//
// Parsers return either every event of an input or none of them.
package events

import (
	"errors"
	"fmt"

	"github.com/danieljhkim/mirrorsync/internal/gitx"
)

// ErrMalformedInput is returned for hook input or payloads that cannot be
// parsed completely.
var ErrMalformedInput = errors.New("malformed event input")

// Event is one reported ref update.
type Event struct {
	Ref    string   `json:"ref"`
	OldSHA gitx.SHA `json:"old"`
	NewSHA gitx.SHA `json:"new"`

	// MirrorURLs lists the URLs the reporting mirror is known by. It is
	// empty for events from the local hook.
	MirrorURLs []string `json:"mirror_urls,omitempty"`
}

// New validates ref and the two SHAs into an Event. SHAs are lowercased.
func New(ref, oldSHA, newSHA string) (Event, error) {
	if err := gitx.ValidateRefName(ref); err != nil {
		return Event{}, err
	}
	o, err := gitx.ParseSHA(oldSHA)
	if err != nil {
		return Event{}, fmt.Errorf("old: %w", err)
	}
	n, err := gitx.ParseSHA(newSHA)
	if err != nil {
		return Event{}, fmt.Errorf("new: %w", err)
	}
	return Event{Ref: ref, OldSHA: o, NewSHA: n}, nil
}
