// Package ownership implements the challenge message a wallet signs to prove
// it may register a star, and the Bitcoin signed-message verifier that checks
// those signatures.
//
// Message format:
//
//	<wallet address>:<unix timestamp>:starRegistry
package ownership

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Tag is the literal third field of every ownership verification message.
const Tag = "starRegistry"

// ErrMalformedMessage is returned by Parse for text that is not a valid
// ownership verification message.
var ErrMalformedMessage = errors.New("malformed ownership verification message")

// Message is a parsed ownership verification message.
type Message struct {
	Address  string
	IssuedAt time.Time
}

// Issue returns a message for address stamped with now, truncated to seconds.
func Issue(address string, now time.Time) Message {
	return Message{Address: address, IssuedAt: time.Unix(now.Unix(), 0)}
}

// Parse parses the string form of a message. The tag field is positional
// only; its content is not checked.
func Parse(text string) (Message, error) {
	parts := strings.Split(text, ":")
	if len(parts) != 3 {
		return Message{}, fmt.Errorf("%w: want <wallet address>:<timestamp>:%s, got %d field(s)",
			ErrMalformedMessage, Tag, len(parts))
	}

	ts, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Message{}, fmt.Errorf("%w: timestamp %q is not an integer", ErrMalformedMessage, parts[1])
	}

	return Message{Address: parts[0], IssuedAt: time.Unix(ts, 0)}, nil
}

// maxAgeSeconds is the largest whole-second count a time.Duration holds.
const maxAgeSeconds = int64(math.MaxInt64 / time.Second)

// Age returns how long before now the message was issued, in whole seconds.
// Gaps beyond the range of time.Duration saturate at its minimum or maximum.
func (m Message) Age(now time.Time) time.Duration {
	n, issued := now.Unix(), m.IssuedAt.Unix()
	switch {
	case issued < 0 && n > math.MaxInt64+issued:
		return math.MaxInt64
	case issued > 0 && n < math.MinInt64+issued:
		return math.MinInt64
	}

	secs := n - issued
	switch {
	case secs > maxAgeSeconds:
		return math.MaxInt64
	case secs < -maxAgeSeconds:
		return math.MinInt64
	}
	return time.Duration(secs) * time.Second
}

// IsOlderThan reports whether strictly more than d has elapsed since the
// message was issued.
func (m Message) IsOlderThan(d time.Duration, now time.Time) bool {
	return m.Age(now) > d
}

// String returns the canonical form accepted by Parse.
func (m Message) String() string {
	return fmt.Sprintf("%s:%d:%s", m.Address, m.IssuedAt.Unix(), Tag)
}
