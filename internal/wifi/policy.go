package wifi

import (
	"sort"
	"strings"
	"time"

	"github.com/muurk/apsta/internal/radio"
)

// Reconnect defaults.
const (
	DefaultMaxAttempts  uint32 = 5
	DefaultBackoffDelay        = 5 * time.Second
)

// ReasonSet is a set of disconnect reasons.
type ReasonSet map[radio.Reason]struct{}

// NewReasonSet builds a set from reasons.
func NewReasonSet(reasons ...radio.Reason) ReasonSet {
	s := make(ReasonSet, len(reasons))
	for _, r := range reasons {
		s[r] = struct{}{}
	}
	return s
}

// DefaultRetryableReasons returns the reasons treated as transient by
// default: the access point was not found, dropped us, or timed us out.
func DefaultRetryableReasons() ReasonSet {
	return NewReasonSet(
		radio.ReasonNoAPFound,
		radio.ReasonAssocLeave,
		radio.ReasonAuthExpire,
		radio.ReasonUnspecified,
		radio.ReasonAuthLeave,
	)
}

// Contains reports whether r is in the set.
func (s ReasonSet) Contains(r radio.Reason) bool {
	_, ok := s[r]
	return ok
}

// Reasons returns the members sorted by code.
func (s ReasonSet) Reasons() []radio.Reason {
	out := make([]radio.Reason, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s ReasonSet) String() string {
	labels := make([]string, 0, len(s))
	for _, r := range s.Reasons() {
		labels = append(labels, r.String())
	}
	return strings.Join(labels, ",")
}

func (s ReasonSet) clone() ReasonSet {
	out := make(ReasonSet, len(s))
	for r := range s {
		out[r] = struct{}{}
	}
	return out
}

// Policy controls automatic reconnection of the station role.
type Policy struct {
	// Enabled gates all reconnect attempts. The manager turns it on before a
	// station attempt and off before any deliberate teardown.
	Enabled bool

	// MaxAttempts is the number of consecutive reconnects allowed per
	// session. The counter resets on every successful association.
	MaxAttempts uint32

	// BackoffDelay is the wait before each reconnect.
	BackoffDelay time.Duration

	// RetryableReasons are the disconnect reasons considered transient.
	RetryableReasons ReasonSet
}

// DefaultPolicy returns a disabled policy with five attempts, a five second
// backoff and the default retryable reasons.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:      DefaultMaxAttempts,
		BackoffDelay:     DefaultBackoffDelay,
		RetryableReasons: DefaultRetryableReasons(),
	}
}

// Retryable reports whether r is a transient reason under this policy.
func (p Policy) Retryable(r radio.Reason) bool {
	return p.RetryableReasons.Contains(r)
}

func (p Policy) isZero() bool {
	return p.MaxAttempts == 0 && p.BackoffDelay == 0 && p.RetryableReasons == nil
}

func (p Policy) clone() Policy {
	p.RetryableReasons = p.RetryableReasons.clone()
	return p
}
