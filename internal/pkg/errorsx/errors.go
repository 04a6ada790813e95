// Package errorsx classifies task errors so the dispatcher knows
// whether a failed attempt is worth retrying.
package errorsx

import "errors"

// Sentinel markers joined onto task errors. Fetch operations tag
// client errors (4xx other than 429) permanent; everything else is
// treated as retryable by default.
var (
	Retryable = errors.New("retryable")
	Permanent = errors.New("permanent")
)

// WrapRetryable marks err as worth retrying.
func WrapRetryable(err error) error {
	if err == nil {
		return nil
	}
	return errors.Join(Retryable, err)
}

// WrapPermanent marks err as final. The dispatcher fails the task
// immediately instead of consuming retry attempts.
func WrapPermanent(err error) error {
	if err == nil {
		return nil
	}
	return errors.Join(Permanent, err)
}

// IsRetryable reports whether err carries the retryable marker.
func IsRetryable(err error) bool {
	return errors.Is(err, Retryable)
}

// IsPermanent reports whether err carries the permanent marker.
func IsPermanent(err error) bool {
	return errors.Is(err, Permanent)
}
