package payment

import "github.com/oklog/ulid/v2"

// NewCorrelationID returns a fresh, time-sortable id for one checkout attempt.
// Resubmitting a form always produces a new id and therefore a new charge.
func NewCorrelationID() string {
	return ulid.Make().String()
}
