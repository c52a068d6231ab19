package repository

import (
	"errors"

	"github.com/oklog/ulid/v2"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("not found")

// newMessageID returns a ULID. ulid.Make is monotonic within a process, so
// ids created in the same millisecond still sort in creation order.
func newMessageID() string {
	return ulid.Make().String()
}
