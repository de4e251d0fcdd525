package record

import "errors"

// Domain errors for the record package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, record.ErrNotBound) {
//	    // record failed to bind at start-up
//	}
var (
	// ErrRecordNotFound is returned when a record name does not exist.
	ErrRecordNotFound = errors.New("record: not found")

	// ErrRecordExists is returned when adding a record whose name is taken.
	ErrRecordExists = errors.New("record: already exists")

	// ErrInvalidRecord is returned when record configuration is invalid.
	ErrInvalidRecord = errors.New("record: invalid")

	// ErrNotBound is returned when processing or writing a record whose link
	// has not been resolved.
	ErrNotBound = errors.New("record: not bound")

	// ErrNotOutput is returned when writing to an input record.
	ErrNotOutput = errors.New("record: not an output")

	// ErrReadFailed is returned when reading the register fails.
	ErrReadFailed = errors.New("record: register read failed")

	// ErrWriteFailed is returned when writing the register fails.
	ErrWriteFailed = errors.New("record: register write failed")
)
