package delta

import "errors"

var (
	// ErrEmptyProducerSet is a configuration error. A network without
	// authorized producers cannot make progress.
	ErrEmptyProducerSet = errors.New("empty producer set")

	// ErrDuplicateProducer indicates that the same producer ID appears more
	// than once in the authorized producer set.
	ErrDuplicateProducer = errors.New("duplicate producer")

	// ErrNotProducer is returned by the Builder of a node that is not part of
	// the authorized producer set.
	ErrNotProducer = errors.New("node is not an authorized producer")

	// ErrMalformedHash is returned when a hash does not have the length of the
	// configured hash algorithm.
	ErrMalformedHash = errors.New("malformed hash")
)
