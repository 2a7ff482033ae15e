package metanode

import "errors"

// Metanode errors
var (
	// ErrNotMetanode is returned when a node carries no type tag
	ErrNotMetanode = errors.New("node is not a metanode")

	// ErrInvalidType is returned when a node's type tag is not registered
	ErrInvalidType = errors.New("invalid meta type")

	// ErrTypeMismatch is returned when a node is wrapped as the wrong type
	ErrTypeMismatch = errors.New("meta type mismatch")

	// ErrUnregisteredAttr is returned for attributes missing from the schema
	ErrUnregisteredAttr = errors.New("unregistered attribute")

	// ErrNotSequence is returned when a multi attribute is set with a non-sequence
	ErrNotSequence = errors.New("multi attribute requires a sequence")

	// ErrBadLink is returned when a link value does not identify a live node
	ErrBadLink = errors.New("invalid link target")
)
