package host

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// AttrKind is the storage kind of a host attribute
type AttrKind int

const (
	KindString AttrKind = iota
	KindBool
	KindInt
	KindFloat
	KindEnum
	KindMessage
)

// String returns the string representation of the attribute kind
func (k AttrKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindEnum:
		return "enum"
	case KindMessage:
		return "message"
	default:
		return "unknown"
	}
}

// ParseAttrKind converts a string to an AttrKind
func ParseAttrKind(s string) (AttrKind, error) {
	switch s {
	case "string":
		return KindString, nil
	case "bool":
		return KindBool, nil
	case "int":
		return KindInt, nil
	case "float":
		return KindFloat, nil
	case "enum":
		return KindEnum, nil
	case "message":
		return KindMessage, nil
	default:
		return 0, fmt.Errorf("unknown attribute kind: %s", s)
	}
}

// IsLink returns true for kinds whose value is a connection rather than data
func (k AttrKind) IsLink() bool {
	return k == KindMessage
}

// ChangeKind classifies an attribute-changed notification
type ChangeKind int

const (
	ChangeValue ChangeKind = iota
	ChangeConnected
	ChangeDisconnected
)

// AttrChange is delivered to attribute-changed callbacks.
//
// For value changes Value holds the new value. For connection changes Other
// is the plug on the far side of the connection.
type AttrChange struct {
	Kind  ChangeKind
	Plug  Plug
	Other Plug
	Value any
}

// CallbackID identifies a registered host callback
type CallbackID uint64

// SceneEvent identifies a scene lifecycle notification
type SceneEvent int

const (
	SceneAfterOpen SceneEvent = iota
	SceneAfterImport
	SceneAfterNew
)

// String returns the string representation of the scene event
func (e SceneEvent) String() string {
	switch e {
	case SceneAfterOpen:
		return "after_open"
	case SceneAfterImport:
		return "after_import"
	case SceneAfterNew:
		return "after_new"
	default:
		return "unknown"
	}
}

// Host errors
var (
	ErrNodeNotFound     = errors.New("node not found")
	ErrNodeLocked       = errors.New("node is locked")
	ErrReservedName     = errors.New("name is reserved")
	ErrInvalidName      = errors.New("invalid node name")
	ErrAttrNotFound     = errors.New("attribute not found")
	ErrAttrExists       = errors.New("attribute already exists")
	ErrAttrLocked       = errors.New("attribute is locked")
	ErrKindMismatch     = errors.New("value does not match attribute kind")
	ErrNotMulti         = errors.New("attribute is not multi")
	ErrNotConnectable   = errors.New("plugs cannot be connected")
	ErrAlreadyConnected = errors.New("destination already has an incoming connection")
	ErrNotConnected     = errors.New("plugs are not connected")
)

// NodeError attaches the node identity to a host error
type NodeError struct {
	Node uuid.UUID
	Attr string
	Err  error
}

// Error implements the error interface
func (e *NodeError) Error() string {
	if e.Attr != "" {
		return fmt.Sprintf("%s.%s: %v", e.Node, e.Attr, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Node, e.Err)
}

// Unwrap returns the underlying host error
func (e *NodeError) Unwrap() error {
	return e.Err
}
