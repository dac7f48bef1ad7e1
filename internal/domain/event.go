package domain

import "github.com/google/uuid"

// ObjectType is the small closed enumeration of change-event subjects.
type ObjectType int

const (
	BitstreamObject ObjectType = iota
	MetadataObjectType
)

func (t ObjectType) String() string {
	if t == BitstreamObject {
		return "Bitstream"
	}
	return "Metadata"
}

// ChangeStatus is the small closed enumeration of change-event statuses.
type ChangeStatus int

const (
	Created ChangeStatus = iota
	Updated
)

func (s ChangeStatus) String() string {
	if s == Created {
		return "Created"
	}
	return "Updated"
}

// ChangeEvent is published once per staged object that was successfully
// committed. EntityType is preserved as the constant "CO" even
// for IO metadata updates: a known quirk of the upstream schema that
// downstream consumers may depend on.
type ChangeEvent struct {
	EntityType string
	IoRef      uuid.UUID
	ObjectType ObjectType
	Status     ChangeStatus
	Identifier string
}

// entityTypeConstant is the fixed entityType value downstream
// consumers expect; see the EntityType note on ChangeEvent.
const entityTypeConstant = "CO"

// NewChangeEvent builds a ChangeEvent for a committed DR object.
func NewChangeEvent(obj DRObject, status ChangeStatus) ChangeEvent {
	objType := MetadataObjectType
	if obj.Kind() == FileObjectKind {
		objType = BitstreamObject
	}
	return ChangeEvent{
		EntityType: entityTypeConstant,
		IoRef:      obj.IORef(),
		ObjectType: objType,
		Status:     status,
		Identifier: obj.Ident(),
	}
}
