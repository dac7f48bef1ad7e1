// Package domain holds the core data types shared across the
// reconciliation pipeline: entity references, upstream metadata
// fragments, and the DR Objects the pipeline stages and commits.
package domain

import (
	"strconv"

	"github.com/google/uuid"
)

// EntityKind distinguishes the two logical entity types the replicator
// understands. It is a closed enumeration; there is no third kind.
type EntityKind int

const (
	InformationObject EntityKind = iota
	ContentObject
)

func (k EntityKind) String() string {
	switch k {
	case InformationObject:
		return "IO"
	case ContentObject:
		return "CO"
	default:
		return "unknown"
	}
}

// RepresentationType is one of Preservation or Access.
type RepresentationType int

const (
	Preservation RepresentationType = iota
	Access
)

func (t RepresentationType) String() string {
	switch t {
	case Preservation:
		return "Preservation"
	case Access:
		return "Access"
	default:
		return "unknown"
	}
}

// GenerationType distinguishes an original bitstream from a derived one.
type GenerationType int

const (
	Original GenerationType = iota
	Derived
)

func (t GenerationType) String() string {
	switch t {
	case Original:
		return "Original"
	case Derived:
		return "Derived"
	default:
		return "unknown"
	}
}

func (t GenerationType) lower() string {
	switch t {
	case Original:
		return "original"
	case Derived:
		return "derived"
	default:
		return "unknown"
	}
}

// Lower returns the destination-path-safe lowercase form used when
// building a FileObject's path segment.
func (t GenerationType) Lower() string { return t.lower() }

// Entity identifies a logical archival entity and, for Content Objects,
// the parent Information Object that owns it.
type Entity struct {
	Ref    uuid.UUID
	Kind   EntityKind
	Parent *uuid.UUID // set only for ContentObject entities
}

// Identifier is a single (Type, Value) pair from an upstream identifiers
// fragment. SourceID extraction looks for Type == "SourceID".
type Identifier struct {
	Type  string
	Value string
}

// SourceIDType is the well-known identifier type used to derive the OCFL
// object id for IO metadata.
const SourceIDType = "SourceID"

// BitstreamInfo is the per-bitstream payload descriptor fetched from the
// upstream entity client.
type BitstreamInfo struct {
	Name              string // original filename, embeds the bitstream UUID
	Fixity            string // hex SHA-256 as declared upstream
	URL               string // fetch location
	GenerationType    GenerationType
	GenerationVersion int // 1-based
	ParentRef         uuid.UUID
}

// RepresentationGroup names a (type, index) pair a Content Object may
// belong to inside its parent Information Object.
type RepresentationGroup struct {
	Type  RepresentationType
	Index int
}

// String renders the group as "{Type}_{Index}", e.g. "Preservation_1".
func (g RepresentationGroup) String() string {
	return g.Type.String() + "_" + strconv.Itoa(g.Index)
}
