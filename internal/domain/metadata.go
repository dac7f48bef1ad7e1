package domain

// RawElement is one already-serialized XML element exactly as returned
// by the upstream entity client (e.g. "<Representation>...</Representation>").
// The composer never re-parses these; it only re-emits them, in order,
// separated by the fixed whitespace separator.
type RawElement []byte

// IdentifierNode is an <Identifier> element: the composer needs the
// parsed (Type, Value) pair to extract SourceID, but must still
// re-emit the exact upstream bytes for digest fidelity.
type IdentifierNode struct {
	Identifier
	Raw RawElement
}

// CommonFragments are the upstream-provided sub-trees shared by both IO
// and CO metadata variants, in emission order: identifiers,
// links, metadataNodes, eventActions.
type CommonFragments struct {
	Identifiers   []IdentifierNode
	Links         []RawElement
	MetadataNodes []RawElement
	EventActions  []RawElement
}

// EntityMetadata is a closed sum type: exactly one of IO or CO is
// populated, discriminated by IsIO.
type EntityMetadata struct {
	IsIO bool
	IO   *IoMetadata
	CO   *CoMetadata
}

// IoMetadata is the metadata variant for Information Objects.
type IoMetadata struct {
	EntityNode      RawElement
	Representations []RawElement
	Common          CommonFragments
}

// CoMetadata is the metadata variant for Content Objects.
type CoMetadata struct {
	EntityNode  RawElement
	Generations []RawElement
	Bitstreams  []RawElement
	Common      CommonFragments
}

// Common returns the CommonFragments regardless of variant.
func (m *EntityMetadata) Common() CommonFragments {
	if m.IsIO {
		return m.IO.Common
	}
	return m.CO.Common
}

// SourceID returns the value of the first identifier with Type ==
// SourceIDType, and whether one was found. Absence is surfaced by the
// caller as an InvariantError.
func (m *EntityMetadata) SourceID() (string, bool) {
	for _, id := range m.Common().Identifiers {
		if id.Type == SourceIDType {
			return id.Value, true
		}
	}
	return "", false
}
