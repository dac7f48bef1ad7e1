package domain

import "github.com/google/uuid"

// DRObject is the unit of work handed to the local store: a closed sum
// type of FileObject and MetadataObject. Implementations are the
// only two variants; callers switch on Kind rather than type-asserting
// an open interface.
type DRObjectKind int

const (
	FileObjectKind DRObjectKind = iota
	MetadataObjectKind
)

// DRObject is implemented by *FileObject and *MetadataObject.
type DRObject interface {
	Kind() DRObjectKind
	IORef() uuid.UUID
	Destination() string
	ExpectedDigest() string // hex SHA-256 the committed bytes must match
	Ident() string          // string-rendered identifier for events
}

// FileObject is a bitstream payload to be fetched from the upstream URL
// and committed verbatim.
type FileObject struct {
	IoRef           uuid.UUID
	Filename        string
	Fixity          string // expected hex SHA-256
	URL             string
	DestinationPath string
	Identifier      uuid.UUID // the bitstream UUID parsed from Filename
}

func (f *FileObject) Kind() DRObjectKind    { return FileObjectKind }
func (f *FileObject) IORef() uuid.UUID      { return f.IoRef }
func (f *FileObject) Destination() string   { return f.DestinationPath }
func (f *FileObject) ExpectedDigest() string { return f.Fixity }
func (f *FileObject) Ident() string         { return f.Identifier.String() }

// MetadataObject is a composed XML envelope to be written and committed.
type MetadataObject struct {
	IoRef                       uuid.UUID
	OptionalRepresentationGroup *RepresentationGroup
	Filename                    string
	Digest                      string // hex SHA-256 of XMLBytes
	XMLBytes                    []byte
	DestinationPath             string
	Identifier                  string // SourceID (IO) or bitstream UUID (CO)
}

func (m *MetadataObject) Kind() DRObjectKind    { return MetadataObjectKind }
func (m *MetadataObject) IORef() uuid.UUID      { return m.IoRef }
func (m *MetadataObject) Destination() string   { return m.DestinationPath }
func (m *MetadataObject) ExpectedDigest() string { return m.Digest }
func (m *MetadataObject) Ident() string         { return m.Identifier }

// StagedWrite is the tuple produced by the staging transfer stage and
// consumed by the commit stage.
type StagedWrite struct {
	Object          DRObject
	StagingPath     string
	DestinationPath string
}
