// Package pathplan derives the deterministic destination path of every
// DR Object inside its owning OCFL object. Paths are
// forward-slash-joined; each optional segment is present only when
// defined, so two runs over the same entity graph produce byte-
// identical paths.
package pathplan

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dpreserve/drreplicator/internal/domain"
)

const (
	ioMetadataFilename = "IO_Metadata.xml"
	coMetadataFilename = "CO_Metadata.xml"
)

// IOMetadataPath returns the destination path of an IO's metadata
// object: "{ioRef}/IO_Metadata.xml".
func IOMetadataPath(ioRef uuid.UUID) string {
	return join(ioRef.String(), ioMetadataFilename)
}

// COMetadataPath returns the destination path of a CO's metadata
// object: "{ioRef}[/{repGroup}]/{coRef}/CO_Metadata.xml".
func COMetadataPath(ioRef uuid.UUID, group *domain.RepresentationGroup, coRef uuid.UUID) string {
	return join(ioRef.String(), groupSegment(group), coRef.String(), coMetadataFilename)
}

// BitstreamPath returns the destination path of a CO bitstream:
// "{ioRef}[/{repGroup}]/{coRef}/{genType.lower}/g{genVersion}/{name}".
func BitstreamPath(ioRef uuid.UUID, group *domain.RepresentationGroup, coRef uuid.UUID, genType domain.GenerationType, genVersion int, name string) string {
	return join(
		ioRef.String(),
		groupSegment(group),
		coRef.String(),
		genType.Lower(),
		fmt.Sprintf("g%d", genVersion),
		name,
	)
}

func groupSegment(group *domain.RepresentationGroup) string {
	if group == nil {
		return ""
	}
	return group.String()
}

// join concatenates non-empty segments with "/".
func join(segments ...string) string {
	var kept []string
	for _, s := range segments {
		if s != "" {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, "/")
}
