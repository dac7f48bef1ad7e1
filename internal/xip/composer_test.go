package xip

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpreserve/drreplicator/internal/domain"
)

type stubValidator struct{ err error }

func (v stubValidator) Validate(ctx context.Context, xmlBytes []byte) error { return v.err }

func ioMetadata() domain.EntityMetadata {
	return domain.EntityMetadata{
		IsIO: true,
		IO: &domain.IoMetadata{
			EntityNode:      domain.RawElement("<InformationObject/>"),
			Representations: []domain.RawElement{domain.RawElement("<Representation>Preservation_1</Representation>")},
			Common: domain.CommonFragments{
				Identifiers: []domain.IdentifierNode{
					{Identifier: domain.Identifier{Type: "SourceID", Value: "src-1"}, Raw: domain.RawElement("<Identifier>src-1</Identifier>")},
				},
			},
		},
	}
}

func TestCompose_OrdersChildrenAndSeparates(t *testing.T) {
	c := New(stubValidator{})
	out, digest, err := c.Compose(context.Background(), ioMetadata())
	require.NoError(t, err)

	want := `<XIP xmlns="http://preservica.com/XIP/v7.0">` +
		"\n          " + `<InformationObject/>` +
		"\n          " + `<Representation>Preservation_1</Representation>` +
		"\n          " + `<Identifier>src-1</Identifier>` +
		"\n</XIP>"
	assert.Equal(t, want, string(out))

	sum := sha256.Sum256(out)
	assert.Equal(t, hex.EncodeToString(sum[:]), digest)
}

func TestCompose_Deterministic(t *testing.T) {
	c := New(stubValidator{})
	out1, digest1, err := c.Compose(context.Background(), ioMetadata())
	require.NoError(t, err)
	out2, digest2, err := c.Compose(context.Background(), ioMetadata())
	require.NoError(t, err)

	assert.Equal(t, out1, out2)
	assert.Equal(t, digest1, digest2)
}

func TestCompose_ValidationFailureWrapsErrSchema(t *testing.T) {
	c := New(stubValidator{err: errors.New("bad schema")})
	_, _, err := c.Compose(context.Background(), ioMetadata())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSchema)
}

func TestCompose_COVariantOrdering(t *testing.T) {
	m := domain.EntityMetadata{
		IsIO: false,
		CO: &domain.CoMetadata{
			EntityNode:  domain.RawElement("<ContentObject/>"),
			Generations: []domain.RawElement{domain.RawElement("<Generation>1</Generation>")},
			Bitstreams:  []domain.RawElement{domain.RawElement("<Bitstream>a.jpg</Bitstream>")},
		},
	}
	c := New(stubValidator{})
	out, _, err := c.Compose(context.Background(), m)
	require.NoError(t, err)

	want := `<XIP xmlns="http://preservica.com/XIP/v7.0">` +
		"\n          " + `<ContentObject/>` +
		"\n          " + `<Generation>1</Generation>` +
		"\n          " + `<Bitstream>a.jpg</Bitstream>` +
		"\n</XIP>"
	assert.Equal(t, want, string(out))
}
