package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCanonicalText_DistinguishesKind(t *testing.T) {
	ref := uuid.New()
	io := Message{Kind: InformationObjectMessageKind, Ref: ref}
	co := Message{Kind: ContentObjectMessageKind, Ref: ref}

	assert.NotEqual(t, io.CanonicalText(), co.CanonicalText())
	assert.Equal(t, "IO:"+ref.String(), io.CanonicalText())
	assert.Equal(t, "CO:"+ref.String(), co.CanonicalText())
}

func TestCanonicalText_SameRefAndKindMatch(t *testing.T) {
	ref := uuid.New()
	a := Message{Kind: InformationObjectMessageKind, Ref: ref}
	b := Message{Kind: InformationObjectMessageKind, Ref: ref}

	assert.Equal(t, a.CanonicalText(), b.CanonicalText())
}
