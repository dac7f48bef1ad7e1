package logger

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dpreserve/drreplicator/internal/domain"
)

func TestErrorKind_MapsWrappedSentinels(t *testing.T) {
	tests := []struct {
		err  error
		kind string
	}{
		{fmt.Errorf("%w: bad payload", domain.ErrDecode), "decode"},
		{fmt.Errorf("%w: GET /entities: status 502", domain.ErrUpstream), "upstream"},
		{fmt.Errorf("%w: envelope rejected", domain.ErrSchema), "schema"},
		{fmt.Errorf("%w: missing SourceID", domain.ErrInvariant), "invariant"},
		{fmt.Errorf("%w: seal version", domain.ErrStorage), "storage"},
		{fmt.Errorf("%w: publish", domain.ErrNotify), "notify"},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			kind, ok := errorKind("error", tt.err)
			assert.True(t, ok)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestErrorKind_UnrecognizedErrorHasNoKind(t *testing.T) {
	_, ok := errorKind("error", errors.New("plain failure"))
	assert.False(t, ok)
}

func TestErrorKind_NoErrorAmongArgs(t *testing.T) {
	_, ok := errorKind("count", 3, "path", "a/b")
	assert.False(t, ok)
}
