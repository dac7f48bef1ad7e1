// Package xip assembles the canonical XIP v7 metadata envelope:
// a root <XIP> element wrapping the entity's upstream fragments in a
// fixed order, separated by a fixed whitespace node. The digest is
// computed over the exact serialized bytes, so the separator and
// element order are load-bearing, not cosmetic.
package xip

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/dpreserve/drreplicator/common/validation"
	"github.com/dpreserve/drreplicator/internal/domain"
)

const (
	xipNamespace = "http://preservica.com/XIP/v7.0"
	separator    = "\n          " // newline + ten spaces
)

// Composer serializes EntityMetadata into a validated, digested XML
// document.
type Composer struct {
	validator validation.Validator
}

// New builds a Composer backed by the given schema validator.
func New(validator validation.Validator) *Composer {
	return &Composer{validator: validator}
}

// Compose serializes m in canonical child order, validates the result, and
// returns the bytes alongside their hex SHA-256 digest.
func (c *Composer) Compose(ctx context.Context, m domain.EntityMetadata) (xmlBytes []byte, digestHex string, err error) {
	var buf bytes.Buffer
	buf.WriteString(`<XIP xmlns="` + xipNamespace + `">`)

	children := collectChildren(m)
	for _, child := range children {
		buf.WriteString(separator)
		buf.Write(child)
	}
	if len(children) > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString(`</XIP>`)

	out := buf.Bytes()

	if err := c.validator.Validate(ctx, out); err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrSchema, err)
	}

	sum := sha256.Sum256(out)
	return out, hex.EncodeToString(sum[:]), nil
}

// collectChildren orders the entity node, variant-specific nodes, then
// the common fragments, in that fixed order.
func collectChildren(m domain.EntityMetadata) [][]byte {
	var children [][]byte

	if m.IsIO {
		children = append(children, []byte(m.IO.EntityNode))
		for _, rep := range m.IO.Representations {
			children = append(children, []byte(rep))
		}
	} else {
		children = append(children, []byte(m.CO.EntityNode))
		for _, gen := range m.CO.Generations {
			children = append(children, []byte(gen))
		}
		for _, bs := range m.CO.Bitstreams {
			children = append(children, []byte(bs))
		}
	}

	common := m.Common()
	for _, id := range common.Identifiers {
		children = append(children, []byte(id.Raw))
	}
	for _, link := range common.Links {
		children = append(children, []byte(link))
	}
	for _, node := range common.MetadataNodes {
		children = append(children, []byte(node))
	}
	for _, action := range common.EventActions {
		children = append(children, []byte(action))
	}

	return children
}
