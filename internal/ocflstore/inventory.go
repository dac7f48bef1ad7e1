package ocflstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const inventoryFilename = "inventory.json"
const ocflSpecVersion = "https://ocfl.io/1.1/spec/#inventory"
const namasteContent = "ocfl_object_1.1"

// inventory mirrors the OCFL inventory.json shape: a content-addressed
// manifest (digest -> physical content paths, relative to the object
// root) plus one state map per version (digest -> logical paths present
// at that version). This is the standard OCFL layout, not something
// specific to this codebase.
type inventory struct {
	ID              string                      `json:"id"`
	Type            string                      `json:"type"`
	DigestAlgorithm string                      `json:"digestAlgorithm"`
	Head            string                      `json:"head"`
	Manifest        map[string][]string         `json:"manifest"`
	Versions        map[string]*inventoryVersion `json:"versions"`
}

type inventoryVersion struct {
	Created string              `json:"created"`
	Message string              `json:"message,omitempty"`
	State   map[string][]string `json:"state"`
}

func newInventory(id string) *inventory {
	return &inventory{
		ID:              id,
		Type:            ocflSpecVersion,
		DigestAlgorithm: "sha256",
		Manifest:        map[string][]string{},
		Versions:        map[string]*inventoryVersion{},
	}
}

// headState returns the logical-path -> digest view of the HEAD
// version, or an empty map if the object has no versions yet.
func (inv *inventory) headState() map[string]string {
	out := map[string]string{}
	if inv.Head == "" {
		return out
	}
	v, ok := inv.Versions[inv.Head]
	if !ok {
		return out
	}
	for digest, paths := range v.State {
		for _, p := range paths {
			out[p] = digest
		}
	}
	return out
}

func (inv *inventory) headVersionNumber() int {
	if inv.Head == "" {
		return 0
	}
	n := 0
	fmt.Sscanf(inv.Head, "v%d", &n)
	return n
}

func loadInventory(path string) (*inventory, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read inventory %s: %w", path, err)
	}
	var inv inventory
	if err := json.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("parse inventory %s: %w", path, err)
	}
	return &inv, nil
}

func writeInventory(dir string, inv *inventory) error {
	data, err := json.MarshalIndent(inv, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal inventory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return os.WriteFile(filepath.Join(dir, inventoryFilename), data, 0o644)
}

func writeNamaste(objectRoot string) error {
	return os.WriteFile(filepath.Join(objectRoot, "0="+namasteContent), []byte(namasteContent+"\n"), 0o644)
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}
