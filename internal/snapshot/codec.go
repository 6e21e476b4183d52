package snapshot

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"golang.org/x/mod/semver"

	"github.com/pulsedev/retrace/internal/session"
)

// exportKind distinguishes capture exports from session exports.
const exportKind = "captures"

type envelope struct {
	FormatVersion string     `json:"format_version"`
	Kind          string     `json:"kind"`
	Captures      []*Capture `json:"captures"`
}

// Export serializes the given captures to the versioned JSON export format.
// Locals order and object ids are written verbatim: an imported capture
// diffs identically to the original.
func Export(captures []*Capture) ([]byte, error) {
	data, err := json.MarshalIndent(envelope{
		FormatVersion: session.FormatVersion,
		Kind:          exportKind,
		Captures:      captures,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export captures: %w", err)
	}
	return data, nil
}

// ExportAll exports every capture the debugger holds, in capture order.
func (d *Debugger) ExportAll() ([]byte, error) {
	return Export(d.List())
}

// Import parses a capture export and returns the captures with their
// original ids. The payload is sniffed before decoding, mirroring the
// session importer.
func Import(data []byte) ([]*Capture, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("import: payload is not valid JSON")
	}
	kind := gjson.GetBytes(data, "kind").String()
	if kind != exportKind {
		return nil, fmt.Errorf("import: payload kind %q is not a capture export", kind)
	}
	version := gjson.GetBytes(data, "format_version").String()
	if !semver.IsValid(version) {
		return nil, fmt.Errorf("import: invalid format_version %q", version)
	}
	if semver.Major(version) != semver.Major(session.FormatVersion) {
		return nil, fmt.Errorf("import: format_version %s is incompatible with %s", version, session.FormatVersion)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}
	return env.Captures, nil
}

// ImportInto parses a capture export and adds every capture to the
// debugger, keeping original ids so cross-machine comparisons stay stable.
func (d *Debugger) ImportInto(data []byte) ([]*Capture, error) {
	captures, err := Import(data)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	for _, c := range captures {
		if _, exists := d.captures[c.ID]; exists {
			continue
		}
		d.captures[c.ID] = c
		d.order = append(d.order, c.ID)
	}
	d.mu.Unlock()
	return captures, nil
}
