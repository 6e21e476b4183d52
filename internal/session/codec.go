package session

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"golang.org/x/mod/semver"
)

// FormatVersion is the export format written by this build. Imports accept
// any payload with the same major version.
const FormatVersion = "v1.0.0"

// exportKind distinguishes session exports from other retrace payloads.
const exportKind = "session"

// envelope wraps an exported session with enough metadata to reject
// payloads from incompatible builds before unmarshaling the timeline.
type envelope struct {
	FormatVersion string   `json:"format_version"`
	Kind          string   `json:"kind"`
	Session       *Session `json:"session"`
}

// Export serializes a session to the versioned JSON export format. Object
// ids, sequence numbers and timestamps are written verbatim so an imported
// session replays identically to the original.
func Export(s *Session) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("export: nil session")
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	data, err := json.MarshalIndent(envelope{
		FormatVersion: FormatVersion,
		Kind:          exportKind,
		Session:       s,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export session %s: %w", s.ID, err)
	}
	return data, nil
}

// Import parses a session export. The payload is sniffed before decoding so
// a wrong-kind or wrong-major-version file fails with a clear error instead
// of a half-populated session.
func Import(data []byte) (*Session, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("import: payload is not valid JSON")
	}
	kind := gjson.GetBytes(data, "kind").String()
	if kind != exportKind {
		return nil, fmt.Errorf("import: payload kind %q is not a session export", kind)
	}
	version := gjson.GetBytes(data, "format_version").String()
	if !semver.IsValid(version) {
		return nil, fmt.Errorf("import: invalid format_version %q", version)
	}
	if semver.Major(version) != semver.Major(FormatVersion) {
		return nil, fmt.Errorf("import: format_version %s is incompatible with %s", version, FormatVersion)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}
	if env.Session == nil {
		return nil, fmt.Errorf("import: payload has no session")
	}
	if err := env.Session.Validate(); err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}
	// Imported sessions are timelines to navigate, never to append to.
	if env.Session.Status == StatusRecording {
		env.Session.Status = StatusCompleted
	}
	return env.Session, nil
}
