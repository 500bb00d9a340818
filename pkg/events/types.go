// Package events defines the semantic event vocabulary emitted by
// pathwatch: the tagged-variant Event consumed by callers, the RawEvent
// produced by the source adapter, and the small diagnostic types passed
// between the path-type inferrer and the move correlator.
//
// A tagged-variant Event with a Kind plus kind-specific payload is used in
// preference to a capability-set abstraction: the correlator and the cache
// synchroniser both dispatch on the tag, and there is exactly one payload
// shape (MoveData) that only one kind ever populates.
package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind identifies the semantic class of an emitted Event.
type Kind string

// Event kinds.
const (
	KindCreate Kind = "create"
	KindWrite  Kind = "write"
	KindRemove Kind = "remove"
	KindMove   Kind = "move"
	KindChmod  Kind = "chmod"
	KindOther  Kind = "other"
)

// RawKind identifies the low-level notification the source adapter observed,
// before path-type inference or move correlation.
type RawKind string

// Raw kinds, mirroring fsnotify's primitive operations.
const (
	RawCreate RawKind = "create"
	RawModify RawKind = "modify"
	RawRemove RawKind = "remove"
	RawRenameFrom RawKind = "rename_from"
	RawRenameTo   RawKind = "rename_to"
	RawChmod      RawKind = "chmod"
)

// DetectionMethod names the dominant signal that produced a Move match.
type DetectionMethod string

// Detection methods, in descending order of the confidence they typically
// carry.
const (
	MethodInodeMatching  DetectionMethod = "inode_matching"
	MethodWindowsID      DetectionMethod = "windows_id"
	MethodContentHash    DetectionMethod = "content_hash"
	MethodSizeAndTime    DetectionMethod = "size_and_time"
	MethodNameAndTiming  DetectionMethod = "name_and_timing"
	MethodMetadata       DetectionMethod = "metadata"
)

// MoveData carries the extra fields a Move event needs beyond the common
// Event envelope.
type MoveData struct {
	SourcePath      string          `json:"source_path"`
	DestinationPath string          `json:"destination_path"`
	Confidence      float64         `json:"confidence"`
	DetectionMethod DetectionMethod `json:"detection_method"`
}

// confidenceJSON renders confidence with at least two fractional digits, as
// required by spec §6 ("Floating-point confidence is emitted with at least
// 2 fractional digits"), without forcing every other float in the object
// through a custom marshaler.
type confidenceJSON float64

func (c confidenceJSON) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%.2f", float64(c))), nil
}

// MarshalJSON implements json.Marshaler for MoveData so Confidence always
// carries at least two fractional digits, independent of Go's default
// float formatting (which would print 0.9 as "0.9", not "0.90").
func (m MoveData) MarshalJSON() ([]byte, error) {
	type alias struct {
		SourcePath      string          `json:"source_path"`
		DestinationPath string          `json:"destination_path"`
		Confidence      confidenceJSON  `json:"confidence"`
		DetectionMethod DetectionMethod `json:"detection_method"`
	}
	return json.Marshal(alias{
		SourcePath:      m.SourcePath,
		DestinationPath: m.DestinationPath,
		Confidence:      confidenceJSON(m.Confidence),
		DetectionMethod: m.DetectionMethod,
	})
}

// Event is the structured, semantic event emitted to consumers of a watch.
type Event struct {
	// ID is a stable unique identifier for this event record.
	ID string `json:"id"`

	// Kind classifies the event.
	Kind Kind `json:"kind"`

	// Path is the primary path the event concerns. For Move events this is
	// the destination path; the source path is carried in MoveData.
	Path string `json:"path"`

	// Timestamp is the wall-clock time the event was produced.
	Timestamp time.Time `json:"timestamp"`

	// IsDirectory reports whether Path refers to a directory.
	IsDirectory bool `json:"is_directory"`

	// Size is the file size in bytes, when known.
	Size *int64 `json:"size,omitempty"`

	// Move carries the extra fields a Move event needs. Nil for every
	// other kind.
	Move *MoveData `json:"move_data,omitempty"`
}

// RawEvent is the normalized, low-level notification produced by the
// source adapter, before path-type inference or move correlation.
type RawEvent struct {
	Kind      RawKind
	Path      string
	Timestamp time.Time
}

// PathTypeHeuristics is the diagnostic bundle the path-type inferrer
// returns alongside its best-effort is-directory classification. It is
// informational only: per spec §4.2 the classification must never cause a
// cache mutation on its own.
type PathTypeHeuristics struct {
	// IsDirectory is the inferred classification.
	IsDirectory bool

	// Source names which heuristic produced the answer.
	Source InferenceSource

	// Confident reports whether Source found a definitive answer, as
	// opposed to falling back to the filename heuristic.
	Confident bool
}

// InferenceSource names the heuristic that produced a PathTypeHeuristics
// result, in the consultation order fixed by spec §4.2.
type InferenceSource string

const (
	SourceMetadataCache   InferenceSource = "metadata_cache"
	SourceHierarchyCache  InferenceSource = "hierarchy_cache"
	SourcePendingCreates  InferenceSource = "pending_creates"
	SourceFilenameHeuristic InferenceSource = "filename_heuristic"
)
