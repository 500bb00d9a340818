// Package pathtype implements the Path-Type Inferrer of spec §4.2: given
// a RawEvent whose file-vs-directory classification is ambiguous (the
// common case on Remove, since the path is already gone), it consults a
// fixed sequence of heuristics and returns a best-effort classification
// plus a diagnostic bundle. The classification is advisory only — per
// spec §4.2 it must never cause a cache mutation on its own.
package pathtype

import (
	"path/filepath"

	"github.com/0xmhha/pathwatch/pkg/events"
)

// MetadataLookup answers "what did we last observe path to be" from the
// move correlator's recent-metadata cache.
type MetadataLookup func(path string) (isDirectory bool, ok bool)

// HierarchyLookup answers "does path have cached children" from the
// store's hierarchy index — a parent with children on record is a
// directory, per spec §4.2(b).
type HierarchyLookup func(path string) (hasChildren bool, ok bool)

// PendingCreateLookup answers "is there a pending Create at path" from the
// move correlator's pending-create pool, per spec §4.2(c).
type PendingCreateLookup func(path string) (isDirectory bool, ok bool)

// Inferrer implements the consultation order of spec §4.2: metadata
// cache, then hierarchy cache, then pending creates, then a filename
// heuristic as the fallback of last resort.
type Inferrer struct {
	Metadata      MetadataLookup
	Hierarchy     HierarchyLookup
	PendingCreate PendingCreateLookup
}

// New returns an Inferrer. Any lookup left nil is treated as always
// missing, letting callers that lack one of the three caches (e.g. unit
// tests, or a correlator run before the store is wired in) still get a
// filename-heuristic answer.
func New(metadata MetadataLookup, hierarchy HierarchyLookup, pending PendingCreateLookup) *Inferrer {
	return &Inferrer{Metadata: metadata, Hierarchy: hierarchy, PendingCreate: pending}
}

// Infer classifies raw.Path as file or directory, first match wins across
// the four sources in spec §4.2's fixed order.
func (inf *Inferrer) Infer(raw events.RawEvent) events.PathTypeHeuristics {
	if inf.Metadata != nil {
		if isDir, ok := inf.Metadata(raw.Path); ok {
			return events.PathTypeHeuristics{IsDirectory: isDir, Source: events.SourceMetadataCache, Confident: true}
		}
	}

	if inf.Hierarchy != nil {
		if hasChildren, ok := inf.Hierarchy(raw.Path); ok && hasChildren {
			return events.PathTypeHeuristics{IsDirectory: true, Source: events.SourceHierarchyCache, Confident: true}
		}
	}

	if inf.PendingCreate != nil {
		if isDir, ok := inf.PendingCreate(raw.Path); ok {
			return events.PathTypeHeuristics{IsDirectory: isDir, Source: events.SourcePendingCreates, Confident: true}
		}
	}

	return events.PathTypeHeuristics{
		IsDirectory: !looksLikeFile(raw.Path),
		Source:      events.SourceFilenameHeuristic,
		Confident:   false,
	}
}

// looksLikeFile applies the filename heuristic of spec §4.2(d): a path
// with a file extension is likely a file. Dotfiles (".gitignore") and
// extensionless names are treated as likely directories, the more common
// case for bare names under a typically-file-extension-heavy tree.
func looksLikeFile(path string) bool {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return ext != "" && ext != base
}
