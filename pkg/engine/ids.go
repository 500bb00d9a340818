package engine

import (
	"github.com/google/uuid"

	"github.com/0xmhha/pathwatch/pkg/events"
)

// newEventIDForRaw mints an ID for a semantic Event derived 1:1 from a raw
// notification that never passes through the Correlator (Write, Chmod,
// Other). Create/Remove/Move IDs are minted inside the Correlator itself,
// since it may merge two raw events into one.
func newEventIDForRaw(_ events.RawEvent) string {
	return uuid.NewString()
}
