package typedstream

import log "github.com/sirupsen/logrus"

// referenceNamespace identifies which shared table a reference number
// indexes into. The stream reader itself only ever needs one: the
// shared-string table below. Object and class reference *numbers* are
// still surfaced as ObjectReference events (see events.go), but
// resolving them against the object/class tables the wire format
// implies is the archiver's job, using its own bookkeeping - the
// low-level reader has no notion of "object" or "class" identity, only
// of interned strings.
type referenceNamespace int

const (
	// namespaceSharedString is the stream reader's own single table: it
	// interns every literal type-encoding string, class name, selector,
	// and C string it reads, in the order it reads them - all four kinds
	// of value share one numbering space on the wire.
	namespaceSharedString referenceNamespace = iota
)

func (n referenceNamespace) String() string {
	switch n {
	case namespaceSharedString:
		return "shared string"
	default:
		return "unknown"
	}
}

// referenceTable assigns sequential, zero-based ids to values as they
// are first seen ("new") on the wire, and resolves later back-references
// to those same ids.
type referenceTable struct {
	namespace referenceNamespace
	entries   []interface{}
}

func newReferenceTable(namespace referenceNamespace) *referenceTable {
	return &referenceTable{namespace: namespace}
}

// intern records value as the next entry in the table and returns its
// newly assigned id.
func (t *referenceTable) intern(value interface{}) int64 {
	id := int64(len(t.entries))
	t.entries = append(t.entries, value)
	log.Tracef("typedstream: %s table grew to %d entries", t.namespace, len(t.entries))
	return id
}

// resolve looks up a previously interned value by its zero-based id.
func (t *referenceTable) resolve(id int64) (interface{}, error) {
	if id < 0 || id >= int64(len(t.entries)) {
		return nil, newError(KindUnknownReference, 0, "%s reference %d not in range [0, %d)", t.namespace, id, len(t.entries))
	}
	return t.entries[id], nil
}
