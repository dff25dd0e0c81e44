package archiver

import (
	"fmt"

	"github.com/blacktop/typedstream/typedstream"
)

// refEntry is one slot in the unarchiver's shared object table: every
// class, object, and C string gets exactly one slot, in the order it
// was first seen, regardless of which of the three kinds it is - the
// table is shared the same way the reference numbering scheme on the
// wire is shared across all three.
type refEntry struct {
	kind  typedstream.ReferenceType
	value interface{}
}

type refTable struct {
	entries []refEntry
}

// reserve allocates a slot for an object whose identity is needed
// before it has finished decoding (the placeholder-before-decode
// pattern that makes self-referential object graphs decodable).
func (t *refTable) reserve(kind typedstream.ReferenceType) int {
	t.entries = append(t.entries, refEntry{kind: kind})
	return len(t.entries) - 1
}

func (t *refTable) set(index int, kind typedstream.ReferenceType, value interface{}) {
	t.entries[index] = refEntry{kind: kind, value: value}
}

func (t *refTable) append(kind typedstream.ReferenceType, value interface{}) int {
	i := t.reserve(kind)
	t.set(i, kind, value)
	return i
}

func (t *refTable) resolve(ref typedstream.ObjectReference) (interface{}, error) {
	if ref.ID < 0 || ref.ID >= int64(len(t.entries)) {
		return nil, wrapError(ref, fmt.Errorf("reference number %d not in range [0, %d)", ref.ID, len(t.entries)))
	}
	entry := t.entries[ref.ID]
	if entry.kind != ref.Type {
		return nil, wrapError(ref, fmt.Errorf("reference should point to a %s, but entry %d is a %s", ref.Type, ref.ID, entry.kind))
	}
	return entry.value, nil
}

func wrapError(ref typedstream.ObjectReference, err error) error {
	return fmt.Errorf("archiver: resolving %s reference %d: %w", ref.Type, ref.ID, err)
}
