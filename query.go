package ogdb

import "fmt"

// QueryKind selects the query algorithm. Only FetchObject is implemented.
type QueryKind uint8

const (
	QueryFetchObject QueryKind = 1
)

// FieldType tells the resolver how to interpret a selected field.
type FieldType uint8

const (
	// FieldValue copies the stored bytes into the result, length-prefixed
	// unless the selection declares the size known.
	FieldValue FieldType = iota + 1

	// FieldOwnedReference descends into another object table at the current
	// object's own primary key (composition; no stored reference value).
	FieldOwnedReference

	// FieldReference reads the stored 16-byte value as the primary key of an
	// object in the frame's table (association).
	FieldReference

	// FieldIndexedReference descends through an index table keyed by the
	// current object's primary key.
	FieldIndexedReference

	// FieldOwnedList inlines every embedded object of an owned list,
	// preceded by a 16-byte item count.
	FieldOwnedList

	// FieldReferenceList resolves every primary key of a reference list
	// against the referenced table, preceded by a 16-byte item count.
	FieldReferenceList
)

func (t FieldType) String() string {
	switch t {
	case FieldValue:
		return "value"
	case FieldOwnedReference:
		return "ownedRef"
	case FieldReference:
		return "ref"
	case FieldIndexedReference:
		return "indexedRef"
	case FieldOwnedList:
		return "ownedList"
	case FieldReferenceList:
		return "refList"
	default:
		return fmt.Sprintf("fieldType(%d)", uint8(t))
	}
}

// Selection is one entry of the flat, depth-first-ordered field list.
type Selection struct {
	Field     FieldKey
	Type      FieldType
	SizeKnown bool
}

// FrameTable is one resolution-table entry: the table a traversal frame
// fetches from and how many of the upcoming flat selections belong to it.
// Frames appear in the order they are first entered; all items of a list
// share the list's single entry.
type FrameTable struct {
	Table      TableRef
	FieldCount int
}

// SelectionSet is a flattened, depth-bounded description of the fields to
// fetch. Nested selections of a referenced or owned sub-object follow their
// parent selection entry contiguously rather than forming a tree.
type SelectionSet struct {
	Depth  int
	Fields []Selection
	Frames []FrameTable
}

// Query fetches the object graph rooted at Root, guided by Selection, into a
// result buffer of at most BufferSize bytes (including the 4-byte payload
// length header).
type Query struct {
	Kind       QueryKind
	Root       Key
	Selection  SelectionSet
	BufferSize int
}

// MaxResultSize caps the result buffer a query may request.
const MaxResultSize = 100 << 20

func (q *Query) validate() error {
	if q.Kind != QueryFetchObject {
		return fmt.Errorf("%w: query kind %d", ErrUnsupported, q.Kind)
	}
	if q.BufferSize > MaxResultSize {
		return fmt.Errorf("%w: %d bytes requested", ErrBufferTooLarge, q.BufferSize)
	}
	if q.BufferSize < resultHeaderLen {
		return fmt.Errorf("%w: %d bytes requested", ErrBufferTooSmall, q.BufferSize)
	}
	sel := &q.Selection
	if sel.Depth < 1 {
		return fmt.Errorf("%w: depth %d", ErrInvalidSelection, sel.Depth)
	}
	if len(sel.Frames) == 0 || len(sel.Fields) == 0 {
		return fmt.Errorf("%w: empty selection", ErrInvalidSelection)
	}
	if sel.Frames[0].Table.Kind != TableObject || sel.Frames[0].Table.Key == 0 {
		return fmt.Errorf("%w: root frame table %v", ErrInvalidSelection, sel.Frames[0].Table)
	}
	for i, ft := range sel.Frames {
		if ft.FieldCount < 0 {
			return fmt.Errorf("%w: frame %d field count %d", ErrInvalidSelection, i, ft.FieldCount)
		}
	}
	return nil
}
