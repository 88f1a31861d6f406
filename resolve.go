package ogdb

import (
	"encoding/binary"
	"fmt"
)

const (
	resultHeaderLen   = 4  // big-endian payload length
	valueLenPrefixLen = 3  // big-endian value length, when size is not known
	listCountLen      = 16 // big-endian item count
)

// resultBuffer accumulates the query payload, bounded by the caller-declared
// buffer size minus the header.
type resultBuffer struct {
	buf   []byte
	limit int
}

func (rb *resultBuffer) write(p []byte) error {
	if len(rb.buf)+len(p) > rb.limit {
		return fmt.Errorf("%w: payload exceeds %d bytes", ErrBufferTooSmall, rb.limit)
	}
	rb.buf = appendRaw(rb.buf, p)
	return nil
}

func (rb *resultBuffer) writeValueLen(n int) error {
	var tmp [valueLenPrefixLen]byte
	tmp[0] = byte(n >> 16)
	tmp[1] = byte(n >> 8)
	tmp[2] = byte(n)
	return rb.write(tmp[:])
}

func (rb *resultBuffer) writeItemCount(n uint64) error {
	var tmp [listCountLen]byte
	binary.BigEndian.PutUint64(tmp[8:], n)
	return rb.write(tmp[:])
}

// resolveFrame is one slot of the array-backed resolution stack. A frame
// tracks the current object and how many of its flat selections remain; list
// frames additionally track item progress and where the per-item selection
// restarts.
type resolveFrame struct {
	obj        objectRecord
	key        Key
	slot       int
	fieldsLeft int

	isList    bool
	listKind  TableKind
	listTable TableKey
	elemTable TableKey // referenced object table, for reference lists
	parentKey Key
	itemCount uint64
	itemsLeft uint64
	restart   int
}

// Resolve runs the query in a fresh read transaction.
func (db *DB) Resolve(q Query) ([]byte, error) {
	var out []byte
	err := db.ReadErr(func(tx *Tx) error {
		var err error
		out, err = tx.Resolve(q)
		return err
	})
	return out, err
}

// Resolve executes a FetchObject query: it walks the object graph from the
// root key, guided by the flattened selection set, and serializes every
// resolved field into a single flat buffer. The walk is iterative with an
// explicit stack sized to the selection's depth; a single cursor advances
// through the flat field list and is rewound only when a list frame starts
// its next item.
//
// Reference and list selections always consume their resolution-table slot
// and push a frame, even when the field is absent; the frame then resolves
// against an absent object and contributes no output. This keeps the slot
// order a function of the selection shape alone, which is what lets the
// caller build the resolution table without knowing the data.
func (tx *Tx) Resolve(q Query) (result []byte, err error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	sel := &q.Selection
	frames := sel.Frames

	rootRec, err := tx.loadObject(frames[0].Table.Key, q.Root)
	if err != nil {
		return nil, err
	}
	if !rootRec.initialized {
		// Root miss is not an error; the result is an empty payload.
		if tx.db.verbose {
			tx.db.logf("db: RESOLVE.MISS %v/%v", frames[0].Table, q.Root)
		}
		return make([]byte, resultHeaderLen), nil
	}

	rb := resultBuffer{
		buf:   valueBytesPool.Get().([]byte)[:0],
		limit: q.BufferSize - resultHeaderLen,
	}
	defer func() {
		releaseValueBytes(rb.buf)
	}()

	stack := make([]resolveFrame, sel.Depth)
	stack[0] = resolveFrame{
		obj:        rootRec,
		key:        q.Root,
		slot:       0,
		fieldsLeft: frames[0].FieldCount,
	}
	top := 0
	nextSlot := 1
	cursor := 0

	for {
		f := &stack[top]
		if f.fieldsLeft == 0 {
			if f.isList && f.itemsLeft > 0 {
				idx := f.itemCount - f.itemsLeft
				f.itemsLeft--
				cursor = f.restart
				f.fieldsLeft = frames[f.slot].FieldCount
				nextSlot = f.slot + 1
				if err := tx.loadListItem(f, idx); err != nil {
					return nil, err
				}
				continue
			}
			if top == 0 {
				break
			}
			top--
			continue
		}

		if cursor >= len(sel.Fields) {
			return nil, tx.resolveDefect("selection fields exhausted at index %d", cursor)
		}
		s := sel.Fields[cursor]
		cursor++
		f.fieldsLeft--

		if s.Field == 0 {
			return nil, fmt.Errorf("%w: zero field key at selection %d", ErrInvalidSelection, cursor-1)
		}

		present := f.obj.initialized && f.obj.mask.has(s.Field)

		if s.Type == FieldValue {
			if !present {
				continue
			}
			v := f.obj.get(s.Field)
			if !s.SizeKnown {
				if err := rb.writeValueLen(len(v)); err != nil {
					return nil, err
				}
			}
			if err := rb.write(v); err != nil {
				return nil, err
			}
			continue
		}

		slot := nextSlot
		nextSlot++
		if slot >= len(frames) {
			return nil, tx.resolveDefect("resolution table exhausted at slot %d", slot)
		}
		if top+1 >= len(stack) {
			return nil, tx.resolveDefect("resolution stack exhausted at depth %d", top+1)
		}
		ft := frames[slot]
		child := &stack[top+1]
		*child = resolveFrame{slot: slot, fieldsLeft: ft.FieldCount}

		switch s.Type {
		case FieldReference:
			if ft.Table.Kind != TableObject {
				return nil, fmt.Errorf("%w: frame %d is %v, reference field %d wants an object table", ErrInvalidSelection, slot, ft.Table, s.Field)
			}
			if present {
				raw := f.obj.get(s.Field)
				if len(raw) != 16 {
					return nil, dataErrf(raw, 0, nil, "reference field %d is %d bytes, want 16", s.Field, len(raw))
				}
				child.key = Key(raw)
				if !child.key.IsZero() {
					if child.obj, err = tx.loadObject(ft.Table.Key, child.key); err != nil {
						return nil, err
					}
				}
			}

		case FieldOwnedReference:
			if ft.Table.Kind != TableObject {
				return nil, fmt.Errorf("%w: frame %d is %v, owned reference field %d wants an object table", ErrInvalidSelection, slot, ft.Table, s.Field)
			}
			// Composition: the sub-object shares the current frame's key.
			child.key = f.key
			if present {
				if child.obj, err = tx.loadObject(ft.Table.Key, child.key); err != nil {
					return nil, err
				}
			}

		case FieldIndexedReference:
			if ft.Table.Kind != TableIndex {
				return nil, fmt.Errorf("%w: frame %d is %v, indexed reference field %d wants an index table", ErrInvalidSelection, slot, ft.Table, s.Field)
			}
			info, err := tx.tableInfo(TableIndex, ft.Table.Key)
			if err != nil {
				return nil, err
			}
			if present {
				if buck := tx.bucket(TableIndex, ft.Table.Key); buck != nil {
					if raw := buck.Get(f.key.Raw()); raw != nil {
						if len(raw) != 16 {
							return nil, dataErrf(raw, 0, nil, "index entry for %v is %d bytes, want 16", f.key, len(raw))
						}
						child.key = Key(raw)
						if child.obj, err = tx.loadObject(info.ReferencedTable, child.key); err != nil {
							return nil, err
						}
					}
				}
			}

		case FieldOwnedList, FieldReferenceList:
			wantKind := TableOwnedList
			if s.Type == FieldReferenceList {
				wantKind = TableReferenceList
			}
			if ft.Table.Kind != wantKind {
				return nil, fmt.Errorf("%w: frame %d is %v, list field %d wants a %v table", ErrInvalidSelection, slot, ft.Table, s.Field, wantKind)
			}
			info, err := tx.tableInfo(wantKind, ft.Table.Key)
			if err != nil {
				return nil, err
			}
			child.isList = true
			child.listKind = wantKind
			child.listTable = ft.Table.Key
			child.elemTable = info.ReferencedTable
			child.parentKey = f.key
			child.restart = cursor
			if present {
				if buck := tx.bucket(wantKind, ft.Table.Key); buck != nil {
					child.itemCount = listCount(buck, f.key)
				}
				if err := rb.writeItemCount(child.itemCount); err != nil {
					return nil, err
				}
			}
			if child.itemCount > 0 {
				child.itemsLeft = child.itemCount - 1
				if err := tx.loadListItem(child, 0); err != nil {
					return nil, err
				}
			}
			// Zero items: the per-item selection still runs once against an
			// absent object so nested slots are consumed; no bytes come out.

		default:
			return nil, fmt.Errorf("%w: field type %v", ErrUnsupported, s.Type)
		}
		top++
	}

	result = make([]byte, resultHeaderLen+len(rb.buf))
	binary.BigEndian.PutUint32(result, uint32(len(rb.buf)))
	copy(result[resultHeaderLen:], rb.buf)

	if tx.db.verbose {
		tx.db.logf("db: RESOLVE %v/%v => %d bytes", frames[0].Table, q.Root, len(rb.buf))
	}
	return result, nil
}

func (tx *Tx) loadListItem(f *resolveFrame, idx uint64) error {
	buck := tx.bucket(f.listKind, f.listTable)
	if buck == nil {
		return tx.resolveDefect("missing bucket for %v/%d", f.listKind, f.listTable)
	}
	raw := buck.Get(itemKey(f.parentKey, idx))
	if raw == nil {
		return tx.resolveDefect("missing item %d of %v/%d list %v", idx, f.listKind, f.listTable, f.parentKey)
	}
	switch f.listKind {
	case TableOwnedList:
		rec, err := decodeObjectRecord(raw)
		if err != nil {
			return err
		}
		f.obj = rec
		// Embedded objects are addressed by the parent key; an owned
		// reference inside a list item descends at that key.
		f.key = f.parentKey
	case TableReferenceList:
		if len(raw) != 16 {
			return dataErrf(raw, 0, nil, "list item %d is %d bytes, want 16", idx, len(raw))
		}
		f.key = Key(raw)
		rec, err := tx.loadObject(f.elemTable, f.key)
		if err != nil {
			return err
		}
		f.obj = rec
	}
	return nil
}

// resolveDefect reports a resolver invariant violation: the selection's
// depth or resolution table does not match its actual nesting. Well-formed
// queries can never trigger it, so strict databases treat it as a defect and
// panic; otherwise it surfaces as ErrInternal.
func (tx *Tx) resolveDefect(format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	if tx.db.strict {
		panic(fmt.Errorf("ogdb: %v", err))
	}
	return fmt.Errorf("%w: %v", ErrInternal, err)
}
