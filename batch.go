package ogdb

import "fmt"

// OpKind tags a batch operation.
type OpKind uint8

const (
	OpInsertObject OpKind = iota + 1
	OpInsertObjectInOwnedList
	OpInsertReferenceInList
	OpIndexObject
	OpSetInitializedFieldBit
)

func (k OpKind) String() string {
	switch k {
	case OpInsertObject:
		return "insertObject"
	case OpInsertObjectInOwnedList:
		return "insertObjectInOwnedList"
	case OpInsertReferenceInList:
		return "insertReferenceInList"
	case OpIndexObject:
		return "indexObject"
	case OpSetInitializedFieldBit:
		return "setInitializedFieldBit"
	default:
		return fmt.Sprintf("op(%d)", uint8(k))
	}
}

// Op is one element of a heterogeneous batch. Key is the primary key the
// operation addresses (object key, list parent or index key); Ref is the
// referenced key where the kind uses one.
type Op struct {
	Kind   OpKind
	Table  TableRef
	Key    Key
	Ref    Key
	Field  FieldKey
	Set    bool
	Fields []Field
}

// Apply runs a single tagged operation against the transaction.
func (tx *Tx) Apply(op Op) error {
	switch op.Kind {
	case OpInsertObject:
		return tx.InsertObject(op.Table, op.Key, op.Fields)
	case OpInsertObjectInOwnedList:
		_, err := tx.InsertObjectInOwnedList(op.Table, op.Key, op.Fields)
		return err
	case OpInsertReferenceInList:
		_, err := tx.InsertReferenceInList(op.Table, op.Key, op.Ref)
		return err
	case OpIndexObject:
		return tx.IndexObject(op.Table, op.Key, op.Ref)
	case OpSetInitializedFieldBit:
		return tx.SetInitializedFieldBit(op.Table, op.Key, op.Field, op.Set)
	default:
		return fmt.Errorf("%w: batch operation kind %v", ErrUnsupported, op.Kind)
	}
}

// BatchInsert applies an ordered heterogeneous operation list in a single
// writable transaction. If any operation fails, the whole batch rolls back
// and no prior operation of the batch remains applied.
func (db *DB) BatchInsert(ops []Op) error {
	return db.Tx(true, func(tx *Tx) error {
		for i, op := range ops {
			if err := tx.Apply(op); err != nil {
				return fmt.Errorf("batch op %d (%v): %w", i, op.Kind, err)
			}
		}
		return nil
	})
}
