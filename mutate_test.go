package ogdb

import (
	"strings"
	"testing"
)

func TestInsertObjectValidation(t *testing.T) {
	db := setupMem(t)
	k1 := key(1)

	db.Write(func(tx *Tx) {
		wantErr(t, tx.InsertObject(ObjectTable(0), k1, nil), ErrInvalidKey)
		wantErr(t, tx.InsertObject(ObjectTable(1), Key{}, nil), ErrInvalidKey)
		wantErr(t, tx.InsertObject(OwnedListTable(1), k1, nil), ErrInvalidKey)
		wantErr(t, tx.InsertObject(ObjectTable(1), k1, []Field{{0, []byte("x")}}), ErrInvalidKey)
		wantErr(t, tx.InsertObject(ObjectTable(1), k1, []Field{{MaxFieldKey + 1, []byte("x")}}), ErrInvalidKey)

		big := []Field{{1, []byte(strings.Repeat("x", MaxFieldValueSize+1))}}
		wantErr(t, tx.InsertObject(ObjectTable(1), k1, big), ErrFieldTooLarge)

		many := make([]Field, MaxObjectFields+1)
		for i := range many {
			many[i] = Field{FieldKey(i%int(MaxFieldKey) + 1), []byte("v")}
		}
		wantErr(t, tx.InsertObject(ObjectTable(1), k1, many), ErrTooManyFields)
	})

	// None of the failures may have created the object.
	db.Read(func(tx *Tx) {
		_, found, err := tx.GetObject(ObjectTable(1), k1)
		ok(t, err)
		if found {
			t.Errorf("** failed insert left a visible object")
		}
	})
}

func TestInsertObjectDuplicate(t *testing.T) {
	db := setupMem(t)
	k1 := key(1)

	db.Write(func(tx *Tx) {
		ok(t, tx.InsertObject(ObjectTable(1), k1, fields(1, "a")))
	})
	db.Write(func(tx *Tx) {
		wantErr(t, tx.InsertObject(ObjectTable(1), k1, fields(1, "b")), ErrAlreadyExists)
	})
	db.Read(func(tx *Tx) {
		fs, _, err := tx.GetObject(ObjectTable(1), k1)
		ok(t, err)
		deepEqual(t, fs, fields(1, "a"))
	})
}

func TestOwnedListAppend(t *testing.T) {
	db := setupMem(t)
	parent := key(1)

	db.Write(func(tx *Tx) {
		ok(t, tx.CreateOwnedListTable(10, 1, 5))
		ok(t, tx.InsertObject(ObjectTable(1), parent, fields(1, "p")))

		for i, v := range []string{"a", "b", "c"} {
			n, err := tx.InsertObjectInOwnedList(OwnedListTable(10), parent, fields(1, v))
			ok(t, err)
			deepEqual(t, n, i+1)
		}
	})

	// Appends must have set the parent's list-presence bit.
	db.Read(func(tx *Tx) {
		rec, err := tx.loadObject(1, parent)
		ok(t, err)
		if !rec.mask.has(5) {
			t.Errorf("** parent list bit not set")
		}
	})
}

func TestOwnedListAppendUnregistered(t *testing.T) {
	db := setupMem(t)
	db.Write(func(tx *Tx) {
		_, err := tx.InsertObjectInOwnedList(OwnedListTable(10), key(1), fields(1, "a"))
		wantErr(t, err, ErrNotFound)
	})
}

func TestListAppendBeforeParentInsert(t *testing.T) {
	// Appends blindly set the parent's mask bit even when the parent object
	// was never inserted; the bit must survive the later insert.
	db := setupMem(t)
	parent := key(1)

	db.Write(func(tx *Tx) {
		ok(t, tx.CreateOwnedListTable(10, 1, 5))
		_, err := tx.InsertObjectInOwnedList(OwnedListTable(10), parent, fields(1, "a"))
		ok(t, err)
	})

	db.Read(func(tx *Tx) {
		_, found, err := tx.GetObject(ObjectTable(1), parent)
		ok(t, err)
		if found {
			t.Fatalf("** uninitialized parent reads as existing")
		}
	})

	db.Write(func(tx *Tx) {
		ok(t, tx.InsertObject(ObjectTable(1), parent, fields(1, "p")))
	})
	db.Read(func(tx *Tx) {
		rec, err := tx.loadObject(1, parent)
		ok(t, err)
		if !rec.initialized || !rec.mask.has(5) || !rec.mask.has(1) {
			t.Errorf("** insert did not merge with pre-set mask bits")
		}
	})
}

func TestReferenceListIntegrityNotChecked(t *testing.T) {
	// Reference lists accept dangling targets; only indexes check existence.
	db := setupMem(t)

	db.Write(func(tx *Tx) {
		ok(t, tx.CreateReferenceListTable(20, 2, 1, 6))
		n, err := tx.InsertReferenceInList(ReferenceListTable(20), key(1), key(99))
		ok(t, err)
		deepEqual(t, n, 1)
	})
}

func TestIndexObject(t *testing.T) {
	db := setupMem(t)
	k2, k3 := key(2), key(3)

	db.Write(func(tx *Tx) {
		ok(t, tx.CreateIndexTable(30, 2))
		ok(t, tx.InsertObject(ObjectTable(2), k2, fields(1, "a")))
		ok(t, tx.InsertObject(ObjectTable(2), k3, fields(1, "b")))

		// Referential integrity is enforced at index-write time.
		wantErr(t, tx.IndexObject(IndexTable(30), key(100), key(99)), ErrNotFound)

		ok(t, tx.IndexObject(IndexTable(30), key(100), k2))
		// Re-indexing the same key overwrites (last write wins).
		ok(t, tx.IndexObject(IndexTable(30), key(100), k3))
	})

	db.Read(func(tx *Tx) {
		ref, found, err := tx.LookupIndex(IndexTable(30), key(100))
		ok(t, err)
		if !found || ref != k3 {
			t.Errorf("** got %v found=%v, wanted %v", ref, found, k3)
		}
	})
}

func TestIndexObjectUnregistered(t *testing.T) {
	db := setupMem(t)
	db.Write(func(tx *Tx) {
		wantErr(t, tx.IndexObject(IndexTable(30), key(1), key(2)), ErrNotFound)
	})
}

func TestSetInitializedFieldBit(t *testing.T) {
	db := setupMem(t)
	k1 := key(1)

	db.Write(func(tx *Tx) {
		wantErr(t, tx.SetInitializedFieldBit(ObjectTable(1), k1, 5, true), ErrNotFound)

		ok(t, tx.InsertObject(ObjectTable(1), k1, fields(1, "a")))
		ok(t, tx.SetInitializedFieldBit(ObjectTable(1), k1, 5, true))
		ok(t, tx.SetInitializedFieldBit(ObjectTable(1), k1, 1, false))

		wantErr(t, tx.SetInitializedFieldBit(ObjectTable(1), k1, 0, true), ErrInvalidKey)
	})

	db.Read(func(tx *Tx) {
		rec, err := tx.loadObject(1, k1)
		ok(t, err)
		if !rec.mask.has(5) {
			t.Errorf("** bit 5 not set")
		}
		if rec.mask.has(1) {
			t.Errorf("** bit 1 not cleared")
		}
	})
}
