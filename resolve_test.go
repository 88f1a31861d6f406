package ogdb

import "testing"

func runQuery(t testing.TB, db *DB, root Key, depth int, fsel []Selection, frames []FrameTable) []byte {
	t.Helper()
	b, err := db.Resolve(Query{
		Kind:       QueryFetchObject,
		Root:       root,
		BufferSize: 1024,
		Selection:  SelectionSet{Depth: depth, Fields: fsel, Frames: frames},
	})
	ok(t, err)
	return b
}

func TestResolveRoundTrip(t *testing.T) {
	db := setupMem(t)
	k1 := key(1)
	db.Write(func(tx *Tx) {
		ok(t, tx.InsertObject(ObjectTable(1), k1, fields(1, "abc")))
	})

	got := runQuery(t, db, k1, 1,
		[]Selection{{Field: 1, Type: FieldValue}},
		[]FrameTable{{ObjectTable(1), 1}})
	deepEqual(t, got, x("00000006 000003 616263"))
}

func TestResolveSizeKnown(t *testing.T) {
	db := setupMem(t)
	k1 := key(1)
	db.Write(func(tx *Tx) {
		ok(t, tx.InsertObject(ObjectTable(1), k1, fields(1, "abcd")))
	})

	got := runQuery(t, db, k1, 1,
		[]Selection{{Field: 1, Type: FieldValue, SizeKnown: true}},
		[]FrameTable{{ObjectTable(1), 1}})
	deepEqual(t, got, x("00000004 61626364"))
}

func TestResolveAbsentField(t *testing.T) {
	db := setupMem(t)
	k1 := key(1)
	db.Write(func(tx *Tx) {
		ok(t, tx.InsertObject(ObjectTable(1), k1, fields(1, "abc")))
	})

	// Field 2 was never set; it contributes nothing, field 1 still resolves.
	got := runQuery(t, db, k1, 1,
		[]Selection{{Field: 2, Type: FieldValue}, {Field: 1, Type: FieldValue}},
		[]FrameTable{{ObjectTable(1), 2}})
	deepEqual(t, got, x("00000006 000003 616263"))
}

func TestResolveRootMiss(t *testing.T) {
	db := setupMem(t)
	got := runQuery(t, db, key(1), 1,
		[]Selection{{Field: 1, Type: FieldValue}},
		[]FrameTable{{ObjectTable(1), 1}})
	deepEqual(t, got, x("00000000"))
}

func TestResolveReference(t *testing.T) {
	db := setupMem(t)
	k1, k2 := key(1), key(2)
	db.Write(func(tx *Tx) {
		ok(t, tx.InsertObject(ObjectTable(2), k2, fields(1, "t")))
		ok(t, tx.InsertObject(ObjectTable(1), k1, []Field{{7, k2.Raw()}}))
	})

	got := runQuery(t, db, k1, 2,
		[]Selection{{Field: 7, Type: FieldReference}, {Field: 1, Type: FieldValue}},
		[]FrameTable{{ObjectTable(1), 1}, {ObjectTable(2), 1}})
	deepEqual(t, got, x("00000004 000001 74"))
}

func TestResolveOwnedReference(t *testing.T) {
	// Composition: the sub-object lives in another table under the same key.
	db := setupMem(t)
	k1 := key(1)
	db.Write(func(tx *Tx) {
		ok(t, tx.InsertObject(ObjectTable(3), k1, fields(1, "s")))
		ok(t, tx.InsertObject(ObjectTable(1), k1, fields(2, "root")))
		ok(t, tx.SetInitializedFieldBit(ObjectTable(1), k1, 9, true))
	})

	got := runQuery(t, db, k1, 2,
		[]Selection{{Field: 9, Type: FieldOwnedReference}, {Field: 1, Type: FieldValue}},
		[]FrameTable{{ObjectTable(1), 1}, {ObjectTable(3), 1}})
	deepEqual(t, got, x("00000004 000001 73"))
}

func TestResolveIndexedReference(t *testing.T) {
	db := setupMem(t)
	k1, k2 := key(1), key(2)
	db.Write(func(tx *Tx) {
		ok(t, tx.CreateIndexTable(30, 2))
		ok(t, tx.InsertObject(ObjectTable(2), k2, fields(1, "t")))
		ok(t, tx.InsertObject(ObjectTable(1), k1, fields(2, "root")))
		ok(t, tx.IndexObject(IndexTable(30), k1, k2))
		ok(t, tx.SetInitializedFieldBit(ObjectTable(1), k1, 8, true))
	})

	got := runQuery(t, db, k1, 2,
		[]Selection{{Field: 8, Type: FieldIndexedReference}, {Field: 1, Type: FieldValue}},
		[]FrameTable{{ObjectTable(1), 1}, {IndexTable(30), 1}})
	deepEqual(t, got, x("00000004 000001 74"))
}

func TestResolveOwnedList(t *testing.T) {
	db := setupMem(t)
	parent := key(1)
	db.Write(func(tx *Tx) {
		ok(t, tx.CreateOwnedListTable(10, 1, 5))
		ok(t, tx.InsertObject(ObjectTable(1), parent, fields(2, "p")))
		for _, v := range []string{"a", "b", "c"} {
			_, err := tx.InsertObjectInOwnedList(OwnedListTable(10), parent, fields(1, v))
			ok(t, err)
		}
	})

	got := runQuery(t, db, parent, 2,
		[]Selection{{Field: 5, Type: FieldOwnedList}, {Field: 1, Type: FieldValue}},
		[]FrameTable{{ObjectTable(1), 1}, {OwnedListTable(10), 1}})
	deepEqual(t, got, x(`
		0000001c
		00000000000000000000000000000003
		000001 61  000001 62  000001 63`))
}

func TestResolveReferenceListDangling(t *testing.T) {
	// Dangling targets still count toward the list length but resolve as
	// absent objects and contribute no field bytes.
	db := setupMem(t)
	parent, k2 := key(1), key(2)
	db.Write(func(tx *Tx) {
		ok(t, tx.CreateReferenceListTable(20, 2, 1, 6))
		ok(t, tx.InsertObject(ObjectTable(2), k2, fields(1, "t")))
		ok(t, tx.InsertObject(ObjectTable(1), parent, fields(2, "p")))
		_, err := tx.InsertReferenceInList(ReferenceListTable(20), parent, k2)
		ok(t, err)
		_, err = tx.InsertReferenceInList(ReferenceListTable(20), parent, key(99))
		ok(t, err)
	})

	got := runQuery(t, db, parent, 2,
		[]Selection{{Field: 6, Type: FieldReferenceList}, {Field: 1, Type: FieldValue}},
		[]FrameTable{{ObjectTable(1), 1}, {ReferenceListTable(20), 1}})
	deepEqual(t, got, x(`
		00000014
		00000000000000000000000000000002
		000001 74`))
}

func TestResolveEmptyListKeepsShape(t *testing.T) {
	// An unset list field pushes its frame anyway; the selections after it
	// must still land on the right slots and the root walk must continue.
	db := setupMem(t)
	k1 := key(1)
	db.Write(func(tx *Tx) {
		ok(t, tx.CreateOwnedListTable(10, 1, 5))
		ok(t, tx.InsertObject(ObjectTable(1), k1, fields(2, "z")))
	})

	got := runQuery(t, db, k1, 2,
		[]Selection{
			{Field: 5, Type: FieldOwnedList},
			{Field: 1, Type: FieldValue},
			{Field: 2, Type: FieldValue},
		},
		[]FrameTable{{ObjectTable(1), 2}, {OwnedListTable(10), 1}})
	deepEqual(t, got, x("00000004 000001 7a"))
}

func TestResolveNestedListReference(t *testing.T) {
	db := setupMem(t)
	parent, k2, k3 := key(1), key(2), key(3)
	db.Write(func(tx *Tx) {
		ok(t, tx.CreateOwnedListTable(10, 1, 5))
		ok(t, tx.InsertObject(ObjectTable(2), k2, fields(1, "x")))
		ok(t, tx.InsertObject(ObjectTable(2), k3, fields(1, "y")))
		ok(t, tx.InsertObject(ObjectTable(1), parent, fields(3, "p")))

		_, err := tx.InsertObjectInOwnedList(OwnedListTable(10), parent,
			[]Field{{1, []byte("a")}, {2, k2.Raw()}})
		ok(t, err)
		_, err = tx.InsertObjectInOwnedList(OwnedListTable(10), parent,
			[]Field{{1, []byte("b")}, {2, k3.Raw()}})
		ok(t, err)
	})

	got := runQuery(t, db, parent, 3,
		[]Selection{
			{Field: 5, Type: FieldOwnedList},
			{Field: 1, Type: FieldValue},
			{Field: 2, Type: FieldReference},
			{Field: 1, Type: FieldValue},
		},
		[]FrameTable{{ObjectTable(1), 1}, {OwnedListTable(10), 2}, {ObjectTable(2), 1}})
	deepEqual(t, got, x(`
		00000020
		00000000000000000000000000000002
		000001 61  000001 78
		000001 62  000001 79`))
}

func TestResolveBufferTooSmall(t *testing.T) {
	db := setupMem(t)
	k1 := key(1)
	db.Write(func(tx *Tx) {
		ok(t, tx.InsertObject(ObjectTable(1), k1, fields(1, "abcdef")))
	})

	_, err := db.Resolve(Query{
		Kind:       QueryFetchObject,
		Root:       k1,
		BufferSize: 8,
		Selection: SelectionSet{
			Depth:  1,
			Fields: []Selection{{Field: 1, Type: FieldValue}},
			Frames: []FrameTable{{ObjectTable(1), 1}},
		},
	})
	wantErr(t, err, ErrBufferTooSmall)
}

func TestResolveValidation(t *testing.T) {
	db := setupMem(t)
	k1 := key(1)
	db.Write(func(tx *Tx) {
		ok(t, tx.InsertObject(ObjectTable(1), k1, fields(1, "a")))
	})

	sel := SelectionSet{
		Depth:  1,
		Fields: []Selection{{Field: 1, Type: FieldValue}},
		Frames: []FrameTable{{ObjectTable(1), 1}},
	}

	_, err := db.Resolve(Query{Kind: QueryKind(9), Root: k1, BufferSize: 64, Selection: sel})
	wantErr(t, err, ErrUnsupported)

	_, err = db.Resolve(Query{Kind: QueryFetchObject, Root: k1, BufferSize: MaxResultSize + 1, Selection: sel})
	wantErr(t, err, ErrBufferTooLarge)

	_, err = db.Resolve(Query{Kind: QueryFetchObject, Root: k1, BufferSize: 64,
		Selection: SelectionSet{Depth: 0, Fields: sel.Fields, Frames: sel.Frames}})
	wantErr(t, err, ErrInvalidSelection)

	_, err = db.Resolve(Query{Kind: QueryFetchObject, Root: k1, BufferSize: 64,
		Selection: SelectionSet{Depth: 1, Fields: []Selection{{Field: 0, Type: FieldValue}}, Frames: sel.Frames}})
	wantErr(t, err, ErrInvalidSelection)

	_, err = db.Resolve(Query{Kind: QueryFetchObject, Root: k1, BufferSize: 64,
		Selection: SelectionSet{Depth: 1, Fields: sel.Fields, Frames: []FrameTable{{OwnedListTable(10), 1}}}})
	wantErr(t, err, ErrInvalidSelection)
}

func TestResolveFrameKindMismatch(t *testing.T) {
	db := setupMem(t)
	k1 := key(1)
	db.Write(func(tx *Tx) {
		ok(t, tx.CreateOwnedListTable(10, 1, 5))
		ok(t, tx.InsertObject(ObjectTable(1), k1, []Field{{7, k1.Raw()}}))
	})

	// A reference selection pointing at a list frame is a malformed query.
	_, err := db.Resolve(Query{
		Kind:       QueryFetchObject,
		Root:       k1,
		BufferSize: 64,
		Selection: SelectionSet{
			Depth:  2,
			Fields: []Selection{{Field: 7, Type: FieldReference}, {Field: 1, Type: FieldValue}},
			Frames: []FrameTable{{ObjectTable(1), 1}, {OwnedListTable(10), 1}},
		},
	})
	wantErr(t, err, ErrInvalidSelection)
}

func TestResolveSelectionShapeDefects(t *testing.T) {
	// Lenient databases surface depth and resolution table mismatches as
	// ErrInternal instead of panicking.
	db := setupMemLenient(t)
	k1 := key(1)
	db.Write(func(tx *Tx) {
		ok(t, tx.InsertObject(ObjectTable(1), k1, []Field{{7, k1.Raw()}}))
	})

	// Resolution table too small for the reference selection.
	_, err := db.Resolve(Query{
		Kind:       QueryFetchObject,
		Root:       k1,
		BufferSize: 64,
		Selection: SelectionSet{
			Depth:  2,
			Fields: []Selection{{Field: 7, Type: FieldReference}},
			Frames: []FrameTable{{ObjectTable(1), 1}},
		},
	})
	wantErr(t, err, ErrInternal)

	// Declared depth too small for the actual nesting.
	_, err = db.Resolve(Query{
		Kind:       QueryFetchObject,
		Root:       k1,
		BufferSize: 64,
		Selection: SelectionSet{
			Depth:  1,
			Fields: []Selection{{Field: 7, Type: FieldReference}, {Field: 1, Type: FieldValue}},
			Frames: []FrameTable{{ObjectTable(1), 1}, {ObjectTable(2), 1}},
		},
	})
	wantErr(t, err, ErrInternal)
}
