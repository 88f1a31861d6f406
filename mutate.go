package ogdb

import "encoding/binary"

func checkTable(tbl TableRef, want TableKind) error {
	if tbl.Key == 0 {
		return tableErrf(tbl, Key{}, ErrInvalidKey, "zero table key")
	}
	if tbl.Kind != want {
		return tableErrf(tbl, Key{}, ErrInvalidKey, "%v table required", want)
	}
	return nil
}

func validateFields(tbl TableRef, pk Key, fields []Field) error {
	if len(fields) > MaxObjectFields {
		return tableErrf(tbl, pk, ErrTooManyFields, "%d fields", len(fields))
	}
	for _, f := range fields {
		if f.Key == 0 || f.Key > MaxFieldKey {
			return tableErrf(tbl, pk, ErrInvalidKey, "field key %d", f.Key)
		}
		if len(f.Value) > MaxFieldValueSize {
			return tableErrf(tbl, pk, ErrFieldTooLarge, "field %d is %d bytes", f.Key, len(f.Value))
		}
	}
	return nil
}

// InsertObject creates the object at (tbl, pk) with the given fields. All
// fields are validated before anything is written, and the initialized flag
// is part of the same record write, so a failed insert never leaves a
// partially visible object. Mask bits already set by earlier list appends
// against this key survive.
func (tx *Tx) InsertObject(tbl TableRef, pk Key, fields []Field) error {
	if err := checkTable(tbl, TableObject); err != nil {
		return err
	}
	if pk.IsZero() {
		return tableErrf(tbl, pk, ErrInvalidKey, "zero primary key")
	}
	if err := validateFields(tbl, pk, fields); err != nil {
		return err
	}

	rec, err := tx.loadObject(tbl.Key, pk)
	if err != nil {
		return err
	}
	if rec.initialized {
		return tableErrf(tbl, pk, ErrAlreadyExists, "")
	}
	for _, f := range fields {
		rec.setField(f.Key, f.Value)
	}
	rec.initialized = true
	tx.storeObject(tbl.Key, pk, &rec)

	if tx.db.verbose {
		tx.db.logf("db: INSERT %v/%v => %d fields", tbl, pk, len(fields))
	}
	return nil
}

// InsertObjectInOwnedList appends a fully populated embedded object to the
// owned list of parent and sets the parent's list-presence bit. The parent
// object itself is not required to exist; the bit lands on an uninitialized
// record that a later InsertObject merges with. Returns the new list length.
func (tx *Tx) InsertObjectInOwnedList(tbl TableRef, parent Key, fields []Field) (int, error) {
	if err := checkTable(tbl, TableOwnedList); err != nil {
		return 0, err
	}
	if parent.IsZero() {
		return 0, tableErrf(tbl, parent, ErrInvalidKey, "zero primary key")
	}
	if err := validateFields(tbl, parent, fields); err != nil {
		return 0, err
	}
	info, err := tx.tableInfo(TableOwnedList, tbl.Key)
	if err != nil {
		return 0, err
	}

	var rec objectRecord
	for _, f := range fields {
		rec.setField(f.Key, f.Value)
	}
	rec.initialized = true

	buck := nonNilBucket(tx.bucket(TableOwnedList, tbl.Key))
	n := listCount(buck, parent)
	valueBuf := valueBytesPool.Get().([]byte)[:0]
	ensure(buck.Put(itemKey(parent, n), appendObjectRecord(valueBuf, &rec)))
	putListCount(buck, parent, n+1)
	tx.markWritten()

	if err := tx.setParentBit(info.ParentTable, parent, info.ParentField); err != nil {
		return 0, err
	}
	if tx.db.verbose {
		tx.db.logf("db: APPEND %v/%v => item %d, %d fields", tbl, parent, n, len(fields))
	}
	return int(n + 1), nil
}

// InsertReferenceInList appends ref to the reference list of parent and sets
// the parent's list-presence bit. The referenced object is deliberately not
// checked for existence; only IndexObject enforces referential integrity.
// Returns the new list length.
func (tx *Tx) InsertReferenceInList(tbl TableRef, parent, ref Key) (int, error) {
	if err := checkTable(tbl, TableReferenceList); err != nil {
		return 0, err
	}
	if parent.IsZero() || ref.IsZero() {
		return 0, tableErrf(tbl, parent, ErrInvalidKey, "zero primary key")
	}
	info, err := tx.tableInfo(TableReferenceList, tbl.Key)
	if err != nil {
		return 0, err
	}

	buck := nonNilBucket(tx.bucket(TableReferenceList, tbl.Key))
	n := listCount(buck, parent)
	ensure(buck.Put(itemKey(parent, n), ref.Raw()))
	putListCount(buck, parent, n+1)
	tx.markWritten()

	if err := tx.setParentBit(info.ParentTable, parent, info.ParentField); err != nil {
		return 0, err
	}
	if tx.db.verbose {
		tx.db.logf("db: APPEND %v/%v => item %d -> %v", tbl, parent, n, ref)
	}
	return int(n + 1), nil
}

// IndexObject maps indexKey to ref in the given index table, overwriting any
// previous mapping (last write wins). Fails with ErrNotFound unless the
// referenced object exists at index-write time; the mapping is not
// maintained afterward.
func (tx *Tx) IndexObject(tbl TableRef, indexKey, ref Key) error {
	if err := checkTable(tbl, TableIndex); err != nil {
		return err
	}
	if indexKey.IsZero() || ref.IsZero() {
		return tableErrf(tbl, indexKey, ErrInvalidKey, "zero primary key")
	}
	info, err := tx.tableInfo(TableIndex, tbl.Key)
	if err != nil {
		return err
	}

	target, err := tx.loadObject(info.ReferencedTable, ref)
	if err != nil {
		return err
	}
	if !target.initialized {
		return tableErrf(ObjectTable(info.ReferencedTable), ref, ErrNotFound, "indexed object does not exist")
	}

	buck := nonNilBucket(tx.bucket(TableIndex, tbl.Key))
	ensure(buck.Put(indexKey.Raw(), ref.Raw()))
	tx.markWritten()

	if tx.db.verbose {
		tx.db.logf("db: INDEX %v/%v -> %v", tbl, indexKey, ref)
	}
	return nil
}

// SetInitializedFieldBit sets or clears a single presence bit on an existing
// object. This is the only supported mutation of an already-inserted
// object's metadata; field values and relations are append-only.
func (tx *Tx) SetInitializedFieldBit(tbl TableRef, pk Key, fk FieldKey, set bool) error {
	if err := checkTable(tbl, TableObject); err != nil {
		return err
	}
	if pk.IsZero() {
		return tableErrf(tbl, pk, ErrInvalidKey, "zero primary key")
	}
	if fk == 0 || fk > MaxFieldKey {
		return tableErrf(tbl, pk, ErrInvalidKey, "field key %d", fk)
	}

	rec, err := tx.loadObject(tbl.Key, pk)
	if err != nil {
		return err
	}
	if !rec.initialized {
		return tableErrf(tbl, pk, ErrNotFound, "")
	}
	if set {
		rec.mask.set(fk)
	} else {
		rec.mask.clear(fk)
	}
	tx.storeObject(tbl.Key, pk, &rec)

	if tx.db.verbose {
		tx.db.logf("db: SETBIT %v/%v field %d = %v", tbl, pk, fk, set)
	}
	return nil
}

// GetObject returns the stored fields of an initialized object in ascending
// field-key order, or found=false if the object is absent or uninitialized.
func (tx *Tx) GetObject(tbl TableRef, pk Key) (fields []Field, found bool, err error) {
	if err := checkTable(tbl, TableObject); err != nil {
		return nil, false, err
	}
	rec, err := tx.loadObject(tbl.Key, pk)
	if err != nil {
		return nil, false, err
	}
	if !rec.initialized {
		return nil, false, nil
	}
	for _, fk := range rec.sortedFieldKeys() {
		fields = append(fields, Field{fk, rec.fields[fk]})
	}
	return fields, true, nil
}

// LookupIndex returns the primary key mapped at indexKey, if any.
func (tx *Tx) LookupIndex(tbl TableRef, indexKey Key) (Key, bool, error) {
	if err := checkTable(tbl, TableIndex); err != nil {
		return Key{}, false, err
	}
	if _, err := tx.tableInfo(TableIndex, tbl.Key); err != nil {
		return Key{}, false, err
	}
	buck := tx.bucket(TableIndex, tbl.Key)
	if buck == nil {
		return Key{}, false, nil
	}
	raw := buck.Get(indexKey.Raw())
	if raw == nil {
		return Key{}, false, nil
	}
	k, err := KeyFromBytes(raw)
	if err != nil {
		return Key{}, false, dataErrf(raw, 0, err, "index entry for %v", indexKey)
	}
	return k, true, nil
}

func (tx *Tx) loadObject(tbl TableKey, pk Key) (objectRecord, error) {
	buck := tx.bucket(TableObject, tbl)
	if buck == nil {
		return objectRecord{}, nil
	}
	return decodeObjectRecord(buck.Get(pk.Raw()))
}

func (tx *Tx) storeObject(tbl TableKey, pk Key, rec *objectRecord) {
	buck := tx.createBucket(TableObject, tbl)
	valueBuf := valueBytesPool.Get().([]byte)[:0]
	ensure(buck.Put(pk.Raw(), appendObjectRecord(valueBuf, rec)))
	tx.markWritten()
}

// setParentBit blindly flips the list-presence bit on the parent object,
// creating an uninitialized record if the parent was never inserted.
func (tx *Tx) setParentBit(parentTbl TableKey, pk Key, fk FieldKey) error {
	rec, err := tx.loadObject(parentTbl, pk)
	if err != nil {
		return err
	}
	if rec.mask.has(fk) {
		return nil
	}
	rec.mask.set(fk)
	tx.storeObject(parentTbl, pk, &rec)
	return nil
}

func listCount(buck storageBucket, pk Key) uint64 {
	raw := buck.Get(pk.Raw())
	if raw == nil {
		return 0
	}
	return binary.BigEndian.Uint64(raw)
}

func putListCount(buck storageBucket, pk Key, n uint64) {
	var raw [8]byte
	binary.BigEndian.PutUint64(raw[:], n)
	ensure(buck.Put(pk.Raw(), raw[:]))
}
