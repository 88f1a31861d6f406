package ogdb

import "slices"

// Field is a single field value supplied to an insert.
type Field struct {
	Key   FieldKey
	Value []byte
}

const objInitialized = 1 << 0 // record flags

// objectRecord is the stored form of an object. The zero value reads as an
// entirely absent object. A record can carry mask bits while initialized is
// still false: list appends flip parent bits without checking that the
// parent was ever inserted.
type objectRecord struct {
	initialized bool
	mask        fieldMask
	fields      map[FieldKey][]byte
}

func (rec *objectRecord) get(fk FieldKey) []byte {
	return rec.fields[fk]
}

func (rec *objectRecord) setField(fk FieldKey, value []byte) {
	if rec.fields == nil {
		rec.fields = make(map[FieldKey][]byte)
	}
	rec.fields[fk] = value
	rec.mask.set(fk)
}

// sortedFieldKeys returns the stored field keys in ascending order, for
// deterministic encoding and dumps.
func (rec *objectRecord) sortedFieldKeys() []FieldKey {
	keys := make([]FieldKey, 0, len(rec.fields))
	for fk := range rec.fields {
		keys = append(keys, fk)
	}
	slices.Sort(keys)
	return keys
}

func appendObjectRecord(buf []byte, rec *objectRecord) []byte {
	var flags uint64
	if rec.initialized {
		flags |= objInitialized
	}
	buf = appendUvarint(buf, flags)
	buf = appendRaw(buf, rec.mask[:])
	buf = appendUvarint(buf, uint64(len(rec.fields)))
	for _, fk := range rec.sortedFieldKeys() {
		buf = appendUvarint(buf, uint64(fk))
		buf = appendVarbytes(buf, rec.fields[fk])
	}
	return buf
}

func decodeObjectRecord(data []byte) (objectRecord, error) {
	var rec objectRecord
	if data == nil {
		return rec, nil
	}
	d := makeByteDecoder(data)

	flags, err := d.Uvarint()
	if err != nil {
		return rec, err
	}
	rec.initialized = flags&objInitialized != 0

	maskRaw, err := d.Raw(fieldMaskLen)
	if err != nil {
		return rec, err
	}
	copy(rec.mask[:], maskRaw)

	n, err := d.Uvarinti()
	if err != nil {
		return rec, err
	}
	if n > MaxObjectFields {
		return rec, dataErrf(data, d.Off(), nil, "field count %d exceeds cap", n)
	}
	if n > 0 {
		rec.fields = make(map[FieldKey][]byte, n)
	}
	for i := 0; i < n; i++ {
		fk, err := d.Uvarint()
		if err != nil {
			return rec, err
		}
		if fk == 0 || fk > uint64(MaxFieldKey) {
			return rec, dataErrf(data, d.Off(), nil, "stored field key %d out of range", fk)
		}
		v, err := d.VarBytes()
		if err != nil {
			return rec, err
		}
		rec.fields[FieldKey(fk)] = v
	}
	return rec, nil
}
