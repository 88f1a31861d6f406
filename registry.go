package ogdb

import (
	"encoding/binary"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// tablesBucket holds one linkage record per relation table, keyed by kind
// byte + 4-byte big-endian table key. Object tables are not registered.
const tablesBucket = "tables"

// tableInfo is the persisted linkage metadata of a relation table. A record
// is written exactly once; its presence is the AlreadyExists guard.
type tableInfo struct {
	ReferencedTable TableKey `msgpack:"r,omitempty"`
	ParentTable     TableKey `msgpack:"p,omitempty"`
	ParentField     FieldKey `msgpack:"f,omitempty"`
}

func tableMetaKey(kind TableKind, key TableKey) []byte {
	buf := make([]byte, 5)
	buf[0] = byte(kind)
	binary.BigEndian.PutUint32(buf[1:], uint32(key))
	return buf
}

func tableMemoKey(kind TableKind, key TableKey) string {
	return fmt.Sprintf("tbl:%v:%d", kind, key)
}

// CreateOwnedListTable registers an owned-list table: each object of
// parentTbl owns an ordered list of embedded objects, signaled through bit
// parentField of the parent's mask.
func (tx *Tx) CreateOwnedListTable(tbl, parentTbl TableKey, parentField FieldKey) error {
	if tbl == 0 || parentTbl == 0 {
		return tableErrf(OwnedListTable(tbl), Key{}, ErrInvalidKey, "zero table key")
	}
	if parentField == 0 || parentField > MaxFieldKey {
		return tableErrf(OwnedListTable(tbl), Key{}, ErrInvalidKey, "parent field key %d", parentField)
	}
	return tx.createTable(TableOwnedList, tbl, &tableInfo{
		ParentTable: parentTbl,
		ParentField: parentField,
	})
}

// CreateReferenceListTable registers a reference-list table: each object of
// parentTbl owns an ordered list of primary keys pointing into refTbl.
func (tx *Tx) CreateReferenceListTable(tbl, refTbl, parentTbl TableKey, parentField FieldKey) error {
	if tbl == 0 || refTbl == 0 || parentTbl == 0 {
		return tableErrf(ReferenceListTable(tbl), Key{}, ErrInvalidKey, "zero table key")
	}
	if parentField == 0 || parentField > MaxFieldKey {
		return tableErrf(ReferenceListTable(tbl), Key{}, ErrInvalidKey, "parent field key %d", parentField)
	}
	return tx.createTable(TableReferenceList, tbl, &tableInfo{
		ReferencedTable: refTbl,
		ParentTable:     parentTbl,
		ParentField:     parentField,
	})
}

// CreateIndexTable registers an index table: a single-valued secondary-key
// lookup into refTbl. Entries are written by IndexObject only when the
// referenced object exists.
func (tx *Tx) CreateIndexTable(tbl, refTbl TableKey) error {
	if tbl == 0 || refTbl == 0 {
		return tableErrf(IndexTable(tbl), Key{}, ErrInvalidKey, "zero table key")
	}
	return tx.createTable(TableIndex, tbl, &tableInfo{
		ReferencedTable: refTbl,
	})
}

func (tx *Tx) createTable(kind TableKind, key TableKey, info *tableInfo) error {
	metaBuck := nonNilBucket(tx.stx.Bucket(tablesBucket, ""))
	metaKey := tableMetaKey(kind, key)
	if metaBuck.Get(metaKey) != nil {
		return tableErrf(TableRef{kind, key}, Key{}, ErrAlreadyExists, "")
	}

	raw, err := msgpack.Marshal(info)
	if err != nil {
		panic(fmt.Errorf("failed to encode table info: %w", err))
	}
	ensure(metaBuck.Put(metaKey, raw))
	tx.createBucket(kind, key)
	tx.markWritten()

	if tx.memo == nil {
		tx.memo = make(map[string]any)
	}
	tx.memo[tableMemoKey(kind, key)] = info

	if tx.db.verbose {
		tx.db.logf("db: CREATE %v/%d ref=%d parent=%d.%d", kind, key, info.ReferencedTable, info.ParentTable, info.ParentField)
	}
	return nil
}

// tableInfo loads the linkage record of a relation table, memoized per
// transaction. Returns ErrNotFound for unregistered tables.
func (tx *Tx) tableInfo(kind TableKind, key TableKey) (*tableInfo, error) {
	return Memo(tx, tableMemoKey(kind, key), func() (*tableInfo, error) {
		metaBuck := nonNilBucket(tx.stx.Bucket(tablesBucket, ""))
		raw := metaBuck.Get(tableMetaKey(kind, key))
		if raw == nil {
			return nil, tableErrf(TableRef{kind, key}, Key{}, ErrNotFound, "table not registered")
		}
		info := new(tableInfo)
		if err := msgpack.Unmarshal(raw, info); err != nil {
			return nil, dataErrf(raw, 0, err, "failed to decode table info for %v/%d", kind, key)
		}
		return info, nil
	})
}

// TableInfo is the public view of a relation table's linkage, used by Dump
// and introspection.
type TableInfo struct {
	Table           TableRef
	ReferencedTable TableKey
	ParentTable     TableKey
	ParentField     FieldKey
}

// Tables enumerates all registered relation tables in (kind, key) order.
func (tx *Tx) Tables() ([]TableInfo, error) {
	metaBuck := nonNilBucket(tx.stx.Bucket(tablesBucket, ""))
	var out []TableInfo
	c := metaBuck.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		if len(k) != 5 {
			return nil, dataErrf(k, 0, nil, "malformed table meta key")
		}
		info := new(tableInfo)
		if err := msgpack.Unmarshal(v, info); err != nil {
			return nil, dataErrf(v, 0, err, "failed to decode table info")
		}
		out = append(out, TableInfo{
			Table:           TableRef{TableKind(k[0]), TableKey(binary.BigEndian.Uint32(k[1:]))},
			ReferencedTable: info.ReferencedTable,
			ParentTable:     info.ParentTable,
			ParentField:     info.ParentField,
		})
	}
	return out, nil
}
