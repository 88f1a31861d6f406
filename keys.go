package ogdb

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// Key is a 128-bit primary key. Keys are supplied by the caller; the zero
// key is reserved and means "no object".
type Key [16]byte

// NewKey returns a random (UUIDv4-based) key.
func NewKey() Key {
	return Key(uuid.New())
}

func KeyFromUUID(u uuid.UUID) Key {
	return Key(u)
}

func KeyFromBytes(b []byte) (Key, error) {
	if len(b) != 16 {
		return Key{}, fmt.Errorf("key must be 16 bytes, got %d", len(b))
	}
	return Key(b), nil
}

func (k Key) IsZero() bool {
	return k == Key{}
}

func (k Key) UUID() uuid.UUID {
	return uuid.UUID(k)
}

func (k Key) String() string {
	return uuid.UUID(k).String()
}

func (k Key) Raw() []byte {
	return k[:]
}

// FieldKey identifies a field within an object, 1..MaxFieldKey; 0 is
// reserved and means "no field".
type FieldKey uint8

// TableKey identifies a table within one of the four table-kind registries;
// 0 is reserved and means "no table".
type TableKey uint32

const (
	// MaxFieldKey is the largest usable field key; the presence mask covers
	// bits 0..MaxFieldKey-1.
	MaxFieldKey FieldKey = 246

	// MaxObjectFields caps the number of fields written by a single insert.
	MaxObjectFields = 246

	// MaxFieldValueSize caps the byte length of a single field value.
	MaxFieldValueSize = 65536
)

// TableKind tells which registry a table key belongs to. A table key is
// meaningless without its kind; the same numeric key may exist in several
// registries.
type TableKind uint8

const (
	TableObject TableKind = iota + 1
	TableOwnedList
	TableReferenceList
	TableIndex
)

func (k TableKind) String() string {
	switch k {
	case TableObject:
		return "obj"
	case TableOwnedList:
		return "own"
	case TableReferenceList:
		return "ref"
	case TableIndex:
		return "idx"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// TableRef is a tagged table handle (kind + key). Operations verify the kind
// so an owned-list key cannot be passed where an index key is expected.
type TableRef struct {
	Kind TableKind
	Key  TableKey
}

func ObjectTable(key TableKey) TableRef {
	return TableRef{TableObject, key}
}

func OwnedListTable(key TableKey) TableRef {
	return TableRef{TableOwnedList, key}
}

func ReferenceListTable(key TableKey) TableRef {
	return TableRef{TableReferenceList, key}
}

func IndexTable(key TableKey) TableRef {
	return TableRef{TableIndex, key}
}

func (t TableRef) IsZero() bool {
	return t.Kind == 0 && t.Key == 0
}

func (t TableRef) String() string {
	return fmt.Sprintf("%v/%d", t.Kind, t.Key)
}

// itemKey addresses list item i under parent key pk: pk followed by an
// 8-byte big-endian position. The bare 16-byte pk holds the item count, so
// the two never collide.
func itemKey(pk Key, i uint64) []byte {
	buf := make([]byte, 24)
	copy(buf, pk[:])
	binary.BigEndian.PutUint64(buf[16:], i)
	return buf
}
