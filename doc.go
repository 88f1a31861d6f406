/*
Package ogdb implements a schema-less object-graph database on top of a
key-value store (in this case, on top of Bolt).

We implement:

1. Object tables, mapping 128-bit primary keys to objects made of small
integer-keyed byte fields with a presence bitmap.

2. Owned lists, append-only ordered lists of embedded objects owned by a
parent object (1-to-many composition).

3. Reference lists, append-only ordered lists of primary keys pointing into
another object table (1-to-many association).

4. Indexes, single-valued secondary-key lookups into an object table, checked
for referential integrity at write time.

5. A selection-set resolver that walks the object graph with an explicit
array-backed stack and serializes the visited fields into a flat binary
result buffer in a single pass.

# Technical Details

**Buckets.**
Each table kind gets a root bucket ("obj", "own", "ref", "idx") with one
nested bucket per table key. Relation table linkage lives in the "tables"
bucket, one msgpack record per (kind, table key). Object tables have no
registration step; their buckets appear on first insert.

**Object record encoding**:
1. Flags (uvarint); bit 0 is the initialized flag.
2. Field presence mask (31 raw bytes, 248 bits; bit k-1 covers field k).
3. Field count (uvarint).
4. For each field: field key (uvarint), value length (uvarint), value bytes.

A record may exist with the initialized flag clear: list appends set mask
bits on parents that have not been inserted yet. Such records read as absent.

**List encoding**: the bare 16-byte primary key maps to an 8-byte big-endian
item count; the key followed by an 8-byte big-endian position maps to the
item (an embedded object record for owned lists, a 16-byte primary key for
reference lists).

**Result buffer**: 4-byte big-endian payload length, then resolved field
values in selection order. Scalar values are prefixed with a 3-byte
big-endian length unless the selection declares the size known; lists
contribute a 16-byte big-endian item count followed by each item's fields
inlined back to back.
*/
package ogdb
