package ogdb

import (
	"encoding/binary"
	"fmt"
	"strings"
)

const indentStep = "  "

var (
	dumpSep1 = strings.Repeat("=", 80)
	dumpSep2 = strings.Repeat("-", 60)
)

// Dump renders every registered relation table and every object-table bucket
// in key order, for debugging and tests.
func (tx *Tx) Dump() string {
	var buf strings.Builder

	tables, err := tx.Tables()
	if err != nil {
		fmt.Fprintf(&buf, "ERROR: %v\n", err)
		return buf.String()
	}

	fmt.Fprintln(&buf, dumpSep1)
	fmt.Fprintf(&buf, "%d relation tables\n", len(tables))
	for _, ti := range tables {
		switch ti.Table.Kind {
		case TableOwnedList:
			fmt.Fprintf(&buf, "%s%s: parent %d field %d\n", indentStep, ti.Table, ti.ParentTable, ti.ParentField)
		case TableReferenceList:
			fmt.Fprintf(&buf, "%s%s: parent %d field %d -> obj/%d\n", indentStep, ti.Table, ti.ParentTable, ti.ParentField, ti.ReferencedTable)
		case TableIndex:
			fmt.Fprintf(&buf, "%s%s: -> obj/%d\n", indentStep, ti.Table, ti.ReferencedTable)
		}
	}

	for _, ti := range tables {
		tx.dumpTable(&buf, ti.Table)
	}
	return buf.String()
}

func (tx *Tx) dumpTable(buf *strings.Builder, tbl TableRef) {
	buck := tx.bucket(tbl.Kind, tbl.Key)
	if buck == nil {
		return
	}
	fmt.Fprintln(buf, dumpSep2)
	fmt.Fprintf(buf, "%s (%d keys)\n", tbl, buck.KeyCount())

	c := buck.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		label := rpad(hexstr(k), 50, ' ')
		switch {
		case tbl.Kind == TableIndex, len(k) == 24 && tbl.Kind == TableReferenceList:
			fmt.Fprintf(buf, "%s%s -> %s\n", indentStep, label, hexstr(v))
		case len(k) == 16 && tbl.Kind != TableObject:
			fmt.Fprintf(buf, "%s%s count=%d\n", indentStep, label, binary.BigEndian.Uint64(v))
		default:
			rec, err := decodeObjectRecord(v)
			if err != nil {
				fmt.Fprintf(buf, "%s%s ERROR: %v\n", indentStep, label, err)
				continue
			}
			fmt.Fprintf(buf, "%s%s init=%v fields=%d\n", indentStep, label, rec.initialized, len(rec.fields))
			for _, fk := range rec.sortedFieldKeys() {
				fmt.Fprintf(buf, "%s%s%3d = %s\n", indentStep, indentStep, fk, hexstr(rec.fields[fk]))
			}
		}
	}
}

// DumpObjectTable renders one object table, which Dump cannot discover on
// its own (object tables are unregistered).
func (tx *Tx) DumpObjectTable(tbl TableKey) string {
	var buf strings.Builder
	tx.dumpTable(&buf, ObjectTable(tbl))
	return buf.String()
}
