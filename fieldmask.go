package ogdb

// fieldMaskLen is the mask size in bytes, covering MaxFieldKey bits plus two
// spare.
const fieldMaskLen = 31

// fieldMask tracks field presence: bit (k-1) is set iff field k has a stored
// value, or, for list and reference fields, iff the relation is non-empty.
// The two meanings deliberately share one bitmap; the resolver's skip logic
// relies on it.
type fieldMask [fieldMaskLen]byte

func (m *fieldMask) set(fk FieldKey) {
	bit := uint(fk - 1)
	m[bit>>3] |= 1 << (bit & 7)
}

func (m *fieldMask) clear(fk FieldKey) {
	bit := uint(fk - 1)
	m[bit>>3] &^= 1 << (bit & 7)
}

func (m *fieldMask) has(fk FieldKey) bool {
	if fk == 0 || fk > MaxFieldKey {
		return false
	}
	bit := uint(fk - 1)
	return m[bit>>3]&(1<<(bit&7)) != 0
}

func (m *fieldMask) isZero() bool {
	for _, b := range m {
		if b != 0 {
			return false
		}
	}
	return true
}

func (m *fieldMask) count() int {
	var n int
	for fk := FieldKey(1); fk <= MaxFieldKey; fk++ {
		if m.has(fk) {
			n++
		}
	}
	return n
}
