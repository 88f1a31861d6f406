package ogdb

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidKey means a zero table, field or primary key was supplied
	// where a non-zero one is required, or a handle of the wrong table kind.
	ErrInvalidKey = errors.New("invalid key")

	// ErrAlreadyExists means a duplicate table creation or object insert.
	ErrAlreadyExists = errors.New("already exists")

	// ErrNotFound means an operation against an unregistered relation table,
	// an index write referencing a missing object, or a presence-bit change
	// on an uninitialized object.
	ErrNotFound = errors.New("not found")

	// ErrTooManyFields means an insert supplied more than MaxObjectFields.
	ErrTooManyFields = errors.New("too many fields")

	// ErrFieldTooLarge means a field value exceeds MaxFieldValueSize.
	ErrFieldTooLarge = errors.New("field value too large")

	// ErrBufferTooSmall means the query result does not fit the declared
	// buffer size.
	ErrBufferTooSmall = errors.New("result buffer too small")

	// ErrBufferTooLarge means the declared buffer size exceeds MaxResultSize.
	ErrBufferTooLarge = errors.New("result buffer limit exceeded")

	// ErrUnsupported means an unrecognized query or batch operation kind.
	ErrUnsupported = errors.New("unsupported")

	// ErrInvalidSelection means a malformed selection set (zero field key,
	// missing frames, bad root table kind).
	ErrInvalidSelection = errors.New("invalid selection")

	// ErrInternal wraps resolver invariant violations (stack or resolution
	// table exhausted) when the database is not running in strict mode.
	// Strict databases panic instead.
	ErrInternal = errors.New("internal invariant violation")
)

type DataError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func dataErrf(data []byte, off int, err error, format string, args ...any) error {
	return &DataError{data, off, err, fmt.Sprintf(format, args...)}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	n := len(e.Data)
	if n <= prefixLen+suffixLen {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x", e.Msg, e.Err, n, e.Data)
		} else {
			return fmt.Sprintf("%s: (%d) %x", e.Msg, n, e.Data)
		}
	} else {
		p, s := e.Data[:prefixLen], e.Data[n-suffixLen:]
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x...%x", e.Msg, e.Err, n, p, s)
		} else {
			return fmt.Sprintf("%s: (%d) %x...%x", e.Msg, n, p, s)
		}
	}
}

type TableError struct {
	Table TableRef
	Key   Key
	Msg   string
	Err   error
}

func tableErrf(tbl TableRef, key Key, err error, format string, args ...any) error {
	return &TableError{tbl, key, fmt.Sprintf(format, args...), err}
}

func (e *TableError) Unwrap() error {
	return e.Err
}

func (e *TableError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Table.String())
	if !e.Key.IsZero() {
		buf.WriteByte('/')
		buf.WriteString(e.Key.String())
	}
	if e.Msg != "" {
		buf.WriteString(": ")
		buf.WriteString(e.Msg)
		if e.Err != nil {
			buf.WriteString(": ")
			buf.WriteString(e.Err.Error())
		}
	} else if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}
