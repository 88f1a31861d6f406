package ogdb

import (
	"fmt"
	"runtime/debug"
	"strconv"
)

type Txish interface {
	DBTx() *Tx
}

type Tx struct {
	db      *DB
	stx     storageTx
	written bool

	memo map[string]any
}

func (db *DB) newTx(stx storageTx) *Tx {
	return &Tx{db: db, stx: stx}
}

// DBTx implements Txish
func (tx *Tx) DBTx() *Tx {
	return tx
}

func (tx *Tx) DB() *DB {
	return tx.db
}

func (tx *Tx) IsWritable() bool {
	return tx.stx.Writable()
}

// Tx runs f inside a transaction. For writable transactions, any error or
// panic from f rolls the whole transaction back, so a multi-step mutation is
// applied all-or-nothing.
func (db *DB) Tx(writable bool, f func(tx *Tx) error) error {
	stx, err := db.stg.BeginTx(writable)
	if err != nil {
		return err
	}
	if writable {
		db.WriteCount.Add(1)
	} else {
		db.ReadCount.Add(1)
	}

	tx := db.newTx(stx)
	funcErr := safelyCall(f, tx)
	db.lastSize.Store(stx.Size())
	if funcErr != nil || !writable {
		rollbackErr := stx.Rollback()
		if funcErr != nil {
			return funcErr
		}
		return rollbackErr
	}
	return stx.Commit()
}

type panicked struct {
	reason interface{}
	stack  string
}

func (p panicked) Error() string {
	return fmt.Sprintf("panic: %v\n\n%s", p.reason, p.stack)
}

func safelyCall(fn func(*Tx) error, tx *Tx) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = panicked{p, string(debug.Stack())}
		}
	}()
	return fn(tx)
}

func (db *DB) BeginRead() *Tx {
	stx, err := db.stg.BeginTx(false)
	if err != nil {
		panic(fmt.Errorf("failed to start reading: %w", err))
	}
	db.ReadCount.Add(1)
	return db.newTx(stx)
}

func (db *DB) Read(f func(tx *Tx)) {
	tx := db.BeginRead()
	defer tx.Close()
	f(tx)
}

func (db *DB) ReadErr(f func(tx *Tx) error) error {
	tx := db.BeginRead()
	defer tx.Close()
	return f(tx)
}

func (db *DB) Write(f func(tx *Tx)) {
	tx := db.BeginUpdate()
	defer tx.Close()
	f(tx)
	err := tx.Commit()
	if err != nil {
		panic(fmt.Errorf("commit: %w", err))
	}
}

func (db *DB) BeginUpdate() *Tx {
	stx, err := db.stg.BeginTx(true)
	if err != nil {
		panic(fmt.Errorf("db.BeginTx(true) failed: %w", err))
	}
	db.WriteCount.Add(1)
	return db.newTx(stx)
}

func (tx *Tx) markWritten() {
	tx.written = true
}

func (tx *Tx) Close() {
	// The only errors Rollback returns signal that we've already committed
	// (which is the normal flow).
	_ = tx.stx.Rollback()
}

func (tx *Tx) Commit() error {
	return tx.stx.Commit()
}

// bucket returns the data bucket of the given table, nil if it was never
// written.
func (tx *Tx) bucket(kind TableKind, key TableKey) storageBucket {
	return tx.stx.Bucket(kind.String(), strconv.FormatUint(uint64(key), 10))
}

// createBucket returns the data bucket of the given table, creating it and
// its kind root on first use.
func (tx *Tx) createBucket(kind TableKind, key TableKey) storageBucket {
	return must(tx.stx.CreateBucket(kind.String(), strconv.FormatUint(uint64(key), 10)))
}

func (tx *Tx) GetMemo(key string) (any, bool) {
	v, found := tx.memo[key]
	return v, found
}

func (tx *Tx) Memo(key string, f func() (any, error)) (any, error) {
	v, found := tx.memo[key]
	if found {
		if e, ok := v.(error); ok {
			return nil, e
		}
		return v, nil
	}

	if tx.memo == nil {
		tx.memo = make(map[string]any)
	}

	v, err := f()
	if err != nil {
		tx.memo[key] = err
	} else {
		tx.memo[key] = v
	}
	return v, err
}

func Memo[T any](txish Txish, key string, f func() (T, error)) (T, error) {
	tx := txish.DBTx()
	v, err := tx.Memo(key, func() (any, error) {
		return f()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), err
}
