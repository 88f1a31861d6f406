package ogdb

import (
	"fmt"
	"sync/atomic"
	"time"

	"go.etcd.io/bbolt"
)

type DB struct {
	stg     storage
	logf    func(format string, args ...any)
	verbose bool
	strict  bool

	lastSize   atomic.Int64
	ReadCount  atomic.Uint64
	WriteCount atomic.Uint64
}

type Options struct {
	Logf      func(format string, args ...any)
	Verbose   bool
	IsTesting bool
	MmapSize  int
}

// Open opens a Bolt-backed database at path.
func Open(path string, opt Options) (*DB, error) {
	bopt := new(bbolt.Options)
	*bopt = *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	if opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
		bopt.InitialMmapSize = 1024 * 1024 * 5
	} else {
		bopt.InitialMmapSize = 1024 * 1024 * 1024
		bopt.FreelistType = bbolt.FreelistMapType
	}
	if opt.MmapSize != 0 {
		bopt.InitialMmapSize = opt.MmapSize
	}

	bdb, err := bbolt.Open(path, 0666, bopt)
	if err != nil {
		return nil, fmt.Errorf("ogdb: %w", err)
	}

	return open(newBoltStorage(bdb), opt), nil
}

// OpenMemory opens a transient in-memory database, mainly for tests.
func OpenMemory(opt Options) *DB {
	return open(newMemStorage(), opt)
}

func open(stg storage, opt Options) *DB {
	db := &DB{
		stg:     stg,
		logf:    opt.Logf,
		verbose: opt.Verbose,
		strict:  opt.IsTesting,
	}
	if db.logf == nil {
		db.logf = func(format string, args ...any) {}
	}

	db.Write(func(tx *Tx) {
		_ = must(tx.stx.CreateBucket(tablesBucket, ""))
	})

	return db
}

func (db *DB) Size() int64 {
	return db.lastSize.Load()
}

func (db *DB) Close() {
	err := db.stg.Close()
	if err != nil {
		panic(fmt.Errorf("ogdb: closing: %w", err))
	}
}
