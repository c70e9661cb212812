package dump

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/nspcc-dev/neo-go/pkg/core/storage"
	"github.com/nspcc-dev/payroll-ledger/payroll"
)

// IterateDumps iterates over all the dumps made by the Creator in the
// specified directory, and passes ID and Reader of each dump into f.
func IterateDumps(dir string, f func(ID, *Reader)) error {
	var r Reader

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir {
				return filepath.SkipDir
			}
			return nil
		}

		id, ok, err := parseID(d.Name())
		if !ok {
			return nil
		}
		if err != nil {
			return fmt.Errorf("dump ID of '%s': %w", d.Name(), err)
		}

		dumpFiles, err := openFiles(dir, id, os.O_RDONLY)
		if err != nil {
			return fmt.Errorf("dump %s: %w", id, err)
		}

		err = r.read(dumpFiles.summary, dumpFiles.storage)
		if closeErr := dumpFiles.close(); err == nil {
			err = closeErr
		}
		if err != nil {
			return fmt.Errorf("read dump %s: %w", id, err)
		}

		f(id, &r)

		return nil
	})
}

type kv struct{ k, v []byte }

// Reader reads the ledger collected in the superior dump.
type Reader struct {
	summary  Summary
	sections []string
	mStorage map[string][]kv
}

func (x *Reader) read(rSummary, rStorageItems io.Reader) error {
	x.summary = Summary{}
	err := json.NewDecoder(rSummary).Decode(&x.summary)
	if err != nil {
		return fmt.Errorf("decode ledger summary from JSON: %w", err)
	}

	var rec []string

	_csv := csv.NewReader(rStorageItems)
	_csv.FieldsPerRecord = 3
	_csv.ReuseRecord = true

	x.sections = x.sections[:0]
	if x.mStorage != nil {
		clear(x.mStorage)
	} else {
		x.mStorage = make(map[string][]kv)
	}

	for {
		rec, err = _csv.Read()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("read next CSV record: %w", err)
		}

		var _kv kv

		// out-of-range safety guaranteed by csv settings
		_kv.k, err = itemEncoding.DecodeString(rec[1])
		if err != nil {
			return fmt.Errorf("decode storage item key: %w", err)
		}

		_kv.v, err = itemEncoding.DecodeString(rec[2])
		if err != nil {
			return fmt.Errorf("decode storage item value: %w", err)
		}

		if _, ok := x.mStorage[rec[0]]; !ok {
			x.sections = append(x.sections, rec[0])
		}
		x.mStorage[rec[0]] = append(x.mStorage[rec[0]], _kv)
	}
}

// Summary returns the ledger summary from the superior dump.
func (x *Reader) Summary() Summary {
	return x.summary
}

// IterateStorage iterates over all storage items from the superior dump in
// the dumped order and passes them into f.
func (x *Reader) IterateStorage(f func(section string, key, value []byte)) {
	for _, name := range x.sections {
		kvs := x.mStorage[name]
		for i := range kvs {
			f(name, kvs[i].k, kvs[i].v)
		}
	}
}

// Restore writes all the dumped items into the store. The store must have no
// ledger items.
func (x *Reader) Restore(s storage.Store) error {
	for _, p := range payroll.Prefixes {
		var found bool
		s.Seek(storage.SeekRange{Prefix: []byte{p}}, func(_, _ []byte) bool {
			found = true
			return false
		})
		if found {
			return fmt.Errorf("store already has ledger items with prefix '%s'", sectionName(p))
		}
	}

	tx := storage.NewMemCachedStore(s)
	x.IterateStorage(func(_ string, key, value []byte) {
		tx.Put(key, value)
	})

	if _, err := tx.PersistSync(); err != nil {
		return fmt.Errorf("persist restored items: %w", err)
	}
	return nil
}
