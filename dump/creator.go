package dump

import (
	"encoding/csv"
	"encoding/json"
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/core/storage"
	"github.com/nspcc-dev/payroll-ledger/payroll"
)

// Creator dumps the payroll ledger. Output file format:
//
//	'<label>-<time>-summary.json': JSON summary of the ledger state
//	'<label>-<time>-storage.csv': CSV of the ledger storage
//
// Storage CSV are 'section,key,value' where section stands for the storage
// key prefix and binary key-value are base64-encoded.
//
// Use IterateDumps to access existing dumps.
type Creator struct {
	files   files
	summary Summary
	items   *csv.Writer
}

// NewCreator returns Creator which dumps the ledger into given directory. The
// dump is identified by specified ID. Resulting Creator should be closed when
// finished working with it.
//
// NewCreator fails if dump with provided ID already exists.
func NewCreator(dir string, id ID) (*Creator, error) {
	f, err := createFiles(dir, id)
	if err != nil {
		return nil, fmt.Errorf("create dump %s: %w", id, err)
	}

	return &Creator{files: f, items: csv.NewWriter(f.storage)}, nil
}

// SetSummary sets the ledger summary written on Flush.
func (x *Creator) SetSummary(s Summary) {
	x.summary = s
}

// AddSection returns StorageWriter for the named part of the ledger storage.
func (x *Creator) AddSection(name string) *StorageWriter {
	return &StorageWriter{
		name: name,
		csv:  x.items,
	}
}

// DumpStore writes all the ledger items of the store, one section per key
// prefix.
func (x *Creator) DumpStore(s storage.Store) error {
	for _, p := range payroll.Prefixes {
		var (
			w   = x.AddSection(sectionName(p))
			err error
		)

		s.Seek(storage.SeekRange{Prefix: []byte{p}}, func(k, v []byte) bool {
			err = w.Write(k, v)
			return err == nil
		})
		if err != nil {
			return fmt.Errorf("dump section '%s': %w", sectionName(p), err)
		}
	}
	return nil
}

// Flush flushes accumulated dump to the file system.
func (x *Creator) Flush() error {
	enc := json.NewEncoder(x.files.summary)
	enc.SetIndent("", " ")
	if err := enc.Encode(x.summary); err != nil {
		return fmt.Errorf("encode ledger summary to JSON: %w", err)
	}

	x.items.Flush()
	if err := x.items.Error(); err != nil {
		return fmt.Errorf("flush CSV data: %w", err)
	}

	return nil
}

// Close closes dump files. The Creator is unusable after it.
func (x *Creator) Close() error {
	return x.files.close()
}

// StorageWriter writes data into the superior section of the storage dump.
type StorageWriter struct {
	name string
	csv  *csv.Writer
}

// Write saves given binary key-value into the section dump as storage item.
func (x *StorageWriter) Write(key, value []byte) error {
	err := x.csv.Write([]string{
		x.name,
		itemEncoding.EncodeToString(key),
		itemEncoding.EncodeToString(value),
	})
	if err != nil {
		return fmt.Errorf("write storage item as CSV data: %w", err)
	}

	return nil
}

func sectionName(prefix byte) string {
	return string([]byte{prefix})
}
