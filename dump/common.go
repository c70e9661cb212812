package dump

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ID identifies a ledger dump in its directory.
type ID struct {
	// Label of the dumped ledger, e.g. production. May contain hyphens.
	Label string
	// Unix time in seconds at which the ledger was dumped.
	Time uint64
}

// String returns '<label>-<time>'.
func (x ID) String() string {
	return fmt.Sprintf("%s-%d", x.Label, x.Time)
}

// Dump file kinds, the file of each kind is named '<ID>-<kind>'.
const (
	kindSummary = "summary.json"
	kindStorage = "storage.csv"
)

func (x ID) fileName(kind string) string {
	return x.String() + "-" + kind
}

// parseID parses ID from the summary file name. It returns false if the file
// is not a dump summary.
func parseID(name string) (ID, bool, error) {
	base, ok := strings.CutSuffix(name, "-"+kindSummary)
	if !ok {
		return ID{}, false, nil
	}

	i := strings.LastIndexByte(base, '-')
	if i <= 0 {
		return ID{}, true, fmt.Errorf("missing label or time in '%s'", base)
	}

	t, err := strconv.ParseUint(base[i+1:], 10, 64)
	if err != nil {
		return ID{}, true, fmt.Errorf("invalid time: %w", err)
	}

	return ID{Label: base[:i], Time: t}, true, nil
}

// binary keys and values of storage items.
var itemEncoding = base64.StdEncoding

// files of a single dump.
type files struct {
	summary, storage *os.File
}

// createFiles creates new files of the dump, existing dump is never touched.
func createFiles(dir string, id ID) (files, error) {
	return openFiles(dir, id, os.O_CREATE|os.O_EXCL|os.O_WRONLY)
}

func openFiles(dir string, id ID, flag int) (files, error) {
	var (
		res files
		err error
	)

	res.summary, err = os.OpenFile(filepath.Join(dir, id.fileName(kindSummary)), flag, 0o600)
	if err != nil {
		return files{}, fmt.Errorf("open summary: %w", err)
	}

	res.storage, err = os.OpenFile(filepath.Join(dir, id.fileName(kindStorage)), flag, 0o600)
	if err != nil {
		_ = res.summary.Close()
		if flag&os.O_CREATE != 0 {
			_ = os.Remove(res.summary.Name())
		}
		return files{}, fmt.Errorf("open storage items: %w", err)
	}

	return res, nil
}

func (x files) close() error {
	return errors.Join(x.summary.Close(), x.storage.Close())
}
