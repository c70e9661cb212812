package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/core/storage"
	"github.com/nspcc-dev/payroll-ledger/config"
	"github.com/nspcc-dev/payroll-ledger/dump"
	"github.com/nspcc-dev/payroll-ledger/payroll"
	"github.com/nspcc-dev/payroll-ledger/rail"
)

func main() {
	configPath := flag.String("config", "", "Path to the payroll daemon configuration file")
	label := flag.String("label", "", "Label of the ledger environment (e.g. 'staging')")
	rootDir := flag.String("dir", "testdata", "Directory with the dumps")
	restore := flag.Uint64("restore", 0, "Time of the labeled dump to restore into the configured storage instead of dumping")

	flag.Parse()

	if *label == "" {
		log.Fatal("missing ledger label")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(fmt.Errorf("load config: %w", err))
	}

	store, err := storage.NewStore(cfg.Storage)
	if err != nil {
		log.Fatal(fmt.Errorf("open ledger storage: %w", err))
	}

	if *restore != 0 {
		err = _restore(store, *rootDir, dump.ID{Label: *label, Time: *restore})
	} else {
		err = _dump(store, *rootDir, *label)
	}

	_ = store.Close()

	if err != nil {
		log.Fatal(err)
	}
}

func _dump(store storage.Store, rootDir, label string) error {
	l, err := payroll.Load(store, rail.NewMemory())
	if errors.Is(err, payroll.ErrNotInitialized) {
		return errors.New("ledger storage is empty, nothing to dump")
	}
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}

	err = os.MkdirAll(rootDir, 0700)
	if err != nil {
		return fmt.Errorf("create root dir: %w", err)
	}

	summary, err := dump.NewSummary(l)
	if err != nil {
		return fmt.Errorf("read ledger summary: %w", err)
	}

	id := dump.ID{
		Label: label,
		Time:  uint64(time.Now().Unix()),
	}

	d, err := dump.NewCreator(rootDir, id)
	if err != nil {
		return fmt.Errorf("init local dumper: %w", err)
	}

	defer d.Close()

	d.SetSummary(summary)

	err = d.DumpStore(store)
	if err != nil {
		return err
	}

	err = d.Flush()
	if err != nil {
		return fmt.Errorf("flush dump: %w", err)
	}

	log.Printf("Payroll ledger is successfully dumped to '%s/' as '%s'\n", rootDir, id)

	return nil
}

func _restore(store storage.Store, rootDir string, id dump.ID) error {
	var (
		found bool
		err   error
	)

	iterErr := dump.IterateDumps(rootDir, func(dumpID dump.ID, r *dump.Reader) {
		if found || dumpID != id {
			return
		}
		found = true
		err = r.Restore(store)
	})
	switch {
	case iterErr != nil:
		return fmt.Errorf("iterate dumps: %w", iterErr)
	case !found:
		return fmt.Errorf("dump '%s' not found in '%s/'", id, rootDir)
	case err != nil:
		return fmt.Errorf("restore dump '%s': %w", id, err)
	}

	log.Printf("Payroll ledger is successfully restored from '%s'\n", id)

	return nil
}
