// Command grausctl is a small inspection and maintenance tool for a
// GrausDb store directory. It is ambient tooling around the engine, not
// part of the storage engine's correctness surface: no network, no
// daemon, just a handful of subcommands that open a store, perform one
// operation, and exit.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/iamNilotpal/grausdb"
	"github.com/iamNilotpal/grausdb/pkg/errors"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "get":
		err = runGet(args)
	case "set":
		err = runSet(args)
	case "remove":
		err = runRemove(args)
	case "stat":
		err = runStat(args)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		reportError(err)
		os.Exit(1)
	}
}

// reportError prints err along with whatever structured context
// pkg/errors can recover from it, so an operator sees more than a bare
// message for storage and index failures.
func reportError(err error) {
	fmt.Fprintf(os.Stderr, "grausctl: %v (code=%s)\n", err, errors.GetErrorCode(err))

	switch {
	case errors.IsCorruptLog(err):
		fmt.Fprintln(os.Stderr, "  the store's on-disk log appears corrupted; consider restoring from backup")
	case errors.IsIO(err):
		fmt.Fprintln(os.Stderr, "  check disk space and filesystem permissions")
	}

	if se, ok := errors.AsStorageError(err); ok {
		if se.Path() != "" {
			fmt.Fprintf(os.Stderr, "  path: %s\n", se.Path())
		}
		if se.FileName() != "" {
			fmt.Fprintf(os.Stderr, "  file: %s\n", se.FileName())
		}
	}
	if ie, ok := errors.AsIndexError(err); ok && ie.Key() != "" {
		fmt.Fprintf(os.Stderr, "  key: %s\n", ie.Key())
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: grausctl <get|set|remove|stat> -dir <path> [args]")
}

func openStore(dir string) (*grausdb.DB, error) {
	if dir == "" {
		return nil, fmt.Errorf("-dir is required")
	}
	return grausdb.Open("grausctl", dir)
}

func runGet(args []string) error {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	dir := fs.String("dir", "", "store directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: grausctl get -dir <path> <key>")
	}

	db, err := openStore(*dir)
	if err != nil {
		return err
	}
	defer db.CloseStore()

	value, ok, err := db.Get([]byte(fs.Arg(0)))
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("(not found)")
		return nil
	}
	fmt.Printf("%s\n", value)
	return nil
}

func runSet(args []string) error {
	fs := flag.NewFlagSet("set", flag.ExitOnError)
	dir := fs.String("dir", "", "store directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("usage: grausctl set -dir <path> <key> <value>")
	}

	db, err := openStore(*dir)
	if err != nil {
		return err
	}
	defer db.CloseStore()

	return db.Set([]byte(fs.Arg(0)), []byte(fs.Arg(1)))
}

func runRemove(args []string) error {
	fs := flag.NewFlagSet("remove", flag.ExitOnError)
	dir := fs.String("dir", "", "store directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: grausctl remove -dir <path> <key>")
	}

	db, err := openStore(*dir)
	if err != nil {
		return err
	}
	defer db.CloseStore()

	return db.Remove([]byte(fs.Arg(0)))
}

func runStat(args []string) error {
	fs := flag.NewFlagSet("stat", flag.ExitOnError)
	dir := fs.String("dir", "", "store directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := openStore(*dir)
	if err != nil {
		return err
	}
	defer db.CloseStore()

	fmt.Printf("active_generation: %d\n", db.ActiveGeneration())
	fmt.Printf("uncompacted_bytes: %d\n", db.UncompactedBytes())
	return nil
}
