package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/lazypower/degrade/internal/store"
	"github.com/spf13/cobra"
)

var saveCmd = &cobra.Command{
	Use:   "save FILE",
	Short: "Write a point-in-time snapshot of the store to FILE",
	Args:  cobra.ExactArgs(1),
	RunE:  runSave,
}

var loadCmd = &cobra.Command{
	Use:   "load FILE",
	Short: "Replace the store with the snapshot in FILE",
	Args:  cobra.ExactArgs(1),
	RunE:  runLoad,
}

// snapshotStore returns the SQLite store behind be; snapshots are not
// supported on Redis, which has its own persistence.
func snapshotStore(be backend) (*store.DB, error) {
	db, ok := be.(*store.DB)
	if !ok {
		return nil, fmt.Errorf("snapshots require the sqlite backend")
	}
	return db, nil
}

func runSave(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), cmdTimeout)
	defer cancel()

	be, _, err := openLocal(ctx)
	if err != nil {
		return err
	}
	defer be.Close()
	db, err := snapshotStore(be)
	if err != nil {
		return err
	}

	tmp := args[0] + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	n, err := db.Dump(ctx, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("save: %w", err)
	}
	if err := os.Rename(tmp, args[0]); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "saved %d keys to %s\n", n, args[0])
	return nil
}

func runLoad(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), cmdTimeout)
	defer cancel()

	be, ctrl, err := openLocal(ctx)
	if err != nil {
		return err
	}
	defer be.Close()
	db, err := snapshotStore(be)
	if err != nil {
		return err
	}

	n, err := db.Restore(ctx, f)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	// The old journal no longer describes the keyspace.
	if _, err := rewriteJournal(ctx, be, ctrl); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "loaded %d keys from %s\n", n, args[0])
	return nil
}
