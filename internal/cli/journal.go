package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/lazypower/degrade/internal/counter"
	"github.com/spf13/cobra"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Print the command journal, one JSON array per line",
	Args:  cobra.NoArgs,
	RunE:  runJournal,
}

var rewriteCmd = &cobra.Command{
	Use:   "rewrite",
	Short: "Compact the journal to one increment per live counter",
	Args:  cobra.NoArgs,
	RunE:  runRewrite,
}

var replayCmd = &cobra.Command{
	Use:   "replay FILE",
	Short: "Apply journal commands from FILE (as printed by 'degrade journal')",
	Args:  cobra.ExactArgs(1),
	RunE:  runReplay,
}

func runJournal(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), cmdTimeout)
	defer cancel()

	be, _, err := openLocal(ctx)
	if err != nil {
		return err
	}
	defer be.Close()

	cmds, err := be.Journal(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, argv := range cmds {
		if err := enc.Encode(argv); err != nil {
			return err
		}
	}
	return nil
}

// rewriteJournal replaces the journal of be with the replay form of every live counter.
func rewriteJournal(ctx context.Context, be backend, ctrl *counter.Controller) (int, error) {
	var cmds [][]string
	err := ctrl.Rewrite(ctx, func(argv []string) error {
		cmds = append(cmds, argv)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("rewrite: %w", err)
	}
	if err := be.ReplaceJournal(ctx, cmds); err != nil {
		return 0, err
	}
	return len(cmds), nil
}

func runRewrite(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), cmdTimeout)
	defer cancel()

	be, ctrl, err := openLocal(ctx)
	if err != nil {
		return err
	}
	defer be.Close()

	n, err := rewriteJournal(ctx, be, ctrl)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "journal rewritten: %d commands\n", n)
	return nil
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	ctx := cmd.Context()
	be, ctrl, err := openLocal(ctx)
	if err != nil {
		return err
	}
	defer be.Close()

	n, err := replay(ctx, ctrl, bufio.NewScanner(f))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "replayed %d commands\n", n)
	return nil
}

// replay runs every JSON-array line from sc through ctrl. Blank lines are skipped.
func replay(ctx context.Context, ctrl *counter.Controller, sc *bufio.Scanner) (int, error) {
	n, line := 0, 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var argv []string
		if err := json.Unmarshal([]byte(text), &argv); err != nil {
			return n, fmt.Errorf("line %d: %w", line, err)
		}
		if _, err := ctrl.Exec(ctx, argv); err != nil {
			return n, fmt.Errorf("line %d: %w", line, err)
		}
		n++
	}
	return n, sc.Err()
}
