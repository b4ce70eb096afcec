package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/lazypower/degrade/internal/client"
	"github.com/lazypower/degrade/internal/counter"
	"github.com/spf13/cobra"
)

const cmdTimeout = 30 * time.Second

var (
	incrAmount   float64
	incrRate     float64
	incrInterval string
)

var incrCmd = &cobra.Command{
	Use:   "incr KEY",
	Short: "Increment a counter, creating it if needed",
	Long: "Increment a counter by --amount. A new or fully decayed counter starts a fresh epoch " +
		"with the given decay policy; an existing counter keeps the policy it was created with.",
	Example: "  degrade incr login:alice --amount 1 --rate 1 --interval 5min",
	Args:    cobra.ExactArgs(1),
	RunE:    runIncr,
}

var decrCmd = &cobra.Command{
	Use:   "decr KEY [AMOUNT]",
	Short: "Decrement a counter (default amount 1)",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runDecr,
}

var peekCmd = &cobra.Command{
	Use:   "peek KEY",
	Short: "Show the current value of a counter",
	Args:  cobra.ExactArgs(1),
	RunE:  runPeek,
}

func init() {
	incrCmd.Flags().Float64VarP(&incrAmount, "amount", "a", 1, "Amount to add")
	incrCmd.Flags().Float64VarP(&incrRate, "rate", "r", 1, "Amount lost per elapsed interval")
	incrCmd.Flags().StringVarP(&incrInterval, "interval", "i", "1sec", "Decay interval: <count><ms|sec|min>")
}

func printValue(w io.Writer, v *float64) {
	if v == nil {
		fmt.Fprintln(w, color.New(color.Faint).Sprint("(nil)"))
		return
	}
	fmt.Fprintln(w, strconv.FormatFloat(*v, 'g', -1, 64))
}

func runIncr(cmd *cobra.Command, args []string) error {
	key := args[0]
	iv, err := counter.ParseInterval(incrInterval)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cmdTimeout)
	defer cancel()

	var v float64
	if serverURL != "" {
		v, err = client.New(serverURL).Incr(ctx, key, incrAmount, incrRate, iv.String())
	} else {
		be, ctrl, openErr := openLocal(ctx)
		if openErr != nil {
			return openErr
		}
		defer be.Close()
		v, err = ctrl.Increment(ctx, key, incrAmount, counter.Policy{DecayRate: incrRate, Interval: iv})
	}
	if err != nil {
		return fmt.Errorf("incr: %w", err)
	}
	printValue(cmd.OutOrStdout(), &v)
	return nil
}

func runDecr(cmd *cobra.Command, args []string) error {
	key := args[0]
	amount, err := counter.ParseDecrArgs(args[1:])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cmdTimeout)
	defer cancel()

	var v *float64
	if serverURL != "" {
		v, err = client.New(serverURL).Decr(ctx, key, amount)
	} else {
		be, ctrl, openErr := openLocal(ctx)
		if openErr != nil {
			return openErr
		}
		defer be.Close()
		var (
			val float64
			ok  bool
		)
		val, ok, err = ctrl.Decrement(ctx, key, amount)
		if ok {
			v = &val
		}
	}
	if err != nil {
		return fmt.Errorf("decr: %w", err)
	}
	printValue(cmd.OutOrStdout(), v)
	return nil
}

func runPeek(cmd *cobra.Command, args []string) error {
	key := args[0]

	ctx, cancel := context.WithTimeout(cmd.Context(), cmdTimeout)
	defer cancel()

	var (
		v   *float64
		err error
	)
	if serverURL != "" {
		v, err = client.New(serverURL).Peek(ctx, key)
	} else {
		be, ctrl, openErr := openLocal(ctx)
		if openErr != nil {
			return openErr
		}
		defer be.Close()
		var (
			val float64
			ok  bool
		)
		val, ok, err = ctrl.Peek(ctx, key)
		if ok {
			v = &val
		}
	}
	if err != nil {
		return fmt.Errorf("peek: %w", err)
	}
	printValue(cmd.OutOrStdout(), v)
	return nil
}
