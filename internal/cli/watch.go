package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/omnistate/internal/app"
	"github.com/roach88/omnistate/internal/live"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	QueryOptions
	Count int // stop after this many updates; 0 runs until interrupted
}

// WatchEvent is one update as printed by watch.
type WatchEvent struct {
	Seq        int64  `json:"seq"`
	Collection string `json:"collection"`
	Rows       any    `json:"rows"`
	Error      string `json:"error,omitempty"`
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{QueryOptions: QueryOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "watch <collection>",
		Short: "Stream live query updates",
		Long: `Subscribe to a collection query and print every row snapshot the
adapter pushes, merged into the store's state, until interrupted.

Examples:
  omni watch tasks --where status=todo
  omni watch tasks --count 1 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Where, "where", nil, "equality filter field=value (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Order, "order", nil, "sort key field[:asc|desc] (repeatable)")
	cmd.Flags().IntVar(&opts.Limit, "limit", -1, "maximum rows")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "rows to skip")
	cmd.Flags().IntVar(&opts.Count, "count", 0, "exit after this many updates")

	return cmd
}

func runWatch(opts *WatchOptions, name string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	seen := 0
	observer := func(u live.Update, err error) {
		if opts.Count > 0 && seen >= opts.Count {
			return
		}
		event := WatchEvent{Seq: u.Seq, Collection: u.Collection, Rows: u.Rows}
		if err != nil {
			event.Error = err.Error()
		}
		if opts.Format == "json" {
			_ = formatter.Success(event)
		} else {
			fmt.Fprintf(formatter.Writer, "[%d] %s: %d row(s)\n", u.Seq, u.Collection, len(u.Rows))
			_ = formatter.Rows(u.Rows)
			if err != nil {
				fmt.Fprintf(formatter.Writer, "  error: %v\n", err)
			}
		}
		seen++
		if opts.Count > 0 && seen >= opts.Count {
			cancel()
		}
	}

	a, err := openApp(ctx, opts.RootOptions, app.WithObserver(observer))
	if err != nil {
		return err
	}
	defer a.Close()

	b, err := a.Collection(name)
	if err != nil {
		return argumentError(formatter, err)
	}
	if b, err = opts.apply(b); err != nil {
		return argumentError(formatter, err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	id, err := a.Watch(ctx, b)
	if err != nil {
		return adapterError(formatter, "watch failed", err)
	}
	formatter.VerboseLog("watch %s started on %s", id, name)

	if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "live engine error", err)
	}
	slog.Info("watch stopped", "watch", id, "updates", seen)
	return nil
}
