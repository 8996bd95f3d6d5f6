package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/omnistate/internal/app"
	"github.com/roach88/omnistate/internal/collection"
	"github.com/roach88/omnistate/internal/compiler"
	"github.com/roach88/omnistate/internal/ir"
	"github.com/roach88/omnistate/internal/queryir"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Where   []string // field=value
	Order   []string // field or field:desc
	Limit   int
	Offset  int
	Include []string
	Get     string
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <collection>",
		Short: "Resolve a collection query",
		Long: `Resolve a query against the configured adapter and print the rows.

Values are parsed as JSON when they parse and used as strings otherwise,
so --where priority=2 matches an integer and --where id='"2"' a string.

Examples:
  omni query tasks
  omni query tasks --where status=todo --order priority:desc --limit 10
  omni query tasks --get t1 --include board`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Where, "where", nil, "equality filter field=value (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Order, "order", nil, "sort key field[:asc|desc] (repeatable)")
	cmd.Flags().IntVar(&opts.Limit, "limit", -1, "maximum rows")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "rows to skip")
	cmd.Flags().StringArrayVar(&opts.Include, "include", nil, "relation to embed (repeatable)")
	cmd.Flags().StringVar(&opts.Get, "get", "", "select one row by primary key")

	return cmd
}

func runQuery(opts *QueryOptions, name string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	a, err := openApp(cmd.Context(), opts.RootOptions)
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
	formatter.VerboseLog("query %s %s", name, render(b.Options().IR()))

	rows, err := b.Fetch(cmd.Context())
	if err != nil {
		return adapterError(formatter, "query failed", err)
	}
	return formatter.Rows(rows)
}

// apply chains the flag clauses onto b.
func (o *QueryOptions) apply(b *collection.Builder) (*collection.Builder, error) {
	for _, w := range o.Where {
		field, raw, ok := strings.Cut(w, "=")
		if !ok || field == "" {
			return nil, fmt.Errorf("--where %q: want field=value", w)
		}
		b = b.Where(queryir.Eq(field, ParseValue(raw)))
	}
	for _, spec := range o.Order {
		field, dir, _ := strings.Cut(spec, ":")
		switch dir {
		case "", "asc":
			b = b.OrderBy(queryir.By(field, queryir.Asc))
		case "desc":
			b = b.OrderBy(queryir.By(field, queryir.Desc))
		default:
			return nil, fmt.Errorf("--order %q: direction must be asc or desc", spec)
		}
	}
	if o.Limit >= 0 {
		b = b.Limit(o.Limit)
	}
	if o.Offset > 0 {
		b = b.Offset(o.Offset)
	}
	for _, rel := range o.Include {
		b = b.Include(rel)
	}
	if o.Get != "" {
		b = b.Get(ParseValue(o.Get))
	}
	return b, nil
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <collection> <json-object>",
		Short: "Create a row",
		Example: `  omni add tasks '{"id":"t9","title":"Ship","status":"todo"}'`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(rootOpts, cmd, args[0], func(ctx context.Context, b *collection.Builder) error {
				data, err := ParseObject(args[1])
				if err != nil {
					return err
				}
				return b.Add(ctx, data)
			})
		},
	}
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "update <collection> <id> <json-object>",
		Short: "Patch a row by primary key",
		Example: `  omni update tasks t1 '{"status":"done"}'`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(rootOpts, cmd, args[0], func(ctx context.Context, b *collection.Builder) error {
				data, err := ParseObject(args[2])
				if err != nil {
					return err
				}
				return b.Update(ctx, ParseValue(args[1]), data)
			})
		},
	}
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <collection> <id>",
		Short:         "Delete a row by primary key",
		Example:       `  omni delete tasks t1`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(rootOpts, cmd, args[0], func(ctx context.Context, b *collection.Builder) error {
				return b.Delete(ctx, ParseValue(args[1]))
			})
		},
	}
}

// errBadArgument marks write failures caused by the command line rather
// than the adapter.
var errBadArgument = errors.New("bad argument")

func runWrite(opts *RootOptions, cmd *cobra.Command, name string, write func(context.Context, *collection.Builder) error) error {
	formatter := newFormatter(opts, cmd)

	a, err := openApp(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer a.Close()

	b, err := a.Collection(name)
	if err != nil {
		return argumentError(formatter, err)
	}
	if err := write(cmd.Context(), b); err != nil {
		if errors.Is(err, errBadArgument) {
			return argumentError(formatter, err)
		}
		return adapterError(formatter, cmd.Name()+" failed", err)
	}

	slog.Debug("write applied", "op", cmd.Name(), "collection", name)
	if opts.Format == "json" {
		return formatter.Success(map[string]string{"op": cmd.Name(), "collection": name})
	}
	fmt.Fprintf(formatter.Writer, "✓ %s %s\n", cmd.Name(), name)
	return nil
}

// openApp loads the config and schema and opens the configured adapter.
func openApp(ctx context.Context, opts *RootOptions, appOpts ...app.Option) (*app.App, error) {
	cfg, err := opts.LoadConfig()
	if err != nil {
		return nil, err
	}
	loaded, err := LoadSchema(cfg.Schema)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load schema", err)
	}
	if errs := compiler.Validate(loaded.Spec); len(errs) > 0 {
		return nil, WrapExitError(ExitCommandError, "invalid schema", errs[0])
	}
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.Open(ctx, cfg, loaded.Spec, appOpts...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}
	return a, nil
}

// ParseValue reads a command-line value as JSON, falling back to a plain
// string when it does not parse.
func ParseValue(s string) ir.IRValue {
	if json.Valid([]byte(s)) {
		if v, err := ir.UnmarshalIRValue([]byte(s)); err == nil {
			return v
		}
	}
	return ir.IRString(s)
}

// ParseObject reads a JSON object argument.
func ParseObject(s string) (ir.IRObject, error) {
	if !json.Valid([]byte(s)) {
		return nil, fmt.Errorf("%w: %q is not valid JSON", errBadArgument, s)
	}
	v, err := ir.UnmarshalIRValue([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadArgument, err)
	}
	obj, ok := v.(ir.IRObject)
	if !ok {
		return nil, fmt.Errorf("%w: want a JSON object, got %s", errBadArgument, render(v))
	}
	return obj, nil
}

func argumentError(formatter *OutputFormatter, err error) error {
	_ = formatter.Error(ErrCodeBadArgument, err.Error(), nil)
	return WrapExitError(ExitCommandError, ErrCodeBadArgument, err)
}

func adapterError(formatter *OutputFormatter, msg string, err error) error {
	_ = formatter.Error(ErrCodeAdapter, err.Error(), nil)
	return WrapExitError(ExitCommandError, msg, err)
}

func render(v ir.IRValue) string {
	data, err := ir.MarshalIRValue(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
