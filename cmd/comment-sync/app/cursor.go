package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/pagepulse/comment-sync/internal/app/storage"
	"github.com/pagepulse/comment-sync/internal/cursor"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

// cursorAction runs against an open store and writes its report to w
type cursorAction func(ctx context.Context, store cursor.Store, w io.Writer, format string) error

func newCursorCmd() *cobra.Command {
	cursorCmd := &cobra.Command{
		Use:   "cursor",
		Short: "Inspect or change the shared sync cursor",
		Long: `Inspect or change the shared "last successful sync" timestamp directly in the
configured cursor store. Changing the cursor affects every running instance.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Usage()
		},
	}
	cursorCmd.PersistentFlags().StringP("output", "o", outputTable, "Output format (table, json)")

	cursorCmd.AddCommand(
		newCursorSubcommand("get", "Print the committed cursor", cobra.NoArgs, func(_ []string) cursorAction {
			return cursorGet
		}),
		newCursorSubcommand("status", "Print the cursor, store health and lease state", cobra.NoArgs, func(_ []string) cursorAction {
			return cursorStatus
		}),
		newCursorSubcommand("reset", "Clear the cursor so the next pass fetches everything", cobra.NoArgs, func(_ []string) cursorAction {
			return cursorReset
		}),
		newCursorSubcommand("set <epochSeconds>", "Overwrite the cursor with a Unix timestamp", cobra.ExactArgs(1), func(args []string) cursorAction {
			return func(ctx context.Context, store cursor.Store, w io.Writer, format string) error {
				value, err := parseEpochSeconds(args[0])
				if err != nil {
					return err
				}
				return cursorSet(ctx, store, w, format, value)
			}
		}),
		newCursorSubcommand("set-now", "Overwrite the cursor with the current time", cobra.NoArgs, func(_ []string) cursorAction {
			return func(ctx context.Context, store cursor.Store, w io.Writer, format string) error {
				return cursorSet(ctx, store, w, format, uint64(time.Now().Unix()))
			}
		}),
		newCursorSubcommand("self-test", "Write, read back and restore a probe value", cobra.NoArgs, func(_ []string) cursorAction {
			return cursorSelfTest
		}),
	)

	return cursorCmd
}

func newCursorSubcommand(use, short string, args cobra.PositionalArgs, build func(args []string) cursorAction) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cmd.Flags().GetString("output")
			if err != nil {
				return fmt.Errorf("failed to get output flag: %w", err)
			}
			if format != outputTable && format != outputJSON {
				return fmt.Errorf("unsupported output format %q", format)
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			factory, err := storage.NewStorageFactory(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to create storage factory: %w", err)
			}
			defer factory.Cleanup()

			store, err := factory.CreateCursorStore(ctx)
			if err != nil {
				return fmt.Errorf("failed to open cursor store: %w", err)
			}
			defer func() { _ = store.Close() }()

			return build(args)(ctx, store, cmd.OutOrStdout(), format)
		},
	}
}

func parseEpochSeconds(s string) (uint64, error) {
	value, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("epoch seconds must be an integer number of seconds: %q", s)
	}
	if value < 0 {
		return 0, fmt.Errorf("timestamp must be non-negative")
	}
	return uint64(value), nil
}

func cursorGet(ctx context.Context, store cursor.Store, w io.Writer, format string) error {
	value := store.Get(ctx)
	return render(w, format, map[string]any{
		"timestamp":    value,
		"instant":      formatInstant(value),
		"hasTimestamp": value > 0,
	}, [][2]any{
		{"Timestamp", value},
		{"Instant", formatInstant(value)},
	})
}

func cursorStatus(ctx context.Context, store cursor.Store, w io.Writer, format string) error {
	st := store.Status(ctx)
	if err := render(w, format, st, [][2]any{
		{"Store healthy", st.Healthy},
		{"Timestamp", st.Value},
		{"Instant", formatInstant(st.Value)},
		{"Has timestamp", st.HasValue},
		{"Lease active", st.LeaseActive},
	}); err != nil {
		return err
	}
	if !st.Healthy {
		return fmt.Errorf("cursor store is unreachable")
	}
	return nil
}

func cursorReset(ctx context.Context, store cursor.Store, w io.Writer, format string) error {
	if err := store.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset cursor: %w", err)
	}
	return render(w, format, map[string]any{
		"message": "Cursor reset. Next sync will fetch all data.",
	}, [][2]any{
		{"Result", "Cursor reset. Next sync will fetch all data."},
	})
}

func cursorSet(ctx context.Context, store cursor.Store, w io.Writer, format string, value uint64) error {
	verified, err := cursor.OverwriteAndVerify(ctx, store, value)
	if err != nil {
		return fmt.Errorf("failed to update cursor: %w", err)
	}
	if err := render(w, format, map[string]any{
		"timestamp":         value,
		"instant":           formatInstant(value),
		"verifiedTimestamp": verified,
		"updateSuccessful":  verified == value,
	}, [][2]any{
		{"Timestamp", value},
		{"Instant", formatInstant(value)},
		{"Verified", verified},
	}); err != nil {
		return err
	}
	if verified != value {
		return fmt.Errorf("cursor update verification failed: expected %d, got %d", value, verified)
	}
	return nil
}

func cursorSelfTest(ctx context.Context, store cursor.Store, w io.Writer, format string) error {
	res := cursor.SelfTest(ctx, store)

	errText := ""
	if res.Err != nil {
		errText = res.Err.Error()
	}
	if err := render(w, format, map[string]any{
		"success":  res.Success,
		"written":  res.Written,
		"read":     res.Read,
		"restored": res.Restored,
		"error":    errText,
	}, [][2]any{
		{"Success", res.Success},
		{"Written", res.Written},
		{"Read", res.Read},
		{"Restored", res.Restored},
		{"Error", errText},
	}); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("cursor self-test failed: %w", res.Err)
	}
	return nil
}

// render writes v as indented JSON, or rows as a two column table
func render(w io.Writer, format string, v any, rows [][2]any) error {
	if format == outputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
		{Number: 2, Align: text.AlignLeft},
	})
	tw.AppendHeader(table.Row{"Field", "Value"})
	for _, row := range rows {
		tw.AppendRow(table.Row{row[0], row[1]})
	}
	_ = tw.Render()
	return nil
}

func formatInstant(epochSeconds uint64) string {
	if epochSeconds == 0 {
		return "-"
	}
	return time.Unix(int64(epochSeconds), 0).UTC().Format(time.RFC3339)
}
