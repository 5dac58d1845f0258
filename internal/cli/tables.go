package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"github.com/canonica-labs/pace/internal/observability"
	"github.com/canonica-labs/pace/internal/tables"
	"github.com/canonica-labs/pace/pkg/api"
	"github.com/canonica-labs/pace/pkg/models"
)

const commandTimeout = 60 * time.Second

func (c *CLI) newTablesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List the base tables of the configured database",
		Long: `List base tables (views excluded) in ascending order.

The same listing decides which tables preview and the dashboard may read.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runTables(cmd.Context())
		},
	}
}

func (c *CLI) runTables(ctx context.Context) error {
	log, err := c.logger(false)
	if err != nil {
		return err
	}
	svc, err := c.newViewer(log, nil, observability.NewAccessLogger(log))
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	listing, err := svc.ListTables(ctx)
	if err != nil {
		return err
	}
	if listing.Failed() {
		return listing.Err
	}

	if c.jsonOutput {
		return c.outputJSON(models.TableList{Tables: listing.Names, Count: len(listing.Names)})
	}

	if listing.Empty() {
		c.println("No tables found in the database.")
		return nil
	}

	table := tablewriter.NewWriter(c.stdout())
	table.Options(
		tablewriter.WithHeader([]string{"#", "Table"}),
		tablewriter.WithAlignment(tw.MakeAlign(2, tw.AlignLeft)),
	)
	for i, name := range listing.Names {
		if err := table.Append([]string{strconv.Itoa(i + 1), name}); err != nil {
			return fmt.Errorf("failed to append row: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	c.printf("%s tables\n", humanize.Comma(int64(len(listing.Names))))
	return nil
}

func (c *CLI) newPreviewCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "preview <table>",
		Short: "Show the first rows of a table",
		Long: `Show up to --limit rows of a base table.

The table must appear in the listing printed by 'pace tables'. The limit is
rounded to a multiple of 100 between 100 and 5000.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPreview(cmd.Context(), args[0], limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", api.DefaultRowLimit, "maximum rows to fetch")
	return cmd
}

func (c *CLI) runPreview(ctx context.Context, name string, limit int) error {
	log, err := c.logger(false)
	if err != nil {
		return err
	}
	svc, err := c.newViewer(log, nil, observability.NewAccessLogger(log))
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	limit = api.ClampRowLimit(limit)
	c.debugf("fetching %s with limit %d\n", name, limit)

	snap, err := svc.FetchRows(ctx, name, limit)
	if err != nil {
		return err
	}

	if c.jsonOutput {
		return c.outputJSON(models.TableData{
			Table:     snap.Table,
			Columns:   snap.Columns,
			Rows:      snap.Rows,
			RowCount:  snap.RowCount(),
			Limit:     snap.Limit,
			FetchedAt: snap.FetchedAt,
		})
	}
	return c.renderSnapshot(snap)
}

func (c *CLI) renderSnapshot(snap *tables.Snapshot) error {
	c.printf("Table: %s\n", snap.Table)

	table := tablewriter.NewWriter(c.stdout())
	table.Options(tablewriter.WithHeader(snap.Columns))
	for _, row := range snap.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatValue(v)
		}
		if err := table.Append(cells); err != nil {
			return fmt.Errorf("failed to append row: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	c.printf("Showing %s rows × %s columns\n",
		humanize.Comma(int64(snap.RowCount())),
		humanize.Comma(int64(snap.ColumnCount())))
	return nil
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}
