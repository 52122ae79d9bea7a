package cli

import (
	"fmt"
	"io"
	"strings"

	"excalidash/core"
	"excalidash/dashboard"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "240", Dark: "245"})
	trashStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "160", Dark: "203"})
)

const timeLayout = "2006-01-02 15:04"

func newLsCmd(app *App) *cobra.Command {
	var search, collection, field, order string

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List drawings",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := dashboard.ParseSortField(field)
			if err != nil {
				return err
			}
			dir, err := dashboard.ParseSortDirection(order)
			if err != nil {
				return err
			}

			d, err := openDashboard(cmd, app, sessionOptions{
				scope: core.ParseScope(collection),
				sort:  dashboard.SortConfig{Field: f, Direction: dir},
			})
			if err != nil {
				return err
			}
			if search != "" {
				d.SetSearch(search)
				d.Wait()
			}
			renderDrawings(cmd.OutOrStdout(), d.Items(), d.Collections())
			return nil
		},
	}

	cmd.Flags().StringVarP(&search, "search", "s", "", "Only names containing this text")
	cmd.Flags().StringVarP(&collection, "collection", "c", "", `Collection id, "null" for unorganized or "trash"`)
	cmd.Flags().StringVar(&field, "sort", "modified", "Sort by name, created or modified")
	cmd.Flags().StringVar(&order, "order", "desc", "Sort order (asc|desc)")
	return cmd
}

func collectionLabel(ref *string, names map[string]string) string {
	switch {
	case ref == nil:
		return "-"
	case *ref == core.TrashCollectionID:
		return "trash"
	case names[*ref] != "":
		return names[*ref]
	default:
		return *ref
	}
}

// renderDrawings prints drawings as an aligned table.
func renderDrawings(w io.Writer, items []*core.Drawing, collections []*core.Collection) {
	if len(items) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No drawings."))
		return
	}
	names := make(map[string]string, len(collections))
	for _, c := range collections {
		names[c.ID] = c.Name
	}

	rows := [][]string{{"NAME", "COLLECTION", "MODIFIED", "ID"}}
	for _, item := range items {
		rows = append(rows, []string{
			item.Name,
			collectionLabel(item.CollectionID, names),
			item.UpdatedAt.Local().Format(timeLayout),
			item.ID,
		})
	}
	writeTable(w, rows, func(row, col int) lipgloss.Style {
		switch {
		case row == 0:
			return headerStyle
		case col == 3:
			return mutedStyle
		case col == 1 && items[row-1].InTrash():
			return trashStyle
		}
		return lipgloss.NewStyle()
	})
}

func renderCollections(w io.Writer, collections []*core.Collection) {
	if len(collections) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No collections."))
		return
	}
	rows := [][]string{{"NAME", "CREATED", "ID"}}
	for _, c := range collections {
		rows = append(rows, []string{c.Name, c.CreatedAt.Local().Format(timeLayout), c.ID})
	}
	writeTable(w, rows, func(row, col int) lipgloss.Style {
		switch {
		case row == 0:
			return headerStyle
		case col == 2:
			return mutedStyle
		}
		return lipgloss.NewStyle()
	})
}

func writeTable(w io.Writer, rows [][]string, style func(row, col int) lipgloss.Style) {
	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}
	for r, row := range rows {
		cells := make([]string, len(row))
		for c, cell := range row {
			st := style(r, c)
			if c < len(row)-1 {
				st = st.Width(widths[c] + 2)
			}
			cells[c] = st.Render(cell)
		}
		fmt.Fprintln(w, strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, cells...), " "))
	}
}
