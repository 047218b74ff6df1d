package root

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/fastygo/questboard/domain"
	"github.com/fastygo/questboard/internal/ui"
)

func newTasksCmd() *cobra.Command {
	var (
		filter  domain.TaskFilter
		kind    string
		status  string
		refresh bool
	)
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List tasks with their calculated status",
		RunE: func(cmd *cobra.Command, args []string) error {
			if kind != "" {
				filter.Kind = domain.TaskKind(kind)
				if !filter.Kind.IsValid() {
					return fmt.Errorf("unknown task kind %q", kind)
				}
			}
			filter.Status = domain.TaskStatus(status)

			a, cleanup, err := openApp(true)
			if err != nil {
				return err
			}
			defer cleanup()
			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Context.RequestTimeout)
			defer cancel()

			if err := a.ensureSnapshot(ctx, refresh); err != nil {
				return err
			}
			tasks, err := a.orch.Tasks(filter)
			if err != nil {
				return err
			}
			printTasks(cmd.OutOrStdout(), tasks)
			return nil
		},
	}
	cmd.Flags().StringVarP(&kind, "kind", "k", "", "habit, daily, todo or reward")
	cmd.Flags().StringVarP(&status, "status", "s", "", "calculated status, e.g. due or past_due")
	cmd.Flags().StringVarP(&filter.TagID, "tag", "t", "", "tag id")
	cmd.Flags().StringVarP(&filter.Query, "query", "q", "", "case-insensitive text search")
	cmd.Flags().BoolVarP(&refresh, "refresh", "r", false, "refresh before listing")
	return cmd
}

const statusCol = 2

func printTasks(w io.Writer, tasks []domain.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, ui.Muted.Render("no tasks match"))
		return
	}
	fmt.Fprintln(w, ui.Heading(ui.IconTasks, fmt.Sprintf("Tasks (%d)", len(tasks))))

	rows := make([][]string, 0, len(tasks))
	for i := range tasks {
		t := &tasks[i]
		damage := "-"
		if t.Daily != nil && t.Daily.UserDamage != nil {
			damage = fmt.Sprintf("%.1f", *t.Daily.UserDamage)
		}
		rows = append(rows, []string{t.ID, string(t.Kind), string(t.Status), damage, t.Text, strings.Join(t.TagNames, ",")})
	}

	cell := lipgloss.NewStyle().Padding(0, 1)
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(ui.Muted).
		Headers("ID", "KIND", "STATUS", "DAMAGE", "TEXT", "TAGS").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return ui.Key.Padding(0, 1)
			case col == statusCol:
				return statusStyle(tasks[row].Status).Padding(0, 1)
			default:
				return cell
			}
		})
	fmt.Fprintln(w, tbl.Render())
}

func statusStyle(s domain.TaskStatus) lipgloss.Style {
	switch s {
	case domain.StatusGood, domain.StatusComplete, domain.StatusAvailable:
		return ui.Good
	case domain.StatusDue, domain.StatusGoodBad:
		return ui.Warn
	case domain.StatusBad, domain.StatusPastDue:
		return ui.Bad
	default:
		return ui.Muted
	}
}
