package root

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fastygo/questboard/domain"
	"github.com/fastygo/questboard/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show character stats, projected damage and party quest",
		RunE: func(cmd *cobra.Command, args []string) error {
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
			snap, err := a.orch.Snapshot()
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), snap)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&refresh, "refresh", "r", false, "refresh before printing")
	return cmd
}

func printStatus(w io.Writer, snap *domain.Snapshot) {
	u := snap.User
	name := u.Name
	if name == "" {
		name = u.ID
	}
	fmt.Fprintln(w, ui.Heading(ui.IconStats, name))
	fmt.Fprintln(w, ui.LabelValue("Level", fmt.Sprintf("%d %s", u.Level, u.Class)))
	fmt.Fprintln(w, ui.LabelValue("Health", ui.Meter(u.Health, u.MaxHealth)))
	fmt.Fprintln(w, ui.LabelValue("Mana", ui.Meter(u.Mana, u.MaxMana)))
	fmt.Fprintln(w, ui.LabelValue("Experience", fmt.Sprintf("%.0f / %.0f", u.Experience, u.ToNextLvl)))
	fmt.Fprintln(w, ui.LabelValue("Gold", ui.Gold.Render(fmt.Sprintf("%.2f", u.Gold))))
	if u.Sleeping {
		fmt.Fprintln(w, ui.Muted.Render(ui.IconSleep+" resting in the inn, dailies deal no damage"))
	}
	fmt.Fprintln(w, "")

	fmt.Fprintln(w, ui.H2.Render("Attributes"))
	for _, attr := range domain.Attributes {
		fmt.Fprintf(w, "- %s %.1f %s\n",
			ui.Key.Render(strings.ToUpper(string(attr))+":"),
			u.Effective.Get(attr),
			ui.Muted.Render(fmt.Sprintf("(points %.0f, buffs %.1f)", u.Points.Get(attr), u.Buffs.Get(attr))))
	}
	fmt.Fprintln(w, "")

	var userDmg, partyDmg float64
	due := 0
	for i := range snap.Tasks {
		d := snap.Tasks[i].Daily
		if d == nil || d.UserDamage == nil {
			continue
		}
		due++
		userDmg += *d.UserDamage
		if d.PartyDamage != nil {
			partyDmg += *d.PartyDamage
		}
	}
	fmt.Fprintln(w, ui.H2.Render(ui.IconSwords+" Projected damage"))
	fmt.Fprintf(w, "- %s %s %s\n", ui.Key.Render("To you:"), ui.Bad.Render(fmt.Sprintf("%.1f", userDmg)), ui.Muted.Render(fmt.Sprintf("(%d unfinished dailies)", due)))
	if snap.Party != nil && snap.Party.Quest.Ongoing() {
		fmt.Fprintf(w, "- %s %s\n", ui.Key.Render("To party:"), ui.Bad.Render(fmt.Sprintf("%.1f", partyDmg)))
	}
	fmt.Fprintln(w, "")

	if p := snap.Party; p != nil {
		fmt.Fprintln(w, ui.H2.Render(ui.IconParty+" "+p.Name))
		fmt.Fprintln(w, ui.LabelValue("Members", p.MemberCount))
		if p.Quest.Ongoing() {
			q := p.Quest
			progress := fmt.Sprintf("boss hp %.1f", q.Progress.BossHP)
			if len(q.Progress.Collect) > 0 {
				progress = fmt.Sprintf("%d item kinds collected", len(q.Progress.Collect))
			}
			fmt.Fprintln(w, ui.LabelValue("Quest", q.Key+" "+ui.Muted.Render("("+progress+")")))
		}
		fmt.Fprintln(w, "")
	}

	fmt.Fprintln(w, ui.Muted.Render("fetched "+snap.FetchedAt.Local().Format("2006-01-02 15:04:05")))
}
