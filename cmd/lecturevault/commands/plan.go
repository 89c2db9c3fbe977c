package commands

import (
	"fmt"
	"log/slog"
	"os"

	"lecturevault/internal/catalog"
	"lecturevault/lib/util/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	planAll  *bool
	planIds  *[]int64
	planName *string
	planCsv  *string
)

func init() {
	planAll, planIds, planName = addTargetFlags(planCmd)
	planCsv = planCmd.Flags().String("csv", "", "Write the rows to this csv file instead of printing a table.")
	rootCmd.AddCommand(planCmd)
}

var planCmd = &cobra.Command{
	Use:   "plan [--all | --course-ids <id,id> | --course <name>] [--csv <path>]",
	Short: "Resolves the catalogs of the selected courses and shows what would be downloaded.",
	Run: func(cmd *cobra.Command, args []string) {
		env := setupEnv(cmd, 0)
		defer env.Close()

		client := env.client()
		courses, err := resolveTargets(cmd.Context(), client, runTargets{all: *planAll, ids: *planIds, name: *planName})
		if err != nil {
			serviceutil.Fatal("failed to select courses", err)
		}
		resolver := catalog.NewResolver(client, env.tel)

		t := newTable()
		t.AppendHeader(table.Row{"Course", "Section", "Lecture", "Asset id", "Asset"})
		total := 0
		for _, c := range courses {
			if c.Title == "" {
				c.Title = resolver.Title(cmd.Context(), c.Id)
			}
			rows, err := resolver.Resolve(cmd.Context(), c)
			if err != nil {
				slog.Warn("skipping course", "id", c.Id, "err", err)
				continue
			}
			for _, r := range rows {
				asset := r.AssetTitle
				if r.Stub {
					asset = "(no assets)"
				}
				t.AppendRow(table.Row{
					r.CourseTitle,
					fmt.Sprintf("%02d %s", r.SectionIndex, r.SectionTitle),
					fmt.Sprintf("%02d %s", r.LectureIndex, r.LectureTitle),
					r.AssetId,
					asset,
				})
				if !r.Stub {
					total++
				}
			}
		}

		if *planCsv == "" {
			t.AppendFooter(table.Row{"", "", "", "Assets", total})
			t.Render()
			return
		}
		err = os.WriteFile(*planCsv, []byte(t.RenderCSV()+"\n"), 0644)
		if err != nil {
			serviceutil.Fatal("failed to write csv", err)
		}
		slog.Info("wrote plan", "path", *planCsv, "assets", total)
	},
}
