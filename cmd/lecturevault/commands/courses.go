package commands

import (
	"lecturevault/lib/util/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(coursesCmd)
}

var coursesCmd = &cobra.Command{
	Use:   "courses",
	Short: "Lists the courses the account is subscribed to.",
	Run: func(cmd *cobra.Command, args []string) {
		env := setupEnv(cmd, 0)
		defer env.Close()

		courses, err := env.client().SubscribedCourses(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to list subscribed courses", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Id", "Title"})
		for _, c := range courses {
			t.AppendRow(table.Row{c.Id, c.Title})
		}
		t.AppendFooter(table.Row{"", len(courses)})
		t.Render()
	},
}
