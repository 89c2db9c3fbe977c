package commands

import (
	"context"
	"os"
	"slices"

	"lecturevault/internal/catalog"
	"lecturevault/internal/course"
	"lecturevault/internal/pipeline"
	"lecturevault/internal/scan"
	"lecturevault/lib/textutil"
	"lecturevault/lib/util/serviceutil"

	"github.com/spf13/cobra"
)

var (
	assembleFromDownloads *bool
	assembleFromLedger    *bool
	assembleFromApi       *bool
	assembleCourse        *string
	assembleIds           *[]int64
)

func init() {
	flags := assembleCmd.Flags()
	assembleFromDownloads = flags.Bool("from-downloads", false, "Rebuild rows by scanning the downloads directory (default).")
	assembleFromLedger = flags.Bool("from-ledger", false, "Rebuild rows from the latest run recorded in the ledger.")
	assembleFromApi = flags.Bool("from-api", false, "Resolve catalogs from the api and attach already downloaded files without downloading anything.")
	assembleCourse = flags.String("course", "", "Only assemble the course matching this name.")
	assembleIds = flags.Int64Slice("course-ids", nil, "The courses to resolve with --from-api.")
	assembleCmd.MarkFlagsMutuallyExclusive("from-downloads", "from-ledger", "from-api")
	rootCmd.AddCommand(assembleCmd)
}

var assembleCmd = &cobra.Command{
	Use:   "assemble [--from-downloads | --from-ledger | --from-api] [--course <name>]",
	Short: "Builds notebooks from files that were already downloaded.",
	Run: func(cmd *cobra.Command, args []string) {
		env := setupEnv(cmd, 0)
		defer env.Close()

		p := env.offlinePipeline()
		var report pipeline.Report
		switch {
		case *assembleFromLedger:
			report = assembleFromLedgerRows(cmd.Context(), env, p, *assembleCourse)
		case *assembleFromApi:
			report = assembleFromApiRows(cmd.Context(), env, p, runTargets{ids: *assembleIds, name: *assembleCourse})
		default:
			report = assembleFromScan(cmd.Context(), env, p, *assembleCourse)
		}
		if len(report.Courses) == 0 {
			fatalf("no courses found to assemble under %s", env.layout.Base)
		}
		report.Render(os.Stdout)
	},
}

func assembleFromScan(ctx context.Context, env *environment, p pipeline.Pipeline, filter string) pipeline.Report {
	courses, err := scan.Scan(env.layout.Downloads, filter)
	if err != nil {
		serviceutil.Fatal("failed to scan downloads", err)
	}

	titles := make([]string, 0, len(courses))
	for title := range courses {
		titles = append(titles, title)
	}
	slices.Sort(titles)

	var report pipeline.Report
	for _, title := range titles {
		report.Courses = append(report.Courses, p.AssembleRows(ctx, course.Course{Title: title}, courses[title]))
	}
	return report
}

func assembleFromLedgerRows(ctx context.Context, env *environment, p pipeline.Pipeline, filter string) pipeline.Report {
	l := env.ledger()
	defer l.Close()

	known, err := l.Courses(ctx)
	if err != nil {
		serviceutil.Fatal("failed to list recorded courses", err)
	}
	if filter != "" {
		titles := make([]string, len(known))
		for i, c := range known {
			titles[i] = c.Title
		}
		idx, _ := textutil.BestMatch(filter, titles)
		if idx < 0 {
			return pipeline.Report{}
		}
		known = known[idx : idx+1]
	}

	var report pipeline.Report
	for _, c := range known {
		rows, err := l.LatestRows(ctx, c.Title)
		if err != nil {
			serviceutil.Fatal("failed to read recorded rows", err)
		}
		report.Courses = append(report.Courses, p.AssembleRows(ctx, c, rows))
	}
	return report
}

func assembleFromApiRows(ctx context.Context, env *environment, p pipeline.Pipeline, targets runTargets) pipeline.Report {
	client := env.client()
	courses, err := resolveTargets(ctx, client, targets)
	if err != nil {
		serviceutil.Fatal("failed to select courses", err)
	}
	resolver := catalog.NewResolver(client, env.tel)
	downloader := env.downloader(client, nil)

	var report pipeline.Report
	for _, c := range courses {
		if c.Title == "" {
			c.Title = resolver.Title(ctx, c.Id)
		}
		rows, err := resolver.Resolve(ctx, c)
		if err != nil {
			report.Courses = append(report.Courses, pipeline.CourseReport{Course: c, CatalogErr: err})
			continue
		}
		rows = scan.Attach(rows, downloader.LectureDir)
		report.Courses = append(report.Courses, p.AssembleRows(ctx, c, rows))
	}
	return report
}
