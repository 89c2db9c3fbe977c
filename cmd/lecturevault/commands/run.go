package commands

import (
	"log/slog"
	"os"

	"lecturevault/internal/catalog"
	"lecturevault/internal/pipeline"
	"lecturevault/lib/util/serviceutil"

	"github.com/spf13/cobra"
)

var (
	runAll     *bool
	runIds     *[]int64
	runName    *string
	runWorkers *int
)

func init() {
	runAll, runIds, runName = addTargetFlags(runCmd)
	runWorkers = runCmd.Flags().Int("workers", 0, "The number of concurrent downloads and notebook writers.")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run [--all | --course-ids <id,id> | --course <name>] [--workers <n>]",
	Short: "Downloads the assets of the selected courses and builds their notebooks.",
	Run: func(cmd *cobra.Command, args []string) {
		code := runPipeline(cmd, runTargets{all: *runAll, ids: *runIds, name: *runName})
		if code != 0 {
			os.Exit(code)
		}
	},
}

// exitCode maps a finished run to the process exit status.
func exitCode(report pipeline.Report) int {
	switch {
	case report.Cancelled:
		return 130
	case report.Failed():
		return 1
	}
	return 0
}

// runPipeline returns the exit status so deferred cleanup runs before the process exits.
func runPipeline(cmd *cobra.Command, targets runTargets) int {
	workers := 0
	if runWorkers != nil {
		workers = *runWorkers
	}
	env := setupEnv(cmd, workers)
	defer env.Close()

	client := env.client()
	courses, err := resolveTargets(cmd.Context(), client, targets)
	if err != nil {
		serviceutil.Fatal("failed to select courses", err)
	}
	slog.Info("selected courses", "count", len(courses), "base", env.layout.Base)

	l := env.ledger()
	defer l.Close()

	p := pipeline.New(pipeline.Options{
		Catalog:    catalog.NewResolver(client, env.tel),
		Downloader: env.downloader(client, l),
		Assembler:  env.assembler(),
		Ledger:     l,
		MaxErrors:  env.cfg.MaxErrors,
	}, env.tel)

	report := p.Run(cmd.Context(), courses)
	report.Render(os.Stdout)
	if report.Cancelled {
		slog.Warn("run was cancelled before every course was processed")
	}
	return exitCode(report)
}
