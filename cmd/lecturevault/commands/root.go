package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	baseFolder *string
	authFile   *string
	configFile *string
	verbose    *bool
	dumpHttp   *string
)

var rootCmd = &cobra.Command{
	Use:   "lecturevault",
	Short: "lecturevault downloads the supplementary assets of your courses and builds a notebook per lecture.",
	Long: `lecturevault downloads the supplementary assets of your subscribed courses and builds a
jupyter notebook per lecture with links to, and previews of, every asset.

Running it without a subcommand is the same as "lecturevault run --all".`,
	Run: func(cmd *cobra.Command, args []string) {
		code := runPipeline(cmd, runTargets{all: true})
		if code != 0 {
			os.Exit(code)
		}
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	baseFolder = flags.String("base-folder", "udemyDownloads", "The folder downloads, notebooks, the ledger and the log are stored in.")
	authFile = flags.String("auth-file", "Authentication.json", "The json file holding the access token and cookies.")
	configFile = flags.String("config", "lecturevault.json5", "The optional json5 config file, <name>.local.json5 overrides it.")
	verbose = flags.BoolP("verbose", "v", false, "Log debug messages.")
	dumpHttp = flags.String("dump-http", "", "Write every api request and response to this directory.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
