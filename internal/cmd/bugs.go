package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/triagekit/triagekit/pkg/bugstore"
)

var bugsJSON bool

var bugsCmd = &cobra.Command{
	Use:   "bugs",
	Short: "Inspect recorded bugs",
}

var bugsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all bugs, newest first",
	RunE:  runBugsList,
}

func init() {
	rootCmd.AddCommand(bugsCmd)
	bugsCmd.AddCommand(bugsListCmd)
	bugsCmd.PersistentFlags().BoolVar(&bugsJSON, "json", false, "Output JSON instead of a table")
}

func runBugsList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(ctx)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Failed to load configuration", err)
	}

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	bugs, err := bugstore.ListBugs(ctx, db)
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Failed to list bugs", err)
	}

	if bugsJSON {
		return printJSON(bugs)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "BUG ID\tTEST\tSEVERITY\tSTATUS\tFINGERPRINT\tSUMMARY")
	for _, bug := range bugs {
		fp := bug.Fingerprint
		if len(fp) > 12 {
			fp = fp[:12]
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			bug.ID, bug.TestName, bug.Severity, bug.Status, fp, bug.Summary)
	}
	return w.Flush()
}
