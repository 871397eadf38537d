package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/triagekit/triagekit/pkg/bugstore"
)

var jobsJSON bool

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect recorded jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all jobs, newest first",
	RunE:  runJobsList,
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status <job_id>",
	Short: "Show one job including its bugs",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsStatus,
}

var jobsLogsCmd = &cobra.Command{
	Use:   "logs <job_id>",
	Short: "Print a job's log lines",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsLogs,
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsListCmd, jobsStatusCmd, jobsLogsCmd)
	jobsCmd.PersistentFlags().BoolVar(&jobsJSON, "json", false, "Output JSON instead of a table")
}

func runJobsList(cmd *cobra.Command, args []string) error {
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

	jobs, err := bugstore.ListJobs(ctx, db)
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Failed to list jobs", err)
	}

	if jobsJSON {
		return printJSON(jobs)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "JOB ID\tSTATUS\tURL\tCREATED")
	for _, job := range jobs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			job.ID, job.Status, job.TestURL, job.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func runJobsStatus(cmd *cobra.Command, args []string) error {
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

	job, err := bugstore.GetJob(ctx, db, args[0])
	if err != nil {
		return exitError(foundry.ExitFileNotFound, "Failed to load job", err)
	}

	if jobsJSON {
		return printJSON(job)
	}

	fmt.Printf("Job:     %s\n", job.ID)
	fmt.Printf("Status:  %s\n", job.Status)
	fmt.Printf("URL:     %s\n", job.TestURL)
	fmt.Printf("Created: %s\n", job.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Updated: %s\n", job.UpdatedAt.Format("2006-01-02 15:04:05"))
	if len(job.Bugs) > 0 {
		fmt.Printf("Bugs (%d):\n", len(job.Bugs))
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "  TEST\tSEVERITY\tSTATUS\tSUMMARY")
		for _, bug := range job.Bugs {
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", bug.TestName, bug.Severity, bug.Status, bug.Summary)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func runJobsLogs(cmd *cobra.Command, args []string) error {
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

	job, err := bugstore.GetJob(ctx, db, args[0])
	if err != nil {
		return exitError(foundry.ExitFileNotFound, "Failed to load job", err)
	}

	if jobsJSON {
		return printJSON(job.Logs)
	}
	for _, line := range job.Logs {
		fmt.Println(line)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
