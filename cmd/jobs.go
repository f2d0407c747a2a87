package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/talentsift/talentsift/internal/blob"
	"github.com/talentsift/talentsift/internal/logger"
	"github.com/talentsift/talentsift/internal/store"
	"github.com/talentsift/talentsift/internal/tracker"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Administer screening jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all jobs",
	Run: func(_ *cobra.Command, _ []string) {
		jobsList()
	},
}

var jobsDeleteCmd = &cobra.Command{
	Use:   "delete <job-id>",
	Short: "Delete a job with its reports, tracker record and uploaded documents",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		jobsDelete(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsDeleteCmd)

	jobsDeleteCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation")
}

func jobsList() {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if config == nil {
		logger.Fatal("config is required")
	}

	st := openStore(ctx, config, logger)
	defer st.Close()

	jobs, err := st.ListJobs(ctx)
	if err != nil {
		logger.Fatal("listing jobs", zap.Error(err))
	}

	if len(jobs) == 0 {
		fmt.Println("no jobs found")
		return
	}

	for _, job := range jobs {
		fmt.Printf("%s  %-30s  screened: %d  created: %s\n",
			job.ID, job.Title, job.ScreenedCount, job.CreatedAt.Format("2006-01-02"))
	}
}

func jobsDelete(cmd *cobra.Command, jobID string) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if config == nil {
		logger.Fatal("config is required")
	}

	st := openStore(ctx, config, logger)
	defer st.Close()

	job, err := st.GetJob(ctx, jobID)
	if errors.Is(err, store.ErrNotFound) {
		logger.Fatal("job not found", zap.String("job_id", jobID))
	}
	if err != nil {
		logger.Fatal("loading job", zap.Error(err))
	}

	if cmd.Flag("auto-approve").Value.String() == "false" {
		prompt := promptui.Select{
			Label: fmt.Sprintf("Delete job %q (%s) with all its reports?", job.Title, job.ID),
			Items: []string{PromptNo, PromptYes},
		}

		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
		if action != PromptYes {
			logger.Info("exiting", zap.String("reason", "got no from prompt"))
			return
		}
	}

	if err := st.DeleteJobCascade(ctx, jobID); err != nil {
		logger.Fatal("deleting job", zap.Error(err))
	}

	if config.Storage != nil {
		blobs, err := blob.NewStore(ctx, *config.Storage, logger)
		if err != nil {
			logger.Warn("skipping uploaded document cleanup", zap.Error(err))
		} else if err := blobs.DeletePrefix(ctx, tracker.BatchPrefix(jobID)); err != nil {
			logger.Warn("clearing uploaded documents failed", zap.Error(err))
		}
	}

	logger.Info("job deleted",
		zap.String("job_id", jobID),
		zap.String("title", job.Title),
	)
}
