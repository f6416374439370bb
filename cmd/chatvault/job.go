package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/chatvault/chatvault/internal/jobevents"
	"github.com/chatvault/chatvault/internal/jobs"
	"github.com/chatvault/chatvault/internal/store"
	"github.com/chatvault/chatvault/internal/types"
)

var (
	jobTargetID   string
	jobTargetName string
	jobPattern    string
	jobType       string
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "submit and inspect pattern jobs against conversations and projects",
}

var jobSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "submit a pattern job and wait for it to finish",
	Run: func(cmd *cobra.Command, args []string) {
		b, err := resolveBootstrap(cmd)
		if err != nil {
			fail(exitArgumentErr, "%v", err)
		}

		jt := types.JobType(jobType)
		pat := types.Pattern(jobPattern)
		if !types.ValidPattern(jt, pat) {
			fail(exitArgumentErr, "pattern %q is not valid for job type %q", jobPattern, jobType)
		}

		s, coordinator, _, err := openCoordinator(rootCtx, b.DBPath)
		if err != nil {
			fail(exitIOErr, "%v", err)
		}
		defer s.Close()

		job, deduped, err := coordinator.Submit(rootCtx, jt, jobTargetID, jobTargetName, pat)
		if err != nil {
			fail(exitIOErr, "submit: %v", err)
		}
		if deduped {
			fmt.Printf("reused cached job %s (status=%s)\n", job.ID, job.Status)
			return
		}

		fmt.Printf("submitted job %s (status=%s)\n", job.ID, job.Status)
		watchJob(rootCtx, s, job.ID)
	},
}

var jobStatusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "print a job's current status",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		b, err := resolveBootstrap(cmd)
		if err != nil {
			fail(exitArgumentErr, "%v", err)
		}
		s, err := store.Open(rootCtx, b.DBPath, nil)
		if err != nil {
			fail(exitIOErr, "open store: %v", err)
		}
		defer s.Close()

		job, err := s.GetJob(rootCtx, args[0])
		if err != nil {
			fail(exitIOErr, "get job: %v", err)
		}
		printJob(job)
	},
}

var jobCancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "cancel a pending or running job",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		b, err := resolveBootstrap(cmd)
		if err != nil {
			fail(exitArgumentErr, "%v", err)
		}
		s, coordinator, _, err := openCoordinator(rootCtx, b.DBPath)
		if err != nil {
			fail(exitIOErr, "%v", err)
		}
		defer s.Close()

		if err := coordinator.Cancel(rootCtx, args[0]); err != nil {
			fail(exitIOErr, "cancel: %v", err)
		}
		fmt.Printf("cancelled job %s\n", args[0])
	},
}

var jobCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "check whether a cached job already satisfies this target and pattern",
	Run: func(cmd *cobra.Command, args []string) {
		b, err := resolveBootstrap(cmd)
		if err != nil {
			fail(exitArgumentErr, "%v", err)
		}
		s, coordinator, _, err := openCoordinator(rootCtx, b.DBPath)
		if err != nil {
			fail(exitIOErr, "%v", err)
		}
		defer s.Close()

		job, found, err := coordinator.Check(rootCtx, jobTargetID, types.Pattern(jobPattern))
		if err != nil {
			fail(exitIOErr, "check: %v", err)
		}
		if !found {
			fmt.Println("no cached job found")
			return
		}
		printJob(job)
	},
}

var jobStreamCmd = &cobra.Command{
	Use:   "stream <job-id>",
	Short: "follow a job's progress events until it finishes",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		b, err := resolveBootstrap(cmd)
		if err != nil {
			fail(exitArgumentErr, "%v", err)
		}
		s, err := store.Open(rootCtx, b.DBPath, nil)
		if err != nil {
			fail(exitIOErr, "open store: %v", err)
		}
		defer s.Close()

		watchJob(rootCtx, s, args[0])
	},
}

func init() {
	for _, c := range []*cobra.Command{jobSubmitCmd, jobCheckCmd} {
		c.Flags().StringVar(&jobTargetID, "target", "", "conversation or project gizmo id")
		c.Flags().StringVar(&jobTargetName, "target-name", "", "human-readable target name, stored on the job")
		c.Flags().StringVar(&jobPattern, "pattern", "", "pattern name, e.g. extract_wisdom")
		c.Flags().StringVar(&jobType, "type", string(types.JobTypeConversation), "job type: conversation or project")
	}
	jobCmd.AddCommand(jobSubmitCmd, jobStatusCmd, jobCancelCmd, jobCheckCmd, jobStreamCmd)
}

// openCoordinator wires a jobs.Coordinator against the worker binary built
// alongside chatvault, following the same sibling-binary resolution the
// teacher's cmd/bd uses for its helper processes.
func openCoordinator(ctx context.Context, dbPath string) (*store.Store, *jobs.Coordinator, *jobevents.Bus, error) {
	s, err := store.Open(ctx, dbPath, nil)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open store: %w", err)
	}
	bus := jobevents.NewBus()
	worker := workerBinaryPath()
	coordinator := jobs.New(s, bus, nil, jobs.WithWorkerBinary(worker))
	return s, coordinator, bus, nil
}

func workerBinaryPath() string {
	if exe, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(exe), "chatvault-worker")
		if _, err := os.Stat(sibling); err == nil {
			return sibling
		}
	}
	return "chatvault-worker"
}

func printJob(job types.Job) {
	fmt.Printf("job %s: type=%s target=%s pattern=%s status=%s\n", job.ID, job.Type, job.TargetID, job.Pattern, job.Status)
	if job.Progress != nil {
		fmt.Printf("  progress: %d/%d %s\n", job.Progress.Current, job.Progress.Total, job.Progress.Message)
	}
	if job.Error != "" {
		fmt.Printf("  error: %s\n", job.Error)
	}
	if job.ResultPath != "" {
		fmt.Printf("  result: %s\n", job.ResultPath)
	}
}

// watchJob polls the store rather than subscribing through jobevents.Bus,
// since a freshly-opened store in a one-shot CLI process never observes
// the Bus events a long-lived httpapi.Server would have published.
func watchJob(ctx context.Context, s *store.Store, jobID string) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			job, err := s.GetJob(ctx, jobID)
			if err != nil {
				fail(exitIOErr, "get job: %v", err)
			}
			printJob(job)
			if job.Status.Terminal() {
				return
			}
		}
	}
}
