package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/coldforge/shepherd/internal/events"
	"github.com/coldforge/shepherd/internal/models"
	"github.com/coldforge/shepherd/internal/shepherd"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var cmdRun = &cobra.Command{
	Use:   "run <pipeline-file>",
	Short: "Start a run for the pipeline described by <pipeline-file> and wait for it to finish.",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func init() {
	cmdRun.Flags().StringToString("var", nil, "run-specific variable, may be repeated (key=value)")
}

func runRun(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	noColor, _ := cmd.Flags().GetBool("no-color")
	runVars, _ := cmd.Flags().GetStringToString("var")

	pipeline, err := loadPipelineFile(args[0])
	if err != nil {
		return err
	}

	s, err := core(configPath)
	if err != nil {
		return err
	}

	if s.ParallelismLimitExceeded(pipeline.NamespaceID, pipeline.PipelineID, pipeline.Parallelism) {
		return fmt.Errorf("pipeline %q has already reached its parallelism limit of %d", pipeline.PipelineID, pipeline.Parallelism)
	}

	variables := make([]models.Variable, 0, len(runVars))
	for key, value := range runVars {
		variables = append(variables, models.Variable{
			Key: strings.ToUpper(key), Value: value, Source: models.VariableSourceRunOptions,
		})
	}

	runID, err := nextRunID(s, pipeline.NamespaceID, pipeline.PipelineID)
	if err != nil {
		return err
	}

	run := models.NewRun(pipeline.NamespaceID, pipeline.PipelineID, runID,
		models.Initiator{Type: models.InitiatorTypeHuman, Name: "cli", Reason: "manual run"}, variables)

	if err := s.DB.InsertRun(s.DB.DB, run.ToStorage()); err != nil {
		return fmt.Errorf("could not register run: %w", err)
	}

	sub := s.Bus.Subscribe()
	defer s.Bus.Unsubscribe(sub)

	if err := s.StartRun(pipeline, run); err != nil {
		return err
	}

	fmt.Printf("started run %d for pipeline %q at %s\n", run.RunID, pipeline.PipelineID, humanize.Time(time.Now()))

	for evt := range sub.Events {
		completed, ok := evt.(*events.CompletedRun)
		if !ok || completed.Metadata().RunID != run.RunID {
			continue
		}
		printRunStatus(pipeline, run.RunID, s, noColor)
		return nil
	}

	return nil
}

func nextRunID(s *shepherd.Shepherd, namespace, pipeline string) (int64, error) {
	runs, err := s.DB.ListRuns(s.DB.DB, 0, 1, namespace, pipeline)
	if err != nil {
		return 0, fmt.Errorf("could not determine next run id: %w", err)
	}
	if len(runs) == 0 {
		return 1, nil
	}
	return runs[0].ID + 1, nil
}

func printRunStatus(pipeline *models.Pipeline, runID int64, s *shepherd.Shepherd, noColor bool) {
	executions, err := s.DB.ListTaskExecutions(s.DB.DB, 0, 0, pipeline.NamespaceID, pipeline.PipelineID, runID)
	if err != nil {
		fmt.Printf("could not list task executions: %v\n", err)
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Task", "State", "Status", "Exit Code"})

	for _, te := range executions {
		status := te.Status
		if !noColor {
			status = colorizeStatus(te.Status)
		}
		table.Append([]string{te.ID, te.State, status, fmt.Sprintf("%d", te.ExitCode)})
	}

	table.Render()
}

func colorizeStatus(status string) string {
	switch models.TaskExecutionStatus(status) {
	case models.TaskExecutionStatusSuccessful:
		return color.GreenString(status)
	case models.TaskExecutionStatusFailed:
		return color.RedString(status)
	case models.TaskExecutionStatusCancelled, models.TaskExecutionStatusSkipped:
		return color.YellowString(status)
	default:
		return status
	}
}
