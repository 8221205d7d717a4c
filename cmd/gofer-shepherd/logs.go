package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/coldforge/shepherd/internal/logs"
	"github.com/spf13/cobra"
)

var cmdLogs = &cobra.Command{
	Use:   "logs <namespace> <pipeline> <run-id> <task-id>",
	Short: "Follow a task execution's combined stdout/stderr log until it finishes.",
	Args:  cobra.ExactArgs(4),
	RunE:  runLogs,
}

func runLogs(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	s, err := core(configPath)
	if err != nil {
		return err
	}

	runID, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", args[2], err)
	}

	path := logs.FilePath(s.Config.TaskRunLogsDir, args[0], args[1], runID, args[3])

	stop := make(chan struct{})
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		close(stop)
	}()

	return logs.Follow(path, stop, func(line string) {
		fmt.Println(line)
	})
}
