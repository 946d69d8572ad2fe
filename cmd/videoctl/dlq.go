package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/studymeta/backend/pkg/queue"
)

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Inspect and replay dead-lettered lecture sync jobs",
}

var dlqLenCmd = &cobra.Command{
	Use:   "len",
	Short: "Print work queue and DLQ lengths",
	RunE:  runDLQLen,
}

var dlqRequeueCmd = &cobra.Command{
	Use:   "requeue",
	Short: "Move dead-lettered jobs back to the work queue",
	RunE:  runDLQRequeue,
}

var requeueLimit int

func init() {
	dlqRequeueCmd.Flags().IntVar(&requeueLimit, "limit", 0, "maximum jobs to move (0 moves all)")
	dlqCmd.AddCommand(dlqLenCmd)
	dlqCmd.AddCommand(dlqRequeueCmd)
}

func openQueue(cmd *cobra.Command) (*queue.Queue, func(), error) {
	logger := newLogger()
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	rdb, err := openRedis(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		_ = rdb.Close()
		_ = logger.Sync()
	}
	return queue.NewQueue(rdb.Client, logger), closeFn, nil
}

func runDLQLen(cmd *cobra.Command, _ []string) error {
	q, closeFn, err := openQueue(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	for _, key := range []string{queue.QueueLectureSync, queue.QueueDLQ} {
		n, err := q.Len(cmd.Context(), key)
		if err != nil {
			return fmt.Errorf("llen %s: %w", key, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", key, n)
	}
	return nil
}

func runDLQRequeue(cmd *cobra.Command, _ []string) error {
	q, closeFn, err := openQueue(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	moved, err := q.RequeueDLQ(cmd.Context(), requeueLimit)
	fmt.Fprintf(cmd.OutOrStdout(), "requeued %d job(s)\n", moved)
	return err
}
