package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/buddyengineerz/storefront/internal/server"
)

var (
	queueWorkersFlag int
	scheduleOnceFlag bool
)

// buddy queue:work
var queueWorkCmd = &cobra.Command{
	Use:   "queue:work",
	Short: "Start the queue workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := server.Boot(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		workers := queueWorkersFlag
		if workers < 1 {
			workers = 4
		}
		fmt.Printf("Queue worker started (%d workers). Press Ctrl+C to stop.\n", workers)
		a.Queue.StartWorkers(ctx, workers).Wait()
		fmt.Println("Queue worker stopped.")
		return nil
	},
}

// buddy schedule:run
var scheduleRunCmd = &cobra.Command{
	Use:   "schedule:run",
	Short: "Start the task scheduler, or run every task once with --once",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := server.Boot(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if scheduleOnceFlag {
			for _, name := range a.Scheduler.RunDue(ctx, time.Now(), true) {
				fmt.Println("  ran", name)
			}
			return nil
		}

		fmt.Println("Registered scheduled tasks:")
		for _, t := range a.Scheduler.List() {
			fmt.Println("  •", t)
		}
		fmt.Println("Scheduler started. Press Ctrl+C to stop.")
		a.Scheduler.Start(ctx)
		<-ctx.Done()
		a.Scheduler.Wait()
		fmt.Println("Scheduler stopped.")
		return nil
	},
}

func init() {
	queueWorkCmd.Flags().IntVarP(&queueWorkersFlag, "workers", "w", 4, "Number of concurrent workers")
	scheduleRunCmd.Flags().BoolVar(&scheduleOnceFlag, "once", false, "Run every task now and exit")
}
