package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tourney/cmd"
	"tourney/database"
	"tourney/service"

	log "github.com/sirupsen/logrus"
)

const usage = "usage: tourney [serve | reconcile | migrate up|down|status [args...]]"

func main() {
	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	if command == "migrate" {
		if err := handleMigrationCommand(); err != nil {
			log.Fatal("Migration error: ", err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch command {
	case "serve":
		if err := cmd.Run(ctx); err != nil {
			log.Fatal("Application error: ", err)
		}
	case "reconcile":
		os.Exit(runReconcile(ctx))
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
}

func runReconcile(ctx context.Context) int {
	result, err := cmd.Reconcile(ctx)
	if err != nil {
		log.WithError(err).Error("Reconcile failed")
		return 1
	}

	fmt.Printf("examined %d, updated %d, skipped %d\n", result.Examined, result.UpdatedCount, result.Skipped)
	failed := service.FailedTournamentIDs(result)
	for _, id := range failed {
		fmt.Printf("failed: %s\n", id)
	}
	if len(failed) > 0 {
		return 1
	}
	return 0
}

func handleMigrationCommand() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("%s", usage)
	}

	command := os.Args[2]
	switch command {
	case "up":
		return database.MigrateUp()
	case "down":
		steps := "1"
		if len(os.Args) > 3 {
			steps = os.Args[3]
		}
		return database.MigrateDown(steps)
	case "status":
		return database.MigrateStatus()
	default:
		return fmt.Errorf("unknown migration command: %s", command)
	}
}
