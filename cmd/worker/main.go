package main

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"github.com/google/uuid"

	"github.com/flowme-cloud/flowme-backend/config"
	"github.com/flowme-cloud/flowme-backend/internal/bootstrap"
	"github.com/flowme-cloud/flowme-backend/internal/cleanup"
	"github.com/flowme-cloud/flowme-backend/internal/logging"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: worker cleanup <pageId> | worker sweep")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := logging.WithRequestID(context.Background(), "worker-"+uuid.NewString())
	app, err := bootstrap.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize app: %v", err)
	}
	defer app.Close()

	switch os.Args[1] {
	case "cleanup":
		if len(os.Args) < 3 {
			log.Fatal("usage: worker cleanup <pageId>")
		}
		runCleanup(ctx, app, os.Args[2])
	case "sweep":
		cleared, err := app.Events.Sweep(ctx)
		if err != nil {
			log.Fatalf("sweep failed: %v", err)
		}
		log.Printf("sweep cleared=%d", cleared)
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

// runCleanup reconciles one page through the same filter the webhook uses,
// as if the page had just been published.
func runCleanup(ctx context.Context, app *bootstrap.App, pageID string) {
	event := cleanup.PageEvent{"contentId": pageID, "updateTrigger": cleanup.TriggerEditPage}
	app.Events.HandlePageUpdated(ctx, event)

	if app.Audit == nil {
		return
	}
	runs, err := app.Audit.ListByPage(ctx, pageID, 1)
	if err != nil || len(runs) == 0 {
		return
	}
	out, _ := json.MarshalIndent(runs[0], "", "  ")
	os.Stdout.Write(append(out, '\n'))
}
