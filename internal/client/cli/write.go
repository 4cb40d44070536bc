package cli

import (
	"context"
	"flag"
	"fmt"
	"time"

	clientapi "github.com/fleetkeeper/fleetkeeper/internal/client/api"
	"github.com/fleetkeeper/fleetkeeper/internal/client/storage"
	"github.com/fleetkeeper/fleetkeeper/pkg/api"
)

func (c *Cli) runWrite(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("write", flag.ContinueOnError)
	kind := fs.String("kind", "", "Entity kind (work_order, crew_assignment, rest_hour, equipment)")
	recordID := fs.String("id", "", "Record id")
	baseVersion := fs.Int64("base", 0, "Record version this edit is based on (0 for a new record)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *kind == "" || *recordID == "" {
		return fmt.Errorf("-kind and -id are required")
	}

	fields, err := parseFieldArgs(fs.Args())
	if err != nil {
		return err
	}

	if _, err := c.requireSession(ctx); err != nil {
		return err
	}

	req := api.WriteRequest{
		EntityKind:  *kind,
		RecordID:    *recordID,
		Fields:      fields,
		BaseVersion: *baseVersion,
		ModifiedAt:  time.Now().UTC(),
	}

	resp, err := c.apiClient.SubmitWrite(ctx, req)
	if err != nil {
		if clientapi.IsNetworkError(err) {
			// Судно вне связи: запись не теряется, а встает в очередь
			queued := &storage.QueuedWrite{
				Request:    req,
				EnqueuedAt: time.Now().Unix(),
			}
			if qErr := c.queue.EnqueueWrite(ctx, queued); qErr != nil {
				return fmt.Errorf("server unreachable and failed to queue write: %w", qErr)
			}
			fmt.Println("⚠️  Server unreachable. Write queued locally.")
			fmt.Println("Run 'fleetctl push' when the vessel is back online.")
			return nil
		}
		return err
	}

	printWriteOutcome(*recordID, resp)
	return nil
}

// printWriteOutcome печатает исход записи в человекочитаемом виде
func printWriteOutcome(recordID string, resp *api.WriteResponse) {
	switch resp.Status {
	case "committed":
		fmt.Printf("✓ %s committed, new version %d\n", recordID, resp.NewVersion)
	case "escalated":
		fmt.Printf("⚠️  %s has conflicts requiring manual resolution:\n", recordID)
		for _, id := range resp.ConflictIDs {
			fmt.Printf("  %s\n", id)
		}
		fmt.Println("Run 'fleetctl conflicts' to review them.")
	case "rejected":
		fmt.Printf("✗ %s rejected: %s\n", recordID, resp.Reason)
	default:
		fmt.Printf("%s: %s\n", recordID, resp.Status)
	}
}
