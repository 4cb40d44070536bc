package cli

import (
	"context"
	"fmt"

	clientapi "github.com/fleetkeeper/fleetkeeper/internal/client/api"
)

func (c *Cli) runPush(ctx context.Context) error {
	if _, err := c.requireSession(ctx); err != nil {
		return err
	}

	queued, err := c.queue.ListQueued(ctx)
	if err != nil {
		return fmt.Errorf("failed to read offline queue: %w", err)
	}

	if len(queued) == 0 {
		fmt.Println("Offline queue is empty, nothing to push.")
		return nil
	}

	fmt.Printf("Pushing %d queued write(s)...\n", len(queued))
	fmt.Println()

	pushed := 0
	for _, item := range queued {
		resp, err := c.apiClient.SubmitWrite(ctx, item.Request)
		if err != nil {
			if clientapi.IsNetworkError(err) {
				// Связь снова пропала: остаток очереди ждет следующего push
				fmt.Printf("⚠️  Server unreachable, %d write(s) left in queue.\n", len(queued)-pushed)
				return nil
			}
			return fmt.Errorf("push of %s failed: %w", item.Request.RecordID, err)
		}

		// Любой ответ сервера (включая escalated и rejected) означает,
		// что запись доставлена и из очереди ее можно убрать
		if err := c.queue.DequeueWrite(ctx, item.Seq); err != nil {
			return fmt.Errorf("failed to dequeue pushed write: %w", err)
		}
		pushed++

		printWriteOutcome(item.Request.RecordID, resp)
	}

	fmt.Println()
	fmt.Printf("✓ Pushed %d write(s).\n", pushed)
	return nil
}
