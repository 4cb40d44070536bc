package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/fleetkeeper/fleetkeeper/internal/client/storage"
)

func (c *Cli) runStatus(ctx context.Context) error {
	fmt.Println("=== Status ===")
	fmt.Println()

	session, err := c.sessions.GetSession(ctx)
	if err != nil {
		if err == storage.ErrSessionNotFound {
			fmt.Println("Session: not authenticated")
			fmt.Println()
			fmt.Println("Run 'fleetctl login' to authenticate.")
		} else {
			return fmt.Errorf("failed to load session: %w", err)
		}
	} else {
		expiresAt := time.Unix(session.ExpiresAt, 0)
		remaining := time.Until(expiresAt)

		fmt.Println("Session: authenticated")
		fmt.Printf("Device:  %s\n", session.DeviceID)
		fmt.Printf("User:    %s\n", session.UserID)
		fmt.Printf("Token expires: %s\n", expiresAt.Format(time.RFC3339))

		if remaining > 0 {
			fmt.Printf("Time remaining: %s\n", remaining.Round(time.Second))
		} else {
			fmt.Println("⚠️  Token has expired. Please login again.")
		}
	}

	// Оффлайн-очередь записей
	count, err := c.queue.QueuedCount(ctx)
	if err != nil {
		return fmt.Errorf("failed to read offline queue: %w", err)
	}

	fmt.Println()
	if count > 0 {
		fmt.Printf("⚠️  Offline queue: %d write(s) waiting\n", count)
		fmt.Println("Run 'fleetctl push' when the vessel is back online.")
	} else {
		fmt.Println("✓ Offline queue is empty")
	}

	return nil
}
