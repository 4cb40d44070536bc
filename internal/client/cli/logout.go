package cli

import (
	"context"
	"fmt"

	"github.com/fleetkeeper/fleetkeeper/internal/client/storage"
)

func (c *Cli) runLogout(ctx context.Context) error {
	if err := c.sessions.DeleteSession(ctx); err != nil {
		if err == storage.ErrSessionNotFound {
			fmt.Println("Not logged in.")
			return nil
		}
		return fmt.Errorf("failed to delete session: %w", err)
	}

	fmt.Println("✓ Logged out.")
	return nil
}
