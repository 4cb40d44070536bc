package cli

import (
	"context"
	"fmt"
	"time"
)

func (c *Cli) runConflicts(ctx context.Context) error {
	if _, err := c.requireSession(ctx); err != nil {
		return err
	}

	resp, err := c.apiClient.ListConflicts(ctx)
	if err != nil {
		return err
	}

	if resp.Total == 0 {
		fmt.Println("✓ No conflicts awaiting manual resolution.")
		return nil
	}

	fmt.Printf("=== Pending Conflicts (%d) ===\n", resp.Total)

	for _, entry := range resp.Conflicts {
		fmt.Println()
		fmt.Printf("Entry:    %s\n", entry.ID)
		fmt.Printf("Record:   %s/%s field %q\n", entry.EntityKind, entry.RecordID, entry.FieldName)
		if entry.SafetyCritical {
			fmt.Println("⚠️  SAFETY CRITICAL")
		}
		fmt.Printf("Strategy: %s\n", entry.Strategy)
		if entry.DowngradeReason != "" {
			fmt.Printf("Note:     auto-resolution failed: %s\n", entry.DowngradeReason)
		}
		fmt.Printf("Local:    %s (by %s on %s at %s)\n",
			formatValue(entry.Local.Value), entry.Local.UserID, entry.Local.DeviceID,
			entry.Local.Timestamp.Format(time.RFC3339))
		fmt.Printf("Server:   %s (by %s on %s at %s)\n",
			formatValue(entry.Server.Value), entry.Server.UserID, entry.Server.DeviceID,
			entry.Server.Timestamp.Format(time.RFC3339))
		fmt.Printf("Detected: %s\n", entry.CreatedAt.Format(time.RFC3339))
	}

	fmt.Println()
	fmt.Println("Resolve with: fleetctl resolve -id <entry-id> -value <json-value>")
	return nil
}
