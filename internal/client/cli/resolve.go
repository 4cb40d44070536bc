package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"

	"github.com/fleetkeeper/fleetkeeper/pkg/api"
)

func (c *Cli) runResolve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	entryID := fs.String("id", "", "Conflict ledger entry id")
	rawValue := fs.String("value", "", "Final value for the field (JSON or plain string)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *entryID == "" {
		return fmt.Errorf("-id is required")
	}
	if *rawValue == "" {
		return fmt.Errorf("-value is required")
	}

	var value any
	if err := json.Unmarshal([]byte(*rawValue), &value); err != nil {
		value = *rawValue
	}

	if _, err := c.requireSession(ctx); err != nil {
		return err
	}

	entry, err := c.apiClient.ResolveConflict(ctx, api.ResolveRequest{
		EntryID: *entryID,
		Value:   value,
	})
	if err != nil {
		return err
	}

	fmt.Println("✓ Conflict resolved.")
	fmt.Printf("Record: %s/%s field %q\n", entry.EntityKind, entry.RecordID, entry.FieldName)
	fmt.Printf("Value:  %s\n", formatValue(entry.ResolvedValue))
	fmt.Printf("By:     %s\n", entry.ResolvedBy)
	return nil
}
