package cli

import (
	"context"
	"fmt"

	"github.com/fleetkeeper/fleetkeeper/pkg/api"
)

func (c *Cli) runRegister(ctx context.Context) error {
	fmt.Println("=== Device Registration ===")
	fmt.Println()

	orgID, err := readInput("Organization ID: ")
	if err != nil {
		return fmt.Errorf("failed to read org id: %w", err)
	}

	name, err := readInput("Device name: ")
	if err != nil {
		return fmt.Errorf("failed to read device name: %w", err)
	}

	secret, err := readSecret("Enrollment secret (min 12 chars): ")
	if err != nil {
		return fmt.Errorf("failed to read secret: %w", err)
	}

	fmt.Println()
	fmt.Println("Registering device...")

	resp, err := c.apiClient.Register(ctx, api.RegisterRequest{
		OrgID:  orgID,
		Name:   name,
		Secret: secret,
	})
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("✓ Device registered!")
	fmt.Printf("Device ID: %s\n", resp.DeviceID)
	fmt.Println()
	fmt.Println("Keep the device ID: it is needed for 'fleetctl login'.")

	return nil
}
