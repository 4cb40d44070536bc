package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/fleetkeeper/fleetkeeper/internal/client/storage"
	"github.com/fleetkeeper/fleetkeeper/pkg/api"
)

func (c *Cli) runLogin(ctx context.Context) error {
	fmt.Println("=== Login ===")
	fmt.Println()

	deviceID, err := readInput("Device ID: ")
	if err != nil {
		return fmt.Errorf("failed to read device id: %w", err)
	}

	userID, err := readInput("User ID (who is operating this device): ")
	if err != nil {
		return fmt.Errorf("failed to read user id: %w", err)
	}

	secret, err := readSecret("Enrollment secret: ")
	if err != nil {
		return fmt.Errorf("failed to read secret: %w", err)
	}

	fmt.Println()
	fmt.Println("Authenticating...")

	resp, err := c.apiClient.Login(ctx, api.LoginRequest{
		DeviceID: deviceID,
		Secret:   secret,
		UserID:   userID,
	})
	if err != nil {
		return err
	}

	session := &storage.Session{
		DeviceID:    deviceID,
		UserID:      userID,
		AccessToken: resp.AccessToken,
		ExpiresAt:   time.Now().Unix() + resp.ExpiresIn,
	}

	if err := c.sessions.SaveSession(ctx, session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	fmt.Println()
	fmt.Println("✓ Login successful!")
	fmt.Printf("Device: %s\n", deviceID)
	fmt.Printf("User:   %s\n", userID)
	fmt.Printf("Access token expires in: %d seconds\n", resp.ExpiresIn)

	return nil
}
