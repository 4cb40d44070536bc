package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/fleetkeeper/fleetkeeper/internal/client/api"
	"github.com/fleetkeeper/fleetkeeper/internal/client/storage"
)

// Cli связывает команды fleetctl с API клиентом и локальным хранилищем
type Cli struct {
	apiClient *api.Client
	sessions  storage.SessionStorage
	queue     storage.QueueStorage
}

// New создает новый Cli
func New(apiClient *api.Client, sessions storage.SessionStorage, queue storage.QueueStorage) *Cli {
	return &Cli{
		apiClient: apiClient,
		sessions:  sessions,
		queue:     queue,
	}
}

// Run выполняет команду; при ошибке печатает ее в stderr и завершает
// процесс с ненулевым кодом
func (c *Cli) Run(ctx context.Context, command string, args []string) {
	var err error

	switch command {
	case "register":
		err = c.runRegister(ctx)
	case "login":
		err = c.runLogin(ctx)
	case "logout":
		err = c.runLogout(ctx)
	case "status":
		err = c.runStatus(ctx)
	case "write":
		err = c.runWrite(ctx, args)
	case "push":
		err = c.runPush(ctx)
	case "conflicts":
		err = c.runConflicts(ctx)
	case "resolve":
		err = c.runResolve(ctx, args)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		PrintUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// PrintUsage печатает справку по командам
func PrintUsage() {
	fmt.Println("FleetKeeper client - vessel-side maintenance record sync")
	fmt.Println()
	fmt.Println("Usage: fleetctl [flags] <command> [args]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  register              Register this device with the shore server")
	fmt.Println("  login                 Authenticate and store a session")
	fmt.Println("  logout                Remove the stored session")
	fmt.Println("  status                Show session and offline queue status")
	fmt.Println("  write                 Submit a record write (queued when offline)")
	fmt.Println("  push                  Push queued writes to the server")
	fmt.Println("  conflicts             List conflicts awaiting manual resolution")
	fmt.Println("  resolve               Resolve a conflict by ledger entry id")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  -server URL           Server URL (default http://localhost:8080)")
	fmt.Println("  -db PATH              Path to local database")
	fmt.Println("  -version              Show version information")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println(`  fleetctl write -kind work_order -id wo-100 -base 2 status=completed notes="replaced seal"`)
	fmt.Println("  fleetctl resolve -id <entry-id> -value 8")
}
