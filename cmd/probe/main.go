package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/lunia-systems/lunia-console/internal/api"
	"github.com/lunia-systems/lunia-console/internal/model"
)

// probe performs one-shot health and status checks against the control
// API, with the same identity headers the console would send.
func main() {
	baseURL := flag.String("api", "http://localhost:8080", "control API base URL")
	tenant := flag.String("tenant", "", "tenant id header")
	bearer := flag.String("bearer", "", "bearer token")
	admin := flag.String("admin", "", "admin token")
	ops := flag.String("ops", "", "ops token")
	timeout := flag.Duration("timeout", 10*time.Second, "request timeout")
	flag.Parse()

	id := model.Identity{
		Role:     model.RoleUser,
		TenantID: *tenant,
		Credentials: model.Credentials{
			BearerToken: *bearer,
			AdminToken:  *admin,
			OpsToken:    *ops,
		},
	}

	client := api.NewClient(*baseURL, *timeout)
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	health, err := client.Health(ctx, id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "health check failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("health: %s\n", health.Status)

	status, err := client.Status(ctx, id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "status check failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("version: %s uptime: %.0fs cores: %d\n", status.Version, status.Uptime, len(status.ActiveCores))
}
