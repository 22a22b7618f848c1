package main

import (
	"context"

	"pachidata-backend/cmd/slotdata-cli/commands"
	"pachidata-backend/lib/telemetry"
)

func main() {
	telemetry.SetupFromEnv(context.Background(), "slotdata-cli")
	telemetry.InitSlog(true)
	commands.ExecuteContext(context.Background())
}
