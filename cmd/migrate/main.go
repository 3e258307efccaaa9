// migrate runs the schema migrations as a standalone job. Deploys that set
// SKIP_MIGRATIONS=true on the server run this before rolling a new revision.
package main

import (
	"fmt"
	"os"

	"github.com/rosterpilot/roster_backend/config"
	"github.com/rosterpilot/roster_backend/models"
)

func main() {
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()
	fmt.Println("migrations complete")
}
