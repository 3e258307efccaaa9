// outbox-replay requeues DEAD or FAILED import events so the dispatcher
// retries them. Use after a Pub/Sub outage once the topic is reachable again.
//
// Usage:
//   go run ./cmd/outbox-replay [--ids 1,2,3] [--include-failed] [--dry-run]
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rosterpilot/roster_backend/config"
	"github.com/rosterpilot/roster_backend/models"
)

func main() {
	idsFlag := flag.String("ids", "", "comma-separated record ids; empty means all eligible records")
	includeFailed := flag.Bool("include-failed", false, "also requeue FAILED records (default DEAD only)")
	dryRun := flag.Bool("dry-run", false, "print the matching records without changing them")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	statuses := []string{models.OutboxPublishStatusDead}
	if *includeFailed {
		statuses = append(statuses, models.OutboxPublishStatusFailed)
	}

	q := db.Model(&models.ImportEventRecord{}).Where("publish_status IN ?", statuses)
	if strings.TrimSpace(*idsFlag) != "" {
		var ids []int
		for _, part := range strings.Split(*idsFlag, ",") {
			id, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil || id <= 0 {
				fmt.Fprintf(os.Stderr, "invalid id %q\n", part)
				os.Exit(1)
			}
			ids = append(ids, id)
		}
		q = q.Where("id IN ?", ids)
	}

	if *dryRun {
		var records []models.ImportEventRecord
		if err := q.Order("id ASC").Find(&records).Error; err != nil {
			fmt.Fprintf(os.Stderr, "query failed: %v\n", err)
			os.Exit(1)
		}
		for _, rec := range records {
			fmt.Printf("id=%d team_id=%d import_job_id=%d status=%s attempts=%d\n",
				rec.ID, rec.TeamId, rec.ImportJobId, rec.PublishStatus, rec.PublishAttempts)
		}
		fmt.Printf("%d record(s) would be requeued\n", len(records))
		return
	}

	res := q.Updates(map[string]interface{}{
		"publish_status":     models.OutboxPublishStatusPending,
		"publish_attempts":   0,
		"next_attempt_at":    nil,
		"locked_at":          nil,
		"locked_by":          nil,
		"last_publish_error": nil,
	})
	if res.Error != nil {
		fmt.Fprintf(os.Stderr, "requeue failed: %v\n", res.Error)
		os.Exit(1)
	}
	fmt.Printf("%d record(s) requeued\n", res.RowsAffected)
}
