package checker

import (
	"context"
	"fmt"
	"time"

	"github.com/sells-group/reality-cli/pkg/notion"
)

// TaskTrackerChecker probes the Notion task database: is it reachable with
// the configured integration token.
type TaskTrackerChecker struct {
	client     notion.Client
	databaseID string
}

// NewTaskTracker creates a task-tracker checker. A nil client (no token
// configured) makes the checker report a configuration gap.
func NewTaskTracker(client notion.Client, databaseID string) *TaskTrackerChecker {
	return &TaskTrackerChecker{client: client, databaseID: databaseID}
}

func (c *TaskTrackerChecker) Name() Source { return SourceTaskTracker }

func (c *TaskTrackerChecker) Configured() bool {
	return c.client != nil && c.databaseID != ""
}

func (c *TaskTrackerChecker) Check(ctx context.Context) Result {
	start := time.Now()

	if !c.Configured() {
		return ConfigGap(SourceTaskTracker, "notion token and database id not configured")
	}

	db, err := c.client.GetDatabase(ctx, c.databaseID)
	if err != nil {
		if ctx.Err() != nil {
			return TimedOut(SourceTaskTracker, time.Since(start))
		}
		return Failed(SourceTaskTracker, fmt.Sprintf("get database: %v", err), time.Since(start))
	}

	title := ""
	if len(db.Title) > 0 {
		title = db.Title[0].PlainText
	}

	return OK(SourceTaskTracker, map[string]any{
		"database_reachable": true,
		"database_title":     title,
		"property_count":     len(db.Properties),
	}, time.Since(start))
}
