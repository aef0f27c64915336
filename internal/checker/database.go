package checker

import (
	"context"
	"fmt"
	"strings"
	"time"

	supabase "github.com/supabase-community/supabase-go"
)

// DatabaseChecker probes a Supabase project over its REST API: can we
// connect with the configured key, and do the expected tables exist.
type DatabaseChecker struct {
	url    string
	key    string
	tables []string

	// newClient is swappable for tests.
	newClient func(url, key string) (*supabase.Client, error)
}

// NewDatabase creates a database checker. url and key come from
// configuration; expectedTables lists tables whose existence is reported
// as facts.
func NewDatabase(url, key string, expectedTables []string) *DatabaseChecker {
	return &DatabaseChecker{
		url:    url,
		key:    key,
		tables: expectedTables,
		newClient: func(url, key string) (*supabase.Client, error) {
			return supabase.NewClient(url, key, &supabase.ClientOptions{})
		},
	}
}

func (c *DatabaseChecker) Name() Source { return SourceDatabase }

// Configured requires both the project URL and an API key. Absent
// credentials skip the checker instead of failing the run.
func (c *DatabaseChecker) Configured() bool { return c.url != "" && c.key != "" }

func (c *DatabaseChecker) Check(ctx context.Context) Result {
	start := time.Now()

	if !c.Configured() {
		return ConfigGap(SourceDatabase, "database url and key not configured")
	}

	client, err := c.newClient(c.url, c.key)
	if err != nil {
		return Failed(SourceDatabase, fmt.Sprintf("create client: %v", err), time.Since(start))
	}

	probeTables := c.tables
	connectivityOnly := false
	if len(probeTables) == 0 {
		// No expected tables configured: probe a sentinel table. A
		// "table not found" response still proves the REST API answered.
		probeTables = []string{"__reality_probe__"}
		connectivityOnly = true
	}

	facts := map[string]any{}
	var existing []string
	reachable := false
	var lastErr string

	for _, table := range probeTables {
		if ctx.Err() != nil {
			return TimedOut(SourceDatabase, time.Since(start))
		}

		var rows []map[string]any
		_, err := client.From(table).Select("*", "", false).Limit(1, "").ExecuteTo(&rows)
		switch {
		case err == nil:
			reachable = true
			if !connectivityOnly {
				facts[fmt.Sprintf("table_%s_exists", table)] = true
				existing = append(existing, table)
			}
		case isMissingTableErr(err):
			reachable = true
			if !connectivityOnly {
				facts[fmt.Sprintf("table_%s_exists", table)] = false
			}
		default:
			lastErr = err.Error()
			if !connectivityOnly {
				facts[fmt.Sprintf("table_%s_exists", table)] = false
			}
		}
	}

	if !reachable {
		return Failed(SourceDatabase, fmt.Sprintf("database unreachable: %s", lastErr), time.Since(start))
	}

	facts["connected"] = true
	if !connectivityOnly {
		facts["tables_checked"] = len(probeTables)
		facts["tables_exist"] = existing
	}

	confidence := 1.0
	if lastErr != "" {
		// Some probes errored for reasons other than a missing table
		// (e.g. row-level security denying the anon key).
		confidence = 0.7
	}
	return Degraded(SourceDatabase, confidence, facts, time.Since(start))
}

// isMissingTableErr recognizes PostgREST's responses for a nonexistent table.
func isMissingTableErr(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "does not exist") ||
		strings.Contains(msg, "could not find the table") ||
		strings.Contains(msg, "42p01")
}
