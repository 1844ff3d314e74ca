package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/planningpoker/go/internal/dbconfig"
)

// Backlog mirrors the JSON import file
type Backlog struct {
	GameID string   `json:"game_id"`
	Issues []string `json:"issues"`
}

func main() {
	path := "backlog.json"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	// 1) Load the JSON backlog
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read JSON: %v\n", err)
		os.Exit(1)
	}
	var backlog Backlog
	if err := json.Unmarshal(data, &backlog); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal JSON: %v\n", err)
		os.Exit(1)
	}
	if backlog.GameID == "" {
		fmt.Fprintln(os.Stderr, "game_id is required")
		os.Exit(1)
	}

	// 2) Connect using shared dbconfig
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(context.Background(), cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 3) Insert titles not already in the room
	var (
		total    = len(backlog.Issues)
		inserted int
		skipped  int
		errs     int
	)

	for _, title := range backlog.Issues {
		title = strings.TrimSpace(title)
		if title == "" {
			skipped++
			continue
		}
		cmdTag, err := pool.Exec(context.Background(), `
            INSERT INTO issues (game_id, title)
            SELECT $1, $2
            WHERE NOT EXISTS (
              SELECT 1 FROM issues WHERE game_id = $1 AND title = $2
            )
        `, backlog.GameID, title)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error inserting issue %q: %v\n", title, err)
			errs++
			continue
		}
		if cmdTag.RowsAffected() == 1 {
			inserted++
		} else {
			skipped++
		}
	}

	// 4) Print summary
	fmt.Printf(
		"Backlog import complete: %d total, %d inserted, %d skipped, %d errors\n",
		total, inserted, skipped, errs,
	)
}
