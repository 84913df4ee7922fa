package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Prints every transaction the server currently holds open and the row
// locks it owns. Handy when a probe run reports leaked transactions or a
// lock clause probe hangs.
func main() {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = db.Close() }() // Error ignored: script exiting

	rows, err := db.Query(`
		SELECT a.pid,
		       COALESCE(a.state, ''),
		       COALESCE(a.xact_start::text, ''),
		       COALESCE(l.mode, ''),
		       COALESCE(l.relation::regclass::text, ''),
		       l.granted
		FROM pg_stat_activity a
		JOIN pg_locks l ON l.pid = a.pid
		WHERE a.xact_start IS NOT NULL
		  AND a.pid <> pg_backend_pid()
		ORDER BY a.xact_start, a.pid
	`)
	if err != nil {
		log.Fatalf("Failed to query lock state: %v", err)
	}
	defer rows.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PID\tSTATE\tXACT START\tLOCK MODE\tRELATION\tGRANTED")

	count := 0
	for rows.Next() {
		var (
			pid       int
			state     string
			xactStart string
			mode      string
			relation  string
			granted   bool
		)
		if err := rows.Scan(&pid, &state, &xactStart, &mode, &relation, &granted); err != nil {
			log.Fatalf("Failed to scan row: %v", err)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%v\n", pid, state, xactStart, mode, relation, granted)
		count++
	}
	if err := rows.Err(); err != nil {
		log.Fatalf("Failed to read lock state: %v", err)
	}

	if err := w.Flush(); err != nil {
		log.Fatalf("Failed to write output: %v", err)
	}
	fmt.Printf("\n%d lock(s) held by open transactions\n", count)
}
