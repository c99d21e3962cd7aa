// Command migrate applies the SQL files in a migrations directory to the
// Postgres attendee store.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/pflag"

	"github.com/ignite/eventpass/internal/pkg/logger"
	"github.com/ignite/eventpass/internal/repository/postgres"
)

var log = logger.With("migrate")

func main() {
	dir := pflag.StringP("dir", "d", "migrations", "directory of *.sql files")
	listOnly := pflag.Bool("list", false, "list existing tables and exit")
	pflag.Parse()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.Open(ctx, dsn)
	if err != nil {
		log.Error("connect failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("connected to database")

	if *listOnly {
		if err := listTables(ctx, db); err != nil {
			log.Error("list tables failed", "error", err)
			os.Exit(1)
		}
		return
	}

	files, err := migrationFiles(*dir)
	if err != nil {
		log.Error("read migrations dir failed", "dir", *dir, "error", err)
		os.Exit(1)
	}

	var okCount, errCount int
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Error("read migration failed", "file", path, "error", err)
			os.Exit(1)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		if err := apply(ctx, db, string(data)); err != nil {
			log.Error("migration failed", "file", filepath.Base(path), "error", err)
			errCount++
			continue
		}
		log.Info("migration applied", "file", filepath.Base(path))
		okCount++
	}
	log.Info("migrations complete", "ok", okCount, "errors", errCount)
	if errCount > 0 {
		os.Exit(1)
	}
}

// migrationFiles returns the .sql files in dir in lexical order.
func migrationFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func apply(ctx context.Context, db *sql.DB, stmt string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func listTables(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, "SELECT tablename FROM pg_tables WHERE schemaname='public' ORDER BY tablename")
	if err != nil {
		return err
	}
	defer rows.Close()
	n := 0
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return err
		}
		fmt.Println(" ", t)
		n++
	}
	fmt.Printf("Total: %d tables\n", n)
	return rows.Err()
}
