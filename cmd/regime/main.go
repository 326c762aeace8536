package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/SnowzyTech/regime/auth"
	"github.com/SnowzyTech/regime/migrations"
	"github.com/SnowzyTech/regime/session"
	"github.com/SnowzyTech/regime/validate"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := strings.ToLower(strings.TrimSpace(os.Args[1]))
	switch cmd {
	case "secret":
		runSecret()
	case "info":
		runInfo()
	case "init":
		runInit()
	case "hash-password":
		runHashPassword(os.Args[2:])
	case "generate":
		runGenerate(os.Args[2:])
	case "migrate":
		runMigrate(os.Args[2:])
	case "serve":
		runServe(os.Args[2:])
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("regime CLI")
	fmt.Println("Usage: regime <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  secret                         Generate a session signing secret")
	fmt.Println("  info                           Print CLI and build metadata")
	fmt.Println("  init                           Create a starter regime config file")
	fmt.Println("  hash-password [--allow-weak]   Hash an admin password read from stdin")
	fmt.Println("  generate [--dialect d] [--output file]")
	fmt.Println("                                 Generate SQL schema for a dialect")
	fmt.Println("  migrate [--database-url url | --dialect d --dsn dsn]")
	fmt.Println("                                 Apply migrations to a target database")
	fmt.Println("  serve [--config path] [--addr :8080] [--env-file .env]")
	fmt.Println("                                 Start the API server")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func runSecret() {
	secret, err := session.GenerateSecret()
	if err != nil {
		fatalf("failed to generate secret: %v", err)
	}
	fmt.Println(secret)
}

func runInfo() {
	payload := map[string]any{
		"name":              "regime",
		"version":           auth.Version,
		"schemaVersion":     migrations.CurrentVersion,
		"supportedDialects": []string{"postgres", "mysql", "sqlite"},
		"rateLimitStores":   []string{"memory", "redis"},
		"timestamp":         time.Now().UTC().Format(time.RFC3339),
	}
	b, _ := json.MarshalIndent(payload, "", "  ")
	fmt.Println(string(b))
}

func runInit() {
	cwd, err := os.Getwd()
	if err != nil {
		fatalf("failed to resolve current directory: %v", err)
	}

	path := filepath.Join(cwd, "regime.example.yaml")
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("%s already exists\n", path)
		return
	}

	content := strings.TrimSpace(`appName: "REGIME"
basePath: "/api"
environment: "production"
# secret: set SESSION_SECRET in the environment instead (regime secret)
trustedOrigins:
  - "http://localhost:3000"
database:
  dialect: "sqlite"
  dsn: "file:regime.db"
  autoMigrate: true
session:
  cookieName: "admin_session"
  ttl: "168h"
rateLimit:
  store: "memory"
  sweepInterval: "1m"
  tiers:
    strict:
      window: "60s"
      max: 5
admin:
  email: "owner@example.com"
  # passwordHash: output of regime hash-password, or ADMIN_PASSWORD_HASH
plugins:
  contact:
    listLimit: 50
  newsletter:
    enabled: true
  testimonials:
    enabled: true
  products:
    enabled: true
  orders:
    enabled: true`) + "\n"

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		fatalf("failed to write %s: %v", path, err)
	}
	fmt.Printf("created %s\n", path)
}

// runHashPassword reads the password from stdin so it never lands in shell
// history or the process list.
func runHashPassword(args []string) {
	fs := flag.NewFlagSet("hash-password", flag.ExitOnError)
	allowWeak := fs.Bool("allow-weak", false, "hash passwords that fail the strength rules")
	_ = fs.Parse(args)

	password, err := readPassword(os.Stdin)
	if err != nil {
		fatalf("failed to read password: %v", err)
	}
	if msg := validate.StrongPassword(password); msg != "" && !*allowWeak {
		fatalf("%s (use --allow-weak to override)", msg)
	}

	hash, err := session.HashPassword(password)
	if err != nil {
		fatalf("failed to hash password: %v", err)
	}
	fmt.Println(hash)
}

func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("no password on stdin")
	}
	return line, nil
}

func runGenerate(args []string) {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	dialectValue := fs.String("dialect", "sqlite", "target dialect: postgres|mysql|sqlite")
	output := fs.String("output", "", "output file path; prints to stdout when empty")
	_ = fs.Parse(args)

	dialect, err := migrations.ParseDialect(*dialectValue)
	if err != nil {
		fatalf("invalid dialect: %v", err)
	}

	script, err := migrations.GenerateSQLScript(dialect)
	if err != nil {
		fatalf("failed to generate SQL: %v", err)
	}

	if strings.TrimSpace(*output) == "" {
		fmt.Println(script)
		return
	}

	if err := os.WriteFile(*output, []byte(script+"\n"), 0o644); err != nil {
		fatalf("failed to write migration SQL: %v", err)
	}
	fmt.Printf("wrote migration SQL to %s\n", *output)
}

func runMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	databaseURL := fs.String("database-url", os.Getenv("DATABASE_URL"), "database URL; the dialect is taken from its scheme")
	dialectValue := fs.String("dialect", "sqlite", "target dialect: postgres|mysql|sqlite")
	dsn := fs.String("dsn", "", "database connection string")
	timeout := fs.Duration("timeout", 30*time.Second, "migration timeout")
	_ = fs.Parse(args)

	var (
		dialect migrations.Dialect
		target  string
		err     error
	)
	switch {
	case strings.TrimSpace(*dsn) != "":
		dialect, err = migrations.ParseDialect(*dialectValue)
		target = *dsn
	case strings.TrimSpace(*databaseURL) != "":
		dialect, target, err = migrations.ParseDatabaseURL(*databaseURL)
	default:
		fatalf("--dsn or --database-url (or DATABASE_URL) is required")
	}
	if err != nil {
		fatalf("invalid database target: %v", err)
	}

	driverName, err := migrations.DriverName(dialect)
	if err != nil {
		fatalf("unsupported dialect: %v", err)
	}

	db, err := sql.Open(driverName, target)
	if err != nil {
		fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		fatalf("failed to connect to database: %v", err)
	}

	pending, err := migrations.NeedsMigration(ctx, db)
	if err != nil {
		fatalf("failed to read schema version: %v", err)
	}
	if !pending {
		fmt.Printf("schema already at %s (%s)\n", migrations.CurrentVersion, dialect)
		return
	}

	if err := migrations.Apply(ctx, db, dialect); err != nil {
		fatalf("migration failed: %v", err)
	}

	fmt.Printf("migrations applied successfully (%s, %s)\n", dialect, migrations.CurrentVersion)
}
