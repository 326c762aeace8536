package migrations

import (
	"fmt"
	"strings"
)

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
	DialectSQLite   Dialect = "sqlite"
)

func ParseDialect(value string) (Dialect, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case string(DialectPostgres), "postgresql", "pg":
		return DialectPostgres, nil
	case string(DialectMySQL), "mariadb":
		return DialectMySQL, nil
	case string(DialectSQLite), "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("unsupported dialect %q", value)
	}
}

// ParseDatabaseURL infers the dialect from a DATABASE_URL style string and
// returns the DSN in the form the matching driver expects.
//
//	postgres://u:p@host/db       -> postgres, unchanged
//	mysql://u:p@tcp(host)/db     -> mysql, "u:p@tcp(host)/db"
//	sqlite://path/to.db          -> sqlite, "path/to.db"
//	file:regime.db               -> sqlite, unchanged
func ParseDatabaseURL(raw string) (Dialect, string, error) {
	trimmed := strings.TrimSpace(raw)
	scheme, rest, ok := strings.Cut(trimmed, "://")
	if !ok {
		if strings.HasPrefix(trimmed, "file:") {
			return DialectSQLite, trimmed, nil
		}
		return "", "", fmt.Errorf("database url has no scheme")
	}
	d, err := ParseDialect(scheme)
	if err != nil {
		return "", "", err
	}
	switch d {
	case DialectPostgres:
		return d, trimmed, nil
	default:
		if rest == "" {
			return "", "", fmt.Errorf("database url has no target")
		}
		return d, rest, nil
	}
}

func (d Dialect) String() string {
	return string(d)
}

func DriverName(d Dialect) (string, error) {
	switch d {
	case DialectPostgres:
		return "pgx", nil
	case DialectMySQL:
		return "mysql", nil
	case DialectSQLite:
		return "sqlite", nil
	default:
		return "", fmt.Errorf("unsupported dialect %q", d)
	}
}
