package migrations

import (
	"fmt"
	"strings"
)

const CurrentVersion = "2026_10_17_002"

// Tables lists every table the schema creates, in creation order.
var Tables = []string{
	"regime_schema_meta",
	"admin_credentials",
	"contact_messages",
	"newsletter_subscribers",
	"testimonials",
	"products",
	"orders",
}

func Statements(d Dialect) ([]string, error) {
	switch d {
	case DialectPostgres:
		return postgresStatements(), nil
	case DialectMySQL:
		return mysqlStatements(), nil
	case DialectSQLite:
		return sqliteStatements(), nil
	default:
		return nil, fmt.Errorf("unsupported dialect %q", d)
	}
}

func GenerateSQLScript(d Dialect) (string, error) {
	stmts, err := Statements(d)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(stmts))
	for _, stmt := range stmts {
		trimmed := strings.TrimSpace(stmt)
		if trimmed == "" {
			continue
		}
		parts = append(parts, trimmed+";")
	}
	return strings.Join(parts, "\n\n"), nil
}

func postgresStatements() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS regime_schema_meta (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
		`CREATE TABLE IF NOT EXISTS admin_credentials (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS contact_messages (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    email TEXT NOT NULL,
    phone TEXT NOT NULL DEFAULT '',
    inquiry_type TEXT NOT NULL,
    message TEXT NOT NULL,
    ip_address TEXT NOT NULL DEFAULT '',
    created_at BIGINT NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_contact_messages_created_at ON contact_messages(created_at)`,
		`CREATE TABLE IF NOT EXISTS newsletter_subscribers (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    created_at BIGINT NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS testimonials (
    id TEXT PRIMARY KEY,
    product_id TEXT NOT NULL,
    user_name TEXT NOT NULL,
    rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
    review TEXT NOT NULL,
    review_date TEXT NOT NULL DEFAULT '',
    image_url TEXT NOT NULL DEFAULT '',
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_testimonials_product_id ON testimonials(product_id)`,
		`CREATE TABLE IF NOT EXISTS products (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    description TEXT NOT NULL,
    price DOUBLE PRECISION NOT NULL CHECK (price >= 0),
    category TEXT NOT NULL,
    product_type TEXT NOT NULL,
    skin_concern TEXT NOT NULL DEFAULT '',
    sku TEXT NOT NULL,
    stock INTEGER NOT NULL CHECK (stock >= 0),
    images TEXT NOT NULL DEFAULT '[]',
    ingredients TEXT NOT NULL DEFAULT '[]',
    sizes TEXT NOT NULL DEFAULT '[]',
    application TEXT NOT NULL DEFAULT '',
    warning TEXT NOT NULL DEFAULT '',
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_products_created_at ON products(created_at)`,
		`CREATE TABLE IF NOT EXISTS orders (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL,
    customer_name TEXT NOT NULL,
    items TEXT NOT NULL,
    total DOUBLE PRECISION NOT NULL,
    status TEXT NOT NULL,
    shipping_address TEXT NOT NULL DEFAULT '',
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at)`,
		fmt.Sprintf(`INSERT INTO regime_schema_meta(version) VALUES ('%s') ON CONFLICT (version) DO NOTHING`, CurrentVersion),
	}
}

func mysqlStatements() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS regime_schema_meta (
    version VARCHAR(64) PRIMARY KEY,
    applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS admin_credentials (
    id VARCHAR(64) PRIMARY KEY,
    email VARCHAR(254) NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL
) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS contact_messages (
    id VARCHAR(64) PRIMARY KEY,
    name VARCHAR(100) NOT NULL,
    email VARCHAR(254) NOT NULL,
    phone VARCHAR(20) NOT NULL DEFAULT '',
    inquiry_type VARCHAR(50) NOT NULL,
    message TEXT NOT NULL,
    ip_address VARCHAR(191) NOT NULL DEFAULT '',
    created_at BIGINT NOT NULL,
    INDEX idx_contact_messages_created_at (created_at)
) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS newsletter_subscribers (
    id VARCHAR(64) PRIMARY KEY,
    email VARCHAR(254) NOT NULL UNIQUE,
    created_at BIGINT NOT NULL
) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS testimonials (
    id VARCHAR(64) PRIMARY KEY,
    product_id VARCHAR(64) NOT NULL,
    user_name VARCHAR(100) NOT NULL,
    rating INT NOT NULL,
    review TEXT NOT NULL,
    review_date VARCHAR(50) NOT NULL DEFAULT '',
    image_url TEXT NOT NULL,
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL,
    INDEX idx_testimonials_product_id (product_id)
) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS products (
    id VARCHAR(64) PRIMARY KEY,
    title VARCHAR(200) NOT NULL,
    description TEXT NOT NULL,
    price DOUBLE NOT NULL,
    category VARCHAR(100) NOT NULL,
    product_type VARCHAR(100) NOT NULL,
    skin_concern VARCHAR(100) NOT NULL DEFAULT '',
    sku VARCHAR(50) NOT NULL,
    stock INT NOT NULL,
    images TEXT NOT NULL,
    ingredients TEXT NOT NULL,
    sizes TEXT NOT NULL,
    application TEXT NOT NULL,
    warning TEXT NOT NULL,
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL,
    INDEX idx_products_created_at (created_at)
) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS orders (
    id VARCHAR(64) PRIMARY KEY,
    email VARCHAR(254) NOT NULL,
    customer_name VARCHAR(100) NOT NULL,
    items TEXT NOT NULL,
    total DOUBLE NOT NULL,
    status VARCHAR(20) NOT NULL,
    shipping_address TEXT NOT NULL,
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL,
    INDEX idx_orders_created_at (created_at)
) ENGINE=InnoDB`,
		fmt.Sprintf(`INSERT INTO regime_schema_meta(version) VALUES ('%s') ON DUPLICATE KEY UPDATE version=version`, CurrentVersion),
	}
}

func sqliteStatements() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS regime_schema_meta (
    version TEXT PRIMARY KEY,
    applied_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
		`CREATE TABLE IF NOT EXISTS admin_credentials (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS contact_messages (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    email TEXT NOT NULL,
    phone TEXT NOT NULL DEFAULT '',
    inquiry_type TEXT NOT NULL,
    message TEXT NOT NULL,
    ip_address TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_contact_messages_created_at ON contact_messages(created_at)`,
		`CREATE TABLE IF NOT EXISTS newsletter_subscribers (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    created_at INTEGER NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS testimonials (
    id TEXT PRIMARY KEY,
    product_id TEXT NOT NULL,
    user_name TEXT NOT NULL,
    rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
    review TEXT NOT NULL,
    review_date TEXT NOT NULL DEFAULT '',
    image_url TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_testimonials_product_id ON testimonials(product_id)`,
		`CREATE TABLE IF NOT EXISTS products (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    description TEXT NOT NULL,
    price REAL NOT NULL CHECK (price >= 0),
    category TEXT NOT NULL,
    product_type TEXT NOT NULL,
    skin_concern TEXT NOT NULL DEFAULT '',
    sku TEXT NOT NULL,
    stock INTEGER NOT NULL CHECK (stock >= 0),
    images TEXT NOT NULL DEFAULT '[]',
    ingredients TEXT NOT NULL DEFAULT '[]',
    sizes TEXT NOT NULL DEFAULT '[]',
    application TEXT NOT NULL DEFAULT '',
    warning TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_products_created_at ON products(created_at)`,
		`CREATE TABLE IF NOT EXISTS orders (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL,
    customer_name TEXT NOT NULL,
    items TEXT NOT NULL,
    total REAL NOT NULL,
    status TEXT NOT NULL,
    shipping_address TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at)`,
		fmt.Sprintf(`INSERT OR REPLACE INTO regime_schema_meta(version, applied_at) VALUES ('%s', CURRENT_TIMESTAMP)`, CurrentVersion),
	}
}
