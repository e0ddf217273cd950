package database

import (
	"database/sql"
	stdlog "log"

	"github.com/username/optifolio/src/logger"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

func InitDB(databasePath string) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		stdlog.Fatalf("failed to open database at %s: %v", databasePath, err)
	}

	DB = db

	if _, err := DB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		stdlog.Printf("failed to enable foreign keys: %v", err)
	}

	if logger.L != nil {
		logger.L.Info("Checking database migrations", "databasePath", databasePath)
	} else {
		stdlog.Println("Checking database migrations for:", databasePath)
	}
	migratePositionsTable()

	createTableStatement := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		client_name TEXT NOT NULL DEFAULT '',
		is_admin BOOLEAN DEFAULT FALSE,
		auth_provider TEXT DEFAULT 'local',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		token TEXT NOT NULL,
		refresh_token TEXT NOT NULL,
		user_agent TEXT,
		client_ip TEXT,
		is_blocked BOOLEAN DEFAULT FALSE,
		expires_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS venues (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		kind TEXT
	);

	CREATE TABLE IF NOT EXISTS programs (
		id TEXT PRIMARY KEY,
		client_name TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT
	);

	CREATE TABLE IF NOT EXISTS strategies (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		description TEXT
	);

	CREATE TABLE IF NOT EXISTS program_strategies (
		program_id TEXT NOT NULL,
		strategy_id TEXT NOT NULL,
		PRIMARY KEY(program_id, strategy_id),
		FOREIGN KEY(program_id) REFERENCES programs(id) ON DELETE CASCADE,
		FOREIGN KEY(strategy_id) REFERENCES strategies(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS program_resources (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		program_id TEXT NOT NULL,
		title TEXT NOT NULL,
		url TEXT NOT NULL,
		FOREIGN KEY(program_id) REFERENCES programs(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS program_playbooks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		program_id TEXT NOT NULL,
		title TEXT NOT NULL,
		body TEXT,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(program_id) REFERENCES programs(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS positions (
		id TEXT PRIMARY KEY,
		client_name TEXT NOT NULL,
		ticker TEXT NOT NULL DEFAULT '',
		program_id TEXT,
		venue TEXT,
		status TEXT,
		opened_at TEXT,
		closed_at TEXT,
		linked_ids TEXT,
		archived BOOLEAN DEFAULT FALSE,
		archived_at TEXT,
		archived_by TEXT,
		notes TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS legs (
		position_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		side TEXT NOT NULL,
		option_type TEXT NOT NULL,
		expiry TEXT,
		strike REAL NOT NULL,
		quantity REAL NOT NULL,
		price REAL NOT NULL,
		PRIMARY KEY(position_id, seq),
		FOREIGN KEY(position_id) REFERENCES positions(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS fills (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		position_id TEXT NOT NULL,
		leg_seq INTEGER NOT NULL,
		timestamp TEXT,
		quantity REAL NOT NULL,
		price REAL NOT NULL,
		open_close TEXT,
		trade_id TEXT,
		order_id TEXT,
		fee REAL,
		notes TEXT,
		FOREIGN KEY(position_id, leg_seq) REFERENCES legs(position_id, seq) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_fills_trade_id ON fills(trade_id);
	CREATE INDEX IF NOT EXISTS idx_fills_order_id ON fills(order_id);

	CREATE TABLE IF NOT EXISTS transaction_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		client_name TEXT NOT NULL,
		exchange TEXT NOT NULL,
		trade_id TEXT,
		order_id TEXT,
		instrument TEXT,
		side TEXT,
		quantity REAL,
		price REAL,
		timestamp TEXT,
		raw TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_txlogs_trade_id ON transaction_logs(trade_id);
	CREATE INDEX IF NOT EXISTS idx_txlogs_order_id ON transaction_logs(order_id);

	CREATE TABLE IF NOT EXISTS unprocessed_imports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		client_name TEXT NOT NULL,
		exchange TEXT NOT NULL,
		trade_id TEXT,
		order_id TEXT,
		instrument TEXT,
		side TEXT,
		quantity REAL,
		price REAL,
		timestamp TEXT,
		expiry TEXT,
		strike REAL,
		option_type TEXT,
		open_close TEXT,
		fee REAL,
		notes TEXT,
		raw TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`

	_, err = DB.Exec(createTableStatement)
	if err != nil {
		if logger.L != nil {
			logger.L.Error("failed to create tables", "error", err)
		}
		stdlog.Fatalf("failed to create tables: %v", err)
	}
	if logger.L != nil {
		logger.L.Info("Database tables ensured/created.")
	} else {
		stdlog.Println("Database tables ensured/created.")
	}
}

// migratePositionsTable adds columns introduced after the first release to an
// existing positions table. New databases get them from the CREATE statement.
func migratePositionsTable() {
	var tableName string
	err := DB.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='positions'").Scan(&tableName)
	if err != nil {
		if err == sql.ErrNoRows {
			if logger.L != nil {
				logger.L.Info("'positions' table does not exist, no migration needed as table will be created.")
			} else {
				stdlog.Println("'positions' table does not exist, no migration needed as table will be created.")
			}
			return
		}
		if logger.L != nil {
			logger.L.Error("Error checking for 'positions' table", "error", err)
		} else {
			stdlog.Printf("Error checking for 'positions' table: %v", err)
		}
		return
	}

	rows, err := DB.Query("PRAGMA table_info(positions)")
	if err != nil {
		if logger.L != nil {
			logger.L.Error("Error querying table schema for 'positions'", "error", err)
		} else {
			stdlog.Printf("Error querying table schema for 'positions': %v", err)
		}
		return
	}
	defer rows.Close()

	columnExists := make(map[string]bool)
	for rows.Next() {
		var cid, pk int
		var name, dataType string
		var notnullVal int
		var dfltValue interface{}

		if err := rows.Scan(&cid, &name, &dataType, &notnullVal, &dfltValue, &pk); err != nil {
			if logger.L != nil {
				logger.L.Error("Error scanning column info for 'positions'", "error", err)
			} else {
				stdlog.Printf("Error scanning column info for 'positions': %v", err)
			}
			return
		}
		columnExists[name] = true
	}
	if err = rows.Err(); err != nil {
		if logger.L != nil {
			logger.L.Error("Error iterating over column info for 'positions'", "error", err)
		} else {
			stdlog.Printf("Error iterating over column info for 'positions': %v", err)
		}
		return
	}

	addColumn := func(name, ddl string) {
		if columnExists[name] {
			return
		}
		if _, err := DB.Exec("ALTER TABLE positions ADD COLUMN " + ddl); err != nil {
			logger.L.Error("Error adding column to 'positions' table", "column", name, "error", err)
		} else {
			logger.L.Info("Added column to 'positions' table", "column", name)
		}
	}

	// linked_ids and closed_at arrived with the roll-chain feature,
	// archived_* with soft deletion.
	addColumn("linked_ids", "linked_ids TEXT")
	addColumn("closed_at", "closed_at TEXT")
	addColumn("archived", "archived BOOLEAN DEFAULT FALSE")
	addColumn("archived_at", "archived_at TEXT")
	addColumn("archived_by", "archived_by TEXT")
}
