package store

// migration holds a single schema migration with its target version.
// Statements run one at a time so drivers without multi-statement
// support can apply them.
type migration struct {
	version int
	stmts   []string
}

func sqliteMigrations() []migration {
	return []migration{
		{
			version: 1,
			stmts: []string{
				`CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY,
	msgid      TEXT,
	server_id  INTEGER NOT NULL DEFAULT 0,
	server_msg TEXT,
	thread_id  INTEGER,
	my_thread  INTEGER,
	pending    INTEGER NOT NULL DEFAULT 1,
	mailbox    TEXT,
	date       INTEGER,
	flags      TEXT,
	received   TEXT,
	sender     TEXT,
	from_me    INTEGER,
	subject    TEXT,
	headers    TEXT,
	verdict    INTEGER
)`,
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_msgid ON messages(msgid)`,
				`CREATE INDEX IF NOT EXISTS idx_messages_thread_id ON messages(thread_id)`,
				`CREATE INDEX IF NOT EXISTS idx_messages_pending ON messages(pending)`,
				`CREATE TABLE IF NOT EXISTS addrs (email TEXT PRIMARY KEY, pval REAL, nrelevant INTEGER, ntotal INTEGER)`,
				`CREATE TABLE IF NOT EXISTS junkaddrs (email TEXT PRIMARY KEY, pval REAL, nrelevant INTEGER, ntotal INTEGER)`,
				`CREATE TABLE IF NOT EXISTS verdictaddrs (email TEXT PRIMARY KEY, pval REAL, nrelevant INTEGER, ntotal INTEGER)`,
				`CREATE TABLE IF NOT EXISTS myaddrs (email TEXT PRIMARY KEY)`,
				`CREATE TABLE IF NOT EXISTS notjunk (email TEXT PRIMARY KEY)`,
				`CREATE TABLE IF NOT EXISTS vip (email TEXT PRIMARY KEY)`,
				`CREATE TABLE IF NOT EXISTS blacklist (email TEXT PRIMARY KEY)`,
			},
		},
		{
			version: 2,
			stmts: []string{
				`CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender)`,
				`CREATE INDEX IF NOT EXISTS idx_messages_mailbox ON messages(mailbox)`,
			},
		},
	}
}

func mysqlMigrations() []migration {
	return []migration{
		{
			version: 1,
			stmts: []string{
				`CREATE TABLE IF NOT EXISTS messages (
	id         BIGINT AUTO_INCREMENT PRIMARY KEY,
	msgid      VARCHAR(512),
	server_id  INT NOT NULL DEFAULT 0,
	server_msg VARCHAR(255),
	thread_id  BIGINT,
	my_thread  TINYINT(1),
	pending    TINYINT(1) NOT NULL DEFAULT 1,
	mailbox    VARCHAR(255),
	date       BIGINT,
	flags      VARCHAR(255),
	received   TEXT,
	sender     VARCHAR(255),
	from_me    TINYINT(1),
	subject    TEXT,
	headers    MEDIUMTEXT,
	verdict    INT,
	UNIQUE KEY idx_messages_msgid (msgid),
	INDEX idx_messages_thread_id (thread_id),
	INDEX idx_messages_pending (pending)
) DEFAULT CHARSET=utf8mb4`,
				`CREATE TABLE IF NOT EXISTS addrs (email VARCHAR(255) PRIMARY KEY, pval DOUBLE, nrelevant INT, ntotal INT)`,
				`CREATE TABLE IF NOT EXISTS junkaddrs (email VARCHAR(255) PRIMARY KEY, pval DOUBLE, nrelevant INT, ntotal INT)`,
				`CREATE TABLE IF NOT EXISTS verdictaddrs (email VARCHAR(255) PRIMARY KEY, pval DOUBLE, nrelevant INT, ntotal INT)`,
				`CREATE TABLE IF NOT EXISTS myaddrs (email VARCHAR(255) PRIMARY KEY)`,
				`CREATE TABLE IF NOT EXISTS notjunk (email VARCHAR(255) PRIMARY KEY)`,
				`CREATE TABLE IF NOT EXISTS vip (email VARCHAR(255) PRIMARY KEY)`,
				`CREATE TABLE IF NOT EXISTS blacklist (email VARCHAR(255) PRIMARY KEY)`,
			},
		},
		{
			version: 2,
			stmts: []string{
				`CREATE INDEX idx_messages_sender ON messages(sender)`,
				`CREATE INDEX idx_messages_mailbox ON messages(mailbox)`,
			},
		},
	}
}
