package statestore

const (
	// projection of the latest state of every swap, rebuilt on each save
	swapTable = `CREATE TABLE IF NOT EXISTS swap (
		id CHAR(36) PRIMARY KEY NOT NULL,
		role VARCHAR(5) NOT NULL,
		peer TEXT NOT NULL,
		phase VARCHAR(10) NOT NULL,
		status VARCHAR(12) NOT NULL,
		alpha_ledger VARCHAR(8) NOT NULL,
		beta_ledger VARCHAR(8) NOT NULL,
		alpha_state VARCHAR(16),
		beta_state VARCHAR(16),
		version INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		CONSTRAINT chk_role CHECK (role IN ('alice', 'bob')),
		CONSTRAINT chk_phase CHECK (phase IN ('requested', 'accepted', 'declined')),
		CONSTRAINT chk_status CHECK (status IN ('requested', 'declined', 'in_progress', 'swapped', 'not_swapped')),
		CONSTRAINT chk_version CHECK (version > 0)
	);`

	// append only history, one row per applied event
	swapEventTable = `CREATE TABLE IF NOT EXISTS swap_event (
		swap_id CHAR(36) NOT NULL REFERENCES swap(id),
		version INTEGER NOT NULL,
		type VARCHAR(32) NOT NULL,
		payload BLOB NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (swap_id, version),
		CONSTRAINT chk_version CHECK (version > 0)
	);`

	swapColumns = " id, role, peer, phase, status, alpha_ledger, beta_ledger, alpha_state, beta_state, version, created_at, updated_at "
)
