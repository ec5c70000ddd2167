package history

const schemaSQL = `
CREATE TABLE IF NOT EXISTS history (
    session_id           TEXT NOT NULL,
    date                 TEXT NOT NULL,
    started_at           TEXT,
    wall_clock_secs      INTEGER NOT NULL,
    call_count           INTEGER NOT NULL,
    turn_count           INTEGER NOT NULL,
    input_tokens         INTEGER NOT NULL,
    output_tokens        INTEGER NOT NULL,
    cache_write_tokens   INTEGER NOT NULL,
    cache_read_tokens    INTEGER NOT NULL,
    total_cost           REAL NOT NULL,
    savings              REAL NOT NULL,
    peak_context_tokens  INTEGER NOT NULL,
    flagged              INTEGER NOT NULL DEFAULT 0,
    finalized_at         TEXT NOT NULL,
    PRIMARY KEY (session_id, date)
);

CREATE TABLE IF NOT EXISTS history_categories (
    session_id           TEXT NOT NULL,
    date                 TEXT NOT NULL,
    category             TEXT NOT NULL,
    duration_secs        INTEGER NOT NULL,
    calls                INTEGER NOT NULL,
    PRIMARY KEY (session_id, date, category),
    FOREIGN KEY (session_id, date) REFERENCES history(session_id, date) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_history_date ON history(date);
`
