package sqlite

const schema = `
-- Recorded sessions; the timeline is stored as the versioned export payload
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    started_at DATETIME NOT NULL,
    ended_at DATETIME,
    status TEXT NOT NULL,
    snapshot_count INTEGER NOT NULL DEFAULT 0,
    payload BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at);

-- Named production captures
CREATE TABLE IF NOT EXISTS captures (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    created_at DATETIME NOT NULL,
    object_count INTEGER NOT NULL DEFAULT 0,
    payload BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_captures_name ON captures(name);

-- Breakpoints persist across engine restarts; compiled conditions do not
-- serialize and are rebuilt from condition_text on load
CREATE TABLE IF NOT EXISTS breakpoints (
    id TEXT PRIMARY KEY,
    file TEXT NOT NULL,
    line INTEGER NOT NULL,
    column_number INTEGER NOT NULL DEFAULT 0,
    function_name TEXT NOT NULL DEFAULT '',
    condition_text TEXT NOT NULL DEFAULT '',
    hit_condition TEXT NOT NULL DEFAULT '',
    log_message TEXT NOT NULL DEFAULT '',
    enabled INTEGER NOT NULL DEFAULT 1,
    state TEXT NOT NULL DEFAULT 'pending',
    message TEXT NOT NULL DEFAULT '',
    hit_count INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_breakpoints_file_line ON breakpoints(file, line);
`
