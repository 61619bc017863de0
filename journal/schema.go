package journal

// Schema creates the action journal. Idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS actions (
    entry_id    TEXT PRIMARY KEY,
    ts          INTEGER NOT NULL,
    op          TEXT NOT NULL,
    selector    TEXT NOT NULL DEFAULT '',
    transport   TEXT NOT NULL DEFAULT '',
    run_id      TEXT NOT NULL DEFAULT '',
    request_id  TEXT NOT NULL DEFAULT '',
    params      TEXT NOT NULL DEFAULT '',
    result      TEXT NOT NULL DEFAULT '',
    status      TEXT NOT NULL,
    error       TEXT NOT NULL DEFAULT '',
    duration_ms INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_actions_ts ON actions(ts DESC);
CREATE INDEX IF NOT EXISTS idx_actions_run ON actions(run_id, ts);
`
