/**
 * Database Schema.
 *
 * Defines the DDL for devices, flows, threats and minute rollup buckets.
 * Devices and buckets are upserted; flows are append-only. Threats are
 * upserted by id (a re-emitted threat updates score, severity, summary
 * and evidence), and dismissed_at is set only by DismissThreat.
 */

package storage

// Contains the SQL statements to create the database tables.
const Schema = `
-- Devices Table
CREATE TABLE IF NOT EXISTS devices (
    device_id    TEXT PRIMARY KEY,
    mac          TEXT,
    primary_ip   TEXT,
    all_ips      TEXT, -- JSON array
    vendor       TEXT,
    hostname     TEXT,
    device_type  TEXT,
    first_seen   TIMESTAMP,
    last_seen    TIMESTAMP,
    flow_count   INTEGER DEFAULT 0,
    bytes_in     INTEGER DEFAULT 0,
    bytes_out    INTEGER DEFAULT 0,
    threat_score REAL DEFAULT 0
);

-- Flows Table
CREATE TABLE IF NOT EXISTS flows (
    id               INTEGER PRIMARY KEY,
    protocol         TEXT,
    ip_a             TEXT,
    port_a           INTEGER,
    ip_b             TEXT,
    port_b           INTEGER,
    first_seen       TIMESTAMP,
    last_seen        TIMESTAMP,
    finalized_at     TIMESTAMP,
    bytes_a          INTEGER DEFAULT 0,
    packets_a        INTEGER DEFAULT 0,
    retrans_a        INTEGER DEFAULT 0,
    bytes_b          INTEGER DEFAULT 0,
    packets_b        INTEGER DEFAULT 0,
    retrans_b        INTEGER DEFAULT 0,
    state            TEXT,
    rtt_avg_ms       REAL DEFAULT 0,
    rtt_max_ms       REAL DEFAULT 0,
    server_name      TEXT,
    application      TEXT,
    ja3              TEXT,
    ja3_application  TEXT,
    remote_country   TEXT,
    remote_city      TEXT,
    remote_asn       TEXT,
    local_device_id  TEXT,
    remote_device_id TEXT,
    threat_score     REAL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_flows_local_device ON flows(local_device_id);
CREATE INDEX IF NOT EXISTS idx_flows_first_seen ON flows(first_seen);
CREATE INDEX IF NOT EXISTS idx_flows_server_name ON flows(server_name);

-- Threats Table
CREATE TABLE IF NOT EXISTS threats (
    id           TEXT PRIMARY KEY,
    created_at   TIMESTAMP,
    severity     TEXT,
    category     TEXT,
    device_id    TEXT,
    flow_id      TEXT,
    score        REAL,
    summary      TEXT,
    evidence     TEXT, -- JSON object
    dismissed_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_threats_device_category ON threats(device_id, category);
CREATE INDEX IF NOT EXISTS idx_threats_created_at ON threats(created_at);

-- Minute Rollup Buckets
CREATE TABLE IF NOT EXISTS minute_buckets (
    minute_epoch INTEGER,
    device_id    TEXT,
    protocol     TEXT,
    bytes_in     INTEGER DEFAULT 0,
    bytes_out    INTEGER DEFAULT 0,
    packets      INTEGER DEFAULT 0,
    flow_count   INTEGER DEFAULT 0,
    PRIMARY KEY (minute_epoch, device_id, protocol)
);
CREATE INDEX IF NOT EXISTS idx_buckets_epoch ON minute_buckets(minute_epoch);
`
