/**
 * SQLite Implementation.
 *
 * Implements the Storage interface using SQLite3 in WAL mode, suitable
 * for a single-process daemon writing from one sink goroutine while the
 * query surface reads concurrently.
 */

package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/netscope-observatory/netscope-observatory/internal/model"
)

// Implements the Storage interface for SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// Creates a new SQLite storage instance, opening in WAL mode so the sink's
// writer and the query surface's readers don't block each other.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only tolerates one writer; a single connection avoids
	// SQLITE_BUSY from this process contending with itself.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Applies the schema to the database.
func (s *SQLiteStorage) Migrate() error {
	if _, err := s.db.Exec(Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Saves or updates a device in the database.
func (s *SQLiteStorage) SaveDevice(d *model.Device) error {
	allIPs, err := json.Marshal(ipSet(d.AllIPs))
	if err != nil {
		allIPs = []byte("[]")
	}
	query := fmt.Sprintf(`
	INSERT INTO devices (%s)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(device_id) DO UPDATE SET
		mac = excluded.mac,
		primary_ip = excluded.primary_ip,
		all_ips = excluded.all_ips,
		vendor = excluded.vendor,
		hostname = excluded.hostname,
		device_type = excluded.device_type,
		last_seen = excluded.last_seen,
		flow_count = excluded.flow_count,
		bytes_in = excluded.bytes_in,
		bytes_out = excluded.bytes_out,
		threat_score = excluded.threat_score;
	`, deviceColumns)

	_, err = s.db.Exec(query,
		d.DeviceID, d.MAC, d.PrimaryIP, string(allIPs), d.Vendor, d.Hostname, d.DeviceType,
		d.FirstSeen, d.LastSeen, d.FlowCount, d.BytesIn, d.BytesOut, d.ThreatScore,
	)
	if err != nil {
		return classifyWriteErr("save device", err)
	}
	return nil
}

// Retrieves a device by its stable device ID.
func (s *SQLiteStorage) GetDevice(deviceID string) (*model.Device, error) {
	query := fmt.Sprintf(`SELECT %s FROM devices WHERE device_id = ?`, deviceColumns)
	row := s.db.QueryRow(query, deviceID)
	d, err := scanDevice(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return d, err
}

// Returns all registered devices ordered by last seen.
func (s *SQLiteStorage) ListDevices() ([]*model.Device, error) {
	query := fmt.Sprintf(`SELECT %s FROM devices ORDER BY last_seen DESC`, deviceColumns)
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	defer rows.Close()

	var devices []*model.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (*model.Device, error) {
	var d model.Device
	var allIPs string
	if err := row.Scan(&d.DeviceID, &d.MAC, &d.PrimaryIP, &allIPs, &d.Vendor, &d.Hostname, &d.DeviceType,
		&d.FirstSeen, &d.LastSeen, &d.FlowCount, &d.BytesIn, &d.BytesOut, &d.ThreatScore); err != nil {
		return nil, err
	}
	d.AllIPs = parseIPSet(allIPs)
	return &d, nil
}

func ipSet(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for ip := range m {
		out = append(out, ip)
	}
	return out
}

func parseIPSet(raw string) map[string]struct{} {
	out := make(map[string]struct{})
	if raw == "" {
		return out
	}
	var ips []string
	if err := json.Unmarshal([]byte(raw), &ips); err != nil {
		return out
	}
	for _, ip := range ips {
		out[ip] = struct{}{}
	}
	return out
}

// SaveFlows persists a batch of finalized flows in one transaction.
func (s *SQLiteStorage) SaveFlows(flows []*model.Flow) error {
	if len(flows) == 0 {
		return nil
	}
	return s.withTx(func(tx *sql.Tx) error {
		query := fmt.Sprintf(`INSERT INTO flows (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, flowColumns)
		stmt, err := tx.Prepare(query)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, f := range flows {
			_, err := stmt.Exec(
				f.Key.Protocol, f.Key.IPA, f.Key.PortA, f.Key.IPB, f.Key.PortB,
				f.FirstSeen, f.LastSeen, nullableTime(f.FinalizedAt),
				f.A.Bytes, f.A.Packets, f.A.Retransmissions,
				f.B.Bytes, f.B.Packets, f.B.Retransmissions,
				string(f.State), f.RTTAvg.Seconds()*1000, f.RTTMax.Seconds()*1000,
				f.ServerName, f.Application, f.JA3, f.JA3Application,
				f.RemoteCountry, f.RemoteCity, f.RemoteASN,
				f.LocalDeviceID, f.RemoteDeviceID, f.ThreatScore,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// ListFlows returns persisted flows matching filter, newest first.
func (s *SQLiteStorage) ListFlows(filter FlowFilter) ([]*model.Flow, error) {
	query := fmt.Sprintf(`SELECT %s FROM flows`, flowColumns)
	var conds []string
	var args []any
	if filter.DeviceID != "" {
		conds = append(conds, "local_device_id = ?")
		args = append(args, filter.DeviceID)
	}
	if !filter.Since.IsZero() {
		conds = append(conds, "first_seen >= ?")
		args = append(args, filter.Since)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY first_seen DESC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}
	defer rows.Close()

	var flows []*model.Flow
	for rows.Next() {
		var f model.Flow
		var finalizedAt sql.NullTime
		var rttAvgMs, rttMaxMs float64
		if err := rows.Scan(
			&f.Key.Protocol, &f.Key.IPA, &f.Key.PortA, &f.Key.IPB, &f.Key.PortB,
			&f.FirstSeen, &f.LastSeen, &finalizedAt,
			&f.A.Bytes, &f.A.Packets, &f.A.Retransmissions,
			&f.B.Bytes, &f.B.Packets, &f.B.Retransmissions,
			&f.State, &rttAvgMs, &rttMaxMs,
			&f.ServerName, &f.Application, &f.JA3, &f.JA3Application,
			&f.RemoteCountry, &f.RemoteCity, &f.RemoteASN,
			&f.LocalDeviceID, &f.RemoteDeviceID, &f.ThreatScore,
		); err != nil {
			return nil, err
		}
		if finalizedAt.Valid {
			f.FinalizedAt = finalizedAt.Time
		}
		f.RTTAvg = time.Duration(rttAvgMs * float64(time.Millisecond))
		f.RTTMax = time.Duration(rttMaxMs * float64(time.Millisecond))
		flows = append(flows, &f)
	}
	return flows, rows.Err()
}

// SaveThreats persists a batch of new or updated threats in one transaction.
func (s *SQLiteStorage) SaveThreats(threats []*model.Threat) error {
	if len(threats) == 0 {
		return nil
	}
	return s.withTx(func(tx *sql.Tx) error {
		query := `
		INSERT INTO threats (id, created_at, severity, category, device_id, flow_id, score, summary, evidence, dismissed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			score = excluded.score,
			severity = excluded.severity,
			summary = excluded.summary,
			evidence = excluded.evidence;
		`
		stmt, err := tx.Prepare(query)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, t := range threats {
			evidence, err := json.Marshal(t.Evidence)
			if err != nil {
				evidence = []byte("{}")
			}
			_, err = stmt.Exec(t.ID, t.CreatedAt, string(t.Severity), string(t.Category), t.DeviceID,
				t.FlowID, t.Score, t.Summary, string(evidence), nullableTime(t.DismissedAt))
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// ListThreats returns persisted threats matching filter, newest first.
func (s *SQLiteStorage) ListThreats(filter ThreatFilter) ([]*model.Threat, error) {
	query := fmt.Sprintf(`SELECT %s FROM threats`, threatColumns)
	var conds []string
	var args []any
	if filter.DeviceID != "" {
		conds = append(conds, "device_id = ?")
		args = append(args, filter.DeviceID)
	}
	if !filter.IncludeDismiss {
		conds = append(conds, "dismissed_at IS NULL")
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list threats: %w", err)
	}
	defer rows.Close()

	var threats []*model.Threat
	for rows.Next() {
		var t model.Threat
		var evidence string
		var dismissedAt sql.NullTime
		if err := rows.Scan(&t.ID, &t.CreatedAt, &t.Severity, &t.Category, &t.DeviceID, &t.FlowID,
			&t.Score, &t.Summary, &evidence, &dismissedAt); err != nil {
			return nil, err
		}
		if evidence != "" {
			_ = json.Unmarshal([]byte(evidence), &t.Evidence)
		}
		if dismissedAt.Valid {
			t.DismissedAt = dismissedAt.Time
		}
		threats = append(threats, &t)
	}
	return threats, rows.Err()
}

// DismissThreat marks a threat acknowledged.
func (s *SQLiteStorage) DismissThreat(id string) error {
	_, err := s.db.Exec(`UPDATE threats SET dismissed_at = ? WHERE id = ?`, time.Now(), id)
	if err != nil {
		return classifyWriteErr("dismiss threat", err)
	}
	return nil
}

// SaveBuckets upserts a batch of minute rollups, summing counters into any
// existing bucket for the same (minute, device, protocol) key.
func (s *SQLiteStorage) SaveBuckets(buckets []*model.MinuteBucket) error {
	if len(buckets) == 0 {
		return nil
	}
	return s.withTx(func(tx *sql.Tx) error {
		query := `
		INSERT INTO minute_buckets (minute_epoch, device_id, protocol, bytes_in, bytes_out, packets, flow_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(minute_epoch, device_id, protocol) DO UPDATE SET
			bytes_in = bytes_in + excluded.bytes_in,
			bytes_out = bytes_out + excluded.bytes_out,
			packets = packets + excluded.packets,
			flow_count = flow_count + excluded.flow_count;
		`
		stmt, err := tx.Prepare(query)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, b := range buckets {
			if _, err := stmt.Exec(b.MinuteEpoch, b.DeviceID, b.Protocol, b.BytesIn, b.BytesOut, b.Packets, b.FlowCount); err != nil {
				return err
			}
		}
		return nil
	})
}

// TopBuckets returns the highest-traffic buckets since the given time.
func (s *SQLiteStorage) TopBuckets(since time.Time, limit int) ([]*model.MinuteBucket, error) {
	if limit <= 0 {
		limit = 20
	}
	query := fmt.Sprintf(`SELECT %s FROM minute_buckets WHERE minute_epoch >= ? ORDER BY (bytes_in + bytes_out) DESC LIMIT ?`, bucketColumns)
	rows, err := s.db.Query(query, since.Unix()/60, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list top buckets: %w", err)
	}
	defer rows.Close()

	var buckets []*model.MinuteBucket
	for rows.Next() {
		var b model.MinuteBucket
		if err := rows.Scan(&b.MinuteEpoch, &b.DeviceID, &b.Protocol, &b.BytesIn, &b.BytesOut, &b.Packets, &b.FlowCount); err != nil {
			return nil, err
		}
		buckets = append(buckets, &b)
	}
	return buckets, rows.Err()
}

// TrimOlderThan deletes flows, dismissed threats and buckets older than
// cutoff, implementing the configured retention window.
func (s *SQLiteStorage) TrimOlderThan(cutoff time.Time) error {
	return s.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM flows WHERE first_seen < ?`, cutoff); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM threats WHERE created_at < ? AND dismissed_at IS NOT NULL`, cutoff); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM minute_buckets WHERE minute_epoch < ?`, cutoff.Unix()/60); err != nil {
			return err
		}
		return nil
	})
}

func (s *SQLiteStorage) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return classifyWriteErr("begin transaction", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return classifyWriteErr("commit batch", err)
	}
	if err := tx.Commit(); err != nil {
		return classifyWriteErr("commit batch", err)
	}
	return nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

// classifyWriteErr wraps a write failure as PersistenceTransient when
// SQLite reports lock contention (retryable by the sink) or
// PersistenceFatal otherwise (schema/constraint/disk errors a retry
// won't fix).
func classifyWriteErr(op string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "locked") || strings.Contains(msg, "busy") {
		return model.NewError(model.ErrPersistenceTransient, op, err)
	}
	return model.NewError(model.ErrPersistenceFatal, op, err)
}
