/**
 * SQL Queries.
 *
 * Centralizes raw SQL used by the SQLite implementation to keep column
 * lists consistent between inserts and scans.
 */

package storage

const (
	deviceColumns = "device_id, mac, primary_ip, all_ips, vendor, hostname, device_type, first_seen, last_seen, flow_count, bytes_in, bytes_out, threat_score"

	flowColumns = "protocol, ip_a, port_a, ip_b, port_b, first_seen, last_seen, finalized_at, " +
		"bytes_a, packets_a, retrans_a, bytes_b, packets_b, retrans_b, state, rtt_avg_ms, rtt_max_ms, " +
		"server_name, application, ja3, ja3_application, remote_country, remote_city, remote_asn, " +
		"local_device_id, remote_device_id, threat_score"

	threatColumns = "id, created_at, severity, category, device_id, flow_id, score, summary, evidence, dismissed_at"

	bucketColumns = "minute_epoch, device_id, protocol, bytes_in, bytes_out, packets, flow_count"
)
