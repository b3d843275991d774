/**
 * Configuration.
 *
 * Defines the single typed configuration record the daemon validates at
 * startup. Unknown keys are rejected (UnmarshalStrict); there is no
 * reflective or dynamic configuration surface.
 */

package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/netscope-observatory/netscope-observatory/internal/model"
	"gopkg.in/yaml.v2"
)

// RuleThresholds overrides the threat engine's default scoring constants.
type RuleThresholds struct {
	ExfiltrationBytes     uint64  `yaml:"exfiltration_bytes"`
	ExfiltrationCritBytes uint64  `yaml:"exfiltration_critical_bytes"`
	PortScanDistinctPorts int     `yaml:"port_scan_distinct_ports"`
	HostScanDistinctHosts int     `yaml:"host_scan_distinct_hosts"`
	BeaconingMinFlows     int     `yaml:"beaconing_min_flows"`
	BeaconingStddevRatio  float64 `yaml:"beaconing_stddev_ratio"`
	MalformedRetransRatio float64 `yaml:"malformed_retrans_ratio"`
	MalformedMinPackets   uint64  `yaml:"malformed_min_packets"`
	RareApplicationWindow int     `yaml:"rare_application_min_history"`
	SuspiciousPorts       []int   `yaml:"suspicious_ports"`
}

// Config is the complete, validated runtime configuration.
type Config struct {
	Interface    string  `yaml:"interface"`
	BPFFilter    string  `yaml:"bpf_filter"`
	SamplingRate float64 `yaml:"sampling_rate"`

	LocalSubnets []string `yaml:"local_subnets"`

	FlowIdleTimeoutTCP       time.Duration `yaml:"flow_idle_timeout_tcp"`
	FlowIdleTimeoutUDP       time.Duration `yaml:"flow_idle_timeout_udp"`
	FlowIdleTimeoutHandshake time.Duration `yaml:"flow_idle_timeout_handshake"`
	FlowMaxDuration          time.Duration `yaml:"flow_max_duration"`
	MaxFlows                 int           `yaml:"max_flows"`

	RuleThresholds    RuleThresholds `yaml:"rule_thresholds"`
	HighRiskCountries []string       `yaml:"high_risk_countries"`

	RetentionDays int    `yaml:"retention_days"`
	DBPath        string `yaml:"db_path"`

	GeoIPCityDB string `yaml:"geoip_city_db"`
	GeoIPASNDB  string `yaml:"geoip_asn_db"`

	ShardCount       int `yaml:"shard_count"`
	PacketQueueDepth int `yaml:"packet_queue_depth"`
	FlowQueueDepth   int `yaml:"flow_queue_depth"`
}

// Default returns the spec.md §6 default configuration.
func Default() *Config {
	return &Config{
		BPFFilter:    "ip or ip6",
		SamplingRate: 1.0,
		LocalSubnets: []string{
			"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16",
			"127.0.0.0/8", "169.254.0.0/16",
			"fe80::/10", "::1/128", "fc00::/7",
		},
		FlowIdleTimeoutTCP:       300 * time.Second,
		FlowIdleTimeoutUDP:       60 * time.Second,
		FlowIdleTimeoutHandshake: 30 * time.Second,
		FlowMaxDuration:          time.Hour,
		MaxFlows:                 100_000,
		RuleThresholds: RuleThresholds{
			ExfiltrationBytes:     10 * 1024 * 1024,
			ExfiltrationCritBytes: 100 * 1024 * 1024,
			PortScanDistinctPorts: 50,
			HostScanDistinctHosts: 30,
			BeaconingMinFlows:     5,
			BeaconingStddevRatio:  0.10,
			MalformedRetransRatio: 0.3,
			MalformedMinPackets:   100,
			RareApplicationWindow: 30,
			SuspiciousPorts:       []int{4444, 5555, 6666, 6667, 31337},
		},
		RetentionDays:    30,
		DBPath:           "netscope.db",
		ShardCount:       64,
		PacketQueueDepth: 4096,
		FlowQueueDepth:   1024,
	}
}

// Load reads and strictly unmarshals a YAML configuration file over the
// defaults, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, model.NewError(model.ErrConfigInvalid, "reading config file "+path, err)
	}

	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, model.NewError(model.ErrConfigInvalid, "parsing config file "+path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fails fast, naming the offending key, per spec.md §7.
func (c *Config) Validate() error {
	if c.SamplingRate <= 0 || c.SamplingRate > 1 {
		return model.NewError(model.ErrConfigInvalid, fmt.Sprintf("sampling_rate must be in (0,1], got %v", c.SamplingRate), nil)
	}
	if c.MaxFlows <= 0 {
		return model.NewError(model.ErrConfigInvalid, "max_flows must be positive", nil)
	}
	if c.ShardCount <= 0 {
		return model.NewError(model.ErrConfigInvalid, "shard_count must be positive", nil)
	}
	if c.DBPath == "" {
		return model.NewError(model.ErrConfigInvalid, "db_path must not be empty", nil)
	}
	if c.RetentionDays < 0 {
		return model.NewError(model.ErrConfigInvalid, "retention_days must not be negative", nil)
	}
	for _, cidr := range c.LocalSubnets {
		if cidr == "" {
			return model.NewError(model.ErrConfigInvalid, "local_subnets entries must not be empty", nil)
		}
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			return model.NewError(model.ErrConfigInvalid, "local_subnets entry "+cidr+" is not a valid CIDR", err)
		}
	}
	return nil
}
