package threat

import (
	"strconv"
	"testing"
	"time"

	"github.com/netscope-observatory/netscope-observatory/internal/config"
	"github.com/netscope-observatory/netscope-observatory/internal/model"
)

func testThresholds() config.RuleThresholds {
	return config.Default().RuleThresholds
}

func idGen() func() string {
	n := 0
	return func() string {
		n++
		return "threat-" + strconv.Itoa(n)
	}
}

func flowWithBytes(localID string, bytes uint64) *model.Flow {
	return &model.Flow{
		Key:              model.FlowKey{Protocol: "TCP", IPA: "192.168.1.10", PortA: 5000, IPB: "203.0.113.5", PortB: 443},
		LocalDeviceID:    localID,
		RemoteDeviceID:   "ip:203.0.113.5",
		A:                model.DirectionStats{Bytes: bytes, Packets: 100},
		ThreatCategories: map[string]struct{}{},
	}
}

func TestExfiltrationRuleFires(t *testing.T) {
	e := NewEngine(testThresholds(), nil, nil, idGen())
	f := flowWithBytes("192.168.1.10", testThresholds().ExfiltrationBytes+1)

	threats := e.Evaluate(f, time.Now())
	found := false
	for _, th := range threats {
		if th.Category == model.CategoryExfiltration {
			found = true
		}
	}
	if !found {
		t.Error("expected exfiltration threat to fire")
	}
}

func TestExfiltrationRuleDoesNotFireBelowThreshold(t *testing.T) {
	e := NewEngine(testThresholds(), nil, nil, idGen())
	f := flowWithBytes("192.168.1.10", 100)

	threats := e.Evaluate(f, time.Now())
	for _, th := range threats {
		if th.Category == model.CategoryExfiltration {
			t.Error("did not expect exfiltration threat below threshold")
		}
	}
}

func TestGeoHighRiskRuleFires(t *testing.T) {
	e := NewEngine(testThresholds(), []string{"KP"}, nil, idGen())
	f := flowWithBytes("192.168.1.10", 0)
	f.RemoteCountry = "KP"

	threats := e.Evaluate(f, time.Now())
	found := false
	for _, th := range threats {
		if th.Category == model.CategoryGeoHighRisk {
			found = true
		}
	}
	if !found {
		t.Error("expected geo_high_risk threat to fire")
	}
}

func TestPortScanRuleFiresAfterDistinctPorts(t *testing.T) {
	thresholds := testThresholds()
	thresholds.PortScanDistinctPorts = 3
	e := NewEngine(thresholds, nil, nil, idGen())
	now := time.Now()

	var lastThreats []model.Threat
	for i := 0; i < 3; i++ {
		f := flowWithBytes("192.168.1.10", 0)
		f.Key.PortB = uint16(1000 + i)
		lastThreats = e.Evaluate(f, now.Add(time.Duration(i)*time.Millisecond))
	}

	found := false
	for _, th := range lastThreats {
		if th.Category == model.CategoryPortScan {
			found = true
		}
	}
	if !found {
		t.Error("expected port_scan threat after 3 distinct ports")
	}
}

func TestDedupRaisesScoreNotDuplicates(t *testing.T) {
	e := NewEngine(testThresholds(), nil, nil, idGen())
	now := time.Now()

	f1 := flowWithBytes("192.168.1.10", testThresholds().ExfiltrationBytes+1)
	first := e.Evaluate(f1, now)
	if len(first) != 1 {
		t.Fatalf("expected 1 new threat, got %d", len(first))
	}

	f2 := flowWithBytes("192.168.1.10", testThresholds().ExfiltrationCritBytes+1)
	second := e.Evaluate(f2, now.Add(time.Second))
	if len(second) != 1 {
		t.Fatalf("expected 1 updated threat (score raised), got %d", len(second))
	}
	if second[0].ID != first[0].ID {
		t.Error("expected same threat ID across dedup bucket")
	}
	if second[0].Score <= first[0].Score {
		t.Error("expected score to rise monotonically")
	}
}
