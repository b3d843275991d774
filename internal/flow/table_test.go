/**
 * Flow Table Tests.
 *
 * Covers canonical key direction, TCP state transitions, retransmission
 * detection and idle-timeout finalization.
 */

package flow

import (
	"testing"
	"time"

	"github.com/netscope-observatory/netscope-observatory/internal/model"
)

func pkt(ts time.Time, srcIP string, srcPort uint16, dstIP string, dstPort uint16, flags model.TCPFlags, seq uint32, ack uint32, payloadLen int) *model.ParsedPacket {
	var payload []byte
	if payloadLen > 0 {
		payload = make([]byte, payloadLen)
	}
	return &model.ParsedPacket{
		Timestamp: ts, Protocol: "TCP",
		SrcIP: srcIP, SrcPort: srcPort, DstIP: dstIP, DstPort: dstPort,
		Flags: flags, Seq: seq, Ack: ack, Payload: payload, Length: 40 + payloadLen,
	}
}

func TestUpdateCreatesNewFlow(t *testing.T) {
	table := NewTable(Config{ShardCount: 4, MaxFlows: 100})
	now := time.Now()

	res, ok := table.Update(pkt(now, "10.0.0.1", 5000, "10.0.0.2", 443, model.FlagSYN, 1, 0, 0))
	if !ok || !res.IsNew {
		t.Fatal("expected new flow to be created")
	}
	if res.Flow.State != model.StateHandshake {
		t.Errorf("expected HANDSHAKE after SYN, got %s", res.Flow.State)
	}
}

func TestUpdateCanonicalizesDirection(t *testing.T) {
	table := NewTable(Config{ShardCount: 4, MaxFlows: 100})
	now := time.Now()

	res1, _ := table.Update(pkt(now, "10.0.0.5", 9000, "10.0.0.1", 80, model.FlagSYN, 1, 0, 0))
	res2, _ := table.Update(pkt(now.Add(time.Millisecond), "10.0.0.1", 80, "10.0.0.5", 9000, model.FlagSYN|model.FlagACK, 1, 2, 0))

	if res1.Flow != res2.Flow {
		t.Fatal("expected both directions to map to the same flow")
	}
}

func TestHandshakeToEstablished(t *testing.T) {
	table := NewTable(Config{ShardCount: 1, MaxFlows: 100})
	now := time.Now()

	table.Update(pkt(now, "10.0.0.1", 5000, "10.0.0.2", 443, model.FlagSYN, 100, 0, 0))
	table.Update(pkt(now.Add(time.Millisecond), "10.0.0.2", 443, "10.0.0.1", 5000, model.FlagSYN|model.FlagACK, 500, 101, 0))
	res, _ := table.Update(pkt(now.Add(2*time.Millisecond), "10.0.0.1", 5000, "10.0.0.2", 443, model.FlagACK, 101, 501, 0))

	if res.Flow.State != model.StateEstablished {
		t.Errorf("expected ESTABLISHED, got %s", res.Flow.State)
	}
}

func TestRSTMovesToReset(t *testing.T) {
	table := NewTable(Config{ShardCount: 1, MaxFlows: 100})
	now := time.Now()

	table.Update(pkt(now, "10.0.0.1", 5000, "10.0.0.2", 443, model.FlagSYN, 1, 0, 0))
	res, _ := table.Update(pkt(now.Add(time.Millisecond), "10.0.0.2", 443, "10.0.0.1", 5000, model.FlagRST, 1, 2, 0))

	if res.Flow.State != model.StateReset {
		t.Errorf("expected RESET, got %s", res.Flow.State)
	}
}

func TestRetransmissionDetected(t *testing.T) {
	table := NewTable(Config{ShardCount: 1, MaxFlows: 100})
	now := time.Now()

	table.Update(pkt(now, "10.0.0.1", 5000, "10.0.0.2", 443, model.FlagPSH|model.FlagACK, 100, 1, 50))
	res, _ := table.Update(pkt(now.Add(time.Millisecond), "10.0.0.1", 5000, "10.0.0.2", 443, model.FlagPSH|model.FlagACK, 100, 1, 50))

	if res.Flow.A.Retransmissions != 1 {
		t.Errorf("expected 1 retransmission, got %d", res.Flow.A.Retransmissions)
	}
}

func TestJanitorFinalizesIdleFlow(t *testing.T) {
	table := NewTable(Config{ShardCount: 1, MaxFlows: 100,
		IdleTimeoutTCP: time.Second, IdleTimeoutUDP: time.Second, IdleTimeoutHandshake: time.Second})
	now := time.Now()
	table.Update(pkt(now, "10.0.0.1", 5000, "10.0.0.2", 443, model.FlagSYN, 1, 0, 0))

	var finalized *model.Flow
	j := NewJanitor(table, table.cfg, func(f *model.Flow) { finalized = f })
	j.sweep(now.Add(2 * time.Second))

	if finalized == nil {
		t.Fatal("expected idle flow to be finalized")
	}
	if table.Size() != 0 {
		t.Errorf("expected table to be empty after finalization, got %d", table.Size())
	}
}
