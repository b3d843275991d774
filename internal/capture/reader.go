/**
 * Interface Reader.
 *
 * Single owner of the OS capture handle. Opens a live promiscuous capture
 * with a kernel-level BPF filter and yields raw frames with wall-clock
 * timestamps on a channel until the caller's context is canceled.
 */

package capture

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"github.com/netscope-observatory/netscope-observatory/internal/model"
)

// Config holds the reader's capture parameters.
type Config struct {
	Interface   string
	SnapLen     int32
	Promiscuous bool
	Timeout     time.Duration
	BufferMB    int
	BPFFilter   string
}

// DefaultConfig returns sane defaults: promiscuous, 64KiB snaplen, 500ms
// poll timeout, 32MiB kernel buffer, spec.md's default BPF filter.
func DefaultConfig(interfaceName string) Config {
	return Config{
		Interface:   interfaceName,
		SnapLen:     65536,
		Promiscuous: true,
		Timeout:     500 * time.Millisecond,
		BufferMB:    32,
		BPFFilter:   "ip or ip6",
	}
}

// Frame is one captured link-layer frame with its capture timestamp.
type Frame struct {
	Timestamp time.Time
	Data      []byte
}

// Reader owns the live pcap handle for one interface.
type Reader struct {
	cfg    Config
	handle *pcap.Handle
	lost   atomic.Bool // true once Frames' channel closed due to a read error, not ctx cancellation
}

// Open activates a live capture handle per cfg. Returns InterfaceUnavailable
// if the device is missing or activation fails for any other reason.
func Open(cfg Config) (*Reader, error) {
	if _, err := FindInterface(cfg.Interface); err != nil {
		return nil, err
	}

	inactive, err := pcap.NewInactiveHandle(cfg.Interface)
	if err != nil {
		return nil, model.NewError(model.ErrInterfaceUnavailable, "creating inactive handle", err)
	}
	defer inactive.CleanUp()

	if err := inactive.SetSnapLen(int(cfg.SnapLen)); err != nil {
		return nil, model.NewError(model.ErrInterfaceUnavailable, "setting snaplen", err)
	}
	if err := inactive.SetPromisc(cfg.Promiscuous); err != nil {
		return nil, model.NewError(model.ErrInterfaceUnavailable, "setting promiscuous mode", err)
	}
	if err := inactive.SetTimeout(cfg.Timeout); err != nil {
		return nil, model.NewError(model.ErrInterfaceUnavailable, "setting poll timeout", err)
	}
	if cfg.BufferMB > 0 {
		_ = inactive.SetBufferSize(cfg.BufferMB * 1024 * 1024)
	}

	handle, err := inactive.Activate()
	if err != nil {
		return nil, model.NewError(model.ErrInterfaceUnavailable, "activating handle", err)
	}

	if cfg.BPFFilter != "" {
		if err := handle.SetBPFFilter(cfg.BPFFilter); err != nil {
			handle.Close()
			return nil, model.NewError(model.ErrInterfaceUnavailable, "applying BPF filter "+cfg.BPFFilter, err)
		}
	}

	return &Reader{cfg: cfg, handle: handle}, nil
}

// Frames returns a channel of captured frames. The channel is closed when
// ctx is canceled or the underlying handle errors out; the reader closes
// its handle before returning.
func (r *Reader) Frames(ctx context.Context) <-chan Frame {
	out := make(chan Frame, 1)

	go func() {
		defer close(out)
		defer r.handle.Close()

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			data, ci, err := r.handle.ReadPacketData()
			if err != nil {
				if err == pcap.NextErrorTimeoutExpired {
					continue
				}
				r.lost.Store(true)
				return
			}

			frame := Frame{Timestamp: ci.Timestamp, Data: data}
			select {
			case out <- frame:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// LinkType reports the capture's link-layer type, needed by the parser to
// decode frames with gopacket.NewPacket.
func (r *Reader) LinkType() layers.LinkType {
	return r.handle.LinkType()
}

// Stats reports pcap-level packet drops for capture-health reporting.
func (r *Reader) Stats() (packetsReceived, packetsDropped uint64) {
	stats, err := r.handle.Stats()
	if err != nil {
		return 0, 0
	}
	return uint64(stats.PacketsReceived), uint64(stats.PacketsDropped)
}

// Close releases the capture handle. Safe to call after Frames' context has
// already canceled it.
func (r *Reader) Close() {
	r.handle.Close()
}

// Lost reports whether Frames' channel closed because the handle itself
// failed (device unplugged, driver error) rather than because its context
// was canceled. The supervisor uses this to decide whether to reopen the
// interface.
func (r *Reader) Lost() bool {
	return r.lost.Load()
}
