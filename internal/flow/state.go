/**
 * TCP State Machine.
 *
 * NEW -> HANDSHAKE -> ESTABLISHED -> CLOSING -> CLOSED, with any RST
 * taking precedence and moving the flow straight to RESET. Non-TCP flows
 * stay in NEW for their whole life; callers key finalization triggers off
 * protocol rather than relying on state transitions for UDP/ICMP.
 */

package flow

import "github.com/netscope-observatory/netscope-observatory/internal/model"

// applyTCPState advances f.State given the newly arrived packet's flags.
// No-op for non-TCP flows.
func applyTCPState(f *model.Flow, pp *model.ParsedPacket, srcIsA bool) {
	if !pp.IsTCP() {
		return
	}

	if pp.Flags.Has(model.FlagRST) {
		f.State = model.StateReset
		return
	}

	switch f.State {
	case model.StateNew:
		if pp.Flags.Has(model.FlagSYN) {
			f.State = model.StateHandshake
		}
	case model.StateHandshake:
		if pp.Flags.Has(model.FlagSYN) && pp.Flags.Has(model.FlagACK) {
			// server's SYN-ACK; stay in HANDSHAKE until the client's final ACK
		} else if pp.Flags.Has(model.FlagACK) && !pp.Flags.Has(model.FlagSYN) {
			f.State = model.StateEstablished
		}
	case model.StateEstablished:
		if pp.Flags.Has(model.FlagFIN) {
			if f.MarkFIN(srcIsA) {
				f.State = model.StateClosed
			} else {
				f.State = model.StateClosing
			}
		}
	case model.StateClosing:
		if pp.Flags.Has(model.FlagFIN) && f.MarkFIN(srcIsA) {
			f.State = model.StateClosed
		}
	}
}
