package notify

import "testing"

func TestSubscribeReceivesPublishedEvent(t *testing.T) {
	h := NewHub(4)
	_, ch := h.Subscribe()

	h.Publish(Event{Type: NewDevice, DeviceID: "AA:BB:CC"})

	select {
	case e := <-ch:
		if e.Type != NewDevice || e.DeviceID != "AA:BB:CC" {
			t.Errorf("unexpected event: %+v", e)
		}
	default:
		t.Fatal("expected a buffered event")
	}
}

func TestPublishDropsOldestWhenFull(t *testing.T) {
	h := NewHub(2)
	_, ch := h.Subscribe()

	h.Publish(Event{Type: NewThreat, ThreatID: "1"})
	h.Publish(Event{Type: NewThreat, ThreatID: "2"})
	h.Publish(Event{Type: NewThreat, ThreatID: "3"})

	first := <-ch
	second := <-ch
	if first.ThreatID != "2" || second.ThreatID != "3" {
		t.Errorf("expected oldest (1) dropped, got %s then %s", first.ThreatID, second.ThreatID)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	h := NewHub(2)
	id, ch := h.Subscribe()
	h.Unsubscribe(id)

	if _, ok := <-ch; ok {
		t.Error("expected channel closed after unsubscribe")
	}
}
