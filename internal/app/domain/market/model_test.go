package market

import (
	"errors"
	"testing"
	"time"
)

func TestTransitionFromActive(t *testing.T) {
	got, err := Transition(StatusActive, EventBuy)
	if err != nil || got != StatusSold {
		t.Fatalf("buy: got %s, %v", got, err)
	}
	got, err = Transition(StatusActive, EventCancel)
	if err != nil || got != StatusCancelled {
		t.Fatalf("cancel: got %s, %v", got, err)
	}
}

func TestTerminalStatesRejectEverything(t *testing.T) {
	for _, from := range []Status{StatusSold, StatusCancelled} {
		for _, ev := range []Event{EventBuy, EventCancel} {
			got, err := Transition(from, ev)
			if !errors.Is(err, ErrIllegalTransition) {
				t.Fatalf("%s/%s: expected illegal transition, got %v", from, ev, err)
			}
			if got != from {
				t.Fatalf("%s/%s: status changed to %s", from, ev, got)
			}
		}
	}
}

func TestApplyStampsTime(t *testing.T) {
	l := Listing{ID: 1, Status: StatusActive}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := l.Apply(EventCancel, at); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if l.Status != StatusCancelled || !l.UpdatedAt.Equal(at) {
		t.Fatalf("unexpected listing after apply: %+v", l)
	}
	if err := l.Apply(EventBuy, at); err == nil {
		t.Fatalf("expected cancelled listing to reject buy")
	}
}

func TestParseStatus(t *testing.T) {
	if s, err := ParseStatus("Canceled"); err != nil || s != StatusCancelled {
		t.Fatalf("got %s, %v", s, err)
	}
	if _, err := ParseStatus("expired"); err == nil {
		t.Fatalf("expected error for unknown status")
	}
}
