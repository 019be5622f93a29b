package broadcast

import (
	"fmt"
	"testing"
	"time"

	"rollcall/pkg/types"
)

func TestTokenFanout(t *testing.T) {
	b := New(10)
	sub1 := b.SubscribeTokens("class-1")
	sub2 := b.SubscribeTokens("class-1")
	other := b.SubscribeTokens("class-2")

	tok := types.ActiveToken{Token: "tok-1", MintedAt: time.Now()}
	b.PublishToken("class-1", tok)

	for i, sub := range []*TokenSub{sub1, sub2} {
		select {
		case got := <-sub.C:
			if got.Token != "tok-1" {
				t.Errorf("subscriber %d got token %q, want tok-1", i, got.Token)
			}
		default:
			t.Errorf("subscriber %d got nothing", i)
		}
	}

	select {
	case got := <-other.C:
		t.Errorf("class-2 subscriber got class-1 token %q", got.Token)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New(10)
	sub := b.SubscribeTokens("class-1")
	b.UnsubscribeTokens(sub)

	if _, open := <-sub.C; open {
		t.Error("channel still open after unsubscribe")
	}

	// Double unsubscribe must not panic on the closed channel.
	b.UnsubscribeTokens(sub)
	b.PublishToken("class-1", types.ActiveToken{Token: "tok"})
}

func TestSlowSubscriberDropsOldest(t *testing.T) {
	b := New(2)
	sub := b.SubscribeTokens("class-1")

	for i := 0; i < 5; i++ {
		b.PublishToken("class-1", types.ActiveToken{Token: fmt.Sprintf("tok-%d", i)})
	}

	// Queue holds the two newest; the publisher never blocked.
	got := []string{(<-sub.C).Token, (<-sub.C).Token}
	if got[0] != "tok-3" || got[1] != "tok-4" {
		t.Errorf("queued tokens = %v, want [tok-3 tok-4]", got)
	}
	select {
	case tok := <-sub.C:
		t.Errorf("queue held more than its bound: %q", tok.Token)
	default:
	}
}

func TestPresenceFanout(t *testing.T) {
	b := New(10)
	sub := b.SubscribeMonitor("class-1")

	update := types.PresenceUpdate{
		SessionID: "sess-1",
		ClassID:   "class-1",
		CheckedIn: []types.CheckIn{{StudentID: "student-1"}},
	}
	b.PublishPresence("class-1", update)

	select {
	case got := <-sub.C:
		if len(got.CheckedIn) != 1 || got.CheckedIn[0].StudentID != "student-1" {
			t.Errorf("presence roster = %+v, want [student-1]", got.CheckedIn)
		}
	default:
		t.Error("monitor got nothing")
	}

	b.UnsubscribeMonitor(sub)
	if _, open := <-sub.C; open {
		t.Error("monitor channel still open after unsubscribe")
	}
}

func TestStats(t *testing.T) {
	b := New(10)
	d1 := b.SubscribeTokens("class-1")
	b.SubscribeTokens("class-2")
	b.SubscribeMonitor("class-1")

	stats := b.Stats()
	if stats["display_subscribers"] != 2 {
		t.Errorf("display_subscribers = %d, want 2", stats["display_subscribers"])
	}
	if stats["monitor_subscribers"] != 1 {
		t.Errorf("monitor_subscribers = %d, want 1", stats["monitor_subscribers"])
	}

	b.UnsubscribeTokens(d1)
	if got := b.Stats()["display_subscribers"]; got != 1 {
		t.Errorf("display_subscribers after unsubscribe = %d, want 1", got)
	}
}
