package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"github.com/Vodeneev/vodeneevgames/internal/pkg/models"
)

type fakeBot struct {
	mu   sync.Mutex
	sent []tgbotapi.MessageConfig
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func completedEvent() Event {
	return Event{
		Type: InstanceCompleted,
		Instance: models.GameInstance{
			ID: 7, GameType: models.LastManStanding, Name: "PL 26-27", Currency: "GBP",
		},
		Pot: decimal.RequireFromString("45.5"),
		Payouts: []models.Payout{
			{UserID: "alice", Amount: decimal.RequireFromString("22.75"), Currency: "GBP"},
			{UserID: "bob", Amount: decimal.RequireFromString("22.75"), Currency: "GBP"},
		},
	}
}

func TestFormatEvent_Completed(t *testing.T) {
	got := FormatEvent(completedEvent())
	for _, want := range []string{
		"*Last Man Standing \\#7 PL 26\\-27 completed*",
		"Pot: 45\\.50 GBP",
		"alice: 22\\.75 GBP",
		"bob: 22\\.75 GBP",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("message missing %q:\n%s", want, got)
		}
	}
}

func TestFormatEvent_UnknownTypeIsEmpty(t *testing.T) {
	if got := FormatEvent(Event{Type: "nope"}); got != "" {
		t.Errorf("FormatEvent = %q, want empty", got)
	}
}

func TestEscapeMarkdown(t *testing.T) {
	if got := escapeMarkdown("a_b*c.d(e)"); got != "a\\_b\\*c\\.d\\(e\\)" {
		t.Errorf("escapeMarkdown = %q", got)
	}
	if got := escapeMarkdown(`dom\user_1`); got != `dom\\user\_1` {
		t.Errorf("escapeMarkdown backslash = %q", got)
	}
}

func TestTelegramNotifier_SendsQueuedEvents(t *testing.T) {
	bot := &fakeBot{}
	n := newTelegramNotifier(bot, 42, time.Millisecond)

	for i := 0; i < 3; i++ {
		if err := n.Notify(context.Background(), completedEvent()); err != nil {
			t.Fatalf("Notify: %v", err)
		}
	}
	n.Stop()

	bot.mu.Lock()
	defer bot.mu.Unlock()
	if len(bot.sent) != 3 {
		t.Fatalf("sent = %d, want 3", len(bot.sent))
	}
	if bot.sent[0].ChatID != 42 || bot.sent[0].ParseMode != tgbotapi.ModeMarkdownV2 {
		t.Errorf("unexpected message config %+v", bot.sent[0])
	}
	if err := n.Notify(context.Background(), completedEvent()); err == nil {
		t.Error("expected error after Stop")
	}
}

type failingNotifier struct{ err error }

func (f failingNotifier) Notify(context.Context, Event) error { return f.err }

func TestMulti_JoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	m := Multi{NewLogNotifier(nil), failingNotifier{boom}, nil}
	if err := m.Notify(context.Background(), completedEvent()); !errors.Is(err, boom) {
		t.Fatalf("Multi error = %v, want boom", err)
	}
	if err := (Multi{NewLogNotifier(nil)}).Notify(context.Background(), completedEvent()); err != nil {
		t.Fatalf("Multi error = %v", err)
	}
}
