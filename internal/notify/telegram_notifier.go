package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Vodeneev/vodeneevgames/internal/pkg/models"
)

// Min interval between two messages to the same chat to stay under Telegram's ~30/min limit.
const telegramSendInterval = 2 * time.Second

const telegramQueueSize = 100

// sender is the part of tgbotapi.BotAPI we use
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts events to an ops chat from a background queue
type TelegramNotifier struct {
	bot      sender
	chatID   int64
	interval time.Duration

	mu       sync.Mutex
	lastSend time.Time

	queue     chan Event
	queueDone chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewTelegramNotifier connects the bot and starts the send loop
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	bot.Debug = false

	n := newTelegramNotifier(bot, chatID, telegramSendInterval)
	slog.Info("Telegram notifier initialized", "chat_id", chatID, "bot", bot.Self.UserName)
	return n, nil
}

func newTelegramNotifier(bot sender, chatID int64, interval time.Duration) *TelegramNotifier {
	ctx, cancel := context.WithCancel(context.Background())
	n := &TelegramNotifier{
		bot:       bot,
		chatID:    chatID,
		interval:  interval,
		queue:     make(chan Event, telegramQueueSize),
		queueDone: make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
	go n.messageSender()
	return n
}

// Notify queues the event; it never waits for Telegram
func (n *TelegramNotifier) Notify(ctx context.Context, ev Event) error {
	if n == nil {
		return fmt.Errorf("telegram notifier not initialized")
	}
	if n.ctx.Err() != nil {
		return fmt.Errorf("notifier stopped")
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case n.queue <- ev:
		return nil
	default:
		slog.Warn("Telegram message queue is full, dropping message", "event", string(ev.Type), "instance_id", ev.Instance.ID)
		return fmt.Errorf("message queue is full")
	}
}

// QueueLen returns current number of messages in the send queue
func (n *TelegramNotifier) QueueLen() int {
	if n == nil {
		return 0
	}
	return len(n.queue)
}

// Stop sends what is queued and stops the loop
func (n *TelegramNotifier) Stop() {
	if n == nil {
		return
	}
	n.cancel()
	<-n.queueDone
}

func (n *TelegramNotifier) messageSender() {
	defer close(n.queueDone)
	for {
		select {
		case <-n.ctx.Done():
			// Drain remaining messages before exit
			for {
				select {
				case ev := <-n.queue:
					n.send(ev, false)
				default:
					return
				}
			}
		case ev := <-n.queue:
			n.send(ev, true)
		}
	}
}

func (n *TelegramNotifier) send(ev Event, wait bool) {
	text := FormatEvent(ev)
	if text == "" {
		return
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	n.mu.Lock()
	defer n.mu.Unlock()
	if elapsed := time.Since(n.lastSend); wait && elapsed < n.interval {
		select {
		case <-n.ctx.Done():
		case <-time.After(n.interval - elapsed):
		}
	}
	n.lastSend = time.Now()
	if _, err := n.bot.Send(msg); err != nil {
		slog.Error("Telegram send: failed", "error", err, "event", string(ev.Type), "instance_id", ev.Instance.ID)
		return
	}
	slog.Debug("Telegram send: success", "event", string(ev.Type), "instance_id", ev.Instance.ID, "queue_length", len(n.queue))
}

// FormatEvent renders an event as a MarkdownV2 message
func FormatEvent(ev Event) string {
	inst := ev.Instance
	var b strings.Builder
	title := fmt.Sprintf("%s #%d", inst.GameType.DisplayName(), inst.ID)
	if inst.Name != "" {
		title += " " + inst.Name
	}

	switch ev.Type {
	case InstanceActivated:
		fmt.Fprintf(&b, "🟢 *%s started*\n", escapeMarkdown(title))
		fmt.Fprintf(&b, "%s", escapeMarkdown(fmt.Sprintf("%d entries, round %d", len(ev.Entries), inst.CurrentRound)))
	case InstanceCancelled:
		fmt.Fprintf(&b, "⚪ *%s cancelled*\n", escapeMarkdown(title))
		fmt.Fprintf(&b, "%s", escapeMarkdown(fmt.Sprintf("Only %d entries, all refunded", len(ev.Entries))))
	case RoundAdvanced:
		fmt.Fprintf(&b, "➡️ *%s*\n", escapeMarkdown(title))
		fmt.Fprintf(&b, "%s", escapeMarkdown(fmt.Sprintf("Round %d settled, now on round %d", ev.Round, inst.CurrentRound)))
	case EntryEliminated:
		fmt.Fprintf(&b, "❌ *%s*\n", escapeMarkdown(title))
		fmt.Fprintf(&b, "%s", escapeMarkdown(fmt.Sprintf("Round %d: %d eliminated (%s)", ev.Round, len(ev.Entries), joinUsers(ev.Entries))))
	case InstanceCompleted:
		fmt.Fprintf(&b, "🏆 *%s completed*\n", escapeMarkdown(title))
		fmt.Fprintf(&b, "%s\n", escapeMarkdown(fmt.Sprintf("Pot: %s %s", ev.Pot.StringFixed(2), inst.Currency)))
		for _, p := range ev.Payouts {
			fmt.Fprintf(&b, "%s\n", escapeMarkdown(fmt.Sprintf("• %s: %s %s", p.UserID, p.Amount.StringFixed(2), p.Currency)))
		}
	case InstanceRolledOver:
		fmt.Fprintf(&b, "🔁 *%s rolled over*\n", escapeMarkdown(title))
		fmt.Fprintf(&b, "%s", escapeMarkdown(fmt.Sprintf("No winner, %s %s carried to the next game", ev.Pot.StringFixed(2), inst.Currency)))
	default:
		return ""
	}
	return strings.TrimRight(b.String(), "\n")
}

func joinUsers(entries []models.Entry) string {
	users := make([]string, 0, len(entries))
	for _, e := range entries {
		users = append(users, e.UserID)
	}
	return strings.Join(users, ", ")
}

func escapeMarkdown(text string) string {
	replacer := strings.NewReplacer(
		"\\", "\\\\",
		"_", "\\_",
		"*", "\\*",
		"[", "\\[",
		"]", "\\]",
		"(", "\\(",
		")", "\\)",
		"~", "\\~",
		"`", "\\`",
		">", "\\>",
		"#", "\\#",
		"+", "\\+",
		"-", "\\-",
		"=", "\\=",
		"|", "\\|",
		"{", "\\{",
		"}", "\\}",
		".", "\\.",
		"!", "\\!",
	)
	return replacer.Replace(text)
}
