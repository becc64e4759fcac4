package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"

	"github.com/Vodeneev/vodeneevgames/internal/api"
	"github.com/Vodeneev/vodeneevgames/internal/pkg/models"
	"github.com/Vodeneev/vodeneevgames/internal/processor"
)

const (
	defaultServiceURL = "http://localhost:8080"
	// Telegram rejects messages over 4096 characters
	maxMessageLen = 4000
)

type BotConfig struct {
	Token          string
	ServiceURL     string
	UpdateTimeout  int
	AllowedUserIDs []int64 // Optional: restrict access to specific users
}

func main() {
	_ = godotenv.Load()

	var token string
	var serviceURL string
	var allowedUsers string

	flag.StringVar(&token, "token", "", "Telegram bot token (required, or set TELEGRAM_BOT_TOKEN env var)")
	flag.StringVar(&serviceURL, "service-url", defaultServiceURL, "Games service URL")
	flag.StringVar(&allowedUsers, "allowed-users", "", "Comma-separated list of allowed user IDs (optional)")
	flag.Parse()

	if token == "" {
		token = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
	if token == "" {
		log.Fatal("Telegram bot token is required. Set -token flag or TELEGRAM_BOT_TOKEN env var")
	}
	if serviceURL == defaultServiceURL {
		if envURL := os.Getenv("GAMES_SERVICE_URL"); envURL != "" {
			serviceURL = envURL
		}
	}

	config := BotConfig{
		Token:          token,
		ServiceURL:     strings.TrimSuffix(serviceURL, "/"),
		UpdateTimeout:  60,
		AllowedUserIDs: parseUserIDs(allowedUsers),
	}

	log.Printf("Starting Telegram bot...")
	log.Printf("Games service URL: %s", config.ServiceURL)

	bot, err := tgbotapi.NewBotAPI(config.Token)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}
	bot.Debug = false
	log.Printf("Authorized on account %s", bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = config.UpdateTimeout

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Received shutdown signal, stopping bot...")
		cancel()
	}()

	client := &serviceClient{baseURL: config.ServiceURL, http: &http.Client{Timeout: 30 * time.Second}}
	updates := bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				bot.StopReceivingUpdates()
				return
			case update := <-updates:
				if update.Message == nil || update.Message.From == nil {
					continue
				}
				if !allowed(config.AllowedUserIDs, update.Message.From.ID) {
					bot.Send(tgbotapi.NewMessage(update.Message.Chat.ID, "Access denied. You are not authorized to use this bot."))
					continue
				}
				for _, text := range handleCommand(ctx, client, update.Message.Text) {
					msg := tgbotapi.NewMessage(update.Message.Chat.ID, text)
					msg.ParseMode = tgbotapi.ModeMarkdown
					if _, err := bot.Send(msg); err != nil {
						log.Printf("Failed to send reply: %v", err)
					}
				}
			}
		}
	}()

	<-ctx.Done()
	log.Println("Telegram bot stopped")
}

func parseUserIDs(s string) []int64 {
	var ids []int64
	for _, idStr := range strings.Split(s, ",") {
		if id, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

func allowed(ids []int64, id int64) bool {
	if len(ids) == 0 {
		return true
	}
	for _, a := range ids {
		if a == id {
			return true
		}
	}
	return false
}

// serviceClient calls the games-service HTTP API
type serviceClient struct {
	baseURL string
	http    *http.Client
}

func (c *serviceClient) do(ctx context.Context, method, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to games service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errorResp map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&errorResp); err == nil {
			if msg, ok := errorResp["error"].(string); ok {
				return fmt.Errorf("%s", msg)
			}
		}
		return fmt.Errorf("games service returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// handleCommand returns the reply messages for one chat message
func handleCommand(ctx context.Context, c *serviceClient, text string) []string {
	parts := strings.Fields(strings.TrimSpace(text))
	if len(parts) == 0 {
		return nil
	}
	command := strings.ToLower(parts[0])
	if i := strings.IndexByte(command, '@'); i > 0 {
		command = command[:i]
	}

	switch command {
	case "/start", "/help":
		return []string{helpText}
	case "/instances":
		q := url.Values{}
		if len(parts) > 1 {
			q.Set("status", parts[1])
		}
		var instances []models.GameInstance
		if err := c.do(ctx, http.MethodGet, "/api/instances?"+q.Encode(), &instances); err != nil {
			return []string{errorText(err)}
		}
		return splitMessages(formatInstances(instances))
	case "/leaderboard":
		if len(parts) < 2 {
			return []string{"Usage: /leaderboard <instance id>"}
		}
		id, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil || id <= 0 {
			return []string{"Instance id must be a positive number"}
		}
		var lb api.Leaderboard
		if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/instances/%d/leaderboard", id), &lb); err != nil {
			return []string{errorText(err)}
		}
		return splitMessages(formatLeaderboard(lb))
	case "/process":
		var report processor.RunReport
		if err := c.do(ctx, http.MethodPost, "/process", &report); err != nil {
			return []string{errorText(err)}
		}
		return []string{formatReport(report)}
	default:
		return []string{"Unknown command. Use /help to see available commands."}
	}
}

const helpText = `*Football Games Ops Bot*

*Available Commands:*

/instances [status] - List game instances
  Example: /instances active

/leaderboard <id> - Standings of one instance
  Example: /leaderboard 12

/process - Run result processing now

/help - Show this help message`

func errorText(err error) string {
	return "Error: " + escapeMarkdown(err.Error())
}

func formatInstances(instances []models.GameInstance) []string {
	if len(instances) == 0 {
		return []string{"No game instances found."}
	}
	lines := []string{fmt.Sprintf("*%d game instances*\n", len(instances))}
	for _, inst := range instances {
		line := fmt.Sprintf("*#%d %s* (%s)\n", inst.ID, escapeMarkdown(inst.Name), inst.GameType.DisplayName())
		line += fmt.Sprintf("%s %d, rounds %d-%d, now %d\n", inst.Competition, inst.Season, inst.StartRound, inst.EndRound, inst.CurrentRound)
		line += fmt.Sprintf("Status: %s, fee %s %s", inst.Status, inst.EntryFee.StringFixed(2), inst.Currency)
		if inst.CarriedPot.IsPositive() {
			line += fmt.Sprintf(", carried %s", inst.CarriedPot.StringFixed(2))
		}
		lines = append(lines, line+"\n")
	}
	return lines
}

func formatLeaderboard(lb api.Leaderboard) []string {
	inst := lb.Instance
	lines := []string{fmt.Sprintf("*%s* (%s, %s)\n", escapeMarkdown(inst.Name), inst.GameType.DisplayName(), inst.Status)}
	if len(lb.Rows) == 0 {
		return append(lines, "No entries yet.")
	}
	for _, r := range lb.Rows {
		line := fmt.Sprintf("%d. %s - %s, score %d", r.Rank, escapeMarkdown(r.UserID), r.Status, r.Score)
		if r.EliminatedRound > 0 {
			line += fmt.Sprintf(", out in round %d", r.EliminatedRound)
		}
		if r.Payout != nil {
			line += fmt.Sprintf(", won %s %s", r.Payout.StringFixed(2), inst.Currency)
		}
		lines = append(lines, line)
	}
	return lines
}

func formatReport(r processor.RunReport) string {
	counts := map[string]int{}
	for _, i := range r.Instances {
		counts[i.Action]++
	}
	text := fmt.Sprintf("*Run finished* in %s\nInstances: %d", r.Duration.Round(time.Millisecond), len(r.Instances))
	for _, action := range []string{
		processor.ActionActivated, processor.ActionCancelled, processor.ActionEvaluated,
		processor.ActionCompleted, processor.ActionRolledOver, processor.ActionFailed,
	} {
		if n := counts[action]; n > 0 {
			text += fmt.Sprintf("\n%s: %d", escapeMarkdown(action), n)
		}
	}
	return text
}

// splitMessages joins lines into messages under the Telegram length limit
func splitMessages(lines []string) []string {
	var out []string
	var b strings.Builder
	for _, line := range lines {
		if b.Len() > 0 && b.Len()+len(line)+1 > maxMessageLen {
			out = append(out, b.String())
			b.Reset()
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}

func escapeMarkdown(text string) string {
	replacer := strings.NewReplacer(
		"_", "\\_",
		"*", "\\*",
		"[", "\\[",
		"`", "\\`",
	)
	return replacer.Replace(text)
}
