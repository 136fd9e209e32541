package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"agrosmart/config"
	"agrosmart/models"

	"github.com/cenkalti/backoff/v4"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// advisoryThrottle suppresses repeated advisory messages while moisture hovers around a threshold
const advisoryThrottle = 15 * time.Second

type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier sends zone state changes to a Telegram chat
type TelegramNotifier struct {
	bot    telegramSender
	chatID int64
	loc    *time.Location
	logger *zap.Logger

	mu               sync.Mutex
	lastAdvisorySent map[string]time.Time
	lastAdvisoryTo   map[string]string
	pendingAdvisory  map[string]models.ZoneEvent
	now              func() time.Time
	schedule         func(d time.Duration, f func())
}

// NewTelegramNotifier authorizes the bot and checks the connection
func NewTelegramNotifier(cfg *config.Config, logger *zap.Logger) (*TelegramNotifier, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("error creating telegram bot: %w", err)
	}

	chatID, err := strconv.ParseInt(cfg.TelegramChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("error parsing chat ID: %w", err)
	}

	logger.Info("Telegram bot authorized", zap.String("username", bot.Self.UserName))

	if err := testTelegramConnection(bot, logger); err != nil {
		logger.Error("Telegram connection test failed", zap.Error(err))
		return nil, fmt.Errorf("telegram connection test failed: %w", err)
	}

	return newTelegramNotifier(bot, chatID, cfg.Location(), logger), nil
}

func newTelegramNotifier(bot telegramSender, chatID int64, loc *time.Location, logger *zap.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		bot:              bot,
		chatID:           chatID,
		loc:              loc,
		logger:           logger,
		lastAdvisorySent: make(map[string]time.Time),
		lastAdvisoryTo:   make(map[string]string),
		pendingAdvisory:  make(map[string]models.ZoneEvent),
		now:              time.Now,
		schedule:         func(d time.Duration, f func()) { time.AfterFunc(d, f) },
	}
}

func testTelegramConnection(bot *tgbotapi.BotAPI, logger *zap.Logger) error {
	const maxRetries = 3
	attempt := 0

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second

	return backoff.Retry(func() error {
		attempt++
		logger.Info("Testing Telegram connection", zap.Int("attempt", attempt), zap.Int("max_retries", maxRetries))

		if _, err := bot.GetMe(); err != nil {
			logger.Warn("Telegram connection failed",
				zap.Int("attempt", attempt),
				zap.Int("max_retries", maxRetries),
				zap.Error(err))
			return err
		}
		logger.Info("Telegram connection successful")
		return nil
	}, backoff.WithMaxRetries(bo, maxRetries-1))
}

// Notify formats the event and sends it, throttling advisory flapping per zone.
// A throttled advisory is held back and the latest one is sent when the window closes.
func (tn *TelegramNotifier) Notify(_ context.Context, event models.ZoneEvent) error {
	if event.Type == models.EventAdvisoryChanged && tn.shouldThrottle(event.ZoneID) {
		tn.logger.Debug("Throttling advisory message", zap.String("zone_id", event.ZoneID))
		tn.deferAdvisory(event)
		return nil
	}

	var text string
	switch event.Type {
	case models.EventLivenessChanged:
		text = tn.formatLivenessMessage(event)
	case models.EventAdvisoryChanged:
		text = tn.formatAdvisoryMessage(event)
	default:
		return fmt.Errorf("unsupported event type %q", event.Type)
	}

	if err := tn.send(text); err != nil {
		return err
	}

	if event.Type == models.EventAdvisoryChanged {
		tn.mu.Lock()
		tn.lastAdvisorySent[event.ZoneID] = tn.now()
		tn.lastAdvisoryTo[event.ZoneID] = event.To
		delete(tn.pendingAdvisory, event.ZoneID)
		tn.mu.Unlock()
	}

	tn.logger.Info("Sent zone notification",
		zap.String("zone_id", event.ZoneID),
		zap.String("type", string(event.Type)),
		zap.String("to", event.To))
	return nil
}

func (tn *TelegramNotifier) shouldThrottle(zoneID string) bool {
	tn.mu.Lock()
	defer tn.mu.Unlock()
	last, ok := tn.lastAdvisorySent[zoneID]
	if !ok {
		return false
	}
	return tn.now().Sub(last) < advisoryThrottle
}

// deferAdvisory keeps the newest throttled advisory and schedules one flush per window
func (tn *TelegramNotifier) deferAdvisory(event models.ZoneEvent) {
	tn.mu.Lock()
	_, scheduled := tn.pendingAdvisory[event.ZoneID]
	tn.pendingAdvisory[event.ZoneID] = event
	remaining := advisoryThrottle - tn.now().Sub(tn.lastAdvisorySent[event.ZoneID])
	tn.mu.Unlock()

	if !scheduled {
		tn.schedule(remaining, func() { tn.flushAdvisory(event.ZoneID) })
	}
}

func (tn *TelegramNotifier) flushAdvisory(zoneID string) {
	tn.mu.Lock()
	event, ok := tn.pendingAdvisory[zoneID]
	delete(tn.pendingAdvisory, zoneID)
	alreadySent := ok && tn.lastAdvisoryTo[zoneID] == event.To
	tn.mu.Unlock()

	if !ok {
		return
	}
	if alreadySent {
		tn.logger.Debug("Dropping held advisory, state already reported",
			zap.String("zone_id", zoneID),
			zap.String("to", event.To))
		return
	}
	if err := tn.Notify(context.Background(), event); err != nil {
		tn.logger.Warn("Failed to send held advisory", zap.String("zone_id", zoneID), zap.Error(err))
	}
}

func (tn *TelegramNotifier) send(text string) error {
	msg := tgbotapi.NewMessage(tn.chatID, text)
	msg.ParseMode = "HTML"
	msg.DisableWebPagePreview = true

	if _, err := tn.bot.Send(msg); err != nil {
		return fmt.Errorf("error sending telegram message: %w", err)
	}
	return nil
}

func (tn *TelegramNotifier) formatLivenessMessage(event models.ZoneEvent) string {
	var sb strings.Builder
	to := models.Liveness(event.To)

	switch to {
	case models.LivenessOnline:
		sb.WriteString("✅ <b>SENSOR NODE ONLINE</b>\n\n")
	case models.LivenessStale:
		sb.WriteString("⚠️ <b>SENSOR NODE STALE</b>\n\n")
	default:
		sb.WriteString("🚨 <b>SENSOR NODE OFFLINE</b> 🚨\n\n")
	}

	sb.WriteString(fmt.Sprintf("🌱 <b>Zone:</b> %s\n", event.ZoneID))
	sb.WriteString(fmt.Sprintf("🔁 <b>Status:</b> %s %s → %s %s\n",
		models.Liveness(event.From).GetStatusEmoji(), event.From, to.GetStatusEmoji(), event.To))
	sb.WriteString(fmt.Sprintf("🕐 <b>Last Seen:</b> %s\n", tn.formatTime(event.LastSeen)))

	if event.Downtime > 0 {
		sb.WriteString(fmt.Sprintf("⏱️ <b>Downtime:</b> %s\n", formatDuration(event.Downtime)))
	}

	if to == models.LivenessOffline {
		sb.WriteString("\n💡 <b>Action Required:</b>\n")
		sb.WriteString("The node may have lost power or WiFi. Check the controller in the field.")
	}

	return strings.TrimRight(sb.String(), "\n")
}

func (tn *TelegramNotifier) formatAdvisoryMessage(event models.ZoneEvent) string {
	var sb strings.Builder
	to := models.Advisory(event.To)

	switch to {
	case models.AdvisoryNeedsWater:
		sb.WriteString("💧 <b>IRRIGATION ADVISORY</b>\n\n")
	case models.AdvisorySufficient:
		sb.WriteString("🌿 <b>MOISTURE SUFFICIENT</b>\n\n")
	default:
		sb.WriteString("ℹ️ <b>MOISTURE IN RANGE</b>\n\n")
	}

	sb.WriteString(fmt.Sprintf("🌱 <b>Zone:</b> %s\n", event.ZoneID))
	if event.Moisture != nil {
		sb.WriteString(fmt.Sprintf("📊 <b>Moisture:</b> %.1f%%\n", *event.Moisture))
	} else {
		sb.WriteString("📊 <b>Moisture:</b> —\n")
	}
	sb.WriteString(fmt.Sprintf("🕐 <b>Reading Time:</b> %s\n", tn.formatTime(event.LastSeen)))

	if text := to.Message(); text != "" {
		sb.WriteString("\n" + text)
	}

	return strings.TrimRight(sb.String(), "\n")
}

func (tn *TelegramNotifier) formatTime(t *time.Time) string {
	if t == nil {
		return "—"
	}
	return t.In(tn.loc).Format("2006-01-02 15:04:05")
}

// SendStartupMessage announces that monitoring has started for a zone
func (tn *TelegramNotifier) SendStartupMessage(zoneID string) error {
	message := "🟢 <b>AgroSmart Monitoring Started</b>\n\n" +
		fmt.Sprintf("🌱 Zone: %s\n", zoneID) +
		"📡 Connected to Firebase Realtime Database\n" +
		"🤖 Telegram notifications active\n\n" +
		"✅ Watching sensor liveness and soil moisture."

	return tn.send(message)
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0f seconds", d.Seconds())
	} else if d < time.Hour {
		minutes := int(d.Minutes())
		seconds := int(d.Seconds()) % 60
		return fmt.Sprintf("%d min %d sec", minutes, seconds)
	} else if d < 24*time.Hour {
		hours := int(d.Hours())
		minutes := int(d.Minutes()) % 60
		return fmt.Sprintf("%d hr %d min", hours, minutes)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%d days %d hr", days, hours)
}
