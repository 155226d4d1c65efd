// Package notify delivers world events to a Telegram chat and answers the
// follow-up detail buttons attached to them.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	// captionLimit is Telegram's maximum photo caption length.
	captionLimit = 1024
	// detailCacheSize bounds how many events' details stay in memory.
	detailCacheSize = 256
	// DiscoveryWindow is how long DiscoverChatID waits for a first message.
	DiscoveryWindow = 120 * time.Second
	// pollTimeout is the long-poll timeout in seconds passed to getUpdates.
	pollTimeout = 30
	// pollPause separates polls after an error.
	pollPause = 5 * time.Second
)

// ErrNoChat is returned when a message is sent before a chat is known.
var ErrNoChat = errors.New("no telegram chat configured")

// DetailStore is the durable lookup behind the in-memory detail cache.
type DetailStore interface {
	SaveEventDetails(eventID int, d Details) error
	EventDetails(eventID int) (Details, bool, error)
}

// Message is one outbound notification.
type Message struct {
	Text      string
	ImagePath string
	Details   Details
	EventID   int
}

// Telegram sends messages to one chat through the Bot API.
type Telegram struct {
	bot   *tgbotapi.BotAPI
	store DetailStore
	cache *lru.Cache[int, Details]

	mu     sync.Mutex
	chatID int64
	admins map[int64]bool
	offset int

	pollTimeout int
	pause       time.Duration
}

// Option customises a Telegram client.
type Option func(*config)

type config struct {
	endpoint    string
	pollTimeout int
	pause       time.Duration
}

// WithEndpoint points the client at a different Bot API endpoint. The
// endpoint is a format string taking the token and the method name.
func WithEndpoint(endpoint string) Option {
	return func(c *config) { c.endpoint = endpoint }
}

// WithPollTimeout overrides the long-poll timeout and error pause.
func WithPollTimeout(seconds int, pause time.Duration) Option {
	return func(c *config) {
		c.pollTimeout = seconds
		c.pause = pause
	}
}

// NewTelegram connects a bot. Returns nil with no error if token is empty
// (chat delivery disabled).
func NewTelegram(token string, chatID int64, store DetailStore, opts ...Option) (*Telegram, error) {
	if token == "" {
		return nil, nil
	}

	cfg := config{endpoint: tgbotapi.APIEndpoint, pollTimeout: pollTimeout, pause: pollPause}
	for _, o := range opts {
		o(&cfg)
	}

	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, cfg.endpoint)
	if err != nil {
		return nil, fmt.Errorf("connect telegram bot: %w", err)
	}

	cache, err := lru.New[int, Details](detailCacheSize)
	if err != nil {
		return nil, fmt.Errorf("detail cache: %w", err)
	}

	slog.Info("telegram bot connected", "username", bot.Self.UserName, "chat_id", chatID)
	return &Telegram{
		bot:         bot,
		store:       store,
		cache:       cache,
		chatID:      chatID,
		admins:      make(map[int64]bool),
		pollTimeout: cfg.pollTimeout,
		pause:       cfg.pause,
	}, nil
}

// Enabled returns true if a bot is connected.
func (t *Telegram) Enabled() bool {
	return t != nil && t.bot != nil
}

// ChatID returns the chat events are delivered to, or 0.
func (t *Telegram) ChatID() int64 {
	if !t.Enabled() {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.chatID
}

func (t *Telegram) setChatID(id int64) {
	t.mu.Lock()
	t.chatID = id
	t.mu.Unlock()
}

// Send delivers msg. Detail buttons are attached when msg carries details
// and an event id; the details are stored so the buttons keep working after
// a restart. Failures are logged and reported as false.
func (t *Telegram) Send(ctx context.Context, msg Message) bool {
	if !t.Enabled() {
		return false
	}
	chatID := t.ChatID()
	if chatID == 0 {
		slog.Debug("telegram send skipped", "error", ErrNoChat)
		return false
	}
	if ctx.Err() != nil {
		return false
	}

	var markup any
	if !msg.Details.Empty() && msg.EventID > 0 {
		t.remember(msg.EventID, msg.Details)
		markup = detailKeyboard(msg.EventID)
	}

	if msg.ImagePath != "" {
		if _, err := os.Stat(msg.ImagePath); err == nil {
			return t.sendPhoto(chatID, msg, markup)
		}
	}
	return t.sendText(chatID, msg.Text, markup)
}

func (t *Telegram) sendText(chatID int64, text string, markup any) bool {
	m := tgbotapi.NewMessage(chatID, text)
	m.ParseMode = tgbotapi.ModeMarkdown
	if markup != nil {
		m.ReplyMarkup = markup
	}
	if _, err := t.bot.Send(m); err != nil {
		slog.Warn("telegram send failed", "chat_id", chatID, "error", err)
		return false
	}
	return true
}

func (t *Telegram) sendPhoto(chatID int64, msg Message, markup any) bool {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(msg.ImagePath))
	long := len(msg.Text) > captionLimit
	if !long {
		photo.Caption = msg.Text
		photo.ParseMode = tgbotapi.ModeMarkdown
		if markup != nil {
			photo.ReplyMarkup = markup
		}
	}
	if _, err := t.bot.Send(photo); err != nil {
		slog.Warn("telegram photo failed", "chat_id", chatID, "path", msg.ImagePath, "error", err)
		return false
	}
	if long {
		return t.sendText(chatID, msg.Text, markup)
	}
	return true
}

func detailKeyboard(eventID int) tgbotapi.InlineKeyboardMarkup {
	button := func(v View) tgbotapi.InlineKeyboardButton {
		return tgbotapi.NewInlineKeyboardButtonData(buttonLabel(v), CallbackData(v, eventID))
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(button(ViewBehindScenes), button(ViewConnections)),
		tgbotapi.NewInlineKeyboardRow(button(ViewAdventureHooks), button(ViewConsequences)),
	)
}

// CallbackData encodes a detail button as "<view>:<event id>".
func CallbackData(v View, eventID int) string {
	return string(v) + ":" + strconv.Itoa(eventID)
}

// ParseCallbackData decodes CallbackData.
func ParseCallbackData(data string) (View, int, error) {
	view, idStr, ok := strings.Cut(data, ":")
	if !ok {
		return "", 0, fmt.Errorf("callback %q has no event id", data)
	}
	id, err := strconv.Atoi(idStr)
	if err != nil || id <= 0 {
		return "", 0, fmt.Errorf("callback %q has bad event id", data)
	}
	v := View(view)
	for _, known := range Views {
		if v == known {
			return v, id, nil
		}
	}
	return "", 0, fmt.Errorf("callback %q has unknown view", data)
}

func (t *Telegram) remember(eventID int, d Details) {
	t.cache.Add(eventID, d)
	if t.store == nil {
		return
	}
	if err := t.store.SaveEventDetails(eventID, d); err != nil {
		slog.Warn("store event details failed", "event_id", eventID, "error", err)
	}
}

// lookup finds an event's details in the cache, then the durable store.
func (t *Telegram) lookup(eventID int) (Details, bool) {
	if d, ok := t.cache.Get(eventID); ok {
		return d, true
	}
	if t.store == nil {
		return Details{}, false
	}
	d, ok, err := t.store.EventDetails(eventID)
	if err != nil {
		slog.Warn("load event details failed", "event_id", eventID, "error", err)
		return Details{}, false
	}
	if ok {
		t.cache.Add(eventID, d)
	}
	return d, ok
}
