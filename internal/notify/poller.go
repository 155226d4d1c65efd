package notify

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/talgya/fantasy-chronicle/internal/markdown"
)

// Poll answers detail-button presses until ctx is cancelled. It only reads
// the detail cache and store, never world state. Cancellation is observed
// between long polls.
func (t *Telegram) Poll(ctx context.Context) {
	if !t.Enabled() {
		return
	}
	slog.Info("telegram callback polling started")
	defer slog.Info("telegram callback polling stopped")

	for ctx.Err() == nil {
		updates, err := t.fetch([]string{"callback_query"})
		if err != nil {
			slog.Warn("telegram poll failed", "error", err)
			if !sleepCtx(ctx, t.pause) {
				return
			}
			continue
		}
		for _, u := range updates {
			if u.CallbackQuery != nil {
				t.HandleCallback(u.CallbackQuery)
			}
		}
	}
}

// fetch long-polls for updates and advances the offset past them.
func (t *Telegram) fetch(allowed []string) ([]tgbotapi.Update, error) {
	t.mu.Lock()
	cfg := tgbotapi.NewUpdate(t.offset)
	t.mu.Unlock()
	cfg.Timeout = t.pollTimeout
	cfg.AllowedUpdates = allowed

	updates, err := t.bot.GetUpdates(cfg)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	for _, u := range updates {
		if u.UpdateID >= t.offset {
			t.offset = u.UpdateID + 1
		}
	}
	t.mu.Unlock()
	return updates, nil
}

// HandleCallback acknowledges a button press and replies with the requested
// detail view. Presses from non-admins are acknowledged but not answered.
func (t *Telegram) HandleCallback(cq *tgbotapi.CallbackQuery) bool {
	if _, err := t.bot.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		slog.Warn("answer callback failed", "error", err)
	}

	if cq.From != nil && !t.isAdmin(cq.From.ID) {
		slog.Info("ignoring detail request from non-admin", "user_id", cq.From.ID)
		return false
	}

	view, eventID, err := ParseCallbackData(cq.Data)
	if err != nil {
		slog.Warn("bad callback data", "error", err)
		return false
	}

	chatID := t.ChatID()
	if cq.Message != nil && cq.Message.Chat != nil {
		chatID = cq.Message.Chat.ID
	}

	d, ok := t.lookup(eventID)
	if !ok {
		return t.sendText(chatID, "Details for event #"+strconv.Itoa(eventID)+" are no longer available.", nil)
	}
	text, _ := d.Render(view)
	slog.Debug("answering detail request", "event_id", eventID, "view", view)
	return t.sendText(chatID, text, nil)
}

func (t *Telegram) isAdmin(userID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.admins) == 0 {
		return true
	}
	return t.admins[userID]
}

// RefreshAdmins reloads who may open detail views. In a private chat the
// other party is the admin; in a group the chat administrators are. If the
// lookup fails the chat itself is treated as the admin.
func (t *Telegram) RefreshAdmins() {
	chatID := t.ChatID()
	if chatID == 0 {
		return
	}

	admins := map[int64]bool{}
	defer func() {
		t.mu.Lock()
		t.admins = admins
		t.mu.Unlock()
	}()

	chat, err := t.bot.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: chatID}})
	if err != nil {
		slog.Warn("get chat failed", "chat_id", chatID, "error", err)
		admins[chatID] = true
		return
	}
	if chat.IsPrivate() {
		admins[chatID] = true
		return
	}

	members, err := t.bot.GetChatAdministrators(tgbotapi.ChatAdministratorsConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: chatID}})
	if err != nil {
		slog.Warn("get chat administrators failed", "chat_id", chatID, "error", err)
		admins[chatID] = true
		return
	}
	for _, m := range members {
		if m.User != nil {
			admins[m.User.ID] = true
		}
	}
	if len(admins) == 0 {
		admins[chatID] = true
	}
	slog.Info("telegram admins loaded", "chat_id", chatID, "count", len(admins))
}

// DiscoverChatID waits up to window for any message to the bot and adopts
// its chat. It gives up silently when the window closes. onFound is called
// with the new chat id so the caller can persist it.
func (t *Telegram) DiscoverChatID(ctx context.Context, window time.Duration, onFound func(int64)) bool {
	if !t.Enabled() {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	slog.Info("waiting for a message to the bot to learn the chat", "window", window)
	for ctx.Err() == nil {
		updates, err := t.fetch([]string{"message"})
		if err != nil {
			slog.Debug("chat discovery poll failed", "error", err)
			if !sleepCtx(ctx, t.pause) {
				break
			}
			continue
		}
		for _, u := range updates {
			if u.Message == nil || u.Message.Chat == nil {
				continue
			}
			id := u.Message.Chat.ID
			t.setChatID(id)
			slog.Info("telegram chat discovered", "chat_id", id)
			if onFound != nil {
				onFound(id)
			}
			t.sendText(id, "🔮 Fantasy World Generator is now connected!\n\nYou will receive events happening in this world.", nil)
			t.RefreshAdmins()
			return true
		}
	}
	slog.Info("no message received, chat delivery stays off until restart")
	return false
}

// Welcome announces that a resumed world is sending events again.
func (t *Telegram) Welcome(worldName string) bool {
	if !t.Enabled() || t.ChatID() == 0 {
		return false
	}
	return t.sendText(t.ChatID(),
		"🔮 Fantasy World Generator is reconnected!\n\nContinuing to send events from "+markdown.Escape(worldName)+".", nil)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
