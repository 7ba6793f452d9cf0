package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (h *Handlers) handleSettings(ctx context.Context, msg *tgbotapi.Message) {
	settings, err := h.repos.Settings.GetOrCreate(ctx, msg.From.ID)
	if err != nil {
		h.sendMessage(msg.Chat.ID, "Could not load your settings, try again later")
		return
	}

	onOff := func(b bool) string {
		if b {
			return "on"
		}
		return "off"
	}

	text := fmt.Sprintf(`⚙️ *Settings*

🔊 Sound: %s
📳 Vibration: %s
🔉 Volume: %d
🌙 Quiet hours: %s – %s
🌍 Timezone: %s

Quiet hours silence the ringing, the notification itself still arrives.

/quiet <HH:MM> <HH:MM>
/sound <on|off>
/timezone <name>`,
		onOff(settings.SoundEnabled),
		onOff(settings.VibrationEnabled),
		settings.Volume,
		settings.QuietStart, settings.QuietEnd,
		settings.Timezone,
	)
	h.sendMessage(msg.Chat.ID, text)
}

func (h *Handlers) handleQuietHours(ctx context.Context, msg *tgbotapi.Message) {
	args := strings.Fields(msg.CommandArguments())
	if len(args) != 2 {
		h.sendMessage(msg.Chat.ID, "Usage: /quiet <HH:MM> <HH:MM>\nExample: /quiet 22:00 08:00")
		return
	}

	for _, arg := range args {
		if _, err := time.Parse("15:04", arg); err != nil {
			h.sendMessage(msg.Chat.ID, "Bad time, use HH:MM (example 22:00)")
			return
		}
	}

	if err := h.repos.Settings.SetQuietHours(ctx, msg.From.ID, args[0], args[1]); err != nil {
		h.sendMessage(msg.Chat.ID, "Could not save quiet hours, try again later")
		return
	}
	h.sendMessage(msg.Chat.ID, fmt.Sprintf("🌙 Quiet hours set: %s – %s", args[0], args[1]))
}

func (h *Handlers) handleSound(ctx context.Context, msg *tgbotapi.Message) {
	arg := strings.ToLower(strings.TrimSpace(msg.CommandArguments()))
	var enabled bool
	switch arg {
	case "on":
		enabled = true
	case "off":
		enabled = false
	default:
		h.sendMessage(msg.Chat.ID, "Usage: /sound <on|off>")
		return
	}

	if err := h.repos.Settings.SetSound(ctx, msg.From.ID, enabled); err != nil {
		h.sendMessage(msg.Chat.ID, "Could not save that, try again later")
		return
	}
	if enabled {
		h.sendMessage(msg.Chat.ID, "🔊 Sound on")
	} else {
		h.sendMessage(msg.Chat.ID, "🔇 Sound off")
	}
}

func (h *Handlers) handleTimezone(ctx context.Context, msg *tgbotapi.Message) {
	arg := strings.TrimSpace(msg.CommandArguments())
	if arg == "" {
		h.sendMessage(msg.Chat.ID, "Usage: /timezone <name>\nExample: /timezone Europe/Berlin")
		return
	}

	if _, err := time.LoadLocation(arg); err != nil {
		h.sendMessage(msg.Chat.ID, "Unknown timezone, use an IANA name like Europe/Berlin")
		return
	}

	if err := h.repos.Settings.SetTimezone(ctx, msg.From.ID, arg); err != nil {
		h.sendMessage(msg.Chat.ID, "Could not save that, try again later")
		return
	}
	h.sendMessage(msg.Chat.ID, "🌍 Timezone set to "+arg)
}
