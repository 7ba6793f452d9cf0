package bot

import (
	"context"
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"remindd/internal/ai"
	"remindd/internal/bot/handlers"
	"remindd/internal/database"
	"remindd/internal/firing"
	"remindd/internal/orchestrator"
	"remindd/internal/repository"
)

type Bot struct {
	api      *tgbotapi.BotAPI
	handlers *handlers.Handlers
}

func New(api *tgbotapi.BotAPI, db *database.DB, orch *orchestrator.Orchestrator, fh *firing.Handler, aiClient *ai.Client) (*Bot, error) {
	if api == nil {
		return nil, fmt.Errorf("bot requires a Telegram API client")
	}

	repos := &handlers.Repositories{
		User:      repository.NewUserRepository(db),
		Reminder:  repository.NewReminderRepository(db),
		Settings:  repository.NewSettingsRepository(db),
		FireEvent: repository.NewFireEventRepository(db),
	}

	return &Bot{
		api:      api,
		handlers: handlers.New(api, repos, orch, fh, aiClient),
	}, nil
}

func (b *Bot) Start(ctx context.Context) error {
	log.Printf("Authorized on account %s", b.api.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update := <-updates:
			go b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		b.handlers.HandleCallbackQuery(ctx, update.CallbackQuery)
		return
	}

	if update.Message == nil {
		return
	}

	if update.Message.IsCommand() {
		b.handlers.HandleCommand(ctx, update.Message)
		return
	}

	// Free text goes through the natural-language parser
	b.handlers.HandleMessage(ctx, update.Message)
}
