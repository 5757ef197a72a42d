package telegram

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"github.com/Guiziweb/VideoAiStudio/internal/config"
	"github.com/Guiziweb/VideoAiStudio/internal/model"
	"github.com/Guiziweb/VideoAiStudio/internal/service"
)

const recentVideosLimit = 5

const helpText = `📖 <b>Help</b>

1️⃣ Top up your wallet from the studio
2️⃣ Write a prompt and start a generation
3️⃣ We message you here once the video is ready

If a generation fails, contact support to get its tokens back.

<b>📱 Commands:</b>
/start - Main menu
/balance - Wallet balance
/videos - Your latest videos
/help - This message`

type Bot struct {
	bot           *tele.Bot
	cfg           *config.Config
	accountSvc    *service.AccountService
	walletSvc     *service.WalletService
	generationSvc *service.GenerationService
	logger        *zap.Logger
}

func NewBot(
	cfg *config.Config,
	accountSvc *service.AccountService,
	walletSvc *service.WalletService,
	generationSvc *service.GenerationService,
	logger *zap.Logger,
) (*Bot, error) {
	pref := tele.Settings{
		Token:  cfg.Telegram.BotToken,
		Poller: &tele.LongPoller{Timeout: 60 * time.Second},
	}

	bot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		bot:           bot,
		cfg:           cfg,
		accountSvc:    accountSvc,
		walletSvc:     walletSvc,
		generationSvc: generationSvc,
		logger:        logger.Named("telegram"),
	}

	b.registerHandlers()

	return b, nil
}

func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", b.handleStart)
	b.bot.Handle("/balance", b.handleBalance)
	b.bot.Handle("/videos", b.handleVideos)
	b.bot.Handle("/help", b.handleHelp)

	b.bot.Handle(tele.OnCallback, b.handleCallback)
}

func (b *Bot) StartPolling(ctx context.Context) {
	go func() {
		<-ctx.Done()
		b.bot.Stop()
	}()
	b.bot.Start()
}

func (b *Bot) GetBotUsername() string {
	return b.bot.Me.Username
}

func (b *Bot) handleStart(c tele.Context) error {
	user := c.Sender()

	username := user.Username
	firstName := user.FirstName
	lastName := user.LastName
	langCode := user.LanguageCode

	account, isNew, err := b.accountSvc.Register(context.Background(), service.TelegramUser{
		ID:           user.ID,
		Username:     &username,
		FirstName:    &firstName,
		LastName:     &lastName,
		LanguageCode: &langCode,
	})
	if err != nil {
		b.logger.Error("failed to register account", zap.Int64("account_id", user.ID), zap.Error(err))
		return err
	}
	if isNew {
		b.logger.Info("account registered", zap.Int64("account_id", user.ID))
	}

	text := fmt.Sprintf(`Hi, %s! 👋

🎬 <b>Video AI Studio</b> turns a text prompt into a short video.

💰 Balance: <b>%d</b> tokens

Open the studio below to write a prompt.`, html.EscapeString(user.FirstName), account.Wallet.Balance)

	return c.Send(text, b.menu(), tele.ModeHTML)
}

func (b *Bot) handleBalance(c tele.Context) error {
	wallet, err := b.walletSvc.GetWallet(context.Background(), c.Sender().ID)
	if err != nil {
		return c.Send("❌ No wallet yet. Send /start to create one.")
	}

	text := fmt.Sprintf(`💰 <b>Your balance</b>

%d tokens`, wallet.Balance)

	return c.Send(text, b.menu(), tele.ModeHTML)
}

func (b *Bot) handleVideos(c tele.Context) error {
	generations, err := b.generationSvc.List(context.Background(), c.Sender().ID, recentVideosLimit)
	if err != nil {
		b.logger.Error("failed to list generations", zap.Int64("account_id", c.Sender().ID), zap.Error(err))
		return c.Send("❌ Could not load your videos, try again later.")
	}

	return c.Send(recentVideosText(generations), tele.ModeHTML, tele.NoPreview)
}

func (b *Bot) handleHelp(c tele.Context) error {
	return c.Send(helpText, b.menu(), tele.ModeHTML)
}

func (b *Bot) handleCallback(c tele.Context) error {
	defer c.Respond()

	// telebot prefixes callback data with \f
	switch data := strings.TrimPrefix(c.Callback().Data, "\f"); data {
	case "balance":
		return b.handleBalance(c)
	case "videos":
		return b.handleVideos(c)
	default:
		b.logger.Debug("unknown callback", zap.String("data", data))
	}
	return nil
}

func (b *Bot) menu() *tele.ReplyMarkup {
	keyboard := &tele.ReplyMarkup{}
	rows := []tele.Row{
		keyboard.Row(
			keyboard.Data("💰 Balance", "balance"),
			keyboard.Data("🎞 My videos", "videos"),
		),
	}
	if b.cfg.Telegram.WebAppURL != "" {
		rows = append([]tele.Row{
			keyboard.Row(keyboard.WebApp("🎬 Open studio", &tele.WebApp{URL: b.cfg.Telegram.WebAppURL})),
		}, rows...)
	}
	keyboard.Inline(rows...)
	return keyboard
}

// NotifyGenerationFinished tells the owner that a generation reached a
// final outcome.
func (b *Bot) NotifyGenerationFinished(g *model.Generation) error {
	text, ok := generationFinishedText(g)
	if !ok {
		return nil
	}

	_, err := b.bot.Send(&tele.User{ID: g.AccountID}, text, tele.ModeHTML)
	if err != nil {
		return fmt.Errorf("failed to notify account %d: %w", g.AccountID, err)
	}
	return nil
}

func generationFinishedText(g *model.Generation) (string, bool) {
	prompt := html.EscapeString(truncate(g.Prompt, 80))

	switch g.State {
	case model.StateCompleted:
		text := fmt.Sprintf("✅ <b>Your video is ready!</b>\n\n<i>%s</i>", prompt)
		if g.VideoStorageURL != nil {
			text += fmt.Sprintf("\n\n🎬 <a href=\"%s\">Watch</a>", html.EscapeString(*g.VideoStorageURL))
		}
		return text, true
	case model.StateFailed:
		text := fmt.Sprintf("❌ <b>Video generation failed</b>\n\n<i>%s</i>", prompt)
		if g.ExternalErrorMessage != nil {
			text += "\n\nReason: " + html.EscapeString(*g.ExternalErrorMessage)
		}
		return text, true
	case model.StateRefunded:
		return fmt.Sprintf("💰 <b>%d tokens refunded</b>\n\n<i>%s</i>", g.TokenCost, prompt), true
	default:
		return "", false
	}
}

func recentVideosText(generations []model.Generation) string {
	if len(generations) == 0 {
		return "🎞 You have no videos yet."
	}

	var sb strings.Builder
	sb.WriteString("🎞 <b>Your latest videos</b>\n")
	for _, g := range generations {
		sb.WriteString(fmt.Sprintf("\n%s <i>%s</i>", statusIcon(g.CustomerStatus()), html.EscapeString(truncate(g.Prompt, 40))))
		if g.State == model.StateCompleted && g.VideoStorageURL != nil {
			sb.WriteString(fmt.Sprintf(" · <a href=\"%s\">watch</a>", html.EscapeString(*g.VideoStorageURL)))
		}
	}
	return sb.String()
}

func statusIcon(status string) string {
	switch model.GenerationState(status) {
	case model.StateCompleted:
		return "✅"
	case model.StateFailed:
		return "❌"
	case model.StateRefunded:
		return "💰"
	case model.StateCreated:
		return "🆕"
	default:
		return "⏳"
	}
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}
