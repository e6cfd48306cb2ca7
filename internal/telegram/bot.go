package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"account-link-bot/internal/dialog"
	"account-link-bot/internal/link/service"
)

// usernameFallback is stored when the Telegram account has no username.
const usernameFallback = "NULL"

// pollBackoff is how long the update loop waits after a failed getUpdates.
const pollBackoff = 3 * time.Second

// Bot routes Telegram updates into the link service.
type Bot struct {
	client  *Client
	links   *service.Service
	dialogs *dialog.Store

	supportURL  string
	newsChannel string
	serverLabel string
}

// NewBot wires the update router.
func NewBot(client *Client, links *service.Service, dialogs *dialog.Store, supportURL, newsChannel, serverLabel string) *Bot {
	return &Bot{
		client:      client,
		links:       links,
		dialogs:     dialogs,
		supportURL:  supportURL,
		newsChannel: newsChannel,
		serverLabel: serverLabel,
	}
}

// Run long-polls for updates until ctx is cancelled. Updates are handled
// sequentially so a user's captcha answers are evaluated in order.
func (b *Bot) Run(ctx context.Context) {
	log.Println("bot: polling for updates")
	var offset int64
	for {
		updates, err := b.client.GetUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("bot: stopped")
				return
			}
			log.Printf("bot: getUpdates failed: %v", err)
			select {
			case <-ctx.Done():
				log.Println("bot: stopped")
				return
			case <-time.After(pollBackoff):
			}
			continue
		}
		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			b.handleUpdate(ctx, u)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, u Update) {
	switch {
	case u.CallbackQuery != nil:
		b.handleCallback(ctx, u.CallbackQuery)
	case u.Message != nil && u.Message.From != nil:
		b.handleMessage(ctx, u.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *Message) {
	switch command(msg.Text) {
	case "/start":
		b.handleStart(ctx, msg.Chat.ID)
	case "/addcode":
		b.processCodeRequest(ctx, msg.Chat.ID, msg.From.ID, username(msg.From), 0)
	case "/recovery_password":
		b.handleRecoveryCommand(ctx, msg.Chat.ID)
	default:
		if b.dialogs.Step(msg.From.ID) == dialog.StepAwaitingChallenge {
			b.handleChallengeAnswer(ctx, msg)
		}
	}
}

func (b *Bot) handleCallback(ctx context.Context, call *CallbackQuery) {
	if call.Message == nil {
		return
	}
	chatID := call.Message.Chat.ID
	switch call.Data {
	case "addcode":
		b.processCodeRequest(ctx, chatID, call.From.ID, username(&call.From), call.Message.MessageID)
	case "start_recovery":
		b.handleStartRecovery(ctx, chatID, call)
	case "deltg":
		b.handleUnlinkRequest(ctx, chatID, call)
	case "confirm_deltg":
		if err := b.client.AnswerCallbackQuery(ctx, call.ID, "✍️ Send the answer as a number to this chat"); err != nil {
			log.Printf("bot: answer callback failed: %v", err)
		}
	case "cancel_deltg":
		b.links.CancelUnlink(call.From.ID)
		if err := b.client.EditMessageText(ctx, chatID, call.Message.MessageID, "❌ Profile unlink cancelled.", "", nil); err != nil {
			log.Printf("bot: could not edit message: %v", err)
		}
	}
}

func (b *Bot) handleStart(ctx context.Context, chatID int64) {
	markup := &inlineKeyboardMarkup{InlineKeyboard: [][]inlineKeyboardButton{
		{{Text: "Get code", CallbackData: "addcode"}},
	}}
	text := "👨‍💼 The Telegram assistant helps you protect your game account from hijacking and recover it if the password is lost.\n\n" +
		"To link your game account, use the «<b>Get code</b>» button.\n\n" +
		"Before you start, do not forget to subscribe to our news channel " + b.newsChannel + "."
	if err := b.client.SendMessage(ctx, chatID, text, "HTML", markup); err != nil {
		log.Printf("bot: send /start reply failed: %v", err)
	}
}

// processCodeRequest serves both the /addcode command and the addcode button.
// messageID is nonzero for button presses; the pressed keyboard is removed.
func (b *Bot) processCodeRequest(ctx context.Context, chatID, userID int64, username string, messageID int64) {
	if messageID != 0 {
		if err := b.client.ClearMessageKeyboard(ctx, chatID, messageID); err != nil {
			log.Printf("bot: could not edit message: %v", err)
		}
	}

	res, err := b.links.IssueOrReportExisting(ctx, userID, username)
	if err != nil {
		log.Printf("bot: code request for %d failed: %v", userID, err)
		b.send(ctx, chatID, "ℹ️ Something went wrong while generating the code. Try again later.", "", nil)
		return
	}

	if res.AlreadyBound {
		markup := &inlineKeyboardMarkup{InlineKeyboard: [][]inlineKeyboardButton{
			{{Text: "🗑 Unlink profile", CallbackData: "deltg"}},
		}}
		text := fmt.Sprintf(
			"ℹ️ You have already <b>linked</b> your game account: <b>%s</b> on server <b>%s</b>.\n\n"+
				"🔐 If you want to <b>unlink</b> your profile, press the button below 🗑",
			res.PlayerName, b.serverLabel)
		b.send(ctx, chatID, text, "HTML", markup)
		return
	}

	text := fmt.Sprintf(
		"✅ Your verification code is <b>%d</b>\n\n"+
			"1. Log in to the game account you want to link.\n"+
			"2. In the character menu (/mn) open the settings section.\n"+
			"3. Choose «Link Telegram».\n"+
			"4. Enter the verification code and press «Confirm».\n"+
			"5. Switch notifications from Mail to Telegram.\n\n"+
			"Once the account is linked, the assistant will send you a confirmation message.",
		res.Code)
	b.send(ctx, chatID, text, "HTML", nil)
}

func (b *Bot) handleRecoveryCommand(ctx context.Context, chatID int64) {
	markup := &inlineKeyboardMarkup{InlineKeyboard: [][]inlineKeyboardButton{
		{{Text: "🔓 Recover access", CallbackData: "start_recovery"}},
		{{Text: "📞 Contact support", URL: b.supportURL}},
	}}
	text := "🔐 If you *lost access* to your game account, you can *recover it* with the Telegram assistant.\n\n" +
		"⚠️ Note: for a quick recovery your account *must be linked* to your Telegram.\n\n" +
		"✔️ If you *did not link your game account to the assistant*, contact technical support."
	b.send(ctx, chatID, text, "Markdown", markup)
}

func (b *Bot) handleStartRecovery(ctx context.Context, chatID int64, call *CallbackQuery) {
	playerName, password, err := b.links.RecoverPassword(ctx, call.From.ID)
	switch {
	case errors.Is(err, service.ErrNotLinked) || errors.Is(err, service.ErrAccountNotFound):
		markup := &inlineKeyboardMarkup{InlineKeyboard: [][]inlineKeyboardButton{
			{{Text: "📞 Contact support", URL: b.supportURL}},
		}}
		b.send(ctx, chatID,
			"ℹ️ Game account not found or not linked to your Telegram profile.\n\nPlease contact technical support.",
			"", markup)
		return
	case err != nil:
		log.Printf("bot: password recovery for %d failed: %v", call.From.ID, err)
		b.send(ctx, chatID,
			"ℹ️ An error occurred while recovering the password.\n\nPlease try again later or contact support.",
			"", nil)
		return
	}

	text := fmt.Sprintf(
		"✅ Access to game account <b>%s</b> on server <b>%s</b> has been restored!\n"+
			"🔑 Your new password: <tg-spoiler><b><i>%s</i></b></tg-spoiler>\n\n"+
			"💾 Do not forget to <b>store the password</b> somewhere safe!",
		playerName, b.serverLabel, password)
	b.send(ctx, chatID, text, "HTML", nil)

	if err := b.client.ClearMessageKeyboard(ctx, chatID, call.Message.MessageID); err != nil {
		log.Printf("bot: could not edit message: %v", err)
	}
}

func (b *Bot) handleUnlinkRequest(ctx context.Context, chatID int64, call *CallbackQuery) {
	prompt, err := b.links.BeginUnlink(ctx, call.From.ID)
	if err != nil {
		if errors.Is(err, service.ErrNotLinked) {
			if err := b.client.AnswerCallbackQuery(ctx, call.ID, "ℹ️ No linked profile found"); err != nil {
				log.Printf("bot: answer callback failed: %v", err)
			}
			return
		}
		log.Printf("bot: begin unlink for %d failed: %v", call.From.ID, err)
		if err := b.client.AnswerCallbackQuery(ctx, call.ID, "❌ An error occurred"); err != nil {
			log.Printf("bot: answer callback failed: %v", err)
		}
		return
	}

	markup := &inlineKeyboardMarkup{InlineKeyboard: [][]inlineKeyboardButton{
		{
			{Text: "✅ Confirm", CallbackData: "confirm_deltg"},
			{Text: "❌ Cancel", CallbackData: "cancel_deltg"},
		},
	}}
	text := fmt.Sprintf(
		"🔒 <b>Action confirmation</b>\n\n"+
			"To unlink your profile, solve a simple problem:\n"+
			"<b>%s = ?</b>\n\n"+
			"Send the answer as a number to this chat.",
		prompt)
	if err := b.client.EditMessageText(ctx, chatID, call.Message.MessageID, text, "HTML", markup); err != nil {
		log.Printf("bot: could not edit message: %v", err)
	}
}

func (b *Bot) handleChallengeAnswer(ctx context.Context, msg *Message) {
	outcome, attempts := b.links.SubmitAnswer(msg.From.ID, msg.Text)
	switch outcome {
	case service.OutcomeConfirmed:
		if _, err := b.links.CompleteUnlink(ctx, msg.From.ID); err != nil {
			log.Printf("bot: unlink for %d failed: %v", msg.From.ID, err)
			b.send(ctx, msg.Chat.ID, "❌ An error occurred while unlinking the profile", "", nil)
			return
		}
		markup := &inlineKeyboardMarkup{InlineKeyboard: [][]inlineKeyboardButton{
			{{Text: "🔐 Link a new account", CallbackData: "addcode"}},
		}}
		b.send(ctx, msg.Chat.ID,
			"✅ Your game account has been successfully <b>unlinked</b> from Telegram.\n\n"+
				"🔐 If you want to <b>link a new account</b>, use the <b>Menu</b> or the button below 🗳",
			"HTML", markup)
	case service.OutcomeRetry:
		b.send(ctx, msg.Chat.ID, fmt.Sprintf("❌ Wrong answer. Try again. Attempt %d/3", attempts), "", nil)
	case service.OutcomeAborted:
		b.send(ctx, msg.Chat.ID, "❌ Too many wrong attempts. Profile unlink cancelled.", "", nil)
	}
}

func (b *Bot) send(ctx context.Context, chatID int64, text, parseMode string, markup *inlineKeyboardMarkup) {
	if err := b.client.SendMessage(ctx, chatID, text, parseMode, markup); err != nil {
		log.Printf("bot: send to %d failed: %v", chatID, err)
	}
}

// command extracts the bot command from a message text, stripping a trailing
// @BotName mention. Returns "" for non-command text.
func command(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return ""
	}
	cmd, _, _ := strings.Cut(fields[0], "@")
	return cmd
}

func username(u *User) string {
	if u == nil || u.Username == "" {
		return usernameFallback
	}
	return u.Username
}
