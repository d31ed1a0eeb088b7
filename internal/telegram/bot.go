package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/oggyb/matchbot/internal/db"
	svcErr "github.com/oggyb/matchbot/internal/errors"
	"github.com/oggyb/matchbot/internal/service/discovery"
	"github.com/oggyb/matchbot/internal/service/matching"
	"github.com/oggyb/matchbot/internal/service/premium"
	"github.com/oggyb/matchbot/internal/service/profile"
	"github.com/oggyb/matchbot/internal/service/referral"
	"github.com/oggyb/matchbot/internal/service/stats"
)

// Callback data prefixes. Payloads are "<prefix>:<arg>[:<arg>]".
const (
	cbLike      = "like"
	cbDislike   = "dislike"
	cbRespond   = "resp"
	cbBuy       = "buy"
	cbShowLikes = "likes"
)

const (
	starsCurrency = "XTR"
	profileUsage  = "Send your profile as one line:\n/profile name;age;gender;seeking;city;bio\n" +
		"gender: male|female|other, seeking: male|female|either"
	editUsage = "Change one field: /edit <name|age|gender|seeking|city|bio> <value>\n" +
		"Interests: /interests music, hiking\nPhotos: send up to 3, /photos clear to start over."
	genericFailure = "Something went wrong, please try again later."
)

// Services are the core operations the bot drives.
type Services struct {
	Profiles  *profile.Service
	Discovery *discovery.Service
	Matching  *matching.Service
	Referrals *referral.Service
	Premium   *premium.Service
	Stats     *stats.Service
}

// Options configures the router.
type Options struct {
	// Username is the bot's @handle used in invite links.
	Username string
	// IsAdmin gates operator commands. Nil means nobody is an admin.
	IsAdmin func(telegramID int64) bool
}

// Bot routes Telegram updates to the core services. Every failure is
// logged and answered with a short message; nothing propagates.
type Bot struct {
	api  Sender
	svc  Services
	log  *slog.Logger
	opts Options
}

func NewBot(api Sender, svc Services, log *slog.Logger, opts Options) *Bot {
	if opts.IsAdmin == nil {
		opts.IsAdmin = func(int64) bool { return false }
	}
	return &Bot{api: api, svc: svc, log: log.With("module", "telegram"), opts: opts}
}

// Poll consumes long-poll updates until ctx is done.
func (b *Bot) Poll(ctx context.Context, api *tgbotapi.BotAPI) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = []string{
		tgbotapi.UpdateTypeMessage, tgbotapi.UpdateTypeCallbackQuery, tgbotapi.UpdateTypePreCheckoutQuery,
	}
	updates := api.GetUpdatesChan(u)
	b.log.Info("polling for updates", "bot", api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			api.StopReceivingUpdates()
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			b.HandleUpdate(ctx, upd)
		}
	}
}

// HandleUpdate dispatches one update.
func (b *Bot) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	switch {
	case upd.PreCheckoutQuery != nil:
		b.handlePreCheckout(ctx, upd.PreCheckoutQuery)
	case upd.CallbackQuery != nil:
		b.handleCallback(ctx, upd.CallbackQuery)
	case upd.Message != nil && upd.Message.SuccessfulPayment != nil:
		b.handlePayment(ctx, upd.Message)
	case upd.Message != nil:
		b.handleMessage(ctx, upd.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	chatID := msg.Chat.ID

	if len(msg.Photo) > 0 {
		b.handlePhoto(ctx, msg)
		return
	}
	if !msg.IsCommand() {
		b.sendText(chatID, "Use /next to browse profiles or /likes to see who liked you.")
		return
	}

	if msg.Command() == "start" {
		b.handleStart(ctx, msg)
		return
	}
	if msg.Command() == "stats" && b.opts.IsAdmin(msg.From.ID) {
		b.showStats(ctx, chatID)
		return
	}

	user, err := b.svc.Profiles.UserByTelegramID(ctx, msg.From.ID)
	if err != nil {
		b.fail(chatID, "lookup user", err, "Send /start first.")
		return
	}

	switch msg.Command() {
	case "profile":
		b.handleProfile(ctx, chatID, user, msg.CommandArguments())
	case "edit":
		b.handleEdit(ctx, chatID, user, msg.CommandArguments())
	case "interests":
		b.handleInterests(ctx, chatID, user, msg.CommandArguments())
	case "photos":
		b.handlePhotos(ctx, chatID, user, msg.CommandArguments())
	case "next":
		b.showNext(ctx, chatID, user)
	case "reset":
		if err := b.svc.Discovery.ResetViews(ctx, user.ID); err != nil {
			b.fail(chatID, "reset views", err, "")
			return
		}
		b.sendText(chatID, "Skipped profiles will show up again. /next")
	case "likes":
		b.showPending(ctx, chatID, user)
	case "matches":
		b.showMatches(ctx, chatID, user)
	case "referral":
		b.showReferral(ctx, chatID, user)
	case "premium":
		b.showPremium(ctx, chatID, user)
	case "hide", "show":
		b.setVisible(ctx, chatID, user, msg.Command() == "show")
	case "delete":
		if err := b.svc.Profiles.Delete(ctx, user.ID); err != nil {
			b.fail(chatID, "delete profile", err, "You have no profile.")
			return
		}
		b.sendText(chatID, "Your profile and its history were deleted.")
	default:
		b.sendText(chatID, "Unknown command. Try /next, /likes, /matches, /referral or /premium.")
	}
}

// handleStart registers the account and, for a new user opened through an
// invite link, credits the referrer.
func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	user, created, err := b.svc.Profiles.EnsureUser(ctx, msg.From.ID, msg.From.UserName)
	if err != nil {
		b.fail(chatID, "ensure user", err, "")
		return
	}

	if code := strings.TrimSpace(msg.CommandArguments()); created && code != "" {
		if _, err := b.svc.Referrals.RegisterByCode(ctx, code, user.ID); err != nil {
			b.log.Warn("referral registration failed", "user", user.ID, "code", code, "err", err)
		}
	}

	if _, err := b.svc.Profiles.GetByUser(ctx, user.ID); err == nil {
		b.sendText(chatID, "Welcome back! /next to browse, /likes to see who liked you.")
		return
	}
	b.sendText(chatID, "Welcome! "+profileUsage)
}

func (b *Bot) handleProfile(ctx context.Context, chatID int64, user *db.User, args string) {
	in, err := parseProfileLine(args)
	if err != nil {
		b.sendText(chatID, profileUsage)
		return
	}
	p, err := b.svc.Profiles.Create(ctx, user.ID, in)
	switch {
	case errors.Is(err, svcErr.ErrConflict):
		b.sendText(chatID, "You already have a profile. /delete it first to start over.")
	case errors.Is(err, svcErr.ErrInvalidInput):
		b.sendText(chatID, "That profile is not valid: "+err.Error()+"\n\n"+profileUsage)
	case err != nil:
		b.fail(chatID, "create profile", err, "")
	default:
		b.sendText(chatID, fmt.Sprintf("Profile saved, %s! Send up to %d photos, then /next to start browsing.", p.Name, db.MaxPhotos))
	}
}

// ownProfile loads the user's profile or tells them to create one.
func (b *Bot) ownProfile(ctx context.Context, chatID int64, user *db.User) (*db.Profile, bool) {
	p, err := b.svc.Profiles.GetByUser(ctx, user.ID)
	if err != nil {
		b.fail(chatID, "load profile", err, "Create your profile first.\n"+profileUsage)
		return nil, false
	}
	return p, true
}

func (b *Bot) handleEdit(ctx context.Context, chatID int64, user *db.User, args string) {
	field, value, ok := strings.Cut(strings.TrimSpace(args), " ")
	if !ok || strings.TrimSpace(value) == "" {
		b.sendText(chatID, editUsage)
		return
	}
	p, ok := b.ownProfile(ctx, chatID, user)
	if !ok {
		return
	}
	field = strings.ToLower(field)
	if field == "gender" || field == "seeking" {
		value = strings.ToLower(value)
	}
	err := b.svc.Profiles.Update(ctx, p.ID, field, value)
	switch {
	case errors.Is(err, svcErr.ErrInvalidInput):
		b.sendText(chatID, "Not saved: "+err.Error()+"\n\n"+editUsage)
	case err != nil:
		b.fail(chatID, "update profile", err, "")
	default:
		b.sendText(chatID, fmt.Sprintf("Your %s was updated.", field))
	}
}

func (b *Bot) handleInterests(ctx context.Context, chatID int64, user *db.User, args string) {
	p, ok := b.ownProfile(ctx, chatID, user)
	if !ok {
		return
	}
	names := make([]string, 0)
	for _, n := range strings.Split(args, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, strings.ToLower(n))
		}
	}
	err := b.svc.Profiles.SetInterests(ctx, p.ID, names)
	switch {
	case errors.Is(err, svcErr.ErrInvalidInput):
		b.sendText(chatID, "Not saved: "+err.Error()+"\nChoose from: "+strings.Join(profile.Interests, ", "))
	case err != nil:
		b.fail(chatID, "set interests", err, "")
	case len(names) == 0:
		b.sendText(chatID, "Interests cleared.")
	default:
		b.sendText(chatID, "Interests saved: "+strings.Join(names, ", "))
	}
}

// handlePhoto stores the largest size of an uploaded photo in the next slot.
func (b *Bot) handlePhoto(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	user, err := b.svc.Profiles.UserByTelegramID(ctx, msg.From.ID)
	if err != nil {
		b.fail(chatID, "lookup user", err, "Send /start first.")
		return
	}
	p, ok := b.ownProfile(ctx, chatID, user)
	if !ok {
		return
	}
	largest := msg.Photo[len(msg.Photo)-1]
	err = b.svc.Profiles.AddPhoto(ctx, p.ID, largest.FileID, largest.FileUniqueID)
	switch {
	case errors.Is(err, svcErr.ErrInvalidInput):
		b.sendText(chatID, fmt.Sprintf("You already have %d photos. /photos clear to start over.", db.MaxPhotos))
	case err != nil:
		b.fail(chatID, "add photo", err, "")
	default:
		b.sendText(chatID, fmt.Sprintf("Photo %d of %d saved.", len(p.Photos)+1, db.MaxPhotos))
	}
}

func (b *Bot) handlePhotos(ctx context.Context, chatID int64, user *db.User, args string) {
	p, ok := b.ownProfile(ctx, chatID, user)
	if !ok {
		return
	}
	if strings.TrimSpace(args) != "clear" {
		b.sendText(chatID, fmt.Sprintf("You have %d of %d photos. Send a photo to add one, /photos clear to remove all.",
			len(p.Photos), db.MaxPhotos))
		return
	}
	if err := b.svc.Profiles.ReplacePhotos(ctx, p.ID, nil); err != nil {
		b.fail(chatID, "clear photos", err, "")
		return
	}
	b.sendText(chatID, "Photos removed. Send up to 3 new ones.")
}

// parseProfileLine reads "name;age;gender;seeking;city;bio". Bio may be empty.
func parseProfileLine(s string) (profile.Input, error) {
	parts := strings.SplitN(s, ";", 6)
	if len(parts) < 5 {
		return profile.Input{}, fmt.Errorf("want at least 5 fields, got %d", len(parts))
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	age, err := strconv.Atoi(parts[1])
	if err != nil {
		return profile.Input{}, fmt.Errorf("age: %w", err)
	}
	in := profile.Input{
		Name:    parts[0],
		Age:     age,
		Gender:  strings.ToLower(parts[2]),
		Seeking: strings.ToLower(parts[3]),
		City:    parts[4],
	}
	if len(parts) == 6 {
		in.Bio = parts[5]
	}
	return in, nil
}

// showNext presents the next discovery candidate and records the view.
func (b *Bot) showNext(ctx context.Context, chatID int64, user *db.User) {
	cand, err := b.svc.Discovery.NextCandidate(ctx, user.ID)
	if err != nil {
		b.fail(chatID, "next candidate", err, "Create your profile first.\n"+profileUsage)
		return
	}
	if cand == nil {
		b.sendText(chatID, "No more profiles for now. /reset to see skipped ones again.")
		return
	}

	keyboard := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("❤️", fmt.Sprintf("%s:%d", cbLike, cand.ID)),
		tgbotapi.NewInlineKeyboardButtonData("👎", fmt.Sprintf("%s:%d", cbDislike, cand.ID)),
	))
	if len(cand.Photos) > 0 {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(cand.Photos[0].FileID))
		photo.Caption = profileCard(cand)
		photo.ReplyMarkup = keyboard
		b.send(photo)
	} else {
		out := tgbotapi.NewMessage(chatID, profileCard(cand))
		out.ReplyMarkup = keyboard
		b.send(out)
	}

	if err := b.svc.Discovery.RecordView(ctx, user.ID, cand.ID); err != nil {
		b.log.Warn("record view failed", "user", user.ID, "profile", cand.ID, "err", err)
	}
}

func profileCard(p *db.Profile) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s, %d, %s", p.Name, p.Age, p.City)
	if p.Bio != "" {
		sb.WriteString("\n\n" + p.Bio)
	}
	if len(p.Interests) > 0 {
		names := make([]string, 0, len(p.Interests))
		for _, i := range p.Interests {
			names = append(names, i.Name)
		}
		sb.WriteString("\n\n#" + strings.Join(names, " #"))
	}
	return sb.String()
}

// showPending presents the oldest like waiting for an answer.
func (b *Bot) showPending(ctx context.Context, chatID int64, user *db.User) {
	p, err := b.svc.Profiles.GetByUser(ctx, user.ID)
	if err != nil {
		b.fail(chatID, "load profile", err, "Create your profile first.\n"+profileUsage)
		return
	}
	pending, err := b.svc.Matching.PendingLikes(ctx, p.ID)
	if err != nil {
		b.fail(chatID, "pending likes", err, "")
		return
	}
	if len(pending) == 0 {
		b.sendText(chatID, "No new likes yet.")
		return
	}

	first := pending[0]
	text := fmt.Sprintf("%s, %d, %s liked you.", first.Name, first.Age, first.City)
	if len(pending) > 1 {
		text += fmt.Sprintf(" (%d more waiting)", len(pending)-1)
	}
	out := tgbotapi.NewMessage(chatID, text)
	out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("❤️ Like back", respData(matching.Reciprocate, first.FromUserID)),
		tgbotapi.NewInlineKeyboardButtonData("👎 Pass", respData(matching.Decline, first.FromUserID)),
		tgbotapi.NewInlineKeyboardButtonData("⚠️ Report", respData(matching.ReportLiker, first.FromUserID)),
	))
	b.send(out)
}

func respData(r matching.Response, likerUserID uint64) string {
	return fmt.Sprintf("%s:%s:%d", cbRespond, r, likerUserID)
}

func (b *Bot) showMatches(ctx context.Context, chatID int64, user *db.User) {
	matches, err := b.svc.Matching.Matches(ctx, user.ID)
	if err != nil {
		b.fail(chatID, "matches", err, "")
		return
	}
	if len(matches) == 0 {
		b.sendText(chatID, "No matches yet. Keep browsing with /next.")
		return
	}
	var sb strings.Builder
	sb.WriteString("Your matches:\n")
	for _, m := range matches {
		fmt.Fprintf(&sb, "\n%s, %d, %s", m.Name, m.Age, m.City)
		if m.Username != "" {
			sb.WriteString(" @" + m.Username)
		}
	}
	b.sendText(chatID, sb.String())
}

func (b *Bot) showReferral(ctx context.Context, chatID int64, user *db.User) {
	code, err := b.svc.Referrals.CodeFor(ctx, user.ID)
	if err != nil {
		b.fail(chatID, "referral code", err, "")
		return
	}
	st, err := b.svc.Referrals.Stats(ctx, user.ID)
	if err != nil {
		b.fail(chatID, "referral stats", err, "")
		return
	}
	text := fmt.Sprintf("Invite friends: https://t.me/%s?start=%s\n\nJoined: %d, with a profile: %d of %d.",
		b.opts.Username, code.Code, st.Total, st.Completed, st.Threshold)
	if st.RewardClaimed {
		text += "\nReward received."
	}
	b.sendText(chatID, text)
}

func (b *Bot) showPremium(ctx context.Context, chatID int64, user *db.User) {
	grant, err := b.svc.Premium.Status(ctx, user.ID)
	if err != nil {
		b.fail(chatID, "premium status", err, "")
		return
	}
	text := "You don't have premium."
	if grant != nil {
		text = "Premium is active until " + grant.ExpiresAt.Format("2006-01-02") + "."
	}

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(premium.Plans))
	for _, p := range premium.Plans {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%s · %d ⭐", p.Title, p.Stars), cbBuy+":"+p.ID),
		))
	}
	out := tgbotapi.NewMessage(chatID, text)
	out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	b.send(out)
}

func (b *Bot) showStats(ctx context.Context, chatID int64) {
	if b.svc.Stats == nil {
		return
	}
	snap, err := b.svc.Stats.Snapshot(ctx)
	if err != nil {
		b.fail(chatID, "stats", err, "")
		return
	}
	b.sendText(chatID, fmt.Sprintf(
		"Profiles: %d real, %d synthetic\nDecisions: %d\nMatches: %d\nPending reports: %d",
		snap.RealProfiles, snap.SyntheticProfiles, snap.Decisions, snap.Matches, snap.PendingReports))
}

func (b *Bot) setVisible(ctx context.Context, chatID int64, user *db.User, visible bool) {
	p, err := b.svc.Profiles.GetByUser(ctx, user.ID)
	if err != nil {
		b.fail(chatID, "load profile", err, "You have no profile.")
		return
	}
	if err := b.svc.Profiles.SetActive(ctx, p.ID, visible); err != nil {
		b.fail(chatID, "set active", err, "")
		return
	}
	if visible {
		b.sendText(chatID, "Your profile is visible again.")
	} else {
		b.sendText(chatID, "Your profile is hidden from discovery. /show to undo.")
	}
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	answer := ""
	defer func() {
		if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, answer)); err != nil {
			b.log.Debug("answer callback failed", "err", err)
		}
	}()
	if cq.From == nil || cq.Message == nil {
		return
	}
	chatID := cq.Message.Chat.ID

	user, err := b.svc.Profiles.UserByTelegramID(ctx, cq.From.ID)
	if err != nil {
		b.fail(chatID, "lookup user", err, "Send /start first.")
		return
	}

	parts := strings.Split(cq.Data, ":")
	switch parts[0] {
	case cbLike, cbDislike:
		id, ok := parseID(parts, 1)
		if !ok {
			return
		}
		decision := db.DecisionLike
		if parts[0] == cbDislike {
			decision = db.DecisionDislike
		}
		if _, err := b.svc.Matching.Decide(ctx, user.ID, id, decision); err != nil {
			b.fail(chatID, "decide", err, "That profile is no longer available.")
		}
		b.showNext(ctx, chatID, user)

	case cbRespond:
		likerID, ok := parseID(parts, 2)
		if !ok {
			return
		}
		_, err := b.svc.Matching.Respond(ctx, user.ID, likerID, matching.Response(parts[1]), "other")
		switch {
		case errors.Is(err, svcErr.ErrNotFound):
			answer = "Already answered."
		case err != nil:
			b.fail(chatID, "respond", err, "")
			return
		case parts[1] == string(matching.ReportLiker):
			answer = "Thanks, we'll take a look."
		}
		b.showPending(ctx, chatID, user)

	case cbShowLikes:
		b.showPending(ctx, chatID, user)

	case cbBuy:
		if len(parts) < 2 {
			return
		}
		b.sendInvoice(ctx, chatID, user, parts[1])
	}
}

func parseID(parts []string, idx int) (uint64, bool) {
	if len(parts) <= idx {
		return 0, false
	}
	id, err := strconv.ParseUint(parts[idx], 10, 64)
	return id, err == nil
}

func (b *Bot) sendInvoice(ctx context.Context, chatID int64, user *db.User, planID string) {
	payment, plan, err := b.svc.Premium.CreateInvoice(ctx, user.ID, planID)
	if err != nil {
		b.fail(chatID, "create invoice", err, "Unknown plan.")
		return
	}
	inv := tgbotapi.NewInvoice(chatID,
		"Premium: "+plan.Title,
		fmt.Sprintf("%d days of premium", plan.Days),
		payment.Payload,
		"", "", starsCurrency,
		[]tgbotapi.LabeledPrice{{Label: plan.Title, Amount: plan.Stars}},
	)
	inv.SuggestedTipAmounts = []int{}
	b.send(inv)
}

func (b *Bot) handlePreCheckout(ctx context.Context, q *tgbotapi.PreCheckoutQuery) {
	answer := tgbotapi.PreCheckoutConfig{PreCheckoutQueryID: q.ID, OK: true}

	err := func() error {
		if q.From == nil || q.Currency != starsCurrency {
			return fmt.Errorf("unexpected checkout: %w", svcErr.ErrInvalidInput)
		}
		user, err := b.svc.Profiles.UserByTelegramID(ctx, q.From.ID)
		if err != nil {
			return err
		}
		return b.svc.Premium.CheckPreCheckout(ctx, q.InvoicePayload, user.ID, q.TotalAmount)
	}()
	if err != nil {
		b.log.Warn("pre-checkout rejected", "payload", q.InvoicePayload, "err", err)
		answer.OK = false
		answer.ErrorMessage = "This invoice is no longer valid. Open /premium for a new one."
	}
	if _, err := b.api.Request(answer); err != nil {
		b.log.Error("answer pre-checkout failed", "payload", q.InvoicePayload, "err", err)
	}
}

func (b *Bot) handlePayment(ctx context.Context, msg *tgbotapi.Message) {
	p := msg.SuccessfulPayment
	grant, err := b.svc.Premium.CompletePayment(ctx, p.InvoicePayload, p.TelegramPaymentChargeID, p.ProviderPaymentChargeID)
	if err != nil {
		b.fail(msg.Chat.ID, "complete payment", err, "")
		return
	}
	if grant == nil {
		b.log.Info("duplicate payment confirmation", "payload", p.InvoicePayload)
	}
}

// fail logs err and tells the user something short. notFound replaces the
// generic text for ErrNotFound when set.
func (b *Bot) fail(chatID int64, op string, err error, notFound string) {
	if errors.Is(err, svcErr.ErrNotFound) && notFound != "" {
		b.log.Debug(op+" not found", "chat", chatID, "err", err)
		b.sendText(chatID, notFound)
		return
	}
	b.log.Error(op+" failed", "chat", chatID, "err", err)
	b.sendText(chatID, genericFailure)
}

func (b *Bot) sendText(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		b.log.Warn("telegram send failed", "err", err)
	}
}
