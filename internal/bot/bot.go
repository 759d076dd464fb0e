package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"task-planner/internal/model"
	"task-planner/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageTitle
	stageDescription
	stageCategory
	stageTags
)

const cbUsePrefix = "use:"

type conversationState struct {
	stage conversationStage
	input service.TemplateInput
}

// api is the part of the Telegram client the bot uses.
type api interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot aggregates Telegram API with services.
type Bot struct {
	api           api
	templates     *service.TemplateService
	days          *service.DayService
	loc           *time.Location
	now           func() time.Time
	log           logrus.FieldLogger
	limiter       *rate.Limiter
	conversations map[int64]*conversationState
	mu            sync.Mutex
}

func New(token string, templates *service.TemplateService, days *service.DayService, loc *time.Location, log logrus.FieldLogger) (*Bot, error) {
	client, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	log.WithField("account", client.Self.UserName).Info("bot authorized")
	return newBot(client, templates, days, loc, log), nil
}

func newBot(client api, templates *service.TemplateService, days *service.DayService, loc *time.Location, log logrus.FieldLogger) *Bot {
	return &Bot{
		api:           client,
		templates:     templates,
		days:          days,
		loc:           loc,
		now:           time.Now,
		log:           log.WithField("component", "bot"),
		limiter:       rate.NewLimiter(rate.Limit(sendRatePerSec), sendRatePerSec),
		conversations: make(map[int64]*conversationState),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				b.log.WithError(err).Error("handle callback")
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				b.log.WithError(err).Error("handle message")
			}
		}
	}
	return ctx.Err()
}

func (b *Bot) today() model.Date {
	return model.DateOf(b.now().In(b.loc))
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Dialog cancelled.")
	}

	if msg.IsCommand() {
		b.log.WithFields(logrus.Fields{
			"user_id": msg.From.ID,
			"command": msg.Command(),
		}).Debug("command received")
		return b.handleCommand(ctx, msg)
	}

	if handled, err := b.handleMenuAlias(ctx, msg); handled {
		return err
	}

	if b.hasConversation(msg.From.ID) {
		return b.handleConversation(ctx, msg)
	}

	return b.sendText(msg.Chat.ID, "I did not get that. Try /today or /help.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start", "help":
		return b.sendText(chatID, helpText)
	case "today":
		return b.sendDay(ctx, chatID, b.today())
	case "day":
		date, err := model.ParseDate(args)
		if err != nil {
			return b.sendText(chatID, "Use /day YYYY-MM-DD, for example /day 2026-03-02.")
		}
		return b.sendDay(ctx, chatID, date)
	case "templates":
		return b.sendTemplates(ctx, chatID, args)
	case "newtemplate":
		if args == "" {
			b.setConversation(msg.From.ID, &conversationState{stage: stageTitle})
			return b.sendWithReplyMarkup(chatID, "🆕 New template.\n<b>Step 1:</b> what is the title?", skipKeyboard())
		}
		return b.createTemplate(ctx, chatID, parseTemplateArgs(args))
	case "category":
		return b.handleCategory(ctx, chatID, args)
	case "deltemplate":
		return b.handleDeleteTemplate(ctx, chatID, args)
	case "schedule":
		return b.handleSchedule(ctx, chatID, args)
	case "schedules":
		return b.handleListSchedules(ctx, chatID, args)
	case "unschedule":
		return b.handleUnschedule(ctx, chatID, args)
	case "off":
		return b.handleOff(ctx, chatID, args)
	case "on":
		return b.handleOn(ctx, chatID, args)
	case "weekendsoff":
		return b.handleRecurringDaysOff(ctx, chatID, args)
	case "cancel":
		b.clearConversation(msg.From.ID)
		return b.sendText(chatID, "⏪ Dialog cancelled.")
	default:
		return b.sendText(chatID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	switch strings.TrimSpace(msg.Text) {
	case menuLabelToday:
		return true, b.sendDay(ctx, msg.Chat.ID, b.today())
	case menuLabelTpls:
		return true, b.sendTemplates(ctx, msg.Chat.ID, "")
	case menuLabelNewTpl:
		b.setConversation(msg.From.ID, &conversationState{stage: stageTitle})
		return true, b.sendWithReplyMarkup(msg.Chat.ID, "🆕 New template.\n<b>Step 1:</b> what is the title?", skipKeyboard())
	case menuLabelHelp:
		return true, b.sendText(msg.Chat.ID, helpText)
	}
	return false, nil
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.From.ID)
	if state == nil {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageTitle:
		if text == "" || isSkipInput(text) {
			return b.sendWithReplyMarkup(msg.Chat.ID, "The title cannot be empty. What is the title?", skipKeyboard())
		}
		state.input.Title = text
		state.stage = stageDescription
		return b.sendWithReplyMarkup(msg.Chat.ID, "✏️ Add a short description (or skip).", skipKeyboard())
	case stageDescription:
		if !isSkipInput(text) {
			state.input.Description = text
		}
		state.stage = stageCategory
		return b.sendWithReplyMarkup(msg.Chat.ID, "🏷 Pick a category. Templates without one cannot be scheduled.", categoryKeyboard())
	case stageCategory:
		if !isSkipInput(text) {
			if _, err := model.ParseCategory(text); err != nil {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Pick deep_work, short_task or maintenance (or skip).", categoryKeyboard())
			}
			state.input.Category = text
		}
		state.stage = stageTags
		return b.sendWithReplyMarkup(msg.Chat.ID, "🔖 Tags, comma separated, up to 5 (or skip).", skipKeyboard())
	case stageTags:
		if !isSkipInput(text) {
			state.input.Tags = splitTags(text)
		}
		input := state.input
		b.clearConversation(msg.From.ID)
		return b.createTemplate(ctx, msg.Chat.ID, input)
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Dialog reset. Start again with /newtemplate.")
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}
	chatID := cb.Message.Chat.ID

	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.WithError(err).Warn("answer callback")
	}

	templateID, err := parseCallbackID(cb.Data, cbUsePrefix)
	if err != nil {
		return err
	}

	day, err := b.days.GetOrCreateDay(ctx, b.today())
	if err != nil {
		return b.sendError(chatID, err)
	}
	task, err := b.templates.Instantiate(ctx, templateID, &day.ID, "")
	if err != nil {
		return b.sendError(chatID, err)
	}
	b.log.WithFields(logrus.Fields{"template_id": templateID, "task_id": task.ID}).Info("task added from template")
	return b.sendText(chatID, fmt.Sprintf("➕ «%s» added to today as #%d.", escape(normalizeTitle(task.Title)), task.ID))
}

func (b *Bot) sendDay(ctx context.Context, chatID int64, date model.Date) error {
	view, err := b.days.Resolve(ctx, date)
	if err != nil && view == nil {
		return b.sendError(chatID, err)
	}
	text := formatDay(view)
	if err != nil {
		b.log.WithError(err).WithField("date", date.String()).Error("open day")
		if errors.Is(err, service.ErrApplyFailed) {
			text += "\n\n⚠️ Scheduled tasks could not be applied; they will be retried next time you open this day."
		} else {
			text += "\n\n⚠️ Tasks could not be loaded. Please try again."
		}
	}
	return b.sendText(chatID, text)
}

func (b *Bot) sendTemplates(ctx context.Context, chatID int64, search string) error {
	templates, err := b.templates.ListTemplates(ctx, search)
	if err != nil {
		return b.sendError(chatID, err)
	}
	msg := tgbotapi.NewMessage(chatID, formatTemplateList(templates, search))
	msg.ParseMode = tgbotapi.ModeHTML
	if buttons := templateButtons(templates); buttons != nil {
		msg.ReplyMarkup = buttons
	}
	return b.send(msg)
}

func (b *Bot) createTemplate(ctx context.Context, chatID int64, input service.TemplateInput) error {
	template, err := b.templates.CreateTemplate(ctx, input)
	if err != nil {
		return b.sendError(chatID, err)
	}
	b.log.WithField("template_id", template.ID).Info("template created")
	return b.sendText(chatID, "✅ <b>Template saved</b>\n"+formatTemplate(*template))
}

func (b *Bot) handleCategory(ctx context.Context, chatID int64, args string) error {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return b.sendText(chatID, "Use /category &lt;id&gt; &lt;deep_work|short_task|maintenance|none&gt;.")
	}
	id, err := parseID(fields[0])
	if err != nil {
		return b.sendText(chatID, "The template id must be a number.")
	}
	category := fields[1]
	if strings.EqualFold(category, "none") {
		category = ""
	}
	template, err := b.templates.UpdateTemplate(ctx, id, service.TemplateUpdate{Category: &category})
	if err != nil {
		return b.sendError(chatID, err)
	}
	return b.sendText(chatID, "✏️ Updated: "+formatTemplate(*template))
}

func (b *Bot) handleDeleteTemplate(ctx context.Context, chatID int64, args string) error {
	id, err := parseID(args)
	if err != nil {
		return b.sendText(chatID, "Use /deltemplate &lt;id&gt;.")
	}
	if err := b.templates.DeleteTemplate(ctx, id); err != nil {
		return b.sendError(chatID, err)
	}
	return b.sendText(chatID, fmt.Sprintf("🗑 Template #%d deleted. Tasks created from it stay.", id))
}

func (b *Bot) handleSchedule(ctx context.Context, chatID int64, args string) error {
	fields := strings.Fields(args)
	if len(fields) < 2 || len(fields) > 3 {
		return b.sendText(chatID, "Use /schedule &lt;id&gt; &lt;weekly|bi_weekly|monthly&gt; [YYYY-MM-DD].")
	}
	id, err := parseID(fields[0])
	if err != nil {
		return b.sendText(chatID, "The template id must be a number.")
	}
	anchor := b.today()
	if len(fields) == 3 {
		if anchor, err = model.ParseDate(fields[2]); err != nil {
			return b.sendText(chatID, "The start date must look like 2026-03-02.")
		}
	}
	schedule, err := b.templates.CreateSchedule(ctx, id, fields[1], anchor)
	if err != nil {
		return b.sendError(chatID, err)
	}
	return b.sendText(chatID, fmt.Sprintf("🔁 Schedule #%d: %s starting %s.",
		schedule.ID, strings.ReplaceAll(string(schedule.Recurrence), "_", "-"), schedule.NextRunDate))
}

func (b *Bot) handleListSchedules(ctx context.Context, chatID int64, args string) error {
	id, err := parseID(args)
	if err != nil {
		return b.sendText(chatID, "Use /schedules &lt;id&gt;.")
	}
	template, err := b.templates.GetTemplate(ctx, id)
	if err != nil {
		return b.sendError(chatID, err)
	}
	schedules, err := b.templates.ListSchedules(ctx, id)
	if err != nil {
		return b.sendError(chatID, err)
	}
	return b.sendText(chatID, formatSchedules(template, schedules))
}

func (b *Bot) handleUnschedule(ctx context.Context, chatID int64, args string) error {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return b.sendText(chatID, "Use /unschedule &lt;template id&gt; &lt;schedule id&gt;.")
	}
	templateID, err := parseID(fields[0])
	if err != nil {
		return b.sendText(chatID, "The template id must be a number.")
	}
	scheduleID, err := parseID(fields[1])
	if err != nil {
		return b.sendText(chatID, "The schedule id must be a number.")
	}
	if err := b.templates.DeleteSchedule(ctx, templateID, scheduleID); err != nil {
		return b.sendError(chatID, err)
	}
	return b.sendText(chatID, fmt.Sprintf("🛑 Schedule #%d stopped.", scheduleID))
}

func (b *Bot) handleOff(ctx context.Context, chatID int64, args string) error {
	fields := strings.Fields(args)
	date := b.today()
	if len(fields) > 0 {
		if parsed, err := model.ParseDate(fields[0]); err == nil {
			date = parsed
			fields = fields[1:]
		}
	}
	input := service.MarkOffInput{Date: date, Reason: string(model.ReasonPersonalDay)}
	if len(fields) > 0 {
		input.Reason = fields[0]
		input.Note = strings.Join(fields[1:], " ")
	}
	if _, err := b.days.MarkOff(ctx, input); err != nil {
		return b.sendError(chatID, err)
	}
	return b.sendText(chatID, fmt.Sprintf("%s %s is a day off. Scheduled tasks will not be added.", iconOff, date))
}

func (b *Bot) handleOn(ctx context.Context, chatID int64, args string) error {
	date := b.today()
	if args != "" {
		parsed, err := model.ParseDate(args)
		if err != nil {
			return b.sendText(chatID, "Use /on [YYYY-MM-DD].")
		}
		date = parsed
	}
	if err := b.days.UnmarkOff(ctx, date); err != nil {
		return b.sendError(chatID, err)
	}
	return b.sendText(chatID, fmt.Sprintf("💼 %s is a working day again.", date))
}

func (b *Bot) handleRecurringDaysOff(ctx context.Context, chatID int64, args string) error {
	if args == "" {
		days, err := b.days.RecurringDaysOff(ctx)
		if err != nil {
			return b.sendError(chatID, err)
		}
		if len(days) == 0 {
			return b.sendText(chatID, "No recurring days off. Set them with /weekendsoff saturday sunday.")
		}
		return b.sendText(chatID, "🏖 Always off: "+strings.Join(days, ", "))
	}

	var names []string
	if !strings.EqualFold(args, "none") {
		names = splitTags(args)
	}
	days, err := b.days.SetRecurringDaysOff(ctx, names)
	if err != nil {
		return b.sendError(chatID, err)
	}
	if len(days) == 0 {
		return b.sendText(chatID, "Recurring days off cleared.")
	}
	return b.sendText(chatID, "🏖 Always off: "+strings.Join(days, ", "))
}

// sendError shows input errors to the user and logs the rest.
func (b *Bot) sendError(chatID int64, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrInvalidWeekday),
		errors.Is(err, service.ErrTemplateNotFound),
		errors.Is(err, service.ErrScheduleNotFound):
		return b.sendText(chatID, "⚠️ "+escape(err.Error()))
	case errors.Is(err, service.ErrCategoryRequired):
		return b.sendText(chatID, "⚠️ This template needs a category first. Use /category &lt;id&gt; deep_work.")
	case errors.Is(err, service.ErrCategoryInUse):
		return b.sendText(chatID, "⚠️ The template is scheduled, so its category cannot be cleared. Remove its schedules first.")
	}
	b.log.WithError(err).Error("request failed")
	return b.sendText(chatID, "Something went wrong. Please try again.")
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	return b.send(msg)
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	return b.send(msg)
}

// send keeps outgoing messages under Telegram's per-bot rate limit.
func (b *Bot) send(msg tgbotapi.Chattable) error {
	if err := b.limiter.Wait(context.Background()); err != nil {
		return err
	}
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) hasConversation(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.conversations[userID]
	return ok
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}
