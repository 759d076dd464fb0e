package bot

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"task-planner/internal/model"
	"task-planner/internal/service"
)

const (
	btnSkip         = "⏭️ Skip"
	btnCancelDialog = "⏪ Cancel input"
	iconPending     = "▫️"
	iconInProgress  = "🔸"
	iconCompleted   = "✅"
	iconOff         = "🏖"
	menuLabelToday  = "📅 Today"
	menuLabelTpls   = "📋 Templates"
	menuLabelNewTpl = "➕ New template"
	menuLabelHelp   = "ℹ️ Help"

	sendRatePerSec = 25
)

const helpText = "ℹ️ <b>Commands</b>\n" +
	"• /today — open today and apply due schedules\n" +
	"• /day &lt;YYYY-MM-DD&gt; — open any day\n" +
	"• /templates [search] — list templates, add one to today by button\n" +
	"• /newtemplate title | category | tag1, tag2 — create a template (no args starts a dialog)\n" +
	"• /category &lt;id&gt; &lt;deep_work|short_task|maintenance|none&gt; — change a template's category\n" +
	"• /deltemplate &lt;id&gt; — delete a template and its schedules\n" +
	"• /schedule &lt;id&gt; &lt;weekly|bi_weekly|monthly&gt; [YYYY-MM-DD] — repeat a template\n" +
	"• /schedules &lt;id&gt; — list a template's schedules\n" +
	"• /unschedule &lt;id&gt; &lt;schedule id&gt; — stop a schedule\n" +
	"• /off [YYYY-MM-DD] [reason] [note] — take a day off\n" +
	"• /on [YYYY-MM-DD] — undo a day off\n" +
	"• /weekendsoff [monday ...|none] — weekdays that are always off\n" +
	"• /cancel — cancel the current dialog"

func escape(s string) string {
	return html.EscapeString(s)
}

func normalizeTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func shortTitle(title string, maxLen int) string {
	runes := []rune(strings.TrimSpace(title))
	if len(runes) <= maxLen {
		return string(runes)
	}
	if maxLen <= 1 {
		return "…"
	}
	return string(runes[:maxLen-1]) + "…"
}

func categoryIcon(c model.Category) string {
	switch c {
	case model.CategoryDeepWork:
		return "🧠"
	case model.CategoryShortTask:
		return "⚡"
	case model.CategoryMaintenance:
		return "🧹"
	}
	return "•"
}

func statusIcon(s model.TaskStatus) string {
	switch s {
	case model.TaskStatusInProgress:
		return iconInProgress
	case model.TaskStatusCompleted:
		return iconCompleted
	}
	return iconPending
}

// formatDay renders a day grouped by category in column order.
func formatDay(view *service.DayView) string {
	var b strings.Builder
	day := view.Day
	fmt.Fprintf(&b, "📅 <b>%s</b> (%s)\n", day.Date, day.Date.Weekday())
	if day.IsOff {
		if day.Off != nil {
			fmt.Fprintf(&b, "%s Day off: %s", iconOff, escape(strings.ReplaceAll(string(day.Off.Reason), "_", " ")))
			if day.Off.Note != "" {
				fmt.Fprintf(&b, " (%s)", escape(day.Off.Note))
			}
			b.WriteString("\n")
		} else {
			fmt.Fprintf(&b, "%s Recurring day off\n", iconOff)
		}
	}

	byCategory := make(map[model.Category][]model.Task, len(model.Categories))
	for _, t := range view.Tasks {
		byCategory[t.Category] = append(byCategory[t.Category], t)
	}

	for _, c := range model.Categories {
		tasks := byCategory[c]
		fmt.Fprintf(&b, "\n%s <b>%s</b>\n", categoryIcon(c), c.Label())
		if len(tasks) == 0 {
			b.WriteString("   —\n")
			continue
		}
		for _, t := range tasks {
			fmt.Fprintf(&b, "%s #%d %s", statusIcon(t.Status), t.ID, escape(normalizeTitle(t.Title)))
			if len(t.Tags) > 0 {
				fmt.Fprintf(&b, " <i>%s</i>", escape(hashTags(t.Tags)))
			}
			b.WriteString("\n")
		}
	}

	if r := view.Result; r.Created > 0 || r.SkippedDayOff > 0 || r.SkippedNoCategory > 0 {
		fmt.Fprintf(&b, "\n♻️ From schedules: %d added", r.Created)
		if r.SkippedDayOff > 0 {
			fmt.Fprintf(&b, ", %d skipped (day off)", r.SkippedDayOff)
		}
		if r.SkippedNoCategory > 0 {
			fmt.Fprintf(&b, ", %d skipped (no category)", r.SkippedNoCategory)
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

func formatTemplate(t model.Template) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>#%d</b> %s", t.ID, escape(normalizeTitle(t.Title)))
	if t.HasCategory() {
		fmt.Fprintf(&b, " %s", categoryIcon(*t.Category))
	} else {
		b.WriteString(" <i>(no category)</i>")
	}
	if len(t.Tags) > 0 {
		fmt.Fprintf(&b, " <i>%s</i>", escape(hashTags(t.Tags)))
	}
	if t.Description != "" {
		fmt.Fprintf(&b, "\n   📝 %s", escape(t.Description))
	}
	return b.String()
}

func formatTemplateList(templates []model.Template, search string) string {
	if len(templates) == 0 {
		if search != "" {
			return fmt.Sprintf("No templates match «%s».", escape(search))
		}
		return "No templates yet. Create one with /newtemplate."
	}
	var b strings.Builder
	b.WriteString("📋 <b>Templates</b>\n")
	for _, t := range templates {
		b.WriteString(formatTemplate(t))
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

func formatSchedules(template *model.Template, schedules []model.Schedule) string {
	if len(schedules) == 0 {
		return fmt.Sprintf("Template #%d has no schedules.", template.ID)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🔁 <b>Schedules of #%d %s</b>\n", template.ID, escape(normalizeTitle(template.Title)))
	for _, s := range schedules {
		fmt.Fprintf(&b, "• #%d %s from %s, next %s\n",
			s.ID, strings.ReplaceAll(string(s.Recurrence), "_", "-"), s.AnchorDate, s.NextRunDate)
	}
	return strings.TrimSpace(b.String())
}

func hashTags(tags []model.Tag) string {
	parts := make([]string, 0, len(tags))
	for _, t := range tags {
		parts = append(parts, "#"+t.Name)
	}
	return strings.Join(parts, " ")
}

// parseTemplateArgs splits "title | category | tag1, tag2".
func parseTemplateArgs(raw string) service.TemplateInput {
	parts := strings.Split(raw, "|")
	input := service.TemplateInput{Title: strings.TrimSpace(parts[0])}
	if len(parts) > 1 {
		input.Category = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 {
		input.Tags = splitTags(parts[2])
	}
	return input
}

func splitTags(raw string) []string {
	var tags []string
	for _, tag := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || unicode.IsSpace(r) }) {
		if tag = strings.TrimPrefix(strings.TrimSpace(tag), "#"); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return uint(id), nil
}

func parseCallbackID(data, prefix string) (uint, error) {
	if !strings.HasPrefix(data, prefix) {
		return 0, fmt.Errorf("unexpected callback %q", data)
	}
	return parseID(strings.TrimPrefix(data, prefix))
}

func isSkipInput(text string) bool {
	value := strings.ToLower(strings.TrimSpace(text))
	return value == strings.ToLower(btnSkip) || value == "skip" || value == "-"
}

func isCancelDialogInput(text string) bool {
	value := strings.ToLower(strings.TrimSpace(text))
	return value == strings.ToLower(btnCancelDialog) || value == "cancel"
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelToday),
			tgbotapi.NewKeyboardButton(menuLabelTpls),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelNewTpl),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

func skipKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSkip),
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func categoryKeyboard() tgbotapi.ReplyKeyboardMarkup {
	row := make([]tgbotapi.KeyboardButton, 0, len(model.Categories))
	for _, c := range model.Categories {
		row = append(row, tgbotapi.NewKeyboardButton(string(c)))
	}
	kb := tgbotapi.NewReplyKeyboard(
		row,
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSkip),
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

// templateButtons offers one "add to today" button per template.
func templateButtons(templates []model.Template) *tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, t := range templates {
		if !t.HasCategory() {
			continue
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("➕ #%d · %s", t.ID, shortTitle(t.Title, 24)),
				fmt.Sprintf("%s%d", cbUsePrefix, t.ID),
			),
		))
	}
	if len(rows) == 0 {
		return nil
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}
