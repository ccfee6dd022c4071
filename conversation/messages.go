package conversation

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/iabalyuk/advisorbot/calendar"
	"github.com/iabalyuk/advisorbot/model"
)

// Button data understood by the machine. Field and schedule buttons carry a
// value after their prefix: f_<token>, s_<advisor id>.
const (
	DataListFields = "list_advisors"
	DataSearch     = "search_field"
	DataHelp       = "help"
	DataMainMenu   = "back_to_main"
	PrefixField    = "f_"
	PrefixSchedule = "s_"
)

const (
	textWelcome           = "Добро пожаловать в бота для поиска научных руководителей!\nВыберите действие:"
	textMainMenu          = "Главное меню:\nВыберите действие:"
	textChooseField       = "Выберите направление исследований:"
	textFieldsUnavailable = "К сожалению, не удалось получить список направлений исследований."
	textStartOver         = "Произошла ошибка. Пожалуйста, начните сначала."
	textGenericError      = "Произошла ошибка. Попробуйте позже."
	textSearchPrompt      = "Введите фамилию научного руководителя или направление исследований для поиска:"
	textSearchError       = "Произошла ошибка при поиске научных руководителей."
	textSearchResults     = "🔍 Результаты поиска:"
	textScheduleError     = "Не удалось получить информацию о расписании."
	textAdvisorNotFound   = "Научный руководитель не найден."
	textUnknownCommand    = "Неизвестная команда. Используйте /start или /help."

	textHelp = `<b>Помощь по использованию бота</b>

Доступные команды:
/start - Начать работу с ботом
/help - Показать это сообщение

Возможности бота:
• Просмотр списка научных руководителей по направлениям
• Поиск руководителей по фамилии или направлению исследований
• Просмотр информации о лимитах набора студентов
• Контактные данные руководителей
• Расписание и календарь встреч

Для начала работы используйте команду /start`
)

var (
	buttonMainMenu  = Button{Label: "🔙 Назад в главное меню", Data: DataMainMenu}
	buttonFieldList = Button{Label: "🔙 К списку направлений", Data: DataListFields}
	mainMenuButtons = []Button{
		{Label: "📚 Список направлений исследований", Data: DataListFields},
		{Label: "🔍 Поиск по фамилии или направлению", Data: DataSearch},
		{Label: "ℹ️ Помощь", Data: DataHelp},
	}
)

func scheduleButton(id model.AdvisorID) Button {
	return Button{Label: "📅 Показать расписание", Data: PrefixSchedule + string(id)}
}

func fieldAdvisorsHeader(field string) string {
	return fmt.Sprintf("📋 Список научных руководителей по направлению '%s':", html.EscapeString(field))
}

func fieldEmpty(field string) string {
	return fmt.Sprintf("Научных руководителей по направлению '%s' не найдено.", html.EscapeString(field))
}

func searchEmpty(query string) string {
	return fmt.Sprintf("По запросу '%s' ничего не найдено.", html.EscapeString(query))
}

// formatProfile renders an advisor card in Telegram HTML.
func formatProfile(a model.Advisor) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "👤 <b>%s</b>\n", html.EscapeString(a.Name))
	fmt.Fprintf(&sb, "📚 Направление: %s\n", html.EscapeString(a.ResearchField))
	fmt.Fprintf(&sb, "📧 Email: %s\n", html.EscapeString(a.Email))
	fmt.Fprintf(&sb, "📞 Телефон: %s\n", html.EscapeString(a.Phone))
	sb.WriteString("👥 Лимиты студентов:\n")
	fmt.Fprintf(&sb, "   - Бакалавриат: %d\n", a.BachelorLimit)
	fmt.Fprintf(&sb, "   - Магистратура: %d\n", a.MasterLimit)
	fmt.Fprintf(&sb, "   - Аспирантура: %d\n", a.PhDLimit)
	sb.WriteString("🕒 Часы консультаций:\n")
	for _, key := range officeHourKeys(a.OfficeHours) {
		day := calendar.DisplayName(calendar.Canonicalize(key))
		fmt.Fprintf(&sb, "   - %s: %s\n", html.EscapeString(day), html.EscapeString(a.OfficeHours[key]))
	}
	return sb.String()
}

// officeHourKeys orders keys Monday to Sunday; keys that are not weekdays go last.
func officeHourKeys(hours map[string]string) []string {
	keys := make([]string, 0, len(hours))
	for k := range hours {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := calendar.Canonicalize(keys[i]).Index(), calendar.Canonicalize(keys[j]).Index()
		if a < 0 {
			a = len(calendar.Weekdays)
		}
		if b < 0 {
			b = len(calendar.Weekdays)
		}
		if a != b {
			return a < b
		}
		return keys[i] < keys[j]
	})
	return keys
}

// formatSchedule wraps a calendar report (or notice) for an advisor.
func formatSchedule(a model.Advisor, body string) string {
	return fmt.Sprintf("📅 Расписание научного руководителя <b>%s</b>:\n\n%s",
		html.EscapeString(a.Name), html.EscapeString(body))
}
