package texts

// Categories of the catalog.
const (
	CategorySystem    = "system"
	CategorySurvey    = "survey"
	CategoryQuestions = "questions"
)

// DefaultLanguage is the language seeded and resolved when none is configured.
const DefaultLanguage = "ru"

// Defaults are seeded on Init for keys missing from storage.
var Defaults = map[string]map[string]string{
	CategorySystem: {
		"start":              "👋 Добро пожаловать! Выберите действие:",
		"invalid_password":   "Неверный пароль!",
		"access_denied":      "У вас нет доступа!",
		"admin_msg":          "Вы вошли в админ панель:",
		"enter_password":     "Введите пароль:",
		"wrong_password":     "Неверный пароль!",
		"error_survey":       "Произошла ошибка с состоянием опроса. Пожалуйста, начните заново.",
		"error_processing":   "Произошла ошибка при обработке ответа. Пожалуйста, попробуйте позже.",
		"cancelled":          "Действие отменено.",
		"mailing_prompt":     "Отправьте текст рассылки:",
		"mailing_confirm":    "Отправить это сообщение всем пользователям?",
		"mailing_cancelled":  "Рассылка отменена.",
		"mailing_started":    "Рассылка запущена.",
		"mailing_done":       "Рассылка завершена. Доставлено: {delivered}, ошибок: {failed}, из них бот заблокирован: {unreachable}.",
		"report_empty":       "Данных для отчёта пока нет.",
		"text_updated":       "Текст обновлён.",
		"stats_usage":        "Использование: /stats [ГГГГ-ММ-ДД]",
		"settext_usage":      "Использование: /settext <категория> <ключ> <текст>",
		"unknown_message":    "Не понимаю сообщение. Нажмите /start, чтобы открыть меню.",
		"guide_unavailable":  "Гайд временно недоступен. Попробуйте позже.",
		"btn_take_survey":    "📝 Пройти опрос",
		"btn_faq":            "❓ FAQ",
		"btn_activity_stats": "📊 Статистика активности",
		"btn_user_stats":     "👥 Статистика пользователей",
		"btn_mailing":        "📨 Рассылка",
		"btn_confirm":        "✅ Подтвердить рассылку",
		"btn_cancel_mailing": "❌ Отменить рассылку",
	},
	CategorySurvey: {
		"start_survey":      "Привет! Давайте пройдем небольшой опрос, чтобы определить ваши возможности получения субсидии.",
		"select_answer":     "Пожалуйста, выберите один из предложенных вариантов ответа:",
		"stale_answer":      "Этот вопрос уже неактуален. Ответьте, пожалуйста, на текущий:",
		"checkpoint":        "Отлично, половина пути пройдена! Осталось всего несколько вопросов. Продолжим?",
		"btn_continue":      "▶️ Продолжить",
		"start_preparation": "Отлично! Сейчас мы начнем подготовку вашей заявки.",
		"get_guide":         "Сейчас отправлю вам гайд по получению субсидии.",
		"contact_expert":    "Сейчас подключим эксперта для консультации.",
		"faq":               "Вот ответы на часто задаваемые вопросы:",
		"survey_final_base": "Отлично!\nПо этим данным у тебя очень высокие шансы на выдачу. С подобными ответами мои клиенты получают субсидию с первой попытки в 90%+ случаев\n\n" +
			"📌 В зависимости от вашего возраста вам доступны следующие варианты:",
		"survey_final_under_25": "\n— Социальный контракт — до 350.000 ₽\n— Грант для предпринимателей — до 500.000 ₽",
		"survey_final_over_25":  "\n— Социальный контракт — до 350.000 ₽",
		"survey_final_steps": "\n\nЧто дальше? Выбери, с чего хочешь начать:\n\n👇 Твои следующие шаги:\n\n" +
			"1️⃣ Начать подготовку заявки — включаемся в работу и идем к субсидии вместе\n" +
			"2️⃣ Забрать гайд «Как получить до 500.000₽ от государства» - полезный PDF с алгоритмом, примерами и лайфхаками\n" +
			"3️⃣ Связаться с экспертом — обсудить вашу ситуацию и задать вопросы\n" +
			"4️⃣ Посмотреть ответы на частые вопросы (FAQ) — коротко и по делу",
		"btn_start_preparation":        "1️⃣ Начать подготовку заявки",
		"btn_get_guide":                "2️⃣ Забрать гайд",
		"btn_contact_expert":           "3️⃣ Связаться с экспертом",
		"btn_faq":                      "4️⃣ FAQ",
		"survey_result_header":         "📋 Новый пройденный опрос",
		"survey_result_user_info":      "👤 Пользователь: @{username}\n👤 Идентификатор: {user_id}",
		"survey_result_answers_header": "📝 Ответы на вопросы:",
	},
	CategoryQuestions: {
		"question_region":               "В каком ты регионе?",
		"question_has_business":         "Есть ли у тебя ИП/Самозанятость?",
		"question_is_under_25":          "Ты младше 25 лет?",
		"question_has_experience":       "Есть ли у тебя опыт или навыки в сфере будущего бизнеса?",
		"question_official_income":      "Какой у тебя сейчас официальный доход? (переводы на карту не считаются)",
		"question_work_plan":            "Планируешь ли ты работать один или нанимать сотрудников?",
		"question_micro_result":         "Можно какой-то микрорезультат дать, чтобы проще было дойти до конца вопросов",
		"question_subsidy_interest":     "Насколько серьёзно вы настроены получить субсидию в ближайшие 2 месяца?",
		"question_desired_outcome":      "Что вы хотели бы получить?",
		"question_importance_level":     "Насколько важно для вас увеличить шансы на одобрение и сократить сроки?",
		"question_investment_readiness": "Вы готовы инвестировать в подготовку, чтобы получить субсидию в 350–500 тыс. руб?",
	},
}
