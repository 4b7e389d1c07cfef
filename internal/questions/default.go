package questions

// Default returns the subsidy consultation survey.
func Default() *Graph {
	return MustNew("region", []Question{
		{ID: "region", Next: "has_business"},
		{ID: "has_business", Options: []string{"Да", "Нет, но планирую", "Нет и не планирую"}, Next: "is_under_25"},
		{ID: AgeBracketField, Options: []string{AgeBracketUnder25, "Нет"}, Next: "has_experience"},
		{ID: "has_experience", Options: []string{"Да", "Нет"}, Next: "official_income"},
		{ID: "official_income", Next: "work_plan"},
		{ID: "work_plan", Options: []string{"Один", "Нанимать сотрудников"}, Next: CheckpointAfter},
		{ID: CheckpointAfter, Next: "subsidy_interest"},
		{ID: "subsidy_interest", Options: []string{"Готов начинать", "Думаю пока", "Просто интересуюсь"}, Next: "desired_outcome"},
		{ID: "desired_outcome", Options: []string{"Пошаговый план", "Готовый бизнес-план", "Сопровождение под ключ"}, Next: "importance_level"},
		{ID: "importance_level", Options: []string{"Очень важно", "Не очень", "Пока не уверен"}, Next: "investment_readiness"},
		{ID: "investment_readiness", Options: []string{"Да, если шансы высоки", "Готов частично", "Нет, хочу только бесплатно"}},
	}, CheckpointAfter)
}

// Labels are the short question captions used in operator summaries and reports.
var Labels = map[string]string{
	"region":               "В каком регионе?",
	"has_business":         "Есть ли ИП/Самозанятость?",
	"is_under_25":          "Младше 25 лет?",
	"has_experience":       "Есть опыт или навыки?",
	"official_income":      "Официальный доход",
	"work_plan":            "План работы",
	"micro_result":         "Микрорезультат",
	"subsidy_interest":     "Интерес к субсидии",
	"desired_outcome":      "Желаемый результат",
	"importance_level":     "Важность шансов",
	"investment_readiness": "Готовность инвестировать",
}
