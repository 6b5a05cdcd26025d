// Package plans содержит единую таблицу соответствия тарифного плана
// месячному лимиту сообщений. Таблица используется и при проверке квоты,
// и при синхронизации подписки, чтобы значения не расходились.
package plans

import "github.com/fromelabs/chat-backend/internal/models"

// Limits — лимит сообщений в месяц для каждого плана.
var Limits = map[models.Plan]int{
	models.PlanFree:       50,
	models.PlanPro:        500,
	models.PlanPremium:    2000,
	models.PlanEnterprise: 10000,
}

// Limit возвращает лимит сообщений для плана.
// Для неизвестного плана возвращается лимит плана FREE.
func Limit(p models.Plan) int {
	if limit, ok := Limits[p]; ok {
		return limit
	}
	return Limits[models.PlanFree]
}

// Valid сообщает, существует ли такой план.
func Valid(p models.Plan) bool {
	_, ok := Limits[p]
	return ok
}

// Paid сообщает, является ли план платным.
func Paid(p models.Plan) bool {
	return Valid(p) && p != models.PlanFree
}
