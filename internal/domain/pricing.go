package domain

import "strings"

// DefaultCostPerToken применяется к моделям, которых нет в таблице.
const DefaultCostPerToken = 0.000002

// costPerToken - грубая оценка в USD за токен, без разделения prompt/completion.
var costPerToken = map[string]float64{
	"gpt-4o":        0.00003,
	"gpt-4o-mini":   0.000002,
	"gpt-3.5-turbo": 0.000002,
}

// EstimateCost оценивает стоимость вызова. Имя модели с суффиксом версии
// (gpt-4o-mini-2024-07-18) сопоставляется по самому длинному префиксу,
// префикс вендора OpenRouter (openai/) отбрасывается.
func EstimateCost(model string, totalTokens int) float64 {
	if totalTokens <= 0 {
		return 0
	}

	rate, best := DefaultCostPerToken, -1
	model = strings.ToLower(model)
	if i := strings.LastIndexByte(model, '/'); i >= 0 {
		model = model[i+1:]
	}
	for name, r := range costPerToken {
		if (model == name || strings.HasPrefix(model, name+"-")) && len(name) > best {
			rate, best = r, len(name)
		}
	}
	return float64(totalTokens) * rate
}
