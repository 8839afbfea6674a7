package model

// Token prices per action. Chat is flat per user message; video is
// priced per BaseVideoDuration seconds and scales linearly.
const (
	CostChat  = 1
	CostImage = 60

	costVideoLiteBase = 50
	costVideoProBase  = 150
)

func VideoBaseCost(q VideoQuality) int {
	if q == QualityPro {
		return costVideoProBase
	}
	return costVideoLiteBase
}

// PlanGrant is the number of tokens credited when a plan activates.
func PlanGrant(p Plan) int {
	switch p {
	case PlanPlus:
		return 1000
	case PlanPro:
		return 3000
	default:
		return 0
	}
}
