package bot

import (
	"strconv"
	"strings"

	"premium-bot/internal/models"
)

const (
	cbBuyPremium    = "buy_premium"
	cbBack          = "back"
	cbReportProblem = "report_problem"

	prefixPay     = "pay_"
	prefixCheck   = "check_"
	prefixApprove = "review_approve_"
	prefixReject  = "review_reject_"
)

type action int

const (
	actionUnknown action = iota
	actionBuyPremium
	actionBack
	actionReportProblem
	actionChooseGateway
	actionChoosePlan
	actionCheckStatus
	actionApprove
	actionReject
)

type callback struct {
	action   action
	gateway  string
	plan     models.PlanKind
	token    string
	reviewID uint
}

func payData(gateway string) string {
	return prefixPay + gateway
}

func planData(gateway string, plan models.PlanKind) string {
	return gateway + "_" + string(plan)
}

func checkData(token string) string {
	return prefixCheck + token
}

func approveData(reviewID uint, plan models.PlanKind) string {
	return prefixApprove + strconv.FormatUint(uint64(reviewID), 10) + "_" + string(plan)
}

func rejectData(reviewID uint) string {
	return prefixReject + strconv.FormatUint(uint64(reviewID), 10)
}

// parseCallback decodes inline button data. Plan buttons use the
// "<gateway>_<plan>" form, everything else a fixed prefix.
func parseCallback(data string) callback {
	switch data {
	case cbBuyPremium:
		return callback{action: actionBuyPremium}
	case cbBack:
		return callback{action: actionBack}
	case cbReportProblem:
		return callback{action: actionReportProblem}
	}

	switch {
	case strings.HasPrefix(data, prefixApprove):
		idPart, planPart, ok := strings.Cut(strings.TrimPrefix(data, prefixApprove), "_")
		if !ok {
			return callback{}
		}
		id, err := strconv.ParseUint(idPart, 10, 64)
		if err != nil || id == 0 {
			return callback{}
		}
		plan, err := models.ParsePlan(planPart)
		if err != nil {
			return callback{}
		}
		return callback{action: actionApprove, reviewID: uint(id), plan: plan}

	case strings.HasPrefix(data, prefixReject):
		id, err := strconv.ParseUint(strings.TrimPrefix(data, prefixReject), 10, 64)
		if err != nil || id == 0 {
			return callback{}
		}
		return callback{action: actionReject, reviewID: uint(id)}

	case strings.HasPrefix(data, prefixCheck):
		token := strings.TrimPrefix(data, prefixCheck)
		if token == "" {
			return callback{}
		}
		return callback{action: actionCheckStatus, token: token}

	case strings.HasPrefix(data, prefixPay):
		gateway := strings.TrimPrefix(data, prefixPay)
		if gateway == "" || strings.Contains(gateway, "_") {
			return callback{}
		}
		return callback{action: actionChooseGateway, gateway: gateway}
	}

	gateway, planPart, ok := strings.Cut(data, "_")
	if !ok || gateway == "" {
		return callback{}
	}
	plan, err := models.ParsePlan(planPart)
	if err != nil {
		return callback{}
	}
	return callback{action: actionChoosePlan, gateway: gateway, plan: plan}
}
