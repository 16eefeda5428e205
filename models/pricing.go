package models

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmdatafocus/shifts_backend/config"
	"github.com/mmdatafocus/shifts_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// each condition adds 25% of the base price; premiums never compound
var conditionPremium = decimal.New(25, -2)

// ShiftConditions are the report-level flags every line is priced with.
type ShiftConditions struct {
	ExtremeConditions bool
	NightShift        bool
}

// LineAmount is a resolved line total. Priced is false when no tier applied.
type LineAmount struct {
	Summ   decimal.Decimal
	Priced bool
}

// CalculateLineAmount returns price × (1 + 0.25·extreme + 0.25·night) × quantity.
func CalculateLineAmount(price, quantity decimal.Decimal, cond ShiftConditions) decimal.Decimal {
	amount := price
	if cond.ExtremeConditions {
		amount = amount.Add(price.Mul(conditionPremium))
	}
	if cond.NightShift {
		amount = amount.Add(price.Mul(conditionPremium))
	}
	return amount.Mul(quantity)
}

// ResolveLineAmount prices quantity units of a work item for a worker.
// A missing worker, an unset pay-category or a missing tier resolve to zero.
func ResolveLineAmount(ctx context.Context, tx *gorm.DB, companyId string, workId int, workerId int, quantity decimal.Decimal, cond ShiftConditions) (LineAmount, error) {
	logger := config.GetLogger()
	fields := logrus.Fields{
		"field":      "ResolveLineAmount",
		"company_id": companyId,
		"work_id":    workId,
		"worker_id":  workerId,
	}

	worker, err := utils.FetchModelTx[User](ctx, tx, companyId, workerId)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			logger.WithFields(fields).Warn("worker not found, line priced at zero")
			return LineAmount{Summ: decimal.Zero}, nil
		}
		return LineAmount{}, err
	}
	if worker.PayCategory == nil {
		logger.WithFields(fields).Warn("worker has no pay category, line priced at zero")
		return LineAmount{Summ: decimal.Zero}, nil
	}

	tier, err := PriceLookupQuery{CompanyId: companyId, WorkId: workId, Category: *worker.PayCategory}.Find(ctx, tx)
	if err != nil {
		return LineAmount{}, err
	}
	if tier == nil {
		fields["category"] = *worker.PayCategory
		logger.WithFields(fields).Warn("no price tier for work and category, line priced at zero")
		return LineAmount{Summ: decimal.Zero}, nil
	}

	return LineAmount{
		Summ:   CalculateLineAmount(tier.Price, quantity, cond),
		Priced: true,
	}, nil
}

// applyMissingPricePolicy decides what an unpriced line does to its report.
// It returns whether the report needs review.
func applyMissingPricePolicy(policy config.MissingPricePolicy, line LineAmount, workId int) (bool, error) {
	if line.Priced {
		return false, nil
	}
	switch policy {
	case config.MissingPriceReject:
		return false, fmt.Errorf("%w for work %d", ErrMissingPrice, workId)
	case config.MissingPriceFlag:
		return true, nil
	}
	return false, nil
}
