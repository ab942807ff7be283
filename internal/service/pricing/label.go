package pricing

import "github.com/askhat-b/taxi-dispatch/internal/domain/types"

// Classifier buckets an offer amount against the ride's reference fare.
// Thresholds come from config, never from the code.
type Classifier struct {
	goodDealMaxRatio float64
	pricierMinRatio  float64
}

func NewClassifier(goodDealMaxRatio, pricierMinRatio float64) *Classifier {
	return &Classifier{
		goodDealMaxRatio: goodDealMaxRatio,
		pricierMinRatio:  pricierMinRatio,
	}
}

func (c *Classifier) Label(offerAmount, referenceFare float64) types.PriceLabel {
	if referenceFare <= 0 {
		return types.LabelNormal
	}

	ratio := offerAmount / referenceFare
	switch {
	case ratio <= c.goodDealMaxRatio:
		return types.LabelGoodDeal
	case ratio >= c.pricierMinRatio:
		return types.LabelPricier
	default:
		return types.LabelNormal
	}
}
