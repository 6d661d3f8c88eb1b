package services

import (
	"context"

	domain "github.com/dashmart/promotions/internal/domain"
	"github.com/dashmart/promotions/internal/platform/config"
)

// progressValue is one chain's contribution to the shared progress bar. A nil
// value means the chain has not started yet because an earlier milestone is
// still open.
type progressValue struct {
	value     *int64
	completed bool
}

// promotionChain is one milestone on the chained progress bar: the small-order
// fee, the loyalty bonus, or the gift threshold.
type promotionChain interface {
	progressValue() progressValue
	barItem() domain.ProgressBarItem
	conditionItem(ctx context.Context) (*domain.ConditionsItem, error)
}

type feeChain struct {
	fee         domain.Fee
	feeSubtotal int64
	messages    config.MessageCatalog
}

func (c feeChain) progressValue() progressValue {
	if c.feeSubtotal < c.fee.FreeAfterSubtotal {
		return progressValue{value: int64Ptr(c.feeSubtotal)}
	}
	return progressValue{value: int64Ptr(c.fee.FreeAfterSubtotal), completed: true}
}

func (c feeChain) barItem() domain.ProgressBarItem {
	title := "Free delivery"
	if c.feeSubtotal < c.fee.FreeAfterSubtotal {
		title = "Add " + formatCents(c.fee.FreeAfterSubtotal-c.feeSubtotal) + " to get free delivery"
	}
	return domain.ProgressBarItem{
		Title:      title,
		TotalValue: c.fee.FreeAfterSubtotal,
		Type:       domain.ProgressSegmentFee,
	}
}

func (c feeChain) conditionItem(context.Context) (*domain.ConditionsItem, error) {
	return &domain.ConditionsItem{
		Title: renderTemplate(c.messages.SmallOrderFeeTitle, map[string]string{
			"required_amount": formatCents(c.fee.FreeAfterSubtotal),
		}),
		Subtitle: renderTemplate(c.messages.SmallOrderFeeSubtitle, map[string]string{
			"fee_amount": formatCents(c.fee.Value),
		}),
		ImageURL: c.messages.DeliveryImage,
	}, nil
}

type bonusChain struct {
	leftBorder    int64
	bonus         domain.OrderBonus
	feeSubtotal   int64
	bonusSubtotal int64
	messages      config.MessageCatalog
}

func (c bonusChain) progressValue() progressValue {
	switch {
	case c.bonusSubtotal < c.leftBorder:
		return progressValue{}
	case c.bonusSubtotal < c.bonus.RequiredSubtotal:
		value := interpolateProgress(c.leftBorder, c.bonus.RequiredSubtotal, c.feeSubtotal, c.bonusSubtotal)
		return progressValue{value: int64Ptr(value)}
	}
	return progressValue{value: int64Ptr(c.bonus.RequiredSubtotal), completed: true}
}

func (c bonusChain) barItem() domain.ProgressBarItem {
	pretty := bonusPretty(c.bonus)
	title := pretty + " off"
	if c.bonusSubtotal < c.bonus.RequiredSubtotal {
		title = "Add " + formatCents(c.bonus.RequiredSubtotal-c.bonusSubtotal) + " to get " + pretty + " off"
	}
	return domain.ProgressBarItem{
		Title:      title,
		TotalValue: c.bonus.RequiredSubtotal,
		Type:       domain.ProgressSegmentBonus,
	}
}

func (c bonusChain) conditionItem(context.Context) (*domain.ConditionsItem, error) {
	return &domain.ConditionsItem{
		Title: renderTemplate(c.messages.BonusTitle, map[string]string{
			"bonus_amount":    bonusPretty(c.bonus),
			"required_amount": formatCents(c.bonus.RequiredSubtotal),
		}),
		Subtitle: c.messages.BonusSubtitle,
		ImageURL: c.messages.BonusImage,
	}, nil
}

// bannerLookup resolves the threshold-dependent cart banner for a subtotal.
type bannerLookup func(ctx context.Context, subtotal int64) (*BannerInfo, error)

type giftChain struct {
	leftBorder    int64
	gift          domain.GiftPromotionSettings
	feeSubtotal   int64
	bonusSubtotal int64
	banner        bannerLookup
}

func (c giftChain) progressValue() progressValue {
	switch {
	case c.feeSubtotal < c.leftBorder:
		return progressValue{}
	case c.feeSubtotal < c.gift.MinSum:
		return progressValue{value: int64Ptr(c.feeSubtotal)}
	}
	return progressValue{value: int64Ptr(c.gift.MinSum), completed: true}
}

func (c giftChain) barItem() domain.ProgressBarItem {
	title := "Gift!"
	if c.bonusSubtotal < c.gift.MinSum {
		title = formatCents(c.gift.MinSum-c.bonusSubtotal) + " to get a Gift"
	}
	return domain.ProgressBarItem{
		Title:      title,
		TotalValue: c.gift.MinSum,
		Type:       domain.ProgressSegmentGift,
	}
}

func (c giftChain) conditionItem(ctx context.Context) (*domain.ConditionsItem, error) {
	banner, err := c.banner(ctx, c.bonusSubtotal)
	if err != nil {
		return nil, err
	}
	item := &domain.ConditionsItem{}
	if banner != nil {
		item.Title = banner.Title
		item.Subtitle = banner.Description
		item.ImageURL = banner.ImageURL
	}
	return item, nil
}

// chainComposer builds the single chained progress bar and the conditions list
// from the promotions active on the order.
type chainComposer struct {
	messages           config.MessageCatalog
	maxFreeSmallOrders int64
}

type chainInput struct {
	fee             *domain.Fee
	bonus           *domain.OrderBonus
	gift            *domain.GiftPromotionSettings
	feeSubtotal     int64
	bonusSubtotal   int64
	userOrdersCount int64
	banner          bannerLookup
}

// assemble orders the chains left to right. The fee milestone leads when the
// fee is actually charged; of the bonus and gift milestones, the one with the
// lower threshold comes first. Each chain's left border is the previous
// chain's progress value.
func (c chainComposer) assemble(in chainInput) []promotionChain {
	var chains []promotionChain

	leftBorder := func() int64 {
		if len(chains) == 0 {
			return 0
		}
		pv := chains[len(chains)-1].progressValue()
		if pv.value == nil {
			return 0
		}
		return *pv.value
	}

	if in.fee != nil && in.userOrdersCount >= c.maxFreeSmallOrders {
		chains = append(chains, feeChain{fee: *in.fee, feeSubtotal: in.feeSubtotal, messages: c.messages})
	}

	newBonus := func() bonusChain {
		return bonusChain{
			leftBorder:    leftBorder(),
			bonus:         *in.bonus,
			feeSubtotal:   in.feeSubtotal,
			bonusSubtotal: in.bonusSubtotal,
			messages:      c.messages,
		}
	}
	newGift := func() giftChain {
		return giftChain{
			leftBorder:    leftBorder(),
			gift:          *in.gift,
			feeSubtotal:   in.feeSubtotal,
			bonusSubtotal: in.bonusSubtotal,
			banner:        in.banner,
		}
	}

	switch {
	case in.bonus != nil && in.gift != nil:
		if in.bonus.RequiredSubtotal < in.gift.MinSum {
			chains = append(chains, newBonus())
			chains = append(chains, newGift())
		} else {
			chains = append(chains, newGift())
			chains = append(chains, newBonus())
		}
	case in.gift != nil:
		chains = append(chains, newGift())
	case in.bonus != nil:
		chains = append(chains, newBonus())
	}
	return chains
}

// compose renders the chained bar and conditions; the same bar serves the
// catalog and the cart views. Nil results mean no promotion is active.
func (c chainComposer) compose(ctx context.Context, in chainInput) (*domain.ProgressBar, *domain.OrderConditions, error) {
	chains := c.assemble(in)
	if len(chains) == 0 {
		return nil, nil, nil
	}

	values := make([]progressValue, 0, len(chains))
	items := make([]domain.ProgressBarItem, 0, len(chains))
	conditionItems := make([]domain.ConditionsItem, 0, len(chains))
	for _, chain := range chains {
		values = append(values, chain.progressValue())
		items = append(items, chain.barItem())
		item, err := chain.conditionItem(ctx)
		if err != nil {
			return nil, nil, err
		}
		if item != nil {
			conditionItems = append(conditionItems, *item)
		}
	}

	started := make([]progressValue, 0, len(values))
	for _, pv := range values {
		if pv.value != nil {
			started = append(started, pv)
		}
	}
	c.chainTitles(items, started)

	bar := &domain.ProgressBar{Items: items}
	for i := len(values) - 1; i >= 0; i-- {
		if values[i].value != nil {
			bar.CurrentValue = *values[i].value
			break
		}
	}
	conditions := &domain.OrderConditions{
		ImageURL: c.messages.ConditionsImage,
		Items:    conditionItems,
	}
	return bar, conditions, nil
}

// chainTitles rewrites the titles of completed milestones into one cumulative
// celebration, stopping at the first milestone still open. A full three-chain
// bar skips the celebratory prefix to keep the title short.
func (c chainComposer) chainTitles(items []domain.ProgressBarItem, values []progressValue) {
	title := ""
	for i := 0; i < len(items) && i < len(values); i++ {
		if !values[i].completed {
			break
		}
		if title == "" {
			if len(items) == 3 {
				title = items[i].Title
			} else {
				title = c.messages.ChainTitlePrefix + items[i].Title
			}
		} else {
			title = title + c.messages.ChainTitleSeparator + items[i].Title
		}
		items[i].Title = title
	}
}
