package services

import (
	domain "github.com/dashmart/promotions/internal/domain"
	"github.com/dashmart/promotions/internal/platform/config"
)

// barView selects which of the two client surfaces a bar is rendered for. The
// catalog view keeps encouraging copy after a milestone passes; the cart view
// collapses to nothing once the fee is avoided.
type barView int

const (
	barViewCatalog barView = iota
	barViewCart
)

// barTemplates is one resolved message set for the combined fee+bonus bar.
// The standard bonus and the happy-hour elevation share the decision table and
// differ only in copy.
type barTemplates struct {
	Empty config.BarMessage
	On    config.BarMessage

	FeeTitle    string
	FeeSubtitle string

	// BonusPlainTitle labels the bonus segment while the fee milestone is
	// still open; BonusBelowTitle carries the remaining/bonus tokens.
	BonusPlainTitle string
	BonusBelowTitle string
	BonusSubtitle   string

	DoubleFirstTitle  string
	DoubleSecondTitle string
	CartFirstTitle    string
	CartSecondTitle   string
}

func bonusTemplates(m config.MessageCatalog) barTemplates {
	return barTemplates{
		Empty:             m.FeeWithBonusEmpty,
		On:                m.FeeWithBonusOn,
		FeeTitle:          m.FeeWithBonusFirst.FirstTitle,
		FeeSubtitle:       m.FeeWithBonusFirst.FirstSubtitle,
		BonusPlainTitle:   m.FeeWithBonusFirst.SecondTitle,
		BonusBelowTitle:   m.FeeWithBonusSecond.SecondTitle,
		BonusSubtitle:     m.FeeWithBonusFirst.SecondSubtitle,
		DoubleFirstTitle:  m.FeeWithBonusDouble.FirstTitle,
		DoubleSecondTitle: m.FeeWithBonusDouble.SecondTitle,
		CartFirstTitle:    m.FeeWithBonusSecond.FirstTitle,
		CartSecondTitle:   m.FeeWithBonusSecond.SecondTitle,
	}
}

func happyHourTemplates(m config.MessageCatalog) barTemplates {
	return barTemplates{
		Empty:             m.HappyHoursEmpty,
		On:                m.HappyHoursOn,
		FeeTitle:          m.HappyHoursFee.FirstTitle,
		FeeSubtitle:       m.HappyHoursFee.FirstSubtitle,
		BonusPlainTitle:   m.HappyHoursFee.SecondTitle,
		BonusBelowTitle:   m.HappyHoursNoBonus.FirstTitle,
		BonusSubtitle:     m.HappyHoursNoBonus.FirstSubtitle,
		DoubleFirstTitle:  m.HappyHoursNoFeeCatalog.FirstTitle,
		DoubleSecondTitle: m.HappyHoursNoFeeCatalog.SecondTitle,
		CartFirstTitle:    m.HappyHoursNoFeeCart.FirstTitle,
		CartSecondTitle:   m.HappyHoursNoFeeCart.SecondTitle,
	}
}

// barComposer renders the pre-chain progress bars and conditions list.
type barComposer struct {
	messages           config.MessageCatalog
	maxFreeSmallOrders int64
}

// CatalogBar routes to the fee-only, bonus-only, or combined bar for the
// catalog view. Elevated (happy-hour) bonuses swap in the happy-hour copy.
func (c barComposer) CatalogBar(fee *domain.Fee, bonus *domain.OrderBonus, feeSubtotal, bonusSubtotal, userOrdersCount int64) *domain.ProgressBar {
	return c.bar(barViewCatalog, fee, bonus, feeSubtotal, bonusSubtotal, userOrdersCount)
}

// CartBar is CatalogBar's counterpart for the cart view.
func (c barComposer) CartBar(fee *domain.Fee, bonus *domain.OrderBonus, feeSubtotal, bonusSubtotal, userOrdersCount int64) *domain.ProgressBar {
	return c.bar(barViewCart, fee, bonus, feeSubtotal, bonusSubtotal, userOrdersCount)
}

func (c barComposer) bar(view barView, fee *domain.Fee, bonus *domain.OrderBonus, feeSubtotal, bonusSubtotal, userOrdersCount int64) *domain.ProgressBar {
	switch {
	case bonus == nil && fee != nil:
		return c.feeBar(view, *fee, feeSubtotal)
	case bonus != nil && fee == nil:
		return c.bonusBar(c.templatesFor(*bonus), *bonus, bonusSubtotal)
	case bonus != nil && fee != nil:
		return c.combinedBar(view, c.templatesFor(*bonus), *fee, *bonus, feeSubtotal, bonusSubtotal, userOrdersCount)
	}
	return nil
}

func (c barComposer) templatesFor(bonus domain.OrderBonus) barTemplates {
	if bonus.Increased {
		return happyHourTemplates(c.messages)
	}
	return bonusTemplates(c.messages)
}

// feeBar tracks only the small-order fee. The cart view drops the bar once the
// fee threshold is reached.
func (c barComposer) feeBar(view barView, fee domain.Fee, subtotal int64) *domain.ProgressBar {
	if fee.Value == 0 || subtotal == 0 {
		return nil
	}
	if subtotal < fee.FreeAfterSubtotal {
		return &domain.ProgressBar{
			CurrentValue: subtotal,
			ImageURL:     c.messages.ProgressBarImageInfo,
			Placeholders: []domain.PlaceholderItem{},
			Items: []domain.ProgressBarItem{{
				Title: renderTemplate(c.messages.FeeNoBonus.FirstTitle, map[string]string{
					"remaining_amount": formatCents(fee.FreeAfterSubtotal - subtotal),
				}),
				Subtitle:   c.messages.FeeNoBonus.FirstSubtitle,
				TotalValue: fee.FreeAfterSubtotal,
				Type:       domain.ProgressSegmentFee,
			}},
		}
	}
	if view == barViewCart {
		return nil
	}
	return &domain.ProgressBar{
		CurrentValue: subtotal,
		ImageURL:     c.messages.ProgressBarImageInfo,
		Placeholders: renderPlaceholders(c.messages.FeeNoBonusPassed, nil),
		Items:        []domain.ProgressBarItem{},
	}
}

// bonusBar tracks only the loyalty bonus; the catalog and cart views render it
// identically.
func (c barComposer) bonusBar(t barTemplates, bonus domain.OrderBonus, subtotal int64) *domain.ProgressBar {
	pretty := bonusPretty(bonus)
	switch {
	case subtotal == 0:
		return &domain.ProgressBar{
			CurrentValue: subtotal,
			ImageURL:     c.messages.ProgressBarImageBonus,
			Placeholders: renderPlaceholders(t.Empty, map[string]string{
				"remaining_amount": formatCents(bonus.RequiredSubtotal - subtotal),
				"bonus_amount":     pretty,
			}),
			Items: []domain.ProgressBarItem{},
		}
	case subtotal < bonus.RequiredSubtotal:
		return &domain.ProgressBar{
			CurrentValue: subtotal,
			ImageURL:     c.messages.ProgressBarImageInfo,
			Placeholders: []domain.PlaceholderItem{},
			Items: []domain.ProgressBarItem{{
				Title: renderTemplate(t.BonusBelowTitle, map[string]string{
					"remaining_amount": formatCents(bonus.RequiredSubtotal - subtotal),
					"bonus_amount":     pretty,
				}),
				Subtitle:   t.BonusSubtitle,
				TotalValue: bonus.RequiredSubtotal,
				Type:       domain.ProgressSegmentBonus,
			}},
		}
	default:
		return &domain.ProgressBar{
			CurrentValue: subtotal,
			ImageURL:     c.messages.ProgressBarImageInfo,
			Placeholders: renderPlaceholders(t.On, map[string]string{"bonus_amount": pretty}),
			Items:        []domain.ProgressBarItem{},
		}
	}
}

// combinedBar tracks the fee and the bonus on one bar. Users still inside the
// free-order grace period see only the bonus track.
func (c barComposer) combinedBar(view barView, t barTemplates, fee domain.Fee, bonus domain.OrderBonus, feeSubtotal, bonusSubtotal, userOrdersCount int64) *domain.ProgressBar {
	pretty := bonusPretty(bonus)

	if userOrdersCount < c.maxFreeSmallOrders {
		return c.bonusBar(t, bonus, bonusSubtotal)
	}

	switch {
	case feeSubtotal == 0:
		return &domain.ProgressBar{
			CurrentValue: feeSubtotal,
			ImageURL:     c.messages.ProgressBarImageBonus,
			Placeholders: renderPlaceholders(t.Empty, map[string]string{
				"remaining_amount": formatCents(bonus.RequiredSubtotal - bonusSubtotal),
				"bonus_amount":     pretty,
			}),
			Items: []domain.ProgressBarItem{},
		}
	case feeSubtotal < fee.FreeAfterSubtotal:
		return &domain.ProgressBar{
			CurrentValue: feeSubtotal,
			ImageURL:     c.messages.ProgressBarImageBonus,
			Placeholders: []domain.PlaceholderItem{},
			Items: []domain.ProgressBarItem{
				{
					Title: renderTemplate(t.FeeTitle, map[string]string{
						"remaining_amount": formatCents(fee.FreeAfterSubtotal - feeSubtotal),
					}),
					Subtitle:   t.FeeSubtitle,
					TotalValue: fee.FreeAfterSubtotal,
					Type:       domain.ProgressSegmentFee,
				},
				{
					Title:      t.BonusPlainTitle,
					Subtitle:   t.BonusSubtitle,
					TotalValue: bonus.RequiredSubtotal,
					Type:       domain.ProgressSegmentBonus,
				},
			},
		}
	case bonusSubtotal < bonus.RequiredSubtotal:
		firstTitle := t.DoubleFirstTitle
		secondTitle := t.DoubleSecondTitle
		if view == barViewCart {
			firstTitle = t.CartFirstTitle
			secondTitle = t.CartSecondTitle
		}
		return &domain.ProgressBar{
			CurrentValue: interpolateProgress(fee.FreeAfterSubtotal, bonus.RequiredSubtotal, feeSubtotal, bonusSubtotal),
			ImageURL:     c.messages.ProgressBarImageInfo,
			Placeholders: []domain.PlaceholderItem{},
			Items: []domain.ProgressBarItem{
				{
					Title:      firstTitle,
					Subtitle:   t.FeeSubtitle,
					TotalValue: fee.FreeAfterSubtotal,
					Type:       domain.ProgressSegmentFee,
				},
				{
					Title: renderTemplate(secondTitle, map[string]string{
						"remaining_amount": formatCents(bonus.RequiredSubtotal - bonusSubtotal),
						"bonus_amount":     pretty,
					}),
					Subtitle:   t.BonusSubtitle,
					TotalValue: bonus.RequiredSubtotal,
					Type:       domain.ProgressSegmentBonus,
				},
			},
		}
	default:
		current := feeSubtotal
		if bonusSubtotal > current {
			current = bonusSubtotal
		}
		return &domain.ProgressBar{
			CurrentValue: current,
			ImageURL:     c.messages.ProgressBarImageInfo,
			Placeholders: renderPlaceholders(t.On, map[string]string{"bonus_amount": pretty}),
			Items:        []domain.ProgressBarItem{},
		}
	}
}

// interpolateProgress projects the bonus progress onto the stretch of the bar
// between the fee threshold and the bonus threshold. Equal subtotals mean no
// tobacco items inflate the fee track, so the raw value is already on scale.
func interpolateProgress(leftBorder, required, feeSubtotal, bonusSubtotal int64) int64 {
	if feeSubtotal == bonusSubtotal {
		return bonusSubtotal
	}
	if required == 0 {
		return leftBorder
	}
	return leftBorder + (required-leftBorder)*bonusSubtotal/required
}

// OrderConditions renders the static conditions list shown alongside the bars.
func (c barComposer) OrderConditions(fee *domain.Fee, bonus *domain.OrderBonus, userOrdersCount int64) *domain.OrderConditions {
	feeCharged := fee != nil && userOrdersCount >= c.maxFreeSmallOrders

	items := make([]domain.ConditionsItem, 0, 2)
	if feeCharged {
		items = append(items, c.feeConditionsItem(*fee))
	}
	if bonus != nil {
		items = append(items, c.bonusConditionsItem(*bonus))
	}
	if len(items) == 0 {
		return nil
	}
	return &domain.OrderConditions{
		ImageURL: c.messages.ConditionsImage,
		Items:    items,
	}
}

func (c barComposer) feeConditionsItem(fee domain.Fee) domain.ConditionsItem {
	return domain.ConditionsItem{
		Title: renderTemplate(c.messages.SmallOrderFeeTitle, map[string]string{
			"required_amount": formatCents(fee.FreeAfterSubtotal),
		}),
		Subtitle: renderTemplate(c.messages.SmallOrderFeeSubtitle, map[string]string{
			"fee_amount": formatCents(fee.Value),
		}),
		ImageURL: c.messages.DeliveryImage,
	}
}

func (c barComposer) bonusConditionsItem(bonus domain.OrderBonus) domain.ConditionsItem {
	return domain.ConditionsItem{
		Title: renderTemplate(c.messages.BonusTitle, map[string]string{
			"bonus_amount":    bonusPretty(bonus),
			"required_amount": formatCents(bonus.RequiredSubtotal),
		}),
		Subtitle: c.messages.BonusSubtitle,
		ImageURL: c.messages.BonusImage,
	}
}
