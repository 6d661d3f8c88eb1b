package domain

// ProgressSegmentType tags a progress bar segment with the promotion it tracks.
type ProgressSegmentType string

const (
	// ProgressSegmentFee tracks progress toward waiving the small-order fee.
	ProgressSegmentFee ProgressSegmentType = "fee"
	// ProgressSegmentBonus tracks progress toward the loyalty bonus threshold.
	ProgressSegmentBonus ProgressSegmentType = "bonus"
	// ProgressSegmentGift tracks progress toward the gift threshold.
	ProgressSegmentGift ProgressSegmentType = "gift"
)

// ProgressBarItem is one labelled segment of a progress bar.
type ProgressBarItem struct {
	Title      string
	Subtitle   string
	TotalValue int64
	Type       ProgressSegmentType
}

// PlaceholderItem is a full-width caption shown instead of segments when every
// milestone is either untouched or complete.
type PlaceholderItem struct {
	Title string
}

// ProgressBar is the composed progress narrative for the catalog or cart view.
type ProgressBar struct {
	CurrentValue int64
	ImageURL     string
	Placeholders []PlaceholderItem
	Items        []ProgressBarItem
}

// ConditionsItem is one row of the order conditions list.
type ConditionsItem struct {
	Title    string
	Subtitle string
	ImageURL string
	Color    string
}

// OrderConditions is the list of condition messages accompanying the bars.
type OrderConditions struct {
	ImageURL string
	Items    []ConditionsItem
}
