package models

// Unspecified is the sentinel value for any product field that could not be
// read from the page. It is deliberately distinct from the empty string so
// consumers can tell "field absent on this page" from "field present but
// blank".
const Unspecified = "unspecified"

// SalesRank is one category+rank tuple from the best-sellers section.
type SalesRank struct {
	Rank     string `json:"rank"`
	Category string `json:"category"`
}

// UnspecifiedRank returns a SalesRank with both members set to the sentinel.
func UnspecifiedRank() SalesRank {
	return SalesRank{Rank: Unspecified, Category: Unspecified}
}

// ExtractionResult is the normalized product record assembled once per
// request. It is immutable after assembly; the API layer only serializes it.
type ExtractionResult struct {
	Title               string   `json:"title"`
	Brand               string   `json:"brand"`
	ItemForm            string   `json:"item_form"`
	Price               string   `json:"price"`
	VisionPrice         string   `json:"vision_price"`
	VisionBrand         string   `json:"vision_brand"`
	Bullets             []string `json:"bullets"`
	Description         string   `json:"description"`
	DescriptionMarkdown string   `json:"description_markdown"`

	MainImage   string   `json:"main_image"`
	OtherImages []string `json:"other_images"`

	Rating           string    `json:"rating"`
	ReviewCount      string    `json:"review_count"`
	AvailabilityDate string    `json:"availability_date"`
	PrimaryRank      SalesRank `json:"primary_rank"`
	SecondaryRank    SalesRank `json:"secondary_rank"`
}

// NewExtractionResult returns a record with every field at the sentinel, so
// the extraction pipeline only ever overwrites fields it actually found.
func NewExtractionResult() *ExtractionResult {
	return &ExtractionResult{
		Title:               Unspecified,
		Brand:               Unspecified,
		ItemForm:            Unspecified,
		Price:               Unspecified,
		VisionPrice:         Unspecified,
		VisionBrand:         Unspecified,
		Bullets:             []string{},
		Description:         Unspecified,
		DescriptionMarkdown: Unspecified,
		MainImage:           Unspecified,
		OtherImages:         []string{},
		Rating:              Unspecified,
		ReviewCount:         Unspecified,
		AvailabilityDate:    Unspecified,
		PrimaryRank:         UnspecifiedRank(),
		SecondaryRank:       UnspecifiedRank(),
	}
}

// Diagnostics carries the recovery counters accumulated while resolving the
// page, so callers can see how hard the fetch had to work.
type Diagnostics struct {
	NavRetries        int    `json:"nav_retries"`
	BounceAttempts    int    `json:"bounce_attempts"`
	OverlayDismissals int    `json:"overlay_dismissals"`
	SolverAttempted   bool   `json:"solver_attempted"`
	SolverOK          bool   `json:"solver_ok"`
	PrefetchStatus    int    `json:"prefetch_status,omitempty"`
	PrefetchChallenge bool   `json:"prefetch_challenge,omitempty"`
	FinalState        string `json:"final_state"`
}
