package model

import (
	"time"
)

// PropertyRecord is the subject property as supplied by the caller.
// Treated as immutable once handed to Build.
type PropertyRecord struct {
	Address        string   `json:"address"`
	City           string   `json:"city"`
	State          string   `json:"state"`
	Zip            string   `json:"zip"`
	PropertyType   string   `json:"property_type"`
	Bedrooms       int      `json:"bedrooms"`
	Bathrooms      float64  `json:"bathrooms"`
	SquareFootage  int      `json:"square_footage"`
	LotSize        int      `json:"lot_size"`
	YearBuilt      int      `json:"year_built"`
	EstimatedValue float64  `json:"estimated_value"`
	LoanAmount     *float64 `json:"loan_amount,omitempty"`
	Equity         *float64 `json:"equity,omitempty"`
	MonthlyPayment *float64 `json:"monthly_payment,omitempty"`
}

// ComparableRecord is one recently sold property used as a market reference.
// The caller supplies relevance order; it is preserved, never re-sorted here.
type ComparableRecord struct {
	Address            string  `json:"address"`
	Price              float64 `json:"price"`
	Bedrooms           int     `json:"bedrooms"`
	Bathrooms          float64 `json:"bathrooms"`
	SquareFootage      int     `json:"square_footage"`
	SoldDate           string  `json:"sold_date"`
	DistanceMiles      float64 `json:"distance_miles"`
	PricePerSquareFoot float64 `json:"price_per_sqft"`
}

// NarrativeBlock holds optional marketing copy. Any field may be empty.
type NarrativeBlock struct {
	MarketingSummary string   `json:"marketing_summary,omitempty"`
	KeyFeatures      []string `json:"key_features,omitempty"`
	TargetAudience   string   `json:"target_audience,omitempty"`
	CallToAction     string   `json:"call_to_action,omitempty"`
}

// PresentationModel is the normalized read-only aggregate that both renderers
// consume. Derived statistics are computed once here so the paginated document
// and the slide deck always agree on the same numbers.
type PresentationModel struct {
	Property    PropertyRecord
	Comparables []ComparableRecord
	Narrative   *NarrativeBlock
	UserNotes   string
	GeneratedAt time.Time

	// nil when there are no comparables; renderers must fall back to the
	// "no comparables available" treatment rather than divide by zero.
	AveragePrice        *float64
	AveragePricePerSqft *float64
}

// HasComparables reports whether the model carries at least one comparable.
func (m *PresentationModel) HasComparables() bool { return len(m.Comparables) > 0 }

// ValidationError reports malformed or missing builder input. It is never
// retried; the caller corrects the input and resubmits.
type ValidationError struct {
	Reason string
	Field  string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Reason + ": " + e.Field
}

// Validate checks the required property fields. Callers that do expensive work
// before building (provider fetches) run it first so malformed input fails
// without any of that work.
func Validate(property PropertyRecord) error {
	if property.Address == "" {
		return &ValidationError{Reason: "missing_required_field", Field: "address"}
	}
	if property.EstimatedValue <= 0 {
		return &ValidationError{Reason: "missing_required_field", Field: "estimated_value"}
	}
	return nil
}

// Build normalizes raw inputs into a PresentationModel. It performs no I/O and
// is a pure function of its arguments.
func Build(property PropertyRecord, comparables []ComparableRecord, narrative *NarrativeBlock, userNotes string) (*PresentationModel, error) {
	if err := Validate(property); err != nil {
		return nil, err
	}

	m := &PresentationModel{
		Property:    property,
		UserNotes:   userNotes,
		GeneratedAt: time.Now().UTC(),
	}
	if len(comparables) > 0 {
		m.Comparables = append([]ComparableRecord(nil), comparables...)
	}
	if narrative != nil {
		n := *narrative
		n.KeyFeatures = append([]string(nil), narrative.KeyFeatures...)
		m.Narrative = &n
	}

	if len(m.Comparables) > 0 {
		var priceSum, ppsfSum float64
		for _, c := range m.Comparables {
			priceSum += c.Price
			ppsfSum += c.PricePerSquareFoot
		}
		n := float64(len(m.Comparables))
		avgPrice := priceSum / n
		avgPpsf := ppsfSum / n
		m.AveragePrice = &avgPrice
		m.AveragePricePerSqft = &avgPpsf
	}

	return m, nil
}
