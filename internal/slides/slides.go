package slides

import (
	"fmt"

	"github.com/yourorg/presentation-api/internal/model"
	"github.com/yourorg/presentation-api/internal/money"
)

// A Slide is one typed variant in the deck. The deck always contains exactly
// five slides in fixed order: title, overview, comparables, narrative, call to
// action. There is no intra-section pagination.
type Slide interface {
	Kind() string
}

// DefaultCallToAction is used when the narrative supplies none. A deliberate
// fallback, not an error.
const DefaultCallToAction = "Contact us to learn more about this property!"

// narrativePlaceholder fills the narrative slide when no narrative was
// supplied, keeping the deck shape fixed.
const narrativePlaceholder = "Marketing content has not been generated for this property."

const maxComparableRows = 5

type TitleSlide struct {
	Heading  string
	Address  string
	CityLine string
}

func (TitleSlide) Kind() string { return "title" }

type OverviewSlide struct {
	Title string
	Rows  [][2]string
}

func (OverviewSlide) Kind() string { return "overview" }

type ComparablesSlide struct {
	Title    string
	Columns  []string
	Rows     [][]string
	Caption  string // set when more comparables exist than shown
	Summary  string // market average line, empty without comparables
	Fallback string // set when there are no comparables at all
}

func (ComparablesSlide) Kind() string { return "comparables" }

type NarrativeSlide struct {
	Title          string
	Summary        string
	KeyFeatures    []string
	TargetAudience string
}

func (NarrativeSlide) Kind() string { return "narrative" }

type CallToActionSlide struct {
	Message string
	Brand   string
}

func (CallToActionSlide) Kind() string { return "cta" }

// Compose lays the model out as a slide deck. It is independent of the
// pagination engine; both read the same cached model statistics, so numeric
// facts agree between the two output formats.
func Compose(m *model.PresentationModel, brand string) []Slide {
	return []Slide{
		titleSlide(m),
		overviewSlide(m),
		comparablesSlide(m),
		narrativeSlide(m),
		ctaSlide(m, brand),
	}
}

func titleSlide(m *model.PresentationModel) TitleSlide {
	s := TitleSlide{Heading: "Property Presentation", Address: m.Property.Address}
	if m.Property.City != "" {
		s.CityLine = fmt.Sprintf("%s, %s %s", m.Property.City, m.Property.State, m.Property.Zip)
	}
	return s
}

func overviewSlide(m *model.PresentationModel) OverviewSlide {
	p := m.Property
	s := OverviewSlide{Title: "Property Overview"}
	add := func(label, value string) { s.Rows = append(s.Rows, [2]string{label, value}) }

	if p.PropertyType != "" {
		add("Property Type", p.PropertyType)
	}
	if p.Bedrooms > 0 {
		add("Bedrooms", fmt.Sprintf("%d", p.Bedrooms))
	}
	if p.Bathrooms > 0 {
		add("Bathrooms", fmt.Sprintf("%g", p.Bathrooms))
	}
	if p.SquareFootage > 0 {
		add("Square Footage", money.Int(p.SquareFootage)+" sqft")
	}
	if p.LotSize > 0 {
		add("Lot Size", money.Int(p.LotSize)+" sqft")
	}
	if p.YearBuilt > 0 {
		add("Year Built", fmt.Sprintf("%d", p.YearBuilt))
	}
	add("Estimated Value", money.Dollars(p.EstimatedValue))
	if p.Equity != nil {
		add("Equity", money.Dollars(*p.Equity))
	}
	return s
}

func comparablesSlide(m *model.PresentationModel) ComparablesSlide {
	s := ComparablesSlide{Title: "Market Comparables"}
	if !m.HasComparables() {
		s.Fallback = "No comparable properties available at this time."
		return s
	}
	s.Columns = []string{"Address", "Price", "Beds/Baths", "Sqft", "Distance"}
	shown := len(m.Comparables)
	if shown > maxComparableRows {
		shown = maxComparableRows
		s.Caption = fmt.Sprintf("Showing %d of %d comparables", shown, len(m.Comparables))
	}
	for _, c := range m.Comparables[:shown] {
		s.Rows = append(s.Rows, []string{
			c.Address,
			money.Dollars(c.Price),
			fmt.Sprintf("%d/%g", c.Bedrooms, c.Bathrooms),
			money.Int(c.SquareFootage),
			fmt.Sprintf("%.1f mi", c.DistanceMiles),
		})
	}
	s.Summary = "Market Average: " + money.Dollars(*m.AveragePrice)
	return s
}

func narrativeSlide(m *model.PresentationModel) NarrativeSlide {
	s := NarrativeSlide{Title: "Marketing Overview"}
	if m.Narrative == nil {
		s.Summary = narrativePlaceholder
		return s
	}
	s.Summary = m.Narrative.MarketingSummary
	if s.Summary == "" {
		s.Summary = narrativePlaceholder
	}
	s.KeyFeatures = append([]string(nil), m.Narrative.KeyFeatures...)
	s.TargetAudience = m.Narrative.TargetAudience
	return s
}

func ctaSlide(m *model.PresentationModel, brand string) CallToActionSlide {
	msg := DefaultCallToAction
	if m.Narrative != nil && m.Narrative.CallToAction != "" {
		msg = m.Narrative.CallToAction
	}
	return CallToActionSlide{Message: msg, Brand: brand}
}
