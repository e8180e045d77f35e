package paginate

import (
	"fmt"
	"strings"

	"github.com/yourorg/presentation-api/internal/model"
	"github.com/yourorg/presentation-api/internal/money"
)

// Geometry describes the fixed page canvas. Width is measured in character
// columns and height in text lines, which keeps layout deterministic and
// independent of whatever backend eventually paints the pages.
type Geometry struct {
	PageWidth  int
	PageHeight int
	Margin     int
}

// Letter is the default geometry, proportioned like a US letter page.
func Letter() Geometry { return Geometry{PageWidth: 90, PageHeight: 54, Margin: 4} }

type Kind string

const (
	KindHeader Kind = "header"
	KindText   Kind = "text"
	KindFooter Kind = "footer"
)

// Block is one positioned run of text on a page.
type Block struct {
	Kind Kind
	X    int
	Y    int
	Text string
}

// Page is a fixed-size canvas of positioned blocks.
type Page struct {
	Blocks []Block
}

const noComparablesText = "No comparable properties available at this time."

// Paginate lays the model out as a sequence of pages. Output is deterministic
// for identical model and geometry. Section order is fixed: cover and property
// overview share the first page; comparables, narrative and user notes each
// begin on a fresh page.
func Paginate(m *model.PresentationModel, geom Geometry, brand string) ([]Page, error) {
	if geom.PageWidth-2*geom.Margin < 10 || geom.PageHeight-2*geom.Margin < 4 {
		return nil, fmt.Errorf("page geometry too small: %dx%d margin %d", geom.PageWidth, geom.PageHeight, geom.Margin)
	}

	e := &engine{geom: geom}
	e.newPage()

	e.cover(m)
	e.overview(m)

	e.newPage()
	e.comparables(m)

	if m.Narrative != nil {
		e.newPage()
		e.narrative(m.Narrative)
	}
	if m.UserNotes != "" {
		e.newPage()
		e.header("Additional Notes")
		e.paragraph(m.UserNotes, 0)
	}

	// Footer is stamped last; the total is unknown while earlier pages lay out.
	total := len(e.pages)
	for i := range e.pages {
		text := fmt.Sprintf("%s | Page %d of %d", brand, i+1, total)
		e.pages[i].Blocks = append(e.pages[i].Blocks, Block{
			Kind: KindFooter,
			X:    centered(geom.PageWidth, text),
			Y:    geom.PageHeight - 2,
			Text: text,
		})
	}
	return e.pages, nil
}

type engine struct {
	geom  Geometry
	pages []Page
	y     int
}

// limit is the first line index past the writable area.
func (e *engine) limit() int { return e.geom.PageHeight - e.geom.Margin }

func (e *engine) width() int { return e.geom.PageWidth - 2*e.geom.Margin }

func (e *engine) newPage() {
	e.pages = append(e.pages, Page{})
	e.y = e.geom.Margin
}

func (e *engine) put(kind Kind, x int, text string) {
	p := &e.pages[len(e.pages)-1]
	p.Blocks = append(p.Blocks, Block{Kind: kind, X: x, Y: e.y, Text: text})
	e.y++
}

// line writes one already-wrapped line, breaking the page first if it would
// not fit.
func (e *engine) line(text string, indent int) {
	if e.y >= e.limit() {
		e.newPage()
	}
	e.put(KindText, e.geom.Margin+indent, text)
}

// header writes a section header. A header is never the last text on a page:
// unless the header, its blank line and at least one content line all fit,
// break first.
func (e *engine) header(title string) {
	if e.y+3 > e.limit() {
		e.newPage()
	}
	e.put(KindHeader, e.geom.Margin, title)
	e.blank()
}

func (e *engine) centeredLine(kind Kind, text string) {
	if e.y >= e.limit() {
		e.newPage()
	}
	e.put(kind, centered(e.geom.PageWidth, text), text)
}

// blank advances the cursor without emitting a block. It never forces a page
// break; the next real write does.
func (e *engine) blank() {
	if e.y < e.limit() {
		e.y++
	}
}

// paragraph wraps text to the usable width with whole-word wrapping and writes
// each resulting line. Wrapped lines are never split across pages.
func (e *engine) paragraph(text string, indent int) {
	for _, ln := range Wrap(text, e.width()-indent) {
		e.line(ln, indent)
	}
}

func (e *engine) cover(m *model.PresentationModel) {
	e.blank()
	e.centeredLine(KindHeader, "Property Presentation")
	e.blank()
	e.centeredLine(KindText, m.Property.Address)
	if m.Property.City != "" {
		e.centeredLine(KindText, fmt.Sprintf("%s, %s %s", m.Property.City, m.Property.State, m.Property.Zip))
	}
	e.blank()
	e.blank()
}

func (e *engine) overview(m *model.PresentationModel) {
	p := m.Property
	e.header("Property Overview")
	if p.PropertyType != "" {
		e.line("Property Type: "+p.PropertyType, 0)
	}
	if p.Bedrooms > 0 || p.Bathrooms > 0 {
		e.line(fmt.Sprintf("Bedrooms: %d | Bathrooms: %g", p.Bedrooms, p.Bathrooms), 0)
	}
	if p.SquareFootage > 0 {
		e.line(fmt.Sprintf("Square Footage: %s sqft", money.Int(p.SquareFootage)), 0)
	}
	if p.LotSize > 0 {
		e.line(fmt.Sprintf("Lot Size: %s sqft", money.Int(p.LotSize)), 0)
	}
	if p.YearBuilt > 0 {
		e.line(fmt.Sprintf("Year Built: %d", p.YearBuilt), 0)
	}
	e.line("Estimated Value: "+money.Dollars(p.EstimatedValue), 0)
	if p.LoanAmount != nil {
		e.line("Loan Amount: "+money.Dollars(*p.LoanAmount), 0)
	}
	if p.Equity != nil {
		e.line("Equity: "+money.Dollars(*p.Equity), 0)
	}
	if p.MonthlyPayment != nil {
		e.line("Monthly Payment: "+money.Dollars(*p.MonthlyPayment), 0)
	}
}

func (e *engine) comparables(m *model.PresentationModel) {
	e.header("Market Comparables")
	if !m.HasComparables() {
		e.line(noComparablesText, 0)
		return
	}
	for i, c := range m.Comparables {
		e.line(fmt.Sprintf("%d. %s", i+1, c.Address), 0)
		e.line(fmt.Sprintf("Price: %s | %dbd/%gba | %s sqft",
			money.Dollars(c.Price), c.Bedrooms, c.Bathrooms, money.Int(c.SquareFootage)), 3)
		e.line(fmt.Sprintf("Sold: %s | %.1f miles away | %s/sqft",
			c.SoldDate, c.DistanceMiles, money.Dollars(c.PricePerSquareFoot)), 3)
		e.blank()
	}
	e.line("Market Summary:", 0)
	e.line("Average Sale Price: "+money.Dollars(*m.AveragePrice), 0)
	e.line("Average Price/sqft: "+money.DollarsCents(*m.AveragePricePerSqft), 0)
}

func (e *engine) narrative(n *model.NarrativeBlock) {
	e.header("Marketing Overview")
	if n.MarketingSummary != "" {
		e.line("Marketing Summary:", 0)
		e.paragraph(n.MarketingSummary, 0)
		e.blank()
	}
	if len(n.KeyFeatures) > 0 {
		e.line("Key Features:", 0)
		for _, f := range n.KeyFeatures {
			e.paragraph("- "+f, 2)
		}
		e.blank()
	}
	if n.TargetAudience != "" {
		e.line("Target Audience:", 0)
		e.paragraph(n.TargetAudience, 0)
		e.blank()
	}
	if n.CallToAction != "" {
		e.line("Call to Action:", 0)
		e.paragraph(n.CallToAction, 0)
	}
}

// Wrap breaks text into lines of at most width characters using whole-word
// wrapping. Words longer than the width get a line of their own rather than a
// mid-word break. Explicit newlines start new lines.
func Wrap(text string, width int) []string {
	var out []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			continue
		}
		cur := words[0]
		for _, w := range words[1:] {
			if len(cur)+1+len(w) <= width {
				cur += " " + w
				continue
			}
			out = append(out, cur)
			cur = w
		}
		out = append(out, cur)
	}
	return out
}

func centered(pageWidth int, text string) int {
	x := (pageWidth - len(text)) / 2
	if x < 0 {
		return 0
	}
	return x
}
