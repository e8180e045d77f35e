package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"

	"github.com/yourorg/presentation-api/internal/model"
	"github.com/yourorg/presentation-api/internal/paginate"
	"github.com/yourorg/presentation-api/internal/slides"
)

// Artifact is an immutable rendered payload. Encoding into a final document or
// presentation file format is the rendering backend's concern; artifacts carry
// the fully laid-out content in a backend-neutral form.
type Artifact struct {
	Payload  []byte
	MIME     string
	Filename string
}

// RenderError is an internal layout or encoding failure. Fatal for the
// request; quota must never be committed after one.
type RenderError struct {
	Stage string
	Err   error
}

func (e *RenderError) Error() string { return fmt.Sprintf("render %s: %v", e.Stage, e.Err) }
func (e *RenderError) Unwrap() error { return e.Err }

// Document paginates the model and flattens the pages into a fixed-canvas
// plain-text encoding, one form feed between pages.
func Document(m *model.PresentationModel, geom paginate.Geometry, brand string) (*Artifact, error) {
	pages, err := paginate.Paginate(m, geom, brand)
	if err != nil {
		return nil, &RenderError{Stage: "paginate", Err: err}
	}
	var buf bytes.Buffer
	for i, p := range pages {
		if i > 0 {
			buf.WriteString("\f\n")
		}
		flattenPage(&buf, p, geom)
	}
	return &Artifact{
		Payload:  buf.Bytes(),
		MIME:     "text/plain; charset=utf-8",
		Filename: Filename(m.Property.Address, "txt"),
	}, nil
}

// Slides composes the deck and encodes it as JSON, one envelope per slide with
// a kind discriminator.
func Slides(m *model.PresentationModel, brand string) (*Artifact, error) {
	deck := slides.Compose(m, brand)
	type envelope struct {
		Kind string       `json:"kind"`
		Data slides.Slide `json:"data"`
	}
	out := make([]envelope, 0, len(deck))
	for _, s := range deck {
		out = append(out, envelope{Kind: s.Kind(), Data: s})
	}
	payload, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, &RenderError{Stage: "slides", Err: err}
	}
	return &Artifact{
		Payload:  payload,
		MIME:     "application/json",
		Filename: Filename(m.Property.Address, "slides.json"),
	}, nil
}

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]`)

// Filename derives a safe suggested filename from the property address,
// mirroring the product's download naming.
func Filename(address, ext string) string {
	base := nonAlnum.ReplaceAllString(address, "_")
	if base == "" {
		base = "property"
	}
	return base + "_presentation." + ext
}

// flattenPage paints positioned blocks onto a PageHeight x PageWidth character
// grid. Blocks never overlap on a line; later blocks win if they do.
func flattenPage(buf *bytes.Buffer, p paginate.Page, geom paginate.Geometry) {
	rows := make(map[int][]paginate.Block)
	for _, b := range p.Blocks {
		rows[b.Y] = append(rows[b.Y], b)
	}
	for y := 0; y < geom.PageHeight; y++ {
		line := make([]rune, 0, geom.PageWidth)
		blocks := rows[y]
		sort.Slice(blocks, func(i, j int) bool { return blocks[i].X < blocks[j].X })
		for _, b := range blocks {
			for len(line) < b.X {
				line = append(line, ' ')
			}
			line = append(line, []rune(b.Text)...)
		}
		buf.WriteString(string(line))
		buf.WriteByte('\n')
	}
}
