package musicxml

import (
	"bytes"
	"context"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"

	"github.com/matzehuels/scoreframes/pkg/cache"
	"github.com/matzehuels/scoreframes/pkg/errors"
	"github.com/matzehuels/scoreframes/pkg/score"
)

// Renderer engraves a standalone MusicXML document to PNG bytes.
type Renderer interface {
	Render(ctx context.Context, doc []byte) ([]byte, error)
}

// Score is a partwise MusicXML score. Measures are counted and sliced
// positionally along the first part; every part is sliced the same way.
type Score struct {
	root     *node
	measures int
	hash     string
	renderer Renderer
}

// Open reads a .musicxml, .xml or compressed .mxl file.
func Open(path string, r Renderer) (*Score, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "read score %s", path)
	}
	if strings.EqualFold(filepath.Ext(path), ".mxl") {
		data, err = unpackMXL(data)
		if err != nil {
			return nil, err
		}
	}
	return Parse(data, r)
}

// Parse builds a Score from an uncompressed MusicXML document.
func Parse(data []byte, r Renderer) (*Score, error) {
	root, err := parseTree(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidScore, err, "parse MusicXML")
	}
	if root.name != "score-partwise" {
		return nil, errors.New(errors.ErrCodeInvalidScore, "unsupported root element <%s> (want score-partwise)", root.name)
	}

	parts := root.elements("part")
	if len(parts) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidScore, "score has no parts")
	}
	n := len(parts[0].elements("measure"))
	if n == 0 {
		return nil, errors.New(errors.ErrCodeInvalidScore, "first part has no measures")
	}

	return &Score{
		root:     root,
		measures: n,
		hash:     cache.Hash(data),
		renderer: r,
	}, nil
}

// MeasureCount returns the number of measures in the first part.
func (s *Score) MeasureCount() int { return s.measures }

// ID identifies the source document and renderer settings.
func (s *Score) ID() string {
	if k, ok := s.renderer.(interface{ Key() string }); ok {
		return s.hash + ":" + k.Key()
	}
	return s.hash
}

// Render extracts r into a standalone document and engraves it.
func (s *Score) Render(ctx context.Context, r score.MeasureRange) ([]byte, error) {
	if s.renderer == nil {
		return nil, errors.New(errors.ErrCodeRenderFailure, "no renderer configured")
	}
	doc, err := s.Extract(r)
	if err != nil {
		return nil, err
	}
	png, err := s.renderer.Render(ctx, doc)
	if err != nil {
		if errors.GetCode(err) != "" {
			return nil, err
		}
		return nil, errors.Wrap(errors.ErrCodeRenderFailure, err, "render measures %s", r)
	}
	return png, nil
}

// Extract returns a standalone MusicXML document holding only the measures
// in r. Attributes in effect at r.Start (divisions, key, time, clefs) are
// carried into the first extracted measure, and layout hints that force new
// systems or pages are dropped.
func (s *Score) Extract(r score.MeasureRange) ([]byte, error) {
	if r.Start < 1 || r.Count < 1 || r.End() > s.measures {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "measures %s outside score (1-%d)", r, s.measures)
	}

	out := &node{name: s.root.name, attrs: append([]xml.Attr(nil), s.root.attrs...)}
	for _, c := range s.root.children {
		if c.name != "part" {
			out.children = append(out.children, c.clone())
			continue
		}
		out.children = append(out.children, slicePart(c, r))
	}

	var buf bytes.Buffer
	if err := out.encode(&buf); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode measures %s", r)
	}
	return buf.Bytes(), nil
}

func slicePart(part *node, r score.MeasureRange) *node {
	out := &node{name: part.name, attrs: append([]xml.Attr(nil), part.attrs...)}
	carried := &node{name: "attributes"}
	idx := 0
	for _, c := range part.children {
		if c.name != "measure" {
			out.children = append(out.children, c.clone())
			continue
		}
		idx++
		switch {
		case idx < r.Start:
			for _, a := range c.elements("attributes") {
				mergeAttributes(carried, a)
			}
		case idx <= r.End():
			m := c.clone()
			m.children = dropPageHints(m.children)
			if idx == r.Start && len(carried.children) > 0 {
				m.children = append([]*node{carried}, m.children...)
			}
			out.children = append(out.children, m)
		}
	}
	return out
}

// mergeAttributes folds the children of src into dst. A later child replaces
// an earlier one with the same name and number attribute (per-staff clefs).
func mergeAttributes(dst, src *node) {
	for _, c := range src.children {
		if c.isText() {
			continue
		}
		replaced := false
		for i, d := range dst.children {
			if d.name == c.name && d.attr("number") == c.attr("number") {
				dst.children[i] = c.clone()
				replaced = true
				break
			}
		}
		if !replaced {
			dst.children = append(dst.children, c.clone())
		}
	}
}

func dropPageHints(children []*node) []*node {
	out := children[:0]
	for _, c := range children {
		if c.name == "print" && (c.attr("new-page") == "yes" || c.attr("new-system") == "yes") {
			continue
		}
		out = append(out, c)
	}
	return out
}

var _ score.Score = (*Score)(nil)
