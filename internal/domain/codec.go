package domain

import (
	"encoding/json"
	"fmt"
)

// wireObject is the flat document shape stored remotely and carried in sync
// events. Variant fields are omitted when they do not apply to the type.
type wireObject struct {
	ID        string     `json:"id"`
	Type      ObjectType `json:"type"`
	X         float64    `json:"x"`
	Y         float64    `json:"y"`
	Width     float64    `json:"width"`
	Height    float64    `json:"height"`
	Rotation  float64    `json:"rotation,omitempty"`
	CreatedBy string     `json:"createdBy"`
	CreatedAt int64      `json:"createdAt"`
	UpdatedAt int64      `json:"updatedAt"`

	Text        *string             `json:"text,omitempty"`
	Color       StickyColor         `json:"color,omitempty"`
	Reactions   map[string][]string `json:"reactions,omitempty"`
	Fill        *string             `json:"fill,omitempty"`
	Stroke      *string             `json:"stroke,omitempty"`
	StrokeWidth *float64            `json:"strokeWidth,omitempty"`
	X2          *float64            `json:"x2,omitempty"`
	Y2          *float64            `json:"y2,omitempty"`
	FontSize    *float64            `json:"fontSize,omitempty"`
	FontFamily  *string             `json:"fontFamily,omitempty"`
	SourceID    *string             `json:"sourceId,omitempty"`
	TargetID    *string             `json:"targetId,omitempty"`
	Style       ConnectorStyle      `json:"style,omitempty"`
	Title       *string             `json:"title,omitempty"`
	Children    []string            `json:"children,omitempty"`
}

// MarshalJSON encodes the object as a flat document with a "type" discriminant.
func (o Object) MarshalJSON() ([]byte, error) {
	w := wireObject{
		ID:        o.ID,
		Type:      o.Type(),
		X:         o.X,
		Y:         o.Y,
		Width:     o.Width,
		Height:    o.Height,
		Rotation:  o.Rotation,
		CreatedBy: o.CreatedBy,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}

	switch p := o.Props.(type) {
	case *Sticky:
		w.Text = &p.Text
		w.Color = p.Color
		w.Reactions = p.Reactions
	case *Rectangle:
		w.Fill, w.Stroke, w.StrokeWidth = &p.Fill, &p.Stroke, &p.StrokeWidth
	case *Circle:
		w.Fill, w.Stroke, w.StrokeWidth = &p.Fill, &p.Stroke, &p.StrokeWidth
	case *Line:
		w.X2, w.Y2 = &p.X2, &p.Y2
		w.Stroke, w.StrokeWidth = &p.Stroke, &p.StrokeWidth
	case *Text:
		w.Text, w.FontSize, w.FontFamily, w.Fill = &p.Text, &p.FontSize, &p.FontFamily, &p.Fill
	case *Connector:
		w.SourceID, w.TargetID = &p.SourceID, &p.TargetID
		w.Style = p.Style
		w.Stroke, w.StrokeWidth = &p.Stroke, &p.StrokeWidth
	case *Frame:
		w.Title, w.Fill = &p.Title, &p.Fill
		w.Children = p.Children
	default:
		return nil, fmt.Errorf("domain.Object.MarshalJSON: object %q: %w", o.ID, ErrUnknownObjectType)
	}

	return json.Marshal(w)
}

// UnmarshalJSON decodes a flat document, selecting the variant by "type".
func (o *Object) UnmarshalJSON(data []byte) error {
	var w wireObject
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("domain.Object.UnmarshalJSON: %w", err)
	}

	var props Props
	switch w.Type {
	case TypeSticky:
		props = &Sticky{Text: deref(w.Text), Color: w.Color, Reactions: w.Reactions}
	case TypeRectangle:
		props = &Rectangle{Fill: deref(w.Fill), Stroke: deref(w.Stroke), StrokeWidth: deref(w.StrokeWidth)}
	case TypeCircle:
		props = &Circle{Fill: deref(w.Fill), Stroke: deref(w.Stroke), StrokeWidth: deref(w.StrokeWidth)}
	case TypeLine:
		props = &Line{X2: deref(w.X2), Y2: deref(w.Y2), Stroke: deref(w.Stroke), StrokeWidth: deref(w.StrokeWidth)}
	case TypeText:
		props = &Text{Text: deref(w.Text), FontSize: deref(w.FontSize), FontFamily: deref(w.FontFamily), Fill: deref(w.Fill)}
	case TypeConnector:
		props = &Connector{
			SourceID:    deref(w.SourceID),
			TargetID:    deref(w.TargetID),
			Style:       w.Style,
			Stroke:      deref(w.Stroke),
			StrokeWidth: deref(w.StrokeWidth),
		}
	case TypeFrame:
		props = &Frame{Title: deref(w.Title), Fill: deref(w.Fill), Children: w.Children}
	default:
		return fmt.Errorf("domain.Object.UnmarshalJSON: type %q: %w", w.Type, ErrUnknownObjectType)
	}

	*o = Object{
		ID:        w.ID,
		X:         w.X,
		Y:         w.Y,
		Width:     w.Width,
		Height:    w.Height,
		Rotation:  w.Rotation,
		CreatedBy: w.CreatedBy,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
		Props:     props,
	}
	return nil
}

func deref[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}
