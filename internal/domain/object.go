package domain

import "slices"

type ObjectType string

const (
	TypeSticky    ObjectType = "sticky"
	TypeRectangle ObjectType = "rectangle"
	TypeCircle    ObjectType = "circle"
	TypeLine      ObjectType = "line"
	TypeText      ObjectType = "text"
	TypeConnector ObjectType = "connector"
	TypeFrame     ObjectType = "frame"
)

// Valid reports whether t is one of the seven board object variants.
func (t ObjectType) Valid() bool {
	switch t {
	case TypeSticky, TypeRectangle, TypeCircle, TypeLine, TypeText, TypeConnector, TypeFrame:
		return true
	default:
		return false
	}
}

type StickyColor string

const (
	StickyYellow StickyColor = "yellow"
	StickyPink   StickyColor = "pink"
	StickyBlue   StickyColor = "blue"
	StickyGreen  StickyColor = "green"
	StickyPurple StickyColor = "purple"
)

// StickyColors maps the sticky palette to its hex fill.
var StickyColors = map[StickyColor]string{ //nolint:gochecknoglobals // fixed palette
	StickyYellow: "#FFF9C4",
	StickyPink:   "#F8BBD0",
	StickyBlue:   "#BBDEFB",
	StickyGreen:  "#C8E6C9",
	StickyPurple: "#E1BEE7",
}

type ConnectorStyle string

const (
	ConnectorArrow ConnectorStyle = "arrow"
	ConnectorLine  ConnectorStyle = "line"
)

// Object is a single shape on a board. The common geometry and attribution
// fields live here; the variant payload lives in Props, whose concrete type
// always corresponds to Type().
type Object struct {
	ID        string
	X         float64
	Y         float64
	Width     float64
	Height    float64
	Rotation  float64 // degrees, pivot at center; 0 means unrotated
	CreatedBy string
	CreatedAt int64 // epoch millis
	UpdatedAt int64 // epoch millis
	Props     Props
}

// Props is the closed set of variant payloads. Only the types in this file
// implement it.
type Props interface {
	Kind() ObjectType
	cloneProps() Props
}

type Sticky struct {
	Text      string
	Color     StickyColor
	Reactions map[string][]string // emoji -> user ids
}

type Rectangle struct {
	Fill        string
	Stroke      string
	StrokeWidth float64
}

type Circle struct {
	Fill        string
	Stroke      string
	StrokeWidth float64
}

type Line struct {
	X2          float64
	Y2          float64
	Stroke      string
	StrokeWidth float64
}

type Text struct {
	Text       string
	FontSize   float64
	FontFamily string
	Fill       string
}

// Connector links two objects by id. Either end may reference an object that
// no longer exists.
type Connector struct {
	SourceID    string
	TargetID    string
	Style       ConnectorStyle
	Stroke      string
	StrokeWidth float64
}

// Frame groups objects visually. Children is a cache recomputed from
// geometry, not an ownership list.
type Frame struct {
	Title    string
	Fill     string
	Children []string
}

func (*Sticky) Kind() ObjectType    { return TypeSticky }
func (*Rectangle) Kind() ObjectType { return TypeRectangle }
func (*Circle) Kind() ObjectType    { return TypeCircle }
func (*Line) Kind() ObjectType      { return TypeLine }
func (*Text) Kind() ObjectType      { return TypeText }
func (*Connector) Kind() ObjectType { return TypeConnector }
func (*Frame) Kind() ObjectType     { return TypeFrame }

func (p *Sticky) cloneProps() Props {
	c := *p
	if p.Reactions != nil {
		c.Reactions = make(map[string][]string, len(p.Reactions))
		for emoji, users := range p.Reactions {
			c.Reactions[emoji] = slices.Clone(users)
		}
	}
	return &c
}

func (p *Rectangle) cloneProps() Props {
	c := *p
	return &c
}

func (p *Circle) cloneProps() Props {
	c := *p
	return &c
}

func (p *Line) cloneProps() Props {
	c := *p
	return &c
}

func (p *Text) cloneProps() Props {
	c := *p
	return &c
}

func (p *Connector) cloneProps() Props {
	c := *p
	return &c
}

func (p *Frame) cloneProps() Props {
	c := *p
	c.Children = slices.Clone(p.Children)
	return &c
}

// Type returns the variant discriminant.
func (o *Object) Type() ObjectType {
	if o.Props == nil {
		return ""
	}
	return o.Props.Kind()
}

// Clone returns a deep copy of o.
func (o *Object) Clone() *Object {
	c := *o
	if o.Props != nil {
		c.Props = o.Props.cloneProps()
	}
	return &c
}

// CloneAll deep-copies a list of objects.
func CloneAll(objs []*Object) []*Object {
	out := make([]*Object, len(objs))
	for i, o := range objs {
		out[i] = o.Clone()
	}
	return out
}

// Center returns the pivot point of the object's bounding box.
func (o *Object) Center() (float64, float64) {
	return o.X + o.Width/2, o.Y + o.Height/2
}
