package objects

import (
	"math"
	"slices"

	"github.com/google/uuid"

	"github.com/gosuda/boardsync/internal/clock"
	"github.com/gosuda/boardsync/internal/domain"
)

// Creation defaults per object type.
const (
	DefaultStickyWidth  = 200
	DefaultStickyHeight = 150
	DefaultRectWidth    = 200
	DefaultRectHeight   = 150
	DefaultCircleSize   = 100
	DefaultLineLength   = 200
	DefaultTextWidth    = 200
	DefaultTextHeight   = 40
	DefaultFrameWidth   = 400
	DefaultFrameHeight  = 300

	DefaultDuplicateOffset = 20
)

// Default styling applied when a create intent leaves a field unset.
const (
	DefaultRectFill          = "#E0E0E0"
	DefaultRectStroke        = "#9E9E9E"
	DefaultRectStrokeWidth   = 1
	DefaultCircleFill        = "#90CAF9"
	DefaultCircleStroke      = "#42A5F5"
	DefaultCircleStrokeWidth = 2
	DefaultLineStroke        = "#616161"
	DefaultLineStrokeWidth   = 2
	DefaultText              = "Text"
	DefaultFontSize          = 18
	DefaultFontFamily        = "sans-serif"
	DefaultTextFill          = "#333333"
	DefaultConnectorStroke   = "#616161"
	DefaultConnectorWidth    = 2
	DefaultFrameTitle        = "Frame"
	DefaultFrameFill         = "rgba(200, 200, 200, 0.1)"
)

// Handler turns intents into Store mutations.
type Handler struct {
	store *Store
	clock clock.Clock
	newID func() string
}

func NewHandler(store *Store, clk clock.Clock) *Handler {
	return &Handler{
		store: store,
		clock: clk,
		newID: uuid.NewString,
	}
}

// Handle applies one intent on behalf of actorID. Failures are reported in
// the Result, never as errors.
func (h *Handler) Handle(intent domain.Intent, actorID string) domain.Result {
	switch in := intent.(type) {
	case domain.CreateSticky:
		return h.create(actorID, in.X, in.Y, or(in.Width, DefaultStickyWidth), or(in.Height, DefaultStickyHeight), &domain.Sticky{
			Text:  or(in.Text, ""),
			Color: or(in.Color, domain.StickyYellow),
		})

	case domain.CreateRectangle:
		return h.create(actorID, in.X, in.Y, or(in.Width, DefaultRectWidth), or(in.Height, DefaultRectHeight), &domain.Rectangle{
			Fill:        or(in.Fill, DefaultRectFill),
			Stroke:      or(in.Stroke, DefaultRectStroke),
			StrokeWidth: or(in.StrokeWidth, DefaultRectStrokeWidth),
		})

	case domain.CreateCircle:
		return h.create(actorID, in.X, in.Y, or(in.Width, DefaultCircleSize), or(in.Height, DefaultCircleSize), &domain.Circle{
			Fill:        or(in.Fill, DefaultCircleFill),
			Stroke:      or(in.Stroke, DefaultCircleStroke),
			StrokeWidth: or(in.StrokeWidth, DefaultCircleStrokeWidth),
		})

	case domain.CreateLine:
		x2 := or(in.X2, in.X+DefaultLineLength)
		y2 := or(in.Y2, in.Y)
		width := math.Abs(x2 - in.X)
		if width == 0 {
			width = DefaultLineLength
		}
		return h.create(actorID, in.X, in.Y, width, math.Abs(y2-in.Y), &domain.Line{
			X2:          x2,
			Y2:          y2,
			Stroke:      or(in.Stroke, DefaultLineStroke),
			StrokeWidth: or(in.StrokeWidth, DefaultLineStrokeWidth),
		})

	case domain.CreateText:
		return h.create(actorID, in.X, in.Y, or(in.Width, DefaultTextWidth), or(in.Height, DefaultTextHeight), &domain.Text{
			Text:       or(in.Text, DefaultText),
			FontSize:   or(in.FontSize, DefaultFontSize),
			FontFamily: or(in.FontFamily, DefaultFontFamily),
			Fill:       or(in.Fill, DefaultTextFill),
		})

	case domain.CreateConnector:
		return h.create(actorID, 0, 0, 0, 0, &domain.Connector{
			SourceID:    in.SourceID,
			TargetID:    in.TargetID,
			Style:       or(in.Style, domain.ConnectorArrow),
			Stroke:      or(in.Stroke, DefaultConnectorStroke),
			StrokeWidth: or(in.StrokeWidth, DefaultConnectorWidth),
		})

	case domain.CreateFrame:
		return h.create(actorID, in.X, in.Y, or(in.Width, DefaultFrameWidth), or(in.Height, DefaultFrameHeight), &domain.Frame{
			Title:    or(in.Title, DefaultFrameTitle),
			Fill:     or(in.Fill, DefaultFrameFill),
			Children: []string{},
		})

	case domain.Move:
		return h.move(in)

	case domain.UpdateText:
		return h.updateText(in)

	case domain.UpdateColor:
		return h.updateColor(in)

	case domain.Resize:
		h.store.Update(in.ObjectID, func(o *domain.Object) {
			o.Width, o.Height = in.Width, in.Height
		})
		return touched(in.ObjectID)

	case domain.Rotate:
		h.store.Update(in.ObjectID, func(o *domain.Object) {
			o.Rotation = in.Rotation
		})
		return touched(in.ObjectID)

	case domain.Delete:
		h.store.Remove(in.ObjectID)
		return touched(in.ObjectID)

	case domain.Duplicate:
		return h.duplicate(in, actorID)

	case domain.UpdateFrameChildren:
		return h.updateFrameChildren(in)

	case domain.ToggleReaction:
		return h.toggleReaction(in, actorID)

	default:
		return domain.Result{}
	}
}

func (h *Handler) create(actorID string, x, y, w, hgt float64, props domain.Props) domain.Result {
	now := clock.Millis(h.clock)
	o := &domain.Object{
		ID:        h.newID(),
		X:         x,
		Y:         y,
		Width:     w,
		Height:    hgt,
		CreatedBy: actorID,
		CreatedAt: now,
		UpdatedAt: now,
		Props:     props,
	}
	h.store.Add(o)
	return touched(o.ID)
}

// move translates frame children by the frame's delta before moving the
// frame itself. Lines keep their length and direction. A missing object is
// not an error.
func (h *Handler) move(in domain.Move) domain.Result {
	res := touched(in.ObjectID)

	current, ok := h.store.Get(in.ObjectID)
	if !ok {
		return res
	}
	dx, dy := in.X-current.X, in.Y-current.Y

	if f, isFrame := current.Props.(*domain.Frame); isFrame {
		for _, childID := range f.Children {
			if h.store.Update(childID, func(o *domain.Object) { translate(o, dx, dy) }) {
				res.Affected = append(res.Affected, childID)
			}
		}
	}

	h.store.Update(in.ObjectID, func(o *domain.Object) { translate(o, dx, dy) })
	return res
}

func (h *Handler) updateText(in domain.UpdateText) domain.Result {
	current, ok := h.store.Get(in.ObjectID)
	if !ok {
		return domain.Result{}
	}

	switch current.Props.(type) {
	case *domain.Sticky, *domain.Text, *domain.Frame:
	default:
		return domain.Result{}
	}

	h.store.Update(in.ObjectID, func(o *domain.Object) {
		switch p := o.Props.(type) {
		case *domain.Sticky:
			p.Text = in.Text
		case *domain.Text:
			p.Text = in.Text
		case *domain.Frame:
			p.Title = in.Text
		}
	})
	return touched(in.ObjectID)
}

func (h *Handler) updateColor(in domain.UpdateColor) domain.Result {
	ok := h.store.Update(in.ObjectID, func(o *domain.Object) {
		switch p := o.Props.(type) {
		case *domain.Sticky:
			p.Color = domain.StickyColor(in.Color)
		case *domain.Rectangle:
			p.Fill = in.Color
		case *domain.Circle:
			p.Fill = in.Color
		case *domain.Text:
			p.Fill = in.Color
		case *domain.Frame:
			p.Fill = in.Color
		case *domain.Line:
			p.Stroke = in.Color
		case *domain.Connector:
			p.Stroke = in.Color
		}
	})
	if !ok {
		return domain.Result{}
	}
	return touched(in.ObjectID)
}

func (h *Handler) duplicate(in domain.Duplicate, actorID string) domain.Result {
	dx := or(in.OffsetX, DefaultDuplicateOffset)
	dy := or(in.OffsetY, DefaultDuplicateOffset)

	res := domain.Result{OK: true, ObjectIDs: []string{}}
	for _, id := range in.ObjectIDs {
		src, ok := h.store.Get(id)
		if !ok {
			continue
		}
		c := h.InsertClone(src, actorID, dx, dy)
		res.ObjectIDs = append(res.ObjectIDs, c.ID)
	}
	res.Affected = slices.Clone(res.ObjectIDs)
	return res
}

func (h *Handler) updateFrameChildren(in domain.UpdateFrameChildren) domain.Result {
	current, ok := h.store.Get(in.ObjectID)
	if !ok || current.Type() != domain.TypeFrame {
		return domain.Result{}
	}

	children := slices.Clone(in.Children)
	if children == nil {
		children = []string{}
	}
	h.store.Update(in.ObjectID, func(o *domain.Object) {
		o.Props.(*domain.Frame).Children = children //nolint:forcetypeassert // checked above
	})
	return touched(in.ObjectID)
}

func (h *Handler) toggleReaction(in domain.ToggleReaction, actorID string) domain.Result {
	current, ok := h.store.Get(in.ObjectID)
	if !ok || current.Type() != domain.TypeSticky || in.Emoji == "" {
		return domain.Result{}
	}

	h.store.Update(in.ObjectID, func(o *domain.Object) {
		s := o.Props.(*domain.Sticky) //nolint:forcetypeassert // checked above
		if s.Reactions == nil {
			s.Reactions = make(map[string][]string)
		}
		users := s.Reactions[in.Emoji]
		if i := slices.Index(users, actorID); i >= 0 {
			users = slices.Delete(users, i, i+1)
		} else {
			users = append(users, actorID)
		}
		if len(users) == 0 {
			delete(s.Reactions, in.Emoji)
		} else {
			s.Reactions[in.Emoji] = users
		}
	})
	return touched(in.ObjectID)
}

// InsertClone stores a copy of src owned by actorID and offset by (dx, dy).
func (h *Handler) InsertClone(src *domain.Object, actorID string, dx, dy float64) *domain.Object {
	c := CloneObject(src, h.newID(), actorID, dx, dy, clock.Millis(h.clock))
	h.store.Add(c)
	return c
}

// CloneObject returns a fresh object copied from src: new id, owner and
// timestamps, position shifted by (dx, dy). Line endpoints shift with it,
// connectors lose their endpoints, frames lose their children and stickies
// their reactions.
func CloneObject(src *domain.Object, id, actorID string, dx, dy float64, now int64) *domain.Object {
	c := src.Clone()
	c.ID = id
	c.CreatedBy = actorID
	c.CreatedAt = now
	c.UpdatedAt = now
	c.X += dx
	c.Y += dy

	switch p := c.Props.(type) {
	case *domain.Line:
		p.X2 += dx
		p.Y2 += dy
	case *domain.Connector:
		p.SourceID = ""
		p.TargetID = ""
	case *domain.Frame:
		p.Children = []string{}
	case *domain.Sticky:
		p.Reactions = nil
	}
	return c
}

func translate(o *domain.Object, dx, dy float64) {
	o.X += dx
	o.Y += dy
	if l, ok := o.Props.(*domain.Line); ok {
		l.X2 += dx
		l.Y2 += dy
	}
}

func touched(id string) domain.Result {
	return domain.Result{OK: true, ObjectID: id, Affected: []string{id}}
}

func or[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}
