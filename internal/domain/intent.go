package domain

import (
	"encoding/json"
	"fmt"
)

type IntentKind string

const (
	KindCreateSticky        IntentKind = "create-sticky"
	KindCreateRectangle     IntentKind = "create-rectangle"
	KindCreateCircle        IntentKind = "create-circle"
	KindCreateLine          IntentKind = "create-line"
	KindCreateText          IntentKind = "create-text"
	KindCreateConnector     IntentKind = "create-connector"
	KindCreateFrame         IntentKind = "create-frame"
	KindMove                IntentKind = "move"
	KindUpdateText          IntentKind = "update-text"
	KindUpdateColor         IntentKind = "update-color"
	KindResize              IntentKind = "resize"
	KindRotate              IntentKind = "rotate"
	KindDelete              IntentKind = "delete"
	KindDuplicate           IntentKind = "duplicate"
	KindUpdateFrameChildren IntentKind = "update-frame-children"
	KindToggleReaction      IntentKind = "toggle-reaction"
)

// Intent is a user-initiated mutation request. Optional fields are pointers;
// nil means "use the type default".
type Intent interface {
	Kind() IntentKind
}

type CreateSticky struct {
	X      float64      `json:"x"`
	Y      float64      `json:"y"`
	Width  *float64     `json:"width,omitempty"`
	Height *float64     `json:"height,omitempty"`
	Text   *string      `json:"text,omitempty"`
	Color  *StickyColor `json:"color,omitempty"`
}

type CreateRectangle struct {
	X           float64  `json:"x"`
	Y           float64  `json:"y"`
	Width       *float64 `json:"width,omitempty"`
	Height      *float64 `json:"height,omitempty"`
	Fill        *string  `json:"fill,omitempty"`
	Stroke      *string  `json:"stroke,omitempty"`
	StrokeWidth *float64 `json:"strokeWidth,omitempty"`
}

type CreateCircle struct {
	X           float64  `json:"x"`
	Y           float64  `json:"y"`
	Width       *float64 `json:"width,omitempty"`
	Height      *float64 `json:"height,omitempty"`
	Fill        *string  `json:"fill,omitempty"`
	Stroke      *string  `json:"stroke,omitempty"`
	StrokeWidth *float64 `json:"strokeWidth,omitempty"`
}

type CreateLine struct {
	X           float64  `json:"x"`
	Y           float64  `json:"y"`
	X2          *float64 `json:"x2,omitempty"`
	Y2          *float64 `json:"y2,omitempty"`
	Stroke      *string  `json:"stroke,omitempty"`
	StrokeWidth *float64 `json:"strokeWidth,omitempty"`
}

type CreateText struct {
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Width      *float64 `json:"width,omitempty"`
	Height     *float64 `json:"height,omitempty"`
	Text       *string  `json:"text,omitempty"`
	FontSize   *float64 `json:"fontSize,omitempty"`
	FontFamily *string  `json:"fontFamily,omitempty"`
	Fill       *string  `json:"fill,omitempty"`
}

type CreateConnector struct {
	SourceID    string          `json:"sourceId"`
	TargetID    string          `json:"targetId"`
	Style       *ConnectorStyle `json:"style,omitempty"`
	Stroke      *string         `json:"stroke,omitempty"`
	StrokeWidth *float64        `json:"strokeWidth,omitempty"`
}

type CreateFrame struct {
	X      float64  `json:"x"`
	Y      float64  `json:"y"`
	Width  *float64 `json:"width,omitempty"`
	Height *float64 `json:"height,omitempty"`
	Title  *string  `json:"title,omitempty"`
	Fill   *string  `json:"fill,omitempty"`
}

type Move struct {
	ObjectID string  `json:"objectId"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

type UpdateText struct {
	ObjectID string `json:"objectId"`
	Text     string `json:"text"`
}

type UpdateColor struct {
	ObjectID string `json:"objectId"`
	Color    string `json:"color"`
}

type Resize struct {
	ObjectID string  `json:"objectId"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
}

type Rotate struct {
	ObjectID string  `json:"objectId"`
	Rotation float64 `json:"rotation"`
}

type Delete struct {
	ObjectID string `json:"objectId"`
}

type Duplicate struct {
	ObjectIDs []string `json:"objectIds"`
	OffsetX   *float64 `json:"offsetX,omitempty"`
	OffsetY   *float64 `json:"offsetY,omitempty"`
}

type UpdateFrameChildren struct {
	ObjectID string   `json:"objectId"`
	Children []string `json:"children"`
}

type ToggleReaction struct {
	ObjectID string `json:"objectId"`
	Emoji    string `json:"emoji"`
}

func (CreateSticky) Kind() IntentKind        { return KindCreateSticky }
func (CreateRectangle) Kind() IntentKind     { return KindCreateRectangle }
func (CreateCircle) Kind() IntentKind        { return KindCreateCircle }
func (CreateLine) Kind() IntentKind          { return KindCreateLine }
func (CreateText) Kind() IntentKind          { return KindCreateText }
func (CreateConnector) Kind() IntentKind     { return KindCreateConnector }
func (CreateFrame) Kind() IntentKind         { return KindCreateFrame }
func (Move) Kind() IntentKind                { return KindMove }
func (UpdateText) Kind() IntentKind          { return KindUpdateText }
func (UpdateColor) Kind() IntentKind         { return KindUpdateColor }
func (Resize) Kind() IntentKind              { return KindResize }
func (Rotate) Kind() IntentKind              { return KindRotate }
func (Delete) Kind() IntentKind              { return KindDelete }
func (Duplicate) Kind() IntentKind           { return KindDuplicate }
func (UpdateFrameChildren) Kind() IntentKind { return KindUpdateFrameChildren }
func (ToggleReaction) Kind() IntentKind      { return KindToggleReaction }

// Result reports the outcome of applying an intent. Intent failures are
// values, never errors.
type Result struct {
	OK        bool     `json:"ok"`
	ObjectID  string   `json:"objectId,omitempty"`
	ObjectIDs []string `json:"objectIds,omitempty"`

	// Affected lists every object id the intent wrote, including side
	// effects such as frame children moved with their frame.
	Affected []string `json:"-"`
}

// DecodeIntent parses a JSON intent carrying a "kind" discriminant.
func DecodeIntent(data []byte) (Intent, error) {
	var head struct {
		Kind IntentKind `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("domain.DecodeIntent: %w", err)
	}

	var target Intent
	switch head.Kind {
	case KindCreateSticky:
		target = &CreateSticky{}
	case KindCreateRectangle:
		target = &CreateRectangle{}
	case KindCreateCircle:
		target = &CreateCircle{}
	case KindCreateLine:
		target = &CreateLine{}
	case KindCreateText:
		target = &CreateText{}
	case KindCreateConnector:
		target = &CreateConnector{}
	case KindCreateFrame:
		target = &CreateFrame{}
	case KindMove:
		target = &Move{}
	case KindUpdateText:
		target = &UpdateText{}
	case KindUpdateColor:
		target = &UpdateColor{}
	case KindResize:
		target = &Resize{}
	case KindRotate:
		target = &Rotate{}
	case KindDelete:
		target = &Delete{}
	case KindDuplicate:
		target = &Duplicate{}
	case KindUpdateFrameChildren:
		target = &UpdateFrameChildren{}
	case KindToggleReaction:
		target = &ToggleReaction{}
	default:
		return nil, fmt.Errorf("domain.DecodeIntent: kind %q: %w", head.Kind, ErrInvalidIntent)
	}

	if err := json.Unmarshal(data, target); err != nil {
		return nil, fmt.Errorf("domain.DecodeIntent: %s: %w", head.Kind, err)
	}

	return derefIntent(target), nil
}

// EncodeIntent marshals an intent with its "kind" discriminant.
func EncodeIntent(in Intent) ([]byte, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("domain.EncodeIntent: %w", err)
	}

	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("domain.EncodeIntent: %w", err)
	}

	kind, err := json.Marshal(in.Kind())
	if err != nil {
		return nil, fmt.Errorf("domain.EncodeIntent: %w", err)
	}
	fields["kind"] = kind

	return json.Marshal(fields)
}

// derefIntent returns the value form of a decoded intent so callers can
// type-switch on value types only.
func derefIntent(in Intent) Intent {
	switch v := in.(type) {
	case *CreateSticky:
		return *v
	case *CreateRectangle:
		return *v
	case *CreateCircle:
		return *v
	case *CreateLine:
		return *v
	case *CreateText:
		return *v
	case *CreateConnector:
		return *v
	case *CreateFrame:
		return *v
	case *Move:
		return *v
	case *UpdateText:
		return *v
	case *UpdateColor:
		return *v
	case *Resize:
		return *v
	case *Rotate:
		return *v
	case *Delete:
		return *v
	case *Duplicate:
		return *v
	case *UpdateFrameChildren:
		return *v
	case *ToggleReaction:
		return *v
	default:
		return in
	}
}
