// Package attrdef provides attribute-definition descriptors used to type the
// configurable values carried by publish instances. A definition describes a
// single value: its key, label, default and a coercion from raw stored data.
//
// The create core treats definitions opaquely through the Def interface; the
// concrete types here are the stock set integrators can compose, plus the
// UnknownDef placeholder the core synthesizes for values it has no schema
// for.
package attrdef

import "fmt"

// Def describes a single configurable value.
type Def interface {
	// Key identifies the value inside its container.
	Key() string
	// Label is the human-readable name shown by interactive tools.
	Label() string
	// Default returns the value used when no explicit value is stored.
	Default() any
	// IsValueDef reports whether the definition carries a value. UI-only
	// definitions (separators, labels) return false and are skipped by
	// value containers.
	IsValueDef() bool
	// ConvertValue coerces a raw stored value into the definition's type.
	// Values that cannot be coerced yield the default.
	ConvertValue(value any) any
	// TypeName identifies the definition type for serialization.
	TypeName() string
}

type baseDef struct {
	key     string
	label   string
	tooltip string
}

func (d baseDef) Key() string { return d.key }

func (d baseDef) Label() string {
	if d.label != "" {
		return d.label
	}
	return d.key
}

// Tooltip returns the optional help text of the definition.
func (d baseDef) Tooltip() string { return d.tooltip }

// Option mutates optional descriptor fields shared by all definitions.
type Option func(*baseDef)

// WithLabel overrides the display label (the key is used by default).
func WithLabel(label string) Option {
	return func(d *baseDef) { d.label = label }
}

// WithTooltip attaches help text to the definition.
func WithTooltip(tooltip string) Option {
	return func(d *baseDef) { d.tooltip = tooltip }
}

func newBase(key string, opts []Option) baseDef {
	base := baseDef{key: key}
	for _, opt := range opts {
		opt(&base)
	}
	return base
}

// BoolDef describes a boolean value.
type BoolDef struct {
	baseDef
	def bool
}

// NewBoolDef builds a boolean definition.
func NewBoolDef(key string, defaultValue bool, opts ...Option) *BoolDef {
	return &BoolDef{baseDef: newBase(key, opts), def: defaultValue}
}

func (d *BoolDef) Default() any     { return d.def }
func (d *BoolDef) IsValueDef() bool { return true }
func (d *BoolDef) TypeName() string { return "bool" }

func (d *BoolDef) ConvertValue(value any) any {
	if typed, ok := value.(bool); ok {
		return typed
	}
	return d.def
}

// NumberDef describes a numeric value with an optional range. Values are
// normalized to float64 when Decimals is non-zero, int64 otherwise.
type NumberDef struct {
	baseDef
	def      float64
	minimum  float64
	maximum  float64
	decimals int
}

// NewNumberDef builds a numeric definition spanning [minimum, maximum].
func NewNumberDef(key string, defaultValue, minimum, maximum float64, decimals int, opts ...Option) *NumberDef {
	if minimum > maximum {
		minimum, maximum = maximum, minimum
	}
	return &NumberDef{
		baseDef:  newBase(key, opts),
		def:      clamp(defaultValue, minimum, maximum),
		minimum:  minimum,
		maximum:  maximum,
		decimals: decimals,
	}
}

func (d *NumberDef) Default() any {
	return d.normalize(d.def)
}

func (d *NumberDef) IsValueDef() bool { return true }
func (d *NumberDef) TypeName() string { return "number" }

// Minimum returns the lower bound of the accepted range.
func (d *NumberDef) Minimum() float64 { return d.minimum }

// Maximum returns the upper bound of the accepted range.
func (d *NumberDef) Maximum() float64 { return d.maximum }

// Decimals returns the number of decimal places kept by the definition.
func (d *NumberDef) Decimals() int { return d.decimals }

func (d *NumberDef) ConvertValue(value any) any {
	number, ok := toFloat(value)
	if !ok {
		return d.Default()
	}
	return d.normalize(clamp(number, d.minimum, d.maximum))
}

func (d *NumberDef) normalize(number float64) any {
	if d.decimals > 0 {
		return number
	}
	return int64(number)
}

func clamp(number, minimum, maximum float64) float64 {
	if number < minimum {
		return minimum
	}
	if number > maximum {
		return maximum
	}
	return number
}

func toFloat(value any) (float64, bool) {
	switch typed := value.(type) {
	case int:
		return float64(typed), true
	case int32:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case float32:
		return float64(typed), true
	case float64:
		return typed, true
	default:
		return 0, false
	}
}

// TextDef describes a free-form string value.
type TextDef struct {
	baseDef
	def         string
	multiline   bool
	placeholder string
}

// NewTextDef builds a text definition.
func NewTextDef(key, defaultValue string, opts ...Option) *TextDef {
	return &TextDef{baseDef: newBase(key, opts), def: defaultValue}
}

// NewMultilineTextDef builds a text definition rendered as a multiline field.
func NewMultilineTextDef(key, defaultValue string, opts ...Option) *TextDef {
	def := NewTextDef(key, defaultValue, opts...)
	def.multiline = true
	return def
}

func (d *TextDef) Default() any     { return d.def }
func (d *TextDef) IsValueDef() bool { return true }
func (d *TextDef) TypeName() string { return "text" }

// Multiline reports whether the field should render as multiline.
func (d *TextDef) Multiline() bool { return d.multiline }

// WithPlaceholder sets the hint text shown while the field is empty and
// returns the definition for chaining.
func (d *TextDef) WithPlaceholder(placeholder string) *TextDef {
	d.placeholder = placeholder
	return d
}

// Placeholder returns the hint text shown while the field is empty.
func (d *TextDef) Placeholder() string { return d.placeholder }

func (d *TextDef) ConvertValue(value any) any {
	if typed, ok := value.(string); ok {
		return typed
	}
	return d.def
}

// EnumItem is one selectable option of an EnumDef.
type EnumItem struct {
	Value any    `json:"value"`
	Label string `json:"label"`
}

// EnumDef describes a value restricted to a fixed set of options.
type EnumDef struct {
	baseDef
	items []EnumItem
	def   any
}

// NewEnumDef builds an enum definition. The default falls back to the first
// item when it does not match any item value.
func NewEnumDef(key string, items []EnumItem, defaultValue any, opts ...Option) (*EnumDef, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("enum definition %q requires at least one item", key)
	}
	def := &EnumDef{baseDef: newBase(key, opts), items: append([]EnumItem(nil), items...)}
	def.def = def.ConvertValue(defaultValue)
	return def, nil
}

func (d *EnumDef) Default() any     { return d.def }
func (d *EnumDef) IsValueDef() bool { return true }
func (d *EnumDef) TypeName() string { return "enum" }

// Items returns the selectable options.
func (d *EnumDef) Items() []EnumItem {
	return append([]EnumItem(nil), d.items...)
}

func (d *EnumDef) ConvertValue(value any) any {
	for _, item := range d.items {
		if item.Value == value {
			return value
		}
	}
	if d.def != nil {
		return d.def
	}
	return d.items[0].Value
}

// HiddenDef describes a value that is stored but never shown interactively.
// Values pass through conversion untouched.
type HiddenDef struct {
	baseDef
	def any
}

// NewHiddenDef builds a hidden definition.
func NewHiddenDef(key string, defaultValue any, opts ...Option) *HiddenDef {
	return &HiddenDef{baseDef: newBase(key, opts), def: defaultValue}
}

func (d *HiddenDef) Default() any     { return d.def }
func (d *HiddenDef) IsValueDef() bool { return true }
func (d *HiddenDef) TypeName() string { return "hidden" }

func (d *HiddenDef) ConvertValue(value any) any { return value }

// UnknownDef is the placeholder synthesized for values that arrived without
// a matching definition. It keeps unknown data retrievable and serializable
// so round-tripping foreign records never loses information.
type UnknownDef struct {
	baseDef
	def any
}

// NewUnknownDef builds an unknown-value placeholder.
func NewUnknownDef(key string, defaultValue any) *UnknownDef {
	return &UnknownDef{baseDef: baseDef{key: key, label: key}, def: defaultValue}
}

func (d *UnknownDef) Default() any     { return d.def }
func (d *UnknownDef) IsValueDef() bool { return true }
func (d *UnknownDef) TypeName() string { return "unknown" }

func (d *UnknownDef) ConvertValue(value any) any { return value }

// UISeparatorDef is a value-less definition rendered as a separator line.
type UISeparatorDef struct {
	baseDef
}

// NewUISeparatorDef builds a separator definition.
func NewUISeparatorDef(key string) *UISeparatorDef {
	return &UISeparatorDef{baseDef: baseDef{key: key}}
}

func (d *UISeparatorDef) Default() any     { return nil }
func (d *UISeparatorDef) IsValueDef() bool { return false }
func (d *UISeparatorDef) TypeName() string { return "separator" }

func (d *UISeparatorDef) ConvertValue(value any) any { return value }

// UILabelDef is a value-less definition rendered as a static label.
type UILabelDef struct {
	baseDef
}

// NewUILabelDef builds a label-only definition.
func NewUILabelDef(key, label string) *UILabelDef {
	return &UILabelDef{baseDef: baseDef{key: key, label: label}}
}

func (d *UILabelDef) Default() any     { return nil }
func (d *UILabelDef) IsValueDef() bool { return false }
func (d *UILabelDef) TypeName() string { return "label" }

func (d *UILabelDef) ConvertValue(value any) any { return value }

// DefaultValues collects the defaults of all value definitions, typically to
// seed pre-create data before user overrides are applied.
func DefaultValues(defs []Def) map[string]any {
	output := map[string]any{}
	for _, def := range defs {
		if def == nil || !def.IsValueDef() {
			continue
		}
		output[def.Key()] = def.Default()
	}
	return output
}
