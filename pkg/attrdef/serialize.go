package attrdef

import (
	"encoding/json"
	"fmt"
)

type serializedDef struct {
	Type        string     `json:"type"`
	Key         string     `json:"key"`
	Label       string     `json:"label,omitempty"`
	Tooltip     string     `json:"tooltip,omitempty"`
	Default     any        `json:"default,omitempty"`
	Minimum     *float64   `json:"minimum,omitempty"`
	Maximum     *float64   `json:"maximum,omitempty"`
	Decimals    *int       `json:"decimals,omitempty"`
	Items       []EnumItem `json:"items,omitempty"`
	Multiline   bool       `json:"multiline,omitempty"`
	Placeholder string     `json:"placeholder,omitempty"`
}

// Serialize encodes definitions into a JSON document that Deserialize can
// reconstruct. Definition order is preserved.
func Serialize(defs []Def) ([]byte, error) {
	records := make([]serializedDef, 0, len(defs))
	for _, def := range defs {
		record, err := toRecord(def)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return json.Marshal(records)
}

func toRecord(def Def) (serializedDef, error) {
	record := serializedDef{Type: def.TypeName(), Key: def.Key(), Label: def.Label()}
	switch typed := def.(type) {
	case *BoolDef:
		record.Tooltip = typed.Tooltip()
		record.Default = typed.Default()
	case *NumberDef:
		record.Tooltip = typed.Tooltip()
		record.Default = typed.Default()
		minimum, maximum, decimals := typed.Minimum(), typed.Maximum(), typed.Decimals()
		record.Minimum = &minimum
		record.Maximum = &maximum
		record.Decimals = &decimals
	case *TextDef:
		record.Tooltip = typed.Tooltip()
		record.Default = typed.Default()
		record.Multiline = typed.Multiline()
		record.Placeholder = typed.Placeholder()
	case *EnumDef:
		record.Tooltip = typed.Tooltip()
		record.Default = typed.Default()
		record.Items = typed.Items()
	case *HiddenDef:
		record.Default = typed.Default()
	case *UnknownDef:
		record.Default = typed.Default()
	case *UISeparatorDef, *UILabelDef:
	default:
		return serializedDef{}, fmt.Errorf("attribute definition %q has unsupported type %T", def.Key(), def)
	}
	return record, nil
}

// Deserialize reconstructs definitions encoded by Serialize.
func Deserialize(payload []byte) ([]Def, error) {
	var records []serializedDef
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, fmt.Errorf("decode attribute definitions: %w", err)
	}
	defs := make([]Def, 0, len(records))
	for _, record := range records {
		def, err := fromRecord(record)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func fromRecord(record serializedDef) (Def, error) {
	opts := []Option{WithLabel(record.Label)}
	if record.Tooltip != "" {
		opts = append(opts, WithTooltip(record.Tooltip))
	}
	switch record.Type {
	case "bool":
		value, _ := record.Default.(bool)
		return NewBoolDef(record.Key, value, opts...), nil
	case "number":
		value, _ := toFloat(record.Default)
		minimum, maximum := -1e18, 1e18
		if record.Minimum != nil {
			minimum = *record.Minimum
		}
		if record.Maximum != nil {
			maximum = *record.Maximum
		}
		decimals := 0
		if record.Decimals != nil {
			decimals = *record.Decimals
		}
		return NewNumberDef(record.Key, value, minimum, maximum, decimals, opts...), nil
	case "text":
		value, _ := record.Default.(string)
		def := NewTextDef(record.Key, value, opts...)
		if record.Multiline {
			def = NewMultilineTextDef(record.Key, value, opts...)
		}
		return def.WithPlaceholder(record.Placeholder), nil
	case "enum":
		return NewEnumDef(record.Key, record.Items, record.Default, opts...)
	case "hidden":
		return NewHiddenDef(record.Key, record.Default, opts...), nil
	case "unknown":
		return NewUnknownDef(record.Key, record.Default), nil
	case "separator":
		return NewUISeparatorDef(record.Key), nil
	case "label":
		return NewUILabelDef(record.Key, record.Label), nil
	default:
		return nil, fmt.Errorf("attribute definition %q has unknown type %q", record.Key, record.Type)
	}
}
