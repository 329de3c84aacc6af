package models

// Property value types
const (
	TypeBoolean = "boolean"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeString  = "string"
)

// Trigger types
const (
	BooleanTriggerType  = "BooleanTrigger"
	LevelTriggerType    = "LevelTrigger"
	EqualityTriggerType = "EqualityTrigger"
	EventTriggerType    = "EventTrigger"
	MultiTriggerType    = "MultiTrigger"
	TimeTriggerType     = "TimeTrigger"
)

// Effect types
const (
	SetEffectType            = "SetEffect"
	PulseEffectType          = "PulseEffect"
	ActionEffectType         = "ActionEffect"
	NotificationEffectType   = "NotificationEffect"
	NotifierOutletEffectType = "NotifierOutletEffect"
	MultiEffectType          = "MultiEffect"
)

// LevelTrigger comparison types
const (
	LevelLess    = "LESS"
	LevelEqual   = "EQUAL"
	LevelGreater = "GREATER"
)

// MultiTrigger operators
const (
	OpAnd = "AND"
	OpOr  = "OR"
)

// PropertyDescription identifies a remote property by (Thing, ID)
type PropertyDescription struct {
	Type        string `json:"type"`
	Thing       string `json:"thing"`
	ID          string `json:"id"`
	Unit        string `json:"unit,omitempty"`
	Description string `json:"description,omitempty"`
}

// TriggerDescription is the serialized form of every trigger variant.
// Type selects which of the remaining fields are meaningful.
type TriggerDescription struct {
	Type  string `json:"type"`
	Label string `json:"label,omitempty"`

	// BooleanTrigger, LevelTrigger, EqualityTrigger
	Property  *PropertyDescription `json:"property,omitempty"`
	OnValue   *bool                `json:"onValue,omitempty"`
	Value     any                  `json:"value,omitempty"`
	LevelType string               `json:"levelType,omitempty"`

	// EventTrigger
	Thing string `json:"thing,omitempty"`
	Event string `json:"event,omitempty"`

	// MultiTrigger
	Op       string               `json:"op,omitempty"`
	Triggers []TriggerDescription `json:"triggers,omitempty"`

	// TimeTrigger. Localized is always set on current descriptions; a
	// missing flag marks a legacy UTC time.
	Time      string `json:"time,omitempty"`
	Localized *bool  `json:"localized,omitempty"`
}

// EffectDescription is the serialized form of every effect variant
type EffectDescription struct {
	Type  string `json:"type"`
	Label string `json:"label,omitempty"`

	// SetEffect, PulseEffect
	Property *PropertyDescription `json:"property,omitempty"`
	Value    any                  `json:"value,omitempty"`

	// ActionEffect
	Thing      string         `json:"thing,omitempty"`
	Action     string         `json:"action,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`

	// NotificationEffect, NotifierOutletEffect
	Notifier string `json:"notifier,omitempty"`
	Outlet   string `json:"outlet,omitempty"`
	Title    string `json:"title,omitempty"`
	Message  string `json:"message,omitempty"`
	Level    int    `json:"level,omitempty"`

	// MultiEffect
	Effects []EffectDescription `json:"effects,omitempty"`
}

// RuleDescription is the persisted and transported form of a rule
type RuleDescription struct {
	ID      int64              `json:"id,omitempty"`
	Name    string             `json:"name,omitempty"`
	Enabled bool               `json:"enabled"`
	Trigger TriggerDescription `json:"trigger"`
	Effect  EffectDescription  `json:"effect"`
}

// State flows from a trigger to an effect
type State struct {
	On    bool `json:"on"`
	Value any  `json:"value,omitempty"`
}
