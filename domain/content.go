package domain

import (
	"encoding/json"
	"strings"
)

// Gear is an equippable reference item.
type Gear struct {
	Key   string       `json:"key"`
	Text  string       `json:"text"`
	Class Class        `json:"class"`
	Slot  string       `json:"slot"`
	Stats AttributeSet `json:"stats"`
}

type Boss struct {
	Name     string  `json:"name"`
	HP       float64 `json:"hp"`
	Strength float64 `json:"strength"`
	Defense  float64 `json:"defense"`
}

type Quest struct {
	Key     string         `json:"key"`
	Text    string         `json:"text"`
	Boss    *Boss          `json:"boss,omitempty"`
	Collect map[string]int `json:"collect,omitempty"`
}

type Spell struct {
	Key    string  `json:"key"`
	Text   string  `json:"text"`
	Class  string  `json:"class"`
	Mana   float64 `json:"mana"`
	Target string  `json:"target,omitempty"`
}

// Content is the immutable reference dataset, split into lookup tables keyed by stable key.
type Content struct {
	Gear   map[string]Gear  `json:"gear"`
	Quests map[string]Quest `json:"quests"`
	Spells map[string]Spell `json:"spells"`
}

// NewContent returns an empty dataset with allocated tables.
func NewContent() *Content {
	return &Content{
		Gear:   make(map[string]Gear),
		Quests: make(map[string]Quest),
		Spells: make(map[string]Spell),
	}
}

func (c *Content) GearByKey(key string) (Gear, bool) {
	if c == nil {
		return Gear{}, false
	}
	g, ok := c.Gear[key]
	return g, ok
}

func (c *Content) QuestByKey(key string) (Quest, bool) {
	if c == nil {
		return Quest{}, false
	}
	q, ok := c.Quests[key]
	return q, ok
}

type gearPayload struct {
	Key          string   `json:"key"`
	Text         string   `json:"text"`
	Klass        string   `json:"klass"`
	SpecialClass string   `json:"specialClass"`
	Type         string   `json:"type"`
	Str          *float64 `json:"str"`
	Int          *float64 `json:"int"`
	Con          *float64 `json:"con"`
	Per          *float64 `json:"per"`
}

// ParseGear validates a raw gear record stored under key.
func ParseGear(key string, raw json.RawMessage) (Gear, error) {
	var p gearPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Gear{}, WrapError(ErrCodeValidation, "decode gear "+key, err)
	}
	if p.Key == "" {
		p.Key = key
	}
	if p.Key != key {
		return Gear{}, Validationf("gear %s: key mismatch %q", key, p.Key)
	}
	if p.Type == "" {
		return Gear{}, Validationf("gear %s: missing slot type", key)
	}
	class := Class(strings.ToLower(p.Klass))
	if class == "special" && p.SpecialClass != "" {
		class = Class(strings.ToLower(p.SpecialClass))
	}
	return Gear{
		Key:   key,
		Text:  p.Text,
		Class: class,
		Slot:  p.Type,
		Stats: AttributeSet{Str: deref(p.Str), Int: deref(p.Int), Con: deref(p.Con), Per: deref(p.Per)},
	}, nil
}

type questPayload struct {
	Key  string `json:"key"`
	Text string `json:"text"`
	Boss *struct {
		Name string  `json:"name"`
		HP   float64 `json:"hp"`
		Str  float64 `json:"str"`
		Def  float64 `json:"def"`
	} `json:"boss"`
	Collect map[string]struct {
		Count int `json:"count"`
	} `json:"collect"`
}

// ParseQuest validates a raw quest record stored under key.
func ParseQuest(key string, raw json.RawMessage) (Quest, error) {
	var p questPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Quest{}, WrapError(ErrCodeValidation, "decode quest "+key, err)
	}
	q := Quest{Key: key, Text: p.Text}
	if p.Boss != nil {
		if p.Boss.HP < 0 || p.Boss.Str < 0 {
			return Quest{}, Validationf("quest %s: negative boss stats", key)
		}
		q.Boss = &Boss{Name: p.Boss.Name, HP: p.Boss.HP, Strength: p.Boss.Str, Defense: p.Boss.Def}
	}
	if len(p.Collect) > 0 {
		q.Collect = make(map[string]int, len(p.Collect))
		for item, goal := range p.Collect {
			q.Collect[item] = goal.Count
		}
	}
	return q, nil
}

type spellPayload struct {
	Key    string  `json:"key"`
	Text   string  `json:"text"`
	Mana   float64 `json:"mana"`
	Target string  `json:"target"`
}

// ParseSpell validates a raw spell record of the given class stored under key.
func ParseSpell(class, key string, raw json.RawMessage) (Spell, error) {
	var p spellPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Spell{}, WrapError(ErrCodeValidation, "decode spell "+key, err)
	}
	if p.Mana < 0 {
		return Spell{}, Validationf("spell %s: negative mana cost", key)
	}
	return Spell{Key: key, Text: p.Text, Class: class, Mana: p.Mana, Target: p.Target}, nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
