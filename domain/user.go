package domain

import (
	"encoding/json"
	"math"
	"strings"
)

// Attribute is one of the four character attributes.
type Attribute string

const (
	AttrStrength     Attribute = "str"
	AttrIntelligence Attribute = "int"
	AttrConstitution Attribute = "con"
	AttrPerception   Attribute = "per"
)

// Attributes lists every attribute in display order.
var Attributes = []Attribute{AttrStrength, AttrIntelligence, AttrConstitution, AttrPerception}

func (a Attribute) IsValid() bool {
	switch a {
	case AttrStrength, AttrIntelligence, AttrConstitution, AttrPerception:
		return true
	default:
		return false
	}
}

// AttributeSet holds one value per attribute.
type AttributeSet struct {
	Str float64 `json:"str"`
	Int float64 `json:"int"`
	Con float64 `json:"con"`
	Per float64 `json:"per"`
}

func (s AttributeSet) Get(a Attribute) float64 {
	switch a {
	case AttrStrength:
		return s.Str
	case AttrIntelligence:
		return s.Int
	case AttrConstitution:
		return s.Con
	case AttrPerception:
		return s.Per
	default:
		return 0
	}
}

func (s *AttributeSet) Set(a Attribute, v float64) {
	switch a {
	case AttrStrength:
		s.Str = v
	case AttrIntelligence:
		s.Int = v
	case AttrConstitution:
		s.Con = v
	case AttrPerception:
		s.Per = v
	}
}

func (s AttributeSet) finite() bool {
	for _, v := range []float64{s.Str, s.Int, s.Con, s.Per} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Class is the user's class affiliation. Gear additionally uses ClassBase.
type Class string

const (
	ClassWarrior Class = "warrior"
	ClassRogue   Class = "rogue"
	ClassWizard  Class = "wizard"
	ClassHealer  Class = "healer"
	ClassNone    Class = "none"
	ClassBase    Class = "base"
)

func (c Class) IsValid() bool {
	switch c {
	case ClassWarrior, ClassRogue, ClassWizard, ClassHealer, ClassNone:
		return true
	default:
		return false
	}
}

// User is the account owner as fetched from the remote service.
// Effective, MaxHealth and MaxMana are derived and never authoritative.
type User struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Health     float64           `json:"health"`
	Mana       float64           `json:"mana"`
	Experience float64           `json:"experience"`
	ToNextLvl  float64           `json:"to_next_level"`
	Gold       float64           `json:"gold"`
	Level      int               `json:"level"`
	Class      Class             `json:"class"`
	Points     AttributeSet      `json:"points"`
	Buffs      AttributeSet      `json:"buffs"`
	Stealth    float64           `json:"stealth"`
	Training   AttributeSet      `json:"training"`
	Equipped   map[string]string `json:"equipped,omitempty"`
	Sleeping   bool              `json:"sleeping"`
	PartyID    string            `json:"party_id,omitempty"`

	Effective AttributeSet `json:"effective"`
	MaxHealth float64      `json:"max_health"`
	MaxMana   float64      `json:"max_mana"`
}

// Clone returns a deep copy so readers never share mutable state with a snapshot.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	cp := *u
	if u.Equipped != nil {
		cp.Equipped = make(map[string]string, len(u.Equipped))
		for slot, key := range u.Equipped {
			cp.Equipped[slot] = key
		}
	}
	return &cp
}

// ResetDerived clears every engine-owned field.
func (u *User) ResetDerived() {
	u.Effective = AttributeSet{}
	u.MaxHealth = 0
	u.MaxMana = 0
}

type userPayload struct {
	ID      string `json:"id"`
	MongoID string `json:"_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
	Auth struct {
		Local struct {
			Username string `json:"username"`
		} `json:"local"`
	} `json:"auth"`
	Stats struct {
		HP          float64 `json:"hp"`
		MP          float64 `json:"mp"`
		Exp         float64 `json:"exp"`
		GP          float64 `json:"gp"`
		Lvl         int     `json:"lvl"`
		ToNextLevel float64 `json:"toNextLevel"`
		Class       string  `json:"class"`
		AttributeSet
		Buffs struct {
			AttributeSet
			Stealth float64 `json:"stealth"`
		} `json:"buffs"`
		Training AttributeSet `json:"training"`
	} `json:"stats"`
	Flags struct {
		ClassSelected *bool `json:"classSelected"`
	} `json:"flags"`
	Preferences struct {
		Sleep          bool `json:"sleep"`
		DisableClasses bool `json:"disableClasses"`
	} `json:"preferences"`
	Items struct {
		Gear struct {
			Equipped map[string]string `json:"equipped"`
		} `json:"gear"`
	} `json:"items"`
	Party struct {
		ID string `json:"_id"`
	} `json:"party"`
}

// ParseUser validates a raw user record.
func ParseUser(raw json.RawMessage) (*User, error) {
	var p userPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, WrapError(ErrCodeValidation, "decode user", err)
	}

	id := firstNonEmpty(p.ID, p.MongoID)
	if id == "" {
		return nil, Validationf("user: missing id")
	}
	if p.Stats.Lvl < 0 {
		return nil, Validationf("user %s: negative level %d", id, p.Stats.Lvl)
	}
	if !p.Stats.AttributeSet.finite() || !p.Stats.Buffs.AttributeSet.finite() || !p.Stats.Training.finite() {
		return nil, Validationf("user %s: non-finite attribute", id)
	}

	class := Class(strings.ToLower(strings.TrimSpace(p.Stats.Class)))
	classSelected := p.Flags.ClassSelected == nil || *p.Flags.ClassSelected
	if class == "" || !classSelected || p.Preferences.DisableClasses {
		class = ClassNone
	}
	if !class.IsValid() {
		return nil, Validationf("user %s: unknown class %q", id, p.Stats.Class)
	}

	equipped := make(map[string]string, len(p.Items.Gear.Equipped))
	for slot, key := range p.Items.Gear.Equipped {
		if key == "" {
			continue
		}
		equipped[slot] = key
	}

	return &User{
		ID:         id,
		Name:       firstNonEmpty(p.Profile.Name, p.Auth.Local.Username),
		Health:     p.Stats.HP,
		Mana:       p.Stats.MP,
		Experience: p.Stats.Exp,
		ToNextLvl:  p.Stats.ToNextLevel,
		Gold:       p.Stats.GP,
		Level:      p.Stats.Lvl,
		Class:      class,
		Points:     p.Stats.AttributeSet,
		Buffs:      p.Stats.Buffs.AttributeSet,
		Stealth:    p.Stats.Buffs.Stealth,
		Training:   p.Stats.Training,
		Equipped:   equipped,
		Sleeping:   p.Preferences.Sleep,
		PartyID:    p.Party.ID,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
