package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// QuestProgress is either boss progress (HP/Rage) or collection progress (Collect).
type QuestProgress struct {
	BossHP  float64        `json:"boss_hp"`
	Rage    float64        `json:"rage"`
	Collect map[string]int `json:"collect,omitempty"`
	Up      float64        `json:"up"`
	Down    float64        `json:"down"`
}

// PartyQuest describes the quest the party is running. Completed holds the
// completion marker and is empty while the quest is ongoing.
type PartyQuest struct {
	Key       string        `json:"key"`
	Active    bool          `json:"active"`
	Completed string        `json:"completed,omitempty"`
	Progress  QuestProgress `json:"progress"`
}

// Ongoing reports whether the quest is active and has not been completed.
func (q PartyQuest) Ongoing() bool {
	return q.Key != "" && q.Active && q.Completed == ""
}

type ChatMessage struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	User      string    `json:"user,omitempty"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Own       bool      `json:"own"`
}

// Party is the group the user belongs to. LedByUser and the Own flag on chat
// messages are resolved against the current user's id during assembly.
type Party struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	LeaderID    string        `json:"leader_id,omitempty"`
	MemberCount int           `json:"member_count"`
	Quest       PartyQuest    `json:"quest"`
	Chat        []ChatMessage `json:"chat,omitempty"`
	LedByUser   bool          `json:"led_by_user"`
}

// Clone returns a deep copy of the party.
func (p *Party) Clone() *Party {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Chat = append([]ChatMessage(nil), p.Chat...)
	if p.Quest.Progress.Collect != nil {
		cp.Quest.Progress.Collect = make(map[string]int, len(p.Quest.Progress.Collect))
		for k, v := range p.Quest.Progress.Collect {
			cp.Quest.Progress.Collect[k] = v
		}
	}
	return &cp
}

type partyPayload struct {
	ID          string          `json:"id"`
	MongoID     string          `json:"_id"`
	Name        string          `json:"name"`
	Leader      json.RawMessage `json:"leader"`
	MemberCount int             `json:"memberCount"`
	Quest       struct {
		Key       string  `json:"key"`
		Active    bool    `json:"active"`
		Completed *string `json:"completed"`
		Progress  struct {
			HP      float64        `json:"hp"`
			Rage    float64        `json:"rage"`
			Collect map[string]int `json:"collect"`
			Up      float64        `json:"up"`
			Down    float64        `json:"down"`
		} `json:"progress"`
	} `json:"quest"`
	Chat []struct {
		ID        string          `json:"id"`
		UUID      string          `json:"uuid"`
		User      string          `json:"user"`
		Text      string          `json:"text"`
		Timestamp json.RawMessage `json:"timestamp"`
	} `json:"chat"`
}

// ParseParty validates a raw party record. currentUserID resolves leadership and
// chat ownership; it may be empty when unknown.
func ParseParty(raw json.RawMessage, currentUserID string) (*Party, error) {
	var p partyPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, WrapError(ErrCodeValidation, "decode party", err)
	}
	id := firstNonEmpty(p.ID, p.MongoID)
	if id == "" {
		return nil, Validationf("party: missing id")
	}
	if p.MemberCount < 0 {
		return nil, Validationf("party %s: negative member count %d", id, p.MemberCount)
	}

	party := &Party{
		ID:          id,
		Name:        p.Name,
		LeaderID:    decodeLeader(p.Leader),
		MemberCount: p.MemberCount,
		Quest: PartyQuest{
			Key:    p.Quest.Key,
			Active: p.Quest.Active,
			Progress: QuestProgress{
				BossHP:  p.Quest.Progress.HP,
				Rage:    p.Quest.Progress.Rage,
				Collect: p.Quest.Progress.Collect,
				Up:      p.Quest.Progress.Up,
				Down:    p.Quest.Progress.Down,
			},
		},
	}
	if p.Quest.Completed != nil {
		party.Quest.Completed = *p.Quest.Completed
	}
	party.LedByUser = currentUserID != "" && party.LeaderID == currentUserID

	for _, msg := range p.Chat {
		if msg.ID == "" {
			continue
		}
		party.Chat = append(party.Chat, ChatMessage{
			ID:        msg.ID,
			UserID:    msg.UUID,
			User:      msg.User,
			Text:      msg.Text,
			Timestamp: decodeTimestamp(msg.Timestamp),
			Own:       currentUserID != "" && msg.UUID == currentUserID,
		})
	}
	return party, nil
}

func decodeLeader(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	var obj struct {
		ID      string `json:"id"`
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return firstNonEmpty(obj.ID, obj.MongoID)
	}
	return ""
}

// decodeTimestamp accepts epoch milliseconds or an RFC 3339 string.
func decodeTimestamp(raw json.RawMessage) time.Time {
	if len(raw) == 0 {
		return time.Time{}
	}
	var ms float64
	if err := json.Unmarshal(raw, &ms); err == nil {
		return time.UnixMilli(int64(ms)).UTC()
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if parsed, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s)); err == nil {
			return parsed.UTC()
		}
	}
	return time.Time{}
}
