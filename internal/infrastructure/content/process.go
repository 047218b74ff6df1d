package content

import (
	"encoding/json"
	"sort"

	"go.uber.org/zap"

	"github.com/fastygo/questboard/domain"
)

type rawContent struct {
	Gear struct {
		Flat map[string]json.RawMessage `json:"flat"`
	} `json:"gear"`
	Quests map[string]json.RawMessage `json:"quests"`
	Spells map[string]json.RawMessage `json:"spells"`
}

// Process splits the raw reference document into gear, quest and spell tables.
// Malformed items are skipped and logged; only an undecodable document fails.
func Process(raw []byte, logger *zap.Logger) (*domain.Content, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var doc rawContent
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, domain.WrapError(domain.ErrCodeValidation, "decode reference data", err)
	}

	out := domain.NewContent()
	skipped := 0

	for _, key := range sortedKeys(doc.Gear.Flat) {
		gear, err := domain.ParseGear(key, doc.Gear.Flat[key])
		if err != nil {
			skipped++
			logger.Warn("skipping malformed gear", zap.String("key", key), zap.Error(err))
			continue
		}
		out.Gear[key] = gear
	}

	for _, key := range sortedKeys(doc.Quests) {
		quest, err := domain.ParseQuest(key, doc.Quests[key])
		if err != nil {
			skipped++
			logger.Warn("skipping malformed quest", zap.String("key", key), zap.Error(err))
			continue
		}
		out.Quests[key] = quest
	}

	for _, class := range sortedKeys(doc.Spells) {
		var spells map[string]json.RawMessage
		if err := json.Unmarshal(doc.Spells[class], &spells); err != nil {
			skipped++
			logger.Warn("skipping malformed spell class", zap.String("class", class), zap.Error(err))
			continue
		}
		for _, key := range sortedKeys(spells) {
			spell, err := domain.ParseSpell(class, key, spells[key])
			if err != nil {
				skipped++
				logger.Warn("skipping malformed spell", zap.String("class", class), zap.String("key", key), zap.Error(err))
				continue
			}
			out.Spells[key] = spell
		}
	}

	logger.Debug("reference data processed",
		zap.Int("gear", len(out.Gear)),
		zap.Int("quests", len(out.Quests)),
		zap.Int("spells", len(out.Spells)),
		zap.Int("skipped", skipped))
	return out, nil
}

func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
