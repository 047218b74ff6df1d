package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTaskVariants(t *testing.T) {
	habit, err := ParseTask(json.RawMessage(`{"id":"h1","type":"habit","text":"Stretch","priority":1.5,"up":true,"down":false,"counterUp":3,"tags":["a","a",""]}`))
	require.NoError(t, err)
	assert.Equal(t, KindHabit, habit.Kind)
	assert.Equal(t, PriorityMedium, habit.Priority)
	assert.Equal(t, AttrStrength, habit.Attribute)
	assert.Equal(t, []string{"a"}, habit.TagIDs)
	require.NotNil(t, habit.Habit)
	assert.True(t, habit.Habit.Up)
	assert.False(t, habit.Habit.Down)
	assert.Equal(t, 3, habit.Habit.CounterUp)
	assert.Nil(t, habit.Daily)

	daily, err := ParseTask(json.RawMessage(`{"_id":"d1","type":"daily","attribute":"CON","isDue":true,"streak":4,
		"checklist":[{"id":"c1","text":"one","completed":true},{"id":"c2","text":"two"}],
		"challenge":{"id":"ch1","shortName":"Run","taskId":"src-1"}}`))
	require.NoError(t, err)
	assert.Equal(t, "d1", daily.ID)
	assert.Equal(t, AttrConstitution, daily.Attribute)
	require.NotNil(t, daily.Daily)
	assert.True(t, daily.Daily.IsDue)
	assert.Equal(t, 4, daily.Daily.Streak)
	done, total := ChecklistProgress(daily.Daily.Checklist)
	assert.Equal(t, 1, done)
	assert.Equal(t, 2, total)
	require.NotNil(t, daily.Challenge)
	assert.Equal(t, "Run", daily.Challenge.ShortName)

	todo, err := ParseTask(json.RawMessage(`{"id":"t1","type":"todo","date":"2026-01-02"}`))
	require.NoError(t, err)
	require.NotNil(t, todo.Todo)
	require.NotNil(t, todo.Todo.DueDate)
	assert.Equal(t, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), *todo.Todo.DueDate)

	undated, err := ParseTask(json.RawMessage(`{"id":"t2","type":"todo","date":""}`))
	require.NoError(t, err)
	assert.Nil(t, undated.Todo.DueDate)

	reward, err := ParseTask(json.RawMessage(`{"id":"r1","type":"reward","value":25}`))
	require.NoError(t, err)
	require.NotNil(t, reward.Reward)
	assert.Equal(t, 25.0, reward.Reward.Cost)
}

func TestParseTaskRejectsMalformedRecords(t *testing.T) {
	cases := map[string]string{
		"not json":        `[`,
		"missing id":      `{"type":"habit"}`,
		"unknown type":    `{"id":"x","type":"quest"}`,
		"bad priority":    `{"id":"x","type":"habit","priority":3}`,
		"bad attribute":   `{"id":"x","type":"habit","attribute":"luck"}`,
		"negative streak": `{"id":"x","type":"daily","streak":-1}`,
		"checklist no id": `{"id":"x","type":"todo","checklist":[{"text":"a"}]}`,
		"bad due date":    `{"id":"x","type":"todo","date":"tomorrow"}`,
		"negative reward": `{"id":"x","type":"reward","value":-5}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTask(json.RawMessage(raw))
			require.Error(t, err)
			assert.True(t, IsDomainError(err, ErrCodeValidation), err.Error())
		})
	}
}

func TestNormalizePriority(t *testing.T) {
	p, ok := NormalizePriority(0.1000000001)
	assert.True(t, ok)
	assert.Equal(t, PriorityTrivial, p)

	_, ok = NormalizePriority(0.5)
	assert.False(t, ok)
}

func TestTaskCloneIsDeep(t *testing.T) {
	dmg := 1.5
	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	orig := Task{
		ID:     "d1",
		TagIDs: []string{"a"},
		Daily:  &DailyDetails{Checklist: []ChecklistItem{{ID: "c1"}}, UserDamage: &dmg},
		Todo:   &TodoDetails{DueDate: &due},
	}
	cp := orig.Clone()
	cp.TagIDs[0] = "b"
	cp.Daily.Checklist[0].Completed = true
	*cp.Daily.UserDamage = 9
	*cp.Todo.DueDate = due.AddDate(1, 0, 0)

	assert.Equal(t, "a", orig.TagIDs[0])
	assert.False(t, orig.Daily.Checklist[0].Completed)
	assert.Equal(t, 1.5, *orig.Daily.UserDamage)
	assert.Equal(t, due, *orig.Todo.DueDate)
}

func TestResetDerivedClearsEngineFields(t *testing.T) {
	dmg := 2.0
	task := Task{
		Status:   StatusDue,
		TagNames: []string{"Mind"},
		Daily:    &DailyDetails{UserDamage: &dmg, PartyDamage: &dmg},
	}
	task.ResetDerived()
	assert.Empty(t, task.Status)
	assert.Nil(t, task.TagNames)
	assert.Nil(t, task.Daily.UserDamage)
	assert.Nil(t, task.Daily.PartyDamage)
}
