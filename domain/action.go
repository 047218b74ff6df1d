package domain

// Direction is the scoring direction of a task.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

func (d Direction) IsValid() bool {
	return d == DirectionUp || d == DirectionDown
}

// KeepPolicy decides what happens to challenge tasks when leaving a challenge.
type KeepPolicy string

const (
	KeepAll   KeepPolicy = "keep-all"
	RemoveAll KeepPolicy = "remove-all"
)

func (k KeepPolicy) IsValid() bool {
	return k == KeepAll || k == RemoveAll
}

// ScoreResult is the remote answer to scoring a task.
type ScoreResult struct {
	Delta      float64 `json:"delta"`
	Health     float64 `json:"hp"`
	Mana       float64 `json:"mp"`
	Experience float64 `json:"exp"`
	Gold       float64 `json:"gp"`
	Level      int     `json:"lvl"`
}
