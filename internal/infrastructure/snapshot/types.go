package snapshot

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DefaultRetain is the number of processed snapshots kept when none is configured.
const DefaultRetain = 5

// Record is one archived snapshot.
type Record struct {
	ID       string          `json:"id"`
	SavedAt  time.Time       `json:"saved_at"`
	Snapshot json.RawMessage `json:"snapshot"`
}

func (r *Record) normalize() {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.SavedAt.IsZero() {
		r.SavedAt = time.Now()
	}
}
