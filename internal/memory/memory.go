// Package memory persists per-user facts and conversation turns.
//
// Facts are upserted on (user_id, fact_key) so a changed preference
// replaces the previous value instead of accumulating. Conversation
// turns are append-only; nothing in this package mutates or deletes
// them after insert.
package memory

import (
	"time"

	"github.com/google/uuid"
)

// Fact types recognized by the memory layer.
const (
	FactInfrastructure  = "infrastructure"
	FactPainPoint       = "pain_point"
	FactBusinessContext = "business_context"
	FactPreference      = "preference"
	FactPersonal        = "personal"
	FactRelationship    = "relationship"
	FactLearningGoal    = "learning_goal"
)

var factTypes = map[string]struct{}{
	FactInfrastructure:  {},
	FactPainPoint:       {},
	FactBusinessContext: {},
	FactPreference:      {},
	FactPersonal:        {},
	FactRelationship:    {},
	FactLearningGoal:    {},
}

// ValidFactType reports whether t is one of the enumerated fact types.
func ValidFactType(t string) bool {
	_, ok := factTypes[t]
	return ok
}

// Fact is one persisted statement about a user.
type Fact struct {
	ID               uuid.UUID
	UserID           string
	FactType         string
	FactKey          string
	FactValue        string
	Embedding        []float32
	Confidence       float64
	TimesReferenced  int
	LastReferencedAt time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Turn is one completed user/assistant exchange.
type Turn struct {
	ID          uuid.UUID
	UserID      string
	UserMessage string
	BotResponse string
	CreatedAt   time.Time
}
