// Package roast defines the core domain types and capability interfaces
// for the site roasting pipeline: screenshot critique results, durable
// records, the failure taxonomy, and the service that coordinates them.
package roast

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Critique is the schema-validated verdict produced by the vision model.
// Every field is mandatory; a critique that fails Validate is a generation
// failure and is never coerced into shape.
type Critique struct {
	Verdict               int                   `json:"verdict"`
	MayhemMeter           int                   `json:"mayhemMeter"`
	Profile               string                `json:"profile"`
	OpeningStatement      string                `json:"openingStatement"`
	CaseFiles             string                `json:"caseFiles"`
	SpiritAnimal          string                `json:"spiritAnimal"`
	RehabilitationProgram RehabilitationProgram `json:"rehabilitationProgram"`
}

// RehabilitationProgram lists what the roasted site should do about itself.
type RehabilitationProgram struct {
	PriorityDirective string             `json:"priorityDirective"`
	CorrectiveActions []CorrectiveAction `json:"correctiveActions"`
}

// CorrectiveAction pairs a design offense with its remedy.
type CorrectiveAction struct {
	Offense string `json:"offense"`
	Remedy  string `json:"remedy"`
}

// MinCorrectiveActions is the minimum number of corrective actions a valid
// critique must carry.
const MinCorrectiveActions = 4

// Validate checks the critique against the schema: all fields present,
// verdict in [1,100], mayhemMeter in [1,10], at least MinCorrectiveActions
// fully populated corrective actions.
func (c Critique) Validate() error {
	if c.Verdict < 1 || c.Verdict > 100 {
		return fmt.Errorf("verdict %d out of range [1,100]", c.Verdict)
	}
	if c.MayhemMeter < 1 || c.MayhemMeter > 10 {
		return fmt.Errorf("mayhemMeter %d out of range [1,10]", c.MayhemMeter)
	}
	for field, value := range map[string]string{
		"profile":          c.Profile,
		"openingStatement": c.OpeningStatement,
		"caseFiles":        c.CaseFiles,
		"spiritAnimal":     c.SpiritAnimal,
	} {
		if value == "" {
			return fmt.Errorf("missing required field %q", field)
		}
	}
	if c.RehabilitationProgram.PriorityDirective == "" {
		return fmt.Errorf("missing required field %q", "rehabilitationProgram.priorityDirective")
	}
	if n := len(c.RehabilitationProgram.CorrectiveActions); n < MinCorrectiveActions {
		return fmt.Errorf("correctiveActions has %d entries, need at least %d", n, MinCorrectiveActions)
	}
	for i, action := range c.RehabilitationProgram.CorrectiveActions {
		if action.Offense == "" || action.Remedy == "" {
			return fmt.Errorf("correctiveActions[%d] is incomplete", i)
		}
	}
	return nil
}

// DecodeCritique parses raw JSON into a Critique, rejecting unknown fields
// and validating the result. The provider's own schema enforcement is
// advisory; this is the check that counts.
func DecodeCritique(data []byte) (Critique, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var c Critique
	if err := dec.Decode(&c); err != nil {
		return Critique{}, fmt.Errorf("decode critique: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Critique{}, fmt.Errorf("validate critique: %w", err)
	}
	return c, nil
}

// Record is the durable unit combining the source URL, the critique, and
// the stored screenshot's public address. A record exists in storage if and
// only if both the upload and the generation that produced it succeeded.
// Records are immutable once inserted.
type Record struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Critique  Critique  `json:"critique"`
	ImageURL  string    `json:"imageUrl"`
	VisitorID string    `json:"visitorId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
