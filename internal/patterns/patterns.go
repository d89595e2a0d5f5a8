// Package patterns defines the hand-pattern validation bridge. Pattern
// legality is checked by an external collaborator; the server trusts
// its verdict and never re-derives NMJL card legality itself.
package patterns

import (
	"context"
	"strings"

	"github.com/thetrev68/american-mahjong-server/internal/tiles"
)

// Verdict is the bridge's answer for a claimed winning hand.
type Verdict struct {
	IsValid     bool     `json:"isValid"`
	Violations  []string `json:"violations,omitempty"`
	Score       int      `json:"score,omitempty"`
	BonusPoints int      `json:"bonusPoints,omitempty"`
}

// Reason flattens the violations for client display.
func (v Verdict) Reason() string {
	return strings.Join(v.Violations, "; ")
}

// Validator is the validation bridge interface.
type Validator interface {
	Validate(ctx context.Context, hand []tiles.Tile, patternID string) (Verdict, error)
}

// StaticValidator is the default bridge wiring: it accepts any
// structurally complete 14-tile claim. Deployments with a real NMJL
// card checker swap it for a bridge-backed implementation.
type StaticValidator struct {
	BaseScore int
}

// NewStaticValidator returns a StaticValidator with the standard base
// score.
func NewStaticValidator() *StaticValidator {
	return &StaticValidator{BaseScore: 25}
}

// Validate checks only the structural shape of the claim.
func (sv *StaticValidator) Validate(_ context.Context, hand []tiles.Tile, patternID string) (Verdict, error) {
	var violations []string
	if len(hand) != 14 {
		violations = append(violations, "a winning hand must contain exactly 14 tiles")
	}
	if patternID == "" {
		violations = append(violations, "no pattern claimed")
	}
	if len(violations) > 0 {
		return Verdict{IsValid: false, Violations: violations}, nil
	}
	return Verdict{IsValid: true, Score: sv.BaseScore}, nil
}
