package usecases

import (
	"fmt"

	"github.com/0xcro3dile/creditrag-go/internal/domain/entities"
)

// RoutingPolicy decides between the local model and cloud escalation.
// Simulation questions need a stricter threshold than the rest.
type RoutingPolicy struct {
	Base       float64
	Simulation float64
}

// DefaultRoutingPolicy uses 0.55 and 0.65.
var DefaultRoutingPolicy = RoutingPolicy{Base: 0.55, Simulation: 0.65}

// Decide is pure: the same intent and confidence always give the same result.
func (p RoutingPolicy) Decide(intent entities.Intent, confidence float64) entities.Decision {
	if confidence < p.Base {
		return entities.DecisionCloud
	}
	if intent == entities.IntentSimulation && confidence < p.Simulation {
		return entities.DecisionCloud
	}
	return entities.DecisionLocal
}

// Validate requires 0 < Base <= Simulation <= 1.
func (p RoutingPolicy) Validate() error {
	if p.Base <= 0 || p.Base > 1 {
		return fmt.Errorf("%w: base threshold %v must be in (0, 1]", entities.ErrInvalidConfig, p.Base)
	}
	if p.Simulation < p.Base || p.Simulation > 1 {
		return fmt.Errorf("%w: simulation threshold %v must be in [%v, 1]", entities.ErrInvalidConfig, p.Simulation, p.Base)
	}
	return nil
}
