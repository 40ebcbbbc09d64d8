package core

import "fmt"

// OrderStatus represents the state of an order
type OrderStatus string

const (
	OrderStatusPending       OrderStatus = "pending"
	OrderStatusInPreparation OrderStatus = "in_preparation"
	OrderStatusCompleted     OrderStatus = "completed"
	OrderStatusCancelled     OrderStatus = "cancelled"
)

// OrderStatuses lists every known status in display order
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusInPreparation,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

// Valid reports whether s is a known status
func (s OrderStatus) Valid() bool {
	for _, known := range OrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseOrderStatus validates a raw status value
func ParseOrderStatus(raw string) (OrderStatus, error) {
	status := OrderStatus(raw)
	if !status.Valid() {
		return "", fmt.Errorf("%w: unknown order status %q", ErrValidation, raw)
	}
	return status, nil
}

// Transition classifies a status change against the counted (completed) state
type Transition string

const (
	TransitionNone  Transition = "none"
	TransitionInto  Transition = "into_completed"
	TransitionOutOf Transition = "out_of_completed"
)

// ClassifyTransition reports whether prev -> next crosses the completed boundary.
// Only a crossing moves sales statistics; completed -> completed is TransitionNone.
func ClassifyTransition(prev, next OrderStatus) Transition {
	switch {
	case prev != OrderStatusCompleted && next == OrderStatusCompleted:
		return TransitionInto
	case prev == OrderStatusCompleted && next != OrderStatusCompleted:
		return TransitionOutOf
	default:
		return TransitionNone
	}
}

// TransitionPolicy decides which status edges an admin may apply
type TransitionPolicy interface {
	Allowed(from, to OrderStatus) bool
}

type anyTransition struct{}

func (anyTransition) Allowed(from, to OrderStatus) bool {
	return from.Valid() && to.Valid()
}

// AnyTransition permits every edge between known statuses, including reverting a completed order
var AnyTransition TransitionPolicy = anyTransition{}

// transitionTable is an explicit finite-state machine
type transitionTable map[OrderStatus][]OrderStatus

func (t transitionTable) Allowed(from, to OrderStatus) bool {
	for _, next := range t[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StrictTransitions is the opt-in kitchen workflow. Completed orders may still be
// cancelled so a refund keeps the statistics correct.
var StrictTransitions TransitionPolicy = transitionTable{
	OrderStatusPending:       {OrderStatusInPreparation, OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusInPreparation: {OrderStatusCompleted, OrderStatusCancelled, OrderStatusPending},
	OrderStatusCompleted:     {OrderStatusCancelled},
	OrderStatusCancelled:     {},
}
