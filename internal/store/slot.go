// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package store

import (
	"context"
	"errors"
	"sync"
)

// SlotPhase is where a slot is in its lifecycle.
type SlotPhase int

const (
	SlotIdle SlotPhase = iota
	SlotSelected
	SlotSubmitting
)

func (p SlotPhase) String() string {
	switch p {
	case SlotSelected:
		return "selected"
	case SlotSubmitting:
		return "submitting"
	default:
		return "idle"
	}
}

// Slot holds at most one entity a dialog operates on.
//
// Slot values are copied into snapshots; FieldErrors is replaced, never
// mutated in place, so copies stay independent.
type Slot[T any] struct {
	Phase       SlotPhase         `json:"phase"`
	Value       T                 `json:"value"`
	Error       string            `json:"error,omitempty"`
	FieldErrors map[string]string `json:"field_errors,omitempty"`
}

// Open reports whether the slot holds an entity, i.e. its dialog is shown.
func (s Slot[T]) Open() bool {
	return s.Phase != SlotIdle
}

// Submitting reports whether a mutation for the slot is in flight.
func (s Slot[T]) Submitting() bool {
	return s.Phase == SlotSubmitting
}

// Select assigns v and clears any previous error. A submitting slot is left
// alone so an in-flight mutation cannot be retargeted.
func (s *Slot[T]) Select(v T) bool {
	if s.Phase == SlotSubmitting {
		return false
	}
	*s = Slot[T]{Phase: SlotSelected, Value: v}
	return true
}

// Clear returns the slot to idle unless it is submitting.
func (s *Slot[T]) Clear() bool {
	if s.Phase == SlotSubmitting {
		return false
	}
	*s = Slot[T]{}
	return true
}

// begin moves Selected to Submitting and returns the held value.
func (s *Slot[T]) begin() (T, error) {
	var zero T
	switch s.Phase {
	case SlotIdle:
		return zero, ErrNoSelection
	case SlotSubmitting:
		return zero, ErrBusy
	}
	s.Phase = SlotSubmitting
	s.Error = ""
	s.FieldErrors = nil
	return s.Value, nil
}

// succeed ends a submission.
func (s *Slot[T]) succeed() {
	*s = Slot[T]{}
}

// fail ends a submission and keeps the entity for a retry.
func (s *Slot[T]) fail(err error) {
	s.Phase = SlotSelected
	s.Error = errorText(err)
	s.FieldErrors = fieldErrors(err)
}

// reject records a failure detected before submitting.
func (s *Slot[T]) reject(err error) {
	if s.Phase == SlotIdle {
		return
	}
	s.Error = errorText(err)
	s.FieldErrors = fieldErrors(err)
}

// submit runs one slot mutation: begin under mu, optional precheck, call
// without the lock, then succeed or fail under mu. Observers are notified
// after each transition.
func submit[T any](ctx context.Context, mu *sync.Mutex, slot *Slot[T], obs *observers, precheck func(T) error, call func(context.Context, T) error) error {
	mu.Lock()
	v, err := slot.begin()
	if err == nil && precheck != nil {
		if perr := precheck(v); perr != nil {
			slot.fail(perr)
			err = perr
		}
	}
	mu.Unlock()
	if errors.Is(err, ErrNoSelection) || errors.Is(err, ErrBusy) {
		return err
	}
	obs.notify()
	if err != nil {
		return err
	}

	callErr := call(ctx, v)

	mu.Lock()
	if callErr != nil {
		slot.fail(callErr)
	} else {
		slot.succeed()
	}
	mu.Unlock()
	obs.notify()
	return callErr
}
