package usecase

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"golang.org/x/text/unicode/norm"

	"github.com/atvirokodosprendimai/activitylog/internal/core/domain"
)

// ChangeAccumulator keeps pending field edits per editing context. Each
// context owns its own lock; contexts never contend with each other.
type ChangeAccumulator struct {
	contexts sync.Map // domain.ContextKey -> *fieldSet
}

type fieldSet struct {
	mu     sync.Mutex
	order  []string
	fields map[string]*domain.PendingChange
	closed bool
}

func NewChangeAccumulator() *ChangeAccumulator {
	return &ChangeAccumulator{}
}

// RecordChange stores an edit. The first edit of a field captures oldValue as
// the original; later edits only move the current value.
func (a *ChangeAccumulator) RecordChange(key domain.ContextKey, fieldKey, displayLabel string, oldValue, newValue any) {
	for {
		v, _ := a.contexts.LoadOrStore(key, &fieldSet{fields: make(map[string]*domain.PendingChange)})
		set := v.(*fieldSet)

		set.mu.Lock()
		if set.closed {
			// Taken or cleared after the load; retry on a fresh set.
			set.mu.Unlock()
			a.contexts.CompareAndDelete(key, set)
			continue
		}
		set.record(fieldKey, displayLabel, oldValue, newValue)
		set.mu.Unlock()
		return
	}
}

func (s *fieldSet) record(fieldKey, displayLabel string, oldValue, newValue any) {
	if pc, ok := s.fields[fieldKey]; ok {
		pc.CurrentValue = newValue
		if displayLabel != "" {
			pc.DisplayLabel = displayLabel
		}
		return
	}
	if displayLabel == "" {
		displayLabel = fieldKey
	}
	s.order = append(s.order, fieldKey)
	s.fields[fieldKey] = &domain.PendingChange{
		FieldKey:      fieldKey,
		DisplayLabel:  displayLabel,
		OriginalValue: oldValue,
		CurrentValue:  newValue,
	}
}

// ComputeDelta returns the net changes of a context in first-touch order.
// Fields whose current value equals the original are left out.
func (a *ChangeAccumulator) ComputeDelta(key domain.ContextKey) []domain.FieldDelta {
	v, ok := a.contexts.Load(key)
	if !ok {
		return nil
	}
	set := v.(*fieldSet)
	set.mu.Lock()
	defer set.mu.Unlock()
	return set.delta()
}

func (a *ChangeAccumulator) Clear(key domain.ContextKey) {
	a.Take(key)
}

// Take computes the delta and clears the context in one step. An edit racing
// with Take lands either in the returned delta or in the next set, never in
// the discarded one.
func (a *ChangeAccumulator) Take(key domain.ContextKey) []domain.FieldDelta {
	v, ok := a.contexts.LoadAndDelete(key)
	if !ok {
		return nil
	}
	set := v.(*fieldSet)
	set.mu.Lock()
	defer set.mu.Unlock()
	set.closed = true
	return set.delta()
}

// Pending reports how many fields have been touched, net-zero ones included.
func (a *ChangeAccumulator) Pending(key domain.ContextKey) int {
	v, ok := a.contexts.Load(key)
	if !ok {
		return 0
	}
	set := v.(*fieldSet)
	set.mu.Lock()
	defer set.mu.Unlock()
	return len(set.fields)
}

func (s *fieldSet) delta() []domain.FieldDelta {
	out := make([]domain.FieldDelta, 0, len(s.order))
	for _, fieldKey := range s.order {
		pc := s.fields[fieldKey]
		if sameValue(pc.OriginalValue, pc.CurrentValue) {
			continue
		}
		out = append(out, domain.FieldDelta{
			FieldKey:      pc.FieldKey,
			Label:         pc.DisplayLabel,
			OriginalValue: pc.OriginalValue,
			CurrentValue:  pc.CurrentValue,
		})
	}
	return out
}

func sameValue(a, b any) bool {
	return canonicalValue(a) == canonicalValue(b)
}

// canonicalValue renders a field value for comparison and display. nil and the
// empty string are the same value; strings are NFC-normalised.
func canonicalValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return norm.NFC.String(t)
	case json.Number:
		return canonicalNumber(t.String())
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case fmt.Stringer:
		return norm.NFC.String(t.String())
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

func canonicalNumber(s string) string {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
