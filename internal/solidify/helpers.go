package solidify

import (
	"fmt"

	"github.com/asteria-lang/asteria/internal/air"
	"github.com/asteria-lang/asteria/internal/avmc"
	"github.com/asteria-lang/asteria/internal/ref"
	"github.com/asteria-lang/asteria/internal/value"
)

func undeclaredName(name string) error {
	return fmt.Errorf("solidify: undeclared name %q", name)
}

// runForEach drives the three ForEach range categories: array (index,
// a reference ending in array_index(i)), object (key, a reference ending
// in object_key), and null (zero iterations). The value name is bound as
// a live reference into rangeRef rather than a copy, so assignment inside
// the loop body mutates the original container.
func runForEach(m avmc.Machine, keyName, valueName string, rangeRef avmc.Ref, rangeVal value.Value, body *avmc.Queue) (air.StatusCode, error) {
	switch rangeVal.Tag() {
	case value.Null:
		return air.StatusNext, nil
	case value.Array:
		n := len(rangeVal.AsArray().Elems)
		for i := 0; i < n; i++ {
			elemRef, err := rangeRef.PushModifier(ref.IndexModifier(int64(i)))
			if err != nil {
				return air.StatusNext, err
			}
			st, err := runForEachIteration(m, keyName, valueName, value.Int(int64(i)), elemRef, body)
			if err != nil {
				return air.StatusNext, err
			}
			if brk, stop := loopBreak(st, loopFor); stop {
				return brk, nil
			}
		}
		return air.StatusNext, nil
	case value.Object:
		for _, k := range rangeVal.AsObject().Keys() {
			elemRef, err := rangeRef.PushModifier(ref.KeyModifier(k))
			if err != nil {
				return air.StatusNext, err
			}
			st, err := runForEachIteration(m, keyName, valueName, value.Str(k), elemRef, body)
			if err != nil {
				return air.StatusNext, err
			}
			if brk, stop := loopBreak(st, loopFor); stop {
				return brk, nil
			}
		}
		return air.StatusNext, nil
	default:
		return air.StatusNext, fmt.Errorf("solidify: for-each over unsupported type %q", rangeVal.Tag())
	}
}

func runForEachIteration(m avmc.Machine, keyName, valueName string, key value.Value, valRef avmc.Ref, body *avmc.Queue) (air.StatusCode, error) {
	scope := m.EnterBlock(false)
	if keyName != "" {
		if err := m.Declare(keyName, true); err != nil {
			return m.LeaveBlock(scope, air.StatusNext, err)
		}
		m.Push(ref.Constant(key))
		if err := m.InitializeLocal(keyName); err != nil {
			return m.LeaveBlock(scope, air.StatusNext, err)
		}
	}
	m.Push(valRef)
	if err := m.InitializeRefLocal(valueName); err != nil {
		return m.LeaveBlock(scope, air.StatusNext, err)
	}
	st, err := body.Run(m)
	return m.LeaveBlock(scope, st, err)
}
