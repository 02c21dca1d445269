// Package hooks implements the per-iteration generators the load scenario
// calls by name.
//
// A hook fills iteration variables and then calls next exactly once. A hook
// that fails returns its error without calling next; the load tool decides
// what happens to the iteration.
//
// Artillery loads hooks from the JavaScript module named by the scenario's
// config.processor, resolved relative to the scenario file:
//
//	config:
//	  processor: "./random-values.js"
//
// It cannot call into Go. The functions here share their names and variable
// contract with that module and are run by "fanload sample <hook>" and the
// setup preflight, which warns when the scenario references a hook missing
// from this registry.
package hooks

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/torosent/fanload/internal/variables"
)

// Names the scenario file uses to reference the hooks.
const (
	NameRandomTemperature = "getRandomTemperature"
	NameRandomFan         = "getRandomFan"
	NameDecodeMedia       = "decodeBase64ToJSON"
)

// Variable keys read and written by the hooks.
const (
	VarTemperature = "temperature"
	VarData        = "data"
	VarLoopElement = "$loopElement"
	FieldVideos    = "videos"
)

// ErrMissingPayload is returned when the loop element carries no videos field.
var ErrMissingPayload = errors.New("loop element has no videos payload")

// Iteration is the mutable state of one virtual user iteration.
type Iteration struct {
	Vars variables.Store
}

// NewIteration creates an iteration with an empty variable store.
func NewIteration() *Iteration {
	return &Iteration{Vars: variables.NewStore()}
}

// NewIterationFrom creates an iteration seeded with a copy of vars.
func NewIterationFrom(vars map[string]any) *Iteration {
	return &Iteration{Vars: variables.NewStoreFrom(vars)}
}

// Hook generates or transforms iteration variables.
type Hook func(it *Iteration, next func()) error

// IntN returns a uniform integer in [0, n).
type IntN func(n int) int

// RandomTemperature sets temperature to a uniform integer in [1,100].
func RandomTemperature(intn IntN) Hook {
	return func(it *Iteration, next func()) error {
		it.Vars.Set(VarTemperature, intn(100)+1)
		next()
		return nil
	}
}

// RandomFan sets data to a synthesized fan with status 1 and coordinates in
// [0,999].
func RandomFan(intn IntN) Hook {
	return func(it *Iteration, next func()) error {
		it.Vars.Set(VarData, map[string]any{
			"serial":  fmt.Sprintf("SERIAL-%d", intn(10000)),
			"nome":    fmt.Sprintf("Nome-%d", intn(1000)),
			"status":  1,
			"x_coord": intn(1000),
			"y_coord": intn(1000),
		})
		next()
		return nil
	}
}

// DecodeMedia decodes the base64 JSON payload in the current loop element's
// videos field and sets data to {"contratos": <payload>}.
func DecodeMedia() Hook {
	return func(it *Iteration, next func()) error {
		encoded, err := loopPayload(it.Vars)
		if err != nil {
			return err
		}
		raw, err := decodeBase64(encoded)
		if err != nil {
			return fmt.Errorf("decode videos payload: %w", err)
		}
		var contratos any
		if err := json.Unmarshal(raw, &contratos); err != nil {
			return fmt.Errorf("parse videos payload: %w", err)
		}
		it.Vars.Set(VarData, map[string]any{"contratos": contratos})
		next()
		return nil
	}
}

func loopPayload(vars variables.Store) (string, error) {
	elem, ok := vars.Get(VarLoopElement)
	if !ok {
		return "", ErrMissingPayload
	}
	var value any
	switch e := elem.(type) {
	case map[string]string:
		v, ok := e[FieldVideos]
		if !ok {
			return "", ErrMissingPayload
		}
		value = v
	case map[string]any:
		v, ok := e[FieldVideos]
		if !ok {
			return "", ErrMissingPayload
		}
		value = v
	default:
		return "", fmt.Errorf("%w: loop element is %T", ErrMissingPayload, elem)
	}
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("videos payload is %T, want string", value)
	}
	return s, nil
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "=") || len(s)%4 == 0 {
		return base64.StdEncoding.DecodeString(s)
	}
	return base64.RawStdEncoding.DecodeString(s)
}

// Registry maps scenario hook names to hooks.
type Registry struct {
	hooks map[string]Hook
}

// NewRegistry returns a registry with the three generators drawing from intn.
// A nil intn uses math/rand/v2.
func NewRegistry(intn IntN) *Registry {
	if intn == nil {
		intn = rand.IntN
	}
	return &Registry{hooks: map[string]Hook{
		NameRandomTemperature: RandomTemperature(intn),
		NameRandomFan:         RandomFan(intn),
		NameDecodeMedia:       DecodeMedia(),
	}}
}

// Lookup returns the hook registered under name.
func (r *Registry) Lookup(name string) (Hook, bool) {
	h, ok := r.hooks[name]
	return h, ok
}

// Names returns the registered hook names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.hooks))
	for name := range r.hooks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run invokes the named hook once and checks that it handed control back.
func (r *Registry) Run(name string, it *Iteration) error {
	h, ok := r.Lookup(name)
	if !ok {
		return fmt.Errorf("unknown hook %q", name)
	}
	calls := 0
	if err := h(it, func() { calls++ }); err != nil {
		return err
	}
	if calls != 1 {
		return fmt.Errorf("hook %q called next %d times", name, calls)
	}
	return nil
}
