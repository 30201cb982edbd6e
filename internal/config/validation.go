package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"gestured/internal/action"
	"gestured/internal/hci"
	"gestured/internal/input"
)

// ErrNoGestures is reported when the configuration binds nothing.
var ErrNoGestures = errors.New("no gestures configured")

// ErrUnknownSymbol is reported for a sequence name that is not a symbol.
var ErrUnknownSymbol = errors.New("unknown symbol")

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Unwrap exposes each error to errors.Is and errors.As.
func (e ValidationErrors) Unwrap() []error {
	out := make([]error, len(e))
	for i := range e {
		out[i] = &e[i]
	}
	return out
}

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "gestured-config.schema.json"

var (
	compiledSchema *jsonschema.Schema
	schemaErr      error
	schemaOnce     sync.Once
)

func configSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(schemaURL)
	})
	return compiledSchema, schemaErr
}

// Validate checks the configuration for errors. The structural checks run
// against the embedded JSON Schema; the rest need the symbol and action
// tables.
func (c *Config) Validate() error {
	var errs ValidationErrors

	errs = append(errs, validateSchema(c)...)

	if c.Timing.SingleDelayMs > 0 && c.Timing.ComboDelayMs < c.Timing.SingleDelayMs {
		errs = append(errs, ValidationError{
			Field:   "timing.combo_delay_ms",
			Message: fmt.Sprintf("must be at least single_delay_ms (%d)", c.Timing.SingleDelayMs),
		})
	}

	errs = append(errs, validateDevice(c.Device)...)
	errs = append(errs, validateGestures(c.Gestures, c.StrictSymbols)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// validateDevice checks that index suits the channel: the monitor channel
// only binds to DevNone and the raw channel only to a single controller.
func validateDevice(d DeviceConfig) ValidationErrors {
	switch d.Channel {
	case "monitor", "":
		if d.Index != hci.DevNone {
			return ValidationErrors{{
				Field:   "device.index",
				Message: fmt.Sprintf("monitor channel listens to all controllers, index must be %d", hci.DevNone),
			}}
		}
	case "raw":
		if d.Index == hci.DevNone {
			return ValidationErrors{{
				Field:   "device.index",
				Message: "raw channel needs a controller index (0 for hci0)",
			}}
		}
	}
	return nil
}

func validateSchema(c *Config) ValidationErrors {
	schema, err := configSchema()
	if err != nil {
		return ValidationErrors{{Field: "schema", Message: err.Error(), Err: err}}
	}

	data, err := json.Marshal(c)
	if err != nil {
		return ValidationErrors{{Field: "schema", Message: err.Error(), Err: err}}
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return ValidationErrors{{Field: "schema", Message: err.Error(), Err: err}}
	}

	err = schema.Validate(doc)
	if err == nil {
		return nil
	}

	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return ValidationErrors{{Field: "schema", Message: err.Error(), Err: err}}
	}

	var errs ValidationErrors
	for _, leaf := range leafCauses(verr) {
		errs = append(errs, ValidationError{
			Field:   schemaField(leaf.InstanceLocation),
			Message: leaf.Message,
		})
	}
	return errs
}

// leafCauses flattens a schema error tree to its most specific causes.
func leafCauses(e *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(e.Causes) == 0 {
		return []*jsonschema.ValidationError{e}
	}
	var out []*jsonschema.ValidationError
	for _, c := range e.Causes {
		out = append(out, leafCauses(c)...)
	}
	return out
}

// schemaField turns a JSON pointer such as /timing/single_delay_ms into
// timing.single_delay_ms.
func schemaField(ptr string) string {
	field := strings.ReplaceAll(strings.TrimPrefix(ptr, "/"), "/", ".")
	if field == "" {
		return "config"
	}
	return field
}

func validateGestures(gestures []Gesture, strict bool) ValidationErrors {
	if len(gestures) == 0 {
		return ValidationErrors{{Field: "gestures", Message: ErrNoGestures.Error(), Err: ErrNoGestures}}
	}

	var errs ValidationErrors
	for i, g := range gestures {
		field := fmt.Sprintf("gestures[%d]", i)

		if len(g.Sequence) == 0 {
			errs = append(errs, ValidationError{Field: field + ".sequence", Message: "must not be empty"})
		}

		if strict {
			for j, name := range g.Sequence {
				if _, ok := input.ParseSymbol(name); !ok {
					errs = append(errs, ValidationError{
						Field:   fmt.Sprintf("%s.sequence[%d]", field, j),
						Message: fmt.Sprintf("%s %q", ErrUnknownSymbol, name),
						Err:     ErrUnknownSymbol,
					})
				}
			}
		}

		if _, _, err := action.Parse(g.Action); err != nil {
			errs = append(errs, ValidationError{Field: field + ".action", Message: err.Error(), Err: err})
		}
	}
	return errs
}
