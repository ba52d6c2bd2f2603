package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Role tags a session as belonging to a patient or a doctor. It controls which
// capabilities the decision engine may see and the executor may run.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

// ErrUnknownRole is returned for role strings outside {patient, doctor}.
var ErrUnknownRole = errors.New("agent: unknown role")

// ParseRole validates a caller-supplied role string.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RolePatient:
		return RolePatient, nil
	case RoleDoctor:
		return RoleDoctor, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

// ArgType enumerates the argument types a capability schema may declare.
type ArgType string

const (
	ArgString   ArgType = "string"
	ArgInt      ArgType = "int"
	ArgBool     ArgType = "bool"
	ArgDate     ArgType = "date"     // YYYY-MM-DD
	ArgDateTime ArgType = "datetime" // RFC 3339
	ArgEmail    ArgType = "email"
)

// ArgSpec describes a single argument of a capability.
type ArgSpec struct {
	Type        ArgType
	Required    bool
	Default     any
	Description string
}

// Args is the decoded argument map handed to a capability's run function.
// Values are normalized by Descriptor.ValidateArgs before execution.
type Args map[string]any

// RunFunc executes a capability against its backend collaborator.
type RunFunc func(ctx context.Context, args Args) (any, error)

// Descriptor declares one invocable backend capability.
type Descriptor struct {
	Name         string
	Description  string
	Schema       map[string]ArgSpec
	AllowedRoles []Role
	Run          RunFunc
}

// AllowsRole reports whether the capability is visible to the given role.
func (d *Descriptor) AllowsRole(role Role) bool {
	for _, r := range d.AllowedRoles {
		if r == role {
			return true
		}
	}
	return false
}

// ValidateArgs checks the supplied arguments against the schema, applies
// defaults, and normalizes value types. Unknown arguments are rejected so a
// drifting decision engine cannot smuggle extra fields past the schema.
func (d *Descriptor) ValidateArgs(args Args) (Args, error) {
	normalized := make(Args, len(d.Schema))

	for name := range args {
		if _, ok := d.Schema[name]; !ok {
			return nil, fmt.Errorf("agent: capability %s does not accept argument %q", d.Name, name)
		}
	}

	for name, spec := range d.Schema {
		raw, present := args[name]
		if !present || raw == nil {
			if spec.Default != nil {
				normalized[name] = spec.Default
				continue
			}
			if spec.Required {
				return nil, fmt.Errorf("agent: capability %s requires argument %q", d.Name, name)
			}
			continue
		}

		value, err := coerceArg(spec.Type, raw)
		if err != nil {
			return nil, fmt.Errorf("agent: capability %s argument %q: %w", d.Name, name, err)
		}
		normalized[name] = value
	}

	return normalized, nil
}

func coerceArg(t ArgType, raw any) (any, error) {
	switch t {
	case ArgString:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", raw)
		}
		return strings.TrimSpace(s), nil
	case ArgEmail:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected email string, got %T", raw)
		}
		s = strings.TrimSpace(s)
		at := strings.Index(s, "@")
		if at <= 0 || at == len(s)-1 {
			return nil, fmt.Errorf("invalid email %q", s)
		}
		return s, nil
	case ArgDate:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected date string, got %T", raw)
		}
		s = strings.TrimSpace(s)
		if _, err := time.Parse("2006-01-02", s); err != nil {
			return nil, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
		}
		return s, nil
	case ArgDateTime:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected datetime string, got %T", raw)
		}
		s = strings.TrimSpace(s)
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, fmt.Errorf("invalid datetime %q, want RFC 3339", s)
		}
		return ts.UTC(), nil
	case ArgInt:
		switch v := raw.(type) {
		case int:
			return int64(v), nil
		case int64:
			return v, nil
		case float64:
			// JSON decoding produces float64; reject fractional values.
			if v != float64(int64(v)) {
				return nil, fmt.Errorf("expected integer, got %v", v)
			}
			return int64(v), nil
		default:
			return nil, fmt.Errorf("expected integer, got %T", raw)
		}
	case ArgBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", raw)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown argument type %q", t)
	}
}

var (
	// ErrDuplicateCapability is returned when a capability name is registered twice.
	ErrDuplicateCapability = errors.New("agent: duplicate capability")
	// ErrUnknownCapability is returned when a name is not present in the registry.
	ErrUnknownCapability = errors.New("agent: unknown capability")
	// ErrRegistrySealed is returned for registrations after startup completes.
	ErrRegistrySealed = errors.New("agent: registry sealed")
)

// Registry holds the closed set of capabilities. It is populated during
// startup, sealed, and read-only afterwards, so request handling never races
// with registration.
type Registry struct {
	byName  map[string]*Descriptor
	ordered []*Descriptor
	sealed  bool
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Descriptor)}
}

// Register adds a capability. It fails on duplicate names, missing run
// functions, and registration after Seal.
func (r *Registry) Register(d Descriptor) error {
	if r.sealed {
		return fmt.Errorf("%w: cannot register %q", ErrRegistrySealed, d.Name)
	}
	name := strings.TrimSpace(d.Name)
	if name == "" {
		return errors.New("agent: capability name is required")
	}
	if d.Run == nil {
		return fmt.Errorf("agent: capability %s has no run function", name)
	}
	if len(d.AllowedRoles) == 0 {
		return fmt.Errorf("agent: capability %s allows no roles", name)
	}
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateCapability, name)
	}

	d.Name = name
	copied := d
	r.byName[name] = &copied
	r.ordered = append(r.ordered, &copied)
	return nil
}

// Seal marks the registry immutable. Called once after startup wiring.
func (r *Registry) Seal() {
	r.sealed = true
}

// List returns the descriptors visible to the role, in registration order.
func (r *Registry) List(role Role) []*Descriptor {
	out := make([]*Descriptor, 0, len(r.ordered))
	for _, d := range r.ordered {
		if d.AllowsRole(role) {
			out = append(out, d)
		}
	}
	return out
}

// Get returns the descriptor for a name or ErrUnknownCapability.
func (r *Registry) Get(name string) (*Descriptor, error) {
	d, ok := r.byName[strings.TrimSpace(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCapability, name)
	}
	return d, nil
}
