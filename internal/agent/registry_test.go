package agent

import (
	"context"
	"errors"
	"testing"
	"time"
)

func noopRun(_ context.Context, _ Args) (any, error) { return nil, nil }

func testDescriptor(name string, roles ...Role) Descriptor {
	return Descriptor{
		Name:         name,
		Description:  "test capability",
		AllowedRoles: roles,
		Run:          noopRun,
	}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		input   string
		want    Role
		wantErr bool
	}{
		{"patient", RolePatient, false},
		{"doctor", RoleDoctor, false},
		{"  Doctor ", RoleDoctor, false},
		{"PATIENT", RolePatient, false},
		{"nurse", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseRole(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseRole(%q): expected error", tt.input)
			}
			if !errors.Is(err, ErrUnknownRole) {
				t.Errorf("ParseRole(%q): error should wrap ErrUnknownRole, got %v", tt.input, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseRole(%q): unexpected error %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("ParseRole(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestRegistryRegisterAndGet(t *testing.T) {
	reg := NewRegistry()

	if err := reg.Register(testDescriptor("book_appointment", RolePatient)); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := reg.Get("book_appointment"); err != nil {
		t.Errorf("get: %v", err)
	}
	if _, err := reg.Get("nope"); !errors.Is(err, ErrUnknownCapability) {
		t.Errorf("expected ErrUnknownCapability, got %v", err)
	}
}

func TestRegistryDuplicateName(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(testDescriptor("stats", RoleDoctor)); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register(testDescriptor("stats", RoleDoctor)); !errors.Is(err, ErrDuplicateCapability) {
		t.Errorf("expected ErrDuplicateCapability, got %v", err)
	}
}

func TestRegistrySealRejectsRegistration(t *testing.T) {
	reg := NewRegistry()
	reg.Seal()
	if err := reg.Register(testDescriptor("late", RolePatient)); !errors.Is(err, ErrRegistrySealed) {
		t.Errorf("expected ErrRegistrySealed, got %v", err)
	}
}

func TestRegistryRejectsInvalidDescriptors(t *testing.T) {
	reg := NewRegistry()

	if err := reg.Register(Descriptor{Name: "", AllowedRoles: []Role{RolePatient}, Run: noopRun}); err == nil {
		t.Error("expected error for empty name")
	}
	if err := reg.Register(Descriptor{Name: "no_run", AllowedRoles: []Role{RolePatient}}); err == nil {
		t.Error("expected error for missing run function")
	}
	if err := reg.Register(Descriptor{Name: "no_roles", Run: noopRun}); err == nil {
		t.Error("expected error for empty role list")
	}
}

func TestRegistryListFiltersByRole(t *testing.T) {
	reg := NewRegistry()
	must := func(err error) {
		if err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	must(reg.Register(testDescriptor("both", RolePatient, RoleDoctor)))
	must(reg.Register(testDescriptor("doctor_only", RoleDoctor)))
	must(reg.Register(testDescriptor("patient_only", RolePatient)))

	patientView := reg.List(RolePatient)
	if len(patientView) != 2 {
		t.Fatalf("patient should see 2 capabilities, got %d", len(patientView))
	}
	for _, d := range patientView {
		if d.Name == "doctor_only" {
			t.Error("patient list leaked doctor_only")
		}
	}

	doctorView := reg.List(RoleDoctor)
	if len(doctorView) != 2 {
		t.Fatalf("doctor should see 2 capabilities, got %d", len(doctorView))
	}
	// Registration order is preserved.
	if doctorView[0].Name != "both" || doctorView[1].Name != "doctor_only" {
		t.Errorf("unexpected order: %s, %s", doctorView[0].Name, doctorView[1].Name)
	}
}

func TestValidateArgs(t *testing.T) {
	d := Descriptor{
		Name: "cap",
		Schema: map[string]ArgSpec{
			"name":  {Type: ArgString, Required: true},
			"email": {Type: ArgEmail},
			"date":  {Type: ArgDate},
			"when":  {Type: ArgDateTime},
			"count": {Type: ArgInt, Default: int64(21)},
			"flag":  {Type: ArgBool, Default: false},
		},
	}

	t.Run("applies defaults and coerces types", func(t *testing.T) {
		got, err := d.ValidateArgs(Args{
			"name": " Ahuja ",
			"when": "2026-09-02T09:00:00Z",
			// count arrives as float64 the way encoding/json delivers it
			"flag": true,
		})
		if err != nil {
			t.Fatalf("validate: %v", err)
		}
		if got["name"] != "Ahuja" {
			t.Errorf("name not trimmed: %q", got["name"])
		}
		if got["count"] != int64(21) {
			t.Errorf("default not applied: %v", got["count"])
		}
		ts, ok := got["when"].(time.Time)
		if !ok || !ts.Equal(time.Date(2026, 9, 2, 9, 0, 0, 0, time.UTC)) {
			t.Errorf("datetime not normalized: %v", got["when"])
		}
	})

	t.Run("rejects unknown arguments", func(t *testing.T) {
		if _, err := d.ValidateArgs(Args{"name": "x", "extra": "y"}); err == nil {
			t.Error("expected unknown argument error")
		}
	})

	t.Run("rejects missing required", func(t *testing.T) {
		if _, err := d.ValidateArgs(Args{}); err == nil {
			t.Error("expected missing required error")
		}
	})

	t.Run("rejects bad values", func(t *testing.T) {
		bad := []Args{
			{"name": "x", "email": "not-an-email"},
			{"name": "x", "date": "02/09/2026"},
			{"name": "x", "when": "tomorrow at 9"},
			{"name": "x", "count": 1.5},
			{"name": "x", "flag": "yes"},
		}
		for i, args := range bad {
			if _, err := d.ValidateArgs(args); err == nil {
				t.Errorf("case %d: expected coercion error for %v", i, args)
			}
		}
	})

	t.Run("accepts integral float64", func(t *testing.T) {
		got, err := d.ValidateArgs(Args{"name": "x", "count": float64(7)})
		if err != nil {
			t.Fatalf("validate: %v", err)
		}
		if got["count"] != int64(7) {
			t.Errorf("count = %v, want int64(7)", got["count"])
		}
	})
}
