package client

import (
	"strings"
	"testing"
	"time"
)

func TestCheckWorldName(t *testing.T) {
	tests := []struct {
		world string
		bad   bool
	}{
		{"Scania", false},
		{"scania", false},
		{"BERA", false},
		{"Nowhere", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.world, func(t *testing.T) {
			reason, bad := checkWorldName(tt.world)
			if bad != tt.bad {
				t.Errorf("checkWorldName(%q) bad = %v, want %v", tt.world, bad, tt.bad)
			}
			if bad && !strings.Contains(reason, "must be one of") {
				t.Errorf("reason %q must list allowed worlds", reason)
			}
		})
	}
}

func TestCheckIdentifier(t *testing.T) {
	tests := []struct {
		name string
		id   string
		bad  bool
	}{
		{"valid", "Hero", false},
		{"valid with digits", "Hero123", false},
		{"valid with inner space", "Dark Knight", false},
		{"too short", "X", true},
		{"too long", "ThisNameIsWayTooLong", true},
		{"punctuation", "Hero!", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, bad := checkIdentifier(tt.id); bad != tt.bad {
				t.Errorf("checkIdentifier(%q) bad = %v, want %v", tt.id, bad, tt.bad)
			}
		})
	}
}

func TestCheckDate(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		date string
		bad  bool
	}{
		{"valid", "2024-03-01", false},
		{"earliest supported", "2023-12-21", false},
		{"today", "2024-03-15", false},
		{"before data availability", "2023-01-01", true},
		{"future", "2024-04-01", true},
		{"wrong format", "03/01/2024", true},
		{"not a date", "yesterday", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, bad := checkDate(tt.date, now); bad != tt.bad {
				t.Errorf("checkDate(%q) bad = %v, want %v", tt.date, bad, tt.bad)
			}
		})
	}
}

func TestDiagnoseBadRequest_FieldPriority(t *testing.T) {
	// Multiple violations: the world rule is checked first.
	err := diagnoseBadRequest(map[string]string{
		"world_name":     "Nowhere",
		"character_name": "X",
		"date":           "bad-date",
	}, nil)

	if err == nil {
		t.Fatal("diagnoseBadRequest() = nil, want error")
	}
	if err.Field != "world_name" {
		t.Errorf("Field = %q, want %q", err.Field, "world_name")
	}
}

func TestDiagnoseBadRequest_NamesRequirement(t *testing.T) {
	err := diagnoseBadRequest(map[string]string{"character_name": "No!"}, nil)
	if err == nil {
		t.Fatal("diagnoseBadRequest() = nil, want error")
	}
	if err.Field != "character_name" {
		t.Errorf("Field = %q, want %q", err.Field, "character_name")
	}
	if !strings.Contains(err.Message, "character_name") {
		t.Errorf("Message %q must name the offending field", err.Message)
	}
	if !strings.Contains(err.Message, "letters and digits") {
		t.Errorf("Message %q must state the requirement", err.Message)
	}
}

func TestDiagnoseBadRequest_NoRuleMatches(t *testing.T) {
	if err := diagnoseBadRequest(map[string]string{"ocid": "abc123"}, nil); err != nil {
		t.Errorf("diagnoseBadRequest() = %v, want nil when no rule matches", err)
	}
}
