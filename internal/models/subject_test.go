package models

import "testing"

func TestSubjectField(t *testing.T) {
	subject := NewAction("create_cluster", map[string]any{
		"cloud":      "aws",
		"node_count": 0,
		"resources": map[string]any{
			"limits": map[string]any{"cpu": "500m"},
		},
		"yaml_nested": map[any]any{"key": "value"},
	})

	tests := []struct {
		path        string
		wantValue   any
		wantPresent bool
	}{
		{"cloud", "aws", true},
		{"node_count", 0, true}, // zero value is still present
		{"resources.limits.cpu", "500m", true},
		{"yaml_nested.key", "value", true},
		{"type", "create_cluster", true},
		{"missing", nil, false},
		{"resources.requests", nil, false},
		{"resources.limits.cpu.deeper", nil, false},
		{"cloud.not_a_map", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			value, present := subject.Field(tt.path)
			if present != tt.wantPresent {
				t.Fatalf("Field(%q) present = %v, want %v", tt.path, present, tt.wantPresent)
			}
			if present && value != tt.wantValue {
				t.Errorf("Field(%q) = %v, want %v", tt.path, value, tt.wantValue)
			}
		})
	}
}

func TestSubjectSummary(t *testing.T) {
	tests := []struct {
		name    string
		subject *Subject
		want    string
	}{
		{
			"action with target",
			NewAction("delete_cluster", map[string]any{"target": "prod-east"}),
			"delete_cluster on prod-east",
		},
		{
			"action with cluster name",
			NewAction("scale_cluster", map[string]any{"cluster_name": "staging"}),
			"scale_cluster on staging",
		},
		{
			"action without target",
			NewAction("create_cluster", nil),
			"create_cluster on unknown",
		},
		{
			"configuration",
			NewConfiguration(map[string]any{"a": 1, "b": 2}),
			"configuration with 2 fields",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.subject.Summary(); got != tt.want {
				t.Errorf("Summary() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCELInput(t *testing.T) {
	subject := NewAction("create_cluster", map[string]any{"cloud": "aws"})
	input := subject.CELInput()

	if input["cloud"] != "aws" {
		t.Errorf("cloud = %v, want aws", input["cloud"])
	}
	if input["kind"] != "action" {
		t.Errorf("kind = %v, want action", input["kind"])
	}
	if input["type"] != "create_cluster" {
		t.Errorf("type = %v, want create_cluster", input["type"])
	}

	// input is a copy; mutating it must not touch the subject
	input["cloud"] = "gcp"
	if subject.Fields["cloud"] != "aws" {
		t.Error("CELInput aliases subject fields")
	}
}
