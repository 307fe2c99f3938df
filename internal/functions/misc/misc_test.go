package misc

import (
	"context"
	"math"
	"strings"
	"testing"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		expr string
		want float64
	}{
		{"1 + 2", 3},
		{"2 - 5", -3},
		{"3 * 4", 12},
		{"10 / 4", 2.5},
		{"10 % 3", 1},
		{"2 ^ 10", 1024},
		{"2 ^ 3 ^ 2", 512}, // right associative
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
		{"-4 + 10", 6},
		{"--4", 4},
		{"sqrt(16)", 4},
		{"abs(-7.5)", 7.5},
		{"min(3, 8)", 3},
		{"max(3, 8)", 8},
		{"round(2.6)", 3},
		{"floor(2.9)", 2},
		{"ceil(2.1)", 3},
		{"pow(2, 8)", 256},
		{"sqrt(abs(-16)) + max(1, 2)", 6},
		{"3.5", 3.5},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := evaluate(tt.expr)
			if err != nil {
				t.Fatalf("evaluate(%q): %v", tt.expr, err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("evaluate(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEvaluate_Errors(t *testing.T) {
	tests := []string{
		"",
		"1 +",
		"(1 + 2",
		"1 / 0",
		"10 % 0",
		"sqrt(-1)",
		"nope(3)",
		"pi",
		"min(1)",
		"1 2",
	}

	for _, expr := range tests {
		t.Run(expr, func(t *testing.T) {
			if _, err := evaluate(expr); err == nil {
				t.Errorf("evaluate(%q) succeeded, want error", expr)
			}
		})
	}
}

func TestCalculate_FormatsWholeNumbers(t *testing.T) {
	out, err := calculate(context.Background(), map[string]any{"expression": "6 * 7"})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if out != "42" {
		t.Errorf("got %q, want 42", out)
	}

	out, err = calculate(context.Background(), map[string]any{"expression": "7 / 2"})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if out != "3.5" {
		t.Errorf("got %q, want 3.5", out)
	}
}

func TestEnvTools(t *testing.T) {
	t.Setenv("QUILL_TEST_VAR", "before")

	out, err := envGet(context.Background(), map[string]any{"name": "QUILL_TEST_VAR"})
	if err != nil {
		t.Fatalf("envGet: %v", err)
	}
	if out != "QUILL_TEST_VAR=before" {
		t.Errorf("got %q", out)
	}

	if _, err := envSet(context.Background(), map[string]any{
		"name": "QUILL_TEST_VAR", "value": "after",
	}); err != nil {
		t.Fatalf("envSet: %v", err)
	}

	out, _ = envGet(context.Background(), map[string]any{"name": "QUILL_TEST_VAR"})
	if out != "QUILL_TEST_VAR=after" {
		t.Errorf("got %q after set", out)
	}

	if _, err := envGet(context.Background(), map[string]any{"name": "QUILL_UNSET_VAR_4A1B"}); err == nil {
		t.Error("expected error for unset variable")
	}
}

func TestCurrentTime_CustomLayout(t *testing.T) {
	out, err := currentTime(context.Background(), map[string]any{"layout": "2006"})
	if err != nil {
		t.Fatalf("currentTime: %v", err)
	}
	if len(out) != 4 || !strings.HasPrefix(out, "20") {
		t.Errorf("unexpected year output %q", out)
	}
}
