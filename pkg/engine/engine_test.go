package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestEvaluateEmptyString(t *testing.T) {
	eng := NewEngine(Config{})

	for _, src := range []string{"", "   \n\t  \n  "} {
		v, evalErrs, err := eng.Evaluate(context.Background(), src, nil)
		if err != nil {
			t.Fatalf("unexpected fatal error: %v", err)
		}
		if len(evalErrs) > 0 {
			t.Fatalf("unexpected eval errors: %v", evalErrs)
		}
		if v != nil {
			t.Errorf("Evaluate(%q) = %v, want nil", src, v)
		}
	}
}

func TestEvaluateArithmetic(t *testing.T) {
	eng := NewEngine(Config{})

	v, evalErrs, err := eng.Evaluate(context.Background(), "(+ 1 2)", nil)
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("unexpected eval errors: %v", evalErrs)
	}
	if v != int64(3) {
		t.Errorf("(+ 1 2) = %#v, want 3", v)
	}
}

func TestEvaluateMultipleExpressions(t *testing.T) {
	eng := NewEngine(Config{})

	source := `
(def x 10)
(def y 20)
(+ x y)
`
	v, evalErrs, err := eng.Evaluate(context.Background(), source, nil)
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("unexpected eval errors: %v", evalErrs)
	}
	if v != int64(30) {
		t.Errorf("result = %#v, want 30", v)
	}
}

func TestEvaluateSyntaxError(t *testing.T) {
	eng := NewEngine(Config{})

	// Unmatched paren is a parse error.
	v, evalErrs, err := eng.Evaluate(context.Background(), "(+ 1 2", nil)
	if err != nil {
		t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
	}
	if v != nil {
		t.Fatal("expected nil value on syntax error")
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected at least one eval error for syntax error")
	}
	if evalErrs[0].Message == "" {
		t.Error("eval error message should not be empty")
	}
}

func TestEvaluateUndefinedSymbol(t *testing.T) {
	eng := NewEngine(Config{})

	v, evalErrs, err := eng.Evaluate(context.Background(), "(+ 1 undefined-symbol)", nil)
	if err != nil {
		t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
	}
	if v != nil {
		t.Fatal("expected nil value on eval error")
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected at least one eval error for undefined symbol")
	}
}

func TestEvalErrorImplementsError(t *testing.T) {
	e := EvalError{Line: 5, Message: "something went wrong"}
	s := e.Error()
	if !strings.Contains(s, "line 5") {
		t.Errorf("Error() should contain line info, got: %s", s)
	}
	if !strings.Contains(s, "something went wrong") {
		t.Errorf("Error() should contain message, got: %s", s)
	}

	e2 := EvalError{Message: "no location"}
	if strings.Contains(e2.Error(), "line") {
		t.Errorf("Error() with no line should not contain 'line', got: %s", e2.Error())
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	eng := NewEngine(Config{})
	cube := box(1, 1, 1)

	for i := 0; i < 5; i++ {
		v, evalErrs, err := eng.Evaluate(context.Background(), "(volume)", cube)
		if err != nil {
			t.Fatalf("iteration %d: unexpected fatal error: %v", i, err)
		}
		if len(evalErrs) > 0 {
			t.Fatalf("iteration %d: unexpected eval errors: %v", i, evalErrs)
		}
		if f, ok := v.(float64); !ok || !almostEqual(f, 1) {
			t.Errorf("iteration %d: (volume) = %#v, want 1", i, v)
		}
	}
}

func TestEvaluateCanceled(t *testing.T) {
	eng := NewEngine(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, evalErrs, err := eng.Evaluate(ctx, "(volume)", box(1, 1, 1))
	if err == nil && len(evalErrs) == 0 {
		t.Fatal("a canceled evaluation should fail")
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestWaitWithTimeout(t *testing.T) {
	var mu sync.Mutex
	var gen uint64 = 1
	ch := make(chan evalResult) // never sends

	start := time.Now()
	_, _, err := waitWithTimeout(context.Background(), ch, 20*time.Millisecond, 1, &mu, &gen)
	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("expected timeout error message, got: %v", err)
	}
	if time.Since(start) > EvalTimeout {
		t.Error("timeout did not honor the configured duration")
	}
}

func TestWaitWithTimeoutDiscardsStale(t *testing.T) {
	var mu sync.Mutex
	gen := uint64(2) // current generation is 2

	ch := make(chan evalResult, 1)
	ch <- evalResult{value: int64(1)}

	// Generation 1 is stale.
	_, _, err := waitWithTimeout(context.Background(), ch, time.Second, 1, &mu, &gen)
	if !errors.Is(err, ErrSuperseded) {
		t.Fatalf("err = %v, want ErrSuperseded", err)
	}
}

func TestParseZygomysError(t *testing.T) {
	tests := []struct {
		name     string
		msg      string
		wantLine int
		wantMsg  string
	}{
		{
			name:     "error on line format",
			msg:      "Error on line 5: unexpected token\n",
			wantLine: 5,
			wantMsg:  "unexpected token",
		},
		{
			name:     "no line info",
			msg:      "some generic error",
			wantLine: 0,
			wantMsg:  "some generic error",
		},
		{
			name:     "line format lowercase",
			msg:      "error on line 12: missing paren",
			wantLine: 12,
			wantMsg:  "missing paren",
		},
		{
			name:     "short line format",
			msg:      "line 3: volume: expected geometry",
			wantLine: 3,
			wantMsg:  "expected geometry",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := parseZygomysError(errors.New(tt.msg))
			if len(errs) == 0 {
				t.Fatal("expected at least one error")
			}
			e := errs[0]
			if e.Line != tt.wantLine {
				t.Errorf("line = %d, want %d", e.Line, tt.wantLine)
			}
			if !strings.Contains(e.Message, tt.wantMsg) {
				t.Errorf("message = %q, want containing %q", e.Message, tt.wantMsg)
			}
		})
	}
}
