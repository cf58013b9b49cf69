package validator

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

type fakeCompleter struct {
	jsonResponse string
	jsonErr      error
	textResponse string
	textErr      error
	jsonCalls    int
	textCalls    int
	lastPrompt   string
}

func (f *fakeCompleter) GenerateText(_ context.Context, prompt string, _ float32) (string, error) {
	f.textCalls++
	f.lastPrompt = prompt
	return f.textResponse, f.textErr
}

func (f *fakeCompleter) GenerateJSON(_ context.Context, prompt string, _ float32) (json.RawMessage, error) {
	f.jsonCalls++
	f.lastPrompt = prompt
	if f.jsonErr != nil {
		return nil, f.jsonErr
	}
	return json.RawMessage(f.jsonResponse), nil
}

func TestIsSensitive(t *testing.T) {
	tests := []struct {
		name      string
		texts     []string
		sensitive bool
	}{
		{"career keyword", []string{"write about my career pivot"}, true},
		{"experience keyword", []string{"my 10 years of experience"}, true},
		{"achievement in draft only", []string{"write me a post", "a huge achievement this quarter"}, true},
		{"journey keyword", []string{"reflecting on my journey"}, true},
		{"bio keyword", []string{"update my bio"}, true},
		{"case insensitive", []string{"My CAREER so far"}, true},
		{"substring does not match", []string{"the biologist studied experiential data"}, false},
		{"neutral text", []string{"write a post about coffee trends"}, false},
		{"empty", []string{""}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSensitive(tt.texts...); got != tt.sensitive {
				t.Errorf("IsSensitive(%v) = %v, want %v", tt.texts, got, tt.sensitive)
			}
		})
	}
}

func TestValidateParsesResult(t *testing.T) {
	completer := &fakeCompleter{
		jsonResponse: `{"unsupported_claims": ["10 years of experience"], "all_supported": false}`,
	}
	v := New(completer)

	result := v.Validate(context.Background(), "draft", "facts")
	if result.AllSupported {
		t.Error("expected AllSupported=false")
	}
	if len(result.UnsupportedClaims) != 1 || result.UnsupportedClaims[0] != "10 years of experience" {
		t.Errorf("unexpected claims: %v", result.UnsupportedClaims)
	}
}

func TestValidateUnparseableResponse(t *testing.T) {
	tests := []struct {
		name      string
		completer *fakeCompleter
	}{
		{"malformed json", &fakeCompleter{jsonResponse: "not json at all"}},
		{"call error", &fakeCompleter{jsonErr: errors.New("upstream unavailable")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New(tt.completer)
			result := v.Validate(context.Background(), "draft", "facts")
			if result.AllSupported {
				t.Error("unparseable response must fail validation")
			}
			if len(result.UnsupportedClaims) != 1 || result.UnsupportedClaims[0] != UnparseableMarker {
				t.Errorf("expected the generic marker claim, got %v", result.UnsupportedClaims)
			}
		})
	}
}

func TestValidateInconsistentFlags(t *testing.T) {
	// A model claiming all_supported=true while listing claims is overruled.
	completer := &fakeCompleter{
		jsonResponse: `{"unsupported_claims": ["won an award"], "all_supported": true}`,
	}
	v := New(completer)

	result := v.Validate(context.Background(), "draft", "facts")
	if result.AllSupported {
		t.Error("non-empty claim list must force AllSupported=false")
	}
}

func TestRunReturnsDraftWhenSupported(t *testing.T) {
	completer := &fakeCompleter{
		jsonResponse: `{"unsupported_claims": [], "all_supported": true}`,
	}
	v := New(completer)

	got, rewritten, err := v.Run(context.Background(), "the draft", "facts", "WRITE_POST")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rewritten {
		t.Error("expected no rewrite for a fully supported draft")
	}
	if got != "the draft" {
		t.Errorf("expected draft returned unchanged, got %q", got)
	}
	if completer.textCalls != 0 {
		t.Errorf("expected no rewrite call, got %d", completer.textCalls)
	}
}

func TestRunRewritesOnce(t *testing.T) {
	completer := &fakeCompleter{
		jsonResponse: `{"unsupported_claims": ["10 years of experience"], "all_supported": false}`,
		textResponse: "a careful rewrite",
	}
	v := New(completer)

	got, rewritten, err := v.Run(context.Background(), "I have 10 years of experience", "facts", "WRITE_POST")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rewritten {
		t.Error("expected a rewrite")
	}
	if got != "a careful rewrite" {
		t.Errorf("expected the rewritten text, got %q", got)
	}
	if completer.textCalls != 1 {
		t.Errorf("rewrite must run exactly once, got %d calls", completer.textCalls)
	}
	if completer.jsonCalls != 1 {
		t.Errorf("validation must run exactly once, got %d calls", completer.jsonCalls)
	}
	if !strings.Contains(completer.lastPrompt, "10 years of experience") {
		t.Error("rewrite prompt must include the flagged claims")
	}
}

func TestRunRewriteFailure(t *testing.T) {
	completer := &fakeCompleter{
		jsonResponse: `{"unsupported_claims": ["won an award"], "all_supported": false}`,
		textErr:      errors.New("upstream unavailable"),
	}
	v := New(completer)

	_, _, err := v.Run(context.Background(), "draft", "facts", "WRITE_POST")
	if err == nil {
		t.Fatal("expected error when the rewrite call fails")
	}
}
