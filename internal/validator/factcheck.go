// Package validator implements the two-pass hallucination check. A generated
// draft touching biographical territory is checked against the FACTS block it
// was grounded on, and rewritten at most once when unsupported claims surface.
package validator

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/postecho/postecho/internal/llm"
	"github.com/postecho/postecho/pkg/logging"
	"github.com/postecho/postecho/pkg/telemetry"
)

// UnparseableMarker stands in for a real claim list when the validation call
// returns something we cannot parse. It forces the rewrite path rather than
// letting an unverifiable draft through.
const UnparseableMarker = "validator response could not be parsed"

// sensitiveRe matches the keyword families whose presence in either the user
// request or the draft makes a generation biographical. Any match triggers
// validation; no match skips it.
var sensitiveRe = regexp.MustCompile(`(?i)\b(career|careers|experience|experiences|experienced|achievement|achievements|achieved|accomplishment|accomplishments|accomplished|bio|biography|background|journey|promotion|promoted|tenure|milestone|milestones|award|awards|degree|credentials)\b`)

// IsSensitive reports whether any of the given texts contains
// biography-adjacent language.
func IsSensitive(texts ...string) bool {
	for _, t := range texts {
		if sensitiveRe.MatchString(t) {
			return true
		}
	}
	return false
}

// Result is the structured outcome of one validation call.
type Result struct {
	UnsupportedClaims []string `json:"unsupported_claims"`
	AllSupported      bool     `json:"all_supported"`
}

// Validator checks drafts for claims the FACTS block does not support.
type Validator struct {
	completer llm.Completer
	logger    *zap.Logger
}

// New creates a new fact validator
func New(completer llm.Completer) *Validator {
	return &Validator{
		completer: completer,
		logger:    logging.GetLogger().With(zap.String("component", "validator")),
	}
}

const validationPrompt = `You are a strict fact checker. You will be given a DRAFT and the FACTS it was supposed to be grounded in.

List every factual claim in the DRAFT that is NOT supported by the FACTS. A claim is supported only if the FACTS state it or directly imply it. Stylistic choices, opinions, and generic advice are not claims.

FACTS:
%s

DRAFT:
%s

Respond with JSON only, in exactly this shape:
{"unsupported_claims": ["<claim>", ...], "all_supported": <true if the list is empty>}`

const rewritePrompt = `Rewrite the DRAFT below so that it no longer contains the UNSUPPORTED CLAIMS. Remove each claim or rephrase it so it no longer asserts anything the facts do not support. Preserve the draft's structure (Hook, Body, CTA if present), tone, and length as closely as possible. Do not add new factual claims.

UNSUPPORTED CLAIMS:
%s

DRAFT:
%s

Respond with the rewritten text only.`

// Validate asks the model to enumerate claims in draft that factsBlock does
// not support. An unparseable response is treated as a failed validation, not
// an error, so the caller always gets a usable result.
func (v *Validator) Validate(ctx context.Context, draft, factsBlock string) Result {
	ctx, span := telemetry.StartSpan(ctx, "validator.validate")
	defer span.End()

	prompt := fmt.Sprintf(validationPrompt, factsBlock, draft)
	raw, err := v.completer.GenerateJSON(ctx, prompt, 0.0)
	if err != nil {
		v.logger.Warn("Validation call failed, treating draft as unverified", zap.Error(err))
		return Result{UnsupportedClaims: []string{UnparseableMarker}, AllSupported: false}
	}

	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		v.logger.Warn("Validation response is not valid JSON, treating draft as unverified",
			zap.Error(err))
		return Result{UnsupportedClaims: []string{UnparseableMarker}, AllSupported: false}
	}
	if len(result.UnsupportedClaims) > 0 {
		result.AllSupported = false
	}
	return result
}

// Run validates the draft and, when unsupported claims exist, issues exactly
// one rewrite call. The rewritten text is returned as-is without a third
// pass, which bounds the per-turn cost. The returned bool reports whether a
// rewrite happened. intent is recorded with the rewrite metric.
func (v *Validator) Run(ctx context.Context, draft, factsBlock, intent string) (string, bool, error) {
	result := v.Validate(ctx, draft, factsBlock)
	if result.AllSupported {
		return draft, false, nil
	}

	v.logger.Info("Draft contains unsupported claims, rewriting",
		zap.Int("claim_count", len(result.UnsupportedClaims)))
	telemetry.RecordValidatorRewrite(ctx, intent)

	claims := make([]string, len(result.UnsupportedClaims))
	for i, c := range result.UnsupportedClaims {
		claims[i] = "- " + c
	}
	prompt := fmt.Sprintf(rewritePrompt, strings.Join(claims, "\n"), draft)
	rewritten, err := v.completer.GenerateText(ctx, prompt, 0.4)
	if err != nil {
		return "", false, fmt.Errorf("failed to rewrite draft: %w", err)
	}
	return rewritten, true, nil
}
