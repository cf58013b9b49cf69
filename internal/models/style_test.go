package models

import (
	"testing"
)

func validDescriptor() *StyleDescriptor {
	return &StyleDescriptor{
		Tone:             "warm, direct",
		Formality:        6,
		AvgLengthWords:   140,
		EmojiUsage:       "minimal",
		StructurePattern: []string{"short paragraphs"},
		HookPatterns:     []string{"question opener"},
		HashtagStyle:     "2-3 niche tags",
		FavoriteTopics:   []string{"engineering leadership"},
		CadenceExamples:  []string{"Here's the thing."},
		ParagraphDensity: "spaced",
	}
}

func TestStyleDescriptorValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*StyleDescriptor)
		wantErr bool
	}{
		{name: "valid", mutate: func(d *StyleDescriptor) {}, wantErr: false},
		{name: "empty tone", mutate: func(d *StyleDescriptor) { d.Tone = "  " }, wantErr: true},
		{name: "formality zero", mutate: func(d *StyleDescriptor) { d.Formality = 0 }, wantErr: true},
		{name: "formality eleven", mutate: func(d *StyleDescriptor) { d.Formality = 11 }, wantErr: true},
		{name: "negative length", mutate: func(d *StyleDescriptor) { d.AvgLengthWords = -1 }, wantErr: true},
		{name: "emoji usage outside enum", mutate: func(d *StyleDescriptor) { d.EmojiUsage = "lots" }, wantErr: true},
		{name: "paragraph density outside enum", mutate: func(d *StyleDescriptor) { d.ParagraphDensity = "dense" }, wantErr: true},
		{name: "emoji usage none", mutate: func(d *StyleDescriptor) { d.EmojiUsage = "none" }, wantErr: false},
		{name: "paragraph density varied", mutate: func(d *StyleDescriptor) { d.ParagraphDensity = "varied" }, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDescriptor()
			tt.mutate(d)
			err := d.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNilDescriptorValidate(t *testing.T) {
	var d *StyleDescriptor
	if err := d.Validate(); err == nil {
		t.Error("nil descriptor should fail validation")
	}
}

func TestOnboardingTransitions(t *testing.T) {
	tests := []struct {
		from, to OnboardingStatus
		allowed  bool
	}{
		{StatusURLPending, StatusScrapingInProgress, true},
		{StatusScrapingInProgress, StatusAnalysisInProgress, true},
		{StatusScrapingInProgress, StatusError, true},
		{StatusAnalysisInProgress, StatusReady, true},
		{StatusAnalysisInProgress, StatusError, true},
		{StatusError, StatusScrapingInProgress, true},
		{StatusReady, StatusScrapingInProgress, false},
		{StatusURLPending, StatusReady, false},
		{StatusURLPending, StatusAnalysisInProgress, false},
		{StatusScrapingInProgress, StatusReady, false},
		{StatusError, StatusReady, false},
		{StatusReady, StatusError, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.allowed {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.allowed)
		}
	}
}
