package mailsort

import (
	"errors"
	"testing"
)

func TestValidatorAccepts(t *testing.T) {
	v := NewValidator("Inbox", "Unsorted")

	t.Run("rooted path passes through", func(t *testing.T) {
		path, err := v.Validate("Inbox/Invoices")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if path != "Inbox/Invoices" {
			t.Errorf("expected Inbox/Invoices, got %q", path)
		}
	})

	t.Run("unrooted path gains the root prefix", func(t *testing.T) {
		path, err := v.Validate("Invoices/2024")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if path != "Inbox/Invoices/2024" {
			t.Errorf("expected Inbox/Invoices/2024, got %q", path)
		}
	})

	t.Run("root alone is valid", func(t *testing.T) {
		path, err := v.Validate("Inbox")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if path != "Inbox" {
			t.Errorf("expected Inbox, got %q", path)
		}
	})

	t.Run("root detection ignores case", func(t *testing.T) {
		path, err := v.Validate("INBOX/Work")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if path != "INBOX/Work" {
			t.Errorf("expected INBOX/Work, got %q", path)
		}
	})

	t.Run("whitespace runs collapse", func(t *testing.T) {
		path, err := v.Validate("  Inbox/Old   Projects  ")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if path != "Inbox/Old Projects" {
			t.Errorf("expected collapsed path, got %q", path)
		}
	})

	t.Run("surrounding slashes are trimmed", func(t *testing.T) {
		path, err := v.Validate("/Inbox/Work/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if path != "Inbox/Work" {
			t.Errorf("expected Inbox/Work, got %q", path)
		}
	})
}

func TestValidatorRejects(t *testing.T) {
	v := NewValidator("Inbox", "Unsorted")
	fallback := "Inbox/Unsorted"

	rejects := []struct {
		name       string
		suggestion string
		rule       string
	}{
		{"root look-alike", "Inbox 2/Work", "root-like"},
		{"ellipsis placeholder", "Inbox/Fin...", "ellipsis"},
		{"forbidden characters", "Inbox/Re: invoice?", "charset"},
		{"accented letters", "Inbox/Café", "charset"},
		{"accents that decompose to ascii", "Inbox/Financiën", "charset"},
		{"numero sign", "Inbox/№1", "charset"},
		{"known bad completion", "Inbox opr/Work", "root-like"},
		{"empty suggestion", "", "empty"},
		{"whitespace only suggestion", "   ", "empty"},
	}

	for _, tc := range rejects {
		t.Run(tc.name, func(t *testing.T) {
			path, err := v.Validate(tc.suggestion)
			if path != fallback {
				t.Errorf("expected fallback %q, got %q", fallback, path)
			}
			var violation *RuleViolation
			if !errors.As(err, &violation) {
				t.Fatalf("expected RuleViolation, got %v", err)
			}
			if violation.Rule != tc.rule {
				t.Errorf("expected rule %q, got %q", tc.rule, violation.Rule)
			}
		})
	}
}

func TestValidatorExtraRules(t *testing.T) {
	v := NewValidator("Inbox", "Unsorted", Rule{
		Name:  "no-archive",
		Match: func(key string) bool { return key == "inbox/archive" },
	})

	path, err := v.Validate("Inbox/Archive")
	if path != "Inbox/Unsorted" {
		t.Errorf("expected fallback, got %q", path)
	}
	var violation *RuleViolation
	if !errors.As(err, &violation) || violation.Rule != "no-archive" {
		t.Errorf("expected no-archive violation, got %v", err)
	}
}

func TestValidatorFallbackIsValid(t *testing.T) {
	// The fallback path must never trip the deny rules itself, or rejected
	// suggestions would have nowhere to go.
	v := NewValidator("Inbox", "Unsorted")
	path, err := v.Validate(v.Fallback())
	if err != nil {
		t.Fatalf("fallback path rejected: %v", err)
	}
	if path != v.Fallback() {
		t.Errorf("expected %q, got %q", v.Fallback(), path)
	}
}

func TestPatternRule(t *testing.T) {
	r := PatternRule("year", `/20[0-9][0-9]$`)
	if !r.Match("inbox/invoices/2024") {
		t.Error("expected match on year suffix")
	}
	if r.Match("inbox/invoices") {
		t.Error("unexpected match without year suffix")
	}
}
