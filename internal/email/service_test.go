package email

import (
	"strings"
	"testing"
)

func TestServiceIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected bool
	}{
		{name: "empty config", config: Config{}, expected: false},
		{name: "missing host", config: Config{Port: "587", From: "x@clinic.test"}, expected: false},
		{name: "missing from", config: Config{Host: "smtp.clinic.test", Port: "587"}, expected: false},
		{name: "fully configured", config: Config{Host: "smtp.clinic.test", Port: "587", From: "x@clinic.test"}, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.config)
			if svc.IsConfigured() != tt.expected {
				t.Errorf("IsConfigured() = %v, want %v", svc.IsConfigured(), tt.expected)
			}
		})
	}
}

func TestRenderSignatureRequestTemplate(t *testing.T) {
	html, err := renderTemplate(signatureRequestTemplate, SignatureRequestData{
		AppName:      "Surat",
		SignerName:   "dr. Ratna",
		LetterNumber: "017/SK/VIII/2025",
		Subject:      "Surat Keterangan Sehat",
		LetterURL:    "https://surat.clinic.test/letters/ltr_1",
	})
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}
	if !strings.Contains(html, "dr. Ratna") {
		t.Error("template should contain signer name")
	}
	if !strings.Contains(html, "017/SK/VIII/2025") {
		t.Error("template should contain letter number")
	}
	if !strings.Contains(html, "https://surat.clinic.test/letters/ltr_1") {
		t.Error("template should contain letter URL")
	}
}

func TestRenderDecisionTemplateIncludesNotes(t *testing.T) {
	html, err := renderTemplate(decisionTemplate, DecisionData{
		AppName:      "Surat",
		AuthorName:   "Budi",
		SignerName:   "dr. Ratna",
		LetterNumber: "017/SK/VIII/2025",
		Subject:      "Surat Keterangan Sehat",
		Decision:     "rejected",
		Notes:        "Wrong patient name",
		LetterURL:    "https://surat.clinic.test/letters/ltr_1",
	})
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}
	if !strings.Contains(html, "rejected") {
		t.Error("template should contain decision")
	}
	if !strings.Contains(html, "Wrong patient name") {
		t.Error("template should contain rejection notes")
	}
}
