package template

import (
	"strings"
	"testing"
)

func validSettingsJSON() string {
	return `{
		"page": {"size": "A4", "orientation": "portrait", "marginMm": 20},
		"blocks": [
			{"type": "heading", "text": "Surat Keterangan", "level": 1},
			{"type": "paragraph", "text": "The undersigned certifies that"},
			{"type": "variable", "variable": "employee_name"},
			{"type": "spacer", "heightMm": 10}
		],
		"variables": [
			{"name": "employee_name", "label": "Employee", "type": "text", "required": true},
			{"name": "reason", "label": "Reason", "type": "select", "required": false, "options": ["sick", "annual"]}
		],
		"signatureSlots": [
			{"role": "head_of_unit", "userId": "usr_a", "signOrder": 1, "label": "Head of Unit"},
			{"role": "director", "userId": "usr_b", "signOrder": 2, "label": "Director"}
		]
	}`
}

func TestParseSettingsAcceptsValidDocument(t *testing.T) {
	settings, err := ParseSettings([]byte(validSettingsJSON()))
	if err != nil {
		t.Fatalf("ParseSettings() error = %v", err)
	}
	if len(settings.Blocks) != 4 || len(settings.SignatureSlots) != 2 {
		t.Fatalf("unexpected settings shape: %+v", settings)
	}
}

func TestParseSettingsRejectsUnknownBlockType(t *testing.T) {
	raw := strings.Replace(validSettingsJSON(), `"type": "spacer", "heightMm": 10`, `"type": "image"`, 1)
	if _, err := ParseSettings([]byte(raw)); err == nil {
		t.Fatalf("expected unknown block type to be rejected at write time")
	}
}

func TestParseSettingsRejectsUndeclaredVariableReference(t *testing.T) {
	raw := strings.Replace(validSettingsJSON(), `"variable": "employee_name"`, `"variable": "missing"`, 1)
	if _, err := ParseSettings([]byte(raw)); err == nil {
		t.Fatalf("expected undeclared variable reference to be rejected")
	}
}

func TestParseSettingsRejectsDuplicateSignOrder(t *testing.T) {
	raw := strings.Replace(validSettingsJSON(), `"signOrder": 2`, `"signOrder": 1`, 1)
	if _, err := ParseSettings([]byte(raw)); err == nil {
		t.Fatalf("expected duplicate signOrder to be rejected")
	}
}

func TestValidateValuesEnforcesRequiredAndOptions(t *testing.T) {
	settings, err := ParseSettings([]byte(validSettingsJSON()))
	if err != nil {
		t.Fatalf("ParseSettings() error = %v", err)
	}

	if err := settings.ValidateValues(map[string]string{}); err == nil {
		t.Fatalf("expected missing required variable to fail")
	}
	if err := settings.ValidateValues(map[string]string{"employee_name": "Budi", "reason": "vacation"}); err == nil {
		t.Fatalf("expected out-of-options select value to fail")
	}
	if err := settings.ValidateValues(map[string]string{"employee_name": "Budi", "extra": "x"}); err == nil {
		t.Fatalf("expected undeclared value to fail")
	}
	if err := settings.ValidateValues(map[string]string{"employee_name": "Budi", "reason": "sick"}); err != nil {
		t.Fatalf("expected valid values to pass, got %v", err)
	}
}

func TestRenderSubstitutesAndEscapes(t *testing.T) {
	settings, err := ParseSettings([]byte(validSettingsJSON()))
	if err != nil {
		t.Fatalf("ParseSettings() error = %v", err)
	}
	html := settings.Render(map[string]string{"employee_name": "Budi <script>"})
	if !strings.Contains(html, "<h1>Surat Keterangan</h1>") {
		t.Fatalf("expected heading in output: %s", html)
	}
	if !strings.Contains(html, "Budi &lt;script&gt;") {
		t.Fatalf("expected escaped variable value: %s", html)
	}
	if strings.Contains(html, "<script>") {
		t.Fatalf("unescaped value leaked into output: %s", html)
	}
}
