// Package template models document template settings as explicit value
// objects with per-block validation, so malformed templates are rejected
// when saved instead of failing at render time.
package template

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"
)

type Settings struct {
	Page           PageSettings   `json:"page"`
	Blocks         []ContentBlock `json:"blocks"`
	Variables      []VariableDef  `json:"variables"`
	SignatureSlots []SignatureSlot `json:"signatureSlots"`
}

type PageSettings struct {
	Size        string  `json:"size"`        // A4 or Letter
	Orientation string  `json:"orientation"` // portrait or landscape
	MarginMM    float64 `json:"marginMm"`
}

// ContentBlock is one laid-out unit of the letter body. The valid fields
// depend on Type; Validate enforces the per-type sub-schema.
type ContentBlock struct {
	Type     string `json:"type"` // heading, paragraph, variable, spacer
	Text     string `json:"text,omitempty"`
	Variable string `json:"variable,omitempty"`
	Level    int    `json:"level,omitempty"`
	HeightMM int    `json:"heightMm,omitempty"`
}

type VariableDef struct {
	Name     string   `json:"name"`
	Label    string   `json:"label"`
	Type     string   `json:"type"` // text, number, date, select
	Required bool     `json:"required"`
	Options  []string `json:"options,omitempty"`
}

// SignatureSlot declares one required approver position. SignOrder 0 is
// parallel; positive values form a strict sequence and must be unique.
type SignatureSlot struct {
	Role      string `json:"role"`
	UserID    string `json:"userId"`
	SignOrder int    `json:"signOrder"`
	Label     string `json:"label"`
}

// ParseSettings decodes and validates template settings JSON.
func ParseSettings(raw []byte) (Settings, error) {
	decoder := json.NewDecoder(strings.NewReader(string(raw)))
	decoder.DisallowUnknownFields()
	var settings Settings
	if err := decoder.Decode(&settings); err != nil {
		return Settings{}, fmt.Errorf("decode template settings: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

func (s Settings) Validate() error {
	switch s.Page.Size {
	case "", "A4", "Letter":
	default:
		return fmt.Errorf("page size %q is not supported", s.Page.Size)
	}
	switch s.Page.Orientation {
	case "", "portrait", "landscape":
	default:
		return fmt.Errorf("page orientation %q is not supported", s.Page.Orientation)
	}
	if s.Page.MarginMM < 0 || s.Page.MarginMM > 60 {
		return fmt.Errorf("page margin %.1fmm is out of range", s.Page.MarginMM)
	}

	names := make(map[string]struct{}, len(s.Variables))
	for i, v := range s.Variables {
		if strings.TrimSpace(v.Name) == "" {
			return fmt.Errorf("variable %d: name is required", i)
		}
		if _, dup := names[v.Name]; dup {
			return fmt.Errorf("variable %q is declared twice", v.Name)
		}
		names[v.Name] = struct{}{}
		switch v.Type {
		case "text", "number", "date":
		case "select":
			if len(v.Options) == 0 {
				return fmt.Errorf("variable %q: select requires options", v.Name)
			}
		default:
			return fmt.Errorf("variable %q: unknown type %q", v.Name, v.Type)
		}
	}

	for i, block := range s.Blocks {
		switch block.Type {
		case "heading":
			if strings.TrimSpace(block.Text) == "" {
				return fmt.Errorf("block %d: heading requires text", i)
			}
			if block.Level < 0 || block.Level > 3 {
				return fmt.Errorf("block %d: heading level %d is out of range", i, block.Level)
			}
		case "paragraph":
			if strings.TrimSpace(block.Text) == "" {
				return fmt.Errorf("block %d: paragraph requires text", i)
			}
		case "variable":
			if _, ok := names[block.Variable]; !ok {
				return fmt.Errorf("block %d: references undeclared variable %q", i, block.Variable)
			}
		case "spacer":
			if block.HeightMM <= 0 || block.HeightMM > 100 {
				return fmt.Errorf("block %d: spacer height %dmm is out of range", i, block.HeightMM)
			}
		default:
			return fmt.Errorf("block %d: unknown block type %q", i, block.Type)
		}
	}

	orders := make(map[int]struct{})
	for i, slot := range s.SignatureSlots {
		if strings.TrimSpace(slot.UserID) == "" {
			return fmt.Errorf("signature slot %d: userId is required", i)
		}
		if slot.SignOrder < 0 {
			return fmt.Errorf("signature slot %d: signOrder must be >= 0", i)
		}
		if slot.SignOrder > 0 {
			if _, dup := orders[slot.SignOrder]; dup {
				return fmt.Errorf("signature slot %d: duplicate signOrder %d", i, slot.SignOrder)
			}
			orders[slot.SignOrder] = struct{}{}
		}
	}
	return nil
}

// ValidateValues checks submitted variable values against the declared
// schema: required variables present, select values among options.
func (s Settings) ValidateValues(values map[string]string) error {
	for _, v := range s.Variables {
		value, ok := values[v.Name]
		if !ok || strings.TrimSpace(value) == "" {
			if v.Required {
				return fmt.Errorf("variable %q is required", v.Name)
			}
			continue
		}
		if v.Type == "select" {
			found := false
			for _, option := range v.Options {
				if option == value {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("variable %q: %q is not an allowed option", v.Name, value)
			}
		}
	}
	for name := range values {
		declared := false
		for _, v := range s.Variables {
			if v.Name == name {
				declared = true
				break
			}
		}
		if !declared {
			return fmt.Errorf("variable %q is not declared by the template", name)
		}
	}
	return nil
}

// Render produces the letter body HTML from the blocks with variable
// values substituted. Values are escaped; Render assumes ValidateValues
// has already passed.
func (s Settings) Render(values map[string]string) string {
	var b strings.Builder
	for _, block := range s.Blocks {
		switch block.Type {
		case "heading":
			level := block.Level
			if level == 0 {
				level = 1
			}
			fmt.Fprintf(&b, "<h%d>%s</h%d>\n", level, html.EscapeString(block.Text), level)
		case "paragraph":
			fmt.Fprintf(&b, "<p>%s</p>\n", html.EscapeString(block.Text))
		case "variable":
			fmt.Fprintf(&b, "<p class=\"variable\">%s</p>\n", html.EscapeString(values[block.Variable]))
		case "spacer":
			fmt.Fprintf(&b, "<div style=\"height:%dmm\"></div>\n", block.HeightMM)
		}
	}
	return b.String()
}
