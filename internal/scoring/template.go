package scoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Template maps section names to the module identifiers that belong to them,
// e.g. {"english": ["english1","english2"], "math": ["math1","math2"]}.
// Section order is the declaration order of the stored JSON object.
type Template struct {
	ID       string    `json:"id,omitempty"`
	Name     string    `json:"name,omitempty"`
	Sections []Section `json:"-"`
}

type Section struct {
	Name    string
	Modules []string
}

// SectionNames returns section names in declaration order.
func (t Template) SectionNames() []string {
	out := make([]string, 0, len(t.Sections))
	for _, s := range t.Sections {
		out = append(out, s.Name)
	}
	return out
}

// Validate rejects templates that cannot drive a scoring run.
func (t Template) Validate() error {
	if len(t.Sections) == 0 {
		return &ConfigError{Scope: "template", Reason: "template has no sections"}
	}
	seen := map[string]bool{}
	for _, s := range t.Sections {
		if strings.TrimSpace(s.Name) == "" {
			return &ConfigError{Scope: "template", Reason: "section name is required"}
		}
		if seen[s.Name] {
			return &ConfigError{Scope: "template", Reason: fmt.Sprintf("duplicate section %q", s.Name)}
		}
		seen[s.Name] = true
	}
	return nil
}

// ModuleIndex resolves module identifiers to section names. Lookups are
// trimmed and case-insensitive.
type ModuleIndex map[string]string

// Index builds the module -> section map once per template. A module listed
// under several sections belongs to the first one.
func (t Template) Index() ModuleIndex {
	idx := ModuleIndex{}
	for _, s := range t.Sections {
		for _, m := range s.Modules {
			k := moduleKey(m)
			if k == "" {
				continue
			}
			if _, dup := idx[k]; dup {
				continue
			}
			idx[k] = s.Name
		}
	}
	return idx
}

// Section returns the section that owns module.
func (idx ModuleIndex) Section(module string) (string, bool) {
	s, ok := idx[moduleKey(module)]
	return s, ok
}

func moduleKey(m string) string { return strings.ToLower(strings.TrimSpace(m)) }

// ParseSections decodes a {"section": ["module", ...]} object keeping key order.
func ParseSections(data []byte) ([]Section, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("template sections: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("template sections: expected object")
	}
	var out []Section
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("template sections: %w", err)
		}
		name, _ := kt.(string)
		var modules []string
		if err := dec.Decode(&modules); err != nil {
			return nil, fmt.Errorf("template section %q: %w", name, err)
		}
		out = append(out, Section{Name: name, Modules: modules})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("template sections: %w", err)
	}
	return out, nil
}

// SectionsJSON encodes sections as an ordered JSON object.
func SectionsJSON(sections []Section) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range sections {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(s.Name)
		if err != nil {
			return nil, err
		}
		mods := s.Modules
		if mods == nil {
			mods = []string{}
		}
		v, err := json.Marshal(mods)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON emits {"id","name","sections":{...}} with sections in order.
func (t Template) MarshalJSON() ([]byte, error) {
	secs, err := SectionsJSON(t.Sections)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		ID       string          `json:"id,omitempty"`
		Name     string          `json:"name,omitempty"`
		Sections json.RawMessage `json:"sections"`
	}{t.ID, t.Name, secs})
}

func (t *Template) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID       string          `json:"id"`
		Name     string          `json:"name"`
		Sections json.RawMessage `json:"sections"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.ID, t.Name, t.Sections = raw.ID, raw.Name, nil
	if len(raw.Sections) == 0 || string(raw.Sections) == "null" {
		return nil
	}
	secs, err := ParseSections(raw.Sections)
	if err != nil {
		return err
	}
	t.Sections = secs
	return nil
}
