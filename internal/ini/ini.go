// Package ini is an order-preserving INI document for Surge-family configs.
//
// Lines in raw sections are stored verbatim under the NoName key, since rule lines
// such as URL-REGEX or filter_remote entries may contain '='.
package ini

import (
	"fmt"
	"strings"
)

// NoName is the key of a bare line without "key = value" form.
const NoName = "{NONAME}"

type Item struct {
	Key   string
	Value string
}

// Line renders the item as it appears in the file.
func (it Item) Line() string {
	if it.Key == NoName {
		return it.Value
	}
	return it.Key + " = " + it.Value
}

type Section struct {
	Name  string
	Items []Item
}

// Values returns every value stored under key.
func (s *Section) Values(key string) []string {
	var out []string
	for _, it := range s.Items {
		if it.Key == key {
			out = append(out, it.Value)
		}
	}
	return out
}

// Document is an ordered list of sections. Lines before the first header live in
// a section with an empty name.
type Document struct {
	sections []*Section
}

func New() *Document {
	return &Document{}
}

// Parse reads text. Sections named in raw keep every line verbatim.
func Parse(text string, raw ...string) (*Document, error) {
	rawSet := make(map[string]bool, len(raw))
	for _, r := range raw {
		rawSet[r] = true
	}
	doc := New()
	var cur *Section
	for n, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "[") {
			if !strings.HasSuffix(trimmed, "]") {
				return nil, fmt.Errorf("line %d: unterminated section header %q", n+1, trimmed)
			}
			cur = doc.EnsureSection(strings.TrimSpace(trimmed[1 : len(trimmed)-1]))
			continue
		}
		if cur == nil {
			cur = doc.EnsureSection("")
		}
		if rawSet[cur.Name] || strings.HasPrefix(trimmed, ";") || strings.HasPrefix(trimmed, "#") {
			cur.Items = append(cur.Items, Item{Key: NoName, Value: trimmed})
			continue
		}
		key, value, ok := strings.Cut(trimmed, "=")
		if !ok {
			cur.Items = append(cur.Items, Item{Key: NoName, Value: trimmed})
			continue
		}
		cur.Items = append(cur.Items, Item{Key: strings.TrimSpace(key), Value: strings.TrimSpace(value)})
	}
	return doc, nil
}

// Section returns the named section or nil.
func (d *Document) Section(name string) *Section {
	for _, s := range d.sections {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// EnsureSection returns the named section, appending it when missing.
func (d *Document) EnsureSection(name string) *Section {
	if s := d.Section(name); s != nil {
		return s
	}
	s := &Section{Name: name}
	d.sections = append(d.sections, s)
	return s
}

// Sections lists section names in document order.
func (d *Document) Sections() []string {
	names := make([]string, 0, len(d.sections))
	for _, s := range d.sections {
		names = append(names, s.Name)
	}
	return names
}

// EraseSection removes all items of a section, keeping its position.
func (d *Document) EraseSection(name string) {
	if s := d.Section(name); s != nil {
		s.Items = nil
	}
}

// Set stores key = value in section. NoName keys always append; other keys replace
// the first existing item.
func (d *Document) Set(section, key, value string) {
	s := d.EnsureSection(section)
	if key != NoName {
		for i := range s.Items {
			if s.Items[i].Key == key {
				s.Items[i].Value = value
				return
			}
		}
	}
	s.Items = append(s.Items, Item{Key: key, Value: value})
}

// Append adds a bare line to section.
func (d *Document) Append(section, line string) {
	d.Set(section, NoName, line)
}

// Get returns the first value of key in section.
func (d *Document) Get(section, key string) (string, bool) {
	s := d.Section(section)
	if s == nil {
		return "", false
	}
	for _, it := range s.Items {
		if it.Key == key {
			return it.Value, true
		}
	}
	return "", false
}

func (d *Document) String() string {
	var sb strings.Builder
	for i, s := range d.sections {
		if i > 0 {
			sb.WriteString("\n")
		}
		if s.Name != "" {
			sb.WriteString("[" + s.Name + "]\n")
		}
		for _, it := range s.Items {
			sb.WriteString(it.Line() + "\n")
		}
	}
	return sb.String()
}
