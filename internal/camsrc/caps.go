package camsrc

import (
	"fmt"
	"strconv"
	"strings"
)

// MediaTypeRaw is the media type of every structure the element produces.
const MediaTypeRaw = "video/x-raw"

// Field is one typed caps field. Type may be empty when the caps string did
// not carry an explicit type.
type Field struct {
	Name  string
	Type  string
	Value string
}

// Structure is a named, ordered set of fields.
type Structure struct {
	Name   string
	Fields []Field
}

// NewStructure builds a structure.
func NewStructure(name string, fields ...Field) Structure {
	return Structure{Name: name, Fields: fields}
}

// Value returns the raw value of a field.
func (s Structure) Value(name string) (string, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Int returns a positive integer field.
func (s Structure) Int(name string) (int, error) {
	v, ok := s.Value(name)
	if !ok {
		return 0, fmt.Errorf("missing %s", name)
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, v)
	}
	return n, nil
}

// Fraction returns a fraction field with a positive numerator and denominator.
func (s Structure) Fraction(name string) (Fraction, error) {
	v, ok := s.Value(name)
	if !ok {
		return Fraction{}, fmt.Errorf("missing %s", name)
	}
	num, den, found := strings.Cut(v, "/")
	if !found {
		den = "1"
	}
	n, errN := strconv.Atoi(strings.TrimSpace(num))
	d, errD := strconv.Atoi(strings.TrimSpace(den))
	if errN != nil || errD != nil || n <= 0 || d <= 0 {
		return Fraction{}, fmt.Errorf("invalid %s %q", name, v)
	}
	return Fraction{Num: n, Den: d}, nil
}

func (s Structure) String() string {
	var b strings.Builder
	b.WriteString(s.Name)
	for _, f := range s.Fields {
		b.WriteString(", ")
		b.WriteString(f.Name)
		b.WriteByte('=')
		if f.Type != "" {
			b.WriteString("(" + f.Type + ")")
		}
		b.WriteString(f.Value)
	}
	return b.String()
}

// Caps is a capability description: an ordered list of structures.
// A nil Caps means "no capabilities known".
type Caps []Structure

func (c Caps) String() string {
	if len(c) == 0 {
		return "EMPTY"
	}
	parts := make([]string, len(c))
	for i, s := range c {
		parts[i] = s.String()
	}
	return strings.Join(parts, "; ")
}

// TemplateCaps is what the element can produce before a device is open.
func TemplateCaps() Caps {
	return Caps{
		NewStructure(MediaTypeRaw, Field{Name: "format", Type: "string", Value: LayoutPacked422.String()}),
		NewStructure(MediaTypeRaw, Field{Name: "format", Type: "string", Value: LayoutPlanar420.String()}),
	}
}

// ParseCaps parses the textual form produced by Caps.String. Field types in
// parentheses are optional:
//
//	video/x-raw, format=(string)YUY2, width=640, height=480, framerate=30/1
func ParseCaps(text string) (Caps, error) {
	text = strings.TrimSpace(text)
	if text == "" || text == "EMPTY" {
		return Caps{}, nil
	}
	var caps Caps
	for _, part := range strings.Split(text, ";") {
		s, err := parseStructure(part)
		if err != nil {
			return nil, err
		}
		caps = append(caps, s)
	}
	return caps, nil
}

func parseStructure(text string) (Structure, error) {
	items := strings.Split(text, ",")
	name := strings.TrimSpace(items[0])
	if name == "" {
		return Structure{}, fmt.Errorf("caps structure %q has no name", text)
	}
	s := Structure{Name: name}
	for _, item := range items[1:] {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		key, value, ok := strings.Cut(item, "=")
		if !ok {
			return Structure{}, fmt.Errorf("caps field %q has no value", item)
		}
		f := Field{Name: strings.TrimSpace(key)}
		value = strings.TrimSpace(value)
		if strings.HasPrefix(value, "(") {
			end := strings.IndexByte(value, ')')
			if end < 0 {
				return Structure{}, fmt.Errorf("caps field %q has unterminated type", item)
			}
			f.Type = value[1:end]
			value = strings.TrimSpace(value[end+1:])
		}
		f.Value = value
		s.Fields = append(s.Fields, f)
	}
	return s, nil
}
