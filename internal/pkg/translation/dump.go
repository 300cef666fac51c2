package translation

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

type bindingDump struct {
	Binding  string `yaml:"binding"`
	Category string `yaml:"category"`
	Kind     string `yaml:"kind"`
	Strokes  string `yaml:"strokes,omitempty"`
	Release  string `yaml:"release,omitempty"`
}

type levelDump struct {
	Shift    int           `yaml:"shift"`
	Bindings []bindingDump `yaml:"bindings"`
}

type sectionDump struct {
	Name    string      `yaml:"name"`
	Default string      `yaml:"default,omitempty"`
	Match   string      `yaml:"match,omitempty"`
	Regex   string      `yaml:"regex,omitempty"`
	Levels  []levelDump `yaml:"levels,omitempty"`
}

var defaultNames = map[DefaultKind]string{
	Generic:   "generic",
	MIDIPort1: "midi",
	MIDIPort2: "midi2",
}

var modeNames = map[MatchMode]string{
	MatchEither: "class or title",
	MatchTitle:  "title",
	MatchClass:  "class",
}

func (s *Set) dumpEntry(cat Category, shift int, e *Entry) []bindingDump {
	format := func(index int) string {
		return s.Arena.Format(e.Lists[index], s.Octave)
	}
	switch e.Kind {
	case OnOff:
		return []bindingDump{{
			Binding:  e.Token(cat, shift, 0, s.Octave),
			Category: cat.String(),
			Kind:     e.Kind.String(),
			Strokes:  format(0),
			Release:  format(1),
		}}
	case Mod:
		return []bindingDump{{
			Binding:  e.Token(cat, shift, 0, s.Octave),
			Category: cat.String(),
			Kind:     e.Kind.String(),
			Strokes:  format(0),
		}}
	}
	var out []bindingDump
	for index := range e.Lists {
		if !e.Bound[index] {
			continue
		}
		out = append(out, bindingDump{
			Binding:  e.Token(cat, shift, index, s.Octave),
			Category: cat.String(),
			Kind:     e.Kind.String(),
			Strokes:  format(index),
		})
	}
	return out
}

// Dump writes the compiled sections as YAML, one document for the whole set.
func (s *Set) Dump(w io.Writer) error {
	sections := make([]sectionDump, 0, len(s.Sections))
	for _, t := range s.Sections {
		sd := sectionDump{
			Name:    t.Name,
			Default: defaultNames[t.Default],
		}
		if t.Default == NotDefault {
			sd.Match = modeNames[t.Mode]
			sd.Regex = t.Regex.String()
		}
		for shift := range t.Levels {
			ld := levelDump{Shift: shift}
			for cat := Category(0); cat < NumCategories; cat++ {
				for _, e := range t.Levels[shift].Entries(cat) {
					ld.Bindings = append(ld.Bindings, s.dumpEntry(cat, shift, e)...)
				}
			}
			if len(ld.Bindings) > 0 {
				sd.Levels = append(sd.Levels, ld)
			}
		}
		sections = append(sections, sd)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(sections); err != nil {
		return fmt.Errorf("failed to encode translations: %w", err)
	}
	return enc.Close()
}
