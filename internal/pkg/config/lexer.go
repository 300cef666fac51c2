package config

import (
	"strings"
	"unicode"
)

// token is one word of a binding line.
type token struct {
	Text   string
	Quoted bool
	// Suffix is the character after a slash, "XK_a/D" has Text "XK_a" and
	// Suffix 'D'. Zero when the token has no slash.
	Suffix byte
	Slash  bool
	Col    int
}

func (t token) String() string {
	switch {
	case t.Quoted:
		return `"` + t.Text + `"`
	case t.Slash && t.Suffix != 0:
		return t.Text + "/" + string(t.Suffix)
	case t.Slash:
		return t.Text + "/"
	}
	return t.Text
}

// tokenize splits a line into words. Words are separated by white space, a
// double quote starts a string running to the next double quote or the end
// of the line, and an unquoted word starting with '#' ends the line.
func tokenize(line string) []token {
	var out []token
	i := 0
	for i < len(line) {
		r := rune(line[i])
		if unicode.IsSpace(r) {
			i++
			continue
		}
		start := i
		if line[i] == '"' {
			end := strings.IndexByte(line[i+1:], '"')
			var text string
			if end < 0 {
				text = line[i+1:]
				i = len(line)
			} else {
				text = line[i+1 : i+1+end]
				i += end + 2
			}
			out = append(out, token{Text: text, Quoted: true, Col: start + 1})
			continue
		}
		if line[i] == '#' {
			break
		}
		for i < len(line) && !unicode.IsSpace(rune(line[i])) && line[i] != '"' {
			i++
		}
		word := line[start:i]
		t := token{Text: word, Col: start + 1}
		if slash := strings.IndexByte(word, '/'); slash >= 0 {
			t.Text = word[:slash]
			t.Slash = true
			if rest := word[slash+1:]; len(rest) > 0 {
				t.Suffix = rest[0]
			}
		}
		out = append(out, t)
	}
	return out
}
