package midi

import (
	"fmt"
	"strings"
)

var noteNames = [12]string{"C", "C#", "D", "Eb", "E", "F", "F#", "G", "G#", "A", "Bb", "B"}

// semitone offsets of the natural note names, starting at "a"
var naturals = [7]int{9, 11, 0, 2, 4, 5, 7}

// NoteName renders a note number using octave numbering shifted by offset,
// with offset 0 middle C (60) is "C5".
func NoteName(note uint8, offset int) string {
	return fmt.Sprintf("%s%d", noteNames[note%12], int(note/12)+offset)
}

func noteToString(note byte) string {
	return fmt.Sprintf("%-3s", NoteName(note, 0))
}

// NoteNumber computes the note number for a note letter (a-g, any case), an
// accidental ('#', 'b' or 0) and an octave number. The result may fall outside
// of the MIDI range, callers validate it.
func NoteNumber(letter, accidental byte, octave, offset int) (int, error) {
	l := strings.ToLower(string(letter))
	if len(l) != 1 || l[0] < 'a' || l[0] > 'g' {
		return 0, fmt.Errorf("invalid note name: %q", letter)
	}
	n := naturals[l[0]-'a']
	switch accidental {
	case 0:
	case '#':
		n++
	case 'b', 'B':
		n--
	default:
		return 0, fmt.Errorf("invalid accidental: %q", accidental)
	}
	return n + 12*(octave-offset), nil
}
