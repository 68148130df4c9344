// Package transpose implements chord and key transposition by semitone
// offsets. It is a pure display-side helper: the live session layer only
// replicates the integer offset and never looks inside these functions.
package transpose

import (
	"errors"
	"strings"
)

var (
	sharpNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}
	flatNames  = []string{"C", "Db", "D", "Eb", "E", "F", "Gb", "G", "Ab", "A", "Bb", "B"}

	pitchIndex = map[string]int{
		"C": 0, "C#": 1, "Db": 1, "D": 2, "D#": 3, "Eb": 3, "E": 4, "Fb": 4,
		"E#": 5, "F": 5, "F#": 6, "Gb": 6, "G": 7, "G#": 8, "Ab": 8, "A": 9,
		"A#": 10, "Bb": 10, "B": 11, "Cb": 11, "B#": 0,
	}

	// Keys conventionally spelled with flats; everything else gets sharps.
	flatKeys = map[string]bool{
		"F": true, "Bb": true, "Eb": true, "Ab": true, "Db": true, "Gb": true,
		"Dm": true, "Gm": true, "Cm": true, "Fm": true, "Bbm": true, "Ebm": true,
	}
)

var ErrInvalidChord = errors.New("invalid chord symbol")

// Key transposes a key name ("G", "Bbm") by amount semitones.
func Key(key string, amount int) (string, error) {
	return Chord(key, amount)
}

// Chord transposes a single chord symbol by amount semitones, preserving
// quality suffixes ("Am7", "Dsus4") and slash basses ("G/B").
func Chord(chord string, amount int) (string, error) {
	chord = strings.TrimSpace(chord)
	if chord == "" {
		return "", ErrInvalidChord
	}

	var bass string
	if slash := strings.LastIndex(chord, "/"); slash > 0 && slash < len(chord)-1 {
		transposedBass, err := Chord(chord[slash+1:], amount)
		if err != nil {
			return "", err
		}
		bass = "/" + transposedBass
		chord = chord[:slash]
	}

	root, suffix, err := splitRoot(chord)
	if err != nil {
		return "", err
	}

	index, ok := pitchIndex[root]
	if !ok {
		return "", ErrInvalidChord
	}
	shifted := ((index+amount)%12 + 12) % 12

	names := sharpNames
	if preferFlats(chord) {
		names = flatNames
	}
	return names[shifted] + suffix + bass, nil
}

// Lyrics transposes every bracketed chord in chord-over-lyrics markup,
// e.g. "[G]Amazing [C]grace". Unparseable brackets pass through untouched.
func Lyrics(lyrics string, amount int) string {
	if amount == 0 {
		return lyrics
	}
	var out strings.Builder
	out.Grow(len(lyrics))

	rest := lyrics
	for {
		open := strings.Index(rest, "[")
		if open < 0 {
			out.WriteString(rest)
			return out.String()
		}
		close := strings.Index(rest[open:], "]")
		if close < 0 {
			out.WriteString(rest)
			return out.String()
		}
		close += open

		out.WriteString(rest[:open])
		token := rest[open+1 : close]
		if transposed, err := Chord(token, amount); err == nil {
			out.WriteString("[" + transposed + "]")
		} else {
			out.WriteString(rest[open : close+1])
		}
		rest = rest[close+1:]
	}
}

func splitRoot(chord string) (root, suffix string, err error) {
	if len(chord) == 0 {
		return "", "", ErrInvalidChord
	}
	letter := chord[0]
	if letter < 'A' || letter > 'G' {
		return "", "", ErrInvalidChord
	}
	rootLen := 1
	if len(chord) > 1 && (chord[1] == '#' || chord[1] == 'b') {
		rootLen = 2
	}
	suffix = chord[rootLen:]
	if !validSuffix(suffix) {
		return "", "", ErrInvalidChord
	}
	return chord[:rootLen], suffix, nil
}

// validSuffix accepts quality/extension text ("m7", "sus4", "add9", "maj7",
// "dim", "aug", "7b5") and rejects plain words such as section labels.
func validSuffix(suffix string) bool {
	for _, r := range suffix {
		switch {
		case r >= '0' && r <= '9':
		case strings.ContainsRune("majdisugnb#+-()", r):
		default:
			return false
		}
	}
	return true
}

func preferFlats(chord string) bool {
	root, suffix, err := splitRoot(chord)
	if err != nil {
		return false
	}
	if strings.HasSuffix(root, "b") {
		return true
	}
	minor := strings.HasPrefix(suffix, "m") && !strings.HasPrefix(suffix, "maj")
	if minor {
		return flatKeys[root+"m"]
	}
	return flatKeys[root]
}
