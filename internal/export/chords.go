package export

import (
	"html"
	"strings"
)

// ChordLyricsToHTML turns bracket-chord lyrics into chord-over-word HTML.
// Each line becomes a row of segments; a segment pairs the chord (possibly
// empty) with the lyric run it sits above. Section labels like [Chorus]
// survive as chords here because the transposer already left them alone;
// lines consisting only of a label render as a section heading instead.
func ChordLyricsToHTML(lyrics string, lyricsOnly bool) string {
	var b strings.Builder
	for _, line := range strings.Split(lyrics, "\n") {
		renderLine(&b, line, lyricsOnly)
	}
	return b.String()
}

func renderLine(b *strings.Builder, line string, lyricsOnly bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		b.WriteString("<div class=\"blank\">&nbsp;</div>\n")
		return
	}
	if label, ok := sectionLabel(trimmed); ok {
		b.WriteString("<div class=\"section\">" + html.EscapeString(label) + "</div>\n")
		return
	}

	if lyricsOnly {
		b.WriteString("<div class=\"line\">" + html.EscapeString(stripChords(line)) + "</div>\n")
		return
	}

	b.WriteString("<div class=\"line\">")
	rest := line
	for rest != "" {
		open := strings.Index(rest, "[")
		if open < 0 {
			writeSegment(b, "", rest)
			break
		}
		if open > 0 {
			writeSegment(b, "", rest[:open])
		}
		closing := strings.Index(rest[open:], "]")
		if closing < 0 {
			writeSegment(b, "", rest[open:])
			break
		}
		chord := rest[open+1 : open+closing]
		rest = rest[open+closing+1:]
		// The chord sits above the lyric run up to the next chord.
		next := strings.Index(rest, "[")
		var run string
		if next < 0 {
			run = rest
			rest = ""
		} else {
			run = rest[:next]
			rest = rest[next:]
		}
		writeSegment(b, chord, run)
	}
	b.WriteString("</div>\n")
}

func writeSegment(b *strings.Builder, chord, text string) {
	if chord == "" && text == "" {
		return
	}
	b.WriteString("<span class=\"seg\"><span class=\"chord\">")
	b.WriteString(html.EscapeString(chord))
	b.WriteString("</span><span class=\"word\">")
	if text == "" {
		b.WriteString("&nbsp;")
	} else {
		b.WriteString(html.EscapeString(text))
	}
	b.WriteString("</span></span>")
}

// sectionLabel reports whether the whole line is a single [Label] marker.
func sectionLabel(line string) (string, bool) {
	if !strings.HasPrefix(line, "[") || !strings.HasSuffix(line, "]") {
		return "", false
	}
	inner := line[1 : len(line)-1]
	if inner == "" || strings.ContainsAny(inner, "[]") {
		return "", false
	}
	// Chords never contain spaces; labels like "Verse 1" do. A bare
	// single word could be either, so require at least one lowercase
	// letter beyond the first to rule out chord symbols.
	if strings.ContainsRune(inner, ' ') {
		return inner, true
	}
	for _, r := range inner[1:] {
		if r >= 'a' && r <= 'z' && !strings.ContainsRune("majdisugb", r) {
			return inner, true
		}
	}
	return "", false
}

func stripChords(line string) string {
	var b strings.Builder
	depth := 0
	for _, r := range line {
		switch {
		case r == '[':
			depth++
		case r == ']':
			if depth > 0 {
				depth--
			}
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}
