package export

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestChordLyricsToHTML(t *testing.T) {
	tests := []struct {
		name     string
		lyrics   string
		contains []string
		excludes []string
	}{
		{
			name:   "chord over word",
			lyrics: "[C]Amazing [F]grace",
			contains: []string{
				`<span class="chord">C</span>`,
				`<span class="word">Amazing </span>`,
				`<span class="chord">F</span>`,
				`<span class="word">grace</span>`,
			},
		},
		{
			name:     "section label becomes heading",
			lyrics:   "[Chorus]\n[G]How sweet the sound",
			contains: []string{`<div class="section">Chorus</div>`},
			excludes: []string{`<span class="chord">Chorus</span>`},
		},
		{
			name:     "numbered section label",
			lyrics:   "[Verse 1]",
			contains: []string{`<div class="section">Verse 1</div>`},
		},
		{
			name:     "minor chord line is not a label",
			lyrics:   "[Dm]",
			contains: []string{`<span class="chord">Dm</span>`},
		},
		{
			name:     "text before first chord",
			lyrics:   "Oh, [C]sing",
			contains: []string{`<span class="word">Oh, </span>`},
		},
		{
			name:     "blank line spacer",
			lyrics:   "line one\n\nline two",
			contains: []string{`<div class="blank">`},
		},
		{
			name:     "html is escaped",
			lyrics:   "[C]<script>",
			contains: []string{"&lt;script&gt;"},
			excludes: []string{"<script>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ChordLyricsToHTML(tt.lyrics, false)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("output missing %q:\n%s", want, got)
				}
			}
			for _, not := range tt.excludes {
				if strings.Contains(got, not) {
					t.Errorf("output contains %q:\n%s", not, got)
				}
			}
		})
	}
}

func TestChordLyricsToHTMLLyricsOnly(t *testing.T) {
	got := ChordLyricsToHTML("[C]Amazing [F]grace", true)
	if strings.Contains(got, "chord") {
		t.Errorf("lyrics-only output still has chords:\n%s", got)
	}
	if !strings.Contains(got, "Amazing grace") {
		t.Errorf("lyrics lost:\n%s", got)
	}
}

func TestRenderSheetHTML(t *testing.T) {
	html, err := RenderSheetHTML(TemplateData{
		ServiceName:   "Sunday Morning",
		ServiceDate:   time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC),
		WorkspaceName: "Main Campus",
		Songs: []TemplateSong{
			{Title: "Amazing Grace", Author: "John Newton", Key: "G", ContentHTML: "<div>body</div>"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Sunday Morning", "Main Campus", "Mar 9, 2025", "Amazing Grace", "John Newton", `<span class="key">G</span>`, "<div>body</div>"} {
		if !strings.Contains(html, want) {
			t.Errorf("sheet missing %q", want)
		}
	}
}

type fakeExportStore struct {
	service   ServiceInfo
	workspace WorkspaceInfo
	songs     []SetListSongInfo
	err       error
}

func (f *fakeExportStore) GetServiceInfo(_ context.Context, id string) (ServiceInfo, error) {
	if f.err != nil {
		return ServiceInfo{}, f.err
	}
	return f.service, nil
}

func (f *fakeExportStore) GetWorkspaceInfo(_ context.Context, id string) (WorkspaceInfo, error) {
	return f.workspace, nil
}

func (f *fakeExportStore) ListSetListSongs(_ context.Context, serviceID string) ([]SetListSongInfo, error) {
	return f.songs, nil
}

func TestExportHTMLTransposesPerSetList(t *testing.T) {
	store := &fakeExportStore{
		service: ServiceInfo{
			ID:          "svc1",
			Name:        "Evening Service",
			ServiceDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			WorkspaceID: "ws1",
		},
		workspace: WorkspaceInfo{ID: "ws1", Name: "Youth"},
		songs: []SetListSongInfo{
			{SongID: "s1", Title: "Song One", Key: "C", Lyrics: "[C]la [G]la", Transposition: 2},
			{SongID: "s2", Title: "Song Two", Key: "E", Lyrics: "[E]da", Transposition: 0},
		},
	}

	result, err := NewService(store).Export(context.Background(), Request{ServiceID: "svc1", Format: FormatHTML})
	if err != nil {
		t.Fatal(err)
	}
	html := string(result.Data)

	// Song one is shifted up two semitones; song two stays put.
	for _, want := range []string{
		`<span class="key">D</span>`,
		`<span class="chord">D</span>`,
		`<span class="chord">A</span>`,
		`<span class="key">E</span>`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("export missing %q", want)
		}
	}
	if strings.Contains(html, `<span class="chord">C</span>`) {
		t.Error("untransposed chord leaked into export")
	}
	if result.Filename != "Evening-Service.html" {
		t.Errorf("filename = %q", result.Filename)
	}
	if result.MimeType != "text/html; charset=utf-8" {
		t.Errorf("mime = %q", result.MimeType)
	}
}

func TestExportUnknownFormat(t *testing.T) {
	store := &fakeExportStore{service: ServiceInfo{WorkspaceID: "ws1"}}
	if _, err := NewService(store).Export(context.Background(), Request{ServiceID: "svc1", Format: "xlsx"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestExportPropagatesStoreError(t *testing.T) {
	boom := errors.New("db down")
	store := &fakeExportStore{err: boom}
	if _, err := NewService(store).Export(context.Background(), Request{ServiceID: "svc1", Format: FormatHTML}); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped store error", err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Sunday Morning", "Sunday-Morning"},
		{"praise & worship!", "praise--worship"},
		{"", "setlist"},
		{strings.Repeat("a", 80), strings.Repeat("a", 50)},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
