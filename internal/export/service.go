package export

import (
	"context"
	"fmt"
	"html/template"

	"github.com/shilo-maker/soluflow-sub001/internal/transpose"
)

// DataStore defines the data access the exporter needs.
type DataStore interface {
	GetServiceInfo(ctx context.Context, id string) (ServiceInfo, error)
	GetWorkspaceInfo(ctx context.Context, id string) (WorkspaceInfo, error)
	ListSetListSongs(ctx context.Context, serviceID string) ([]SetListSongInfo, error)
}

// Service renders set lists into exportable chord sheets.
type Service struct {
	store DataStore
}

// NewService creates a new export service.
func NewService(store DataStore) *Service {
	return &Service{store: store}
}

// Export generates a chord sheet in the requested format. Every song is
// rendered in its set-list key, so the sheet matches what the band will
// actually see during the live session.
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	svc, err := s.store.GetServiceInfo(ctx, req.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("get service: %w", err)
	}
	workspace, err := s.store.GetWorkspaceInfo(ctx, svc.WorkspaceID)
	if err != nil {
		return nil, fmt.Errorf("get workspace: %w", err)
	}
	songs, err := s.store.ListSetListSongs(ctx, req.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("list set list: %w", err)
	}

	data := TemplateData{
		ServiceName:   svc.Name,
		ServiceDate:   svc.ServiceDate,
		WorkspaceName: workspace.Name,
	}
	for _, song := range songs {
		lyrics := transpose.Lyrics(song.Lyrics, song.Transposition)
		key, err := transpose.Key(song.Key, song.Transposition)
		if err != nil {
			// Unparseable stored keys render as-is rather than
			// failing the whole sheet.
			key = song.Key
		}
		data.Songs = append(data.Songs, TemplateSong{
			Title:       song.Title,
			Author:      song.Author,
			Key:         key,
			ContentHTML: template.HTML(ChordLyricsToHTML(lyrics, req.LyricsOnly)),
		})
	}

	html, err := RenderSheetHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch req.Format {
	case FormatHTML:
		return &Result{
			Data:     []byte(html),
			Filename: sanitizeFilename(svc.Name) + ".html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	case FormatPDF:
		return exportPDF(html, svc.Name)
	case FormatDOCX:
		return exportDOCX(ctx, html, svc.Name)
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}
