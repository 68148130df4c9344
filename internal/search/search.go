package search

// Result is a single song hit returned to the caller.
type Result struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Author      string `json:"author,omitempty"`
	Snippet     string `json:"snippet,omitempty"`
	Key         string `json:"key,omitempty"`
	Language    string `json:"language,omitempty"`
	WorkspaceID string `json:"workspaceId"`
}

// Query describes a song search request.
type Query struct {
	Text              string
	FilterWorkspaceID string
	FilterLanguage    string
	Limit             int
	Offset            int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text song search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push songs into a search index.
type Indexer interface {
	IndexSong(song SongRecord) error
	DeleteSong(id string) error
}

// SongRecord is the data we index for a song.
type SongRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Lyrics      string `json:"lyrics"`
	Key         string `json:"key"`
	Language    string `json:"language"`
	WorkspaceID string `json:"workspaceId"`
}
