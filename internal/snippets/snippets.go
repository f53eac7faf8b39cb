// Package snippets stores markdown snippets, one "<id>.md" file per
// snippet, and answers substring searches over them.
package snippets

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/lewisedginton/brainoverflow/internal/storage_manager"
	"github.com/lewisedginton/brainoverflow/pkg/prefixed_uuid"
)

const (
	fileExt  = ".md"
	idPrefix = "snippet"
)

var (
	// ErrInvalidID is returned for ids that are not a single path segment.
	ErrInvalidID = errors.New("invalid snippet id")
	// ErrNotFound is returned when no snippet has the requested id.
	ErrNotFound = errors.New("snippet not found")
)

// Snippet is a markdown note.
type Snippet struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// SearchRequest asks for snippets containing Text.
type SearchRequest struct {
	Text string `json:"text"`
}

// SearchResult pairs a snippet with the first line that matched.
type SearchResult struct {
	Match   string  `json:"match"`
	Snippet Snippet `json:"snippet"`
}

// Store keeps snippets in a FileProvider.
type Store struct {
	files storage_manager.FileProvider
}

// NewStore creates a Store on files.
func NewStore(files storage_manager.FileProvider) *Store {
	return &Store{files: files}
}

// ValidateID checks id can be used as a file name in the store root.
func ValidateID(id string) error {
	switch {
	case strings.TrimSpace(id) == "":
		return fmt.Errorf("%w: empty", ErrInvalidID)
	case id == "." || id == "..":
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	case strings.ContainsAny(id, "/\\\x00"):
		return fmt.Errorf("%w: %q must not contain path separators", ErrInvalidID, id)
	}
	return nil
}

// NewID returns a fresh snippet id.
func NewID() string {
	return prefixed_uuid.New(idPrefix).String()
}

// Save writes the snippet, assigning a new id when it has none.
func (s *Store) Save(ctx context.Context, snippet Snippet) (Snippet, error) {
	if strings.TrimSpace(snippet.ID) == "" {
		snippet.ID = NewID()
	}
	if err := ValidateID(snippet.ID); err != nil {
		return Snippet{}, err
	}

	if err := s.files.Write(ctx, snippet.ID+fileExt, []byte(snippet.Text)); err != nil {
		return Snippet{}, fmt.Errorf("failed to save snippet %s: %w", snippet.ID, err)
	}
	return snippet, nil
}

// Get loads one snippet.
func (s *Store) Get(ctx context.Context, id string) (Snippet, error) {
	if err := ValidateID(id); err != nil {
		return Snippet{}, err
	}

	data, err := s.files.Read(ctx, id+fileExt)
	if errors.Is(err, storage_manager.ErrNotFound) {
		return Snippet{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Snippet{}, fmt.Errorf("failed to read snippet %s: %w", id, err)
	}
	return Snippet{ID: id, Text: string(data)}, nil
}

// Delete removes a snippet. Deleting a missing snippet reports ErrNotFound.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}

	exists, err := s.files.Exists(ctx, id+fileExt)
	if err != nil {
		return fmt.Errorf("failed to look up snippet %s: %w", id, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := s.files.Delete(ctx, id+fileExt); err != nil {
		return fmt.Errorf("failed to delete snippet %s: %w", id, err)
	}
	return nil
}

// List returns every snippet ordered by id. Only ".md" files directly in
// the store root are snippets.
func (s *Store) List(ctx context.Context) ([]Snippet, error) {
	ids, err := s.ids(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]Snippet, 0, len(ids))
	for _, id := range ids {
		snippet, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			// Removed between listing and reading.
			continue
		}
		if err != nil {
			return nil, err
		}
		result = append(result, snippet)
	}
	return result, nil
}

// Search returns, for every snippet with a line containing text (ignoring
// case), that first line and the snippet. Blank text matches nothing.
func (s *Store) Search(ctx context.Context, text string) ([]SearchResult, error) {
	results := []SearchResult{}
	if strings.TrimSpace(text) == "" {
		return results, nil
	}

	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	for _, snippet := range all {
		if match, ok := FirstMatch(snippet.Text, text); ok {
			results = append(results, SearchResult{Match: match, Snippet: snippet})
		}
	}
	return results, nil
}

// FirstMatch returns the first line of content containing text, ignoring
// case. Lines are split on "\n" with a trailing "\r" removed.
func FirstMatch(content, text string) (string, bool) {
	needle := strings.ToLower(text)
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.Contains(strings.ToLower(line), needle) {
			return line, true
		}
	}
	return "", false
}

func (s *Store) ids(ctx context.Context) ([]string, error) {
	files, err := s.files.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list snippets: %w", err)
	}

	ids := make([]string, 0, len(files))
	for _, file := range files {
		if strings.Contains(file, "/") || path.Ext(file) != fileExt {
			continue
		}
		id := strings.TrimSuffix(file, fileExt)
		if ValidateID(id) == nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
