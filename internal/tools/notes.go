package tools

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Note is a stored user note.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NotesStore persists notes in a local SQLite database.
type NotesStore struct {
	db *sql.DB
}

// OpenNotesStore opens (and initializes) the notes database at path.
// ":memory:" gives an ephemeral store.
func OpenNotesStore(path string) (*NotesStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode on %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy_timeout on %s: %w", path, err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS notes (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create notes schema: %w", err)
	}
	return &NotesStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *NotesStore) Close() error { return s.db.Close() }

// Save inserts a note and returns it with id and timestamp filled in.
func (s *NotesStore) Save(ctx context.Context, title, content string) (Note, error) {
	n := Note{
		ID:        uuid.New().String(),
		Title:     title,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO notes (id, title, content, created_at) VALUES (?, ?, ?, ?)",
		n.ID, n.Title, n.Content, n.CreatedAt)
	if err != nil {
		return Note{}, fmt.Errorf("insert note: %w", err)
	}
	return n, nil
}

// List returns all notes, newest first.
func (s *NotesStore) List(ctx context.Context) ([]Note, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, title, content, created_at FROM notes ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.Title, &n.Content, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// Get returns one note by id.
func (s *NotesStore) Get(ctx context.Context, id string) (Note, error) {
	var n Note
	err := s.db.QueryRowContext(ctx,
		"SELECT id, title, content, created_at FROM notes WHERE id = ?", id).
		Scan(&n.ID, &n.Title, &n.Content, &n.CreatedAt)
	if err == sql.ErrNoRows {
		return Note{}, fmt.Errorf("note not found: %s", id)
	}
	if err != nil {
		return Note{}, fmt.Errorf("get note: %w", err)
	}
	return n, nil
}

// Delete removes a note. Returns whether it existed.
func (s *NotesStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM notes WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("delete note: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

// SaveNoteTool stores a note
func SaveNoteTool(store *NotesStore) Tool {
	return Tool{
		Name:        "save_note",
		Title:       "Save Note",
		Description: "Save a note with a title and content for later retrieval.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"title":   map[string]interface{}{"type": "string", "description": "Short note title"},
				"content": map[string]interface{}{"type": "string", "description": "Note body"},
			},
			"required": []string{"title", "content"},
		},
		Execute: func(ctx context.Context, input map[string]interface{}) (string, error) {
			title, _ := input["title"].(string)
			content, _ := input["content"].(string)
			if title == "" || content == "" {
				return "", fmt.Errorf("title and content are required")
			}
			n, err := store.Save(ctx, title, content)
			if err != nil {
				return "", err
			}
			b, _ := json.Marshal(n)
			return string(b), nil
		},
	}
}

// ListNotesTool lists stored notes
func ListNotesTool(store *NotesStore) Tool {
	return Tool{
		Name:        "list_notes",
		Title:       "List Notes",
		Description: "List all saved notes, newest first.",
		InputSchema: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		},
		Execute: func(ctx context.Context, _ map[string]interface{}) (string, error) {
			notes, err := store.List(ctx)
			if err != nil {
				return "", err
			}
			if notes == nil {
				notes = []Note{}
			}
			b, _ := json.Marshal(notes)
			return string(b), nil
		},
	}
}

// DeleteNoteTool removes a note by id
func DeleteNoteTool(store *NotesStore) Tool {
	return Tool{
		Name:        "delete_note",
		Title:       "Delete Note",
		Description: "Delete a saved note by its id.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"id": map[string]interface{}{"type": "string", "description": "Note id"},
			},
			"required": []string{"id"},
		},
		Execute: func(ctx context.Context, input map[string]interface{}) (string, error) {
			id, _ := input["id"].(string)
			if id == "" {
				return "", fmt.Errorf("id is required")
			}
			existed, err := store.Delete(ctx, id)
			if err != nil {
				return "", err
			}
			if !existed {
				return "", fmt.Errorf("note not found: %s", id)
			}
			return fmt.Sprintf("deleted note %s", id), nil
		},
	}
}
