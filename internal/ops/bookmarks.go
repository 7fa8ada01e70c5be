package ops

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/memclass/internal/db"
	"github.com/hpungsan/memclass/internal/errors"
	"github.com/hpungsan/memclass/internal/layout"
	"github.com/hpungsan/memclass/internal/resolve"
)

// SaveMode controls bookmark name collisions.
type SaveMode string

const (
	SaveModeError   SaveMode = "error"   // default: fail on name collision
	SaveModeReplace SaveMode = "replace" // overwrite existing
)

// BookmarkOutput is a bookmark with its class name resolved.
type BookmarkOutput struct {
	db.Bookmark
	ClassName string `json:"class_name,omitempty"`
}

func (s *Session) requireDB() error {
	if s.db == nil {
		return errors.NewInvalidRequest("bookmarks require a database")
	}
	return nil
}

func (s *Session) bookmarkOutputLocked(b *db.Bookmark) BookmarkOutput {
	out := BookmarkOutput{Bookmark: *b}
	if c, ok := s.reg.Lookup(layout.ClassID(b.ClassID)); ok {
		out.ClassName = c.Name
	}
	return out
}

func bookmarkName(name string) (string, string, error) {
	raw := layout.CleanName(name)
	norm := layout.NormalizeName(name)
	if norm == "" {
		return "", "", errors.NewInvalidRequest("bookmark name is required")
	}
	return raw, norm, nil
}

// SaveBookmarkInput contains parameters for SaveBookmark. Empty Class, Base
// and Chain take the session's active class and selection.
type SaveBookmarkInput struct {
	Name  string // required
	Class string
	Base  string
	Chain string
	Mode  SaveMode // default: SaveModeError
}

// SaveBookmark stores a named selection in the current project.
func (s *Session) SaveBookmark(ctx context.Context, input SaveBookmarkInput) (*BookmarkOutput, error) {
	if err := s.requireDB(); err != nil {
		return nil, err
	}
	if input.Mode == "" {
		input.Mode = SaveModeError
	}
	if input.Mode != SaveModeError && input.Mode != SaveModeReplace {
		return nil, errors.NewInvalidRequest("mode must be one of: error, replace")
	}
	nameRaw, nameNorm, err := bookmarkName(input.Name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.classLocked(input.Class)
	if err != nil {
		return nil, err
	}
	sel, err := s.selectionFrom(input.Base, input.Chain)
	if err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	b := &db.Bookmark{
		Project:   s.projectPath,
		NameRaw:   nameRaw,
		NameNorm:  nameNorm,
		ClassID:   string(c.ID),
		Base:      s.addr(sel.Base),
		Chain:     resolve.FormatChain(sel.Steps),
		CreatedAt: now,
		UpdatedAt: now,
	}

	existing, err := db.GetBookmarkByName(ctx, s.db, s.projectPath, nameNorm)
	switch {
	case err == nil:
		if input.Mode != SaveModeReplace {
			return nil, errors.NewNameAlreadyExists("bookmark", nameRaw)
		}
		b.ID = existing.ID
		b.NameRaw = existing.NameRaw
		b.CreatedAt = existing.CreatedAt
		if err := db.UpdateBookmark(ctx, s.db, b); err != nil {
			return nil, err
		}
	case errors.Is(err, errors.ErrNotFound):
		id, err := newID()
		if err != nil {
			return nil, err
		}
		b.ID = id
		if err := db.InsertBookmark(ctx, s.db, b); err != nil {
			if err == db.ErrUniqueConstraint {
				return nil, errors.NewNameAlreadyExists("bookmark", nameRaw)
			}
			return nil, err
		}
	default:
		return nil, err
	}

	s.log.WithField("bookmark", nameNorm).Debug("bookmark saved")
	out := s.bookmarkOutputLocked(b)
	return &out, nil
}

// ListBookmarksOutput contains the result of ListBookmarks.
type ListBookmarksOutput struct {
	Project string           `json:"project"`
	Items   []BookmarkOutput `json:"items"`
}

// ListBookmarks returns the bookmarks of the current project.
func (s *Session) ListBookmarks(ctx context.Context) (*ListBookmarksOutput, error) {
	if err := s.requireDB(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := db.ListBookmarks(ctx, s.db, s.projectPath)
	if err != nil {
		return nil, err
	}
	out := &ListBookmarksOutput{Project: s.projectPath, Items: make([]BookmarkOutput, 0, len(list))}
	for i := range list {
		out.Items = append(out.Items, s.bookmarkOutputLocked(&list[i]))
	}
	return out, nil
}

// BookmarkInput names a bookmark of the current project.
type BookmarkInput struct {
	Name string
}

// DeleteBookmarkOutput contains the result of DeleteBookmark.
type DeleteBookmarkOutput struct {
	Name    string `json:"name"`
	Deleted bool   `json:"deleted"`
}

// DeleteBookmark removes a bookmark.
func (s *Session) DeleteBookmark(ctx context.Context, input BookmarkInput) (*DeleteBookmarkOutput, error) {
	if err := s.requireDB(); err != nil {
		return nil, err
	}
	_, nameNorm, err := bookmarkName(input.Name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := db.DeleteBookmark(ctx, s.db, s.projectPath, nameNorm); err != nil {
		return nil, err
	}
	return &DeleteBookmarkOutput{Name: nameNorm, Deleted: true}, nil
}

// ApplyBookmark makes a bookmark's class and selection current.
func (s *Session) ApplyBookmark(ctx context.Context, input BookmarkInput) (*SelectionView, error) {
	if err := s.requireDB(); err != nil {
		return nil, err
	}
	_, nameNorm, err := bookmarkName(input.Name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := db.GetBookmarkByName(ctx, s.db, s.projectPath, nameNorm)
	if err != nil {
		return nil, err
	}
	c, err := s.reg.Class(layout.ClassID(b.ClassID))
	if err != nil {
		return nil, err
	}
	sel, err := s.selectionFrom(b.Base, b.Chain)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	s.active = c.ID
	s.selection = sel
	v := s.selectionViewLocked()
	return &v, nil
}

func newID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", errors.NewInternal(err)
	}
	return id.String(), nil
}
