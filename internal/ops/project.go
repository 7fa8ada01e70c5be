package ops

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hpungsan/memclass/internal/db"
	"github.com/hpungsan/memclass/internal/errors"
	"github.com/hpungsan/memclass/internal/layout"
	"github.com/hpungsan/memclass/internal/project"
	"github.com/hpungsan/memclass/internal/resolve"
)

// ProjectOutput describes the session's project after a project operation.
type ProjectOutput struct {
	Path    string `json:"path,omitempty"`
	Classes int    `json:"classes"`
	// AutoSaved is the path the previous project was saved to, if any.
	AutoSaved  string          `json:"auto_saved,omitempty"`
	BrokenRefs []BrokenRefView `json:"broken_refs,omitempty"`
}

// BrokenRefView names a pointer field whose target class is missing.
type BrokenRefView struct {
	Class  string `json:"class"`
	Field  string `json:"field"`
	Target string `json:"target"`
}

func (s *Session) projectOutputLocked() *ProjectOutput {
	out := &ProjectOutput{Path: s.projectPath, Classes: s.reg.Len()}
	for _, r := range s.reg.BrokenRefs() {
		c, _ := s.reg.Lookup(r.Class)
		f, _, _ := c.Field(r.Field)
		out.BrokenRefs = append(out.BrokenRefs, BrokenRefView{Class: c.Name, Field: f.Name, Target: string(r.Target)})
	}
	return out
}

// ProjectPath returns the path of the current project, or "".
func (s *Session) ProjectPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projectPath
}

func absPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errors.NewInvalidRequest("project path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.NewInvalidRequest("invalid project path: " + err.Error())
	}
	return abs, nil
}

func (s *Session) recordProject(ctx context.Context, path string) {
	if s.db == nil {
		return
	}
	if err := db.TouchRecentProject(ctx, s.db, path, time.Now().Unix(), s.cfg.RecentLimit); err != nil {
		s.log.WithError(err).Warn("failed to record recent project")
	}
}

// SaveProjectInput contains parameters for SaveProject.
type SaveProjectInput struct {
	Path string // default: the current project path
}

// SaveProject writes the registry to a project file and makes that file the
// current project.
func (s *Session) SaveProject(ctx context.Context, input SaveProjectInput) (*ProjectOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("save")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	raw := input.Path
	if strings.TrimSpace(raw) == "" {
		raw = s.projectPath
	}
	path, err := absPath(raw)
	if err != nil {
		return nil, err
	}
	if err := project.SaveFile(path, s.reg, s.cfg); err != nil {
		return nil, err
	}
	s.projectPath = path
	s.touch()
	s.recordProject(ctx, path)
	s.log.WithFields(logrus.Fields{"path": path, "classes": s.reg.Len()}).Info("project saved")
	return s.projectOutputLocked(), nil
}

// autoSaveLocked saves the current project before it is replaced. Dummy
// projects and projects that were never saved are skipped.
func (s *Session) autoSaveLocked(ctx context.Context) (string, error) {
	if s.dummy {
		return "", nil
	}
	if s.projectPath == "" {
		s.log.Warn("discarding unsaved project without a path")
		return "", nil
	}
	if err := project.SaveFile(s.projectPath, s.reg, s.cfg); err != nil {
		return "", err
	}
	s.log.WithField("path", s.projectPath).Info("project auto-saved")
	return s.projectPath, nil
}

// replaceLocked installs reg as the session's project.
func (s *Session) replaceLocked(reg *layout.Registry, path string) {
	s.reg = reg
	s.projectPath = path
	s.selection = resolve.Selection{}
	s.active = ""
	if classes := reg.Classes(); len(classes) > 0 {
		s.active = classes[0].ID
	}
	// A freshly opened project has nothing unsaved.
	s.dummy = true
}

// OpenProjectInput contains parameters for OpenProject.
type OpenProjectInput struct {
	Path string // required
}

// OpenProject loads a project file, replacing the current project. The
// current project is saved first unless it is a dummy. A file that fails to
// load leaves the session unchanged.
func (s *Session) OpenProject(ctx context.Context, input OpenProjectInput) (*ProjectOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("open")
	}
	path, err := absPath(input.Path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	reg, err := project.OpenFile(path, s.cfg)
	if err != nil {
		return nil, err
	}
	saved, err := s.autoSaveLocked(ctx)
	if err != nil {
		return nil, err
	}
	s.replaceLocked(reg, path)
	s.recordProject(ctx, path)

	out := s.projectOutputLocked()
	out.AutoSaved = saved
	s.log.WithFields(logrus.Fields{"path": path, "classes": reg.Len(), "broken_refs": len(out.BrokenRefs)}).Info("project opened")
	return out, nil
}

// NewProject replaces the current project with an empty dummy project,
// saving the current one first unless it is a dummy.
func (s *Session) NewProject(ctx context.Context) (*ProjectOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("new project")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	saved, err := s.autoSaveLocked(ctx)
	if err != nil {
		return nil, err
	}
	s.replaceLocked(layout.NewRegistry(), "")
	out := s.projectOutputLocked()
	out.AutoSaved = saved
	return out, nil
}

// RecentProjectsOutput contains the result of RecentProjects.
type RecentProjectsOutput struct {
	Items []db.RecentProject `json:"items"`
}

// RecentProjects lists recently opened or saved project files.
func (s *Session) RecentProjects(ctx context.Context) (*RecentProjectsOutput, error) {
	if s.db == nil {
		return &RecentProjectsOutput{Items: []db.RecentProject{}}, nil
	}
	items, err := db.ListRecentProjects(ctx, s.db, s.cfg.RecentLimit)
	if err != nil {
		return nil, err
	}
	return &RecentProjectsOutput{Items: items}, nil
}

// RecentProcessesOutput contains the result of RecentProcesses.
type RecentProcessesOutput struct {
	Items []db.RecentProcess `json:"items"`
}

// RecentProcesses lists recently attached processes.
func (s *Session) RecentProcesses(ctx context.Context) (*RecentProcessesOutput, error) {
	if s.db == nil {
		return &RecentProcessesOutput{Items: []db.RecentProcess{}}, nil
	}
	items, err := db.ListRecentProcesses(ctx, s.db, s.cfg.RecentLimit)
	if err != nil {
		return nil, err
	}
	return &RecentProcessesOutput{Items: items}, nil
}

// RecentOutput combines both recents lists.
type RecentOutput struct {
	Projects  []db.RecentProject `json:"projects"`
	Processes []db.RecentProcess `json:"processes"`
}

// Recent lists recent projects and processes together.
func (s *Session) Recent(ctx context.Context) (*RecentOutput, error) {
	projects, err := s.RecentProjects(ctx)
	if err != nil {
		return nil, err
	}
	processes, err := s.RecentProcesses(ctx)
	if err != nil {
		return nil, err
	}
	return &RecentOutput{Projects: projects.Items, Processes: processes.Items}, nil
}
