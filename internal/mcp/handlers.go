package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/memclass/internal/errors"
	"github.com/hpungsan/memclass/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	sess *ops.Session
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(sess *ops.Session) *Handlers {
	return &Handlers{sess: sess}
}

// Request types for each tool

// ClassCreateRequest represents the arguments for class_create.
type ClassCreateRequest struct {
	Name string `json:"name"`
}

// ClassRequest names a class. Empty means the active class.
type ClassRequest struct {
	Class string `json:"class,omitempty"`
}

// ClassRenameRequest represents the arguments for class_rename.
type ClassRenameRequest struct {
	Class string `json:"class,omitempty"`
	Name  string `json:"name"`
}

// ClassGenerateRequest represents the arguments for class_generate.
type ClassGenerateRequest struct {
	Classes  []string `json:"classes,omitempty"`
	Language string   `json:"language,omitempty"`
	Package  string   `json:"package,omitempty"`
}

// FieldAddRequest represents the arguments for field_add.
type FieldAddRequest struct {
	Class    string `json:"class,omitempty"`
	Kind     string `json:"kind"`
	Name     string `json:"name,omitempty"`
	Position *int   `json:"position,omitempty"`
}

// FieldRequest addresses a field by index or by name.
type FieldRequest struct {
	Class string `json:"class,omitempty"`
	Index *int   `json:"index,omitempty"`
	Field string `json:"field,omitempty"`
}

func (r FieldRequest) ref() ops.FieldRef {
	return ops.FieldRef{Index: r.Index, Name: r.Field}
}

// FieldSetKindRequest represents the arguments for field_set_kind.
type FieldSetKindRequest struct {
	FieldRequest
	Kind string `json:"kind"`
}

// FieldRenameRequest represents the arguments for field_rename.
type FieldRenameRequest struct {
	FieldRequest
	Name string `json:"name"`
}

// FieldMoveRequest represents the arguments for field_move.
type FieldMoveRequest struct {
	FieldRequest
	Position int `json:"position"`
}

// MemoryAttachRequest represents the arguments for memory_attach.
type MemoryAttachRequest struct {
	PID int `json:"pid"`
}

// MemoryAttachDumpRequest represents the arguments for memory_attach_dump.
type MemoryAttachDumpRequest struct {
	Path string `json:"path"`
	Base string `json:"base,omitempty"`
}

// SelectionRequest is a base address and pointer chain. Empty base means
// the session selection.
type SelectionRequest struct {
	Base  string `json:"base,omitempty"`
	Chain string `json:"chain,omitempty"`
}

// MemoryInspectRequest represents the arguments for memory_inspect.
type MemoryInspectRequest struct {
	SelectionRequest
	Class string `json:"class,omitempty"`
	Depth int    `json:"depth,omitempty"`
}

// MemoryWriteRequest represents the arguments for memory_write.
type MemoryWriteRequest struct {
	SelectionRequest
	FieldRequest
	Value string `json:"value"`
}

// ProjectPathRequest represents the arguments for project_save and project_open.
type ProjectPathRequest struct {
	Path string `json:"path,omitempty"`
}

// BookmarkSaveRequest represents the arguments for bookmark_save.
type BookmarkSaveRequest struct {
	SelectionRequest
	Name  string `json:"name"`
	Class string `json:"class,omitempty"`
	Mode  string `json:"mode,omitempty"`
}

// BookmarkRequest names a bookmark.
type BookmarkRequest struct {
	Name string `json:"name"`
}

// Handler implementations

// HandleClassCreate handles the class_create tool call.
func (h *Handlers) HandleClassCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ClassCreateRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return result(h.sess.CreateClass(ops.CreateClassInput{Name: input.Name}))
}

// HandleClassList handles the class_list tool call.
func (h *Handlers) HandleClassList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return successResult(h.sess.ListClasses())
}

// HandleClassGet handles the class_get tool call.
func (h *Handlers) HandleClassGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ClassRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return result(h.sess.GetClass(ops.GetClassInput{Class: input.Class}))
}

// HandleClassRename handles the class_rename tool call.
func (h *Handlers) HandleClassRename(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ClassRenameRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return result(h.sess.RenameClass(ops.RenameClassInput{Class: input.Class, Name: input.Name}))
}

// HandleClassDelete handles the class_delete tool call.
func (h *Handlers) HandleClassDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ClassRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return result(h.sess.DeleteClass(ops.DeleteClassInput{Class: input.Class}))
}

// HandleClassGenerate handles the class_generate tool call.
func (h *Handlers) HandleClassGenerate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ClassGenerateRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return result(h.sess.Generate(ops.GenerateInput{
		Classes:  input.Classes,
		Language: input.Language,
		Package:  input.Package,
	}))
}

// HandleFieldAdd handles the field_add tool call.
func (h *Handlers) HandleFieldAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FieldAddRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return result(h.sess.AddField(ops.AddFieldInput{
		Class:    input.Class,
		Kind:     input.Kind,
		Name:     input.Name,
		Position: input.Position,
	}))
}

// HandleFieldRemove handles the field_remove tool call.
func (h *Handlers) HandleFieldRemove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FieldRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return result(h.sess.RemoveField(ops.RemoveFieldInput{Class: input.Class, Field: input.ref()}))
}

// HandleFieldSetKind handles the field_set_kind tool call.
func (h *Handlers) HandleFieldSetKind(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FieldSetKindRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return result(h.sess.SetFieldKind(ops.SetFieldKindInput{
		Class: input.Class,
		Field: input.ref(),
		Kind:  input.Kind,
	}))
}

// HandleFieldRename handles the field_rename tool call.
func (h *Handlers) HandleFieldRename(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FieldRenameRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return result(h.sess.RenameField(ops.RenameFieldInput{
		Class: input.Class,
		Field: input.ref(),
		Name:  input.Name,
	}))
}

// HandleFieldMove handles the field_move tool call.
func (h *Handlers) HandleFieldMove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FieldMoveRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return result(h.sess.MoveField(ops.MoveFieldInput{
		Class:    input.Class,
		Field:    input.ref(),
		Position: input.Position,
	}))
}

// HandleMemoryAttach handles the memory_attach tool call.
func (h *Handlers) HandleMemoryAttach(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[MemoryAttachRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return result(h.sess.Attach(ctx, ops.AttachInput{PID: input.PID}))
}

// HandleMemoryAttachDump handles the memory_attach_dump tool call.
func (h *Handlers) HandleMemoryAttachDump(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[MemoryAttachDumpRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return result(h.sess.AttachDump(ops.AttachDumpInput{Path: input.Path, Base: input.Base}))
}

// HandleMemoryDetach handles the memory_detach tool call.
func (h *Handlers) HandleMemoryDetach(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return result(h.sess.Detach())
}

// HandleMemoryResolve handles the memory_resolve tool call.
func (h *Handlers) HandleMemoryResolve(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SelectionRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return result(h.sess.Resolve(ctx, ops.ResolveInput{Base: input.Base, Chain: input.Chain}))
}

// HandleMemoryInspect handles the memory_inspect tool call.
func (h *Handlers) HandleMemoryInspect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[MemoryInspectRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return result(h.sess.Inspect(ctx, ops.InspectInput{
		Class: input.Class,
		Base:  input.Base,
		Chain: input.Chain,
		Depth: input.Depth,
	}))
}

// HandleMemoryWrite handles the memory_write tool call.
func (h *Handlers) HandleMemoryWrite(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[MemoryWriteRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return result(h.sess.WriteField(ctx, ops.WriteFieldInput{
		Class: input.Class,
		Base:  input.Base,
		Chain: input.Chain,
		Field: input.ref(),
		Value: input.Value,
	}))
}

// HandleProjectSave handles the project_save tool call.
func (h *Handlers) HandleProjectSave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ProjectPathRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return result(h.sess.SaveProject(ctx, ops.SaveProjectInput{Path: input.Path}))
}

// HandleProjectOpen handles the project_open tool call.
func (h *Handlers) HandleProjectOpen(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ProjectPathRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return result(h.sess.OpenProject(ctx, ops.OpenProjectInput{Path: input.Path}))
}

// HandleProjectNew handles the project_new tool call.
func (h *Handlers) HandleProjectNew(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return result(h.sess.NewProject(ctx))
}

// HandleProjectRecent handles the project_recent tool call.
func (h *Handlers) HandleProjectRecent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return result(h.sess.Recent(ctx))
}

// HandleBookmarkSave handles the bookmark_save tool call.
func (h *Handlers) HandleBookmarkSave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BookmarkSaveRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return result(h.sess.SaveBookmark(ctx, ops.SaveBookmarkInput{
		Name:  input.Name,
		Class: input.Class,
		Base:  input.Base,
		Chain: input.Chain,
		Mode:  ops.SaveMode(input.Mode),
	}))
}

// HandleBookmarkList handles the bookmark_list tool call.
func (h *Handlers) HandleBookmarkList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return result(h.sess.ListBookmarks(ctx))
}

// HandleBookmarkDelete handles the bookmark_delete tool call.
func (h *Handlers) HandleBookmarkDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BookmarkRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return result(h.sess.DeleteBookmark(ctx, ops.BookmarkInput{Name: input.Name}))
}

// HandleBookmarkApply handles the bookmark_apply tool call.
func (h *Handlers) HandleBookmarkApply(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BookmarkRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return result(h.sess.ApplyBookmark(ctx, ops.BookmarkInput{Name: input.Name}))
}

// Result helpers

// result turns an ops return pair into a tool result.
func result(data any, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(data)
}

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if mErr, ok := errors.As(err); ok {
		errorObj := map[string]any{
			"code":    mErr.Code,
			"message": mErr.Message,
			"status":  mErr.Status,
		}
		if mErr.Code != errors.ErrInternal && mErr.Details != nil {
			errorObj["details"] = mErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
