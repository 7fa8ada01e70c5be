package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	classDesc = "Class id or name. Omit for the active class."
	baseDesc  = "Base address, e.g. 0x7FF6A000. Omit to use the current selection."
	chainDesc = "Pointer chain applied to base: comma-separated offsets, '*' dereferences, e.g. \"0x10*,0x8\"."
	kindDesc  = "Field kind: hex8..hex64, i8..i64, u8..u64, f32, f64 or ptr:<class id or name>."
	indexDesc = "Field position (0-based). Use either index or field."
	fieldDesc = "Field name. Use either index or field."
)

var classCreateToolDef = mcp.NewTool("class_create",
	mcp.WithDescription("Create an empty class and make it the active class. Class names are unique (case-insensitive)."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Class name.")),
)

var classListToolDef = mcp.NewTool("class_list",
	mcp.WithDescription("List every class with its size and field count."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var classGetToolDef = mcp.NewTool("class_get",
	mcp.WithDescription("Show a class layout: every field with its offset, width, kind and pointer target state."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("class", mcp.Description(classDesc)),
)

var classRenameToolDef = mcp.NewTool("class_rename",
	mcp.WithDescription("Rename a class. Pointer fields follow the class by id."),
	mcp.WithString("class", mcp.Description(classDesc)),
	mcp.WithString("name", mcp.Required(), mcp.Description("New class name.")),
)

var classDeleteToolDef = mcp.NewTool("class_delete",
	mcp.WithDescription("Delete a class. Pointer fields that targeted it stay in place and report a broken target."),
	mcp.WithDestructiveHintAnnotation(true),
	mcp.WithString("class", mcp.Description(classDesc)),
)

var classGenerateToolDef = mcp.NewTool("class_generate",
	mcp.WithDescription("Render classes as packed Go or C struct declarations with offset comments."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithArray("classes", mcp.Description("Class ids or names. Omit for every class."), mcp.Items(map[string]any{"type": "string"})),
	mcp.WithString("language", mcp.Description("Output language."), mcp.Enum("go", "c")),
	mcp.WithString("package", mcp.Description("Go package clause (default \"layout\").")),
)

var fieldAddToolDef = mcp.NewTool("field_add",
	mcp.WithDescription("Insert a field into a class. Later fields shift by its width."),
	mcp.WithString("class", mcp.Description(classDesc)),
	mcp.WithString("kind", mcp.Required(), mcp.Description(kindDesc)),
	mcp.WithString("name", mcp.Description("Field name (may be empty).")),
	mcp.WithNumber("position", mcp.Description("Insert position (0-based). Omit to append.")),
)

var fieldRemoveToolDef = mcp.NewTool("field_remove",
	mcp.WithDescription("Remove a field from a class. Later fields shift down by its width."),
	mcp.WithDestructiveHintAnnotation(true),
	mcp.WithString("class", mcp.Description(classDesc)),
	mcp.WithNumber("index", mcp.Description(indexDesc)),
	mcp.WithString("field", mcp.Description(fieldDesc)),
)

var fieldSetKindToolDef = mcp.NewTool("field_set_kind",
	mcp.WithDescription("Change a field's kind. Later offsets follow the new width."),
	mcp.WithString("class", mcp.Description(classDesc)),
	mcp.WithNumber("index", mcp.Description(indexDesc)),
	mcp.WithString("field", mcp.Description(fieldDesc)),
	mcp.WithString("kind", mcp.Required(), mcp.Description(kindDesc)),
)

var fieldRenameToolDef = mcp.NewTool("field_rename",
	mcp.WithDescription("Rename a field. The layout is unchanged."),
	mcp.WithString("class", mcp.Description(classDesc)),
	mcp.WithNumber("index", mcp.Description(indexDesc)),
	mcp.WithString("field", mcp.Description(fieldDesc)),
	mcp.WithString("name", mcp.Required(), mcp.Description("New field name.")),
)

var fieldMoveToolDef = mcp.NewTool("field_move",
	mcp.WithDescription("Move a field to another position within its class."),
	mcp.WithString("class", mcp.Description(classDesc)),
	mcp.WithNumber("index", mcp.Description(indexDesc)),
	mcp.WithString("field", mcp.Description(fieldDesc)),
	mcp.WithNumber("position", mcp.Required(), mcp.Description("Target position (0-based); past the end moves the field last.")),
)

var memoryAttachToolDef = mcp.NewTool("memory_attach",
	mcp.WithDescription("Attach to a running process by pid (Linux). Replaces the current memory source."),
	mcp.WithNumber("pid", mcp.Required(), mcp.Description("Process id.")),
)

var memoryAttachDumpToolDef = mcp.NewTool("memory_attach_dump",
	mcp.WithDescription("Attach a raw memory dump file mapped at a base address. Writes change the in-memory copy only."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Dump file path; a regular file directly in ~/.memclass/dumps or an allowed_paths directory.")),
	mcp.WithString("base", mcp.Description("Address of the first byte (default 0).")),
)

var memoryDetachToolDef = mcp.NewTool("memory_detach",
	mcp.WithDescription("Detach the memory source. Reads fail until the next attach."),
)

var memoryResolveToolDef = mcp.NewTool("memory_resolve",
	mcp.WithDescription("Resolve a pointer chain and return every intermediate address."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("base", mcp.Description(baseDesc)),
	mcp.WithString("chain", mcp.Description(chainDesc)),
)

var memoryInspectToolDef = mcp.NewTool("memory_inspect",
	mcp.WithDescription("Decode a class at a resolved address. Unreadable fields report their own error; pointer fields can be expanded."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("class", mcp.Description(classDesc)),
	mcp.WithString("base", mcp.Description(baseDesc)),
	mcp.WithString("chain", mcp.Description(chainDesc)),
	mcp.WithNumber("depth", mcp.Description("Nested pointer expansion depth, 0-8 (default 0).")),
)

var memoryWriteToolDef = mcp.NewTool("memory_write",
	mcp.WithDescription("Write a value to one field at a resolved address. Invalid text is rejected before memory is touched."),
	mcp.WithDestructiveHintAnnotation(true),
	mcp.WithString("class", mcp.Description(classDesc)),
	mcp.WithString("base", mcp.Description(baseDesc)),
	mcp.WithString("chain", mcp.Description(chainDesc)),
	mcp.WithNumber("index", mcp.Description(indexDesc)),
	mcp.WithString("field", mcp.Description(fieldDesc)),
	mcp.WithString("value", mcp.Required(), mcp.Description("Value in the field kind's syntax: decimal or 0x for ints, hex digits for hex kinds, decimal for floats.")),
)

var projectSaveToolDef = mcp.NewTool("project_save",
	mcp.WithDescription("Save all classes to a .mclass project file."),
	mcp.WithString("path", mcp.Description("Project file path. Omit to save to the current project file.")),
)

var projectOpenToolDef = mcp.NewTool("project_open",
	mcp.WithDescription("Open a .mclass project file. The current project is saved first unless it has no changes."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Project file path.")),
)

var projectNewToolDef = mcp.NewTool("project_new",
	mcp.WithDescription("Start an empty project. The current project is saved first unless it has no changes."),
)

var projectRecentToolDef = mcp.NewTool("project_recent",
	mcp.WithDescription("List recently used project files and processes."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var bookmarkSaveToolDef = mcp.NewTool("bookmark_save",
	mcp.WithDescription("Save a named selection (class, base, chain) in the current project."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Bookmark name (unique per project, case-insensitive).")),
	mcp.WithString("class", mcp.Description(classDesc)),
	mcp.WithString("base", mcp.Description(baseDesc)),
	mcp.WithString("chain", mcp.Description(chainDesc)),
	mcp.WithString("mode", mcp.Description("On name collision: error (default) or replace."), mcp.Enum("error", "replace")),
)

var bookmarkListToolDef = mcp.NewTool("bookmark_list",
	mcp.WithDescription("List the bookmarks of the current project."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var bookmarkDeleteToolDef = mcp.NewTool("bookmark_delete",
	mcp.WithDescription("Delete a bookmark."),
	mcp.WithDestructiveHintAnnotation(true),
	mcp.WithString("name", mcp.Required(), mcp.Description("Bookmark name.")),
)

var bookmarkApplyToolDef = mcp.NewTool("bookmark_apply",
	mcp.WithDescription("Make a bookmark's class and selection current, so memory tools can omit them."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Bookmark name.")),
)
