package backend

import (
	"github.com/openai/openai-go"
	"google.golang.org/genai"

	"deskchat/cli/internal/desktop"
)

type toolParam struct {
	name        string
	boolean     bool
	description string
}

type toolSpec struct {
	kind        desktop.Kind
	description string
	params      []toolParam
	required    []string
}

var desktopTools = []toolSpec{
	{
		kind:        desktop.KindExecuteCommand,
		description: "Execute a shell command in the sandbox terminal.",
		params:      []toolParam{{name: "command", description: "The shell command to execute"}},
		required:    []string{"command"},
	},
	{
		kind:        desktop.KindWriteFile,
		description: "Write content to a file in the sandbox, creating it if needed.",
		params: []toolParam{
			{name: "path", description: "Path of the file, relative to the sandbox root"},
			{name: "content", description: "Full content to write"},
		},
		required: []string{"path", "content"},
	},
	{
		kind:        desktop.KindReadFile,
		description: "Read the content of a file in the sandbox.",
		params:      []toolParam{{name: "path", description: "Path of the file to read"}},
		required:    []string{"path"},
	},
	{
		kind:        desktop.KindListDirectory,
		description: "List files and directories at a path in the sandbox.",
		params:      []toolParam{{name: "path", description: "Directory to list; use . for the root"}},
		required:    []string{"path"},
	},
	{
		kind:        desktop.KindCreateDirectory,
		description: "Create a directory (and missing parents) in the sandbox.",
		params:      []toolParam{{name: "path", description: "Directory to create"}},
		required:    []string{"path"},
	},
	{
		kind:        desktop.KindMoveItem,
		description: "Move or rename a file or directory in the sandbox.",
		params: []toolParam{
			{name: "path", description: "Current path"},
			{name: "new_path", description: "Destination path"},
		},
		required: []string{"path", "new_path"},
	},
	{
		kind:        desktop.KindDeleteItem,
		description: "Delete a file, or a directory when is_dir is true.",
		params: []toolParam{
			{name: "path", description: "Path to delete"},
			{name: "is_dir", boolean: true, description: "Set for directories to delete recursively"},
		},
		required: []string{"path"},
	},
}

func (t toolSpec) jsonSchema() map[string]any {
	props := make(map[string]any, len(t.params))
	for _, p := range t.params {
		typ := "string"
		if p.boolean {
			typ = "boolean"
		}
		props[p.name] = map[string]any{"type": typ, "description": p.description}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   t.required,
	}
}

func (t toolSpec) geminiSchema() *genai.Schema {
	props := make(map[string]*genai.Schema, len(t.params))
	for _, p := range t.params {
		typ := genai.TypeString
		if p.boolean {
			typ = genai.TypeBoolean
		}
		props[p.name] = &genai.Schema{Type: typ, Description: p.description}
	}
	return &genai.Schema{Type: genai.TypeObject, Properties: props, Required: t.required}
}

// toolParams renders the desktop tools for the chat completions API. Tool
// names are the desktop action type strings, so a tool call maps to an
// action without translation.
func toolParams() []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(desktopTools))
	for _, t := range desktopTools {
		out = append(out, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        t.kind.String(),
				Description: openai.String(t.description),
				Parameters:  openai.FunctionParameters(t.jsonSchema()),
			},
		})
	}
	return out
}

func geminiTools() []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(desktopTools))
	for _, t := range desktopTools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.kind.String(),
			Description: t.description,
			Parameters:  t.geminiSchema(),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}
