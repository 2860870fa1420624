package desktop

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"deskchat/cli/internal/sandbox"
)

// Kind is the closed set of desktop actions the model may emit.
type Kind int

const (
	KindUnknown Kind = iota
	KindExecuteCommand
	KindWriteFile
	KindReadFile
	KindListDirectory
	KindCreateDirectory
	KindMoveItem
	KindDeleteItem
)

var kindNames = [...]string{
	KindUnknown:         "unknown",
	KindExecuteCommand:  "execute_command",
	KindWriteFile:       "write_file_to_mcp",
	KindReadFile:        "read_file_from_mcp",
	KindListDirectory:   "list_directory_mcp",
	KindCreateDirectory: "create_directory_mcp",
	KindMoveItem:        "move_item_mcp",
	KindDeleteItem:      "delete_item_mcp",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[KindUnknown]
	}
	return kindNames[k]
}

func ParseKind(raw string) Kind {
	name := strings.TrimSpace(raw)
	for k := KindExecuteCommand; int(k) < len(kindNames); k++ {
		if kindNames[k] == name {
			return k
		}
	}
	return KindUnknown
}

// Args carries the union of all action arguments; each kind reads only
// the fields it needs.
type Args struct {
	Command string `json:"command,omitempty"`
	Path    string `json:"path,omitempty"`
	Content string `json:"content,omitempty"`
	NewPath string `json:"new_path,omitempty"`
	IsDir   bool   `json:"is_dir,omitempty"`
}

type Action struct {
	Type string
	Kind Kind
	Args Args

	argsErr error
}

func NewAction(kind Kind, args Args) Action {
	return Action{Type: kind.String(), Kind: kind, Args: args}
}

// DecodeAction builds an Action from the raw type string and JSON args.
// Malformed args do not fail decoding; the dispatcher reports them as the
// action's error so the rest of the batch still runs.
func DecodeAction(typ string, rawArgs json.RawMessage) Action {
	a := Action{Type: strings.TrimSpace(typ), Kind: ParseKind(typ)}
	trimmed := bytes.TrimSpace(rawArgs)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return a
	}
	if err := json.Unmarshal(trimmed, &a.Args); err != nil {
		a.argsErr = fmt.Errorf("invalid arguments for %s: %w", a.Type, err)
	}
	return a
}

func (a Action) ArgsError() error { return a.argsErr }

// Result is what one dispatched action produced. Error is set on failure;
// Output/Content/Files on success.
type Result struct {
	Output  string
	Error   string
	Content string
	Files   []sandbox.FileEntry
}

func (r Result) Failed() bool { return r.Error != "" }

type Outcome struct {
	Action Action
	Result Result
}
