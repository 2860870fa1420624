package desktop

import (
	"fmt"
	"time"

	"deskchat/cli/internal/sandbox"

	"github.com/google/uuid"
)

// Reducer folds events into State. It never mutates its input: every
// transition returns a State whose slices are freshly allocated.
//
// MaxActivities and MaxTerminalLines bound retention; zero keeps
// everything.
type Reducer struct {
	MaxActivities    int
	MaxTerminalLines int

	NewID func() string
	Now   func() time.Time
}

// Reduce applies e with an unbounded Reducer.
func Reduce(s State, e Event) State {
	return Reducer{}.Reduce(s, e)
}

func (r Reducer) Reduce(s State, e Event) State {
	switch ev := e.(type) {
	case ToggleSidebar:
		next := s
		next.SidebarOpen = !s.SidebarOpen
		return next
	case SetView:
		if !ev.View.Valid() {
			return s
		}
		next := s
		next.View = ev.View
		return next
	case APIAction:
		return r.applyOutcome(s, ev.Outcome)
	default:
		return s
	}
}

func (r Reducer) applyOutcome(s State, o Outcome) State {
	next := s
	next.Activities = r.prependActivity(s.Activities, r.newActivity(o))

	a, res := o.Action, o.Result
	switch a.Kind {
	case KindExecuteCommand:
		next.View = ViewTerminal
		line := res.Output
		if res.Failed() {
			line = ""
		}
		next.Terminal = Terminal{Output: r.appendTerminal(s.Terminal.Output, "$ "+a.Args.Command, line)}
	case KindListDirectory:
		next.View = ViewFiles
		next.Files = Files{CurrentFile: s.Files.CurrentFile, FileTree: fileTree(res.Files)}
	case KindReadFile:
		next.View = ViewFiles
		next.Files = Files{
			CurrentFile: &FileData{Name: a.Args.Path, Content: res.Content},
			FileTree:    s.Files.FileTree,
		}
	case KindWriteFile:
		next.View = ViewFiles
		next.Files = Files{
			CurrentFile: &FileData{Name: a.Args.Path, Content: a.Args.Content},
			FileTree:    s.Files.FileTree,
		}
	case KindCreateDirectory, KindMoveItem, KindDeleteItem, KindUnknown:
	}
	return next
}

func (r Reducer) newActivity(o Outcome) Activity {
	newID := r.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	now := r.Now
	if now == nil {
		now = time.Now
	}
	act := Activity{
		ID:        newID(),
		Type:      o.Action.Type,
		Action:    describe(o),
		Timestamp: now(),
	}
	if o.Action.Args != (Args{}) {
		args := o.Action.Args
		act.Args = &args
	}
	return act
}

// describe is the activity line: the result text, or "Error: <msg>".
// Successful calls whose body carried no text get a short summary.
func describe(o Outcome) string {
	res := o.Result
	if res.Failed() {
		return "Error: " + res.Error
	}
	if res.Output != "" {
		return res.Output
	}
	args := o.Action.Args
	switch o.Action.Kind {
	case KindExecuteCommand:
		return fmt.Sprintf("Ran %q", args.Command)
	case KindWriteFile:
		return fmt.Sprintf("Wrote %s", args.Path)
	case KindReadFile:
		return fmt.Sprintf("Read %s", args.Path)
	case KindListDirectory:
		return fmt.Sprintf("Listed %d entries in %s", len(res.Files), args.Path)
	case KindCreateDirectory:
		return fmt.Sprintf("Created directory %s", args.Path)
	case KindMoveItem:
		return fmt.Sprintf("Moved %s to %s", args.Path, args.NewPath)
	case KindDeleteItem:
		return fmt.Sprintf("Deleted %s", args.Path)
	default:
		return o.Action.Type
	}
}

func (r Reducer) prependActivity(prev []Activity, act Activity) []Activity {
	n := len(prev) + 1
	if r.MaxActivities > 0 && n > r.MaxActivities {
		n = r.MaxActivities
	}
	out := make([]Activity, 0, n)
	out = append(out, act)
	for _, a := range prev {
		if len(out) == n {
			break
		}
		out = append(out, a)
	}
	return out
}

func (r Reducer) appendTerminal(prev []string, lines ...string) []string {
	all := make([]string, 0, len(prev)+len(lines))
	all = append(all, prev...)
	all = append(all, lines...)
	if r.MaxTerminalLines > 0 && len(all) > r.MaxTerminalLines {
		all = all[len(all)-r.MaxTerminalLines:]
	}
	return all
}

func fileTree(files []sandbox.FileEntry) []FileNode {
	out := make([]FileNode, 0, len(files))
	for _, f := range files {
		out = append(out, FileNode{Name: f.Name, IsDirectory: f.IsDir})
	}
	return out
}
