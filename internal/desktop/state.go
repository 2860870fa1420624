package desktop

import "time"

type View string

const (
	ViewTerminal View = "terminal"
	ViewFiles    View = "files"
)

func (v View) Valid() bool {
	return v == ViewTerminal || v == ViewFiles
}

const WelcomeLine = "Welcome to the virtual terminal."

type Activity struct {
	ID        string
	Type      string
	Action    string
	Timestamp time.Time
	Args      *Args
}

type FileData struct {
	Name    string
	Content string
}

type FileNode struct {
	Name        string
	IsDirectory bool
}

type Terminal struct {
	Output []string
}

type Files struct {
	CurrentFile *FileData
	FileTree    []FileNode
}

type State struct {
	SidebarOpen bool
	View        View
	Terminal    Terminal
	Files       Files
	Activities  []Activity

	// Version counts Store dispatches. The pure reducer leaves it alone.
	Version uint64
}

func InitialState() State {
	return State{
		SidebarOpen: true,
		View:        ViewTerminal,
		Terminal:    Terminal{Output: []string{WelcomeLine}},
		Files:       Files{FileTree: []FileNode{}},
		Activities:  []Activity{},
	}
}

// Event is one of ToggleSidebar, SetView or APIAction.
type Event interface {
	isEvent()
}

type ToggleSidebar struct{}

type SetView struct {
	View View
}

type APIAction struct {
	Outcome Outcome
}

func (ToggleSidebar) isEvent() {}
func (SetView) isEvent()       {}
func (APIAction) isEvent()     {}
