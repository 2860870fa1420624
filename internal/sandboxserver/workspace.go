package sandboxserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"deskchat/cli/internal/sandbox"
)

var ErrOutsideRoot = errors.New("path escapes the workspace root")

// CommandOutput is what a shell command left on its two streams.
type CommandOutput struct {
	Stdout string
	Stderr string
}

// CommandRunner runs a shell command line with dir as working directory.
type CommandRunner func(ctx context.Context, dir, command string) (CommandOutput, error)

// Workspace is the directory the sandbox exposes. Every path is resolved
// relative to the root and must stay inside it.
type Workspace struct {
	root string
	run  CommandRunner
}

func NewWorkspace(root string, run CommandRunner) (*Workspace, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("workspace root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	if run == nil {
		run = ShellRunner
	}
	return &Workspace{root: filepath.Clean(abs), run: run}, nil
}

func (w *Workspace) Root() string {
	return w.root
}

func (w *Workspace) Resolve(path string) (string, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return "", errors.New("path is required")
	}
	var joined string
	if filepath.IsAbs(p) {
		joined = filepath.Clean(p)
	} else {
		joined = filepath.Join(w.root, p)
	}
	rel, err := filepath.Rel(w.root, joined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	return joined, nil
}

func (w *Workspace) WriteFile(path, content string) error {
	abs, err := w.Resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return err
	}
	return os.WriteFile(abs, []byte(content), 0o644)
}

func (w *Workspace) ReadFile(path string) (string, error) {
	abs, err := w.Resolve(path)
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(abs)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (w *Workspace) List(path string) ([]sandbox.FileEntry, error) {
	abs, err := w.Resolve(path)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, err
	}
	out := make([]sandbox.FileEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, sandbox.FileEntry{Name: entry.Name(), IsDir: entry.IsDir()})
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

func (w *Workspace) CreateDirectory(path string) error {
	abs, err := w.Resolve(path)
	if err != nil {
		return err
	}
	return os.MkdirAll(abs, 0o755)
}

func (w *Workspace) Move(path, newPath string) error {
	from, err := w.Resolve(path)
	if err != nil {
		return err
	}
	to, err := w.Resolve(newPath)
	if err != nil {
		return err
	}
	if from == w.root {
		return errors.New("cannot move the workspace root")
	}
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return err
	}
	return os.Rename(from, to)
}

// Delete removes a file, or a directory tree when isDir is set. Deleting
// something that does not exist succeeds, like rm -f.
func (w *Workspace) Delete(path string, isDir bool) error {
	abs, err := w.Resolve(path)
	if err != nil {
		return err
	}
	if abs == w.root {
		return errors.New("cannot delete the workspace root")
	}
	st, err := os.Lstat(abs)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if st.IsDir() {
		if !isDir {
			return fmt.Errorf("%s is a directory", path)
		}
		return os.RemoveAll(abs)
	}
	return os.Remove(abs)
}

// Execute runs command in the root and returns stdout, else stderr, else
// a fixed acknowledgement.
func (w *Workspace) Execute(ctx context.Context, command string) (string, error) {
	out, err := w.run(ctx, w.root, command)
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return "", err
		}
	}
	switch {
	case out.Stdout != "":
		return out.Stdout, nil
	case out.Stderr != "":
		return out.Stderr, nil
	default:
		return "Command executed.", nil
	}
}

// ShellRunner runs command through sh -c. A non-zero exit is reported as
// an *exec.ExitError alongside whatever the command printed.
func ShellRunner(ctx context.Context, dir, command string) (CommandOutput, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return CommandOutput{Stdout: stdout.String(), Stderr: stderr.String()}, err
}
