// Package clipboard copies console text (tokens, QR payloads, messages)
// to the system clipboard via whichever tool the platform provides.
package clipboard

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
)

var ErrToolNotFound = errors.New("clipboard tool not found")

type Command struct {
	Path string
	Args []string
}

// candidates lists the tools tried per platform, in preference order.
func candidates(goos string) []Command {
	switch goos {
	case "darwin":
		return []Command{{Path: "pbcopy"}}
	case "linux":
		return []Command{
			{Path: "wl-copy"},
			{Path: "xclip", Args: []string{"-selection", "clipboard"}},
			{Path: "xsel", Args: []string{"--clipboard", "--input"}},
		}
	case "windows":
		return []Command{{Path: "clip"}}
	default:
		return nil
	}
}

// SelectCommand resolves the first available clipboard tool for goos.
func SelectCommand(goos string, lookPath func(string) (string, error)) (Command, error) {
	for _, c := range candidates(goos) {
		path, err := lookPath(c.Path)
		if err != nil {
			continue
		}
		return Command{Path: path, Args: c.Args}, nil
	}
	return Command{}, ErrToolNotFound
}

// Copy pipes text into the platform clipboard tool.
func Copy(ctx context.Context, text string) error {
	cmdDef, err := SelectCommand(runtime.GOOS, exec.LookPath)
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, cmdDef.Path, cmdDef.Args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("clipboard stdin: %w", err)
	}

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return fmt.Errorf("start clipboard command: %w", err)
	}
	if _, err := stdin.Write([]byte(text)); err != nil {
		_ = stdin.Close()
		_ = cmd.Wait()
		return fmt.Errorf("write clipboard data: %w", err)
	}
	_ = stdin.Close()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("clipboard command failed: %w", err)
	}
	return nil
}
