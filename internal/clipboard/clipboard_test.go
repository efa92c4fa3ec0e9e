package clipboard

import (
	"errors"
	"testing"
)

func lookPathOnly(available map[string]string) func(string) (string, error) {
	return func(name string) (string, error) {
		if path, ok := available[name]; ok {
			return path, nil
		}
		return "", errors.New("not found")
	}
}

func TestSelectCommandDarwin(t *testing.T) {
	cmd, err := SelectCommand("darwin", lookPathOnly(map[string]string{"pbcopy": "/usr/bin/pbcopy"}))
	if err != nil {
		t.Fatalf("expected command, got error: %v", err)
	}
	if cmd.Path != "/usr/bin/pbcopy" || len(cmd.Args) != 0 {
		t.Fatalf("unexpected command: %+v", cmd)
	}
}

func TestSelectCommandLinuxPreferenceOrder(t *testing.T) {
	all := map[string]string{
		"wl-copy": "/usr/bin/wl-copy",
		"xclip":   "/usr/bin/xclip",
		"xsel":    "/usr/bin/xsel",
	}
	cmd, err := SelectCommand("linux", lookPathOnly(all))
	if err != nil {
		t.Fatalf("expected command, got error: %v", err)
	}
	if cmd.Path != "/usr/bin/wl-copy" {
		t.Fatalf("expected wl-copy first, got %q", cmd.Path)
	}

	delete(all, "wl-copy")
	cmd, err = SelectCommand("linux", lookPathOnly(all))
	if err != nil {
		t.Fatalf("expected xclip fallback, got error: %v", err)
	}
	if cmd.Path != "/usr/bin/xclip" || len(cmd.Args) != 2 {
		t.Fatalf("unexpected xclip command: %+v", cmd)
	}

	delete(all, "xclip")
	cmd, err = SelectCommand("linux", lookPathOnly(all))
	if err != nil {
		t.Fatalf("expected xsel fallback, got error: %v", err)
	}
	if cmd.Path != "/usr/bin/xsel" {
		t.Fatalf("unexpected xsel command: %+v", cmd)
	}
}

func TestSelectCommandNothingAvailable(t *testing.T) {
	_, err := SelectCommand("linux", lookPathOnly(nil))
	if !errors.Is(err, ErrToolNotFound) {
		t.Fatalf("expected ErrToolNotFound, got %v", err)
	}
}

func TestSelectCommandUnknownPlatform(t *testing.T) {
	_, err := SelectCommand("plan9", lookPathOnly(map[string]string{"clip": "/bin/clip"}))
	if !errors.Is(err, ErrToolNotFound) {
		t.Fatalf("expected ErrToolNotFound, got %v", err)
	}
}
