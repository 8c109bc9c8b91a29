package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	logged bool
	calls  []string
	shown  string
}

func (f *fakeExec) loggedIn() bool { return f.logged }
func (f *fakeExec) Login(ctx context.Context) error {
	f.calls = append(f.calls, "login")
	f.logged = true
	return nil
}
func (f *fakeExec) Capture(ctx context.Context) error {
	f.calls = append(f.calls, "capture")
	return errors.New("barcode or vehicle registration is required")
}
func (f *fakeExec) List(ctx context.Context) error { f.calls = append(f.calls, "list"); return nil }
func (f *fakeExec) Show(ctx context.Context, id string) error {
	f.calls = append(f.calls, "show")
	f.shown = id
	return nil
}
func (f *fakeExec) Sync(ctx context.Context) error   { f.calls = append(f.calls, "sync"); return nil }
func (f *fakeExec) Status(ctx context.Context) error { f.calls = append(f.calls, "status"); return nil }
func (f *fakeExec) Logout(ctx context.Context) error {
	f.calls = append(f.calls, "logout")
	f.logged = false
	return nil
}

func TestRunREPL_Dispatch(t *testing.T) {
	input := strings.Join([]string{
		"help",
		"login",
		"help",
		"",
		"capture",
		"l",
		"show 7",
		"show",
		"sync",
		"status",
		"foobar",
		"logout",
		"exit",
		"status",
	}, "\n")

	exec := &fakeExec{}
	var out bytes.Buffer
	runREPL(context.Background(), exec, func() string { return "(s)" }, bufio.NewReader(strings.NewReader(input)), &out)

	assert.Equal(t, []string{"login", "capture", "list", "show", "sync", "status", "logout"}, exec.calls)
	assert.Equal(t, "7", exec.shown)

	text := out.String()
	assert.Contains(t, text, "Available commands: login, status, sync, exit")
	assert.Contains(t, text, "Available commands: capture")
	assert.Contains(t, text, "Error: barcode or vehicle registration is required")
	assert.Contains(t, text, "Usage: show <id>")
	assert.Contains(t, text, "Unknown command: foobar")
	assert.Contains(t, text, "fs (s)> ")
	assert.True(t, strings.HasSuffix(text, "Bye!\n"), "nothing runs after exit")
}

func TestRunREPL_StopsAtEOF(t *testing.T) {
	exec := &fakeExec{}
	var out bytes.Buffer
	runREPL(context.Background(), exec, func() string { return "" }, bufio.NewReader(strings.NewReader("sync")), &out)

	assert.Equal(t, []string{"sync"}, exec.calls, "a final line without newline still runs")
}
