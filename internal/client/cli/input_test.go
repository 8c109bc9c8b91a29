package cli

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rdr(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}

func TestGetSimpleText(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(rdr("hello world\n"), "Name?", &out)
	require.NoError(t, err)
	assert.Equal(t, "hello world", got)
	assert.Equal(t, "Name?\n> ", out.String())
}

func TestGetSimpleTextEOF(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(rdr("lastline"), "Name?", &out)
	require.NoError(t, err)
	assert.Equal(t, "lastline", got)

	_, err = GetSimpleText(rdr(""), "Name?", &out)
	require.Error(t, err)
}

func withTerminal(t *testing.T, terminal bool, read func(int) ([]byte, error)) {
	t.Helper()
	oldRead, oldIs, oldFd := readPassword, isTerminal, stdinFd
	t.Cleanup(func() { readPassword, isTerminal, stdinFd = oldRead, oldIs, oldFd })

	stdinFd = func() int { return 0 }
	isTerminal = func(int) bool { return terminal }
	if read != nil {
		readPassword = read
	}
}

func TestGetPIN_Piped(t *testing.T) {
	withTerminal(t, false, nil)

	var out bytes.Buffer
	pin, err := GetPIN(rdr(" 1234 \n"), &out)
	require.NoError(t, err)
	assert.Equal(t, "1234", pin)
}

func TestGetPIN_Terminal(t *testing.T) {
	buf := []byte("4321")
	withTerminal(t, true, func(int) ([]byte, error) { return buf, nil })

	var out bytes.Buffer
	pin, err := GetPIN(rdr(""), &out)
	require.NoError(t, err)
	assert.Equal(t, "4321", pin)
	assert.Equal(t, "Enter PIN: \n", out.String())
	assert.Equal(t, []byte{0, 0, 0, 0}, buf, "terminal buffer is wiped")
}

func TestGetPIN_TerminalError(t *testing.T) {
	withTerminal(t, true, func(int) ([]byte, error) { return nil, errors.New("boom") })

	var out bytes.Buffer
	_, err := GetPIN(rdr(""), &out)
	require.Error(t, err)
}

func TestGetList(t *testing.T) {
	var out bytes.Buffer
	got, err := GetList(rdr("a.jpg\n  b.jpg \n\nignored\n"), "Attachments", &out)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, got)

	got, err = GetList(rdr("last.jpg"), "Attachments", &out)
	require.NoError(t, err)
	assert.Equal(t, []string{"last.jpg"}, got)
}

func TestGetOptionalFloat(t *testing.T) {
	var out bytes.Buffer

	v, err := GetOptionalFloat(rdr("\n"), "Latitude", &out)
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = GetOptionalFloat(rdr("-33.9\n"), "Latitude", &out)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, -33.9, *v)

	_, err = GetOptionalFloat(rdr("north\n"), "Latitude", &out)
	require.Error(t, err)
}
