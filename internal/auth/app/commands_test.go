package app

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPromptPasswordReadsTerminalWithoutEcho(t *testing.T) {
	out := &bytes.Buffer{}
	var gotFD int
	app := &Application{
		in:     bufio.NewScanner(strings.NewReader("from scanner\n")),
		out:    out,
		termFD: 7,
		readPassword: func(fd int) ([]byte, error) {
			gotFD = fd
			return []byte(" correct horse "), nil
		},
	}

	password, err := app.promptPassword("Password: ")
	require.NoError(t, err)
	require.Equal(t, "correct horse", password)
	require.Equal(t, 7, gotFD)
	require.Equal(t, "Password: \n", out.String())
	require.NotContains(t, out.String(), "correct horse")

	app.readPassword = func(int) ([]byte, error) { return nil, errors.New("tty gone") }
	_, err = app.promptPassword("Password: ")
	require.ErrorContains(t, err, "tty gone")
}

func TestPromptPasswordFallsBackToScanner(t *testing.T) {
	app := &Application{
		in:     bufio.NewScanner(strings.NewReader("piped secret\n")),
		out:    &bytes.Buffer{},
		termFD: -1,
		readPassword: func(int) ([]byte, error) {
			t.Fatal("terminal read on non-terminal input")
			return nil, nil
		},
	}

	password, err := app.promptPassword("Password: ")
	require.NoError(t, err)
	require.Equal(t, "piped secret", password)
}

func TestWithIODisablesTerminalInput(t *testing.T) {
	app := &Application{termFD: 0}
	WithIO(strings.NewReader(""), &bytes.Buffer{})(app)
	require.Equal(t, -1, app.termFD)
}
