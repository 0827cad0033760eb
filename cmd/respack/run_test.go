package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, string, int) {
	t.Helper()

	var out, errOut bytes.Buffer

	code := Run(context.Background(), &out, &errOut, append([]string{"respack"}, args...))

	return out.String(), errOut.String(), code
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestRun_Usage(t *testing.T) {
	out, _, code := runCLI(t)
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "Usage: respack")

	_, errOut, code := runCLI(t, "frobnicate")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "unknown command")
}

func TestRun_PackLsShowVerify(t *testing.T) {
	src := t.TempDir()
	root := t.TempDir()

	writeFile(t, filepath.Join(src, "ui", "title.txt"), "welcome")
	writeFile(t, filepath.Join(src, "ui", "font.ttf"), "glyphs")
	writeFile(t, filepath.Join(src, "logo.png"), "pixels")

	out, errOut, code := runCLI(t, "pack", "-C", root, "--src", src, "-b", "ui.rpak", "-d", "ui/title=ui/font", "ui")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "ui.rpak")

	out, errOut, code = runCLI(t, "pack", "-C", root, "--src", src, "--format", "json", "logo.png")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "logo.png")
	assert.FileExists(t, filepath.Join(root, "logo.png.rdesc.json"))

	out, errOut, code = runCLI(t, "ls", "-C", root)
	require.Equal(t, 0, code, errOut)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[1], "logo "))
	assert.True(t, strings.HasPrefix(lines[2], "ui/font "))
	assert.True(t, strings.HasPrefix(lines[3], "ui/title "))

	out, errOut, code = runCLI(t, "ls", "-C", root, "--type", "ttf")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "ui/font")
	assert.NotContains(t, out, "ui/title")

	out, errOut, code = runCLI(t, "show", "-C", root, "ui/title")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "type:         txt")
	assert.Contains(t, out, "container:    ui.rpak")
	assert.Contains(t, out, "dependencies: ui/font")
	assert.Contains(t, out, "kind:         batch")

	out, errOut, code = runCLI(t, "verify", "-C", root)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "2 containers, 0 corrupt")

	// Flip a byte of the single container.
	logo := filepath.Join(root, "logo.png")
	require.NoError(t, os.WriteFile(logo, []byte("pixelz"), 0o600))

	out, _, code = runCLI(t, "verify", "-C", root)
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "corrupt logo.png")
}

func TestRun_ShowMissing(t *testing.T) {
	root := t.TempDir()

	_, errOut, code := runCLI(t, "show", "-C", root)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, errKeyRequired.Error())

	_, errOut, code = runCLI(t, "show", "-C", root, "nope")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "not found")
}

func TestRun_NoSource(t *testing.T) {
	_, errOut, code := runCLI(t, "ls")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, errNoSource.Error())
}

func TestRun_PackErrors(t *testing.T) {
	root := t.TempDir()

	_, errOut, code := runCLI(t, "pack", "-C", root)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, errNoInput.Error())

	src := t.TempDir()
	writeFile(t, filepath.Join(src, "a.txt"), "a")

	_, errOut, code = runCLI(t, "pack", "-C", root, "--src", src, "--format", "xml", "a.txt")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "unknown descriptor format")

	_, errOut, code = runCLI(t, "pack", "-C", root, "--src", src, "-d", "broken", "a.txt")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "invalid --dep")
}
