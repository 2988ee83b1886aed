package soundmod

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeTool writes an executable shell script named name into dir.
func fakeTool(t *testing.T, dir, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tools are shell scripts")
	}

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

// fakeFFmpeg answers -version and copies the file after -i to the file after -y.
const fakeFFmpeg = `
if [ "$1" = "-version" ]; then echo "ffmpeg version 7.0"; exit 0; fi
in=""; out=""
while [ $# -gt 0 ]; do
	case "$1" in
	-i) in="$2"; shift ;;
	-y) out="$2"; shift ;;
	esac
	shift
done
[ -f "$in" ] || { echo "$in: No such file or directory" >&2; exit 1; }
{ printf 'ffmpeg:'; cat "$in"; } > "$out"
`

// fakeVgmstream prints usage and exits 1 for -h, decodes "<in> -o <out>" by
// copying, and streams "-p <in>" to stdout.
const fakeVgmstream = `
case "$1" in
-h) echo "usage: vgmstream-cli [options] infile"; exit 1 ;;
-p) { printf 'vgmstream:'; cat "$2"; }; exit 0 ;;
esac
[ -f "$1" ] || { echo "failed opening $1" >&2; exit 1; }
{ printf 'vgmstream:'; cat "$1"; } > "$3"
`

// fakeWwise emulates the two WwiseConsole commands used for encoding. Every
// project creation appends a line to the file named by WWISE_LOG when set.
const fakeWwise = `
cmd="$1"; shift
case "$cmd" in
-h) echo "WwiseConsole"; exit 0 ;;
create-new-project)
	mkdir -p "$(dirname "$1")" && touch "$1"
	[ -n "$WWISE_LOG" ] && echo create >> "$WWISE_LOG"
	exit 0 ;;
convert-external-source)
	project="$1"; shift
	src=""; out=""; platform=""
	while [ $# -gt 0 ]; do
		case "$1" in
		--source-file) src="$2"; shift ;;
		--output) out="$2"; shift ;;
		--platform) platform="$2"; shift ;;
		esac
		shift
	done
	[ -f "$project" ] || { echo "project not found" >&2; exit 2; }
	root=$(sed -n 's/.*Root="\([^"]*\)".*/\1/p' "$src")
	name=$(sed -n 's/.*Path="\([^"]*\)".*/\1/p' "$src")
	mkdir -p "$out/$platform"
	{ printf 'wwise:'; cat "$root/$name"; } > "$out/$platform/${name%.*}.wem"
	exit 0 ;;
esac
echo "unknown command $cmd" >&2
exit 1
`
