package ffmpeg

import (
	"errors"
	"strings"
)

// ConcatList renders an ffconcat document listing segments in order.
func ConcatList(segments []string) string {
	var b strings.Builder
	b.WriteString("ffconcat version 1.0\n")
	for _, segment := range segments {
		b.WriteString("file '")
		b.WriteString(escapeConcatPath(segment))
		b.WriteString("'\n")
	}
	return b.String()
}

// escapeConcatPath closes the quote, emits an escaped quote, and reopens.
func escapeConcatPath(path string) string {
	return strings.ReplaceAll(path, "'", `'\''`)
}

// ConcatArgs returns the stream-copy join over listPath.
func ConcatArgs(listPath, output, container string) ([]string, error) {
	if strings.TrimSpace(listPath) == "" {
		return nil, errors.New("concat: list path required")
	}
	if strings.TrimSpace(output) == "" {
		return nil, errors.New("concat: output path required")
	}
	args := baseArgs()
	args = append(args,
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-map", "0",
		"-c", "copy",
	)
	args = append(args, containerArgs(container)...)
	args = append(args, output)
	return args, nil
}
