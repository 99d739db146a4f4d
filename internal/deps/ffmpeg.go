package deps

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

var commandContext = exec.CommandContext

const versionTimeout = 5 * time.Second

// Version runs `<binary> -version` and returns the version token from the
// first banner line, e.g. "6.1.1" from "ffmpeg version 6.1.1 Copyright ...".
func Version(ctx context.Context, binary string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()

	cmd := commandContext(ctx, binary, "-version")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("%s -version: %w", binary, err)
	}
	return parseVersion(string(out))
}

func parseVersion(banner string) (string, error) {
	line, _, _ := strings.Cut(strings.TrimSpace(banner), "\n")
	fields := strings.Fields(line)
	for i := 0; i+1 < len(fields); i++ {
		if fields[i] == "version" {
			return fields[i+1], nil
		}
	}
	return "", fmt.Errorf("unrecognized version banner %q", line)
}

// FFmpegRequirements lists the binaries a render run needs.
func FFmpegRequirements(ffmpegBinary, ffprobeBinary string, verifySegments bool) []Requirement {
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     ffmpegBinary,
			Description: "Required for chapter rendering and assembly",
		},
		{
			Name:        "FFprobe",
			Command:     ffprobeBinary,
			Description: "Used for segment verification and duration fallback",
			Optional:    !verifySegments,
		},
	}
}
