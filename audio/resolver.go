package audio

import (
	"context"
	"errors"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultResolveTimeout = 30 * time.Second

	printTemplate = "%(title)s|%(duration)s|%(uploader)s|%(webpage_url)s|%(thumbnail)s"
)

// YTDLPResolver reads track metadata with yt-dlp.
type YTDLPResolver struct {
	Binary  string
	Timeout time.Duration

	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func NewYTDLPResolver() *YTDLPResolver {
	return &YTDLPResolver{
		Binary:  "yt-dlp",
		Timeout: DefaultResolveTimeout,
		run:     runCommand,
	}
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

func (r *YTDLPResolver) Resolve(ctx context.Context, locator string) (Track, error) {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return Track{}, &SourceError{Kind: SourceNotFound, Locator: locator}
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	out, err := r.run(ctx, r.Binary, "--quiet", "--no-warnings", "--no-playlist",
		"--print", printTemplate, locator)
	if err != nil {
		return Track{}, &SourceError{Kind: classifyRunError(ctx, err), Locator: locator, Err: err}
	}

	t, err := parseMetadata(out)
	if err != nil {
		return Track{}, &SourceError{Kind: SourceDecodeFailed, Locator: locator, Err: err}
	}
	if t.URL == "" {
		t.URL = locator
	}
	return t, nil
}

func classifyRunError(ctx context.Context, err error) SourceErrorKind {
	if ctx.Err() != nil {
		return SourceUnreachable
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		stderr := strings.ToLower(string(exitErr.Stderr))
		for _, s := range []string{"unsupported url", "video unavailable", "not found", "404", "private video", "does not exist"} {
			if strings.Contains(stderr, s) {
				return SourceNotFound
			}
		}
	}
	return SourceUnreachable
}

// parseMetadata reads the first line printed for printTemplate.
func parseMetadata(out []byte) (Track, error) {
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	parts := strings.Split(line, "|")
	if len(parts) != 5 {
		return Track{}, errors.New("unexpected yt-dlp output")
	}

	t := Track{
		Title:     naToEmpty(parts[0]),
		Author:    naToEmpty(parts[2]),
		URL:       naToEmpty(parts[3]),
		Thumbnail: naToEmpty(parts[4]),
	}
	if d := naToEmpty(parts[1]); d != "" {
		secs, err := strconv.ParseFloat(d, 64)
		if err != nil || secs < 0 {
			return Track{}, errors.New("bad duration " + strconv.Quote(d))
		}
		t.Duration = time.Duration(secs * float64(time.Second))
	}
	return t, nil
}

// yt-dlp prints NA for fields it does not know.
func naToEmpty(s string) string {
	s = strings.TrimSpace(s)
	if s == "NA" {
		return ""
	}
	return s
}
