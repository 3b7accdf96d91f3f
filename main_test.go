package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vidshape/failures"
	"vidshape/logger"
	"vidshape/success"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCommand()
	for _, name := range []string{"serve", "probe", "resize", "package", "capture", "version"} {
		if _, _, err := root.Find([]string{name}); err != nil {
			t.Errorf("subcommand %s not registered: %v", name, err)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out.String(), "vidshape ") {
		t.Errorf("unexpected version output %q", out.String())
	}
}

func TestRootRejectsUnknownLogLevel(t *testing.T) {
	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"--log-level", "chatty", "version"})
	if err := root.Execute(); err == nil {
		t.Fatal("expected unknown log level to fail")
	}
}

func TestSelectLadder(t *testing.T) {
	ladder, err := selectLadder("", nil)
	if err != nil || len(ladder) == 0 {
		t.Fatalf("default ladder: %v (%d levels)", err, len(ladder))
	}

	ladder, err = selectLadder("", []string{"360p", "720p"})
	if err != nil {
		t.Fatalf("presets: %v", err)
	}
	if len(ladder) != 2 || ladder[0].Name != "360p" {
		t.Errorf("unexpected preset ladder %+v", ladder)
	}

	if _, err := selectLadder("ladder.toml", []string{"360p"}); err == nil {
		t.Error("expected --ladder with --presets to fail")
	}

	path := filepath.Join(t.TempDir(), "ladder.toml")
	toml := "[[level]]\nname = \"low\"\nheight = 240\nvideo_bitrate = 400000\n"
	if err := os.WriteFile(path, []byte(toml), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := selectLadder(path, nil); err != nil {
		t.Errorf("ladder file: %v", err)
	}
}

func TestStem(t *testing.T) {
	cases := map[string]string{
		"/videos/holiday clip.mp4": "holiday_clip",
		"plain":                    "plain",
		"/tmp/.mp4":                "output",
	}
	for in, want := range cases {
		if got := stem(in); got != want {
			t.Errorf("stem(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestProgressReporterLogsWhenNotTerminal(t *testing.T) {
	var logs bytes.Buffer
	logger.SetOutput(&logs)
	prev := logger.Level()
	defer logger.SetLevel(prev)
	logger.SetLevel(logger.DEBUG)

	p := newProgressReporter(&bytes.Buffer{}, "encode")
	p.Update(10)
	p.Update(5)
	p.Update(250)
	p.Finish()

	out := logs.String()
	if !strings.Contains(out, "encode: 10%") || !strings.Contains(out, "encode: 100%") {
		t.Errorf("expected clamped progress lines, got %q", out)
	}
	if strings.Contains(out, "encode: 5%") {
		t.Errorf("regressing progress should be ignored, got %q", out)
	}
}

func TestRunCleanupRemovesExpiredRecords(t *testing.T) {
	dir := t.TempDir()
	if err := success.Init(filepath.Join(dir, "success.db")); err != nil {
		t.Fatalf("success store: %v", err)
	}
	defer success.Close()
	if err := failures.Init(filepath.Join(dir, "failures.db")); err != nil {
		t.Fatalf("failures store: %v", err)
	}
	defer failures.Close()

	if err := success.StoreSuccess("ok-1", "resize", nil, []string{"clip.mp4"}, time.Second); err != nil {
		t.Fatal(err)
	}
	if err := failures.StoreFailure("bad-1", "package", "encode", os.ErrInvalid, nil); err != nil {
		t.Fatal(err)
	}

	runCleanup(time.Hour)
	if rec, _ := success.GetSuccess("ok-1"); rec == nil {
		t.Fatal("recent success record should survive cleanup")
	}

	time.Sleep(5 * time.Millisecond)
	runCleanup(time.Millisecond)
	if rec, _ := success.GetSuccess("ok-1"); rec != nil {
		t.Error("expired success record should be removed")
	}
	if rec, _ := failures.GetFailure("bad-1"); rec != nil {
		t.Error("expired failure record should be removed")
	}
}
