package main

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/Hallelua/Blind-adaptive-echo-cancellation-final/internal/store"
	"github.com/Hallelua/Blind-adaptive-echo-cancellation-final/internal/wav"
)

// cliDBSetup creates a temp directory with an initialized store and returns
// the database path. The directory is cleaned up when the test finishes.
func cliDBSetup(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "echocancel.db")
	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	st.Close()
	return dbPath
}

// cliWAVSetup writes a short sine WAV and returns its path.
func cliWAVSetup(t *testing.T) string {
	t.Helper()
	signal := make([]float32, 22050)
	for i := range signal {
		signal[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/44100))
	}
	var buf bytes.Buffer
	if err := wav.Encode(&buf, signal, 44100); err != nil {
		t.Fatalf("encode wav: %v", err)
	}
	path := filepath.Join(t.TempDir(), "input.wav")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	return path
}

func TestRunCLIVersionReturnsTrue(t *testing.T) {
	if !RunCLI([]string{"version"}, "not-used.db") {
		t.Error("RunCLI(version) should return true")
	}
}

func TestRunCLIUnknownSubcommandReturnsFalse(t *testing.T) {
	if RunCLI([]string{"nonexistent-cmd"}, "not-used.db") {
		t.Error("RunCLI(unknown) should return false")
	}
}

func TestRunCLIEmptyArgsReturnsFalse(t *testing.T) {
	if RunCLI([]string{}, "not-used.db") {
		t.Error("RunCLI([]) should return false")
	}
}

func TestCLIStatusReturnsTrue(t *testing.T) {
	dbPath := cliDBSetup(t)
	if !RunCLI([]string{"status"}, dbPath) {
		t.Error("RunCLI(status) should return true")
	}
}

func TestCLIJobsEmptyDatabase(t *testing.T) {
	dbPath := cliDBSetup(t)
	if !RunCLI([]string{"jobs"}, dbPath) {
		t.Error("RunCLI(jobs) should return true")
	}
}

func TestCLIProcessWritesOutput(t *testing.T) {
	inPath := cliWAVSetup(t)
	outPath := filepath.Join(t.TempDir(), "output.wav")

	if !RunCLI([]string{"process", "remove_echo", inPath, outPath}, "not-used.db") {
		t.Fatal("RunCLI(process) should return true")
	}

	f, err := os.Open(outPath)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()

	processed, rate, err := wav.Decode(f)
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if rate != 44100 {
		t.Fatalf("expected 44100 Hz, got %d", rate)
	}
	if len(processed) != 22050 {
		t.Fatalf("expected 22050 samples, got %d", len(processed))
	}
}
