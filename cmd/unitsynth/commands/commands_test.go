package commands

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/haivivi/unitsynth/pkg/audio/wavfile"
	"github.com/haivivi/unitsynth/pkg/textgrid"
)

const testRate = 16000

type testEnv struct {
	dir    string
	voices string
	cache  string
	config string
}

// writeItem writes a one-word recording: each phone lasts 100 ms and the word is
// framed by silence.
func writeItem(t *testing.T, dir, word string, phones ...string) {
	t.Helper()
	labels := append(append([]string{""}, phones...), "")
	end := 0.1 * float64(len(labels))
	phoneTier := textgrid.Tier{Class: textgrid.IntervalTier, Name: "phonetic", XMax: end}
	for i, l := range labels {
		phoneTier.Intervals = append(phoneTier.Intervals, textgrid.Interval{XMin: 0.1 * float64(i), XMax: 0.1 * float64(i+1), Text: l})
	}
	wordTier := textgrid.Tier{Class: textgrid.IntervalTier, Name: "orthographic", XMax: end, Intervals: []textgrid.Interval{
		{XMin: 0, XMax: 0.1},
		{XMin: 0.1, XMax: end - 0.1, Text: word},
		{XMin: end - 0.1, XMax: end},
	}}
	g := &textgrid.TextGrid{XMax: end, Tiers: []textgrid.Tier{wordTier, phoneTier}}

	var buf bytes.Buffer
	if err := g.Write(&buf); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, word+".TextGrid"), buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	samples := make([]float32, len(labels)*testRate/10)
	for i := range samples {
		samples[i] = float32(0.3 * math.Sin(2*math.Pi*180*float64(i)/testRate))
	}
	if err := wavfile.WriteFile(filepath.Join(dir, word+".wav"), samples, testRate); err != nil {
		t.Fatal(err)
	}
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		dir:    dir,
		voices: filepath.Join(dir, "voices"),
		cache:  filepath.Join(dir, "cache"),
		config: filepath.Join(dir, "config.yaml"),
	}
	alice := filepath.Join(env.voices, "alice")
	if err := os.MkdirAll(alice, 0o755); err != nil {
		t.Fatal(err)
	}
	writeItem(t, alice, "cat", "K", "AE1", "T")
	writeItem(t, alice, "sat", "S", "AE1", "T")
	writeItem(t, alice, "at", "AE1", "T")
	return env
}

func (e *testEnv) run(t *testing.T, args ...string) (stdout string, err error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{
		"--config", e.config, "--voices-dir", e.voices, "--cache-dir", e.cache,
	}, args...))
	err = rootCmd.Execute()
	resetFlags(rootCmd)
	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		f.Changed = false
		f.Value.Set(f.DefValue)
	})
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func TestSynth_Text(t *testing.T) {
	env := setupTestEnv(t)
	out := filepath.Join(env.dir, "out", "hello.wav")

	stdout, err := env.run(t, "synth", "--voice", "alice", "--text", "Cat, sat!", "-o", out)
	if err != nil {
		t.Fatalf("synth: %v", err)
	}
	if !strings.Contains(stdout, "wrote") {
		t.Errorf("stdout = %q", stdout)
	}
	samples, rate, err := wavfile.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if rate != testRate || len(samples) == 0 {
		t.Errorf("output: %d samples at %d Hz", len(samples), rate)
	}
	if _, err := os.Stat(filepath.Join(env.cache, "snapshots", "alice")); err != nil {
		t.Errorf("snapshot not written: %v", err)
	}

	// Second run is served from the snapshot.
	if _, err := env.run(t, "synth", "--voice", "alice", "--text", "at", "-o", out); err != nil {
		t.Fatalf("synth from snapshot: %v", err)
	}
}

func TestSynth_VoiceWithTrailingSlash(t *testing.T) {
	env := setupTestEnv(t)
	out := filepath.Join(env.dir, "slash.wav")
	if _, err := env.run(t, "synth", "--voice", "alice/", "--text", "cat", "-o", out); err != nil {
		t.Fatalf("synth: %v", err)
	}
	if _, err := os.Stat(filepath.Join(env.cache, "snapshots", "alice")); err != nil {
		t.Errorf("snapshot not stored under the clean voice name: %v", err)
	}
	if _, err := env.run(t, "synth", "--voice", "../alice", "--text", "cat", "-o", out); err == nil || !strings.Contains(err.Error(), "invalid voice") {
		t.Errorf("err = %v, want invalid voice", err)
	}
}

func TestSynth_PhonemesPCM(t *testing.T) {
	env := setupTestEnv(t)
	out := filepath.Join(env.dir, "kat.pcm")
	if _, err := env.run(t, "synth", "--voice", "alice", "--phonemes", "K AE1 T | AE T",
		"--strategy", "dual_equality", "--overlap", "0", "--no-cache", "-o", out); err != nil {
		t.Fatalf("synth: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 || len(data)%2 != 0 {
		t.Errorf("pcm output has %d bytes", len(data))
	}
	if _, err := os.Stat(filepath.Join(env.cache, "snapshots", "alice")); !os.IsNotExist(err) {
		t.Error("--no-cache should not write a snapshot")
	}
}

func TestSynth_Errors(t *testing.T) {
	env := setupTestEnv(t)
	out := filepath.Join(env.dir, "x.wav")
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no input", []string{"--voice", "alice"}, "--text or --phonemes"},
		{"strategy", []string{"--voice", "alice", "--text", "cat", "--strategy", "greedy"}, "invalid strategy"},
		{"overlap", []string{"--voice", "alice", "--text", "cat", "--overlap", "1.5"}, "out of range"},
		{"missing policy", []string{"--voice", "alice", "--text", "cat", "--missing", "ignore"}, "missing policy"},
		{"unknown voice", []string{"--voice", "bob", "--text", "cat"}, "corpus not found"},
		{"unknown word", []string{"--voice", "alice", "--text", "dog", "--no-cache"}, "unknown word"},
		{"unknown phoneme", []string{"--voice", "alice", "--phonemes", "ZH AE", "--no-cache"}, "no candidate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"synth", "-o", out}, tt.args...)
			_, err := env.run(t, args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
		})
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("failed runs should not write output")
	}
}

func TestSynth_MissingCorpusDir(t *testing.T) {
	env := setupTestEnv(t)
	env.voices = filepath.Join(env.dir, "nowhere")
	_, err := env.run(t, "synth", "--voice", "alice", "--text", "cat", "-o", filepath.Join(env.dir, "x.wav"))
	if err == nil || !strings.Contains(err.Error(), "corpus not found") {
		t.Errorf("err = %v, want corpus not found", err)
	}
}

func TestSynth_MissingSilence(t *testing.T) {
	env := setupTestEnv(t)
	out := filepath.Join(env.dir, "x.wav")
	if _, err := env.run(t, "synth", "--voice", "alice", "--phonemes", "ZH AE T", "--missing", "silence", "--no-cache", "-o", out); err != nil {
		t.Fatalf("synth: %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Error(err)
	}
}

func TestBuildInspectVoices(t *testing.T) {
	env := setupTestEnv(t)

	stdout, err := env.run(t, "build", "alice")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.Contains(stdout, "3 items") {
		t.Errorf("build stdout = %q", stdout)
	}
	stdout, err = env.run(t, "build", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, "up to date") {
		t.Errorf("second build stdout = %q", stdout)
	}
	if _, err := env.run(t, "build", "alice", "--force"); err != nil {
		t.Fatalf("build --force: %v", err)
	}

	stdout, err = env.run(t, "inspect", "alice")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if !strings.Contains(stdout, "PHONEME") || !strings.Contains(stdout, "<sil>") {
		t.Errorf("inspect stdout = %q", stdout)
	}

	stdout, err = env.run(t, "inspect", "alice", "AE1", "--format", "json")
	if err != nil {
		t.Fatalf("inspect AE: %v", err)
	}
	for _, w := range []string{`"cat"`, `"sat"`, `"at"`, `"pre"`} {
		if !strings.Contains(stdout, w) {
			t.Errorf("inspect AE output missing %s: %s", w, stdout)
		}
	}

	stdout, err = env.run(t, "voices", "--format", "json")
	if err != nil {
		t.Fatalf("voices: %v", err)
	}
	if !strings.Contains(stdout, `"voice": "alice"`) || !strings.Contains(stdout, `"snapshot": true`) {
		t.Errorf("voices stdout = %q", stdout)
	}
}

func TestInspect_UnknownPhoneme(t *testing.T) {
	env := setupTestEnv(t)
	_, err := env.run(t, "inspect", "alice", "ZH")
	if err == nil || !strings.Contains(err.Error(), "unknown phoneme") {
		t.Errorf("err = %v", err)
	}
}

func TestConfigSetGet(t *testing.T) {
	env := setupTestEnv(t)
	if _, err := env.run(t, "config", "set", "strategy", "dual_equality"); err != nil {
		t.Fatalf("config set: %v", err)
	}
	stdout, err := env.run(t, "config", "get", "strategy")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(stdout) != "dual_equality" {
		t.Errorf("config get = %q", stdout)
	}
	if _, err := env.run(t, "config", "set", "nope", "x"); err == nil {
		t.Error("expected unknown key error")
	}
	stdout, err = env.run(t, "config", "path")
	if err != nil || strings.TrimSpace(stdout) != env.config {
		t.Errorf("config path = %q, %v", stdout, err)
	}

	// The configured strategy is validated like the flag.
	if _, err := env.run(t, "config", "set", "strategy", "greedy"); err != nil {
		t.Fatal(err)
	}
	_, err = env.run(t, "synth", "--voice", "alice", "--text", "cat", "-o", filepath.Join(env.dir, "x.wav"))
	if err == nil || !strings.Contains(err.Error(), "invalid strategy") {
		t.Errorf("err = %v, want invalid strategy", err)
	}
}

func TestVersion(t *testing.T) {
	env := setupTestEnv(t)
	stdout, err := env.run(t, "version")
	if err != nil || !strings.Contains(stdout, "unitsynth") {
		t.Fatalf("version = %q, %v", stdout, err)
	}
	stdout, err = env.run(t, "version", "--format", "json")
	if err != nil || !strings.Contains(stdout, `"version"`) {
		t.Fatalf("version json = %q, %v", stdout, err)
	}
}
