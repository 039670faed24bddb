package corpus

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/haivivi/unitsynth/pkg/audio/wavfile"
	"github.com/haivivi/unitsynth/pkg/kv"
	"github.com/haivivi/unitsynth/pkg/storage"
	"github.com/haivivi/unitsynth/pkg/textgrid"
)

const testRate = 1000

// phones describes an item: each label lasts 0.1 s.
type phones []string

func gridFor(labels phones) *textgrid.TextGrid {
	end := 0.1 * float64(len(labels))
	tier := textgrid.Tier{Class: textgrid.IntervalTier, Name: DefaultPhoneTier, XMax: end}
	for i, l := range labels {
		tier.Intervals = append(tier.Intervals, textgrid.Interval{
			XMin: 0.1 * float64(i),
			XMax: 0.1 * float64(i+1),
			Text: l,
		})
	}
	return &textgrid.TextGrid{XMax: end, Tiers: []textgrid.Tier{tier}}
}

// ramp returns n samples whose values encode their index, so slices can be
// checked by content.
func ramp(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i%1000) / 2048
	}
	return out
}

func writeItem(t *testing.T, fs storage.FileStore, voice, stem string, labels phones) {
	t.Helper()
	ctx := context.Background()
	var buf bytes.Buffer
	if err := gridFor(labels).Write(&buf); err != nil {
		t.Fatal(err)
	}
	if err := storage.WriteAll(ctx, fs, voice+"/"+stem+".TextGrid", buf.Bytes()); err != nil {
		t.Fatal(err)
	}
	wav, err := wavfile.EncodeBytes(ramp(len(labels)*testRate/10), testRate)
	if err != nil {
		t.Fatal(err)
	}
	if err := storage.WriteAll(ctx, fs, voice+"/"+stem+".wav", wav); err != nil {
		t.Fatal(err)
	}
}

// counter is an intonation function that counts its calls and returns the
// segment length, so intonation differs between instances.
type counter struct{ calls int }

func (c *counter) fn(samples []float32, _ int) float64 {
	c.calls++
	return float64(len(samples))
}

func testCorpus(t *testing.T) storage.FileStore {
	t.Helper()
	fs, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	writeItem(t, fs, "alice", "w1", phones{"A1", "B", "C0"})
	writeItem(t, fs, "alice", "w2", phones{"B2", "A"})
	return fs
}

func build(t *testing.T, fs storage.FileStore, policy AudioPolicy, c *counter) (*Inventory, *BuildReport) {
	t.Helper()
	inv, report, err := Build(context.Background(), BuildConfig{
		Voice:      "alice",
		Store:      fs,
		Intonation: c.fn,
		Heuristic:  "count",
		Policy:     policy,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return inv, report
}

func TestStripStress(t *testing.T) {
	tests := map[string]string{
		"AE1": "AE", "AE0": "AE", "AH3": "AH", "AE4": "AE4", "T": "T", "": "", "1": "",
	}
	for in, want := range tests {
		if got := StripStress(in); got != want {
			t.Errorf("StripStress(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuild_Context(t *testing.T) {
	c := &counter{}
	inv, report := build(t, testCorpus(t), PolicyMemory, c)

	if report.Items != 2 || report.Instances != 5 || len(report.Skipped) != 0 {
		t.Fatalf("report = %+v", report)
	}
	if c.calls != 5 {
		t.Errorf("intonation called %d times, want 5", c.calls)
	}

	a, err := inv.Phoneme("A")
	if err != nil {
		t.Fatal(err)
	}
	b, err := inv.Phoneme("B")
	if err != nil {
		t.Fatal(err)
	}
	want := map[string][]Instance{
		"A": {
			{Phoneme: "A", Word: "w1", Interval: 0, Intonation: 100, Pre: "", Nex: "B"},
			{Phoneme: "A", Word: "w2", Interval: 1, Intonation: 100, Pre: "B", Nex: ""},
		},
		"B": {
			{Phoneme: "B", Word: "w1", Interval: 1, Intonation: 100, Pre: "A", Nex: "C"},
			{Phoneme: "B", Word: "w2", Interval: 0, Intonation: 100, Pre: "", Nex: "A"},
		},
	}
	if !reflect.DeepEqual(a.Instances, want["A"]) {
		t.Errorf("A = %+v\nwant %+v", a.Instances, want["A"])
	}
	if !reflect.DeepEqual(b.Instances, want["B"]) {
		t.Errorf("B = %+v\nwant %+v", b.Instances, want["B"])
	}
	if got := inv.Names(); !reflect.DeepEqual(got, []string{"A", "B", "C"}) {
		t.Errorf("Names = %v", got)
	}
	if _, err := inv.Phoneme("ZH"); !errors.Is(err, ErrUnknownPhoneme) {
		t.Errorf("Phoneme(ZH) = %v, want ErrUnknownPhoneme", err)
	}
}

func TestBuild_RepeatedPhoneme(t *testing.T) {
	fs, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	// Enough repeats to force the group's backing array to grow while the
	// previous instance still awaits its right context.
	labels := phones{"", "S", "S", "S", "S", "S", "T", ""}
	writeItem(t, fs, "bob", "hiss", labels)
	inv, _, err := Build(context.Background(), BuildConfig{
		Voice: "bob", Store: fs, Intonation: (&counter{}).fn,
	})
	if err != nil {
		t.Fatal(err)
	}
	s, _ := inv.Phoneme("S")
	for i, in := range s.Instances {
		wantNex := "S"
		if i == len(s.Instances)-1 {
			wantNex = "T"
		}
		if in.Nex != wantNex {
			t.Errorf("S[%d].Nex = %q, want %q", i, in.Nex, wantNex)
		}
	}
	sil, _ := inv.Phoneme("")
	if len(sil.Instances) != 2 || sil.Instances[0].Nex != "S" || sil.Instances[1].Pre != "T" {
		t.Errorf("silence instances = %+v", sil.Instances)
	}
}

func TestBuild_Skips(t *testing.T) {
	fs := testCorpus(t)
	ctx := context.Background()
	writeItem(t, fs, "alice", "nowav", phones{"A"})
	storage.WriteAll(ctx, fs, "alice/nowav.wav", nil)
	if err := storage.WriteAll(ctx, fs, "alice/nogrid.wav", []byte("x")); err != nil {
		t.Fatal(err)
	}
	storage.WriteAll(ctx, fs, "alice/badgrid.TextGrid", []byte("not a textgrid"))
	storage.WriteAll(ctx, fs, "alice/badgrid.wav", []byte("x"))
	writeItem(t, fs, "alice", "notier", phones{"A"})
	var buf bytes.Buffer
	g := gridFor(phones{"A"})
	g.Tiers[0].Name = "words"
	g.Write(&buf)
	storage.WriteAll(ctx, fs, "alice/notier.TextGrid", buf.Bytes())
	storage.WriteAll(ctx, fs, "alice/orphan.TextGrid", buf.Bytes())
	storage.WriteAll(ctx, fs, "alice/readme.txt", []byte("ignored"))

	inv, report := build(t, fs, PolicyMemory, &counter{})
	if report.Items != 2 {
		t.Errorf("Items = %d, want 2", report.Items)
	}
	reasons := map[string]string{}
	for _, s := range report.Skipped {
		reasons[s.Item] = s.Reason
	}
	want := map[string]string{
		"nowav":   "undecodable audio",
		"nogrid":  "missing annotation",
		"badgrid": "unparseable annotation",
		"notier":  "no phone tier",
		"orphan":  "missing audio",
	}
	if !reflect.DeepEqual(reasons, want) {
		t.Errorf("skips = %v\nwant %v", reasons, want)
	}
	if got := inv.Words(); !reflect.DeepEqual(got, []string{"w1", "w2"}) {
		t.Errorf("Words = %v", got)
	}
}

func TestBuild_CorpusNotFound(t *testing.T) {
	fs := testCorpus(t)
	_, _, err := Build(context.Background(), BuildConfig{Voice: "nobody", Store: fs, Intonation: (&counter{}).fn})
	if !errors.Is(err, ErrCorpusNotFound) {
		t.Fatalf("Build = %v, want ErrCorpusNotFound", err)
	}
}

func TestCleanVoice(t *testing.T) {
	tests := []struct {
		in, want string
		ok       bool
	}{
		{"alice", "alice", true},
		{"alice/", "alice", true},
		{"./alice", "alice", true},
		{"/alice//", "alice", true},
		{"en/alice", "en/alice", true},
		{"a:b", "a:b", true},
		{"", "", false},
		{"/", "", false},
		{"..", "", false},
		{"../alice", "", false},
	}
	for _, tt := range tests {
		got, err := CleanVoice(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("CleanVoice(%q) = %q, %v; want %q, ok=%v", tt.in, got, err, tt.want, tt.ok)
		}
	}
}

func TestBuild_VoiceSpelling(t *testing.T) {
	fs := testCorpus(t)
	want, _ := build(t, fs, PolicyMemory, &counter{})
	for _, voice := range []string{"alice/", "./alice"} {
		inv, report, err := Build(context.Background(), BuildConfig{Voice: voice, Store: fs, Intonation: (&counter{}).fn, Heuristic: "count"})
		if err != nil {
			t.Fatalf("Build(%q): %v", voice, err)
		}
		if inv.Voice() != "alice" || report.Items != 2 {
			t.Errorf("Build(%q): voice=%q items=%d", voice, inv.Voice(), report.Items)
		}
		if !reflect.DeepEqual(inv.Names(), want.Names()) || inv.Len() != want.Len() {
			t.Errorf("Build(%q) = %v (%d), want %v (%d)", voice, inv.Names(), inv.Len(), want.Names(), want.Len())
		}
	}
}

func TestBuild_NoPairableFiles(t *testing.T) {
	fs := testCorpus(t)
	ctx := context.Background()
	if err := storage.WriteAll(ctx, fs, "dave/readme.txt", []byte("notes")); err != nil {
		t.Fatal(err)
	}
	if err := storage.WriteAll(ctx, fs, "dave/sub/x.wav", []byte("x")); err != nil {
		t.Fatal(err)
	}
	_, _, err := Build(ctx, BuildConfig{Voice: "dave", Store: fs, Intonation: (&counter{}).fn})
	if !errors.Is(err, ErrCorpusNotFound) {
		t.Fatalf("Build = %v, want ErrCorpusNotFound", err)
	}
}

func TestSnapshot_SeparatorInVoice(t *testing.T) {
	fs, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	writeItem(t, fs, "en:alice", "w1", phones{"A1", "B", "C0"})
	writeItem(t, fs, "en:alice", "w2", phones{"B2", "A"})
	writeItem(t, fs, "en", "w1", phones{"A"})

	ctx := context.Background()
	snap := kv.NewMemory(nil)
	c := &counter{}
	cfg := BuildConfig{Voice: "en:alice", Store: fs, Intonation: c.fn, Heuristic: "count"}
	built, report, err := LoadOrBuild(ctx, snap, cfg)
	if err != nil {
		t.Fatalf("LoadOrBuild: %v", err)
	}
	if report == nil {
		t.Fatal("first call should build")
	}

	// A voice whose name is a prefix of the escaped key is unaffected.
	other, _, err := LoadOrBuild(ctx, snap, BuildConfig{Voice: "en", Store: fs, Intonation: c.fn, Heuristic: "count"})
	if err != nil {
		t.Fatalf("LoadOrBuild(en): %v", err)
	}
	if other.Len() != 1 {
		t.Errorf("en Len = %d, want 1", other.Len())
	}

	calls := c.calls
	loaded, report, err := LoadOrBuild(ctx, snap, cfg)
	if err != nil {
		t.Fatalf("second LoadOrBuild: %v", err)
	}
	if report != nil || c.calls != calls {
		t.Errorf("second call rebuilt: report=%v calls=%d->%d", report, calls, c.calls)
	}
	if loaded.Voice() != "en:alice" || loaded.Len() != built.Len() {
		t.Errorf("loaded voice=%q len=%d, want en:alice len=%d", loaded.Voice(), loaded.Len(), built.Len())
	}
	info, err := Stat(ctx, snap, "en:alice")
	if err != nil || info.Words != 2 {
		t.Errorf("Stat = %+v, %v", info, err)
	}
}

func TestSpan(t *testing.T) {
	tests := []struct {
		iv         textgrid.Interval
		rate, n    int
		start, end int
	}{
		{textgrid.Interval{XMin: 0.1234, XMax: 0.2999}, 1000, 1000, 123, 299},
		{textgrid.Interval{XMin: 0, XMax: 1}, 16000, 8000, 0, 8000},
		{textgrid.Interval{XMin: 0.5, XMax: 0.5}, 1000, 1000, 500, 500},
		{textgrid.Interval{XMin: 2, XMax: 3}, 1000, 1000, 1000, 1000},
	}
	for _, tt := range tests {
		start, end := Span(tt.iv, tt.rate, tt.n)
		if start != tt.start || end != tt.end {
			t.Errorf("Span(%+v, %d, %d) = [%d, %d), want [%d, %d)", tt.iv, tt.rate, tt.n, start, end, tt.start, tt.end)
		}
	}
}

func TestAudioPolicies_Identical(t *testing.T) {
	fs := testCorpus(t)
	ctx := context.Background()
	mem, _ := build(t, fs, PolicyMemory, &counter{})
	disk, _ := build(t, fs, PolicyDisk, &counter{})

	for _, name := range mem.Names() {
		a, err := mem.InstancesWithAudio(ctx, name)
		if err != nil {
			t.Fatal(err)
		}
		b, err := disk.InstancesWithAudio(ctx, name)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(a, b) {
			t.Errorf("%s: memory and disk slices differ", name)
		}
		for _, ia := range a {
			if len(ia.Samples) != 100 {
				t.Errorf("%s in %s: %d samples, want 100", name, ia.Instance.Word, len(ia.Samples))
			}
			single, err := disk.Audio(ctx, ia.Instance)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(single.Samples, ia.Samples) {
				t.Errorf("Audio(%+v) differs from InstancesWithAudio", ia.Instance)
			}
		}
	}

	wd, err := disk.WordData(ctx, "w1")
	if err != nil {
		t.Fatal(err)
	}
	if wd.SampleRate != testRate || len(wd.Samples) != 300 {
		t.Errorf("WordData(w1) = %d samples at %d Hz", len(wd.Samples), wd.SampleRate)
	}
	if _, err := disk.WordData(ctx, "w9"); !errors.Is(err, ErrUnknownWord) {
		t.Errorf("WordData(w9) = %v, want ErrUnknownWord", err)
	}
	if _, err := mem.InstancesWithAudio(ctx, "ZH"); !errors.Is(err, ErrUnknownPhoneme) {
		t.Errorf("InstancesWithAudio(ZH) = %v, want ErrUnknownPhoneme", err)
	}
}

func TestSnapshot_Equivalence(t *testing.T) {
	for _, policy := range []AudioPolicy{PolicyMemory, PolicyDisk} {
		t.Run(string(policy), func(t *testing.T) {
			fs := testCorpus(t)
			ctx := context.Background()
			built, _ := build(t, fs, policy, &counter{})

			snap := kv.NewMemory(nil)
			if err := Save(ctx, snap, built); err != nil {
				t.Fatalf("Save: %v", err)
			}
			loaded, err := Load(ctx, snap, LoadConfig{Voice: "alice", Policy: policy, Heuristic: "count", Store: fs})
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if !reflect.DeepEqual(loaded.Names(), built.Names()) {
				t.Fatalf("Names = %v, want %v", loaded.Names(), built.Names())
			}
			for _, name := range built.Names() {
				want, _ := built.Phoneme(name)
				got, err := loaded.Phoneme(name)
				if err != nil {
					t.Fatal(err)
				}
				if !reflect.DeepEqual(got, want) {
					t.Errorf("Phoneme(%q) = %+v, want %+v", name, got, want)
				}
				a, _ := built.InstancesWithAudio(ctx, name)
				b, err := loaded.InstancesWithAudio(ctx, name)
				if err != nil {
					t.Fatal(err)
				}
				if !reflect.DeepEqual(a, b) {
					t.Errorf("InstancesWithAudio(%q) differs after load", name)
				}
			}

			info, err := Stat(ctx, snap, "alice")
			if err != nil {
				t.Fatalf("Stat: %v", err)
			}
			if info.Words != 2 || info.Phonemes != 3 || info.Policy != policy {
				t.Errorf("Stat = %+v", info)
			}
		})
	}
}

func TestLoadOrBuild_NoRecompute(t *testing.T) {
	fs := testCorpus(t)
	ctx := context.Background()
	snap := kv.NewMemory(nil)
	c := &counter{}
	cfg := BuildConfig{Voice: "alice", Store: fs, Intonation: c.fn, Heuristic: "count"}

	_, report, err := LoadOrBuild(ctx, snap, cfg)
	if err != nil {
		t.Fatalf("first LoadOrBuild: %v", err)
	}
	if report == nil || c.calls != 5 {
		t.Fatalf("first call: report=%v calls=%d", report, c.calls)
	}

	inv, report, err := LoadOrBuild(ctx, snap, cfg)
	if err != nil {
		t.Fatalf("second LoadOrBuild: %v", err)
	}
	if report != nil {
		t.Error("second call rebuilt the inventory")
	}
	if c.calls != 5 {
		t.Errorf("intonation called %d times after snapshot load, want 5", c.calls)
	}
	if inv.Len() != 5 {
		t.Errorf("Len = %d, want 5", inv.Len())
	}
}

func TestLoad_Miss(t *testing.T) {
	fs := testCorpus(t)
	ctx := context.Background()
	snap := kv.NewMemory(nil)

	if _, err := Load(ctx, snap, LoadConfig{Voice: "alice", Heuristic: "count"}); !errors.Is(err, ErrSnapshotMiss) {
		t.Fatalf("Load(empty) = %v, want ErrSnapshotMiss", err)
	}

	built, _ := build(t, fs, PolicyMemory, &counter{})
	if err := Save(ctx, snap, built); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		cfg  LoadConfig
	}{
		{"heuristic", LoadConfig{Voice: "alice", Heuristic: "peak_to_peak"}},
		{"policy", LoadConfig{Voice: "alice", Heuristic: "count", Policy: PolicyDisk, Store: fs}},
		{"tier", LoadConfig{Voice: "alice", Heuristic: "count", PhoneTier: "phones"}},
	}
	for _, tt := range tests {
		if _, err := Load(ctx, snap, tt.cfg); !errors.Is(err, ErrSnapshotMiss) {
			t.Errorf("%s: Load = %v, want ErrSnapshotMiss", tt.name, err)
		}
	}

	// Corrupt meta triggers a rebuild through LoadOrBuild.
	if err := snap.Set(ctx, kv.Key{"alice", "meta"}, []byte{0xc1}); err != nil {
		t.Fatal(err)
	}
	c := &counter{}
	_, report, err := LoadOrBuild(ctx, snap, BuildConfig{Voice: "alice", Store: fs, Intonation: c.fn, Heuristic: "count"})
	if err != nil {
		t.Fatalf("LoadOrBuild: %v", err)
	}
	if report == nil || c.calls == 0 {
		t.Fatal("corrupt snapshot did not trigger a rebuild")
	}
	if _, err := Load(ctx, snap, LoadConfig{Voice: "alice", Heuristic: "count"}); err != nil {
		t.Fatalf("Load after rebuild: %v", err)
	}
}

// failingStore rejects writes.
type failingStore struct{ *kv.Memory }

func (failingStore) BatchSet(context.Context, []kv.Entry) error { return errors.New("disk full") }

func TestLoadOrBuild_SaveFailure(t *testing.T) {
	fs := testCorpus(t)
	_, _, err := LoadOrBuild(context.Background(), failingStore{kv.NewMemory(nil)},
		BuildConfig{Voice: "alice", Store: fs, Intonation: (&counter{}).fn})
	if err == nil {
		t.Fatal("expected save failure to be returned")
	}
}

func TestParseAudioPolicy(t *testing.T) {
	for in, want := range map[string]AudioPolicy{"": PolicyMemory, "memory": PolicyMemory, "disk": PolicyDisk} {
		got, err := ParseAudioPolicy(in)
		if err != nil || got != want {
			t.Errorf("ParseAudioPolicy(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseAudioPolicy("tape"); err == nil {
		t.Error("expected error for unknown policy")
	}
}
