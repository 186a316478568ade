package picker

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeTextsFile(t *testing.T, texts Texts) string {
	t.Helper()
	raw, err := json.Marshal(texts)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	path := filepath.Join(t.TempDir(), "texts.json")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestLoadTextsRoundTrip(t *testing.T) {
	path := writeTextsFile(t, DefaultTexts())
	texts, err := LoadTexts(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	knob, ok := texts.Knob(4)
	if !ok {
		t.Fatal("channel 4 missing after load")
	}
	if len(knob.Values) != KnobPositions {
		t.Fatalf("expected %d values, got %d", KnobPositions, len(knob.Values))
	}
}

func TestLoadTextsMissingChannel(t *testing.T) {
	texts := DefaultTexts()
	delete(texts, "CH5")
	if _, err := LoadTexts(writeTextsFile(t, texts)); err == nil {
		t.Fatal("missing channel must be fatal")
	}
}

func TestLoadTextsWrongValueCount(t *testing.T) {
	texts := DefaultTexts()
	knob := texts["CH0"]
	knob.Values = knob.Values[:5]
	texts["CH0"] = knob
	if _, err := LoadTexts(writeTextsFile(t, texts)); err == nil {
		t.Fatal("short value list must be fatal")
	}
}

func TestLoadTextsMissingTitle(t *testing.T) {
	texts := DefaultTexts()
	knob := texts["CH1"]
	knob.Title = ""
	texts["CH1"] = knob
	if _, err := LoadTexts(writeTextsFile(t, texts)); err == nil {
		t.Fatal("empty title must be fatal")
	}
}

func TestLoadTextsNoFile(t *testing.T) {
	if _, err := LoadTexts(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("missing file must be fatal")
	}
}

func TestTextsChannelsSorted(t *testing.T) {
	texts := Texts{
		"CH6":   {Title: "f"},
		"CH0":   {Title: "a"},
		"CH4":   {Title: "d"},
		"other": {Title: "x"},
	}
	got := texts.Channels()
	want := []int{0, 4, 6}
	if len(got) != len(want) {
		t.Fatalf("channels %v != %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("channels %v != %v", got, want)
		}
	}
}
