package picker

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// KnobPositions is the number of detents each knob maps to.
const KnobPositions = 12

// Knob holds the display title and per-position labels for one channel.
type Knob struct {
	Title  string   `json:"title"`
	Values []string `json:"values"`
}

// Texts maps channel keys ("CH0".."CH7") to knob label sets.
type Texts map[string]Knob

// Knob returns the entry for an ADC channel, if present.
func (t Texts) Knob(ch int) (Knob, bool) {
	k, ok := t[fmt.Sprintf("CH%d", ch)]
	return k, ok
}

// Channels returns the configured knob channel numbers in ascending order.
func (t Texts) Channels() []int {
	var out []int
	for key := range t {
		if !strings.HasPrefix(key, "CH") {
			continue
		}
		ch, err := strconv.Atoi(key[2:])
		if err != nil {
			continue
		}
		out = append(out, ch)
	}
	sort.Ints(out)
	return out
}

// LoadTexts reads and validates the knob label config. A malformed config
// is fatal at startup.
func LoadTexts(path string) (Texts, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read knob text config")
	}
	var texts Texts
	if err := json.Unmarshal(raw, &texts); err != nil {
		return nil, errors.Wrap(err, "parse knob text config")
	}
	for _, ch := range KnobChannels {
		key := fmt.Sprintf("CH%d", ch)
		knob, ok := texts[key]
		if !ok {
			return nil, errors.Errorf("knob text config: missing entry %s", key)
		}
		if knob.Title == "" {
			return nil, errors.Errorf("knob text config: %s has no title", key)
		}
		if len(knob.Values) != KnobPositions {
			return nil, errors.Errorf("knob text config: %s must have %d values, got %d",
				key, KnobPositions, len(knob.Values))
		}
	}
	return texts, nil
}

// DefaultTexts returns placeholder labels, used in simulation when no
// config file is given.
func DefaultTexts() Texts {
	texts := Texts{}
	for _, ch := range KnobChannels {
		values := make([]string, KnobPositions)
		for i := range values {
			values[i] = fmt.Sprintf("Option %d", i+1)
		}
		texts[fmt.Sprintf("CH%d", ch)] = Knob{
			Title:  fmt.Sprintf("Knob %d", ch),
			Values: values,
		}
	}
	return texts
}
