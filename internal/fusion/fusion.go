// Package fusion merges independently timestamped transcript and frame
// description streams into one chronological document.
package fusion

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/joseph-ayodele/content-extractor/constants"
	"github.com/joseph-ayodele/content-extractor/internal/extract"
)

// Event is one timestamped piece of content.
type Event struct {
	Start    float64
	End      float64
	Modality extract.Modality
	Content  string
}

type Options struct {
	Window time.Duration
}

// Window is one emitted time window of the fused document.
type Window struct {
	Index  int
	Start  float64
	End    float64
	Events int
	Text   string
}

type Document struct {
	Text          string
	WindowCount   int
	TokenEstimate int
	Windows       []Window
}

// Fuse assigns every event to window floor(start/w) and renders the
// non-empty windows in order. Events with blank content are dropped and
// negative starts count as 0.
func Fuse(events []Event, opts Options) Document {
	w := opts.Window.Seconds()
	if w <= 0 {
		w = constants.FusionWindow.Seconds()
	}

	evs := make([]Event, 0, len(events))
	for _, e := range events {
		e.Content = strings.TrimSpace(e.Content)
		if e.Content == "" {
			continue
		}
		if e.Start < 0 || math.IsNaN(e.Start) {
			e.Start = 0
		}
		evs = append(evs, e)
	}
	sort.SliceStable(evs, func(i, j int) bool {
		if evs[i].Start != evs[j].Start {
			return evs[i].Start < evs[j].Start
		}
		return rank(evs[i].Modality) < rank(evs[j].Modality)
	})

	var doc Document
	for i := 0; i < len(evs); {
		k := int(math.Floor(evs[i].Start / w))
		j := i
		for j < len(evs) && int(math.Floor(evs[j].Start/w)) == k {
			j++
		}
		win := Window{
			Index:  k,
			Start:  float64(k) * w,
			End:    float64(k+1) * w,
			Events: j - i,
		}
		win.Text = renderWindow(win, evs[i:j])
		doc.Windows = append(doc.Windows, win)
		i = j
	}

	parts := make([]string, len(doc.Windows))
	for i, win := range doc.Windows {
		parts[i] = win.Text
	}
	doc.Text = strings.Join(parts, "\n\n")
	doc.WindowCount = len(doc.Windows)
	doc.TokenEstimate = extract.EstimateTokens(doc.Text)
	return doc
}

func renderWindow(win Window, evs []Event) string {
	lines := []string{fmt.Sprintf("[%s - %s]", Stamp(win.Start), Stamp(win.End))}
	var speech []string
	flush := func() {
		if len(speech) > 0 {
			lines = append(lines, strings.Join(speech, " "))
			speech = nil
		}
	}
	for _, e := range evs {
		if e.Modality == extract.ModalityFrameDescription {
			flush()
			lines = append(lines, fmt.Sprintf("[Visual @ %s] %s", Stamp(e.Start), e.Content))
			continue
		}
		speech = append(speech, e.Content)
	}
	flush()
	return strings.Join(lines, "\n")
}

// transcript text sorts ahead of a frame taken at the same instant
func rank(m extract.Modality) int {
	if m == extract.ModalityFrameDescription {
		return 1
	}
	return 0
}

// Stamp formats seconds as mm:ss; minutes keep counting past the hour.
func Stamp(secs float64) string {
	if secs < 0 {
		secs = 0
	}
	total := int(math.Floor(secs))
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
