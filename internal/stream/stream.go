// Package stream delivers an answer bundle progressively: the brief text,
// then each detailed section, then the visualization, as discrete
// timestamped events whose word-level cadence approximates natural typing.
package stream

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/blueinsight/blueinsight/internal/answer"
	"github.com/blueinsight/blueinsight/internal/observability"
	"github.com/blueinsight/blueinsight/internal/viz"
)

type Kind string

const (
	KindBrief         Kind = "brief"
	KindSection       Kind = "section"
	KindVisualization Kind = "visualization"
	KindComplete      Kind = "complete"
)

// ErrCancelled reports that the caller marked the stream inactive. A
// cancelled stream never receives a complete event.
var ErrCancelled = errors.New("stream cancelled")

type Event struct {
	ID                 string          `json:"id"`
	Seq                int             `json:"seq"`
	Kind               Kind            `json:"kind"`
	Content            string          `json:"content,omitempty"`
	SectionTag         string          `json:"sectionTag,omitempty"`
	Visualization      *viz.ChartSpec  `json:"visualization,omitempty"`
	MultiVisualization []viz.ChartSpec `json:"multiVisualization,omitempty"`
	IsComplete         bool            `json:"isComplete"`
	EmittedAt          time.Time       `json:"emittedAt"`
}

type Config struct {
	WordsPerMinute int
}

type Coordinator struct {
	mu     sync.Mutex
	active map[string]bool
	wpm    int

	sleep func(context.Context, time.Duration) error
	now   func() time.Time
}

func NewCoordinator(cfg Config) *Coordinator {
	wpm := cfg.WordsPerMinute
	if wpm <= 0 {
		wpm = 400
	}
	return &Coordinator{
		active: make(map[string]bool),
		wpm:    wpm,
		sleep:  sleepContext,
		now:    time.Now,
	}
}

// Cancel marks the stream id inactive. Emission loops check this before
// every increment and stop immediately.
func (c *Coordinator) Cancel(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.active, id)
}

func (c *Coordinator) isActive(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active[id]
}

// Run streams the bundle through emit, blocking until the terminal complete
// event or cancellation. Events for one id are strictly ordered: brief, then
// each section (no section starts before the prior section's completion
// event), then the visualization, then complete.
func (c *Coordinator) Run(ctx context.Context, id string, bundle answer.Bundle, emit func(Event)) error {
	c.mu.Lock()
	c.active[id] = true
	c.mu.Unlock()
	defer c.Cancel(id)

	seq := 0
	send := func(event Event) {
		seq++
		event.ID = id
		event.Seq = seq
		event.EmittedAt = c.now()
		observability.IncrementStreamEvent(string(event.Kind))
		emit(event)
	}

	if err := c.emitText(ctx, id, KindBrief, "", bundle.BriefText, send); err != nil {
		return err
	}
	for _, section := range bundle.Sections {
		text := section.Text
		if section.Heading != "" {
			text = section.Heading + "\n" + text
		}
		if err := c.emitText(ctx, id, KindSection, section.Tag, text, send); err != nil {
			return err
		}
	}

	if !c.isActive(id) {
		return ErrCancelled
	}
	if bundle.Visualization != nil || len(bundle.MultiVisualization) > 0 {
		send(Event{
			Kind:               KindVisualization,
			Visualization:      bundle.Visualization,
			MultiVisualization: bundle.MultiVisualization,
			IsComplete:         true,
		})
	}

	if !c.isActive(id) {
		return ErrCancelled
	}
	send(Event{Kind: KindComplete, IsComplete: true})
	return nil
}

func (c *Coordinator) emitText(ctx context.Context, id string, kind Kind, tag, text string, send func(Event)) error {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	for i, word := range words {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !c.isActive(id) {
			return ErrCancelled
		}

		content := word
		if i < len(words)-1 {
			content += " "
		}
		send(Event{
			Kind:       kind,
			Content:    content,
			SectionTag: tag,
			IsComplete: i == len(words)-1,
		})

		if i == len(words)-1 {
			break
		}
		if err := c.sleep(ctx, c.delayFor(word, i, len(words))); err != nil {
			return err
		}
	}
	return nil
}

// delayFor derives the pause after a word from the target words-per-minute
// rate: longer after sentence-ending punctuation, shorter for short
// connective words and in the final stretch of a section.
func (c *Coordinator) delayFor(word string, index, total int) time.Duration {
	base := time.Minute / time.Duration(c.wpm)
	factor := 1.0

	switch {
	case strings.HasSuffix(word, "."), strings.HasSuffix(word, "!"), strings.HasSuffix(word, "?"):
		factor = 2.5
	case len(word) <= 3:
		factor = 0.5
	}
	if total > 0 && index >= total*9/10 {
		factor *= 0.6
	}
	return time.Duration(float64(base) * factor)
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
