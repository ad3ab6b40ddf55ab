package grid

import (
	"math"

	"curation-grid/internal/domain/job"
)

type WindowOptions struct {
	EstimatedRowHeight float64
	// Overscan is the number of extra rows materialized on each side of the
	// visible range.
	Overscan int
	// MeasureThreshold is the row count above which measured heights are
	// ignored and every row is assumed to have the estimated height.
	MeasureThreshold int
}

func (o WindowOptions) withDefaults() WindowOptions {
	if o.EstimatedRowHeight <= 0 {
		o.EstimatedRowHeight = 44
	}
	if o.Overscan < 0 {
		o.Overscan = 0
	}
	if o.MeasureThreshold <= 0 {
		o.MeasureThreshold = 1000
	}
	return o
}

type Viewport struct {
	ScrollTop float64 `json:"scroll_top"`
	Height    float64 `json:"height"`
}

// Range is the materialized slice [Start, End) of the rows plus the spacer
// heights that stand in for the rows above and below it.
type Range struct {
	Start    int     `json:"start"`
	End      int     `json:"end"`
	Leading  float64 `json:"leading"`
	Trailing float64 `json:"trailing"`
}

type Window struct {
	opts    WindowOptions
	heights map[int]float64
}

func NewWindow(opts WindowOptions) *Window {
	return &Window{opts: opts.withDefaults(), heights: map[int]float64{}}
}

// Measure records the rendered height of row index.
func (w *Window) Measure(index int, height float64) {
	if index < 0 || height <= 0 {
		return
	}
	w.heights[index] = height
}

// Reset forgets all measurements; row indexes change meaning when the rows
// are replaced.
func (w *Window) Reset() {
	w.heights = map[int]float64{}
}

// RowRemoved drops the measurement of row index and moves the rows after it
// up by one.
func (w *Window) RowRemoved(index int) {
	next := make(map[int]float64, len(w.heights))
	for i, h := range w.heights {
		switch {
		case i < index:
			next[i] = h
		case i > index:
			next[i-1] = h
		}
	}
	w.heights = next
}

// RowInserted moves the rows at index and after down by one. The new row is
// unmeasured.
func (w *Window) RowInserted(index int) {
	next := make(map[int]float64, len(w.heights))
	for i, h := range w.heights {
		if i >= index {
			i++
		}
		next[i] = h
	}
	w.heights = next
}

func (w *Window) Compute(total int, vp Viewport) Range {
	if total <= 0 {
		return Range{}
	}
	top := math.Max(vp.ScrollTop, 0)
	height := math.Max(vp.Height, 0)

	if total > w.opts.MeasureThreshold || len(w.heights) == 0 {
		return w.computeFixed(total, top, height)
	}
	return w.computeMeasured(total, top, height)
}

func (w *Window) computeFixed(total int, top, height float64) Range {
	est := w.opts.EstimatedRowHeight
	first := int(top / est)
	last := int(math.Ceil((top + height) / est))
	start, end := w.bounds(total, first, last)
	return Range{
		Start:    start,
		End:      end,
		Leading:  float64(start) * est,
		Trailing: float64(total-end) * est,
	}
}

func (w *Window) computeMeasured(total int, top, height float64) Range {
	offsets := make([]float64, total+1)
	for i := 0; i < total; i++ {
		offsets[i+1] = offsets[i] + w.heightAt(i)
	}

	first := total
	for i := 0; i < total; i++ {
		if offsets[i+1] > top {
			first = i
			break
		}
	}
	last := first
	for last < total && offsets[last] < top+height {
		last++
	}
	start, end := w.bounds(total, first, last)
	return Range{
		Start:    start,
		End:      end,
		Leading:  offsets[start],
		Trailing: offsets[total] - offsets[end],
	}
}

// bounds clamps the visible range [first, last) to the rows and widens it by
// the overscan.
func (w *Window) bounds(total, first, last int) (int, int) {
	if first >= total {
		first = total - 1
	}
	if last <= first {
		last = first + 1
	}
	if last > total {
		last = total
	}
	start := max(first-w.opts.Overscan, 0)
	end := min(last+w.opts.Overscan, total)
	return start, end
}

func (w *Window) heightAt(i int) float64 {
	if h, ok := w.heights[i]; ok {
		return h
	}
	return w.opts.EstimatedRowHeight
}

// RowView is one materialized row.
type RowView struct {
	Index    int        `json:"index"`
	Record   job.Record `json:"record"`
	Selected bool       `json:"selected"`
	Editing  bool       `json:"editing"`
	Busy     bool       `json:"busy"`
}

type RenderList struct {
	Range
	Total int       `json:"total"`
	Rows  []RowView `json:"rows"`
}

// Render materializes the rows visible in vp.
func (c *Controller) Render(vp Viewport) (RenderList, error) {
	if err := c.lock(); err != nil {
		return RenderList{}, err
	}
	defer c.mu.Unlock()

	total := c.store.Len()
	rng := c.window.Compute(total, vp)
	out := RenderList{Range: rng, Total: total}
	recs := c.store.Slice(rng.Start, rng.End)
	out.Rows = make([]RowView, 0, len(recs))
	for i, r := range recs {
		_, sel := c.selection[r.ID]
		out.Rows = append(out.Rows, RowView{
			Index:    rng.Start + i,
			Record:   r,
			Selected: sel,
			Editing:  c.edit.targets(r.ID),
			Busy:     c.busyLocked(r.ID),
		})
	}
	return out, nil
}

// MeasureRow records the rendered height of the row at index.
func (c *Controller) MeasureRow(index int, height float64) error {
	if err := c.lock(); err != nil {
		return err
	}
	defer c.mu.Unlock()
	c.window.Measure(index, height)
	return nil
}
