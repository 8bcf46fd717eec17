package viewport

// Drag tracks a pan gesture: idle, or panning from the last pointer position.
type Drag struct {
	active bool
	last   Point
}

// Begin starts panning at v.
func (d *Drag) Begin(v Point) {
	d.active = true
	d.last = v
}

// Move returns t panned by the pointer movement since the last event. It
// returns t unchanged when no pan is in progress.
func (d *Drag) Move(t Transform, v Point) Transform {
	if !d.active {
		return t
	}
	delta := v.Sub(d.last)
	d.last = v
	return t.PanBy(delta)
}

// End stops panning.
func (d *Drag) End() {
	d.active = false
}

// Active reports whether a pan is in progress.
func (d *Drag) Active() bool {
	return d.active
}
