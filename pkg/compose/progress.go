package compose

// progressTracker counts down remaining scanlines per source and fires
// the completion callback once per image as its counter reaches zero.
type progressTracker struct {
	remaining map[int]uint32
	completed int
	total     int
	onDone    func(completed, total int)
}

func newProgressTracker(heights map[int]uint32, onDone func(int, int)) *progressTracker {
	p := &progressTracker{
		remaining: make(map[int]uint32, len(heights)),
		total:     len(heights),
		onDone:    onDone,
	}
	// Zero-height sources have no scanlines to consume and complete
	// immediately.
	for idx, h := range heights {
		if h > 0 {
			p.remaining[idx] = h
		}
	}
	for zero := p.total - len(p.remaining); zero > 0; zero-- {
		p.completed++
		if p.onDone != nil {
			p.onDone(p.completed, p.total)
		}
	}
	return p
}

// rowRead records one scanline consumed from source idx.
func (p *progressTracker) rowRead(idx int) {
	left, ok := p.remaining[idx]
	if !ok || left == 0 {
		return
	}
	left--
	p.remaining[idx] = left
	if left == 0 {
		p.completed++
		if p.onDone != nil {
			p.onDone(p.completed, p.total)
		}
	}
}
