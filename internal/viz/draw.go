package viz

import "math"

// Frame is what the canvas shows for one tick.
type Frame struct {
	Elbow   float64 // degrees, 0 points forward
	Slide   float64
	Heading float64 // degrees, counter-clockwise from north
	Load    float64
	Lowered bool // intake down
	Open    bool // box open
}

// DrawRobot renders a side view of the arm on the left half of c and a
// heading compass on the right half.
func DrawRobot(c *Canvas, f Frame) {
	c.Clear()
	w, h := c.Dots()

	ground := h - 3
	c.Line(0, ground, w/2-2, ground)

	// chassis
	px, py := w/5, ground-6
	c.Line(px-8, ground-1, px+10, ground-1)
	c.Line(px, ground-1, px, py)

	// intake on the front edge
	ix, iy := px+10, ground-1
	if f.Lowered {
		c.Line(ix, iy, ix+6, ground)
	} else {
		c.Line(ix, iy, ix+2, iy-6)
	}

	reach := float64(h)/3 + f.Slide*0.8
	rad := f.Elbow * math.Pi / 180
	tx := px + int(reach*math.Cos(rad))
	ty := py - int(reach*math.Sin(rad))
	c.Line(px, py, tx, ty)

	c.Box(tx, ty, 1)
	if f.Load > 0.5 {
		c.Box(tx, ty, 2)
	}
	if f.Open {
		c.Line(tx+2, ty+2, tx+4, ty+4)
	}

	// compass
	cx, cy := w*3/4, h/2
	r := float64(min(w/4, h/2) - 3)
	for a := 0.0; a < 2*math.Pi; a += math.Pi / 24 {
		c.Set(cx+int(r*math.Cos(a)), cy+int(r*math.Sin(a)))
	}
	c.Set(cx, cy-int(r)-2)
	hr := f.Heading * math.Pi / 180
	c.Line(cx, cy, cx-int(r*0.9*math.Sin(hr)), cy-int(r*0.9*math.Cos(hr)))
}
