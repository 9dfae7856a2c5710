package canvas

import (
	"encoding/binary"

	"github.com/gogpu/gg"
)

// FloodFill replaces the 4-connected region of pixels exactly matching the
// colour at (x, y) with c. It reports false when (x, y) is outside the surface
// or the region already has colour c.
func (s *Surface) FloodFill(x, y int, c string) bool {
	if x < 0 || y < 0 || x >= s.width || y >= s.height {
		return false
	}
	pix := s.pixels()
	w, h := s.width, s.height
	at := func(i int) uint32 { return binary.LittleEndian.Uint32(pix[i*4:]) }

	fill := packRGBA(gg.Hex(c))
	start := y*w + x
	target := at(start)
	if target == fill {
		return false
	}

	stack := []int{start}
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if at(idx) != target {
			continue
		}
		xx, yy := idx%w, idx/w

		// 위쪽 끝까지 올라간 뒤 아래로 내려가며 칠한다
		for yy > 0 && at(idx-w) == target {
			idx -= w
			yy--
		}
		reachLeft, reachRight := false, false
		for yy < h && at(idx) == target {
			binary.LittleEndian.PutUint32(pix[idx*4:], fill)

			if xx > 0 && at(idx-1) == target {
				if !reachLeft {
					stack = append(stack, idx-1)
					reachLeft = true
				}
			} else {
				reachLeft = false
			}
			if xx < w-1 && at(idx+1) == target {
				if !reachRight {
					stack = append(stack, idx+1)
					reachRight = true
				}
			} else {
				reachRight = false
			}
			idx += w
			yy++
		}
	}
	return true
}

// packRGBA matches the in-memory byte order R, G, B, A read as a little-endian word.
func packRGBA(c gg.RGBA) uint32 {
	b := func(v float64) uint32 {
		switch {
		case v <= 0:
			return 0
		case v >= 1:
			return 255
		}
		return uint32(v*255 + 0.5)
	}
	return b(c.R) | b(c.G)<<8 | b(c.B)<<16 | b(c.A)<<24
}
