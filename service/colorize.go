package service

// VOCPalette colours the 21 Pascal VOC classes; index 0 is background.
var VOCPalette = [21][3]uint8{
	{0, 0, 0}, {128, 0, 0}, {0, 128, 0}, {128, 128, 0}, {0, 0, 128}, {128, 0, 128},
	{0, 128, 128}, {128, 128, 128}, {64, 0, 0}, {192, 0, 0}, {64, 128, 0},
	{192, 128, 0}, {64, 0, 128}, {192, 0, 128}, {64, 128, 128}, {192, 128, 128},
	{0, 64, 0}, {128, 64, 0}, {0, 192, 0}, {128, 192, 0}, {0, 64, 128},
}

// Colorize paints each pixel of m with its palette colour. Indices past the
// palette are painted as background.
func Colorize(m ClassMap) *Image {
	out := NewImage(m.Width, m.Height)
	for i, idx := range m.Index {
		if int(idx) >= len(VOCPalette) {
			continue
		}
		copy(out.Pix[i*3:], VOCPalette[idx][:])
	}
	return out
}
