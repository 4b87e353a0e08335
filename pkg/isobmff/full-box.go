package isobmff

// FullBox carries the version and flags fields shared by all full boxes.
//
// aligned(8) class FullBox(unsigned int(32) boxtype, unsigned int(8) v, bit(24) f)
//   extends Box(boxtype) {
//   unsigned int(8) version = v;
//   bit(24) flags = f;
// }
type FullBox struct {
	Version uint8
	Flags   uint32
}

func (b *FullBox) decodeHeader(r *breader) {
	b.Version = r.u8()
	b.Flags = r.u24()
}

func (b *FullBox) encodeHeader(w *bwriter) {
	w.u8(b.Version)
	w.u24(b.Flags)
}
