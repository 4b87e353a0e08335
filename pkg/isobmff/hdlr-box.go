package isobmff

// aligned(8) class HandlerBox extends FullBox(‘hdlr’, version = 0, 0) {
//   unsigned int(32) pre_defined = 0;
//   unsigned int(32) handler_type;
//   const unsigned int(32)[3] reserved = 0;
//   string name;
// }
type HdlrBox struct {
	FullBox
	HandlerType FourCC
	Name        string
}

func (b *HdlrBox) Decode(data []byte) error {
	r := &breader{data: data}
	b.decodeHeader(r)
	r.skip(4)
	b.HandlerType = r.fourcc()
	r.skip(12)
	name := r.rest()
	for len(name) > 0 && name[len(name)-1] == 0 {
		name = name[:len(name)-1]
	}
	b.Name = string(name)
	return r.err
}

func (b *HdlrBox) Encode(w *bwriter) error {
	b.encodeHeader(w)
	w.u32(0)
	w.fourcc(b.HandlerType)
	w.put(make([]byte, 12))
	w.put([]byte(b.Name))
	w.u8(0)
	return nil
}
