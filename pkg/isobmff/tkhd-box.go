package isobmff

// aligned(8) class TrackHeaderBox extends FullBox(‘tkhd’, version, flags) {
//   if (version==1) {
//     unsigned int(64) creation_time;
//     unsigned int(64) modification_time;
//     unsigned int(32) track_ID;
//     const unsigned int(32) reserved = 0;
//     unsigned int(64) duration;
//   } else { // version==0
//     unsigned int(32) creation_time;
//     unsigned int(32) modification_time;
//     unsigned int(32) track_ID;
//     const unsigned int(32) reserved = 0;
//     unsigned int(32) duration;
//   }
//   const unsigned int(32)[2] reserved = 0;
//   template int(16) layer = 0;
//   template int(16) alternate_group = 0;
//   template int(16) volume = {if track_is_audio 0x0100 else 0};
//   const unsigned int(16) reserved = 0;
//   template int(32)[9] matrix;
//   unsigned int(32) width;
//   unsigned int(32) height;
// }
type TkhdBox struct {
	FullBox
	CreationTime     uint64
	ModificationTime uint64
	TrackID          uint32
	Duration         uint64
	Layer            int16
	AlternateGroup   int16
	Volume           int16
	Matrix           [9]int32
	Width            uint32
	Height           uint32
}

// Track header flag bits.
const (
	TkhdTrackEnabled   = 0x1
	TkhdTrackInMovie   = 0x2
	TkhdTrackInPreview = 0x4
)

func (b *TkhdBox) Decode(data []byte) error {
	r := &breader{data: data}
	b.decodeHeader(r)
	if b.Version == 1 {
		b.CreationTime = r.u64()
		b.ModificationTime = r.u64()
		b.TrackID = r.u32()
		r.skip(4)
		b.Duration = r.u64()
	} else {
		b.CreationTime = uint64(r.u32())
		b.ModificationTime = uint64(r.u32())
		b.TrackID = r.u32()
		r.skip(4)
		b.Duration = uint64(r.u32())
	}
	r.skip(8)
	b.Layer = int16(r.u16())
	b.AlternateGroup = int16(r.u16())
	b.Volume = int16(r.u16())
	r.skip(2)
	for i := range b.Matrix {
		b.Matrix[i] = int32(r.u32())
	}
	b.Width = r.u32()
	b.Height = r.u32()
	return r.err
}

func (b *TkhdBox) Encode(w *bwriter) error {
	b.encodeHeader(w)
	if b.Version == 1 {
		w.u64(b.CreationTime)
		w.u64(b.ModificationTime)
		w.u32(b.TrackID)
		w.u32(0)
		w.u64(b.Duration)
	} else {
		w.u32(uint32(b.CreationTime))
		w.u32(uint32(b.ModificationTime))
		w.u32(b.TrackID)
		w.u32(0)
		w.u32(uint32(b.Duration))
	}
	w.put(make([]byte, 8))
	w.u16(uint16(b.Layer))
	w.u16(uint16(b.AlternateGroup))
	w.u16(uint16(b.Volume))
	w.u16(0)
	for _, v := range b.Matrix {
		w.u32(uint32(v))
	}
	w.u32(b.Width)
	w.u32(b.Height)
	return nil
}
