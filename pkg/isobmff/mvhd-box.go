package isobmff

import "time"

// aligned(8) class MovieHeaderBox extends FullBox(‘mvhd’, version, 0) {
//   if (version==1) {
//     unsigned int(64) creation_time;
//     unsigned int(64) modification_time;
//     unsigned int(32) timescale;
//     unsigned int(64) duration;
//   } else { // version==0
//     unsigned int(32) creation_time;
//     unsigned int(32) modification_time;
//     unsigned int(32) timescale;
//     unsigned int(32) duration;
//   }
//   template int(32) rate = 0x00010000; // typically 1.0
//   template int(16) volume = 0x0100; // typically, full volume
//   const bit(16) reserved = 0;
//   const unsigned int(32)[2] reserved = 0;
//   template int(32)[9] matrix;
//   bit(32)[6] pre_defined = 0;
//   unsigned int(32) next_track_ID;
// }
type MvhdBox struct {
	FullBox
	CreationTime     uint64
	ModificationTime uint64
	Timescale        uint32
	Duration         uint64
	Rate             int32
	Volume           int16
	Matrix           [9]int32
	NextTrackID      uint32
}

// UnityMatrix is the identity transformation in 16.16 fixed point.
var UnityMatrix = [9]int32{0x10000, 0, 0, 0, 0x10000, 0, 0, 0, 0x40000000}

// mp4Epoch is 1904-01-01T00:00:00Z, the zero of the header time fields.
var mp4Epoch = time.Date(1904, 1, 1, 0, 0, 0, 0, time.UTC)

// DateFromMP4Time converts a creation/modification time field to a
// time.Time. Zero fields, common in files written without a clock, map to
// the epoch itself.
func DateFromMP4Time(t uint64) time.Time {
	return mp4Epoch.Add(time.Duration(t) * time.Second)
}

// MP4TimeFromDate is the inverse; dates before the epoch clamp to zero.
func MP4TimeFromDate(d time.Time) uint64 {
	if d.Before(mp4Epoch) {
		return 0
	}
	return uint64(d.Sub(mp4Epoch) / time.Second)
}

func (b *MvhdBox) Decode(data []byte) error {
	r := &breader{data: data}
	b.decodeHeader(r)
	if b.Version == 1 {
		b.CreationTime = r.u64()
		b.ModificationTime = r.u64()
		b.Timescale = r.u32()
		b.Duration = r.u64()
	} else {
		b.CreationTime = uint64(r.u32())
		b.ModificationTime = uint64(r.u32())
		b.Timescale = r.u32()
		b.Duration = uint64(r.u32())
	}
	b.Rate = int32(r.u32())
	b.Volume = int16(r.u16())
	r.skip(2 + 8)
	for i := range b.Matrix {
		b.Matrix[i] = int32(r.u32())
	}
	r.skip(24)
	b.NextTrackID = r.u32()
	return r.err
}

func (b *MvhdBox) Encode(w *bwriter) error {
	b.encodeHeader(w)
	if b.Version == 1 {
		w.u64(b.CreationTime)
		w.u64(b.ModificationTime)
		w.u32(b.Timescale)
		w.u64(b.Duration)
	} else {
		w.u32(uint32(b.CreationTime))
		w.u32(uint32(b.ModificationTime))
		w.u32(b.Timescale)
		w.u32(uint32(b.Duration))
	}
	w.u32(uint32(b.Rate))
	w.u16(uint16(b.Volume))
	w.put(make([]byte, 2+8))
	for _, v := range b.Matrix {
		w.u32(uint32(v))
	}
	w.put(make([]byte, 24))
	w.u32(b.NextTrackID)
	return nil
}
