package isobmff

import "fmt"

// MovieBox is a decoded moov payload with typed headers and per-track views.
type MovieBox struct {
	Children []*Box
}

// ParseMovieBox decodes a moov payload down to its sample tables.
func ParseMovieBox(moovData []byte) (*MovieBox, error) {
	children, err := DecodeBoxList(moovData, MoovSchema)
	if err != nil {
		return nil, err
	}
	return &MovieBox{Children: children}, nil
}

func (m *MovieBox) find(path ...FourCC) *Box {
	root := &Box{Children: m.Children}
	return root.Find(path...)
}

// Mvhd returns the movie header, or nil if absent.
func (m *MovieBox) Mvhd() *MvhdBox {
	if b := m.find(TypeMVHD); b != nil {
		return b.Payload.(*MvhdBox)
	}
	return nil
}

// Timescale returns the movie timescale from mvhd.
func (m *MovieBox) Timescale() (uint32, error) {
	mvhd := m.Mvhd()
	if mvhd == nil {
		return 0, &BoxNotFoundError{Path: "moov/mvhd"}
	}
	return mvhd.Timescale, nil
}

// Tracks returns a view over each trak in file order.
func (m *MovieBox) Tracks() []*TrackBox {
	root := &Box{Children: m.Children}
	var tracks []*TrackBox
	for _, trak := range root.FindAll(TypeTRAK) {
		tracks = append(tracks, &TrackBox{Trak: trak})
	}
	return tracks
}

// TrackBox is a read-only view over one decoded trak.
type TrackBox struct {
	Trak *Box
}

func (t *TrackBox) Tkhd() *TkhdBox {
	if b := t.Trak.Find(TypeTKHD); b != nil {
		return b.Payload.(*TkhdBox)
	}
	return nil
}

func (t *TrackBox) Mdhd() *MdhdBox {
	if b := t.Trak.Find(TypeMDIA, TypeMDHD); b != nil {
		return b.Payload.(*MdhdBox)
	}
	return nil
}

func (t *TrackBox) Hdlr() *HdlrBox {
	if b := t.Trak.Find(TypeMDIA, TypeHDLR); b != nil {
		return b.Payload.(*HdlrBox)
	}
	return nil
}

func (t *TrackBox) Elst() *ElstBox {
	if b := t.Trak.Find(TypeEDTS, TypeELST); b != nil {
		return b.Payload.(*ElstBox)
	}
	return nil
}

func (t *TrackBox) Stbl() *Box {
	return t.Trak.Find(TypeMDIA, TypeMINF, TypeSTBL)
}

// SampleDescriptions returns the stsd entries, or nil.
func (t *TrackBox) SampleDescriptions() []SampleEntry {
	stbl := t.Stbl()
	if stbl == nil {
		return nil
	}
	if b := stbl.Find(TypeSTSD); b != nil {
		return b.Payload.(*StsdBox).Entries
	}
	return nil
}

// HasSampleFormat reports whether any sample description uses the format.
func (t *TrackBox) HasSampleFormat(format FourCC) bool {
	for _, e := range t.SampleDescriptions() {
		if e.Format == format {
			return true
		}
	}
	return false
}

// RawSamples flattens the track's sample table.
func (t *TrackBox) RawSamples() []RawSample {
	stbl := t.Stbl()
	if stbl == nil {
		return nil
	}
	_, samples := RawSamplesFromStblBox(stbl)
	return samples
}

// Samples resolves the sample decode times against the media timescale.
func (t *TrackBox) Samples() ([]Sample, error) {
	mdhd := t.Mdhd()
	if mdhd == nil {
		return nil, &BoxNotFoundError{Path: "trak/mdia/mdhd"}
	}
	return ResolveSampleTimes(t.RawSamples(), mdhd.Timescale)
}

// MediaDurationSeconds returns the mdhd duration in seconds.
func (t *TrackBox) MediaDurationSeconds() (float64, error) {
	mdhd := t.Mdhd()
	if mdhd == nil {
		return 0, &BoxNotFoundError{Path: "trak/mdia/mdhd"}
	}
	if mdhd.Timescale == 0 {
		return 0, fmt.Errorf("%w: media timescale is zero", ErrParsing)
	}
	return float64(mdhd.Duration) / float64(mdhd.Timescale), nil
}

// Edit is one edit list entry resolved to seconds.
type Edit struct {
	// edit duration, expressed in the movie timescale
	DurationSec float64
	// media start time, expressed in the media timescale; 0 for empty edits
	MediaTimeSec float64
	// media_time == -1: nothing is presented for the duration
	Empty bool
}

// EditsInSeconds resolves the track's edit list. Durations use the movie
// timescale, media times the media timescale.
func (t *TrackBox) EditsInSeconds(movieTimescale uint32) ([]Edit, error) {
	elst := t.Elst()
	if elst == nil {
		return nil, nil
	}
	if movieTimescale == 0 {
		return nil, fmt.Errorf("%w: movie timescale is zero", ErrParsing)
	}
	mdhd := t.Mdhd()
	if mdhd == nil {
		return nil, &BoxNotFoundError{Path: "trak/mdia/mdhd"}
	}
	if mdhd.Timescale == 0 {
		return nil, fmt.Errorf("%w: media timescale is zero", ErrParsing)
	}
	edits := make([]Edit, 0, len(elst.Entries))
	for _, e := range elst.Entries {
		edit := Edit{DurationSec: float64(e.SegmentDuration) / float64(movieTimescale)}
		if e.MediaTime == -1 {
			edit.Empty = true
		} else {
			edit.MediaTimeSec = float64(e.MediaTime) / float64(mdhd.Timescale)
		}
		edits = append(edits, edit)
	}
	return edits, nil
}
