package isobmff

import "fmt"

// RawSample locates one sample in the file, in media timescale units.
type RawSample struct {
	// 1-based index into the stsd sample descriptions
	DescriptionIndex uint32
	// absolute file offset of the sample data
	Offset uint64
	Size   uint32
	// decode delta in media timescale units
	TimeDelta uint32
	// composition offset relative to decode time
	CompositionOffset int32
	IsSync            bool
}

// Sample is a RawSample with its decode time resolved to seconds.
type Sample struct {
	RawSample
	// decode time in seconds since the start of the media
	ExactTime float64
	// decode duration in seconds
	ExactDuration float64
}

// ParseRawSamplesFromStbl flattens a sample table payload into the per-sample
// view. Absent stts or ctts entries pad with zero deltas; an absent stss
// marks every sample sync.
func ParseRawSamplesFromStbl(stblData []byte) ([]SampleEntry, []RawSample, error) {
	children, err := DecodeBoxList(stblData, StblSchema)
	if err != nil {
		return nil, nil, err
	}
	descriptions, samples := RawSamplesFromStblBox(&Box{Type: TypeSTBL, Children: children})
	return descriptions, samples, nil
}

// RawSamplesFromStblBox is ParseRawSamplesFromStbl over an already decoded
// sample table.
func RawSamplesFromStblBox(stbl *Box) ([]SampleEntry, []RawSample) {
	var descriptions []SampleEntry
	if b := stbl.Find(TypeSTSD); b != nil {
		descriptions = b.Payload.(*StsdBox).Entries
	}

	var sizes []uint32
	if b := stbl.Find(TypeSTSZ); b != nil {
		stsz := b.Payload.(*StszBox)
		if stsz.SampleSize == 0 {
			sizes = stsz.EntrySizes
		} else {
			sizes = make([]uint32, stsz.SampleCount)
			for i := range sizes {
				sizes[i] = stsz.SampleSize
			}
		}
	}

	var chunkOffsets []uint64
	if b := stbl.Find(TypeCO64); b != nil {
		chunkOffsets = b.Payload.(*Co64Box).Entries
	} else if b := stbl.Find(TypeSTCO); b != nil {
		for _, off := range b.Payload.(*StcoBox).Entries {
			chunkOffsets = append(chunkOffsets, uint64(off))
		}
	}

	var chunkEntries []StscEntry
	if b := stbl.Find(TypeSTSC); b != nil {
		chunkEntries = b.Payload.(*StscBox).Entries
	}

	timedeltas := make([]uint32, 0, len(sizes))
	if b := stbl.Find(TypeSTTS); b != nil {
		for _, e := range b.Payload.(*SttsBox).Entries {
			for i := uint32(0); i < e.SampleCount; i++ {
				timedeltas = append(timedeltas, e.SampleDelta)
			}
		}
	}

	var compositionOffsets []int32
	if b := stbl.Find(TypeCTTS); b != nil {
		for _, e := range b.Payload.(*CttsBox).Entries {
			for i := uint32(0); i < e.SampleCount; i++ {
				compositionOffsets = append(compositionOffsets, e.SampleOffset)
			}
		}
	}

	var syncs map[uint32]bool
	if b := stbl.Find(TypeSTSS); b != nil {
		syncs = make(map[uint32]bool)
		for _, n := range b.Payload.(*StssBox).SampleNumbers {
			syncs[n] = true
		}
	}

	samples := extractRawSamples(sizes, chunkEntries, chunkOffsets, timedeltas, compositionOffsets, syncs)
	return descriptions, samples
}

func extractRawSamples(
	sizes []uint32,
	chunkEntries []StscEntry,
	chunkOffsets []uint64,
	timedeltas []uint32,
	compositionOffsets []int32,
	syncs map[uint32]bool,
) []RawSample {
	if len(sizes) == 0 || len(chunkEntries) == 0 {
		return nil
	}

	samples := make([]RawSample, 0, len(sizes))
	sampleIdx := 0

	emit := func(offset uint64) RawSample {
		s := RawSample{
			DescriptionIndex: 0,
			Offset:           offset,
			Size:             sizes[sampleIdx],
		}
		if sampleIdx < len(timedeltas) {
			s.TimeDelta = timedeltas[sampleIdx]
		}
		if sampleIdx < len(compositionOffsets) {
			s.CompositionOffset = compositionOffsets[sampleIdx]
		}
		// sample numbers are 1-based
		s.IsSync = syncs == nil || syncs[uint32(sampleIdx+1)]
		sampleIdx++
		return s
	}

	for idx, entry := range chunkEntries {
		var nbrChunks uint32
		if idx+1 < len(chunkEntries) {
			nbrChunks = chunkEntries[idx+1].FirstChunk - entry.FirstChunk
		} else {
			// the last entry applies to every remaining chunk
			nbrChunks = uint32(len(chunkOffsets)) - (entry.FirstChunk - 1)
		}
		for c := uint32(0); c < nbrChunks; c++ {
			chunk := int(entry.FirstChunk-1) + int(c)
			if chunk >= len(chunkOffsets) {
				return samples
			}
			offset := chunkOffsets[chunk]
			for n := uint32(0); n < entry.SamplesPerChunk; n++ {
				if sampleIdx >= len(sizes) {
					return samples
				}
				s := emit(offset)
				s.DescriptionIndex = entry.SampleDescriptionIndex
				offset += uint64(s.Size)
				samples = append(samples, s)
			}
		}
	}
	return samples
}

// ResolveSampleTimes converts decode deltas to seconds.
func ResolveSampleTimes(raw []RawSample, timescale uint32) ([]Sample, error) {
	if timescale == 0 {
		return nil, fmt.Errorf("%w: media timescale is zero", ErrParsing)
	}
	samples := make([]Sample, 0, len(raw))
	var acc uint64
	for _, r := range raw {
		samples = append(samples, Sample{
			RawSample:     r,
			ExactTime:     float64(acc) / float64(timescale),
			ExactDuration: float64(r.TimeDelta) / float64(timescale),
		})
		acc += uint64(r.TimeDelta)
	}
	return samples, nil
}

// BuildStbl assembles a sample table describing the given samples. Chunks
// are the maximal runs of byte-contiguous samples sharing a description;
// offsets always go in co64, whose fixed width keeps the encoded size
// independent of the offset values. ctts is omitted when every composition
// offset is zero and stss when every sample is sync.
func BuildStbl(descriptions []SampleEntry, samples []RawSample) *Box {
	stsd := &StsdBox{Entries: descriptions}

	type chunk struct {
		offset          uint64
		samplesPerChunk uint32
		descriptionIdx  uint32
	}
	var chunks []chunk
	var nextOffset uint64
	for _, s := range samples {
		if len(chunks) > 0 && s.Offset == nextOffset && s.DescriptionIndex == chunks[len(chunks)-1].descriptionIdx {
			chunks[len(chunks)-1].samplesPerChunk++
		} else {
			chunks = append(chunks, chunk{
				offset:          s.Offset,
				samplesPerChunk: 1,
				descriptionIdx:  s.DescriptionIndex,
			})
		}
		nextOffset = s.Offset + uint64(s.Size)
	}

	co64 := &Co64Box{}
	stsc := &StscBox{}
	for i, c := range chunks {
		co64.Entries = append(co64.Entries, c.offset)
		n := len(stsc.Entries)
		if n == 0 || stsc.Entries[n-1].SamplesPerChunk != c.samplesPerChunk ||
			stsc.Entries[n-1].SampleDescriptionIndex != c.descriptionIdx {
			stsc.Entries = append(stsc.Entries, StscEntry{
				FirstChunk:             uint32(i + 1),
				SamplesPerChunk:        c.samplesPerChunk,
				SampleDescriptionIndex: c.descriptionIdx,
			})
		}
	}

	stsz := &StszBox{SampleCount: uint32(len(samples))}
	uniform := len(samples) > 0
	for _, s := range samples {
		if s.Size != samples[0].Size {
			uniform = false
			break
		}
	}
	if uniform {
		stsz.SampleSize = samples[0].Size
	} else {
		for _, s := range samples {
			stsz.EntrySizes = append(stsz.EntrySizes, s.Size)
		}
	}

	stts := &SttsBox{}
	for _, s := range samples {
		n := len(stts.Entries)
		if n > 0 && stts.Entries[n-1].SampleDelta == s.TimeDelta {
			stts.Entries[n-1].SampleCount++
		} else {
			stts.Entries = append(stts.Entries, SttsEntry{SampleCount: 1, SampleDelta: s.TimeDelta})
		}
	}

	allZero := true
	for _, s := range samples {
		if s.CompositionOffset != 0 {
			allZero = false
			break
		}
	}
	var ctts *CttsBox
	if !allZero {
		ctts = &CttsBox{FullBox: FullBox{Version: 1}}
		for _, s := range samples {
			n := len(ctts.Entries)
			if n > 0 && ctts.Entries[n-1].SampleOffset == s.CompositionOffset {
				ctts.Entries[n-1].SampleCount++
			} else {
				ctts.Entries = append(ctts.Entries, CttsEntry{SampleCount: 1, SampleOffset: s.CompositionOffset})
			}
		}
	}

	allSync := true
	for _, s := range samples {
		if !s.IsSync {
			allSync = false
			break
		}
	}
	var stss *StssBox
	if !allSync {
		stss = &StssBox{}
		for i, s := range samples {
			if s.IsSync {
				stss.SampleNumbers = append(stss.SampleNumbers, uint32(i+1))
			}
		}
	}

	children := []*Box{
		{Type: TypeSTSD, Payload: stsd},
		{Type: TypeSTTS, Payload: stts},
	}
	if ctts != nil {
		children = append(children, &Box{Type: TypeCTTS, Payload: ctts})
	}
	if stss != nil {
		children = append(children, &Box{Type: TypeSTSS, Payload: stss})
	}
	children = append(children,
		&Box{Type: TypeSTSC, Payload: stsc},
		&Box{Type: TypeSTSZ, Payload: stsz},
		&Box{Type: TypeCO64, Payload: co64},
	)
	return &Box{Type: TypeSTBL, Children: children}
}
