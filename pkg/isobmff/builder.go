package isobmff

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/streetvision/vmeta/pkg/util"
)

// SampleGenerator appends boxes, typically one trak, to the moov children
// and returns the streams holding the sample data those boxes describe.
// Chunk offsets in the generated sample tables must be relative to the start
// of the generated data; the builder rebases them into the final mdat.
type SampleGenerator func(src io.ReadSeeker, moov *Box) ([]io.ReadSeeker, error)

// TransformMP4 rewrites a complete MP4: the source ftyp and moov are kept,
// every source track's sample table is rebuilt against a single new mdat,
// and the generator may add tracks of its own. The result reads the header
// from memory and the sample data lazily from the source, so no sample byte
// is copied until the output is consumed.
func TransformMP4(src io.ReadSeeker, generator SampleGenerator) (io.ReadSeeker, error) {
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	ftypData, err := ParseMP4DataFirst(src, BoxPath(TypeFTYP))
	if err != nil {
		return nil, err
	}
	if _, err = src.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	moovData, err := ParseMP4DataFirstx(src, BoxPath(TypeMOOV))
	if err != nil {
		return nil, err
	}
	movie, err := ParseMovieBox(moovData)
	if err != nil {
		return nil, err
	}

	// only the movie header and the video tracks survive; telemetry and
	// other non-video tracks are superseded by the generated ones
	moov := &Box{Type: TypeMOOV}
	for _, c := range movie.Children {
		if c.Type == TypeMVHD {
			moov.Children = append(moov.Children, c)
		}
	}

	var (
		streams []io.ReadSeeker
		bodyPos uint64
	)
	for _, track := range movie.Tracks() {
		hdlr := track.Hdlr()
		if hdlr == nil || hdlr.HandlerType != TypeVIDE {
			continue
		}
		if track.Stbl() == nil {
			return nil, &BoxNotFoundError{Path: "trak/mdia/minf/stbl"}
		}
		descriptions, samples := RawSamplesFromStblBox(track.Stbl())
		ranges := mergeSampleRanges(samples)
		for _, rg := range ranges {
			sliced, err := util.NewSlicedReadSeeker(src, int64(rg.offset), rg.size)
			if err != nil {
				return nil, err
			}
			streams = append(streams, sliced)
		}
		for i := range samples {
			samples[i].Offset = bodyPos
			bodyPos += uint64(samples[i].Size)
		}
		if err := replaceStbl(track.Trak, BuildStbl(descriptions, samples)); err != nil {
			return nil, err
		}
		moov.Children = append(moov.Children, track.Trak)
	}

	if generator != nil {
		before := len(moov.FindAll(TypeTRAK))
		if _, err = src.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		generated, err := generator(src, moov)
		if err != nil {
			return nil, err
		}
		for _, trak := range moov.FindAll(TypeTRAK)[before:] {
			shiftChunkOffsets(trak, bodyPos)
		}
		for _, s := range generated {
			size, err := s.Seek(0, io.SeekEnd)
			if err != nil {
				return nil, err
			}
			bodyPos += uint64(size)
			streams = append(streams, s)
		}
	}

	traks := moov.FindAll(TypeTRAK)
	for i, trak := range traks {
		if b := trak.Find(TypeTKHD); b != nil {
			b.Payload.(*TkhdBox).TrackID = uint32(i + 1)
		}
	}
	if b := moov.Find(TypeMVHD); b != nil {
		b.Payload.(*MvhdBox).NextTrackID = uint32(len(traks) + 1)
	}

	return BuildMP4(ftypData, moov, streams)
}

// BuildMP4 serializes ftyp, moov and an mdat whose body is the concatenation
// of streams. Chunk offsets in moov must be relative to the mdat body; they
// are rebased to absolute file offsets here. moov is encoded twice, once to
// learn its size and once with the final offsets; co64 keeps the second
// encoding the same length as the first, which is asserted.
func BuildMP4(ftypData []byte, moov *Box, streams []io.ReadSeeker) (io.ReadSeeker, error) {
	var bodySize uint64
	for _, s := range streams {
		size, err := s.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, err
		}
		bodySize += uint64(size)
	}

	pass1, err := EncodeBox(moov)
	if err != nil {
		return nil, err
	}

	var ftypLen int64
	if ftypData != nil {
		ftypLen = 8 + int64(len(ftypData))
	}
	mdatHeaderLen := int64(8)
	if bodySize+8 > math.MaxUint32 {
		mdatHeaderLen = 16
	}
	base := uint64(ftypLen) + uint64(len(pass1)) + uint64(mdatHeaderLen)

	for _, trak := range moov.FindAll(TypeTRAK) {
		shiftChunkOffsets(trak, base)
	}
	pass2, err := EncodeBox(moov)
	if err != nil {
		return nil, err
	}
	if len(pass1) != len(pass2) {
		return nil, fmt.Errorf("%w: %d != %d", ErrSizeUnstable, len(pass1), len(pass2))
	}

	var header bwriter
	if ftypData != nil {
		header.u32(uint32(8 + len(ftypData)))
		header.fourcc(TypeFTYP)
		header.put(ftypData)
	}
	header.put(pass2)
	if mdatHeaderLen == 16 {
		header.u32(1)
		header.fourcc(TypeMDAT)
		header.u64(bodySize + 16)
	} else {
		header.u32(uint32(bodySize + 8))
		header.fourcc(TypeMDAT)
	}

	chain := make([]io.ReadSeeker, 0, len(streams)+1)
	chain = append(chain, bytes.NewReader(header.bytes()))
	chain = append(chain, streams...)
	return util.NewChainedReadSeeker(chain...)
}

type sampleRange struct {
	offset uint64
	size   int64
}

// mergeSampleRanges coalesces byte-contiguous samples into single ranges so
// one slice of the source serves a whole chunk.
func mergeSampleRanges(samples []RawSample) []sampleRange {
	var ranges []sampleRange
	for _, s := range samples {
		if n := len(ranges); n > 0 && ranges[n-1].offset+uint64(ranges[n-1].size) == s.Offset {
			ranges[n-1].size += int64(s.Size)
		} else {
			ranges = append(ranges, sampleRange{offset: s.Offset, size: int64(s.Size)})
		}
	}
	return ranges
}

func replaceStbl(trak *Box, stbl *Box) error {
	minf := trak.Find(TypeMDIA, TypeMINF)
	if minf == nil {
		return &BoxNotFoundError{Path: "trak/mdia/minf"}
	}
	for i, c := range minf.Children {
		if c.Type == TypeSTBL {
			minf.Children[i] = stbl
			return nil
		}
	}
	minf.Children = append(minf.Children, stbl)
	return nil
}

func shiftChunkOffsets(trak *Box, delta uint64) {
	stbl := trak.Find(TypeMDIA, TypeMINF, TypeSTBL)
	if stbl == nil {
		return
	}
	if b := stbl.Find(TypeCO64); b != nil {
		co64 := b.Payload.(*Co64Box)
		for i := range co64.Entries {
			co64.Entries[i] += delta
		}
	}
}
