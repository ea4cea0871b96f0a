package worker

import (
	"encoding/binary"
	"fmt"
	"os"
)

// decodeCueFile reads a short PCM WAV file (pre/post cue sound) into mono
// float32 samples plus its sample rate. Cue files are simple, fixed-format
// assets shipped alongside the config directory; no pack library parses
// WAV containers (oto itself only accepts already-decoded PCM), so this is
// a minimal stdlib reader rather than a pulled-in dependency.
func decodeCueFile(path string) ([]float32, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("read cue file: %w", err)
	}
	if len(data) < 44 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("cue file is not a RIFF/WAVE file")
	}

	var (
		sampleRate    uint32
		bitsPerSample uint16
		channels      uint16
		dataOffset    int
		dataSize      int
	)

	pos := 12
	for pos+8 <= len(data) {
		chunkID := string(data[pos : pos+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		switch chunkID {
		case "fmt ":
			if body+16 > len(data) {
				return nil, 0, fmt.Errorf("cue file: truncated fmt chunk")
			}
			channels = binary.LittleEndian.Uint16(data[body+2 : body+4])
			sampleRate = binary.LittleEndian.Uint32(data[body+4 : body+8])
			bitsPerSample = binary.LittleEndian.Uint16(data[body+14 : body+16])
		case "data":
			dataOffset = body
			dataSize = chunkSize
		}
		pos = body + chunkSize
		if chunkSize%2 != 0 {
			pos++
		}
	}

	if dataOffset == 0 || dataSize == 0 {
		return nil, 0, fmt.Errorf("cue file: no data chunk")
	}
	if bitsPerSample != 16 {
		return nil, 0, fmt.Errorf("cue file: unsupported bit depth %d", bitsPerSample)
	}
	if dataOffset+dataSize > len(data) {
		dataSize = len(data) - dataOffset
	}

	raw := data[dataOffset : dataOffset+dataSize]
	frameCount := len(raw) / 2
	if channels < 1 {
		channels = 1
	}

	mono := make([]float32, frameCount/int(channels))
	for i := range mono {
		var sum int32
		for c := 0; c < int(channels); c++ {
			idx := (i*int(channels) + c) * 2
			if idx+2 > len(raw) {
				break
			}
			sum += int32(int16(binary.LittleEndian.Uint16(raw[idx : idx+2])))
		}
		mono[i] = float32(sum) / float32(channels) / 32768.0
	}

	return mono, int(sampleRate), nil
}
