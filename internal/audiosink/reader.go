package audiosink

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
)

// newFloat32Reader encodes mono float32 samples as little-endian bytes oto
// can stream, mirroring the teacher's player.go approach of wrapping sample
// data in a bytes.Reader.
func newFloat32Reader(samples []float32) io.Reader {
	buf := make([]byte, 4*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(s))
	}
	return bytes.NewReader(buf)
}
