package speech

import (
	"bytes"
	"encoding/binary"
	"strconv"
	"strings"
	"time"
)

// pcmFormat describes signed little-endian PCM as announced by "audio/L16;codec=pcm;rate=24000".
type pcmFormat struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

func parsePCMFormat(mimeType string) pcmFormat {
	f := pcmFormat{SampleRate: 24000, Channels: 1, BitsPerSample: 16}
	for _, param := range strings.Split(mimeType, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			switch strings.ToLower(k) {
			case "rate":
				f.SampleRate = n
			case "channels":
				f.Channels = n
			}
		}
	}
	return f
}

func (f pcmFormat) bytesPerSecond() int {
	return f.SampleRate * f.Channels * f.BitsPerSample / 8
}

func (f pcmFormat) duration(n int) time.Duration {
	bps := f.bytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(bps)
}

// wrapPCM prefixes raw PCM samples with a 44-byte RIFF/WAVE header.
func wrapPCM(pcm []byte, f pcmFormat) []byte {
	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))

	blockAlign := f.Channels * f.BitsPerSample / 8
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(f.Channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(f.SampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(f.bytesPerSecond()))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(f.BitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}
