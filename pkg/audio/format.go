// Package audio provides container-format detection and duration estimation
// for the opaque utterance buffers the client uploads with each speech_end
// event. The orchestrator never decodes audio; it only needs to know the MIME
// type to forward to the STT provider and a rough duration to gate out
// sub-utterance noise blips.
package audio

import (
	"bytes"
	"time"
)

// Format identifies the container format of an audio buffer.
type Format string

const (
	FormatWebM    Format = "webm"
	FormatWAV     Format = "wav"
	FormatOgg     Format = "ogg"
	FormatMP3     Format = "mp3"
	FormatFLAC    Format = "flac"
	FormatUnknown Format = "unknown"
)

// Magic byte prefixes for the supported containers.
var (
	magicWebM = []byte{0x1A, 0x45, 0xDF, 0xA3} // EBML header
	magicRIFF = []byte("RIFF")
	magicWAVE = []byte("WAVE")
	magicOgg  = []byte("OggS")
	magicFLAC = []byte("fLaC")
	magicID3  = []byte("ID3")
)

// DetectFormat inspects the first bytes of buf and returns the container
// format. Buffers too short to carry a header classify as FormatUnknown.
func DetectFormat(buf []byte) Format {
	if len(buf) < 4 {
		return FormatUnknown
	}
	switch {
	case bytes.HasPrefix(buf, magicWebM):
		return FormatWebM
	case bytes.HasPrefix(buf, magicRIFF):
		if len(buf) >= 12 && bytes.Equal(buf[8:12], magicWAVE) {
			return FormatWAV
		}
		return FormatUnknown
	case bytes.HasPrefix(buf, magicOgg):
		return FormatOgg
	case bytes.HasPrefix(buf, magicFLAC):
		return FormatFLAC
	case bytes.HasPrefix(buf, magicID3):
		return FormatMP3
	case buf[0] == 0xFF && buf[1]&0xE0 == 0xE0:
		// MPEG audio frame sync.
		return FormatMP3
	default:
		return FormatUnknown
	}
}

// MIMEType returns the MIME type to declare when uploading a buffer of this
// format to an STT service.
func (f Format) MIMEType() string {
	switch f {
	case FormatWebM:
		return "audio/webm"
	case FormatWAV:
		return "audio/wav"
	case FormatOgg:
		return "audio/ogg"
	case FormatMP3:
		return "audio/mpeg"
	case FormatFLAC:
		return "audio/flac"
	default:
		return "application/octet-stream"
	}
}

// nominalByteRate is the assumed encoded byte rate per container, used only
// for order-of-magnitude duration estimates. WebM and Ogg assume Opus voice
// bitrate; WAV assumes 16 kHz 16-bit mono PCM; MP3 assumes 128 kbps; FLAC
// assumes ~2:1 compression of the WAV rate.
func (f Format) nominalByteRate() int {
	switch f {
	case FormatWebM, FormatOgg:
		return 6_000
	case FormatWAV:
		return 32_000
	case FormatMP3:
		return 16_000
	case FormatFLAC:
		return 16_000
	default:
		return 16_000
	}
}

// EstimateDuration returns the approximate play time of an encoded buffer of
// n bytes in format f. The estimate is intentionally coarse; it exists so the
// minimum-utterance gate can be expressed as a duration instead of a byte
// count tied to one encoding.
func EstimateDuration(f Format, n int) time.Duration {
	if n <= 0 {
		return 0
	}
	rate := f.nominalByteRate()
	return time.Duration(float64(n) / float64(rate) * float64(time.Second))
}
