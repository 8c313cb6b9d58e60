// internal/player/pcm.go
package player

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Raw generated speech arrives as a data URI of base64 PCM samples,
// 16-bit signed little-endian, mono.
const (
	PCMSourcePrefix = "data:audio/pcm;base64,"
	PCMSampleRate   = 24000
)

// IsPCMSource reports whether an audio source carries raw PCM samples
// rather than a streamable resource.
func IsPCMSource(src string) bool {
	return strings.HasPrefix(src, PCMSourcePrefix)
}

// DecodePCM converts a PCM data URI into normalized float samples in
// [-1, 1). The source must carry the PCM prefix and an even number of
// payload bytes.
func DecodePCM(src string) ([]float32, error) {
	if !IsPCMSource(src) {
		return nil, fmt.Errorf("not a pcm data uri")
	}
	raw, err := base64.StdEncoding.DecodeString(src[len(PCMSourcePrefix):])
	if err != nil {
		return nil, fmt.Errorf("decode pcm payload: %w", err)
	}
	if len(raw)%2 != 0 {
		return nil, fmt.Errorf("truncated pcm payload: %d bytes", len(raw))
	}
	samples := make([]float32, len(raw)/2)
	for i := range samples {
		v := int16(uint16(raw[2*i]) | uint16(raw[2*i+1])<<8)
		samples[i] = float32(v) / 32768
	}
	return samples, nil
}
