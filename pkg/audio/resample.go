package audio

import (
	"errors"
	"fmt"
)

// ErrUnsupportedRatio is returned when two sample rates are not integer multiples.
var ErrUnsupportedRatio = errors.New("audio: unsupported resampling ratio")

// StereoToMono averages interleaved L/R pairs.
func StereoToMono(st []int16) []int16 {
	n := len(st) / 2
	dst := make([]int16, n)
	for i := 0; i < n; i++ {
		dst[i] = int16((int32(st[2*i]) + int32(st[2*i+1])) / 2)
	}
	return dst
}

// MonoToStereo duplicates every sample into both channels.
func MonoToStereo(m []int16) []int16 {
	dst := make([]int16, len(m)*2)
	for i, v := range m {
		dst[2*i], dst[2*i+1] = v, v
	}
	return dst
}

// Downsample reduces mono PCM by an integer factor, averaging each block
// of samples as a cheap low-pass.
func Downsample(src []int16, srcRate, dstRate int) ([]int16, error) {
	if dstRate <= 0 || srcRate < dstRate || srcRate%dstRate != 0 {
		return nil, fmt.Errorf("%w %d:%d", ErrUnsupportedRatio, srcRate, dstRate)
	}
	factor := srcRate / dstRate
	if factor == 1 {
		return append([]int16(nil), src...), nil
	}
	dst := make([]int16, 0, len(src)/factor)
	for i := 0; i+factor <= len(src); i += factor {
		var sum int32
		for k := 0; k < factor; k++ {
			sum += int32(src[i+k])
		}
		dst = append(dst, int16(sum/int32(factor)))
	}
	return dst, nil
}

// Upsample raises mono PCM by an integer factor using linear interpolation
// between neighbouring samples. The last sample is held.
func Upsample(src []int16, srcRate, dstRate int) ([]int16, error) {
	if srcRate <= 0 || dstRate < srcRate || dstRate%srcRate != 0 {
		return nil, fmt.Errorf("%w %d:%d", ErrUnsupportedRatio, srcRate, dstRate)
	}
	factor := dstRate / srcRate
	dst := make([]int16, len(src)*factor)
	for i, v := range src {
		next := v
		if i+1 < len(src) {
			next = src[i+1]
		}
		for k := 0; k < factor; k++ {
			dst[i*factor+k] = int16(int32(v) + (int32(next)-int32(v))*int32(k)/int32(factor))
		}
	}
	return dst, nil
}

// DiscordToLive converts 48 kHz stereo little-endian PCM into mono PCM at dstRate.
func DiscordToLive(pcm []byte, dstRate int) ([]byte, error) {
	mono := StereoToMono(LEToPCMInt16(pcm))
	out, err := Downsample(mono, DiscordSampleRate, dstRate)
	if err != nil {
		return nil, err
	}
	return PCMInt16ToLE(out), nil
}

// LiveToDiscord converts mono PCM at srcRate into 48 kHz stereo little-endian PCM.
func LiveToDiscord(pcm []byte, srcRate int) ([]byte, error) {
	up, err := Upsample(LEToPCMInt16(pcm), srcRate, DiscordSampleRate)
	if err != nil {
		return nil, err
	}
	return PCMInt16ToLE(MonoToStereo(up)), nil
}
