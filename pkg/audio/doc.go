// Package audio groups the sample-level helpers used by the synthesizer:
//
//   - pcm: L16 formats and float32/int16 conversion
//   - wavfile: WAVE decoding and encoding to float32 samples
//   - resampler: sample rate conversion of rendered units
//
// Samples are mono float32 in [-1, 1] everywhere above the codec boundary.
package audio
