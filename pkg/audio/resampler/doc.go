// Package resampler converts mono audio between sample rates using a pure Go
// polyphase resampler (no CGO/FFI dependencies).
//
// Voice corpora are sometimes recorded at mixed rates; units taken from a
// recording at another rate are converted before concatenation:
//
//	out, err := resampler.Convert(samples, 44100, 22050)
//	if err != nil {
//	    return err
//	}
package resampler
