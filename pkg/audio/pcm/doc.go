// Package pcm provides types and utilities for working with raw 16-bit PCM
// audio data.
//
// The package defines mono L16 formats for the sample rates voice corpora are
// usually recorded at, conversion between normalised float32 samples and L16
// bytes, and interfaces for writing audio chunks.
//
// Key types:
//   - Format: a mono L16 configuration at a fixed sample rate
//   - Chunk: Interface for audio data chunks
//   - DataChunk: Concrete implementation of Chunk for raw audio data
//   - SilenceChunk: Chunk that produces silence of a specified duration
//   - Writer: Interface for writing audio chunks
//
// Example usage:
//
//	format, err := pcm.FormatFor(22050)
//	if err != nil {
//		return err
//	}
//	w := pcm.ChunkWriter(file)
//	if err := w.Write(format.FloatChunk(samples)); err != nil {
//		return err
//	}
package pcm
