// Package cli provides the configuration, paths and terminal output shared by
// the unitsynth commands.
//
// Configuration is stored in ~/.unitsynth/config.yaml:
//
//	voices_dir: /data/voices
//	strategy: dual_similarity
//	heuristic: peak_to_peak
//	crossfade: true
//	crossfade_overlap: 1.0
//	audio_policy: memory
//	s3:
//	  bucket: corpora
//	  endpoint: http://localhost:9000
//	  path_style: true
//
// Inventory snapshots live under ~/.unitsynth/cache/snapshots/<voice>.
package cli
