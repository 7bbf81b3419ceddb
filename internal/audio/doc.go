// Package audio implements sample buffering and fixed-size chunking.
// It accumulates variably-sized blocks of float32 samples, slices them into
// constant-length chunks in arrival order, and provides the pcm_f32le wire
// codec plus WAV export of finished recordings.
package audio
