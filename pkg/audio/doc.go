// Package audio renders synthesized waveforms into a playable container.
//
// The decoder produces mono float samples at a fixed rate. Render scales
// them, converts the sample rate, optionally duplicates the channel for
// stereo and wraps the result in a 16-bit PCM WAV file:
//
//	wav, err := audio.Render(wave, 24000, audio.Format{SampleRate: 48000, Stereo: true})
package audio
