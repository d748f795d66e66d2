package audio

// Float32ToInt16 quantizes normalized float32 samples to 16-bit signed PCM.
// Values outside [-1, 1] are clamped before scaling so overdriven input
// cannot wrap around.
func Float32ToInt16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		out[i] = int16(s * 32767)
	}
	return out
}

// Int16ToFloat32 converts 16-bit signed PCM samples to the normalized
// float32 domain used by the detection pipeline.
func Int16ToFloat32(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768
	}
	return out
}
