package audiodev

import "math"

// Measure 计算一帧采样的 RMS 和峰值电平
func Measure(samples []float32) (rms, peak float64) {
	if len(samples) == 0 {
		return 0, 0
	}

	var sumSquares float64
	for _, sample := range samples {
		v := float64(sample)
		sumSquares += v * v
		if abs := math.Abs(v); abs > peak {
			peak = abs
		}
	}
	return math.Sqrt(sumSquares / float64(len(samples))), peak
}
