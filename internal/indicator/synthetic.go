package indicator

// DecaySeries fabricates an n-sample price history from a single current
// price by walking backwards with a fixed percentage step: each older
// sample is decayPct higher than the one after it, so the series always
// trends down into the current price.
//
// This is the degraded history mode inherited from deployments without a
// historical-price source. RSI over such a series is a deterministic
// function of nothing but n and decayPct, not of real market movement;
// callers must opt into it explicitly.
func DecaySeries(current float64, n int, decayPct float64) []float64 {
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	out[n-1] = current
	for i := n - 2; i >= 0; i-- {
		out[i] = out[i+1] * (1 + decayPct)
	}
	return out
}
