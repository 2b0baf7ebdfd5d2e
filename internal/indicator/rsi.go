// Package indicator provides pure technical-indicator math over ordered
// price series.
package indicator

// DefaultRSIPeriod is the canonical 14-sample RSI window.
const DefaultRSIPeriod = 14

// RSI computes the 14-period Relative Strength Index of prices
// (oldest first). ok is false when fewer than 14 samples are supplied:
// the indicator fails closed with "no signal" rather than an error.
func RSI(prices []float64) (float64, bool) {
	return RSIWithPeriod(prices, DefaultRSIPeriod)
}

// RSIWithPeriod computes RSI with an explicit period using Wilder
// smoothing: the first period deltas seed simple average gain/loss, and
// every later delta is folded in as avg = (avg*(period-1) + delta)/period.
// With exactly period samples only period-1 deltas exist; the seed window
// shrinks to the available deltas.
func RSIWithPeriod(prices []float64, period int) (float64, bool) {
	if period < 2 || len(prices) < period {
		return 0, false
	}

	seed := period
	if len(prices)-1 < seed {
		seed = len(prices) - 1
	}

	var gains, losses float64
	for i := 1; i <= seed; i++ {
		delta := prices[i] - prices[i-1]
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}
	avgGain := gains / float64(seed)
	avgLoss := losses / float64(seed)

	for i := seed + 1; i < len(prices); i++ {
		delta := prices[i] - prices[i-1]
		var gain, loss float64
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}
