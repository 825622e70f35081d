package formulas

// MaxDrawdown calculates the maximum drawdown from a value series.
//
//	Drawdown = (Peak - Value) / Peak
//
// Returned as a positive fraction (0.25 = 25% loss from peak), or nil when
// the series is too short.
func MaxDrawdown(values []float64) *float64 {
	if len(values) < 2 {
		return nil
	}

	maxDrawdown := 0.0
	peak := values[0]

	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			drawdown := (peak - v) / peak
			if drawdown > maxDrawdown {
				maxDrawdown = drawdown
			}
		}
	}

	return &maxDrawdown
}

// CurrentDrawdown calculates the drawdown of the last observation from the
// running peak. Returns nil when the series is too short.
func CurrentDrawdown(values []float64) *float64 {
	if len(values) < 2 {
		return nil
	}

	peak := values[0]
	for _, v := range values {
		if v > peak {
			peak = v
		}
	}

	if peak == 0 {
		return nil
	}

	dd := (peak - values[len(values)-1]) / peak
	return &dd
}
