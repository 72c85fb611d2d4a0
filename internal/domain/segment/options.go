package segment

// Option applies a configuration option to the Segmenter.
type Option func(*Segmenter)

// WithFinalApproachEnvelope sets the range gate and closing-rate ceiling
// of the final-approach envelope.
func WithFinalApproachEnvelope(rangeM, maxClosing float64) Option {
	return func(s *Segmenter) {
		if rangeM > 0 {
			s.faRangeM = rangeM
		}
		if maxClosing > 0 {
			s.faMaxClosing = maxClosing
		}
	}
}

// WithApproachCorridor sets the range gate and closing-rate ceiling of the
// broader approach corridor.
func WithApproachCorridor(rangeM, maxClosing float64) Option {
	return func(s *Segmenter) {
		if rangeM > 0 {
			s.apprRangeM = rangeM
		}
		if maxClosing > 0 {
			s.apprMaxClosing = maxClosing
		}
	}
}

// WithMinDwell sets the minimum dwell below which a corridor entry counts
// as transient and is ignored.
func WithMinDwell(seconds float64) Option {
	return func(s *Segmenter) {
		if seconds >= 0 {
			s.minDwellS = seconds
		}
	}
}
