package analysis

// Slice is one playable region of the buffer, the shape the sampler's
// pad grid consumes
type Slice struct {
	StartSample int     `json:"start_sample"`
	EndSample   int     `json:"end_sample"`
	StartTime   float64 `json:"start_time"`
	EndTime     float64 `json:"end_time"`
}

// BuildSlices turns an onset result into contiguous slice regions: each
// slice runs from one onset to the next, the last one to the buffer
// end. A buffer with no onsets becomes a single full-length slice. The
// count is capped at maxSlices (the sampler's pad budget); onsets past
// the cap are absorbed into the final slice.
func BuildSlices(buf *SampleBuffer, onsets *OnsetResult, maxSlices int) []Slice {
	if maxSlices <= 0 {
		maxSlices = DefaultConfig().MaxSlices
	}

	starts := []int{}
	if onsets == nil || len(onsets.Samples) == 0 {
		starts = append(starts, 0)
	} else {
		if onsets.Samples[0] > 0 {
			starts = append(starts, 0)
		}
		starts = append(starts, onsets.Samples...)
	}

	if len(starts) > maxSlices {
		starts = starts[:maxSlices]
	}

	slices := make([]Slice, len(starts))
	for i, start := range starts {
		end := buf.Len()
		if i+1 < len(starts) {
			end = starts[i+1]
		}

		slices[i] = Slice{
			StartSample: start,
			EndSample:   end,
			StartTime:   buf.SampleToTime(start),
			EndTime:     buf.SampleToTime(end),
		}
	}

	return slices
}
