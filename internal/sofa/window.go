package sofa

import "time"

// GenerateWindows partitions a stay's timeline into consecutive
// windows anchored at the admission time. Windows are emitted while
// their start does not pass the last observation time, capped at
// profile.MaxWindows. A stay with no measurements yields no windows; a
// stay shorter than one window still yields window 1 when any
// measurement falls at or after admission.
func GenerateWindows(stay *Stay, measurementTimes []time.Time, p Profile) ([]Window, error) {
	if stay.AdmissionTime == nil {
		return nil, &MissingAnchorError{StayID: stay.StayID}
	}
	if len(measurementTimes) == 0 {
		return nil, nil
	}

	anchor := *stay.AdmissionTime
	last := anchor
	for _, t := range measurementTimes {
		if t.After(last) {
			last = t
		}
	}

	var windows []Window
	for i := 1; i <= p.MaxWindows; i++ {
		start := anchor.Add(time.Duration(i-1) * p.WindowDuration)
		if start.After(last) {
			break
		}
		windows = append(windows, Window{
			StayID: stay.StayID,
			Index:  i,
			Start:  start,
			End:    start.Add(p.WindowDuration),
		})
	}
	return windows, nil
}
