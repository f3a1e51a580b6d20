package channel

// Patch is an explicit field-diff applied to a channel's configuration.
//
// Every externally mutable field is enumerated; nil means "leave unchanged".
// There is deliberately no map-based update path, so an unknown key is a
// compile error rather than a silently set attribute.
type Patch struct {
	URL                 *string
	Name                *string
	Quality             *string
	RecordFormat        *string
	SegmentRecord       *bool
	SegmentTimeSec      *int
	MonitorEnabled      *bool
	ScheduledRecording  *bool
	ScheduledStartTimes *string
	MonitorHours        *string
	PushEnabled         *bool
	NotifyOnly          *bool
}

// Apply copies the set fields onto st and reports whether anything changed.
func (p Patch) Apply(st *State) bool {
	if st == nil {
		return false
	}
	changed := false
	setStr := func(dst *string, v *string) {
		if v != nil && *dst != *v {
			*dst = *v
			changed = true
		}
	}
	setBool := func(dst *bool, v *bool) {
		if v != nil && *dst != *v {
			*dst = *v
			changed = true
		}
	}
	setInt := func(dst *int, v *int) {
		if v != nil && *dst != *v {
			*dst = *v
			changed = true
		}
	}

	setStr(&st.URL, p.URL)
	setStr(&st.Name, p.Name)
	setStr(&st.Quality, p.Quality)
	setStr(&st.RecordFormat, p.RecordFormat)
	setBool(&st.SegmentRecord, p.SegmentRecord)
	setInt(&st.SegmentTimeSec, p.SegmentTimeSec)
	setBool(&st.MonitorEnabled, p.MonitorEnabled)
	setBool(&st.ScheduledRecording, p.ScheduledRecording)
	setStr(&st.ScheduledStartTimes, p.ScheduledStartTimes)
	setStr(&st.MonitorHours, p.MonitorHours)
	setBool(&st.PushEnabled, p.PushEnabled)
	setBool(&st.NotifyOnly, p.NotifyOnly)
	return changed
}
