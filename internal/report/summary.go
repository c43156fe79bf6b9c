package report

// Summary condenses a series of daily reports of one name.
type Summary struct {
	Days             int   `json:"days"`
	PeakDay          int   `json:"peak_day"`
	PeakActive       int64 `json:"peak_active"`
	PeakCritical     int64 `json:"peak_critical"`
	FinalCumulative  int64 `json:"final_cumulative"`
	FinalSymptomatic int64 `json:"final_symptomatic"`
	FinalRecovered   int64 `json:"final_recovered"`
	FinalQuarantined int64 `json:"final_quarantined"`
	FinalPopulation  int64 `json:"final_population"`
	Finished         bool  `json:"finished"`
}

// Summarize returns the peak of active infections and the figures of the
// last report. Reports must be in day order. It returns nil for no
// reports.
func Summarize(reports []InfectionReport) *Summary {
	if len(reports) == 0 {
		return nil
	}
	s := &Summary{Days: len(reports), PeakDay: reports[0].Day}
	for _, r := range reports {
		if a := r.NActive(); a > s.PeakActive {
			s.PeakActive = a
			s.PeakDay = r.Day
		}
		s.PeakCritical = max(s.PeakCritical, r.NCritical)
	}
	last := reports[len(reports)-1]
	s.FinalCumulative = last.NInfectedCumulative
	s.FinalSymptomatic = last.NSymptomaticCumulative
	s.FinalRecovered = last.NRecovered
	s.FinalQuarantined = last.NQuarantined()
	s.FinalPopulation = last.NPopulation
	s.Finished = last.Finished()
	return s
}
