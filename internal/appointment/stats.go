package appointment

import (
	"sort"
	"time"
)

// dayOfWeek numbers t's UTC weekday 1 (Sunday) through 7 (Saturday).
func dayOfWeek(t time.Time) int {
	return int(t.UTC().Weekday()) + 1
}

func dayName(dow int) string {
	return time.Weekday(dow - 1).String()
}

// summarizeStatus groups appointments by status, keeping only statuses that
// occur, in lifecycle order.
func summarizeStatus(appts []Appointment) []StatusStat {
	byStatus := make(map[AppointmentStatus]*StatusStat)
	for _, a := range appts {
		st, ok := byStatus[a.Status]
		if !ok {
			st = &StatusStat{Status: a.Status}
			byStatus[a.Status] = st
		}
		st.Count++
		st.TotalRevenue += a.Service.Price
	}

	out := make([]StatusStat, 0, len(byStatus))
	for _, s := range statusOrder {
		if st, ok := byStatus[s]; ok {
			out = append(out, *st)
		}
	}
	return out
}

// summarizeWeekdays counts appointments per weekday, ascending.
func summarizeWeekdays(appts []Appointment) []DailyStat {
	counts := make(map[int]int)
	for _, a := range appts {
		counts[dayOfWeek(a.ScheduledAt)]++
	}

	out := make([]DailyStat, 0, len(counts))
	for dow, n := range counts {
		out = append(out, DailyStat{DayOfWeek: dow, Day: dayName(dow), Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DayOfWeek < out[j].DayOfWeek })
	return out
}

// buildStats derives the totals from the per-status groups so they always
// add up.
func buildStats(statusStats []StatusStat, daily []DailyStat) *Stats {
	if statusStats == nil {
		statusStats = []StatusStat{}
	}
	if daily == nil {
		daily = []DailyStat{}
	}

	s := &Stats{StatusStats: statusStats, DailyStats: daily}
	for _, st := range statusStats {
		s.TotalAppointments += st.Count
		s.TotalRevenue += st.TotalRevenue
	}
	return s
}

// sortStatusStats puts store-produced groups into lifecycle order.
func sortStatusStats(stats []StatusStat) {
	rank := make(map[AppointmentStatus]int, len(statusOrder))
	for i, s := range statusOrder {
		rank[s] = i
	}
	sort.SliceStable(stats, func(i, j int) bool { return rank[stats[i].Status] < rank[stats[j].Status] })
}
