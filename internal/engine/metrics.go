// Prometheus instrumentation for the step loop. Counters accumulate across
// a process lifetime; gauges track the most recent step.
package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricConstructions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "citysim_constructions_total",
		Help: "Buildings constructed.",
	})
	metricDemolitions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "citysim_demolitions_total",
		Help: "Buildings demolished.",
	})
	metricMoveIns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "citysim_move_ins_total",
		Help: "Households matched to a unit.",
	})
	metricMoveOuts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "citysim_move_outs_total",
		Help: "Households moved out, evictions included.",
	})
	metricPriceIndex = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "citysim_price_per_area",
		Help: "Current price-per-area index for new housing.",
	})
	metricUnhoused = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "citysim_unhoused_households",
		Help: "Households without a unit after the most recent step.",
	})
	metricStanding = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "citysim_standing_buildings",
		Help: "Buildings standing after the most recent step.",
	})
)

func publishMetrics(st SimStats) {
	metricConstructions.Add(float64(st.Constructed))
	metricDemolitions.Add(float64(st.Demolished))
	metricMoveIns.Add(float64(st.MovedIn))
	metricMoveOuts.Add(float64(st.MovedOut))
	metricPriceIndex.Set(st.PricePerArea)
	metricUnhoused.Set(float64(st.Unhoused))
	metricStanding.Set(float64(st.StandingBuildings))
}
