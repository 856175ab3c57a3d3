package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	sensorReadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payloadnav_sensor_reads_total",
			Help: "Sensor register reads by channel and result.",
		},
		[]string{"channel", "result"},
	)

	flightPhase = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "payloadnav_flight_phase",
		Help: "Current flight phase: 0 idle, 1 launched, 2 landed.",
	})

	samplesBuffered = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "payloadnav_samples_buffered",
		Help: "Flight samples held for post-landing estimation.",
	})

	telemetryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payloadnav_telemetry_messages_total",
			Help: "Telemetry messages by outcome (sent, dropped, error).",
		},
		[]string{"outcome"},
	)

	gpsSentencesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payloadnav_gps_sentences_total",
			Help: "NMEA sentences by type; bad checksums count as type \"invalid\".",
		},
		[]string{"type"},
	)

	gpsFix = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "payloadnav_gps_fix",
		Help: "1 when the GPS has a current fix.",
	})

	estimateSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "payloadnav_estimate_duration_seconds",
		Help:    "Wall time of the post-landing position estimate.",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
	})

	offUnitTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payloadnav_offunit_quaternions_total",
		Help: "Orientation samples whose norm was outside the unit tolerance.",
	})

	boardTemp = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "payloadnav_board_temp_celsius",
		Help: "SoC temperature of the flight computer.",
	})

	gridCell = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "payloadnav_grid_cell",
		Help: "Last reported grid cell, -1 on failure.",
	})
)

func init() {
	prometheus.MustRegister(sensorReadsTotal)
	prometheus.MustRegister(flightPhase)
	prometheus.MustRegister(samplesBuffered)
	prometheus.MustRegister(telemetryTotal)
	prometheus.MustRegister(gpsSentencesTotal)
	prometheus.MustRegister(gpsFix)
	prometheus.MustRegister(estimateSeconds)
	prometheus.MustRegister(offUnitTotal)
	prometheus.MustRegister(boardTemp)
	prometheus.MustRegister(gridCell)
	gridCell.Set(-1)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SensorRead counts one read on channel ("linear_acc", "quat", ...).
func SensorRead(channel string, ok bool) {
	result := "ok"
	if !ok {
		result = "miss"
	}
	sensorReadsTotal.WithLabelValues(channel, result).Inc()
}

func SetPhase(phase int) { flightPhase.Set(float64(phase)) }

func SetBuffered(n int) { samplesBuffered.Set(float64(n)) }

// Telemetry counts a message outcome: "sent", "dropped" or "error".
func Telemetry(outcome string) { telemetryTotal.WithLabelValues(outcome).Inc() }

func GPSSentence(typ string) { gpsSentencesTotal.WithLabelValues(typ).Inc() }

func SetGPSFix(ok bool) {
	if ok {
		gpsFix.Set(1)
		return
	}
	gpsFix.Set(0)
}

func ObserveEstimate(seconds float64, offUnit int) {
	estimateSeconds.Observe(seconds)
	offUnitTotal.Add(float64(offUnit))
}

func SetGridCell(cell int) { gridCell.Set(float64(cell)) }

func SetBoardTemp(c float64) { boardTemp.Set(c) }
