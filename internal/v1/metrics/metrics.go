package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the game session server.
//
// Naming convention: namespace_subsystem_name
// - namespace: generals (application-level grouping)
// - subsystem: websocket, room, game (feature-level grouping)
//
// Metric Types:
// - Gauge: Current state (connections, rooms, members)
// - Counter: Cumulative events (frames processed, moves, games)
// - Histogram: Latency distributions (frame processing time)

var (
	// ActiveWebSocketConnections tracks the current number of active sessions
	ActiveWebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "generals",
		Subsystem: "websocket",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket connections",
	})

	// ActiveRooms tracks the current number of live rooms (the global room included)
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "generals",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active rooms",
	})

	// RoomMembers tracks the member count per room
	RoomMembers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "generals",
		Subsystem: "room",
		Name:      "members_count",
		Help:      "Number of members in each room",
	}, []string{"room_id"})

	// InboundFrames tracks frames decoded from client connections
	InboundFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "generals",
		Subsystem: "websocket",
		Name:      "frames_total",
		Help:      "Total inbound frames processed",
	}, []string{"frame_type", "status"})

	// FrameProcessingDuration tracks router handler latency per frame type
	FrameProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "generals",
		Subsystem: "websocket",
		Name:      "frame_processing_seconds",
		Help:      "Time spent handling inbound frames",
		Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25},
	}, []string{"frame_type"})

	// GamesStarted counts games that reached the force-start threshold
	GamesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "generals",
		Subsystem: "game",
		Name:      "started_total",
		Help:      "Total games started",
	})

	// GamesEnded counts games that reached a terminal state
	GamesEnded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "generals",
		Subsystem: "game",
		Name:      "ended_total",
		Help:      "Total games ended",
	})

	// MovesApplied counts accepted game moves
	MovesApplied = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "generals",
		Subsystem: "game",
		Name:      "moves_total",
		Help:      "Total moves applied to game maps",
	})

	// TurnsAdvanced counts half-tick scheduler firings
	TurnsAdvanced = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "generals",
		Subsystem: "game",
		Name:      "half_ticks_total",
		Help:      "Total half-tick advances across all rooms",
	})

	// RateLimitExceeded counts rejected requests per route and limit kind
	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "generals",
		Subsystem: "websocket",
		Name:      "rate_limit_exceeded_total",
		Help:      "Total requests rejected by rate limiting",
	}, []string{"route", "kind"})
)

func IncConnection() {
	ActiveWebSocketConnections.Inc()
}

func DecConnection() {
	ActiveWebSocketConnections.Dec()
}
