package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	RouteRoot   = "/"
	RouteLogin  = "/login"
	RouteLogout = "/logout"

	// API Routes
	RouteAPIClone    = "/api/clone"
	RouteAPIPush     = "/api/push"
	RouteAPIArchives = "/api/archives/{archive}"

	// Ungated Routes
	RouteHealthz = "/healthz"
	RouteMetrics = "/metrics"
	RouteStatic  = "/static/"
)
