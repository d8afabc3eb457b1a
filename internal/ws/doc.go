// Package ws implements the WebSocket hub streaming provisioning progress.
//
// Hub manages a set of connected clients and forwards every provisioning
// pass event to all of them as it happens. Hub implements
// provision.Notifier, so it plugs straight into the provisioner.
//
// New(last) creates a Hub; last supplies the most recent pass result for
// the catch-up message sent on connect.
// Hub.Run(ctx) blocks until ctx is cancelled, then closes all connections.
// Hub.ServeHTTP upgrades an HTTP connection to WebSocket.
//
// Message format sent to clients:
//
//	{
//	  "event": "pass",
//	  "data":  { "pass": "<uuid>", "state": "pushing", "category": "rule-groups", ... }
//	}
//
// On connect the client first receives an "event": "result" message carrying
// the last whole pass result, the same schema as GET /api/v1/provision/status.
//
// The upgrader accepts all origins. Apply CORS restrictions at the reverse
// proxy level. The WebSocket endpoint is mounted at /ws/stream by the server.
package ws
