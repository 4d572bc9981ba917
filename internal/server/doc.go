// Package server exposes the connection manager over HTTP.
//
// Routes:
//
//	GET /status   manager snapshot, SSID and build version as JSON
//	GET /events   websocket stream of manager events
//	GET /version  build version as JSON
//	GET /metrics  Prometheus exposition, when a metrics handler is given
//
// Every event the manager publishes is numbered and kept in a bounded
// history by the Hub. A stream client may pass ?since=N to replay buffered
// events after N before receiving live ones, which lets a monitor resume
// after a dropped connection. Clients that fall behind lose messages; the
// manager is never blocked by a slow reader.
//
// # Usage
//
//	srv, err := server.New(server.Config{Addr: ":8080"}, mgr, nil, collector.Handler(), logger)
//	if err != nil {
//	    return err
//	}
//	mgr.Subscribe(srv.Hub())
//	if err := srv.Start(); err != nil {
//	    return err
//	}
//	defer srv.Shutdown(ctx)
//
// FetchStatus and DialEvents are the matching client calls used by the
// monitor command.
package server
