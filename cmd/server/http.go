package main

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"strings"

	"buildnblocks.io/internal/protocol"
	"buildnblocks.io/internal/sim/world"
	"buildnblocks.io/internal/transport/ws"
)

type httpDeps struct {
	WorldID     string
	World       *world.World
	WS          *ws.Server
	Index       runtimeIndex
	EnableAdmin bool
	EnablePprof bool
	StaticDir   string
	Logger      *log.Logger
}

func newMux(d httpDeps) *http.ServeMux {
	mux := http.NewServeMux()
	health := func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("OK"))
	}
	mux.HandleFunc("/health", health)
	mux.HandleFunc("/healthz", health)
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, d.WorldID, d.World.Metrics(), d.WS.Stats(), d.Index)
	})

	if d.EnableAdmin {
		// Local-only operator view.
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			resp := struct {
				WorldID         string           `json:"world_id"`
				ProtocolVersion string           `json:"protocol_version"`
				State           world.AdminState `json:"state"`
				Transport       ws.Stats         `json:"transport"`
			}{
				WorldID:         d.WorldID,
				ProtocolVersion: protocol.Version,
				State:           d.World.AdminState(),
				Transport:       d.WS.Stats(),
			}
			_ = json.NewEncoder(rw).Encode(resp)
		})
	} else {
		d.Logger.Printf("admin endpoints disabled (BNB_ENABLE_ADMIN_HTTP=false)")
	}
	if d.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		d.Logger.Printf("pprof endpoints disabled (BNB_ENABLE_PPROF_HTTP=false)")
	}
	mux.HandleFunc("/v1/ws", d.WS.Handler())
	if dir := strings.TrimSpace(d.StaticDir); dir != "" {
		mux.Handle("/", http.FileServer(http.Dir(dir)))
	}
	return mux
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
