package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof handlers on http.DefaultServeMux
	"os"
	"runtime/pprof"
	"strconv"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/v3/process"
)

// serveHealth starts the loopback, JSON-only operations router: process
// health (/healthz), resource usage (/metrics/resource) and CPU profile
// capture (/debug/pprof/*), no debugger-facing functionality whatsoever.
//
// Grounded on monitoring.Monitor.StartServer's gorilla/mux route table
// and its listResources/collectProfile handlers, trimmed to the JSON
// endpoints the health router needs (no dashboard asset server).
func serveHealth(port int) {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", handleHealthz)
	r.HandleFunc("/metrics/resource", handleResource)
	r.HandleFunc("/debug/profile/capture", handleProfileCapture)
	r.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	log.Printf("rtldebugd: health router listening on %s", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Printf("rtldebugd: health router stopped: %v", err)
	}
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","pid":%d}`, os.Getpid())
}

type resourceResponse struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemoryRSS  uint64  `json:"memory_rss"`
}

func handleResource(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	mem, err := proc.MemoryInfo()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := resourceResponse{CPUPercent: cpuPercent, MemoryRSS: mem.RSS}
	body, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

// handleProfileCapture samples a one-second CPU profile and returns it
// as JSON, using the pprof profile library's parser the way
// monitoring.Monitor.collectProfile does rather than pprof's native
// binary encoding, since this router is JSON-only.
func handleProfileCapture(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)
	if err := pprof.StartCPUProfile(buf); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	time.Sleep(time.Second)
	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	body, err := json.Marshal(prof)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}
