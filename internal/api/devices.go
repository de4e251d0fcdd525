package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/busmap-core/internal/devbus"
)

// deviceResponse describes a registered bus device.
type deviceResponse struct {
	Name string `json:"name"`
	Base string `json:"base"`
	Size int    `json:"size,omitempty"`
}

func newDeviceResponse(d *devbus.Device) deviceResponse {
	return deviceResponse{
		Name: d.Name(),
		Base: d.Base().String(),
		Size: d.Size(),
	}
}

func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.bus.Devices()
	out := make([]deviceResponse, 0, len(devices))
	for _, d := range devices {
		out = append(out, newDeviceResponse(d))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": out,
		"count":   len(out),
	})
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	d, ok := s.bus.FindDevice(name)
	if !ok {
		writeNotFound(w, "device not found: "+name)
		return
	}
	writeJSON(w, http.StatusOK, newDeviceResponse(d))
}

func (s *Server) handleListStrategies(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"strategies":    s.bus.Strategies(),
		"default":       devbus.DefaultStrategy,
		"shadow_policy": s.bus.Options().Shadow.String(),
	})
}
