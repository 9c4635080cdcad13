package api

import (
	"net/http"
)

type getStatusResponse struct {
	State          string `json:"state"`
	Pending        string `json:"pending,omitempty"`
	WifiActive     bool   `json:"wifiActive"`
	BindingEnabled bool   `json:"bindingEnabled"`
	BoundNetwork   string `json:"boundNetwork,omitempty"`
}

func (a *Api) handleGetStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		active, err := a.manager.IsWifiActive()
		if err != nil {
			a.log.Warnf("Could not get active network type: %v", err)
		}

		res := &getStatusResponse{
			State:          a.manager.State().String(),
			WifiActive:     active,
			BindingEnabled: a.manager.BindingEnabled(),
		}

		if id, ok := a.manager.Pending(); ok {
			res.Pending = id
		}

		if bound := a.manager.BoundNetwork(); bound != nil {
			res.BoundNetwork = bound.String()
		}

		a.jsonResponse(w, res, http.StatusOK)
	}
}
