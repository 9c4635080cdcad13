package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-errors/errors"
	"github.com/the-lightning-land/wifid/manager"
	"github.com/the-lightning-land/wifid/wifi"
)

type postConnectionRequest struct {
	Ssid         string `json:"ssid"`
	Password     string `json:"password"`
	Security     string `json:"security"`
	Capabilities string `json:"capabilities"`
	Bind         *bool  `json:"bind"`
}

type connectionResponse struct {
	Ssid          string `json:"ssid"`
	Connected     bool   `json:"connected"`
	PasswordError bool   `json:"passwordError"`
	Reason        string `json:"reason,omitempty"`
}

type putBindingRequest struct {
	Enabled bool `json:"enabled"`
}

type bindingResponse struct {
	Enabled bool `json:"enabled"`
}

// securityOf picks the security of the network to join: given outright,
// classified from capabilities, or looked up in the last scan.
func (a *Api) securityOf(req *postConnectionRequest) (wifi.SecurityKind, error) {
	if req.Security != "" {
		kind, ok := wifi.ParseSecurityKind(req.Security)
		if !ok {
			return wifi.SecurityNone, errors.Errorf("unknown security %v", req.Security)
		}

		return kind, nil
	}

	if req.Capabilities != "" {
		return wifi.Classify(req.Capabilities), nil
	}

	results, err := a.manager.GetScanResults(false, nil)
	if err != nil {
		a.log.Warnf("Could not get scan results: %v", err)
	}

	for _, ap := range results {
		if wifi.SSIDEqual(ap.Ssid, req.Ssid) {
			return ap.Security(), nil
		}
	}

	if req.Password == "" {
		return wifi.SecurityNone, nil
	}

	return wifi.SecurityWPA, nil
}

func (a *Api) handlePostConnection() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := postConnectionRequest{}
		err := json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
			a.jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}

		if req.Ssid == "" {
			a.jsonError(w, "ssid is required", http.StatusBadRequest)
			return
		}

		kind, err := a.securityOf(&req)
		if err != nil {
			a.jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}

		bind := a.manager.BindingEnabled()
		if req.Bind != nil {
			bind = *req.Bind
		}

		a.log.Infof("Connecting to %v (%v)", req.Ssid, kind)

		result, err := a.manager.ConnectWait(r.Context(), kind, req.Ssid, req.Password, bind)
		if err != nil {
			a.jsonError(w, err.Error(), http.StatusGatewayTimeout)
			return
		}

		res := &connectionResponse{
			Ssid:          req.Ssid,
			Connected:     result.Connected,
			PasswordError: result.PasswordError,
			Reason:        result.Reason,
		}

		switch {
		case result.Connected:
			a.jsonResponse(w, res, http.StatusOK)
		case result.PasswordError:
			a.jsonResponse(w, res, http.StatusUnauthorized)
		case errors.Is(result.Err, manager.ErrConnectInProgress):
			a.jsonResponse(w, res, http.StatusConflict)
		default:
			a.jsonResponse(w, res, http.StatusBadGateway)
		}
	}
}

func (a *Api) handleDeleteConnection() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := a.manager.Disconnect()
		if err != nil {
			a.jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func (a *Api) handleDeletePending() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a.manager.Abort()

		w.WriteHeader(http.StatusNoContent)
	}
}

func (a *Api) handlePutBinding() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := putBindingRequest{}
		err := json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
			a.jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}

		a.manager.SetBindingEnabled(req.Enabled)

		a.jsonResponse(w, &bindingResponse{
			Enabled: a.manager.BindingEnabled(),
		}, http.StatusOK)
	}
}
