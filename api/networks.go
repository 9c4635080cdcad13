package api

import (
	"net/http"
	"strconv"

	"github.com/the-lightning-land/wifid/scan"
	"github.com/the-lightning-land/wifid/wifi"
)

type accessPointResponse struct {
	Ssid         string `json:"ssid"`
	Bssid        string `json:"bssid"`
	Capabilities string `json:"capabilities"`
	Security     string `json:"security"`
	Level        int    `json:"level"`
	Signal       int    `json:"signal"`
	Frequency    int    `json:"frequency,omitempty"`
}

func (a *Api) handleGetNetworks() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		filter := true
		if v := query.Get("filter"); v != "" {
			var err error
			filter, err = strconv.ParseBool(v)
			if err != nil {
				a.jsonError(w, "filter must be a boolean", http.StatusBadRequest)
				return
			}
		}

		results, err := a.manager.GetScanResults(filter, nil)
		if err != nil {
			a.jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}

		switch query.Get("sort") {
		case "":
		case "signal":
			results = scan.SortBySignalStrength(results)
		default:
			a.jsonError(w, "sort must be signal", http.StatusBadRequest)
			return
		}

		res := make([]*accessPointResponse, 0, len(results))
		for _, ap := range results {
			res = append(res, &accessPointResponse{
				Ssid:         ap.Ssid,
				Bssid:        ap.Bssid,
				Capabilities: ap.Capabilities,
				Security:     ap.Security().String(),
				Level:        ap.Level,
				Signal:       wifi.NormalizedLevel(ap.Level),
				Frequency:    ap.Frequency,
			})
		}

		a.jsonResponse(w, res, http.StatusOK)
	}
}
