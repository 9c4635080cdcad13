package api

import (
	"net/http"
)

func (a *Api) handlePostRadio() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := a.manager.EnableRadio()
		if err != nil {
			a.jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusAccepted)
	}
}

func (a *Api) handlePostScan() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := a.manager.RequestScan()
		if err != nil {
			a.jsonError(w, err.Error(), http.StatusConflict)
			return
		}

		w.WriteHeader(http.StatusAccepted)
	}
}
