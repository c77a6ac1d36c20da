package handler

import (
	"net/http"

	"github.com/dukerupert/manutenzioni/internal/cost"
)

type vatResponse struct {
	Gross string `json:"con_iva"`
	Net   string `json:"senza_iva"`
	Rate  string `json:"aliquota"`
}

// VAT converts between the two cost legs for ?gross= or ?net=. Exactly one
// must be given; an empty value yields empty legs.
func VAT(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	gross, hasGross := q["gross"]
	net, hasNet := q["net"]
	if hasGross == hasNet {
		writeError(w, http.StatusBadRequest, "specifica gross oppure net")
		return
	}

	var (
		a   cost.Amount
		err error
	)
	if hasGross {
		a, err = cost.FromGross(gross[0])
	} else {
		a, err = cost.FromNet(net[0])
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, vatResponse{
		Gross: a.GrossString(),
		Net:   a.NetString(),
		Rate:  "22%",
	})
}
