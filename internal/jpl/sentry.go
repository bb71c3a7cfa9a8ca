package jpl

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/Blood-Moon-Interactive/StarWX/internal/visibility"
)

// MinImpactProbability is the cumulative impact probability below which
// Sentry objects are not listed.
const MinImpactProbability = 0.0001

// RiskObject is one object on the Sentry impact-monitoring list.
type RiskObject struct {
	Designation       string   `json:"designation"`
	FullName          string   `json:"full_name"`
	ImpactProbability float64  `json:"impact_probability"`
	PalermoCumulative *float64 `json:"palermo_cumulative,omitempty"`
	PalermoMax        *float64 `json:"palermo_max,omitempty"`
	DiameterKm        *float64 `json:"diameter_km,omitempty"`
	VInfKmS           *float64 `json:"v_inf_km_s,omitempty"`
	H                 *float64 `json:"h,omitempty"`
	LastObservation   string   `json:"last_observation,omitempty"`
	ImpactRange       string   `json:"impact_range,omitempty"`
	Impacts           int      `json:"impacts"`
}

// Event returns the classifier view of o.
func (o RiskObject) Event() visibility.Event {
	return visibility.RiskAssessment{ImpactProbability: o.ImpactProbability}
}

// Summary returns the display form of o. Sentry objects carry no event date.
func (o RiskObject) Summary() Summary {
	label := "Low Risk"
	if o.ImpactProbability > visibility.HighRiskProbability {
		label = "High Risk"
	}
	name := o.FullName
	if name == "" {
		name = o.Designation
	}
	return Summary{
		ID:          "risk-" + slug(o.Designation),
		Name:        name,
		Description: fmt.Sprintf("%s has a %.6f%% chance of Earth impact", name, o.ImpactProbability*100),
		Label:       label,
	}
}

type sentryPayload struct {
	Data []struct {
		Des      flexString `json:"des"`
		FullName flexString `json:"fullname"`
		IP       flexString `json:"ip"`
		PSCum    flexString `json:"ps_cum"`
		PSMax    flexString `json:"ps_max"`
		Diameter flexString `json:"diameter"`
		VInf     flexString `json:"v_inf"`
		H        flexString `json:"h"`
		LastObs  flexString `json:"last_obs"`
		Range    flexString `json:"range"`
		NImp     flexString `json:"n_imp"`
	} `json:"data"`
}

// Sentry returns up to limit objects with impact probability above
// MinImpactProbability, most likely first.
func (c *Client) Sentry(ctx context.Context, limit int) ([]RiskObject, error) {
	p, err := fetch[sentryPayload](ctx, c, "sentry.api", nil)
	if err != nil {
		return nil, err
	}
	return filterSentry(decodeSentry(p), limit), nil
}

func decodeSentry(p sentryPayload) []RiskObject {
	out := make([]RiskObject, 0, len(p.Data))
	for _, d := range p.Data {
		ip, ok := d.IP.float()
		if !ok {
			continue
		}
		n, _ := strconv.Atoi(string(d.NImp))
		out = append(out, RiskObject{
			Designation:       string(d.Des),
			FullName:          string(d.FullName),
			ImpactProbability: ip,
			PalermoCumulative: optFloat(string(d.PSCum)),
			PalermoMax:        optFloat(string(d.PSMax)),
			DiameterKm:        optFloat(string(d.Diameter)),
			VInfKmS:           optFloat(string(d.VInf)),
			H:                 optFloat(string(d.H)),
			LastObservation:   string(d.LastObs),
			ImpactRange:       string(d.Range),
			Impacts:           n,
		})
	}
	return out
}

func filterSentry(all []RiskObject, limit int) []RiskObject {
	out := make([]RiskObject, 0, len(all))
	for _, o := range all {
		if o.ImpactProbability > MinImpactProbability {
			out = append(out, o)
		}
	}
	slices.SortStableFunc(out, func(a, b RiskObject) int {
		return cmp.Compare(b.ImpactProbability, a.ImpactProbability)
	})
	return truncate(out, limit)
}
