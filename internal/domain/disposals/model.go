package disposals

import (
	"strconv"
	"strings"
	"time"

	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/domain/pricing"
)

type Status string

const (
	StatusPendingValidation Status = "pending_validation"
)

// Record is one registered disposal. Exactly one of Mass and Count is set.
type Record struct {
	ID            string
	UserID        string
	SiteID        string
	MaterialID    string
	Category      string
	PointsAwarded int64
	Mass          *float64
	Count         *int64
	Status        Status
	CreatedAt     time.Time
}

func (r Record) Unit() pricing.Unit {
	if r.Count != nil {
		return pricing.UnitPerCount
	}
	return pricing.UnitPerMass
}

// QuantityLabel renders the quantity with its unit, e.g. "2,5 kg" or "3 un".
func (r Record) QuantityLabel() string {
	switch {
	case r.Count != nil:
		return strconv.FormatInt(*r.Count, 10) + " un"
	case r.Mass != nil:
		return formatMass(*r.Mass) + " kg"
	}
	return ""
}

func formatMass(v float64) string {
	return strings.Replace(strconv.FormatFloat(v, 'f', -1, 64), ".", ",", 1)
}
