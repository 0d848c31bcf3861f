// Package award turns a material and a user-typed quantity into integer points.
package award

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Vitor-Giannaccini/ecoponto-plus-app/internal/domain/pricing"
)

var (
	ErrUnknownMaterial = errors.New("award: unknown material")
	ErrInvalidQuantity = errors.New("award: invalid quantity")
	ErrZeroAward       = errors.New("award: quantity is worth zero points")
)

// plain decimal notation only: "2", "2.5", "2.", ".5"
var quantityRx = regexp.MustCompile(`^(\d+\.?\d*|\.\d+)$`)

const maxQuantityLen = 32

var maxPoints = decimal.NewFromInt(math.MaxInt64)

// Rules is the part of the pricing table the calculator needs.
type Rules interface {
	Lookup(materialID string) (pricing.Rule, error)
}

// Quantity is the normalized amount; Mass is set for per_kg rules and Count
// for per_unit rules, never both.
type Quantity struct {
	Unit  pricing.Unit
	Mass  float64
	Count int64
}

func (q Quantity) String() string {
	if q.Unit == pricing.UnitPerCount {
		return fmt.Sprintf("%d %s", q.Count, q.Unit.Label())
	}
	return fmt.Sprintf("%s %s", decimal.NewFromFloat(q.Mass).String(), q.Unit.Label())
}

type Result struct {
	Points   int64
	Quantity Quantity
	Rule     pricing.Rule
}

type Calculator struct {
	rules Rules
}

func NewCalculator(rules Rules) *Calculator {
	return &Calculator{rules: rules}
}

// Compute applies the material's rule to quantityRaw. Rounding is half away
// from zero, done in decimal arithmetic.
func (c *Calculator) Compute(materialID, quantityRaw string) (Result, error) {
	rule, err := c.rules.Lookup(materialID)
	if err != nil {
		if errors.Is(err, pricing.ErrNotFound) {
			return Result{}, fmt.Errorf("%w: %q", ErrUnknownMaterial, materialID)
		}
		return Result{}, err
	}

	q, err := ParseQuantity(quantityRaw)
	if err != nil {
		return Result{}, err
	}

	ppu := decimal.NewFromInt(rule.PointsPerUnit)
	res := Result{Rule: rule, Quantity: Quantity{Unit: rule.Unit}}

	var points decimal.Decimal
	switch rule.Unit {
	case pricing.UnitPerMass:
		points = ppu.Mul(q).Round(0)
		res.Quantity.Mass = q.InexactFloat64()
	case pricing.UnitPerCount:
		count := q.Round(0)
		if count.GreaterThan(maxPoints) {
			return Result{}, fmt.Errorf("%w: %q is too large", ErrInvalidQuantity, quantityRaw)
		}
		points = ppu.Mul(count)
		res.Quantity.Count = count.IntPart()
	default:
		return Result{}, fmt.Errorf("award: material %q has unknown unit %q", materialID, rule.Unit)
	}

	if points.GreaterThan(maxPoints) {
		return Result{}, fmt.Errorf("%w: %q is too large", ErrInvalidQuantity, quantityRaw)
	}
	res.Points = points.IntPart()
	if res.Points == 0 {
		return Result{}, fmt.Errorf("%w: %s of %q", ErrZeroAward, strings.TrimSpace(quantityRaw), materialID)
	}
	return res, nil
}

// ParseQuantity accepts a positive decimal with either "," or "." as the
// decimal separator.
func ParseQuantity(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(strings.Replace(raw, ",", ".", 1))
	if s == "" || len(s) > maxQuantityLen || !quantityRx.MatchString(s) {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidQuantity, raw)
	}
	q, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidQuantity, raw)
	}
	if !q.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %q must be greater than zero", ErrInvalidQuantity, raw)
	}
	return q, nil
}
