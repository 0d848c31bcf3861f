package pricing

type Unit string

const (
	UnitPerMass  Unit = "per_kg"
	UnitPerCount Unit = "per_unit"
)

func (u Unit) Valid() bool {
	return u == UnitPerMass || u == UnitPerCount
}

// Label is the short suffix shown next to a quantity.
func (u Unit) Label() string {
	switch u {
	case UnitPerMass:
		return "kg"
	case UnitPerCount:
		return "un"
	}
	return string(u)
}

// Rule is the award rule of one material.
type Rule struct {
	MaterialID    string
	Category      string
	PointsPerUnit int64
	Unit          Unit
}

// Category is one node of the category tree, materials in display order.
type Category struct {
	Name      string
	Materials []string
}

// CategorySpec and MaterialSpec mirror the external pricing configuration:
// material name -> {points, type}.
type CategorySpec struct {
	Name      string
	Materials []MaterialSpec
}

type MaterialSpec struct {
	Name   string
	Points int64
	Type   Unit
}
