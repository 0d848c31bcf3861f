package pricing

// DefaultCategories is the reference category tree used when the
// configuration does not carry a pricing section.
func DefaultCategories() []CategorySpec {
	return []CategorySpec{
		{
			Name: "Recicláveis Comuns",
			Materials: []MaterialSpec{
				{Name: "Papéis e Papelão", Points: 10, Type: UnitPerMass},
				{Name: "Plásticos", Points: 15, Type: UnitPerMass},
				{Name: "Vidros", Points: 8, Type: UnitPerMass},
				{Name: "Metais", Points: 20, Type: UnitPerMass},
			},
		},
		{
			Name: "Construção Civil",
			Materials: []MaterialSpec{
				{Name: "Entulho", Points: 2, Type: UnitPerMass},
				{Name: "Madeiras", Points: 4, Type: UnitPerMass},
				{Name: "Cerâmicas", Points: 3, Type: UnitPerMass},
			},
		},
		{
			Name: "Móveis e Eletrodomésticos",
			Materials: []MaterialSpec{
				{Name: "Móveis", Points: 50, Type: UnitPerCount},
				{Name: "Eletrodomésticos", Points: 40, Type: UnitPerCount},
			},
		},
		{
			Name: "Pneus",
			Materials: []MaterialSpec{
				{Name: "Pneus Usados", Points: 25, Type: UnitPerCount},
			},
		},
		{
			Name: "Resíduos Eletrônicos",
			Materials: []MaterialSpec{
				{Name: "Celulares", Points: 30, Type: UnitPerCount},
				{Name: "Computadores", Points: 60, Type: UnitPerCount},
				{Name: "TVs e Rádios", Points: 45, Type: UnitPerCount},
			},
		},
	}
}

// Default builds the table from DefaultCategories.
func Default() *Table {
	t, err := NewTable(DefaultCategories())
	if err != nil {
		panic(err)
	}
	return t
}
