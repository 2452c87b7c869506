package domain

// Category groups ingredients, e.g. "肉類" or "野菜".
type Category struct {
	ID           CategoryID
	Name         CategoryName
	DisplayOrder DisplayOrder
}

// NewCategory validates raw reference data into a Category.
func NewCategory(id, name string, displayOrder int) (Category, error) {
	cid, err := ParseCategoryID(id)
	if err != nil {
		return Category{}, err
	}
	cname, err := NewCategoryName(name)
	if err != nil {
		return Category{}, err
	}
	order, err := NewDisplayOrder(displayOrder)
	if err != nil {
		return Category{}, err
	}
	return Category{ID: cid, Name: cname, DisplayOrder: order}, nil
}

// Unit is a unit of measure for ingredient quantities.
type Unit struct {
	ID           UnitID
	Name         UnitName
	Symbol       UnitSymbol
	DisplayOrder DisplayOrder
}

// NewUnit validates raw reference data into a Unit.
func NewUnit(id, name, symbol string, displayOrder int) (Unit, error) {
	uid, err := ParseUnitID(id)
	if err != nil {
		return Unit{}, err
	}
	uname, err := NewUnitName(name)
	if err != nil {
		return Unit{}, err
	}
	usym, err := NewUnitSymbol(symbol)
	if err != nil {
		return Unit{}, err
	}
	order, err := NewDisplayOrder(displayOrder)
	if err != nil {
		return Unit{}, err
	}
	return Unit{ID: uid, Name: uname, Symbol: usym, DisplayOrder: order}, nil
}
