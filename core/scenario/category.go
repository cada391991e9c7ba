package scenario

import "github.com/orsinium-labs/enum"

// Category selects the kind of situation the seed prompt asks for.
type Category enum.Member[string]

var (
	CategoryDaily = Category{"daily"}
	CategoryWork  = Category{"work"}

	// Categories lists every category the dialog offers, in menu order.
	Categories = enum.New(CategoryDaily, CategoryWork)
)

// ParseCategory resolves a wire value into a known category.
func ParseCategory(value string) (Category, bool) {
	c := Categories.Parse(value)
	if c == nil {
		return Category{}, false
	}
	return *c, true
}

// Valid reports whether c is one of Categories.
func (c Category) Valid() bool {
	return Categories.Contains(c)
}

func (c Category) String() string {
	return c.Value
}
