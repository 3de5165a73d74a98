package domain

type Category string

const (
	CategoryJewelry     Category = "Jewelry"
	CategoryClothing    Category = "Clothing"
	CategoryHomeDecor   Category = "Home Decor"
	CategoryArt         Category = "Art"
	CategoryAccessories Category = "Accessories"
	CategoryKitchen     Category = "Kitchen"
	CategoryFurniture   Category = "Furniture"
	CategoryBeauty      Category = "Beauty"
	CategoryToys        Category = "Toys"
	CategoryOther       Category = "Other"
)

var Categories = []Category{
	CategoryJewelry,
	CategoryClothing,
	CategoryHomeDecor,
	CategoryArt,
	CategoryAccessories,
	CategoryKitchen,
	CategoryFurniture,
	CategoryBeauty,
	CategoryToys,
	CategoryOther,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}
