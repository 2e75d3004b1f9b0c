package models

type Category string

const (
	CategoryPasta  Category = "pasta"
	CategoryBurger Category = "burger"
)

// MenuItem is one dish of the fixed catalog. Price is in whole rupees.
type MenuItem struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Price    int      `json:"price"`
	Category Category `json:"category"`
}

// menuItems is the catalog in display order. Summaries and agent messages follow this order.
var menuItems = []MenuItem{
	{ID: "pasta-alfredo", Name: "Classic Alfredo Pasta", Price: 149, Category: CategoryPasta},
	{ID: "pasta-tandoori", Name: "Tandoori Pasta", Price: 149, Category: CategoryPasta},
	{ID: "pasta-periperi", Name: "Peri Peri Pasta", Price: 149, Category: CategoryPasta},
	{ID: "pasta-pinksauce", Name: "Pink Sauce Pasta", Price: 149, Category: CategoryPasta},
	{ID: "pasta-arabiata", Name: "Arabiata Pasta", Price: 149, Category: CategoryPasta},
	{ID: "pasta-macncheese", Name: "Mac & Cheese Pasta", Price: 149, Category: CategoryPasta},
	{ID: "burger-classic", Name: "Classic Burger", Price: 99, Category: CategoryBurger},
	{ID: "burger-tandoori", Name: "Tandoori Burger", Price: 119, Category: CategoryBurger},
	{ID: "burger-periperi", Name: "Peri Peri Burger", Price: 119, Category: CategoryBurger},
	{ID: "burger-doublepatty", Name: "Double Patty Burger", Price: 159, Category: CategoryBurger},
	{ID: "burger-cheeseburst", Name: "Cheese Burst Burger", Price: 139, Category: CategoryBurger},
	{ID: "burger-loaded", Name: "Loaded Burger", Price: 169, Category: CategoryBurger},
}

var menuIndex = func() map[string]int {
	idx := make(map[string]int, len(menuItems))
	for i, item := range menuItems {
		idx[item.ID] = i
	}
	return idx
}()

// Categories lists the menu tabs in display order.
func Categories() []Category {
	return []Category{CategoryPasta, CategoryBurger}
}

// GetAllMenuItems returns a copy of the catalog in display order.
func GetAllMenuItems() []MenuItem {
	result := make([]MenuItem, len(menuItems))
	copy(result, menuItems)
	return result
}

// GetMenuItem looks an item up by id.
func GetMenuItem(id string) (MenuItem, bool) {
	i, ok := menuIndex[id]
	if !ok {
		return MenuItem{}, false
	}
	return menuItems[i], true
}

// IsMenuItem reports whether id names an item on the menu.
func IsMenuItem(id string) bool {
	_, ok := menuIndex[id]
	return ok
}

// MenuItemsByCategory returns a category's items in menu order.
func MenuItemsByCategory(category Category) []MenuItem {
	var result []MenuItem
	for _, item := range menuItems {
		if item.Category == category {
			result = append(result, item)
		}
	}
	return result
}

// CategoryPriceRange returns the cheapest and the most expensive price in a category.
func CategoryPriceRange(category Category) (lo, hi int) {
	first := true
	for _, item := range menuItems {
		if item.Category != category {
			continue
		}
		if first || item.Price < lo {
			lo = item.Price
		}
		if first || item.Price > hi {
			hi = item.Price
		}
		first = false
	}
	return lo, hi
}

// Label is the tab title of a category.
func (c Category) Label() string {
	switch c {
	case CategoryPasta:
		return "Pasta"
	case CategoryBurger:
		return "Burgers"
	default:
		return string(c)
	}
}
