package main

import "github.com/noah-isme/kasir-kopi/internal/catalog"

type ingredientSeed struct {
	Name     string
	Stock    int64
	Unit     catalog.Unit
	MinStock int64
}

type recipeSeed struct {
	Ingredient string
	Qty        int64
}

type productSeed struct {
	Name      string
	Price     int64
	Category  catalog.Category
	Variants  []catalog.Variant
	Modifiers []catalog.Modifier
	Recipe    []recipeSeed
}

var ingredients = []ingredientSeed{
	{"Biji Kopi Arabika", 5000, catalog.UnitGram, 500},
	{"Biji Kopi Robusta", 5000, catalog.UnitGram, 500},
	{"Susu Full Cream", 20000, catalog.UnitML, 1000},
	{"Susu Oat", 5000, catalog.UnitML, 500},
	{"Gula Aren Cair", 5000, catalog.UnitML, 500},
	{"Sirup Karamel", 2000, catalog.UnitML, 200},
	{"Sirup Vanila", 2000, catalog.UnitML, 200},
	{"Sirup Pandan", 2000, catalog.UnitML, 200},
	{"Susu Kental Manis", 3000, catalog.UnitML, 300},
	{"Bubuk Teh Hitam", 1000, catalog.UnitGram, 100},
	{"Bubuk Coklat", 2000, catalog.UnitGram, 200},
	{"Bubuk Matcha", 1000, catalog.UnitGram, 100},
	{"Bubuk Red Velvet", 1000, catalog.UnitGram, 100},
	{"Buah Lemon", 100, catalog.UnitPiece, 10},
	{"Buah Leci Kaleng", 5000, catalog.UnitGram, 500},
	{"Es Batu", 50000, catalog.UnitGram, 5000},
	{"Roti Tawar", 100, catalog.UnitPiece, 20},
	{"Kentang Beku", 10000, catalog.UnitGram, 1000},
	{"Pisang", 50, catalog.UnitPiece, 10},
	{"Sosis Sapi", 100, catalog.UnitPiece, 20},
	{"Mie Instan", 200, catalog.UnitPiece, 40},
	{"Telur Ayam", 100, catalog.UnitPiece, 20},
	{"Keju Cheddar", 2000, catalog.UnitGram, 200},
	{"Selai Coklat", 2000, catalog.UnitGram, 200},
	{"Minyak Goreng", 10000, catalog.UnitML, 1000},
}

var hotIced = []catalog.Variant{
	{Name: "Panas", PriceAdjustment: 0},
	{Name: "Dingin", PriceAdjustment: 2000},
}

var products = []productSeed{
	{Name: "Espresso", Price: 15000, Category: catalog.CategoryCoffee,
		Variants: []catalog.Variant{{Name: "Single"}, {Name: "Double", PriceAdjustment: 5000}},
		Recipe:   []recipeSeed{{"Biji Kopi Arabika", 15}}},
	{Name: "Americano", Price: 18000, Category: catalog.CategoryCoffee, Variants: hotIced,
		Recipe: []recipeSeed{{"Biji Kopi Arabika", 15}}},
	{Name: "Kopi Susu Gula Aren", Price: 22000, Category: catalog.CategoryCoffee, Variants: hotIced,
		Modifiers: []catalog.Modifier{{Name: "Extra Shot", PriceAdjustment: 5000}, {Name: "Ganti Susu Oat", PriceAdjustment: 4000}},
		Recipe:    []recipeSeed{{"Biji Kopi Arabika", 15}, {"Susu Full Cream", 120}, {"Gula Aren Cair", 20}}},
	{Name: "Caffe Latte", Price: 20000, Category: catalog.CategoryCoffee, Variants: hotIced,
		Recipe: []recipeSeed{{"Biji Kopi Arabika", 15}, {"Susu Full Cream", 150}}},
	{Name: "Cappuccino", Price: 20000, Category: catalog.CategoryCoffee, Variants: hotIced,
		Recipe: []recipeSeed{{"Biji Kopi Arabika", 15}, {"Susu Full Cream", 120}}},
	{Name: "Caramel Macchiato", Price: 25000, Category: catalog.CategoryCoffee, Variants: hotIced,
		Recipe: []recipeSeed{{"Biji Kopi Arabika", 15}, {"Susu Full Cream", 120}, {"Sirup Karamel", 20}}},
	{Name: "Kopi Pandan", Price: 23000, Category: catalog.CategoryCoffee, Variants: hotIced,
		Recipe: []recipeSeed{{"Biji Kopi Arabika", 15}, {"Susu Full Cream", 120}, {"Sirup Pandan", 20}}},
	{Name: "Vietnam Drip", Price: 20000, Category: catalog.CategoryCoffee, Variants: hotIced,
		Recipe: []recipeSeed{{"Biji Kopi Robusta", 20}, {"Susu Kental Manis", 30}}},
	{Name: "V60 Manual Brew", Price: 28000, Category: catalog.CategoryCoffee,
		Recipe: []recipeSeed{{"Biji Kopi Arabika", 18}}},
	{Name: "Japanese Iced Coffee", Price: 30000, Category: catalog.CategoryCoffee,
		Recipe: []recipeSeed{{"Biji Kopi Arabika", 18}, {"Es Batu", 150}}},
	{Name: "Coklat Signature", Price: 22000, Category: catalog.CategoryNonCoffee, Variants: hotIced,
		Recipe: []recipeSeed{{"Bubuk Coklat", 30}, {"Susu Full Cream", 150}}},
	{Name: "Matcha Latte", Price: 24000, Category: catalog.CategoryNonCoffee, Variants: hotIced,
		Recipe: []recipeSeed{{"Bubuk Matcha", 10}, {"Susu Full Cream", 150}}},
	{Name: "Red Velvet Latte", Price: 24000, Category: catalog.CategoryNonCoffee, Variants: hotIced,
		Recipe: []recipeSeed{{"Bubuk Red Velvet", 25}, {"Susu Full Cream", 150}}},
	{Name: "Teh Tarik", Price: 18000, Category: catalog.CategoryNonCoffee, Variants: hotIced,
		Recipe: []recipeSeed{{"Bubuk Teh Hitam", 10}, {"Susu Kental Manis", 30}}},
	{Name: "Lemon Tea", Price: 15000, Category: catalog.CategoryNonCoffee, Variants: hotIced,
		Recipe: []recipeSeed{{"Bubuk Teh Hitam", 5}, {"Buah Lemon", 1}}},
	{Name: "Lychee Tea", Price: 18000, Category: catalog.CategoryNonCoffee,
		Recipe: []recipeSeed{{"Bubuk Teh Hitam", 5}, {"Buah Leci Kaleng", 50}}},
	{Name: "Air Mineral", Price: 5000, Category: catalog.CategoryNonCoffee},
	{Name: "Es Teh Manis", Price: 8000, Category: catalog.CategoryNonCoffee},
	{Name: "Jus Jeruk", Price: 15000, Category: catalog.CategoryNonCoffee},
	{Name: "Soda Gembira", Price: 17000, Category: catalog.CategoryNonCoffee},
	{Name: "Roti Bakar Coklat Keju", Price: 18000, Category: catalog.CategoryFood,
		Recipe: []recipeSeed{{"Roti Tawar", 2}, {"Selai Coklat", 30}, {"Keju Cheddar", 20}}},
	{Name: "Kentang Goreng", Price: 15000, Category: catalog.CategoryFood,
		Recipe: []recipeSeed{{"Kentang Beku", 150}, {"Minyak Goreng", 50}}},
	{Name: "Pisang Goreng Keju", Price: 16000, Category: catalog.CategoryFood,
		Recipe: []recipeSeed{{"Pisang", 1}, {"Keju Cheddar", 20}}},
	{Name: "Sosis Bakar", Price: 12000, Category: catalog.CategoryFood,
		Recipe: []recipeSeed{{"Sosis Sapi", 1}}},
	{Name: "Indomie Goreng Special", Price: 15000, Category: catalog.CategoryFood,
		Recipe: []recipeSeed{{"Mie Instan", 1}, {"Telur Ayam", 1}}},
	{Name: "Nasi Goreng Kampung", Price: 20000, Category: catalog.CategoryFood},
	{Name: "Sandwich Daging Asap", Price: 25000, Category: catalog.CategoryFood},
	{Name: "Dimsum Ayam", Price: 18000, Category: catalog.CategoryFood},
	{Name: "Donat Gula", Price: 8000, Category: catalog.CategoryFood},
	{Name: "Singkong Goreng", Price: 12000, Category: catalog.CategoryFood},
}
