package catalog

import "time"

type Cake struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Image       string    `json:"image"`
	Category    []string  `json:"category"`
	Flavors     []string  `json:"flavors"`
	Toppings    []string  `json:"toppings"`
	Sizes       []string  `json:"sizes"`
	Rating      float64   `json:"rating"`
	Reviews     int       `json:"reviews"`
	Bestseller  bool      `json:"bestseller"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type CakeInput struct {
	ID          string   `json:"id" validate:"required,min=1"`
	Name        string   `json:"name" validate:"required,min=2"`
	Description string   `json:"description" validate:"required,min=10"`
	Price       float64  `json:"price" validate:"gt=0"`
	Image       string   `json:"image" validate:"required,url"`
	Category    []string `json:"category" validate:"required,min=1,dive,required"`
	Flavors     []string `json:"flavors" validate:"required,min=1,dive,required"`
	Toppings    []string `json:"toppings" validate:"required,min=1,dive,required"`
	Sizes       []string `json:"sizes" validate:"required,min=1,dive,required"`
	Rating      float64  `json:"rating" validate:"gte=0,lte=5"`
	Reviews     int      `json:"reviews" validate:"gte=0"`
	Bestseller  bool     `json:"bestseller"`
}

// CakePatch carries only the fields the admin sent.
type CakePatch struct {
	Name        *string   `json:"name,omitempty" validate:"omitempty,min=2"`
	Description *string   `json:"description,omitempty" validate:"omitempty,min=10"`
	Price       *float64  `json:"price,omitempty" validate:"omitempty,gt=0"`
	Image       *string   `json:"image,omitempty" validate:"omitempty,url"`
	Category    *[]string `json:"category,omitempty" validate:"omitempty,min=1,dive,required"`
	Flavors     *[]string `json:"flavors,omitempty" validate:"omitempty,min=1,dive,required"`
	Toppings    *[]string `json:"toppings,omitempty" validate:"omitempty,min=1,dive,required"`
	Sizes       *[]string `json:"sizes,omitempty" validate:"omitempty,min=1,dive,required"`
	Rating      *float64  `json:"rating,omitempty" validate:"omitempty,gte=0,lte=5"`
	Reviews     *int      `json:"reviews,omitempty" validate:"omitempty,gte=0"`
	Bestseller  *bool     `json:"bestseller,omitempty"`
}

type CakeFilter struct {
	Category   string
	Bestseller *bool
}

type Flavor struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	Images      []string  `json:"images"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type FlavorInput struct {
	Name        string   `json:"name" validate:"required,min=2"`
	Description string   `json:"description" validate:"required,min=10"`
	Images      []string `json:"images" validate:"required,min=1,dive,required"`
	IsActive    *bool    `json:"isActive,omitempty"`
}

func (in FlavorInput) active() bool { return in.IsActive == nil || *in.IsActive }
