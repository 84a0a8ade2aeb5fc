package shop

import "time"

type PaymentMethod string

const (
	MethodPaypal  PaymentMethod = "paypal"
	MethodPayfast PaymentMethod = "payfast"
)

func ValidMethod(m PaymentMethod) bool {
	return m == MethodPaypal || m == MethodPayfast
}

type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       string    `json:"price"` // decimal string, e.g. "19.99"
	Stock       int       `json:"stock"`
	Category    string    `json:"category"`
	Image       string    `json:"image,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Order struct {
	ID              string        `json:"id"`
	UserID          string        `json:"user_id"`
	Total           string        `json:"total"` // decimal string
	Status          Status        `json:"status"`
	PaymentMethod   PaymentMethod `json:"payment_method"`
	PaymentID       string        `json:"payment_id,omitempty"` // ref dari provider
	ShippingAddress string        `json:"shipping_address"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

type OrderItem struct {
	ID        string `json:"id"`
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	// Price snapshot saat order dibuat; tidak pernah dihitung ulang.
	Price string `json:"price"`
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
