package models

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CategoryResponse struct {
	Success  bool      `json:"success"`
	Message  string    `json:"message"`
	Category *Category `json:"category,omitempty"`
}
