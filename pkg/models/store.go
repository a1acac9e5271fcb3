package models

type Store struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Address     string  `json:"address"`
	Phone       string  `json:"phone"`
	Website     string  `json:"website"`
	Logo        string  `json:"logo"`
	Rating      float64 `json:"rating"`
	OwnerID     string  `json:"owner_id"`
}

type StoreResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Store   *Store `json:"store,omitempty"`
}
