package model

// Device identifies one simulated unit and the API credential it
// authenticates with. Created once at startup, never mutated after.
type Device struct {
	ID     string
	APIKey string
}
