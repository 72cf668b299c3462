// Package alpaca hosts the venue session: REST order/position endpoints and the
// streaming market-data and order-update connections.
package alpaca

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Credentials authenticate every REST request and stream connection.
type Credentials struct {
	KeyID     string
	SecretKey string
}

// LoadCredentials reads API keys from the environment, loading a .env file
// first if one exists.
func LoadCredentials() (Credentials, error) {
	_ = godotenv.Load() // best-effort
	creds := Credentials{
		KeyID:     os.Getenv("APCA_API_KEY_ID"),
		SecretKey: os.Getenv("APCA_API_SECRET_KEY"),
	}
	if creds.KeyID == "" || creds.SecretKey == "" {
		return Credentials{}, fmt.Errorf("APCA_API_KEY_ID and APCA_API_SECRET_KEY must be set")
	}
	return creds, nil
}
