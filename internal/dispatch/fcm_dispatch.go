package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/example/carpool/internal/models"
)

// FCMDispatcher posts offers to the FCM HTTPv1 endpoint using a server
// key or oauth token. Device tokens are looked up per driver.
type FCMDispatcher struct {
	Endpoint string
	Key      string
	Tokens   func(driverID string) string
	Client   *http.Client
}

func NewFCMDispatcher(endpoint, key string, tokens func(driverID string) string) *FCMDispatcher {
	return &FCMDispatcher{Endpoint: endpoint, Key: key, Tokens: tokens, Client: &http.Client{Timeout: 3 * time.Second}}
}

func (f *FCMDispatcher) Offer(driverID string, offer models.DeliveryOffer) error {
	token := ""
	if f.Tokens != nil {
		token = f.Tokens(driverID)
	}
	body := map[string]interface{}{"message": map[string]interface{}{
		"token": token,
		"data": map[string]interface{}{
			"delivery_id": fmt.Sprintf("%d", offer.DeliveryID),
			"trip_id":     fmt.Sprintf("%d", offer.TripID),
			"price":       fmt.Sprintf("%.2f", offer.Price),
		},
	}}
	b, _ := json.Marshal(body)
	req, err := http.NewRequest("POST", f.Endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if f.Key != "" {
		req.Header.Set("Authorization", "Bearer "+f.Key)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("fcm returned %d", resp.StatusCode)
	}
	return nil
}
