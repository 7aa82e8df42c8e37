package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/example/carpool/internal/models"
)

// Dispatcher pushes a delivery offer at a driver over some channel.
type Dispatcher interface {
	Offer(driverID string, offer models.DeliveryOffer) error
}

// HTTPDispatcher notifies a driver app backend over plain HTTP.
type HTTPDispatcher struct {
	Endpoint string
	Client   *http.Client
}

func (d *HTTPDispatcher) Offer(driverID string, offer models.DeliveryOffer) error {
	if d.Client == nil {
		d.Client = &http.Client{Timeout: 2 * time.Second}
	}
	payload := map[string]any{"driver_id": driverID, "offer": offer}
	b, _ := json.Marshal(payload)
	resp, err := d.Client.Post(d.Endpoint, "application/json", bytes.NewReader(b))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("dispatch endpoint returned %d", resp.StatusCode)
	}
	return nil
}
