package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fieldops/fieldsync/internal/errors"
	"github.com/fieldops/fieldsync/internal/models"
)

func respond(t *testing.T, w http.ResponseWriter, data interface{}) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	err = json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   false,
		"message": "",
		"data":    json.RawMessage(raw),
	})
	require.NoError(t, err)
}

func TestFetchCourierStores(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/stores/courier", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		respond(t, w, []map[string]interface{}{
			{
				"id": 7, "name": "north", "address": "main st", "active": true,
				"assignedCourier": map[string]interface{}{"id": "c-1", "name": "Alex"},
			},
			{"id": "s-2", "name": "south", "active": false},
		})
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL}, StaticToken("tok-1"))
	stores, err := client.FetchCourierStores(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Bearer tok-1", gotAuth)

	require.Len(t, stores, 2)
	require.Equal(t, "7", stores[0].ID, "numeric remote ids normalize to strings")
	require.Equal(t, "c-1", stores[0].CourierID)
	require.Equal(t, "Alex", stores[0].CourierName)
	require.Equal(t, "s-2", stores[1].ID)
}

func TestFetchActiveProductsFiltersInactive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(t, w, []map[string]interface{}{
			{"id": "p-1", "name": "cola", "active": true},
			{"id": "p-2", "name": "discontinued", "active": false},
		})
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL}, nil)
	products, err := client.FetchActiveProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)
	require.Equal(t, "p-1", products[0].ID)
}

func TestFetchEmployee(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/user/u-9", r.URL.Path)
		respond(t, w, map[string]interface{}{
			"id": "u-9", "name": "Sam", "email": "sam@example.com", "role": "courier",
		})
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL}, nil)
	profile, err := client.FetchEmployee(context.Background(), "u-9")
	require.NoError(t, err)
	require.Equal(t, "u-9", profile.ID)
	require.Equal(t, "sam@example.com", profile.Email)
}

func TestCreateOrder(t *testing.T) {
	var gotRequestID string
	var gotBody orderRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/orders", r.URL.Path)
		gotRequestID = r.Header.Get("X-Request-ID")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		respond(t, w, map[string]interface{}{"id": 301})
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL}, nil)
	remoteID, err := client.CreateOrder(context.Background(), models.VisitPayload{
		CourierID: "c-1",
		StoreID:   "s-1",
		Items:     []models.OrderItem{{ProductID: "p-1", Quantity: 2}},
		Location:  &models.Location{Latitude: 40.4, Longitude: -3.7},
	}, "req-abc")
	require.NoError(t, err)

	require.Equal(t, "301", remoteID)
	require.Equal(t, "req-abc", gotRequestID)
	require.Equal(t, "c-1", gotBody.CourierID)
	require.Equal(t, "s-1", gotBody.StoreID)
	require.Len(t, gotBody.Items, 1)
	require.NotNil(t, gotBody.Location)
}

func TestCreateOrderRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": true, "message": "unknown store",
		})
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL}, nil)
	_, err := client.CreateOrder(context.Background(), models.VisitPayload{
		CourierID: "c-1", StoreID: "s-x",
		Items: []models.OrderItem{{ProductID: "p-1", Quantity: 1}},
	}, "req-1")
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.ErrRemoteRejected))
	require.Contains(t, err.Error(), "unknown store")
}

func TestCreateOrderMissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(t, w, map[string]interface{}{})
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL}, nil)
	_, err := client.CreateOrder(context.Background(), models.VisitPayload{
		CourierID: "c-1", StoreID: "s-1",
		Items: []models.OrderItem{{ProductID: "p-1", Quantity: 1}},
	}, "req-1")
	require.True(t, errors.Is(err, errors.ErrDecodeFailed))
}

func TestUploadOrderPhoto(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/orders/img/301", r.URL.Path)

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()

		require.Equal(t, "shelf.jpg", header.Filename)
		data, err := io.ReadAll(file)
		require.NoError(t, err)
		require.Equal(t, []byte{0xFF, 0xD8, 0xFF}, data)

		respond(t, w, map[string]interface{}{})
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL}, nil)
	err := client.UploadOrderPhoto(context.Background(), "301", []byte{0xFF, 0xD8, 0xFF})
	require.NoError(t, err)
}

func TestUploadOrderPhotoFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL}, nil)
	err := client.UploadOrderPhoto(context.Background(), "301", []byte{1})
	require.True(t, errors.Is(err, errors.ErrAttachmentUploadFailed))
}

func TestProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodHead, r.Method)
		// Even an error status proves reachability.
		w.WriteHeader(http.StatusNotFound)
	}))

	client := NewClient(Config{BaseURL: srv.URL}, nil)
	require.NoError(t, client.Probe(context.Background()))

	srv.Close()
	err := client.Probe(context.Background())
	require.True(t, errors.Is(err, errors.ErrProbeFailed))
}

func TestEmptyBodyTolerated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL}, nil)
	require.NoError(t, client.UploadOrderPhoto(context.Background(), "301", []byte{1}))
}
