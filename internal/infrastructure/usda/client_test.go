package usda

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytelense/backend/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

const testKey = "fdc-test-key"

func newTestClient(baseURL string) *Client {
	return NewClient(testKey, baseURL, zerolog.Nop())
}

func writeFoods(w http.ResponseWriter, foods ...domain.USDAFood) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(domain.USDASearchResponse{Foods: foods})
}

func TestNewClient(t *testing.T) {
	client := newTestClient("https://api.nal.usda.gov/fdc")

	assert.Equal(t, testKey, client.apiKey)
	assert.Equal(t, "https://api.nal.usda.gov/fdc", client.baseURL)
	assert.Equal(t, 30*time.Second, client.httpClient.Timeout)
	assert.InDelta(t, 0.278, float64(client.rateLimiter.Limit()), 0.0001)
}

func TestClientSetters(t *testing.T) {
	client := newTestClient("http://unused")

	client.SetTimeout(5 * time.Second)
	client.SetRateLimit(2)
	assert.Equal(t, 5*time.Second, client.httpClient.Timeout)
	assert.Equal(t, rate.Limit(2), client.rateLimiter.Limit())

	// non-positive values keep the current settings
	client.SetTimeout(0)
	client.SetRateLimit(-1)
	assert.Equal(t, 5*time.Second, client.httpClient.Timeout)
	assert.Equal(t, rate.Limit(2), client.rateLimiter.Limit())
}

func TestExponentialBackoff(t *testing.T) {
	want := []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second, 4 * time.Second}
	for i, expected := range want {
		assert.Equal(t, expected, exponentialBackoff(i+1), "attempt %d", i+1)
	}
}

func TestSearchFoods_SendsQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/v1/foods/search", r.URL.Path)
		assert.Equal(t, "paneer tikka", q.Get("query"))
		assert.Equal(t, testKey, q.Get("api_key"))
		assert.Equal(t, "Survey (FNDDS),Foundation,Branded", q.Get("dataType"))
		assert.Equal(t, "10", q.Get("pageSize"))
		assert.Equal(t, "Bytelense/1.0", r.Header.Get("User-Agent"))
		writeFoods(w, domain.USDAFood{FdcID: 2705, Description: "Paneer tikka", DataType: "Survey (FNDDS)"})
	}))
	defer server.Close()

	result, err := newTestClient(server.URL).SearchFoods(context.Background(), "paneer tikka")
	require.NoError(t, err)
	require.Len(t, result.Foods, 1)
	assert.Equal(t, 2705, result.Foods[0].FdcID)
	assert.Equal(t, "Paneer tikka", result.Foods[0].Description)
}

// Each case scripts the status code returned per attempt; 200 answers with one food.
func TestSearchFoods_StatusHandling(t *testing.T) {
	tests := []struct {
		name         string
		statuses     []int
		body         string
		wantErr      error
		wantErrText  string
		wantAttempts int32
	}{
		{"not found is terminal", []int{http.StatusNotFound}, "", domain.ErrProductNotFound, "", 1},
		{"client error is not retried", []int{http.StatusBadRequest}, "", domain.ErrUSDAAPIFailure, "", 1},
		{"forbidden is not retried", []int{http.StatusForbidden}, "", domain.ErrUSDAAPIFailure, "", 1},
		{"rate limited then ok", []int{http.StatusTooManyRequests, http.StatusOK}, "", nil, "", 2},
		{"server errors then ok", []int{http.StatusInternalServerError, http.StatusBadGateway, http.StatusOK}, "", nil, "", 3},
		{"server errors exhaust retries", []int{500, 500, 500}, "", domain.ErrUSDAAPIFailure, "", 3},
		{"empty result list", []int{http.StatusOK}, `{"foods":[]}`, domain.ErrProductNotFound, "", 1},
		{"malformed json", []int{http.StatusOK}, "not json", nil, "failed to decode response", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := int(attempts.Add(1)) - 1
				status := tt.statuses[min(n, len(tt.statuses)-1)]
				if status != http.StatusOK {
					w.WriteHeader(status)
					return
				}
				if tt.body != "" {
					_, _ = w.Write([]byte(tt.body))
					return
				}
				writeFoods(w, domain.USDAFood{FdcID: 42, Description: "Dal, cooked"})
			}))
			defer server.Close()

			result, err := newTestClient(server.URL).SearchFoods(context.Background(), "dal")

			assert.Equal(t, tt.wantAttempts, attempts.Load())
			switch {
			case tt.wantErr != nil:
				assert.Nil(t, result)
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantErrText != "":
				assert.Nil(t, result)
				assert.ErrorContains(t, err, tt.wantErrText)
			default:
				require.NoError(t, err)
				assert.Equal(t, 42, result.Foods[0].FdcID)
			}
		})
	}
}

func TestSearchFoods_Cancellation(t *testing.T) {
	t.Run("slow server", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer server.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		result, err := newTestClient(server.URL).SearchFoods(ctx, "slow")
		assert.Nil(t, result)
		assert.Error(t, err)
	})

	t.Run("during backoff", func(t *testing.T) {
		var attempts atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		_, err := newTestClient(server.URL).SearchFoods(ctx, "backoff")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, int32(1), attempts.Load())
	})

	t.Run("invalid base url", func(t *testing.T) {
		_, err := newTestClient("://bad").SearchFoods(context.Background(), "x")
		assert.Error(t, err)
	})
}

func TestGetFoodDetails(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
		wantMsg string
	}{
		{
			name: "decodes food with nutrients",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/food/171287", r.URL.Path)
				assert.Equal(t, testKey, r.URL.Query().Get("api_key"))
				_ = json.NewEncoder(w).Encode(domain.USDAFood{
					FdcID:       171287,
					Description: "Egg, whole, raw",
					DataType:    "Foundation",
					Nutrients: []domain.USDANutrient{
						{NutrientID: 1003, NutrientName: "Protein", Value: 12.6, UnitName: "G"},
					},
				})
			},
		},
		{
			name:    "not found",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) },
			wantErr: domain.ErrProductNotFound,
		},
		{
			name: "server error keeps body snippet",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte("upstream down"))
			},
			wantErr: domain.ErrUSDAAPIFailure,
			wantMsg: "upstream down",
		},
		{
			name:    "malformed json",
			handler: func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("{")) },
			wantMsg: "failed to decode response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			food, err := newTestClient(server.URL).GetFoodDetails(context.Background(), "171287")
			if tt.wantErr == nil && tt.wantMsg == "" {
				require.NoError(t, err)
				assert.Equal(t, "Egg, whole, raw", food.Description)
				require.Len(t, food.Nutrients, 1)
				assert.Equal(t, 12.6, food.Nutrients[0].Value)
				return
			}
			assert.Nil(t, food)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.wantMsg != "" {
				assert.ErrorContains(t, err, tt.wantMsg)
			}
		})
	}
}

func TestReadLimitedBody(t *testing.T) {
	body, err := readLimitedBody(strings.NewReader("short content"), 1000)
	require.NoError(t, err)
	assert.Equal(t, "short content", string(body))

	body, err = readLimitedBody(strings.NewReader(strings.Repeat("0123456789", 100)), 100)
	require.NoError(t, err)
	assert.Len(t, body, 100)
}
