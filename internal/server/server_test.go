package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buddyengineerz/storefront/app/models"
	"github.com/buddyengineerz/storefront/internal/testdb"
	"github.com/buddyengineerz/storefront/pkg/auth"
	"github.com/buddyengineerz/storefront/pkg/event"
	"github.com/buddyengineerz/storefront/pkg/mail"
)

func newApp(t *testing.T) (*App, *mail.Recorder, http.Handler) {
	t.Helper()
	db := testdb.Open(t)
	rec := &mail.Recorder{}
	a := New(context.Background(), Deps{DB: db, Mailer: rec})
	t.Cleanup(func() {
		event.Flush()
		event.UsePool(nil)
		a.pool.Shutdown()
	})
	r, err := a.Router()
	require.NoError(t, err)
	return a, rec, r.Handler()
}

func call(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndGraphQL(t *testing.T) {
	a, _, h := newApp(t)
	require.NoError(t, a.DB.Create(&models.Category{Name: "Tees", Slug: "tees", IsActive: true}).Error)

	rec := call(t, h, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"database":"ok"`)

	rec = call(t, h, http.MethodPost, "/graphql", "", map[string]any{"query": "{ categories { slug } }"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"slug":"tees"`)
}

func TestOrderPlacedMailsCustomer(t *testing.T) {
	a, mails, h := newApp(t)

	u := models.User{Email: "asha@example.com", Password: "x"}
	require.NoError(t, a.DB.Create(&u).Error)
	p := models.Product{
		Name: "Segfault Tee", Slug: "segfault-tee", Price: decimal.NewFromInt(400),
		Images: []string{}, Sizes: []string{}, Colors: []string{}, Tags: []string{},
		Stock: 5, Gender: models.GenderUnisex, IsActive: true,
	}
	require.NoError(t, a.DB.Create(&p).Error)
	token, _, err := auth.GenerateToken(u.ID, u.Email, auth.RoleCustomer)
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, call(t, h, http.MethodPost, "/api/cart/items", token,
		map[string]any{"product_id": p.ID, "quantity": 1}).Code)

	rec := call(t, h, http.MethodPost, "/api/addresses", token, map[string]any{
		"type": "home", "name": "Asha Rao", "phone": "9876543210", "line1": "12 MG Road",
		"city": "Bengaluru", "state": "Karnataka", "pincode": "560001",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var addr struct {
		Data struct {
			ID uint `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &addr))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	workers := a.Queue.StartWorkers(ctx, 1)

	rec = call(t, h, http.MethodPost, "/api/orders", token, map[string]any{"address_id": addr.Data.ID, "payment_method": "cod"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"total_amount":571`)

	require.Eventually(t, func() bool { return mails.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, strings.HasPrefix(mails.Sent[0].Subject, "We received your order BE-"))

	cancel()
	workers.Wait()
}

func TestSchedulerRegistersSweep(t *testing.T) {
	a, _, _ := newApp(t)
	assert.Equal(t, []string{SweepTask}, a.Scheduler.RunDue(context.Background(), time.Now(), true))
}
