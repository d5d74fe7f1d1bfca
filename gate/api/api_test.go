package api

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/econtool/authgate/credstore"
	"github.com/econtool/authgate/gate"
	"github.com/steinfletcher/apitest"
	jsonpath "github.com/steinfletcher/apitest-jsonpath"
)

func acquireHandler(t *testing.T, preauthorized []string) (http.Handler, *gate.Gate) {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "config.yaml")
	store := credstore.NewStore(path)
	cookie := credstore.Cookie{
		Name:       "econtool_session",
		Key:        "test-signing-key",
		ExpiryDays: 1,
	}
	err := store.Save(&credstore.Config{
		Cookie:        cookie,
		Preauthorized: credstore.Preauthorized{Emails: preauthorized},
	})
	if err != nil {
		t.Fatal(err)
	}
	g, err := gate.New(store, cookie, gate.InMemoryTokenStore(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	err = g.Register(ctx, gate.NewUser{
		Username: "admin",
		Name:     "Administrator",
		Email:    "admin@example.com",
		Password: gate.PlainText("admin123"),
	})
	if err != nil {
		t.Fatal(err)
	}
	return AsHandler(g, true), g
}

func TestLoginEndpoint(t *testing.T) {
	handler, _ := acquireHandler(t, nil)

	apitest.New().
		Handler(handler).
		Post("/auth/login").
		JSON(`{"username":"admin","password":"admin123"}`).
		Expect(t).
		Status(http.StatusOK).
		CookiePresent("econtool_session").
		Assert(jsonpath.Equal("$.authenticated", true)).
		Assert(jsonpath.Equal("$.username", "admin")).
		Assert(jsonpath.Equal("$.name", "Administrator")).
		End()

	apitest.New().
		Handler(handler).
		Post("/auth/login").
		JSON(`{"username":"admin","password":"wrong"}`).
		Expect(t).
		Status(http.StatusUnauthorized).
		Assert(jsonpath.Equal("$.authenticated", false)).
		End()

	// unknown user and wrong password answer identically
	apitest.New().
		Handler(handler).
		Post("/auth/login").
		JSON(`{"username":"nobody","password":"admin123"}`).
		Expect(t).
		Status(http.StatusUnauthorized).
		Assert(jsonpath.Equal("$.error", "username/password is incorrect")).
		End()

	apitest.New().
		Handler(handler).
		Post("/auth/login").
		Body(`{not json`).
		Expect(t).
		Status(http.StatusBadRequest).
		End()
}

func TestRegisterEndpoint(t *testing.T) {
	// admin's address is on the list too, the fixture registers it
	handler, _ := acquireHandler(t, []string{"analyst@example.com", "admin@example.com"})

	apitest.New().
		Handler(handler).
		Post("/auth/register").
		JSON(`{"username":"analyst","name":"Analyst","email":"analyst@example.com","password":"analyst123"}`).
		Expect(t).
		Status(http.StatusCreated).
		End()

	apitest.New().
		Handler(handler).
		Post("/auth/register").
		JSON(`{"username":"analyst","name":"Other","email":"analyst@example.com","password":"x"}`).
		Expect(t).
		Status(http.StatusConflict).
		End()

	apitest.New().
		Handler(handler).
		Post("/auth/register").
		JSON(`{"username":"stranger","name":"Stranger","email":"stranger@example.com","password":"x"}`).
		Expect(t).
		Status(http.StatusForbidden).
		End()

	apitest.New().
		Handler(handler).
		Post("/auth/register").
		JSON(`{"username":"badmail","name":"Bad","email":"not-an-email","password":"x"}`).
		Expect(t).
		Status(http.StatusBadRequest).
		End()

	// registration never issues a session, login still required
	apitest.New().
		Handler(handler).
		Post("/auth/login").
		JSON(`{"username":"analyst","password":"analyst123"}`).
		Expect(t).
		Status(http.StatusOK).
		End()
}

func TestForgotEndpoint(t *testing.T) {
	handler, _ := acquireHandler(t, nil)

	apitest.New().
		Handler(handler).
		Post("/auth/forgot").
		JSON(`{"username":"nobody"}`).
		Expect(t).
		Status(http.StatusNotFound).
		End()

	result := apitest.New().
		Handler(handler).
		Post("/auth/forgot").
		JSON(`{"username":"admin"}`).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Present("$.new_password")).
		End()

	var body struct {
		NewPassword string `json:"new_password"`
	}
	if err := json.NewDecoder(result.Response.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}

	// the generated password authenticates, the old one no longer does
	apitest.New().
		Handler(handler).
		Post("/auth/login").
		JSON(`{"username":"admin","password":"admin123"}`).
		Expect(t).
		Status(http.StatusUnauthorized).
		End()
	apitest.New().
		Handler(handler).
		Post("/auth/login").
		JSON(`{"username":"admin","password":"`+body.NewPassword+`"}`).
		Expect(t).
		Status(http.StatusOK).
		End()
}

func TestResetEndpoint(t *testing.T) {
	ctx := context.Background()
	handler, g := acquireHandler(t, nil)
	token, _, err := g.Login(ctx, "admin", gate.PlainText("admin123"))
	if err != nil {
		t.Fatal(err)
	}

	apitest.New().
		Handler(handler).
		Post("/auth/reset").
		JSON(`{"old_password":"admin123","new_password":"admin456"}`).
		Expect(t).
		Status(http.StatusUnauthorized).
		End()

	apitest.New().
		Handler(handler).
		Post("/auth/reset").
		Header("Authorization", "Bearer "+token).
		JSON(`{"old_password":"wrong","new_password":"admin456"}`).
		Expect(t).
		Status(http.StatusUnauthorized).
		End()

	apitest.New().
		Handler(handler).
		Post("/auth/reset").
		Header("Authorization", "Bearer "+token).
		JSON(`{"old_password":"admin123","new_password":"admin456"}`).
		Expect(t).
		Status(http.StatusOK).
		End()

	apitest.New().
		Handler(handler).
		Post("/auth/login").
		JSON(`{"username":"admin","password":"admin456"}`).
		Expect(t).
		Status(http.StatusOK).
		End()
}

func TestUpdateAndWhoamiEndpoints(t *testing.T) {
	ctx := context.Background()
	handler, g := acquireHandler(t, nil)
	token, _, err := g.Login(ctx, "admin", gate.PlainText("admin123"))
	if err != nil {
		t.Fatal(err)
	}

	apitest.New().
		Handler(handler).
		Get("/auth/whoami").
		Expect(t).
		Status(http.StatusUnauthorized).
		End()

	apitest.New().
		Handler(handler).
		Post("/auth/update").
		Header("Authorization", "Bearer "+token).
		JSON(`{"name":"Admin Renamed","email":"renamed@example.com"}`).
		Expect(t).
		Status(http.StatusOK).
		End()

	apitest.New().
		Handler(handler).
		Get("/auth/whoami").
		Header("Authorization", "Bearer "+token).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.username", "admin")).
		Assert(jsonpath.Equal("$.name", "Admin Renamed")).
		End()
}

func TestLogoutEndpoint(t *testing.T) {
	ctx := context.Background()
	handler, g := acquireHandler(t, nil)
	token, _, err := g.Login(ctx, "admin", gate.PlainText("admin123"))
	if err != nil {
		t.Fatal(err)
	}

	apitest.New().
		Handler(handler).
		Post("/auth/logout").
		Header("Authorization", "Bearer "+token).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.authenticated", false)).
		End()

	apitest.New().
		Handler(handler).
		Get("/auth/whoami").
		Header("Authorization", "Bearer "+token).
		Expect(t).
		Status(http.StatusUnauthorized).
		End()
}
