package messenger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"vocero/platform/logger"
)

func newTestClient(url string) *Client {
	return &Client{
		baseURL:    url,
		accountSID: "AC123",
		authToken:  "tok",
		fromNumber: "whatsapp:+5491100000000",
		http:       &http.Client{Timeout: 5 * time.Second},
		log:        logger.New("development"),
	}
}

func TestSendPrefixesChannelAndReturnsSID(t *testing.T) {
	var to, from, body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, _ := r.BasicAuth()
		if user != "AC123" || pass != "tok" {
			t.Errorf("basic auth = %s:%s", user, pass)
		}
		_ = r.ParseForm()
		to = r.PostForm.Get("To")
		from = r.PostForm.Get("From")
		body = r.PostForm.Get("Body")
		_ = json.NewEncoder(w).Encode(map[string]string{"sid": "SM42"})
	}))
	defer srv.Close()

	sid, err := newTestClient(srv.URL).Send(context.Background(), "+54 9 11 5555-0000", "hola")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if sid != "SM42" {
		t.Fatalf("sid = %q", sid)
	}
	if to != "whatsapp:+5491155550000" {
		t.Fatalf("To = %q, number must be normalized and channel-prefixed", to)
	}
	if from != "whatsapp:+5491100000000" || body != "hola" {
		t.Fatalf("From = %q, Body = %q", from, body)
	}
}

func TestSendKeepsExistingChannelPrefix(t *testing.T) {
	var to string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		to = r.PostForm.Get("To")
		_ = json.NewEncoder(w).Encode(map[string]string{"sid": "SM1"})
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).Send(context.Background(), "whatsapp:+5491155550000", "hola"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if to != "whatsapp:+5491155550000" {
		t.Fatalf("To = %q", to)
	}
}

func TestSendSurfacesCarrierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"unverified number"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).Send(context.Background(), "+5491155550000", "hola"); err == nil {
		t.Fatal("expected carrier error")
	}
}

func TestFetchMedia(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, _, ok := r.BasicAuth(); !ok {
			t.Errorf("media fetch must authenticate")
		}
		_, _ = w.Write([]byte("BEGIN:VCARD"))
	}))
	defer srv.Close()

	data, err := newTestClient(srv.URL).FetchMedia(context.Background(), srv.URL+"/media/1")
	if err != nil {
		t.Fatalf("FetchMedia: %v", err)
	}
	if string(data) != "BEGIN:VCARD" {
		t.Fatalf("data = %q", data)
	}
}

func TestNilClientSendsNothing(t *testing.T) {
	var c *Client
	sid, err := c.Send(context.Background(), "+5491155550000", "hola")
	if err != nil || sid != "" {
		t.Fatalf("nil client = (%q, %v)", sid, err)
	}
}
