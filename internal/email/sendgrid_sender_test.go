package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSendGridSender_SendsTemplateWithCode(t *testing.T) {
	var (
		gotAuth string
		gotPath string
		gotBody sendGridRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sender, err := NewSendGridSender(srv.URL, "key", "bot@school.edu", "d-template")
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}

	expires := time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC)
	if err := sender.SendVerificationCode(context.Background(), "a@school.edu", "012345", expires); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if gotAuth != "Bearer key" {
		t.Fatalf("expected bearer auth, got %q", gotAuth)
	}
	if gotPath != "/v3/mail/send" {
		t.Fatalf("unexpected path %s", gotPath)
	}
	if gotBody.TemplateID != "d-template" || gotBody.From.Email != "bot@school.edu" {
		t.Fatalf("unexpected body %+v", gotBody)
	}
	if len(gotBody.Personalizations) != 1 {
		t.Fatalf("expected one personalization, got %+v", gotBody.Personalizations)
	}
	p := gotBody.Personalizations[0]
	if len(p.To) != 1 || p.To[0].Email != "a@school.edu" {
		t.Fatalf("unexpected recipients %+v", p.To)
	}
	if p.DynamicTemplateData["code"] != "012345" {
		t.Fatalf("expected code in template data, got %+v", p.DynamicTemplateData)
	}
}

func TestSendGridSender_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key","field":null}]}`))
	}))
	defer srv.Close()

	sender, _ := NewSendGridSender(srv.URL, "key", "bot@school.edu", "d-template")
	err := sender.SendVerificationCode(context.Background(), "a@school.edu", "000000", time.Now())
	if err == nil {
		t.Fatalf("expected error on 401")
	}
	if !strings.Contains(err.Error(), "bad key") {
		t.Fatalf("expected provider message in error, got %v", err)
	}
}

func TestNewSendGridSender_RequiresSettings(t *testing.T) {
	if _, err := NewSendGridSender("", "", "bot@school.edu", "d-1"); err == nil {
		t.Fatalf("expected error for missing key")
	}
	if _, err := NewSendGridSender("", "key", "", "d-1"); err == nil {
		t.Fatalf("expected error for missing sender")
	}
	if _, err := NewSendGridSender("", "key", "bot@school.edu", ""); err == nil {
		t.Fatalf("expected error for missing template")
	}
}
