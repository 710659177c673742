package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/jordanlanch/leadflow/pkg/domain"
	"github.com/jordanlanch/leadflow/pkg/logger"
	"github.com/jordanlanch/leadflow/pkg/models"
)

func testAccount(provider string) *models.EmailAccount {
	return &models.EmailAccount{
		Name:      "Vertrieb",
		FromEmail: "vertrieb@leadflow.de",
		FromName:  "Leadflow Vertrieb",
		Provider:  provider,
		SMTPHost:  "smtp.leadflow.de",
		APIKey:    "SG.test-key",
	}
}

func testMessage() Message {
	return Message{To: "kunde@example.com", ToName: "Kunde", Subject: "Hallo", HTMLBody: "<p>Hi</p>"}
}

func TestRouter_Deliver(t *testing.T) {
	var called string
	r := NewRouter().
		Register("a", TransportFunc(func(ctx context.Context, acc *models.EmailAccount, msg Message) (string, error) {
			called = "a"
			return "id-a", nil
		}))

	id, err := r.Deliver(context.Background(), testAccount("a"), testMessage())
	require.NoError(t, err)
	assert.Equal(t, "id-a", id)
	assert.Equal(t, "a", called)

	_, err = r.Deliver(context.Background(), testAccount("pigeon"), testMessage())
	assert.True(t, domain.IsValidation(err))

	_, err = r.Deliver(context.Background(), nil, testMessage())
	assert.True(t, domain.IsValidation(err))
}

func TestConsoleTransport(t *testing.T) {
	var buf bytes.Buffer
	tr := NewConsoleTransport(logger.NewWithWriter(&buf, "info", "json"))

	id, err := tr.Deliver(context.Background(), testAccount(models.ProviderConsole), testMessage())
	require.NoError(t, err)
	assert.Len(t, id, 36)
	assert.Contains(t, buf.String(), "kunde@example.com")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = tr.Deliver(ctx, testAccount(models.ProviderConsole), testMessage())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSendGridTransport_Deliver(t *testing.T) {
	var got map[string]interface{}
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/mail/send", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("X-Message-Id", "sg-123")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	tr := NewSendGridTransport(srv.URL, logger.Nop())
	id, err := tr.Deliver(context.Background(), testAccount(models.ProviderSendGrid), testMessage())
	require.NoError(t, err)

	assert.Equal(t, "sg-123", id)
	assert.Equal(t, "Bearer SG.test-key", auth)
	assert.Equal(t, "Hallo", got["subject"])
}

func TestSendGridTransport_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"message":"invalid"}]}`))
	}))
	defer srv.Close()

	tr := NewSendGridTransport(srv.URL, logger.Nop())
	_, err := tr.Deliver(context.Background(), testAccount(models.ProviderSendGrid), testMessage())
	assert.True(t, domain.IsTransport(err))
}

func TestSendGridTransport_MissingKey(t *testing.T) {
	acc := testAccount(models.ProviderSendGrid)
	acc.APIKey = ""
	_, err := NewSendGridTransport("", logger.Nop()).Deliver(context.Background(), acc, testMessage())
	assert.True(t, domain.IsValidation(err))
}

func TestSMTPTransport_Deliver(t *testing.T) {
	tr := NewSMTPTransport(logger.Nop())
	var dialer *gomail.Dialer
	var raw bytes.Buffer
	tr.dial = func(d *gomail.Dialer, m *gomail.Message) error {
		dialer = d
		_, err := m.WriteTo(&raw)
		return err
	}

	acc := testAccount(models.ProviderSMTP)
	acc.SMTPUseTLS = true
	id, err := tr.Deliver(context.Background(), acc, testMessage())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(id, "<"))
	assert.True(t, strings.HasSuffix(id, "@leadflow.de>"))
	assert.Equal(t, "smtp.leadflow.de", dialer.Host)
	assert.Equal(t, defaultSMTPPort, dialer.Port)
	require.NotNil(t, dialer.TLSConfig)

	mail := raw.String()
	assert.Contains(t, mail, "Subject: Hallo")
	assert.Contains(t, mail, "Message-ID: "+id)
	assert.Contains(t, mail, "<p>Hi</p>")
}

func TestSMTPTransport_Failures(t *testing.T) {
	tr := NewSMTPTransport(logger.Nop())
	tr.dial = func(d *gomail.Dialer, m *gomail.Message) error {
		return errors.New("connection refused")
	}

	_, err := tr.Deliver(context.Background(), testAccount(models.ProviderSMTP), testMessage())
	assert.True(t, domain.IsTransport(err))

	acc := testAccount(models.ProviderSMTP)
	acc.SMTPHost = ""
	_, err = tr.Deliver(context.Background(), acc, testMessage())
	assert.True(t, domain.IsValidation(err))
}

func TestNewDefaultRouter(t *testing.T) {
	r := NewDefaultRouter(Endpoints{}, logger.Nop())
	for _, p := range []string{models.ProviderSMTP, models.ProviderSendGrid, models.ProviderSES, models.ProviderConsole} {
		assert.Contains(t, r.transports, p)
		assert.Implements(t, (*Verifier)(nil), r.transports[p])
	}
}

func TestRouter_Verify(t *testing.T) {
	r := NewRouter().
		Register(models.ProviderConsole, NewConsoleTransport(logger.Nop())).
		Register("plain", TransportFunc(func(ctx context.Context, acc *models.EmailAccount, msg Message) (string, error) {
			return "", nil
		}))

	v, err := r.Verify(context.Background(), testAccount(models.ProviderConsole))
	require.NoError(t, err)
	assert.Equal(t, models.ProviderConsole, v.Provider)

	_, err = r.Verify(context.Background(), testAccount("plain"))
	assert.True(t, domain.IsValidation(err))

	_, err = r.Verify(context.Background(), testAccount("pigeon"))
	assert.True(t, domain.IsValidation(err))
}

func TestSMTPTransport_Verify(t *testing.T) {
	tr := NewSMTPTransport(logger.Nop())
	var dialer *gomail.Dialer
	tr.connect = func(d *gomail.Dialer) error {
		dialer = d
		return nil
	}

	acc := testAccount(models.ProviderSMTP)
	acc.SMTPPort = 465
	acc.SMTPUser = "vertrieb"
	acc.SMTPPassword = "geheim"
	v, err := tr.Verify(context.Background(), acc)
	require.NoError(t, err)
	assert.Equal(t, "SMTP connection to smtp.leadflow.de:465 succeeded", v.Message)
	assert.Equal(t, "geheim", dialer.Password)

	tr.connect = func(d *gomail.Dialer) error { return errors.New("535 authentication failed") }
	_, err = tr.Verify(context.Background(), acc)
	assert.True(t, domain.IsTransport(err))

	acc.SMTPHost = ""
	_, err = tr.Verify(context.Background(), acc)
	assert.True(t, domain.IsValidation(err))
}

func TestSendGridTransport_Verify(t *testing.T) {
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/scopes", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "Bearer SG.test-key", r.Header.Get("Authorization"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"scopes":["mail.send"]}`))
	}))
	defer srv.Close()

	tr := NewSendGridTransport(srv.URL, logger.Nop())
	v, err := tr.Verify(context.Background(), testAccount(models.ProviderSendGrid))
	require.NoError(t, err)
	assert.Equal(t, models.ProviderSendGrid, v.Provider)

	status = http.StatusUnauthorized
	_, err = tr.Verify(context.Background(), testAccount(models.ProviderSendGrid))
	assert.True(t, domain.IsTransport(err))
}

func sesAccount() *models.EmailAccount {
	acc := testAccount(models.ProviderSES)
	acc.SESAccessKey = "AKIATESTKEY"
	acc.SESSecretKey = "test-secret"
	acc.SESRegion = "eu-central-1"
	return acc
}

func TestSESTransport_Deliver(t *testing.T) {
	var got map[string]interface{}
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/email/outbound-emails", r.URL.Path)
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"MessageId":"ses-0100018f"}`))
	}))
	defer srv.Close()

	tr := NewSESTransport(srv.URL, logger.Nop())
	id, err := tr.Deliver(context.Background(), sesAccount(), testMessage())
	require.NoError(t, err)

	assert.Equal(t, "ses-0100018f", id)
	assert.Contains(t, auth, "Credential=AKIATESTKEY/")
	assert.Contains(t, auth, "/eu-central-1/ses/aws4_request")
	assert.Equal(t, `"Leadflow Vertrieb" <vertrieb@leadflow.de>`, got["FromEmailAddress"])

	content := got["Content"].(map[string]interface{})["Simple"].(map[string]interface{})
	assert.Equal(t, "Hallo", content["Subject"].(map[string]interface{})["Data"])
	assert.Equal(t, "<p>Hi</p>", content["Body"].(map[string]interface{})["Html"].(map[string]interface{})["Data"])
}

func TestSESTransport_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Amzn-ErrorType", "MessageRejected")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"Email address is not verified."}`))
	}))
	defer srv.Close()

	_, err := NewSESTransport(srv.URL, logger.Nop()).Deliver(context.Background(), sesAccount(), testMessage())
	assert.True(t, domain.IsTransport(err))
}

func TestSESTransport_MissingCredentials(t *testing.T) {
	tr := NewSESTransport("http://127.0.0.1:1", logger.Nop())

	acc := sesAccount()
	acc.SESSecretKey = ""
	_, err := tr.Deliver(context.Background(), acc, testMessage())
	assert.True(t, domain.IsValidation(err))

	acc = sesAccount()
	acc.SESRegion = ""
	_, err = tr.Verify(context.Background(), acc)
	assert.True(t, domain.IsValidation(err))
}

func TestSESTransport_Verify(t *testing.T) {
	sending := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v2/email/account", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"ProductionAccessEnabled": true,
			"SendingEnabled":          sending,
			"EnforcementStatus":       "HEALTHY",
			"SendQuota": map[string]float64{
				"Max24HourSend":   50000,
				"MaxSendRate":     14,
				"SentLast24Hours": 120,
			},
		})
	}))
	defer srv.Close()

	tr := NewSESTransport(srv.URL, logger.Nop())
	v, err := tr.Verify(context.Background(), sesAccount())
	require.NoError(t, err)
	require.NotNil(t, v.ProductionAccess)
	assert.True(t, *v.ProductionAccess)
	assert.Equal(t, float64(50000), v.Max24HourSend)
	assert.Equal(t, float64(14), v.MaxSendRate)
	assert.Equal(t, "HEALTHY", v.EnforcementStatus)

	sending = false
	v, err = tr.Verify(context.Background(), sesAccount())
	assert.True(t, domain.IsTransport(err))
	require.NotNil(t, v)
	assert.Equal(t, float64(120), v.SentLast24Hours)
}
