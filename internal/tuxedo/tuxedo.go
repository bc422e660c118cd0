package tuxedo

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tuxedo2mqtt/internal/log"
	"tuxedo2mqtt/internal/types"
)

const basePath = "/system_http_api/API_REV01"

const (
	endpointStatus = "/GetSecurityStatus"
	endpointArm    = "/AdvancedSecurity/ArmWithCode"
	endpointDisarm = "/AdvancedSecurity/DisarmWithCode"
)

// Options configures the HTTP transport to the panel.
type Options struct {
	Timeout time.Duration
	// SkipCertificateValidation disables server certificate checks. The
	// panel presents a self-signed certificate on the local network; anyone
	// operating across a hostile network must tunnel instead.
	SkipCertificateValidation bool
}

// Tuxedo speaks the Tuxedo Touch encrypted HTTP API. Every request is a
// single blocking POST; the panel has no push channel. The client keeps no
// mutable state, so it is safe for concurrent use.
type Tuxedo struct {
	log     *log.Logger
	cipher  *Cipher
	client  *http.Client
	baseURL string
	keyHex  string
	ivHex   string
}

func NewTuxedo(host, keyHex, ivHex string, opts Options, logger *log.Logger) (*Tuxedo, error) {
	c, err := NewCipher(keyHex, ivHex)
	if err != nil {
		return nil, fmt.Errorf("failed to build cipher: %v", err)
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Tuxedo{
		log:    logger,
		cipher: c,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: opts.SkipCertificateValidation},
			},
		},
		baseURL: fmt.Sprintf("https://%s%s", host, basePath),
		keyHex:  keyHex,
		ivHex:   ivHex,
	}, nil
}

// GetSecurityStatus returns the panel's raw status string.
func (t *Tuxedo) GetSecurityStatus(ctx context.Context) (string, error) {
	payload, err := t.postRequest(ctx, endpointStatus, url.Values{
		"operation": {"get"},
	})
	if err != nil {
		return "", err
	}

	status, ok := payload["Status"].(string)
	if !ok {
		return "", fmt.Errorf("%w: response has no Status field", ErrMalformedCiphertext)
	}
	return status, nil
}

// Arm sends an arm command with the given entry code. The caller is
// responsible for resolving the code and for the settle delay afterwards.
func (t *Tuxedo) Arm(ctx context.Context, mode types.ArmMode, code string) error {
	payload, err := t.postRequest(ctx, endpointArm, url.Values{
		"arming":    {armingValue(mode)},
		"pID":       {"1"},
		"ucode":     {code},
		"operation": {"set"},
	})
	if err != nil {
		return err
	}

	t.log.Debug("Arm %s acknowledged: %v", mode, payload)
	return nil
}

// Disarm sends a disarm command with the given entry code.
func (t *Tuxedo) Disarm(ctx context.Context, code string) error {
	payload, err := t.postRequest(ctx, endpointDisarm, url.Values{
		"pID":       {"1"},
		"ucode":     {code},
		"operation": {"set"},
	})
	if err != nil {
		return err
	}

	t.log.Debug("Disarm acknowledged: %v", payload)
	return nil
}

func (t *Tuxedo) postRequest(ctx context.Context, endpoint string, params url.Values) (map[string]interface{}, error) {
	encrypted, err := t.cipher.EncryptParams(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt request: %v", err)
	}

	form := url.Values{"param": {encrypted}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("authtoken", t.keyHex)
	req.Header.Set("identity", t.ivHex)

	t.log.Debug("POST %s params %v", endpoint, redact(params))
	resp, err := t.client.Do(req)
	if err != nil {
		// Covers refused connections, DNS failures, client timeout and
		// context cancellation. The command may or may not have landed.
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{Endpoint: endpoint, StatusCode: resp.StatusCode}
	}

	var envelope struct {
		Result string `json:"Result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("%w: envelope parse: %v", ErrMalformedCiphertext, err)
	}
	if envelope.Result == "" {
		return nil, fmt.Errorf("%w: endpoint %s", ErrEmptyResult, endpoint)
	}

	return t.cipher.DecryptParams(envelope.Result)
}

// armingValue maps an ArmMode to the panel's wire name.
func armingValue(mode types.ArmMode) string {
	switch mode {
	case types.ArmModeHome:
		return "STAY"
	case types.ArmModeNight:
		return "NIGHT"
	default:
		return "AWAY"
	}
}

// redact hides the entry code in debug logs.
func redact(params url.Values) url.Values {
	if params.Get("ucode") == "" {
		return params
	}
	clean := url.Values{}
	for k, v := range params {
		clean[k] = v
	}
	clean.Set("ucode", "****")
	return clean
}
