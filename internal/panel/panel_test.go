package panel

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tuxedo2mqtt/internal/config"
	"tuxedo2mqtt/internal/log"
	"tuxedo2mqtt/internal/tuxedo"
	"tuxedo2mqtt/internal/types"
)

const (
	testKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	testIVHex  = "202122232425262728292a2b2c2d2e2f"
)

func testCrypto(t *testing.T) (cipher.Block, []byte) {
	t.Helper()
	key, err := hex.DecodeString(testKeyHex)
	require.NoError(t, err)
	iv, err := hex.DecodeString(testIVHex)
	require.NoError(t, err)
	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	return block, iv
}

func encryptJSON(t *testing.T, v interface{}) string {
	t.Helper()
	block, iv := testCrypto(t)

	data, err := json.Marshal(v)
	require.NoError(t, err)
	n := aes.BlockSize - len(data)%aes.BlockSize
	data = append(data, bytes.Repeat([]byte{byte(n)}, n)...)

	out := make([]byte, len(data))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, data)
	return base64.StdEncoding.EncodeToString(out)
}

func decryptForm(t *testing.T, blob string) url.Values {
	t.Helper()
	block, iv := testCrypto(t)

	raw, err := base64.StdEncoding.DecodeString(blob)
	require.NoError(t, err)
	require.Zero(t, len(raw)%aes.BlockSize)

	plain := make([]byte, len(raw))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, raw)
	n := int(plain[len(plain)-1])
	require.True(t, n > 0 && n <= aes.BlockSize)
	params, err := url.ParseQuery(string(plain[:len(plain)-n]))
	require.NoError(t, err)
	return params
}

// fakePanel is an encrypted HTTP stub of the Tuxedo Touch API. Arm and
// disarm commands update the status it reports, mimicking the real panel's
// post-settle behavior.
type fakePanel struct {
	t          *testing.T
	mu         sync.Mutex
	status     string
	statusCode int
	rawResult  string // overrides the encrypted envelope when set
	armParams  []url.Values
	calls      int
}

func (f *fakePanel) handler(w http.ResponseWriter, r *http.Request) {
	require.NoError(f.t, r.ParseForm())
	params := decryptForm(f.t, r.FormValue("param"))

	f.mu.Lock()
	f.calls++
	if f.statusCode != 0 && f.statusCode != http.StatusOK {
		code := f.statusCode
		f.mu.Unlock()
		w.WriteHeader(code)
		return
	}

	var result string
	switch {
	case strings.HasSuffix(r.URL.Path, "/GetSecurityStatus"):
		if f.rawResult != "" {
			result = f.rawResult
		} else {
			result = encryptJSON(f.t, map[string]string{"Status": f.status})
		}
	case strings.HasSuffix(r.URL.Path, "/ArmWithCode"):
		f.armParams = append(f.armParams, params)
		switch params.Get("arming") {
		case "STAY":
			f.status = "Armed Stay"
		case "NIGHT":
			f.status = "Armed Instant"
		default:
			f.status = "Armed Away"
		}
		result = encryptJSON(f.t, map[string]string{"Result": "Success"})
	case strings.HasSuffix(r.URL.Path, "/DisarmWithCode"):
		f.armParams = append(f.armParams, params)
		f.status = "Ready To Arm"
		result = encryptJSON(f.t, map[string]string{"Result": "Success"})
	}
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"Result": result})
}

func (f *fakePanel) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestPanel(t *testing.T, fake *fakePanel, defaultCode string) *Panel {
	t.Helper()
	ts := httptest.NewTLSServer(http.HandlerFunc(fake.handler))
	t.Cleanup(ts.Close)

	skip := true
	cfg := &config.Config{
		Tuxedo: config.TuxedoConfig{
			Host:                      strings.TrimPrefix(ts.URL, "https://"),
			APIKey:                    testKeyHex,
			APIIV:                     testIVHex,
			Code:                      defaultCode,
			PollInterval:              30,
			Timeout:                   5,
			SkipCertificateValidation: &skip,
		},
	}

	p, err := NewPanel(cfg, log.NewDiscard())
	require.NoError(t, err)
	p.settle = 10 * time.Millisecond
	return p
}

func TestArmWithoutAnyCode(t *testing.T) {
	fake := &fakePanel{t: t, status: "Ready To Arm"}
	p := newTestPanel(t, fake, "")

	err := p.Arm(context.Background(), types.ArmModeAway, "")
	assert.ErrorIs(t, err, tuxedo.ErrMissingCode)

	err = p.Disarm(context.Background(), "")
	assert.ErrorIs(t, err, tuxedo.ErrMissingCode)

	// The command must fail locally, before any network call.
	assert.Zero(t, fake.callCount())
}

func TestGetStatusInterpretation(t *testing.T) {
	fake := &fakePanel{t: t, status: "Armed Away"}
	p := newTestPanel(t, fake, "1234")

	assert.Equal(t, types.AlarmStateArmedAway, p.GetStatus(context.Background()))

	fake.mu.Lock()
	fake.status = "45 Secs Remaining"
	fake.mu.Unlock()
	assert.Equal(t, types.AlarmStateArming, p.GetStatus(context.Background()))

	state, raw := p.State()
	assert.Equal(t, types.AlarmStateArming, state)
	assert.Equal(t, "45 Secs Remaining", raw)
}

func TestGetStatusDegradesOnHTTPError(t *testing.T) {
	fake := &fakePanel{t: t, status: "Armed Away"}
	p := newTestPanel(t, fake, "1234")

	assert.Equal(t, types.AlarmStateArmedAway, p.GetStatus(context.Background()))

	fake.mu.Lock()
	fake.statusCode = http.StatusInternalServerError
	fake.mu.Unlock()
	assert.Equal(t, types.AlarmStateUnavailable, p.GetStatus(context.Background()))

	// Recovers to the true state on the next successful poll
	fake.mu.Lock()
	fake.statusCode = http.StatusOK
	fake.mu.Unlock()
	assert.Equal(t, types.AlarmStateArmedAway, p.GetStatus(context.Background()))
}

func TestGetStatusDegradesOnCorruptCiphertext(t *testing.T) {
	fake := &fakePanel{t: t, rawResult: "AAAA"}
	p := newTestPanel(t, fake, "1234")

	assert.Equal(t, types.AlarmStateUnavailable, p.GetStatus(context.Background()))
}

func TestGetStatusDegradesWhenUnreachable(t *testing.T) {
	skip := true
	cfg := &config.Config{
		Tuxedo: config.TuxedoConfig{
			Host:                      "127.0.0.1:1",
			APIKey:                    testKeyHex,
			APIIV:                     testIVHex,
			PollInterval:              30,
			Timeout:                   1,
			SkipCertificateValidation: &skip,
		},
	}
	p, err := NewPanel(cfg, log.NewDiscard())
	require.NoError(t, err)

	assert.Equal(t, types.AlarmStateUnavailable, p.GetStatus(context.Background()))
}

func TestArmSurfacesHTTPError(t *testing.T) {
	fake := &fakePanel{t: t, statusCode: http.StatusInternalServerError}
	p := newTestPanel(t, fake, "1234")

	err := p.Arm(context.Background(), types.ArmModeAway, "")
	var httpErr *tuxedo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)
}

func TestArmHomeSettlesThenReportsArmedHome(t *testing.T) {
	fake := &fakePanel{t: t, status: "Ready To Arm"}
	p := newTestPanel(t, fake, "")

	require.NoError(t, p.Arm(context.Background(), types.ArmModeHome, "1234"))

	// Arm waits the settle delay and refreshes once, so the interpreted
	// state already reflects the panel's post-command status.
	state, raw := p.State()
	assert.Equal(t, types.AlarmStateArmedHome, state)
	assert.Equal(t, "Armed Stay", raw)

	fake.mu.Lock()
	require.Len(t, fake.armParams, 1)
	assert.Equal(t, "STAY", fake.armParams[0].Get("arming"))
	assert.Equal(t, "1234", fake.armParams[0].Get("ucode"))
	assert.Equal(t, "1", fake.armParams[0].Get("pID"))
	assert.Equal(t, "set", fake.armParams[0].Get("operation"))
	fake.mu.Unlock()
}

func TestDisarmUsesDefaultCode(t *testing.T) {
	fake := &fakePanel{t: t, status: "Armed Away"}
	p := newTestPanel(t, fake, "9999")

	require.NoError(t, p.Disarm(context.Background(), ""))

	state, _ := p.State()
	assert.Equal(t, types.AlarmStateDisarmed, state)

	fake.mu.Lock()
	require.Len(t, fake.armParams, 1)
	assert.Equal(t, "9999", fake.armParams[0].Get("ucode"))
	assert.Empty(t, fake.armParams[0].Get("arming"))
	fake.mu.Unlock()
}

func TestCallCodeOverridesDefault(t *testing.T) {
	fake := &fakePanel{t: t, status: "Ready To Arm"}
	p := newTestPanel(t, fake, "9999")

	require.NoError(t, p.Arm(context.Background(), types.ArmModeNight, "1111"))

	fake.mu.Lock()
	require.Len(t, fake.armParams, 1)
	assert.Equal(t, "1111", fake.armParams[0].Get("ucode"))
	assert.Equal(t, "NIGHT", fake.armParams[0].Get("arming"))
	fake.mu.Unlock()

	state, _ := p.State()
	assert.Equal(t, types.AlarmStateArmedNight, state)
}

func TestStateChangeEmitsEvent(t *testing.T) {
	fake := &fakePanel{t: t, status: "Armed Away"}
	p := newTestPanel(t, fake, "1234")

	p.GetStatus(context.Background())

	select {
	case event := <-p.Events():
		assert.Equal(t, types.AlarmStateArmedAway, event.State)
		assert.Equal(t, "Armed Away", event.RawStatus)
	case <-time.After(time.Second):
		t.Fatal("expected a state event")
	}

	// Same state again, no new event
	p.GetStatus(context.Background())
	select {
	case event := <-p.Events():
		t.Fatalf("unexpected event: %+v", event)
	default:
	}
}

func TestCachedDataRoundTrip(t *testing.T) {
	fake := &fakePanel{t: t, status: "Armed Away"}
	p := newTestPanel(t, fake, "1234")

	p.SetCachedData(&types.CacheData{
		State:     types.AlarmStateArmedHome,
		RawStatus: "Armed Stay",
	})

	state, raw := p.State()
	assert.Equal(t, types.AlarmStateArmedHome, state)
	assert.Equal(t, "Armed Stay", raw)

	data := p.GetCacheableData()
	assert.Equal(t, types.AlarmStateArmedHome, data.State)
}
