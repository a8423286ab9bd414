package mqtt

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/carbonlane/core/lane"
)

// generateCert writes a self-signed certificate usable as cert and CA.
func generateCert(t *testing.T) (certFile, keyFile, caFile string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := x509.Certificate{SerialNumber: big.NewInt(1), Subject: pkix.Name{CommonName: "test"}, NotBefore: time.Now(), NotAfter: time.Now().Add(time.Hour)}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	require.NoError(t, err)
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})

	dir := t.TempDir()
	certFile, keyFile, caFile = dir+"/cert.pem", dir+"/key.pem", dir+"/ca.pem"
	require.NoError(t, os.WriteFile(certFile, certPEM, 0o644))
	require.NoError(t, os.WriteFile(keyFile, keyPEM, 0o644))
	require.NoError(t, os.WriteFile(caFile, certPEM, 0o644))
	return
}

func TestLoadTLSConfig(t *testing.T) {
	cert, key, ca := generateCert(t)
	tlsCfg, err := Config{UseTLS: true, ClientCert: cert, ClientKey: key, CABundle: ca}.LoadTLSConfig()
	require.NoError(t, err)
	assert.NotEmpty(t, tlsCfg.Certificates)
	assert.NotNil(t, tlsCfg.RootCAs)

	_, err = Config{UseTLS: true}.LoadTLSConfig()
	assert.Error(t, err)
}

func TestNewClientOptionsAuth(t *testing.T) {
	opts, err := NewClientOptions(Config{Broker: "tcp://localhost:1883", ClientID: "id", Username: "u", Password: "p"})
	require.NoError(t, err)
	assert.Equal(t, "u", opts.Username)
	assert.Equal(t, "p", opts.Password)
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	var c Config
	c.SetDefaults()
	assert.Equal(t, "carbonlane/detections", c.Topic)
	assert.Contains(t, c.ClientID, "carbonlane-")
	assert.False(t, c.Enabled())
	require.NoError(t, c.Validate())

	c.Broker = "tcp://localhost:1883"
	c.QoS = 3
	assert.Error(t, c.Validate())
}

func newSimulator(t *testing.T) (*lane.Simulator, *lane.MemoryStore) {
	t.Helper()
	st := lane.NewMemoryStore()
	sim, err := lane.NewSimulator(st)
	require.NoError(t, err)
	return sim, st
}

func TestApplyDetections(t *testing.T) {
	sim, st := newSimulator(t)
	sub, err := NewDetectionSubscriber(Config{}, sim)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, sub.Apply(ctx, []byte(`{"action":"enter","plate":"ABC1234"}`)))
	require.NoError(t, sub.Apply(ctx, []byte(`{"action":"ENTER","plate":""}`)))
	n, err := st.CountOpen(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, sub.Apply(ctx, []byte(`{"action":"exit"}`)))
	closed, err := st.QueryClosed(ctx, lane.ClosedFilter{})
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, "ABC1234", closed[0].Plate)

	assert.Error(t, sub.Apply(ctx, []byte(`not json`)))
	assert.ErrorIs(t, sub.Apply(ctx, []byte(`{"action":"honk"}`)), lane.ErrInvalidInput)
	require.NoError(t, sub.Apply(ctx, []byte(`{"action":"exit"}`)))
	assert.ErrorIs(t, sub.Apply(ctx, []byte(`{"action":"exit"}`)), lane.ErrNoOpenEntry)
}

func TestNewDetectionSubscriberRequiresLane(t *testing.T) {
	_, err := NewDetectionSubscriber(Config{}, nil)
	assert.Error(t, err)
}

func TestRunSubscribesAndHandlesMessages(t *testing.T) {
	mc := &mockClient{}
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	defer func() { newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) } }()

	sim, st := newSimulator(t)
	sub, err := NewDetectionSubscriber(Config{Broker: "tcp://localhost:1883", Topic: "lane/1", QoS: 1}, sim)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx) }()

	require.Eventually(t, func() bool { return mc.handler() != nil }, time.Second, 5*time.Millisecond)
	topic, qos := mc.subscription()
	assert.Equal(t, "lane/1", topic)
	assert.Equal(t, byte(1), qos)

	h := mc.handler()
	h(mc, mockMessage{p: []byte(`{"action":"enter","plate":"XYZ5678"}`)})
	h(mc, mockMessage{p: []byte(`garbage`)})
	n, err := st.CountOpen(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.True(t, mc.disconnected())
}

// mockClient implements paho.Client for tests.
type mockClient struct {
	opts *paho.ClientOptions

	mu    sync.Mutex
	topic string
	qos   byte
	h     paho.MessageHandler
	disc  bool
}

func (m *mockClient) handler() paho.MessageHandler {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.h
}

func (m *mockClient) subscription() (string, byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.topic, m.qos
}

func (m *mockClient) disconnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disc
}

func (m *mockClient) IsConnected() bool { return true }
func (m *mockClient) Connect() paho.Token {
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(m)
	}
	return &dummyToken{}
}
func (m *mockClient) Disconnect(uint) {
	m.mu.Lock()
	m.disc = true
	m.mu.Unlock()
}
func (m *mockClient) Publish(string, byte, bool, interface{}) paho.Token { return &dummyToken{} }
func (m *mockClient) Subscribe(topic string, qos byte, h paho.MessageHandler) paho.Token {
	m.mu.Lock()
	m.topic, m.qos, m.h = topic, qos, h
	m.mu.Unlock()
	return &dummyToken{}
}
func (m *mockClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return &dummyToken{}
}
func (m *mockClient) Unsubscribe(...string) paho.Token        { return &dummyToken{} }
func (m *mockClient) AddRoute(string, paho.MessageHandler)    {}
func (m *mockClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }
func (m *mockClient) IsConnectionOpen() bool                  { return true }

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }

type mockMessage struct{ p []byte }

func (m mockMessage) Duplicate() bool   { return false }
func (m mockMessage) Qos() byte         { return 0 }
func (m mockMessage) Retained() bool    { return false }
func (m mockMessage) Topic() string     { return "lane/1" }
func (m mockMessage) MessageID() uint16 { return 0 }
func (m mockMessage) Payload() []byte   { return m.p }
func (m mockMessage) Ack()              {}
