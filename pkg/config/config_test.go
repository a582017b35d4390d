package config_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maczac150/RingOA-dev-sub002/pkg/config"
	"github.com/maczac150/RingOA-dev-sub002/pkg/party"
)

func validSession() config.Session {
	return config.Session{
		ID:              party.P0,
		Host:            "127.0.0.1",
		BasePort:        9000,
		DialTimeout:     5 * time.Second,
		SessionNonce:    []byte("session-nonce"),
		DatabaseBitsize: 8,
		Sigma:           2,
		QuerySize:       4,
	}
}

func TestSessionCreation(t *testing.T) {
	s := validSession()
	assert.Equal(t, party.P0, s.ID)
	assert.Equal(t, 9000, s.BasePort)
	assert.NoError(t, s.Validate())
}

func TestSessionValidation(t *testing.T) {
	testCases := []struct {
		name      string
		mutate    func(s config.Session) config.Session
		expectErr bool
	}{
		{name: "valid session", mutate: func(s config.Session) config.Session { return s }, expectErr: false},
		{name: "invalid party id", mutate: func(s config.Session) config.Session { s.ID = party.ID(5); return s }, expectErr: true},
		{name: "missing host", mutate: func(s config.Session) config.Session { s.Host = ""; return s }, expectErr: true},
		{name: "zero base port", mutate: func(s config.Session) config.Session { s.BasePort = 0; return s }, expectErr: true},
		{name: "zero dial timeout", mutate: func(s config.Session) config.Session { s.DialTimeout = 0; return s }, expectErr: true},
		{name: "missing session nonce", mutate: func(s config.Session) config.Session { s.SessionNonce = nil; return s }, expectErr: true},
		{name: "zero database bitsize", mutate: func(s config.Session) config.Session { s.DatabaseBitsize = 0; return s }, expectErr: true},
		{name: "zero sigma", mutate: func(s config.Session) config.Session { s.Sigma = 0; return s }, expectErr: true},
		{name: "quantile-only session (query size zero)", mutate: func(s config.Session) config.Session { s.QuerySize = 0; return s }, expectErr: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.mutate(validSession()).Validate()
			if tc.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSessionDerivedParams(t *testing.T) {
	s := validSession()

	qp, err := s.QuantileParams()
	require.NoError(t, err)
	assert.EqualValues(t, s.DatabaseBitsize, qp.DatabaseBitsize)
	assert.EqualValues(t, s.Sigma, qp.Sigma)

	fp, err := s.FMIParams()
	require.NoError(t, err)
	assert.EqualValues(t, s.QuerySize, fp.QuerySize)
}

func TestSessionCopyIsDeep(t *testing.T) {
	s := validSession()
	cp := s.Copy()
	cp.SessionNonce[0] ^= 0xFF
	assert.NotEqual(t, s.SessionNonce, cp.SessionNonce)
}

func TestSessionMarshalRoundTrip(t *testing.T) {
	s := validSession()
	buf, err := s.Marshal()
	require.NoError(t, err)

	got, err := config.Unmarshal(buf)
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestSessionSaveLoadRoundTrip(t *testing.T) {
	s := validSession()
	path := filepath.Join(t.TempDir(), "session.key.bin")

	require.NoError(t, s.Save(path))
	got, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, s, got)
}
