package sctp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func establishAssociationPair(t *testing.T) (client, server *Association) {
	t.Helper()
	now := time.Now()

	client, err := NewAssociation(Config{IsClient: true, LocalPort: 5000, RemotePort: 5000})
	require.NoError(t, err)
	server, err = NewAssociation(Config{IsClient: false, LocalPort: 5000, RemotePort: 5000})
	require.NoError(t, err)

	initRaw, err := client.Start()
	require.NoError(t, err)
	require.Equal(t, StateCookieWait, client.State())

	out, delivered, err := server.HandleIngress(initRaw, now)
	require.NoError(t, err)
	require.Empty(t, delivered)
	require.Len(t, out, 1)

	out, _, err = client.HandleIngress(out[0], now)
	require.NoError(t, err)
	require.Equal(t, StateCookieEchoed, client.State())
	require.Len(t, out, 1)

	out, _, err = server.HandleIngress(out[0], now)
	require.NoError(t, err)
	require.Equal(t, StateEstablished, server.State())
	require.Len(t, out, 1)

	_, _, err = client.HandleIngress(out[0], now)
	require.NoError(t, err)
	require.Equal(t, StateEstablished, client.State())

	return client, server
}

func TestAssociationHandshakeEstablishes(t *testing.T) {
	client, server := establishAssociationPair(t)
	assert.Equal(t, StateEstablished, client.State())
	assert.Equal(t, StateEstablished, server.State())
}

func TestAssociationSendAndDeliver(t *testing.T) {
	client, server := establishAssociationPair(t)
	now := time.Now()

	packets, err := client.Send(0, PPIDString, []byte("hello"), false, now)
	require.NoError(t, err)
	require.Len(t, packets, 1)

	outbound, delivered, err := server.HandleIngress(packets[0], now)
	require.NoError(t, err)
	require.Len(t, delivered, 1)
	assert.Equal(t, []byte("hello"), delivered[0].Data)
	assert.Equal(t, PPIDString, delivered[0].PPID)
	require.Len(t, outbound, 1) // SACK

	_, _, err = client.HandleIngress(outbound[0], now)
	require.NoError(t, err)
	assert.Equal(t, 0, client.retransmitQ.Count())
}

func TestAssociationFragmentsLargeMessages(t *testing.T) {
	client, server := establishAssociationPair(t)
	now := time.Now()

	payload := make([]byte, fragmentPayloadSize*2+10)
	for i := range payload {
		payload[i] = byte(i)
	}

	packets, err := client.Send(1, PPIDBinary, payload, false, now)
	require.NoError(t, err)
	require.Len(t, packets, 3)

	var delivered []AssembledMessage
	for _, pkt := range packets {
		_, msgs, err := server.HandleIngress(pkt, now)
		require.NoError(t, err)
		delivered = append(delivered, msgs...)
	}
	require.Len(t, delivered, 1)
	assert.Equal(t, payload, delivered[0].Data)
}

func TestAssociationShutdownSequence(t *testing.T) {
	client, server := establishAssociationPair(t)
	now := time.Now()

	shutdownRaw, err := client.Shutdown()
	require.NoError(t, err)
	assert.Equal(t, StateShutdownSent, client.State())

	out, _, err := server.HandleIngress(shutdownRaw, now)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, StateShutdownAckSent, server.State())

	out, _, err = client.HandleIngress(out[0], now)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, StateClosed, client.State())

	_, _, err = server.HandleIngress(out[0], now)
	require.NoError(t, err)
	assert.Equal(t, StateClosed, server.State())
}

func TestAssociationAbortClosesImmediately(t *testing.T) {
	client, _ := establishAssociationPair(t)
	raw, err := client.Abort("peer misbehaved")
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
	assert.Equal(t, StateClosed, client.State())
	assert.Error(t, client.LastError())
}

func TestAssociationSendBeforeEstablishedFails(t *testing.T) {
	client, err := NewAssociation(Config{IsClient: true})
	require.NoError(t, err)
	_, err = client.Send(0, PPIDString, []byte("x"), false, time.Now())
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestAssociationTickRetransmitsAfterRTO(t *testing.T) {
	client, server := establishAssociationPair(t)
	now := time.Now()

	packets, err := client.Send(0, PPIDString, []byte("retry-me"), false, now)
	require.NoError(t, err)
	require.Len(t, packets, 1)

	due, err := client.HandleTimerTick(now.Add(10 * time.Second))
	require.NoError(t, err)
	require.Len(t, due, 1)

	_, delivered, err := server.HandleIngress(due[0], now)
	require.NoError(t, err)
	require.Len(t, delivered, 1)
	assert.Equal(t, []byte("retry-me"), delivered[0].Data)
}
