package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T, cfg SessionConfig) (*Session, *fakeFacade, *recordingSink) {
	t.Helper()
	facade := newFakeFacade()
	sink := &recordingSink{}
	sess := newSession("sess-1", facade, cfg, sink.Publish)
	return sess, facade, sink
}

func TestConnectIsIdempotent(t *testing.T) {
	sess, facade, _ := newTestSession(t, testSessionConfig())

	require.NoError(t, sess.Connect(context.Background()))
	require.NoError(t, sess.Connect(context.Background()))
	require.NoError(t, sess.Connect(context.Background()))

	assert.Equal(t, 1, facade.dialCount())
	assert.Equal(t, StateConnecting, sess.State())
}

func TestQRMovesToAwaitingAndEmits(t *testing.T) {
	sess, facade, sink := newTestSession(t, testSessionConfig())
	require.NoError(t, sess.Connect(context.Background()))

	facade.handler(0)(QRIssued{Code: "2@abcdef"})

	assert.Equal(t, StateAwaitingQR, sess.State())
	assert.Equal(t, "connecting", sess.EffectiveStatus())

	qrEvents := sink.byType(EventQR)
	require.Len(t, qrEvents, 1)
	assert.Equal(t, "2@abcdef", qrEvents[0].Data.(QRData).Code)

	// QR berulang tidak memicu dial baru
	facade.handler(0)(QRIssued{Code: "2@ghijkl"})
	assert.Equal(t, 1, facade.dialCount())
}

func TestOpenResetsAttempts(t *testing.T) {
	sess, facade, _ := newTestSession(t, testSessionConfig())
	require.NoError(t, sess.Connect(context.Background()))

	facade.handler(0)(ConnectionClosed{Code: CodeConnectionClosed, Message: "conn lost"})
	assert.Equal(t, 1, sess.ReconnectAttempts())
	assert.Equal(t, StateConnecting, sess.State())

	require.Eventually(t, func() bool { return facade.dialCount() == 2 }, time.Second, time.Millisecond)

	facade.handler(1)(ConnectionOpen{})
	assert.Equal(t, StateOpen, sess.State())
	assert.Equal(t, 0, sess.ReconnectAttempts())
	assert.Equal(t, "open", sess.EffectiveStatus())
}

func TestLoggedOutIsTerminalAndWipesCredentials(t *testing.T) {
	sess, facade, _ := newTestSession(t, testSessionConfig())
	require.NoError(t, sess.Connect(context.Background()))

	facade.handler(0)(ConnectionClosed{Code: CodeLoggedOut, Message: "logged out"})

	assert.Equal(t, StateDisconnected, sess.State())
	assert.Equal(t, []string{"sess-1"}, facade.erasedSessions())

	// tidak ada auto-reconnect setelah terminal close
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, facade.dialCount())
	assert.False(t, sess.InsecureActive())
}

func TestStreamReplacedIsTerminalButKeepsCredentials(t *testing.T) {
	sess, facade, _ := newTestSession(t, testSessionConfig())
	require.NoError(t, sess.Connect(context.Background()))

	facade.handler(0)(ConnectionClosed{Code: CodeStreamReplaced, Message: "stream replaced"})

	assert.Equal(t, StateDisconnected, sess.State())
	assert.Empty(t, facade.erasedSessions())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, facade.dialCount())
}

func TestRestartRequiredRetriesWithoutCountingAttempt(t *testing.T) {
	sess, facade, _ := newTestSession(t, testSessionConfig())
	require.NoError(t, sess.Connect(context.Background()))

	facade.handler(0)(ConnectionClosed{Code: CodeRestartRequired, Message: "restart required"})

	assert.Equal(t, 0, sess.ReconnectAttempts())
	require.Eventually(t, func() bool { return facade.dialCount() == 2 }, time.Second, time.Millisecond)
	assert.False(t, facade.dialOpts(1).InsecureTLS)
}

func TestCertFailureTriggersOneShotInsecureRetry(t *testing.T) {
	sess, facade, _ := newTestSession(t, testSessionConfig())
	require.NoError(t, sess.Connect(context.Background()))
	assert.False(t, facade.dialOpts(0).InsecureTLS)

	facade.handler(0)(ConnectionClosed{
		Code:    CodeConnectionLost,
		Message: "x509: certificate signed by unknown authority",
	})

	assert.True(t, sess.InsecureActive())
	assert.Equal(t, 0, sess.ReconnectAttempts())

	require.Eventually(t, func() bool { return facade.dialCount() == 2 }, time.Second, time.Millisecond)
	assert.True(t, facade.dialOpts(1).InsecureTLS)

	// open di mode relaxed: flag tetap menyala, attempt counter nol
	facade.handler(1)(ConnectionOpen{})
	assert.Equal(t, StateOpen, sess.State())
	assert.True(t, sess.InsecureActive())
	assert.Equal(t, 0, sess.ReconnectAttempts())
}

func TestCertFailureInInsecureModeFallsBackToTransient(t *testing.T) {
	sess, facade, _ := newTestSession(t, testSessionConfig())
	require.NoError(t, sess.Connect(context.Background()))

	facade.handler(0)(ConnectionClosed{Code: CodeConnectionLost, Message: "unable to get local issuer certificate"})
	require.Eventually(t, func() bool { return facade.dialCount() == 2 }, time.Second, time.Millisecond)

	// cert error kedua saat sudah insecure: tidak toggle lagi, hitung attempt
	facade.handler(1)(ConnectionClosed{Code: CodeConnectionLost, Message: "unable to get local issuer certificate"})
	assert.Equal(t, 1, sess.ReconnectAttempts())
	assert.True(t, sess.InsecureActive())
}

func TestManualDisconnectSuppressesPendingReconnect(t *testing.T) {
	cfg := testSessionConfig()
	cfg.ReconnectDelay = 50 * time.Millisecond
	sess, facade, _ := newTestSession(t, cfg)
	require.NoError(t, sess.Connect(context.Background()))

	facade.handler(0)(ConnectionClosed{Code: CodeConnectionClosed, Message: "conn lost"})
	assert.Equal(t, StateConnecting, sess.State())

	// timer reconnect masih pending, disconnect manual harus membatalkannya
	sess.Disconnect(context.Background(), false)
	assert.Equal(t, StateDisconnected, sess.State())
	assert.Equal(t, "close", sess.EffectiveStatus())

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 1, facade.dialCount())
	assert.False(t, sess.InsecureActive())
}

func TestDisconnectClosesConnBestEffort(t *testing.T) {
	sess, facade, _ := newTestSession(t, testSessionConfig())
	require.NoError(t, sess.Connect(context.Background()))
	facade.handler(0)(ConnectionOpen{})

	sess.Disconnect(context.Background(), false)
	assert.True(t, facade.conn(0).closed)
	assert.False(t, facade.conn(0).loggedOut)

	// connect ulang setelah manual disconnect tetap jalan
	require.NoError(t, sess.Connect(context.Background()))
	assert.Equal(t, 2, facade.dialCount())
}

func TestDisconnectWithLogout(t *testing.T) {
	sess, facade, _ := newTestSession(t, testSessionConfig())
	require.NoError(t, sess.Connect(context.Background()))
	facade.handler(0)(ConnectionOpen{})

	sess.Disconnect(context.Background(), true)
	assert.True(t, facade.conn(0).loggedOut)
	assert.Equal(t, StateDisconnected, sess.State())
}

func TestDialFailureCountsAsTransientClose(t *testing.T) {
	cfg := testSessionConfig()
	cfg.ReconnectDelay = 100 * time.Millisecond
	sess, facade, _ := newTestSession(t, cfg)
	facade.dialErr = errors.New("network is unreachable")

	require.NoError(t, sess.Connect(context.Background()))
	assert.Equal(t, StateConnecting, sess.State())
	assert.Equal(t, 1, sess.ReconnectAttempts())

	sess.Disconnect(context.Background(), false)
}

func inbound(id, chat, text string) InboundMessage {
	return InboundMessage{
		ID:           id,
		ChatJID:      chat,
		SenderJID:    "628111@s.whatsapp.net",
		Kind:         KindText,
		Conversation: text,
		Timestamp:    time.Unix(1700000000, 0),
	}
}

func TestMessagesDedupByID(t *testing.T) {
	sess, facade, sink := newTestSession(t, testSessionConfig())
	require.NoError(t, sess.Connect(context.Background()))
	facade.handler(0)(ConnectionOpen{})

	facade.handler(0)(inbound("m1", "628222@s.whatsapp.net", "halo"))
	facade.handler(0)(inbound("m1", "628222@s.whatsapp.net", "halo"))

	msgs := sess.Messages("628222@s.whatsapp.net")
	require.Len(t, msgs, 1)
	assert.Equal(t, "halo", msgs[0].Text)
	assert.Len(t, sink.byType(EventMessage), 1)
}

func TestChatLogCapDropsOldestFirst(t *testing.T) {
	cfg := testSessionConfig()
	cfg.ChatLogCap = 3
	sess, facade, _ := newTestSession(t, cfg)
	require.NoError(t, sess.Connect(context.Background()))
	facade.handler(0)(ConnectionOpen{})

	for _, id := range []string{"m1", "m2", "m3", "m4", "m5"} {
		facade.handler(0)(inbound(id, "628222@s.whatsapp.net", "pesan "+id))
	}

	msgs := sess.Messages("628222@s.whatsapp.net")
	require.Len(t, msgs, 3)
	assert.Equal(t, "m3", msgs[0].ID)
	assert.Equal(t, "m5", msgs[2].ID)
}

func TestProtocolMessagesAreSkipped(t *testing.T) {
	sess, facade, sink := newTestSession(t, testSessionConfig())
	require.NoError(t, sess.Connect(context.Background()))
	facade.handler(0)(ConnectionOpen{})

	ev := inbound("m1", "628222@s.whatsapp.net", "")
	ev.Kind = KindProtocol
	facade.handler(0)(ev)

	assert.Empty(t, sess.Messages("628222@s.whatsapp.net"))
	assert.Empty(t, sink.byType(EventMessage))
}

func TestLinkedChatConvergesToCanonicalKey(t *testing.T) {
	sess, facade, _ := newTestSession(t, testSessionConfig())
	require.NoError(t, sess.Connect(context.Background()))
	facade.handler(0)(ConnectionOpen{})

	// m1 datang sebelum alternate diketahui: tersimpan di key @lid
	facade.handler(0)(inbound("m1", "12345@lid", "pesan pertama"))
	require.Len(t, sess.Messages("12345@lid"), 1)

	// m2 membawa alternate resolvable: kedua pesan konvergen
	m2 := inbound("m2", "12345@lid", "pesan kedua")
	m2.AltJID = "628333@s.whatsapp.net"
	facade.handler(0)(m2)

	byChat := sess.MessagesByChat()
	require.Contains(t, byChat, "628333@s.whatsapp.net")
	require.NotContains(t, byChat, "12345@lid")

	merged := byChat["628333@s.whatsapp.net"]
	require.Len(t, merged, 2)
	assert.Equal(t, "m1", merged[0].ID)
	assert.Equal(t, "m2", merged[1].ID)
	assert.Equal(t, "628333@s.whatsapp.net", merged[0].ChatID)

	// lookup via alias lama tetap resolve ke log yang sama
	assert.Len(t, sess.Messages("12345@lid"), 2)
}

func TestTextExtractionPrecedence(t *testing.T) {
	sess, facade, _ := newTestSession(t, testSessionConfig())
	require.NoError(t, sess.Connect(context.Background()))
	facade.handler(0)(ConnectionOpen{})

	ev := inbound("m1", "628222@s.whatsapp.net", "")
	ev.Kind = KindExtendedText
	ev.ExtendedText = "teks panjang"
	facade.handler(0)(ev)

	ev2 := inbound("m2", "628222@s.whatsapp.net", "")
	ev2.Kind = KindReaction
	ev2.Reaction = "👍"
	facade.handler(0)(ev2)

	msgs := sess.Messages("628222@s.whatsapp.net")
	require.Len(t, msgs, 2)
	assert.Equal(t, "teks panjang", msgs[0].Text)
	assert.Equal(t, "👍", msgs[1].Text)
}

func TestGroupNameFetchedOnceThenCached(t *testing.T) {
	sess, facade, _ := newTestSession(t, testSessionConfig())
	facade.groupNames["999@g.us"] = "Keluarga Besar"
	require.NoError(t, sess.Connect(context.Background()))
	facade.handler(0)(ConnectionOpen{})

	ev := inbound("m1", "999@g.us", "halo grup")
	ev.IsGroup = true
	facade.handler(0)(ev)

	ev2 := inbound("m2", "999@g.us", "halo lagi")
	ev2.IsGroup = true
	facade.handler(0)(ev2)

	assert.Equal(t, 1, facade.conn(0).groupNameCalls())
	assert.Equal(t, "Keluarga Besar", sess.DisplayNames()["999@g.us"])
}

func TestSendRequiresOpenConnection(t *testing.T) {
	sess, _, _ := newTestSession(t, testSessionConfig())

	_, err := sess.Send(context.Background(), "628222@s.whatsapp.net", "halo", nil, "")
	assert.ErrorIs(t, err, ErrSessionNotConnected)
}

func TestSendAppendsToLogAndEmits(t *testing.T) {
	sess, facade, sink := newTestSession(t, testSessionConfig())
	require.NoError(t, sess.Connect(context.Background()))
	facade.handler(0)(ConnectionOpen{})

	msg, err := sess.Send(context.Background(), "628222@s.whatsapp.net", "halo keluar", nil, "")
	require.NoError(t, err)
	assert.True(t, msg.FromMe)
	assert.Equal(t, "srv-1", msg.ID)

	msgs := sess.Messages("628222@s.whatsapp.net")
	require.Len(t, msgs, 1)
	assert.Equal(t, "halo keluar", msgs[0].Text)
	assert.Len(t, sink.byType(EventMessage), 1)
}

func TestSendFailureDoesNotTouchLog(t *testing.T) {
	sess, facade, _ := newTestSession(t, testSessionConfig())
	require.NoError(t, sess.Connect(context.Background()))
	facade.handler(0)(ConnectionOpen{})
	facade.conn(0).sendErr = errors.New("timed out")

	_, err := sess.Send(context.Background(), "628222@s.whatsapp.net", "halo", nil, "")
	assert.ErrorIs(t, err, ErrSendFailed)
	assert.Empty(t, sess.Messages("628222@s.whatsapp.net"))
}
