// Package facade berisi adapter transport production di belakang
// service.ConnectionFacade. Hanya package ini yang menyentuh whatsmeow;
// core tidak pernah import library protokol langsung.
package facade

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"gowa-gateway/internal/service"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"
)

// DeviceDirectory memetakan session id <-> JID device hasil pairing, supaya
// credential store bisa ditemukan lagi setelah restart.
// Diimplementasikan model.SessionStore.
type DeviceDirectory interface {
	DeviceJID(ctx context.Context, sessionID string) (string, error)
	SetDeviceJID(ctx context.Context, sessionID, jid string) error
}

// Whatsmeow adalah ConnectionFacade production.
type Whatsmeow struct {
	container *sqlstore.Container
	devices   DeviceDirectory
}

func NewWhatsmeow(container *sqlstore.Container, devices DeviceDirectory) *Whatsmeow {
	// device name global, di-set sebelum device pertama dibuat
	store.DeviceProps.Os = proto.String("GOWA Gateway")
	return &Whatsmeow{container: container, devices: devices}
}

// Dial buka koneksi untuk satu session. Reconnect otomatis whatsmeow
// dimatikan: policy reconnect sepenuhnya milik state machine session.
func (f *Whatsmeow) Dial(ctx context.Context, sessionID string, opts service.DialOptions, handler service.EventHandler) (service.Conn, error) {
	device, err := f.deviceFor(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	clientLog := waLog.Stdout("Client", "INFO", true)
	client := whatsmeow.NewClient(device, clientLog)
	client.EnableAutoReconnect = false
	client.AddEventHandler(f.eventHandler(sessionID, client, handler))

	if opts.InsecureTLS {
		// whatsmeow mengelola TLS socket utamanya sendiri (cert pinned);
		// mode relaxed hanya berlaku untuk HTTP client sekunder adapter ini.
		log.Printf("⚠ [TLS] %s: relaxed certificate verification requested", sessionID)
	}

	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("connect session %s: %w", sessionID, err)
	}

	return &waConn{
		client: client,
		http:   newHTTPClient(opts.InsecureTLS),
	}, nil
}

// EraseCredentials hapus device store session ini; connect berikutnya wajib
// pairing ulang lewat QR.
func (f *Whatsmeow) EraseCredentials(ctx context.Context, sessionID string) error {
	jidStr, err := f.devices.DeviceJID(ctx, sessionID)
	if err != nil {
		return err
	}
	if jidStr == "" {
		return nil
	}

	jid, err := types.ParseJID(jidStr)
	if err != nil {
		return fmt.Errorf("parse device jid %s: %w", jidStr, err)
	}

	device, err := f.container.GetDevice(ctx, jid)
	if err != nil {
		return fmt.Errorf("get device %s: %w", jidStr, err)
	}
	if device != nil {
		if err := f.container.DeleteDevice(ctx, device); err != nil {
			return fmt.Errorf("delete device %s: %w", jidStr, err)
		}
	}
	return f.devices.SetDeviceJID(ctx, sessionID, "")
}

func (f *Whatsmeow) deviceFor(ctx context.Context, sessionID string) (*store.Device, error) {
	jidStr, err := f.devices.DeviceJID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if jidStr != "" {
		if jid, err := types.ParseJID(jidStr); err == nil {
			device, err := f.container.GetDevice(ctx, jid)
			if err == nil && device != nil {
				return device, nil
			}
			log.Printf("⚠ stale device jid for %s (%s), pairing ulang", sessionID, jidStr)
		}
	}
	return f.container.NewDevice(), nil
}

// eventHandler translate event whatsmeow ke TransportEvent domain.
// Dipanggil whatsmeow secara sekuensial per client.
func (f *Whatsmeow) eventHandler(sessionID string, client *whatsmeow.Client, h service.EventHandler) func(interface{}) {
	return func(raw interface{}) {
		switch evt := raw.(type) {
		case *events.QR:
			if len(evt.Codes) > 0 {
				h(service.QRIssued{Code: evt.Codes[0]})
			}

		case *events.PairSuccess:
			fmt.Println("✓ Pair Success! Session:", sessionID)
			if err := f.devices.SetDeviceJID(context.Background(), sessionID, evt.ID.String()); err != nil {
				log.Printf("⚠ failed to record device jid for %s: %v", sessionID, err)
			}

		case *events.Connected:
			h(service.ConnectionOpen{})

		case *events.LoggedOut:
			h(service.ConnectionClosed{Code: service.CodeLoggedOut, Message: "logged out"})

		case *events.StreamReplaced:
			h(service.ConnectionClosed{Code: service.CodeStreamReplaced, Message: "stream replaced"})

		case *events.Disconnected:
			h(service.ConnectionClosed{Code: service.CodeConnectionClosed, Message: "connection closed"})

		case *events.ConnectFailure:
			h(service.ConnectionClosed{
				Code:    service.DisconnectCode(int(evt.Reason)),
				Message: evt.Message,
			})

		case *events.Message:
			h(f.toInbound(client, evt))
		}
	}
}

// toInbound flatten pesan whatsmeow ke InboundMessage domain.
// Teks dibiarkan per varian payload; precedence diputuskan session.
func (f *Whatsmeow) toInbound(client *whatsmeow.Client, evt *events.Message) service.InboundMessage {
	info := evt.Info
	msg := evt.Message

	in := service.InboundMessage{
		ID:        info.ID,
		ChatJID:   info.Chat.String(),
		SenderJID: info.Sender.String(),
		PushName:  info.PushName,
		FromMe:    info.IsFromMe,
		IsGroup:   info.IsGroup,
		Timestamp: info.Timestamp,
		Kind:      service.KindUnknown,
	}

	// chat @lid: bawa alternate yang resolvable kalau transport kasih
	if info.Chat.Server == types.HiddenUserServer && !info.SenderAlt.IsEmpty() {
		in.AltJID = info.SenderAlt.ToNonAD().String()
	}

	if msg == nil {
		return in
	}

	switch {
	case msg.GetProtocolMessage() != nil || msg.GetSenderKeyDistributionMessage() != nil:
		in.Kind = service.KindProtocol

	case msg.GetConversation() != "":
		in.Kind = service.KindText
		in.Conversation = msg.GetConversation()

	case msg.GetExtendedTextMessage() != nil:
		in.Kind = service.KindExtendedText
		in.ExtendedText = msg.GetExtendedTextMessage().GetText()

	case msg.GetImageMessage() != nil:
		img := msg.GetImageMessage()
		in.Kind = service.KindImage
		in.ImageCaption = img.GetCaption()
		in.Mimetype = img.GetMimetype()
		in.Download = func(ctx context.Context) ([]byte, error) {
			return client.Download(ctx, img)
		}

	case msg.GetStickerMessage() != nil:
		st := msg.GetStickerMessage()
		in.Kind = service.KindSticker
		in.Mimetype = st.GetMimetype()
		in.Download = func(ctx context.Context) ([]byte, error) {
			return client.Download(ctx, st)
		}

	case msg.GetAudioMessage() != nil:
		au := msg.GetAudioMessage()
		in.Kind = service.KindAudio
		in.Mimetype = au.GetMimetype()
		in.Download = func(ctx context.Context) ([]byte, error) {
			return client.Download(ctx, au)
		}

	case msg.GetVideoMessage() != nil:
		in.Kind = service.KindVideo
		in.VideoCaption = msg.GetVideoMessage().GetCaption()
		in.Mimetype = msg.GetVideoMessage().GetMimetype()

	case msg.GetDocumentMessage() != nil:
		in.Kind = service.KindDocument
		in.DocumentCaption = msg.GetDocumentMessage().GetCaption()
		in.Mimetype = msg.GetDocumentMessage().GetMimetype()

	case msg.GetReactionMessage() != nil:
		in.Kind = service.KindReaction
		in.Reaction = msg.GetReactionMessage().GetText()
	}

	return in
}

// waConn adalah satu koneksi whatsmeow yang hidup.
type waConn struct {
	client *whatsmeow.Client
	// http dipakai untuk fetch sekunder (di luar socket protokol);
	// ini satu-satunya tempat InsecureTLS benar-benar melonggarkan verifikasi.
	http *http.Client
}

func (c *waConn) SendText(ctx context.Context, chatJID, text string) (string, time.Time, error) {
	jid, err := types.ParseJID(chatJID)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("parse jid %s: %w", chatJID, err)
	}

	resp, err := c.client.SendMessage(ctx, jid, &waE2E.Message{
		Conversation: proto.String(text),
	})
	if err != nil {
		return "", time.Time{}, err
	}
	return string(resp.ID), resp.Timestamp, nil
}

func (c *waConn) SendMedia(ctx context.Context, chatJID string, data []byte, mimetype, caption string) (string, time.Time, error) {
	jid, err := types.ParseJID(chatJID)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("parse jid %s: %w", chatJID, err)
	}

	mediaType := whatsmeow.MediaDocument
	switch {
	case strings.HasPrefix(mimetype, "image/"):
		mediaType = whatsmeow.MediaImage
	case strings.HasPrefix(mimetype, "audio/"):
		mediaType = whatsmeow.MediaAudio
	case strings.HasPrefix(mimetype, "video/"):
		mediaType = whatsmeow.MediaVideo
	}

	up, err := c.client.Upload(ctx, data, mediaType)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("upload media: %w", err)
	}

	var message *waE2E.Message
	switch mediaType {
	case whatsmeow.MediaImage:
		message = &waE2E.Message{ImageMessage: &waE2E.ImageMessage{
			Caption:       proto.String(caption),
			Mimetype:      proto.String(mimetype),
			URL:           &up.URL,
			DirectPath:    &up.DirectPath,
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(uint64(len(data))),
		}}
	case whatsmeow.MediaAudio:
		message = &waE2E.Message{AudioMessage: &waE2E.AudioMessage{
			Mimetype:      proto.String(mimetype),
			URL:           &up.URL,
			DirectPath:    &up.DirectPath,
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(uint64(len(data))),
		}}
	case whatsmeow.MediaVideo:
		message = &waE2E.Message{VideoMessage: &waE2E.VideoMessage{
			Caption:       proto.String(caption),
			Mimetype:      proto.String(mimetype),
			URL:           &up.URL,
			DirectPath:    &up.DirectPath,
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(uint64(len(data))),
		}}
	default:
		message = &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{
			Caption:       proto.String(caption),
			Mimetype:      proto.String(mimetype),
			URL:           &up.URL,
			DirectPath:    &up.DirectPath,
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(uint64(len(data))),
		}}
	}

	resp, err := c.client.SendMessage(ctx, jid, message)
	if err != nil {
		return "", time.Time{}, err
	}
	return string(resp.ID), resp.Timestamp, nil
}

func (c *waConn) GroupName(ctx context.Context, groupJID string) (string, error) {
	jid, err := types.ParseJID(groupJID)
	if err != nil {
		return "", fmt.Errorf("parse group jid %s: %w", groupJID, err)
	}
	info, err := c.client.GetGroupInfo(ctx, jid)
	if err != nil {
		return "", err
	}
	return info.Name, nil
}

func (c *waConn) Close(ctx context.Context) error {
	c.client.Disconnect()
	return nil
}

func (c *waConn) Logout(ctx context.Context) error {
	return c.client.Logout(ctx)
}

func newHTTPClient(insecure bool) *http.Client {
	client := &http.Client{Timeout: 30 * time.Second}
	if insecure {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return client
}
