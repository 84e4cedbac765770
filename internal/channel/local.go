package channel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/binary/proto"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"
	_ "modernc.org/sqlite"

	"sentinella/internal/config"
	"sentinella/internal/logger"
)

// LocalChannel sends messages through a browser-session client authenticated
// by QR scan. The session survives restarts in a local sqlite store.
type LocalChannel struct {
	cfg    config.LocalChannelConfig
	client *whatsmeow.Client
	logger logger.Logger
}

func NewLocalChannel(cfg config.LocalChannelConfig, log logger.Logger) (*LocalChannel, error) {
	c := &LocalChannel{
		cfg:    cfg,
		logger: log,
	}

	if !cfg.Enabled {
		return c, nil
	}

	storePath := cfg.SessionStore
	if storePath == "" {
		storePath = "data/session.db"
	}
	if err := os.MkdirAll(filepath.Dir(storePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create session store directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)", storePath)
	container, err := sqlstore.New("sqlite", dsn, waLog.Noop)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	device, err := container.GetFirstDevice()
	if err != nil {
		return nil, fmt.Errorf("failed to load device: %w", err)
	}

	c.client = whatsmeow.NewClient(device, waLog.Noop)
	return c, nil
}

// Client exposes the underlying session client so the transport can register
// its own event handler for inbound messages.
func (c *LocalChannel) Client() *whatsmeow.Client {
	return c.client
}

// Connect brings the session up. A fresh device needs a QR scan; the code is
// logged so an operator can pair from the terminal.
func (c *LocalChannel) Connect(ctx context.Context) error {
	if c.client == nil {
		return nil
	}

	if c.client.Store.ID == nil {
		qrChan, _ := c.client.GetQRChannel(ctx)
		go func() {
			for evt := range qrChan {
				if evt.Event == "code" {
					c.logger.Infow("Scan QR code to authenticate local session", "code", evt.Code)
				}
			}
		}()
	}

	if err := c.client.Connect(); err != nil {
		return fmt.Errorf("failed to connect local session: %w", err)
	}

	return nil
}

func (c *LocalChannel) Disconnect() {
	if c.client != nil {
		c.client.Disconnect()
	}
}

func (c *LocalChannel) Name() string {
	return NameLocal
}

func (c *LocalChannel) IsAvailable() bool {
	return c.cfg.Enabled && c.client != nil && c.client.IsConnected() && c.client.IsLoggedIn()
}

func (c *LocalChannel) BroadcastDestination() string {
	return c.cfg.BroadcastTo
}

func (c *LocalChannel) Send(ctx context.Context, destination, text string) error {
	if c.client == nil {
		return fmt.Errorf("local session client not initialized")
	}

	jid, err := destinationJID(destination)
	if err != nil {
		return err
	}

	_, err = c.client.SendMessage(ctx, jid, &waProto.Message{
		Conversation: proto.String(text),
	})
	if err != nil {
		return fmt.Errorf("local send failed: %w", err)
	}

	return nil
}

// destinationJID turns a phone number or serialized JID into a sendable JID.
// Group destinations arrive already serialized with their server suffix.
func destinationJID(destination string) (types.JID, error) {
	if strings.ContainsRune(destination, '@') {
		jid, err := types.ParseJID(destination)
		if err != nil {
			return types.JID{}, fmt.Errorf("invalid destination JID %q: %w", destination, err)
		}
		return jid, nil
	}

	digits := NormalizePhoneNumber(destination)
	if len(digits) < 7 {
		return types.JID{}, fmt.Errorf("destination phone number too short: %q", destination)
	}

	return types.ParseJID(digits + "@s.whatsapp.net")
}

// NormalizePhoneNumber strips everything but digits, dropping a leading plus
// sign and formatting characters.
func NormalizePhoneNumber(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
