package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// Message is one alert mail, fetched with BODY.PEEK[] so fetching alone
// never sets \Seen.
type Message struct {
	UID     imap.UID
	Subject string
	Date    time.Time
	Raw     []byte
}

// Mailbox is the part of an IMAP session the scraper needs.
type Mailbox interface {
	Unseen(ctx context.Context, since time.Time, max int) ([]Message, error)
	MarkSeen(ctx context.Context, uids []imap.UID) error
	Close() error
}

// Dialer opens a logged-in session with the mailbox selected.
type Dialer func(ctx context.Context) (Mailbox, error)

type imapMailbox struct {
	c *imapclient.Client
}

// IMAPDialer returns a Dialer for a TLS IMAP server.
func IMAPDialer(host string, port int, username, password, mailbox string) Dialer {
	return func(ctx context.Context) (Mailbox, error) {
		if host == "" || username == "" {
			return nil, errors.New("imap host and username are required")
		}
		if password == "" {
			return nil, errors.New("imap password is not set")
		}
		addr := fmt.Sprintf("%s:%d", host, port)

		c, err := imapclient.DialTLS(addr, &imapclient.Options{
			TLSConfig: &tls.Config{MinVersion: tls.VersionTLS12, ServerName: host},
		})
		if err != nil {
			return nil, fmt.Errorf("imap dial tls: %w", err)
		}

		// Best-effort close on context cancel.
		stop := context.AfterFunc(ctx, func() { _ = c.Close() })

		if err := c.Login(username, password).Wait(); err != nil {
			stop()
			_ = c.Close()
			return nil, fmt.Errorf("imap login: %w", err)
		}
		if _, err := c.Select(mailbox, &imap.SelectOptions{ReadOnly: false}).Wait(); err != nil {
			stop()
			logoutAndClose(c)
			return nil, fmt.Errorf("imap select %q: %w", mailbox, err)
		}
		return &imapMailbox{c: c}, nil
	}
}

// Unseen returns up to max unseen messages received after since, newest
// first.
func (m *imapMailbox) Unseen(ctx context.Context, since time.Time, max int) ([]Message, error) {
	criteria := &imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
		Since:   since,
	}
	searchData, err := m.c.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("imap uid search unseen: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return []Message{}, nil
	}
	for i, j := 0, len(uids)-1; i < j; i, j = i+1, j-1 {
		uids[i], uids[j] = uids[j], uids[i]
	}
	if len(uids) > max {
		uids = uids[:max]
	}

	bodyAll := &imap.FetchItemBodySection{
		Specifier: imap.PartSpecifierNone,
		Peek:      true,
	}
	fetchCmd := m.c.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		UID:          true,
		Envelope:     true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{bodyAll},
	})
	defer func() { _ = fetchCmd.Close() }()

	out := make([]Message, 0, len(uids))
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		msgData := fetchCmd.Next()
		if msgData == nil {
			break
		}
		buf, err := msgData.Collect()
		if err != nil {
			return nil, fmt.Errorf("imap fetch collect: %w", err)
		}

		msg := Message{UID: buf.UID, Date: buf.InternalDate}
		if buf.Envelope != nil {
			msg.Subject = buf.Envelope.Subject
			if !buf.Envelope.Date.IsZero() {
				msg.Date = buf.Envelope.Date
			}
		}
		if b := buf.FindBodySection(bodyAll); b != nil {
			msg.Raw = append([]byte(nil), b...)
		}
		if msg.Subject == "" && len(msg.Raw) > 0 {
			if hm, err := mail.ReadMessage(bytes.NewReader(msg.Raw)); err == nil {
				msg.Subject = hm.Header.Get("Subject")
			}
		}
		out = append(out, msg)
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("imap fetch close: %w", err)
	}
	return out, nil
}

// MarkSeen sets \Seen on uids. Store has no Wait; Close reports the status.
func (m *imapMailbox) MarkSeen(ctx context.Context, uids []imap.UID) error {
	if len(uids) == 0 {
		return nil
	}
	cmd := m.c.Store(imap.UIDSetNum(uids...), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}, nil)
	if err := cmd.Close(); err != nil {
		return fmt.Errorf("imap store add seen: %w", err)
	}
	return nil
}

func (m *imapMailbox) Close() error {
	logoutAndClose(m.c)
	return nil
}

func logoutAndClose(c *imapclient.Client) {
	if c == nil {
		return
	}
	if err := c.Logout().Wait(); err != nil {
		log.Printf("[email] imap logout: %v", err)
	}
	_ = c.Close()
}
