// Package email reads job-alert mails from an IMAP mailbox.
package email

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap/v2"

	"jobwatch-engine/internal/config"
	"jobwatch-engine/internal/domain"
)

// lookback bounds how far back unseen mail is considered.
const lookback = 90 * 24 * time.Hour

type Scraper struct {
	cfg  config.Email
	dial Dialer
	now  func() time.Time

	mu      sync.Mutex
	pending []imap.UID
}

func New(cfg config.Email, dial Dialer) *Scraper {
	return &Scraper{cfg: cfg, dial: dial, now: time.Now}
}

// NewIMAP builds a scraper for the configured server. The password comes
// from the secrets layer and is never part of cfg on disk.
func NewIMAP(cfg config.Email, password string) *Scraper {
	return New(cfg, IMAPDialer(cfg.IMAPHost, cfg.IMAPPort, cfg.Username, password, cfg.Mailbox))
}

func (s *Scraper) Name() string { return "email" }

// Fetch reads unseen alert mails and turns them into records. Mails whose
// subject does not match are left untouched. Matching mails are remembered
// and only marked seen by Finalize.
func (s *Scraper) Fetch(ctx context.Context) ([]domain.RawRecord, error) {
	mb, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer mb.Close()

	msgs, err := mb.Unseen(ctx, s.now().Add(-lookback), s.cfg.MaxMessages)
	if err != nil {
		return nil, err
	}

	var (
		out     []domain.RawRecord
		matched []imap.UID
	)
	for _, m := range msgs {
		subject, plain, htmlBody := parseRFC822(m.Raw, m.Subject)
		if !subjectMatches(subject, s.cfg.SearchSubjectAny) {
			continue
		}
		matched = append(matched, m.UID)

		var recs []domain.RawRecord
		if htmlBody != "" {
			recs, err = ParseAlertHTML(htmlBody)
			if err != nil {
				log.Printf("[email] uid=%d subject=%q parse err=%v", m.UID, subject, err)
			}
		}
		if len(recs) == 0 && plain != "" {
			recs = ParseAlertText(plain)
		}
		for _, r := range recs {
			if !m.Date.IsZero() {
				r["posted_at"] = m.Date
			}
			out = append(out, r)
		}
		log.Printf("[email] uid=%d subject=%q postings=%d", m.UID, subject, len(recs))
	}

	s.mu.Lock()
	s.pending = matched
	s.mu.Unlock()
	return out, nil
}

// Finalize marks the mails consumed by the last Fetch as seen. It runs
// after the state is saved, so a failed run leaves the mails unread for the
// next attempt.
func (s *Scraper) Finalize(ctx context.Context) error {
	s.mu.Lock()
	uids := s.pending
	s.pending = nil
	s.mu.Unlock()

	if len(uids) == 0 {
		return nil
	}
	mb, err := s.dial(ctx)
	if err != nil {
		return fmt.Errorf("mark seen: %w", err)
	}
	defer mb.Close()

	if err := mb.MarkSeen(ctx, uids); err != nil {
		return err
	}
	log.Printf("[email] marked %d messages seen", len(uids))
	return nil
}

func subjectMatches(subject string, terms []string) bool {
	if len(terms) == 0 {
		return true
	}
	s := strings.ToLower(subject)
	for _, want := range terms {
		want = strings.ToLower(strings.TrimSpace(want))
		if want != "" && strings.Contains(s, want) {
			return true
		}
	}
	return false
}
