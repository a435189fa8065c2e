package email

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobwatch-engine/internal/config"
)

const alertHTML = `<html><body>
<table><tr><td>
  <a href="https://www.linkedin.com/comm/jobs/view/4001/?trk=x"><img src="logo.png"></a>
  <a href="https://www.linkedin.com/comm/jobs/view/4001/?trk=x">Senior Marketing Manager</a>
  <p>Acme · New York, NY</p>
  <p>$150,000 - $180,000 / year</p>
</td></tr></table>
<table><tr><td>
  <a href="https://www.google.com/url?q=https://boards.greenhouse.io/beta/jobs/77">Growth Marketing Lead</a>
  <p>Beta · Austin, TX</p>
</td></tr></table>
<a href="https://www.linkedin.com/comm/jobs/alerts?unsubscribe=1">Unsubscribe</a>
</body></html>`

func rawMail(subject, html string) []byte {
	return []byte("Subject: " + subject + "\r\n" +
		"Content-Type: multipart/alternative; boundary=XX\r\n\r\n" +
		"--XX\r\nContent-Type: text/plain\r\n\r\nsee html\r\n" +
		"--XX\r\nContent-Type: text/html\r\nContent-Transfer-Encoding: quoted-printable\r\n\r\n" +
		strings.ReplaceAll(html, "=", "=3D") + "\r\n--XX--\r\n")
}

func TestParseAlertHTML(t *testing.T) {
	recs, err := ParseAlertHTML(alertHTML)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "https://www.linkedin.com/comm/jobs/view/4001/?trk=x", recs[0]["url"])
	assert.Equal(t, "Senior Marketing Manager", recs[0]["title"])
	assert.Equal(t, "Acme", recs[0]["company"])
	assert.Equal(t, "New York, NY", recs[0]["location"])
	assert.Equal(t, "$150,000 - $180,000 / year", recs[0]["salary"])

	assert.Equal(t, "https://boards.greenhouse.io/beta/jobs/77", recs[1]["url"])
	assert.Equal(t, "Austin, TX", recs[1]["location"])
}

func TestParseAlertText(t *testing.T) {
	body := "New jobs for you\n\nHead of Marketing\nhttps://jobs.lever.co/acme/1.\n\nManage alerts https://x.example/alerts/settings\n"
	recs := ParseAlertText(body)
	require.Len(t, recs, 1)
	assert.Equal(t, "https://jobs.lever.co/acme/1", recs[0]["url"])
	assert.Equal(t, "Head of Marketing", recs[0]["title"])
}

func TestParseRFC822DecodesParts(t *testing.T) {
	subject, plain, html := parseRFC822(rawMail("=?UTF-8?Q?Job_alert:_marketing?=", "<p>a=b</p>"), "")
	assert.Equal(t, "Job alert: marketing", subject)
	assert.Equal(t, "see html", strings.TrimSpace(plain))
	assert.Equal(t, "<p>a=b</p>", strings.TrimSpace(html))
}

type fakeMailbox struct {
	msgs   []Message
	marked []imap.UID
	err    error
}

func (f *fakeMailbox) Unseen(context.Context, time.Time, int) ([]Message, error) {
	return f.msgs, nil
}

func (f *fakeMailbox) MarkSeen(_ context.Context, uids []imap.UID) error {
	if f.err != nil {
		return f.err
	}
	f.marked = append(f.marked, uids...)
	return nil
}

func (f *fakeMailbox) Close() error { return nil }

func TestScraperMarksOnlyMatchedMailOnFinalize(t *testing.T) {
	mb := &fakeMailbox{msgs: []Message{
		{UID: 10, Subject: "Job alert", Date: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), Raw: rawMail("Job alert: 2 new jobs", alertHTML)},
		{UID: 11, Subject: "Lunch?", Raw: rawMail("Lunch?", "<p>tacos</p>")},
	}}
	s := New(config.Email{SearchSubjectAny: []string{"job alert"}, MaxMessages: 50},
		func(context.Context) (Mailbox, error) { return mb, nil })

	recs, err := s.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), recs[0]["posted_at"])
	assert.Empty(t, mb.marked, "fetch must not mark anything")

	require.NoError(t, s.Finalize(context.Background()))
	assert.Equal(t, []imap.UID{10}, mb.marked)

	// nothing pending a second time
	require.NoError(t, s.Finalize(context.Background()))
	assert.Equal(t, []imap.UID{10}, mb.marked)
}

func TestScraperDialFailure(t *testing.T) {
	s := New(config.Email{}, func(context.Context) (Mailbox, error) { return nil, errors.New("no route") })
	_, err := s.Fetch(context.Background())
	assert.EqualError(t, err, "no route")
}
