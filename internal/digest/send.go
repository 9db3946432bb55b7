package digest

import (
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Mailer delivers rendered digests over SMTP.
type Mailer struct {
	Host     string
	Port     int
	Sender   string
	Receiver string
	Password string
}

// Send delivers the digest with the subject "Daily arXiv YYYY/MM/DD"
// for the given date. It first attempts a plain connection upgraded
// with STARTTLS; servers that only speak implicit TLS (typically port
// 465) get a direct TLS connection instead.
func (m Mailer) Send(html string, date time.Time) error {
	addr := net.JoinHostPort(m.Host, strconv.Itoa(m.Port))
	subject := "Daily arXiv " + date.Format("2006/01/02")

	client, err := m.dialStartTLS(addr)
	if err != nil {
		zap.L().Warn("digest: starttls failed, retrying with implicit tls", zap.Error(err))
		client, err = m.dialImplicitTLS(addr)
		if err != nil {
			return eris.Wrap(err, "digest: connect to smtp server")
		}
	}
	defer client.Close()

	auth := smtp.PlainAuth("", m.Sender, m.Password, m.Host)
	if err := client.Auth(auth); err != nil {
		return eris.Wrap(err, "digest: smtp auth")
	}
	if err := client.Mail(m.Sender); err != nil {
		return eris.Wrap(err, "digest: smtp mail from")
	}
	if err := client.Rcpt(m.Receiver); err != nil {
		return eris.Wrap(err, "digest: smtp rcpt to")
	}

	w, err := client.Data()
	if err != nil {
		return eris.Wrap(err, "digest: smtp data")
	}
	if _, err := w.Write([]byte(m.message(subject, html))); err != nil {
		return eris.Wrap(err, "digest: write message")
	}
	if err := w.Close(); err != nil {
		return eris.Wrap(err, "digest: finish message")
	}
	return client.Quit()
}

func (m Mailer) dialStartTLS(addr string) (*smtp.Client, error) {
	client, err := smtp.Dial(addr)
	if err != nil {
		return nil, err
	}
	if err := client.StartTLS(&tls.Config{ServerName: m.Host}); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func (m Mailer) dialImplicitTLS(addr string) (*smtp.Client, error) {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: m.Host})
	if err != nil {
		return nil, err
	}
	client, err := smtp.NewClient(conn, m.Host)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return client, nil
}

func (m Mailer) message(subject, html string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: Daily Digest <%s>\r\n", m.Sender)
	fmt.Fprintf(&b, "To: You <%s>\r\n", m.Receiver)
	fmt.Fprintf(&b, "Subject: =?utf-8?B?%s?=\r\n", base64.StdEncoding.EncodeToString([]byte(subject)))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(html)
	return b.String()
}
