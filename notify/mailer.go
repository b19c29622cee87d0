package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/aluiziolira/go-scrape-sales/config"
)

// ErrMailDisabled is returned by Send when SMTP is not configured.
var ErrMailDisabled = errors.New("notify: mail not configured")

// implicitTLSPort is the SMTPS port that expects TLS from the first byte.
const implicitTLSPort = 465

// sendFunc delivers a composed message.
type sendFunc func(ctx context.Context, from string, to []string, msg []byte) error

// Mailer sends the weekly report over SMTP.
type Mailer struct {
	cfg  config.MailConfig
	send sendFunc
	now  func() time.Time
}

// NewMailer returns a Mailer for cfg.
func NewMailer(cfg config.MailConfig) *Mailer {
	m := &Mailer{cfg: cfg, now: time.Now}
	m.send = m.deliver
	return m
}

// Enabled reports whether the mailer has enough configuration to send.
func (m *Mailer) Enabled() bool {
	return m.cfg.Enabled()
}

// Send composes the report and delivers it to every configured recipient.
func (m *Mailer) Send(ctx context.Context, report Report) error {
	if !m.Enabled() {
		return ErrMailDisabled
	}
	msg, err := m.Compose(report)
	if err != nil {
		return err
	}
	if err := m.send(ctx, m.cfg.From, m.cfg.To, msg); err != nil {
		return fmt.Errorf("send report: %w", err)
	}
	slog.Info("report email sent",
		slog.Int("recipients", len(m.cfg.To)),
		slog.Int("sales", len(report.Sales)),
		slog.Int("bytes", len(msg)),
	)
	return nil
}

// Compose builds the MIME message: a text and HTML alternative plus the
// sales CSV as an attachment.
func (m *Mailer) Compose(report Report) ([]byte, error) {
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = m.now()
	}
	htmlBody, err := report.HTML()
	if err != nil {
		return nil, err
	}
	csvBody, err := report.CSV()
	if err != nil {
		return nil, err
	}

	var h mail.Header
	h.SetDate(report.GeneratedAt)
	h.SetSubject(report.Subject())
	h.SetAddressList("From", []*mail.Address{{Name: m.cfg.FromName, Address: m.cfg.From}})
	to := make([]*mail.Address, 0, len(m.cfg.To))
	for _, addr := range m.cfg.To {
		to = append(to, &mail.Address{Address: addr})
	}
	h.SetAddressList("To", to)
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generate message id: %w", err)
	}

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}

	alt, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("create body: %w", err)
	}
	if err := writeInline(alt, "text/plain", report.Text()); err != nil {
		return nil, err
	}
	if err := writeInline(alt, "text/html", htmlBody); err != nil {
		return nil, err
	}
	if err := alt.Close(); err != nil {
		return nil, fmt.Errorf("close body: %w", err)
	}

	var ah mail.AttachmentHeader
	ah.SetContentType("text/csv", map[string]string{"charset": "utf-8"})
	ah.SetFilename(report.AttachmentName())
	aw, err := mw.CreateAttachment(ah)
	if err != nil {
		return nil, fmt.Errorf("create attachment: %w", err)
	}
	if _, err := aw.Write(csvBody); err != nil {
		return nil, fmt.Errorf("write attachment: %w", err)
	}
	if err := aw.Close(); err != nil {
		return nil, fmt.Errorf("close attachment: %w", err)
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close message: %w", err)
	}
	return buf.Bytes(), nil
}

func writeInline(iw *mail.InlineWriter, contentType, body string) error {
	var ih mail.InlineHeader
	ih.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	w, err := iw.CreatePart(ih)
	if err != nil {
		return fmt.Errorf("create %s part: %w", contentType, err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		return fmt.Errorf("write %s part: %w", contentType, err)
	}
	return w.Close()
}

// deliver dials the SMTP server, upgrading to TLS when configured.
func (m *Mailer) deliver(ctx context.Context, from string, to []string, msg []byte) error {
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	tlsConfig := &tls.Config{ServerName: m.cfg.Host}

	dialer := &net.Dialer{Timeout: 30 * time.Second}
	var (
		conn net.Conn
		err  error
	)
	if m.cfg.UseTLS && m.cfg.Port == implicitTLSPort {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("connect to smtp server: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("create smtp client: %w", err)
	}
	defer client.Close()

	if m.cfg.UseTLS && m.cfg.Port != implicitTLSPort {
		if ok, _ := client.Extension("STARTTLS"); !ok {
			return fmt.Errorf("smtp server does not support STARTTLS")
		}
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("start tls: %w", err)
		}
	}

	if m.cfg.Username != "" {
		auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp authentication failed: %w", err)
		}
	}

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("set mail from: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("set recipient %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("start data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close data writer: %w", err)
	}
	return client.Quit()
}
