package smtpmail

import (
	"context"
	"fmt"
	"net/smtp"
	"time"

	"github.com/BearBump/StayScout/internal/models"
	"github.com/pkg/errors"
)

type Config struct {
	Host      string
	Port      int
	Username  string
	Password  string // app password for Gmail/Outlook
	Recipient string
}

// Notifier шлёт HTML-письма через обычный SMTP с STARTTLS.
type Notifier struct {
	cfg  Config
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func New(cfg Config) *Notifier {
	return &Notifier{cfg: cfg, send: smtp.SendMail}
}

func (n *Notifier) NotifyNewStays(ctx context.Context, stays []*models.Stay, criteria models.SearchCriteria) error {
	if len(stays) == 0 {
		return nil
	}

	subject := fmt.Sprintf("Găsite %d cazări noi!", len(stays))
	body, err := renderNewStays(stays, criteria)
	if err != nil {
		return err
	}
	return n.sendMail(ctx, subject, body)
}

func (n *Notifier) NotifyPriceDrops(ctx context.Context, drops []*models.PriceDropReport) error {
	if len(drops) == 0 {
		return nil
	}

	subject := fmt.Sprintf("ALERTĂ PREȚ: %d cazări s-au ieftinit", len(drops))
	body, err := renderPriceDrops(drops)
	if err != nil {
		return err
	}
	return n.sendMail(ctx, subject, body)
}

func (n *Notifier) SendTest(ctx context.Context) error {
	body, err := renderTest(time.Now())
	if err != nil {
		return err
	}
	return n.sendMail(ctx, "Test - agent cazări", body)
}

func (n *Notifier) sendMail(ctx context.Context, subject, htmlBody string) error {
	if n.cfg.Username == "" || n.cfg.Recipient == "" {
		return errors.New("smtp sender/recipient not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := []byte("From: " + n.cfg.Username + "\r\n" +
		"To: " + n.cfg.Recipient + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/html; charset=\"UTF-8\"\r\n" +
		"\r\n" +
		htmlBody)

	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	auth := smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	if err := n.send(addr, auth, n.cfg.Username, []string{n.cfg.Recipient}, msg); err != nil {
		return errors.Wrap(err, "smtp send")
	}
	return nil
}
